package history

import (
	"time"

	"github.com/nissy/kipple-sub002/internal/clip"
)

// Watermarks bounds the history. Zero values leave the corresponding bound
// unenforced. The two ceilings are independent: pinned entries never count
// against MaxHistoryItems and are never evicted by it.
type Watermarks struct {
	MaxHistoryItems int           // ceiling for unpinned entries
	MaxPinnedItems  int           // ceiling for pinned entries
	Retention       time.Duration // age limit for unpinned entries
}

// overflowUnpinned returns ids of the oldest unpinned entries that must leave
// to bring the unpinned count down to max. ordered must be in display order,
// so the overflow reads from the tail.
func overflowUnpinned(ordered []clip.Entry, max int) []string {
	if max <= 0 {
		return nil
	}
	unpinned := 0
	for _, e := range ordered {
		if !e.Pinned {
			unpinned++
		}
	}
	excess := unpinned - max
	if excess <= 0 {
		return nil
	}
	ids := make([]string, 0, excess)
	for i := len(ordered) - 1; i >= 0 && len(ids) < excess; i-- {
		if !ordered[i].Pinned {
			ids = append(ids, ordered[i].ID)
		}
	}
	return ids
}

// expiredUnpinned returns ids of unpinned entries older than cutoff. Pinned
// entries never age out.
func expiredUnpinned(entries []clip.Entry, cutoff time.Time) []string {
	var ids []string
	for _, e := range entries {
		if !e.Pinned && e.Timestamp.Before(cutoff) {
			ids = append(ids, e.ID)
		}
	}
	return ids
}
