package history

import (
	"github.com/nissy/kipple-sub002/internal/backend"
	"github.com/nissy/kipple-sub002/internal/clip"
)

// snapshot is an immutable ordered view of the history. Readers hold a
// reference to one snapshot and are unaffected by writes swapping in a
// successor.
type snapshot struct {
	entries []clip.Entry
	index   map[string]int // id -> position in entries
	pinned  int
}

func newSnapshot(entries []clip.Entry) *snapshot {
	ordered := make([]clip.Entry, len(entries))
	copy(ordered, entries)
	sortEntries(ordered)
	sn := &snapshot{entries: ordered, index: make(map[string]int, len(ordered))}
	for i, e := range ordered {
		sn.index[e.ID] = i
		if e.Pinned {
			sn.pinned++
		}
	}
	return sn
}

func (sn *snapshot) get(id string) (clip.Entry, bool) {
	i, ok := sn.index[id]
	if !ok {
		return clip.Entry{}, false
	}
	return sn.entries[i], true
}

// head returns a copy of the first entries in display order; limit <= 0 means all.
func (sn *snapshot) head(limit int) []clip.Entry {
	n := len(sn.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]clip.Entry, n)
	copy(out, sn.entries[:n])
	return out
}

func (sn *snapshot) all() []clip.Entry { return sn.head(0) }

func (sn *snapshot) len() int           { return len(sn.entries) }
func (sn *snapshot) pinnedCount() int   { return sn.pinned }
func (sn *snapshot) unpinnedCount() int { return len(sn.entries) - sn.pinned }

// successor folds a committed diff into base and returns the next snapshot.
func successor(base *snapshot, diff backend.ChangeSet) *snapshot {
	byID := make(map[string]clip.Entry, base.len()+len(diff.Inserted))
	for _, e := range base.entries {
		byID[e.ID] = e
	}
	for _, e := range diff.Inserted {
		byID[e.ID] = e
	}
	for _, e := range diff.Updated {
		byID[e.ID] = e
	}
	for _, id := range diff.RemovedIDs {
		delete(byID, id)
	}
	entries := make([]clip.Entry, 0, len(byID))
	for _, e := range byID {
		entries = append(entries, e)
	}
	return newSnapshot(entries)
}
