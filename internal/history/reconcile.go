package history

import (
	"log/slog"

	"github.com/nissy/kipple-sub002/internal/backend"
	"github.com/nissy/kipple-sub002/internal/clip"
)

// reconcileStats summarizes what reconciliation reclassified or dropped.
type reconcileStats struct {
	insertsAsUpdates    int
	droppedUpdates      int
	droppedRemovals     int
	droppedNoops        int
	supersededByRemoval int
}

func (st reconcileStats) empty() bool {
	return st.insertsAsUpdates == 0 && st.droppedUpdates == 0 && st.droppedRemovals == 0 &&
		st.droppedNoops == 0 && st.supersededByRemoval == 0
}

func (st reconcileStats) log(logger *slog.Logger) {
	if st.empty() {
		return
	}
	logger.Debug("reconciled change set",
		slog.Int("inserts_as_updates", st.insertsAsUpdates),
		slog.Int("dropped_unknown_updates", st.droppedUpdates),
		slog.Int("dropped_unknown_removals", st.droppedRemovals),
		slog.Int("dropped_noops", st.droppedNoops),
		slog.Int("superseded_by_removal", st.supersededByRemoval))
}

type pendingWrite struct {
	entry  clip.Entry
	update bool // id already exists in the current snapshot
}

// reconcile rewrites a desired change set against the current snapshot so the
// result applies cleanly: inserts for known ids become updates, updates for
// unknown ids are dropped, removals of unknown ids are dropped, and writes
// that would not change the stored entry are elided. When one set both writes
// and removes an id, the removal wins. Resolution is against the pre-apply
// state throughout; an update aimed at an id inserted by the same set is
// still an unknown-id update.
func reconcile(cur *snapshot, desired backend.ChangeSet) (backend.ChangeSet, reconcileStats) {
	var out backend.ChangeSet
	var st reconcileStats

	removed := make(map[string]bool, len(desired.RemovedIDs))
	for _, id := range desired.RemovedIDs {
		if id == "" || removed[id] {
			continue
		}
		if _, ok := cur.get(id); !ok {
			st.droppedRemovals++
			continue
		}
		removed[id] = true
		out.RemovedIDs = append(out.RemovedIDs, id)
	}

	pending := make(map[string]pendingWrite, len(desired.Inserted)+len(desired.Updated))
	var order []string

	add := func(e clip.Entry, fromInsert bool) {
		if e.ID == "" {
			st.droppedUpdates++
			return
		}
		if removed[e.ID] {
			st.supersededByRemoval++
			return
		}
		curEntry, known := cur.get(e.ID)
		if known {
			if fromInsert {
				st.insertsAsUpdates++
			}
			merged := mergeEntry(curEntry, e)
			if _, queued := pending[e.ID]; queued {
				// later write wins, even one that restores the stored state
				pending[e.ID] = pendingWrite{entry: merged, update: true}
				return
			}
			if merged.Equal(curEntry) {
				st.droppedNoops++
				return
			}
			order = append(order, e.ID)
			pending[e.ID] = pendingWrite{entry: merged, update: true}
			return
		}
		if !fromInsert {
			st.droppedUpdates++
			return
		}
		if _, queued := pending[e.ID]; !queued {
			order = append(order, e.ID)
		}
		pending[e.ID] = pendingWrite{entry: e}
	}

	for _, e := range desired.Inserted {
		add(e, true)
	}
	for _, e := range desired.Updated {
		add(e, false)
	}

	for _, id := range order {
		w := pending[id]
		if w.update {
			out.Updated = append(out.Updated, w.entry)
		} else {
			out.Inserted = append(out.Inserted, w.entry)
		}
	}
	return out, st
}

// mergeEntry resolves a desired write against the stored entry. Desired
// fields win except the ones the store owns: pin state changes only through
// the pin path, the sequence stays with the entry for life, and a zero
// desired timestamp or kind keeps the stored value.
func mergeEntry(cur, desired clip.Entry) clip.Entry {
	merged := desired
	merged.ID = cur.ID
	merged.Pinned = cur.Pinned
	merged.Seq = cur.Seq
	if merged.Timestamp.IsZero() {
		merged.Timestamp = cur.Timestamp
	} else {
		merged.Timestamp = clip.Quantize(merged.Timestamp)
	}
	if merged.Kind == "" {
		merged.Kind = cur.Kind
	}
	return merged
}
