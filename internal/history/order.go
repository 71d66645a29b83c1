package history

import (
	"sort"

	"github.com/nissy/kipple-sub002/internal/clip"
)

// less reports whether a sorts before b in display order: pinned entries
// first, then newest timestamp, with the insertion sequence breaking exact
// timestamp ties. IDs settle entries identical on all three keys, so the
// order is total and independent of input permutation.
func less(a, b clip.Entry) bool {
	if a.Pinned != b.Pinned {
		return a.Pinned
	}
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	if a.Seq != b.Seq {
		return a.Seq > b.Seq
	}
	return a.ID < b.ID
}

// sortEntries orders entries in place in display order.
func sortEntries(entries []clip.Entry) {
	sort.Slice(entries, func(i, j int) bool { return less(entries[i], entries[j]) })
}
