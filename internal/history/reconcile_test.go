package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nissy/kipple-sub002/internal/backend"
	"github.com/nissy/kipple-sub002/internal/clip"
)

func reconcileBase(t *testing.T) *snapshot {
	t.Helper()
	return newSnapshot([]clip.Entry{
		orderedEntry("known", false, 100, 1),
		orderedEntry("pinned", true, 200, 2),
	})
}

func TestReconcile_InsertUnknownID_StaysInsert(t *testing.T) {
	cur := reconcileBase(t)
	in := backend.ChangeSet{Inserted: []clip.Entry{orderedEntry("fresh", false, 300, 3)}}

	out, st := reconcile(cur, in)

	require.Len(t, out.Inserted, 1)
	require.Equal(t, "fresh", out.Inserted[0].ID)
	require.Empty(t, out.Updated)
	require.True(t, st.empty())
}

func TestReconcile_InsertKnownID_BecomesUpdate(t *testing.T) {
	cur := reconcileBase(t)
	desired := orderedEntry("known", false, 500, 9)
	desired.Content = "rewritten"
	in := backend.ChangeSet{Inserted: []clip.Entry{desired}}

	out, st := reconcile(cur, in)

	require.Empty(t, out.Inserted)
	require.Len(t, out.Updated, 1)
	require.Equal(t, "rewritten", out.Updated[0].Content)
	require.Equal(t, 1, st.insertsAsUpdates)
}

func TestReconcile_UpdateUnknownID_Dropped(t *testing.T) {
	cur := reconcileBase(t)
	in := backend.ChangeSet{Updated: []clip.Entry{orderedEntry("phantom", false, 300, 3)}}

	out, st := reconcile(cur, in)

	require.True(t, out.Empty())
	require.Equal(t, 1, st.droppedUpdates)
}

func TestReconcile_RemoveUnknownID_Dropped(t *testing.T) {
	cur := reconcileBase(t)
	in := backend.ChangeSet{RemovedIDs: []string{"phantom"}}

	out, st := reconcile(cur, in)

	require.True(t, out.Empty())
	require.Equal(t, 1, st.droppedRemovals)
}

func TestReconcile_RemovalWinsOverWrite(t *testing.T) {
	cur := reconcileBase(t)
	rewrite := orderedEntry("known", false, 500, 9)
	rewrite.Content = "rewritten"
	in := backend.ChangeSet{
		Updated:    []clip.Entry{rewrite},
		RemovedIDs: []string{"known"},
	}

	out, st := reconcile(cur, in)

	require.Empty(t, out.Updated)
	require.Equal(t, []string{"known"}, out.RemovedIDs)
	require.Equal(t, 1, st.supersededByRemoval)
}

func TestReconcile_NoopUpdateElided(t *testing.T) {
	cur := reconcileBase(t)
	same, _ := cur.get("known")
	in := backend.ChangeSet{Updated: []clip.Entry{same}}

	out, st := reconcile(cur, in)

	require.True(t, out.Empty())
	require.Equal(t, 1, st.droppedNoops)
}

func TestReconcile_DuplicateRemovalsDeduplicated(t *testing.T) {
	cur := reconcileBase(t)
	in := backend.ChangeSet{RemovedIDs: []string{"known", "known"}}

	out, _ := reconcile(cur, in)

	require.Equal(t, []string{"known"}, out.RemovedIDs)
}

func TestMergeEntry_DesiredWinsExceptOwnedFields(t *testing.T) {
	cur := clip.Entry{
		ID:        "e1",
		Content:   "old",
		Timestamp: time.UnixMicro(100),
		Pinned:    true,
		SourceApp: "Safari",
		Kind:      clip.KindURL,
		Seq:       7,
	}
	desired := clip.Entry{
		ID:        "e1",
		Content:   "new",
		Timestamp: time.UnixMicro(900),
		Pinned:    false, // must not stick
		SourceApp: "Terminal",
		Kind:      clip.KindPlain,
		Seq:       99, // must not stick
	}

	merged := mergeEntry(cur, desired)

	require.Equal(t, "new", merged.Content)
	require.Equal(t, "Terminal", merged.SourceApp)
	require.Equal(t, clip.KindPlain, merged.Kind)
	require.True(t, merged.Timestamp.Equal(time.UnixMicro(900)))
	require.True(t, merged.Pinned, "pin state changes only through the pin path")
	require.Equal(t, uint64(7), merged.Seq, "sequence stays with the entry")
}

func TestMergeEntry_ZeroTimestampAndKindKeepStored(t *testing.T) {
	cur := clip.Entry{ID: "e1", Content: "old", Timestamp: time.UnixMicro(100), Kind: clip.KindCode, Seq: 1}
	desired := clip.Entry{ID: "e1", Content: "new"}

	merged := mergeEntry(cur, desired)

	require.True(t, merged.Timestamp.Equal(time.UnixMicro(100)))
	require.Equal(t, clip.KindCode, merged.Kind)
}
