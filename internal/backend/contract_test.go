package backend

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/nissy/kipple-sub002/internal/clip"
)

// The contract suite runs against every adapter that needs no external
// service. Postgres, Mongo and Redis run the same flows in their integration
// tests.
func TestAdapterContract(t *testing.T) {
	adapters := map[string]func(t *testing.T) Adapter{
		"memory": func(t *testing.T) Adapter {
			return NewMemoryStore()
		},
		"jsonfile": func(t *testing.T) Adapter {
			s, err := NewJSONFileStore(filepath.Join(t.TempDir(), "history.json"))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Adapter {
			s, err := NewSQLiteStore(":memory:")
			require.NoError(t, err)
			return s
		},
	}

	for name, build := range adapters {
		t.Run(name, func(t *testing.T) {
			runAdapterContract(t, build)
		})
	}
}

func runAdapterContract(t *testing.T, build func(t *testing.T) Adapter) {
	t.Run("empty load", func(t *testing.T) {
		a := build(t)
		defer a.Close()

		entries, err := a.Load(t.Context())
		require.NoError(t, err)
		require.Empty(t, entries)
	})

	t.Run("read your writes", func(t *testing.T) {
		a := build(t)
		defer a.Close()

		e := testEntry("a", "hello", 1000, 1)
		require.NoError(t, a.Apply(t.Context(), ChangeSet{Inserted: []clip.Entry{e}}))

		entries, err := a.Load(t.Context())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.True(t, e.Equal(entries[0]), "got %+v", entries[0])
	})

	t.Run("update replaces fields", func(t *testing.T) {
		a := build(t)
		defer a.Close()

		e := testEntry("a", "hello", 1000, 1)
		require.NoError(t, a.Apply(t.Context(), ChangeSet{Inserted: []clip.Entry{e}}))

		e.Content = "hello again"
		e.Pinned = true
		require.NoError(t, a.Apply(t.Context(), ChangeSet{Updated: []clip.Entry{e}}))

		entries, err := a.Load(t.Context())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.Equal(t, "hello again", entries[0].Content)
		require.True(t, entries[0].Pinned)
	})

	t.Run("mixed diff in one apply", func(t *testing.T) {
		a := build(t)
		defer a.Close()

		e1 := testEntry("a", "one", 1000, 1)
		e2 := testEntry("b", "two", 2000, 2)
		require.NoError(t, a.Apply(t.Context(), ChangeSet{Inserted: []clip.Entry{e1, e2}}))

		e2.Content = "two edited"
		e3 := testEntry("c", "three", 3000, 3)
		cs := ChangeSet{
			Inserted:   []clip.Entry{e3},
			Updated:    []clip.Entry{e2},
			RemovedIDs: []string{"a"},
		}
		require.NoError(t, a.Apply(t.Context(), cs))

		entries, err := a.Load(t.Context())
		require.NoError(t, err)
		require.ElementsMatch(t, []string{"b", "c"}, entryIDs(entries))
		for _, e := range entries {
			if e.ID == "b" {
				require.Equal(t, "two edited", e.Content)
			}
		}
	})

	t.Run("remove unknown id is a no-op", func(t *testing.T) {
		a := build(t)
		defer a.Close()

		e := testEntry("a", "hello", 1000, 1)
		require.NoError(t, a.Apply(t.Context(), ChangeSet{Inserted: []clip.Entry{e}}))
		require.NoError(t, a.Apply(t.Context(), ChangeSet{RemovedIDs: []string{"ghost"}}))

		entries, err := a.Load(t.Context())
		require.NoError(t, err)
		require.Len(t, entries, 1)
	})

	t.Run("clear is idempotent", func(t *testing.T) {
		a := build(t)
		defer a.Close()

		e := testEntry("a", "hello", 1000, 1)
		require.NoError(t, a.Apply(t.Context(), ChangeSet{Inserted: []clip.Entry{e}}))

		require.NoError(t, a.Clear(t.Context()))
		require.NoError(t, a.Clear(t.Context()))

		entries, err := a.Load(t.Context())
		require.NoError(t, err)
		require.Empty(t, entries)
	})

	t.Run("timestamp survives at microsecond resolution", func(t *testing.T) {
		a := build(t)
		defer a.Close()

		ts := time.Date(2026, 8, 25, 13, 14, 15, 123456000, time.UTC)
		e := testEntry("a", "precise", 0, 7)
		e.Timestamp = clip.Quantize(ts)
		require.NoError(t, a.Apply(t.Context(), ChangeSet{Inserted: []clip.Entry{e}}))

		entries, err := a.Load(t.Context())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.True(t, entries[0].Timestamp.Equal(e.Timestamp),
			"want %v got %v", e.Timestamp, entries[0].Timestamp)
		require.Equal(t, uint64(7), entries[0].Seq)
	})

	t.Run("provenance fields round-trip", func(t *testing.T) {
		a := build(t)
		defer a.Close()

		e := testEntry("a", "from somewhere", 1000, 1)
		e.SourceApp = "Terminal"
		e.WindowTitle = "vim — notes.txt"
		e.BundleID = "com.apple.Terminal"
		e.ProcessID = 4242
		e.FromEditor = true
		e.Kind = clip.KindCode
		require.NoError(t, a.Apply(t.Context(), ChangeSet{Inserted: []clip.Entry{e}}))

		entries, err := a.Load(t.Context())
		require.NoError(t, err)
		require.Len(t, entries, 1)
		require.True(t, e.Equal(entries[0]), "got %+v", entries[0])
	})
}

func testEntry(id, content string, micros int64, seq uint64) clip.Entry {
	return clip.Entry{
		ID:        id,
		Content:   content,
		Timestamp: time.UnixMicro(micros),
		Kind:      clip.KindPlain,
		Seq:       seq,
	}
}

func entryIDs(entries []clip.Entry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}
