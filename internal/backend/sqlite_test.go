package backend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nissy/kipple-sub002/internal/clip"
)

func TestSQLiteStore_FilePersistsAcrossInstances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s1, err := NewSQLiteStore(path)
	require.NoError(t, err)
	e := testEntry("a", "persisted", 5000, 3)
	require.NoError(t, s1.Apply(t.Context(), ChangeSet{Inserted: []clip.Entry{e}}))
	require.NoError(t, s1.Close())

	s2, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s2.Close()

	entries, err := s2.Load(t.Context())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.True(t, e.Equal(entries[0]))
}

func TestSQLiteStore_GarbageFile_RecreatedEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	require.NoError(t, os.WriteFile(path, []byte("definitely not sqlite"), 0o644))

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	entries, err := s.Load(t.Context())
	require.NoError(t, err)
	require.Empty(t, entries)

	// And the recreated database is usable.
	require.NoError(t, s.Apply(t.Context(), ChangeSet{Inserted: []clip.Entry{testEntry("a", "x", 1, 1)}}))
	entries, err = s.Load(t.Context())
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestSQLiteStore_InvalidRow_ClearsTable(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	defer s.Close()

	// Bypass Apply to plant a row that decodes into an invalid record.
	_, err = s.db.ExecContext(t.Context(),
		`INSERT INTO entries (id, content, timestamp, seq) VALUES ('', 'ghost', 1.0, 1)`)
	require.NoError(t, err)

	entries, err := s.Load(t.Context())
	require.NoError(t, err)
	require.Empty(t, entries)

	entries, err = s.Load(t.Context())
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestSQLiteStore_UsedAfterClose_ReturnsError(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Load(t.Context())
	require.Error(t, err)
	require.True(t, IsIOFailure(err))
}
