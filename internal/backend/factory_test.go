package backend

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromDSN_RoutesSchemes(t *testing.T) {
	tests := []struct {
		name string
		dsn  string
		want string
	}{
		{"bare path", filepath.Join(t.TempDir(), "h.json"), "jsonfile"},
		{"file scheme", "file:" + filepath.Join(t.TempDir(), "h.json"), "jsonfile"},
		{"memory", "memory:", "memory"},
		{"mem alias", "mem:", "memory"},
		{"inmem alias", "inmem:", "memory"},
		{"sqlite memory", "sqlite::memory:", "sqlite"},
		{"sqlite file", "sqlite:" + filepath.Join(t.TempDir(), "h.db"), "sqlite"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := FromDSN(tt.dsn)
			require.NoError(t, err)
			defer a.Close()
			require.Equal(t, tt.want, a.Name())
		})
	}
}

func TestFromDSN_LazyBackendsConstructWithoutServer(t *testing.T) {
	// Postgres and Mongo connect lazily; construction must not dial.
	a, err := FromDSN("postgres://user:pw@localhost:1/db?sslmode=disable")
	require.NoError(t, err)
	require.Equal(t, "postgres", a.Name())
	require.NoError(t, a.Close())

	a, err = FromDSN("mongodb://localhost:1/kipple_test")
	require.NoError(t, err)
	require.Equal(t, "mongo", a.Name())
	require.NoError(t, a.Close())

	a, err = FromDSN("redis://localhost:1/0")
	require.NoError(t, err)
	require.Equal(t, "redis", a.Name())
	require.NoError(t, a.Close())
}

func TestFromDSN_UnsupportedScheme_ReturnsError(t *testing.T) {
	_, err := FromDSN("carrier-pigeon://coop/7")
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrUnsupportedScheme))
}

func TestFromDSN_EmptyDSN_ReturnsError(t *testing.T) {
	_, err := FromDSN("   ")
	require.Error(t, err)
}

func TestRegisterFactory_OverridesScheme(t *testing.T) {
	called := false
	RegisterFactory("teststub", func(dsn string) (Adapter, error) {
		called = true
		return NewMemoryStore(), nil
	})

	a, err := FromDSN("teststub://whatever")
	require.NoError(t, err)
	defer a.Close()
	require.True(t, called)
	require.Equal(t, "memory", a.Name())
}
