package backend

import (
	"fmt"
	"net/url"
	"strings"
)

// FromDSN constructs the adapter a DSN names. Registered factories are
// consulted first, then the built-in routing:
//
//	(no scheme), file:  JSON file store on the given path
//	memory, mem, inmem  in-process store
//	sqlite:             SQLite database on the given path (":memory:" works)
//	postgres(ql):       PostgreSQL, DSN passed through
//	mongodb(+srv):      MongoDB, DSN passed through
//	redis(s):           Redis, DSN passed through
func FromDSN(dsn string) (Adapter, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("backend: empty dsn")
	}
	parsed, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("backend: parse dsn: %w", err)
	}
	scheme := normalizeScheme(parsed.Scheme)

	if factory, ok := lookupFactory(scheme); ok {
		return factory(dsn)
	}

	switch scheme {
	case "", "file":
		path, err := dsnPath(parsed, dsn)
		if err != nil {
			return nil, err
		}
		return NewJSONFileStore(path)
	case "memory", "mem", "inmem":
		return NewMemoryStore(), nil
	case "sqlite":
		path, err := dsnPath(parsed, dsn)
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(path)
	case "postgres", "postgresql":
		return NewPostgresStore(dsn)
	case "mongodb", "mongodb+srv":
		return NewMongoStore(dsn)
	case "redis", "rediss":
		return NewRedisStore(dsn)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}
}

// dsnPath extracts the filesystem path from a file-style DSN. A DSN with no
// scheme is taken verbatim.
func dsnPath(parsed *url.URL, raw string) (string, error) {
	if strings.TrimSpace(parsed.Scheme) == "" {
		if strings.TrimSpace(raw) == "" {
			return "", fmt.Errorf("backend: empty path in dsn")
		}
		return strings.TrimSpace(raw), nil
	}
	path := strings.TrimSpace(parsed.Path)
	if path == "" {
		path = strings.TrimSpace(parsed.Opaque)
	}
	if path == "" {
		path = strings.TrimSpace(parsed.Host)
	}
	if path == "" {
		return "", fmt.Errorf("backend: no path in dsn %q", raw)
	}
	return path, nil
}
