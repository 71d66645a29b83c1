package backend

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/nissy/kipple-sub002/internal/clip"
)

// SQLiteStore persists entries in a single SQLite table, one row per entry.
// Use ":memory:" for an in-memory database, or a file path for persistent
// storage.
type SQLiteStore struct {
	path string
	mu   sync.Mutex
	db   *sql.DB
}

// NewSQLiteStore opens (or creates) the database and ensures the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("sqlite backend: empty path")
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, IOError("sqlite", "init", fmt.Errorf("open sqlite database: %w", err))
	}

	store := &SQLiteStore{path: dbPath, db: db}
	if err := store.initialize(); err != nil {
		if isNotADatabase(err) && dbPath != ":memory:" {
			if _, err := store.recreateLocked(context.Background()); err != nil {
				_ = db.Close()
				return nil, err
			}
			return store, nil
		}
		_ = db.Close()
		return nil, IOError("sqlite", "init", fmt.Errorf("initialize schema: %w", err))
	}
	return store, nil
}

func (s *SQLiteStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS entries (
		id TEXT PRIMARY KEY,
		content TEXT NOT NULL,
		timestamp REAL NOT NULL,
		is_pinned INTEGER NOT NULL DEFAULT 0,
		source_app TEXT NOT NULL DEFAULT '',
		window_title TEXT NOT NULL DEFAULT '',
		bundle_id TEXT NOT NULL DEFAULT '',
		process_id INTEGER NOT NULL DEFAULT 0,
		is_from_editor INTEGER NOT NULL DEFAULT 0,
		kind TEXT NOT NULL DEFAULT '',
		seq INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_entries_pinned ON entries(is_pinned);
	CREATE INDEX IF NOT EXISTS idx_entries_timestamp ON entries(timestamp);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Name identifies the backend in errors, logs and metrics.
func (s *SQLiteStore) Name() string { return "sqlite" }

// Load returns every stored entry. Row-level corruption clears the table; a
// database file that is not SQLite at all is removed and recreated. Both
// self-heal paths report an empty history, not an error.
func (s *SQLiteStore) Load(ctx context.Context) ([]clip.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, IOError(s.Name(), "load", ErrClosed)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, timestamp, is_pinned, source_app, window_title,
		       bundle_id, process_id, is_from_editor, kind, seq
		FROM entries`)
	if err != nil {
		if isNotADatabase(err) {
			return s.recreateLocked(ctx)
		}
		return nil, IOError(s.Name(), "load", fmt.Errorf("query entries: %w", err))
	}
	defer rows.Close()

	recs, scanErr := scanEntryRows(rows)
	if scanErr == nil {
		entries, decErr := decodeRecords(recs)
		if decErr == nil {
			return entries, nil
		}
		scanErr = decErr
	}

	slog.Warn("sqlite history rows are invalid, clearing table",
		"path", s.path, "error", scanErr)
	if _, err := s.db.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return nil, IOError(s.Name(), "load", fmt.Errorf("clear corrupt table: %w", err))
	}
	return nil, nil
}

// Apply runs the whole diff in one transaction.
func (s *SQLiteStore) Apply(ctx context.Context, cs ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return IOError(s.Name(), "apply", ErrClosed)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return IOError(s.Name(), "apply", fmt.Errorf("begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	upsert := `
		INSERT INTO entries (id, content, timestamp, is_pinned, source_app,
			window_title, bundle_id, process_id, is_from_editor, kind, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			timestamp = excluded.timestamp,
			is_pinned = excluded.is_pinned,
			source_app = excluded.source_app,
			window_title = excluded.window_title,
			bundle_id = excluded.bundle_id,
			process_id = excluded.process_id,
			is_from_editor = excluded.is_from_editor,
			kind = excluded.kind,
			seq = excluded.seq`

	for _, e := range cs.Inserted {
		if err := execUpsert(ctx, tx, upsert, e); err != nil {
			return IOError(s.Name(), "apply", err)
		}
	}
	for _, e := range cs.Updated {
		if err := execUpsert(ctx, tx, upsert, e); err != nil {
			return IOError(s.Name(), "apply", err)
		}
	}
	for _, id := range cs.RemovedIDs {
		if _, err := tx.ExecContext(ctx, "DELETE FROM entries WHERE id = ?", id); err != nil {
			return IOError(s.Name(), "apply", fmt.Errorf("delete entry %s: %w", id, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return IOError(s.Name(), "apply", fmt.Errorf("commit: %w", err))
	}
	return nil
}

// Clear empties the table. Clearing twice is a no-op.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return IOError(s.Name(), "clear", ErrClosed)
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM entries"); err != nil {
		return IOError(s.Name(), "clear", fmt.Errorf("clear entries: %w", err))
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// recreateLocked throws away a file that SQLite refuses to open as a database
// and starts over with an empty schema. Callers hold s.mu.
func (s *SQLiteStore) recreateLocked(ctx context.Context) ([]clip.Entry, error) {
	slog.Warn("sqlite history file is not a database, recreating it", "path", s.path)

	_ = s.db.Close()
	if s.path != ":memory:" {
		if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
			return nil, IOError(s.Name(), "load", fmt.Errorf("remove corrupt database: %w", err))
		}
	}
	db, err := sql.Open("sqlite", s.path)
	if err != nil {
		return nil, IOError(s.Name(), "load", fmt.Errorf("reopen database: %w", err))
	}
	s.db = db
	if err := s.initialize(); err != nil {
		return nil, IOError(s.Name(), "load", fmt.Errorf("reinitialize schema: %w", err))
	}
	return nil, nil
}

func execUpsert(ctx context.Context, tx *sql.Tx, query string, e clip.Entry) error {
	r := encodeRecord(e)
	if _, err := tx.ExecContext(ctx, query,
		r.ID, r.Content, r.Timestamp, boolToInt(r.IsPinned), r.SourceApp,
		r.WindowTitle, r.BundleID, r.ProcessID, boolToInt(r.IsFromEditor),
		r.Kind, int64(r.Seq),
	); err != nil {
		return fmt.Errorf("upsert entry %s: %w", r.ID, err)
	}
	return nil
}

func scanEntryRows(rows *sql.Rows) ([]record, error) {
	var recs []record
	for rows.Next() {
		var r record
		var pinned, fromEditor int
		var seq int64
		if err := rows.Scan(&r.ID, &r.Content, &r.Timestamp, &pinned, &r.SourceApp,
			&r.WindowTitle, &r.BundleID, &r.ProcessID, &fromEditor, &r.Kind, &seq); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		r.IsPinned = pinned != 0
		r.IsFromEditor = fromEditor != 0
		r.Seq = uint64(seq)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return recs, nil
}

// SQLITE_NOTADB surfaces as this message when the file exists but is not a
// SQLite database.
func isNotADatabase(err error) bool {
	return err != nil && strings.Contains(err.Error(), "not a database")
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
