package backend

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"

	"github.com/nissy/kipple-sub002/internal/clip"
)

const (
	postgresTableName        = "kipple_entries"
	postgresOperationTimeout = 5 * time.Second
)

// PostgresStore persists entries in a PostgreSQL table, one row per entry.
// The connection and schema are established lazily on first use so that
// constructing the adapter never blocks on the network.
type PostgresStore struct {
	dsn       string
	tableName string

	initOnce sync.Once
	initErr  error
	db       *sql.DB
}

// NewPostgresStore validates the DSN and returns an unconnected store.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("postgres backend: empty dsn")
	}
	return &PostgresStore{dsn: dsn, tableName: postgresTableName}, nil
}

// Name identifies the backend in errors, logs and metrics.
func (s *PostgresStore) Name() string { return "postgres" }

func (s *PostgresStore) ensureReady() error {
	s.initOnce.Do(func() {
		db, err := sql.Open("postgres", s.dsn)
		if err != nil {
			s.initErr = err
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), postgresOperationTimeout)
		defer cancel()

		schema := fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				id TEXT PRIMARY KEY,
				content TEXT NOT NULL,
				ts DOUBLE PRECISION NOT NULL,
				is_pinned BOOLEAN NOT NULL DEFAULT FALSE,
				source_app TEXT NOT NULL DEFAULT '',
				window_title TEXT NOT NULL DEFAULT '',
				bundle_id TEXT NOT NULL DEFAULT '',
				process_id INTEGER NOT NULL DEFAULT 0,
				is_from_editor BOOLEAN NOT NULL DEFAULT FALSE,
				kind TEXT NOT NULL DEFAULT '',
				seq BIGINT NOT NULL DEFAULT 0
			)`, quoteIdentifier(s.tableName))
		if _, err := db.ExecContext(ctx, schema); err != nil {
			_ = db.Close()
			s.initErr = err
			return
		}
		s.db = db
	})
	return s.initErr
}

// Load returns every stored entry. Rows that do not decode into valid
// records are corruption: the table is emptied and Load reports an empty
// history.
func (s *PostgresStore) Load(ctx context.Context) ([]clip.Entry, error) {
	if err := s.ensureReady(); err != nil {
		return nil, IOError(s.Name(), "load", err)
	}
	opCtx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf(`
		SELECT id, content, ts, is_pinned, source_app, window_title,
		       bundle_id, process_id, is_from_editor, kind, seq
		FROM %s`, quoteIdentifier(s.tableName))
	rows, err := s.db.QueryContext(opCtx, query)
	if err != nil {
		return nil, IOError(s.Name(), "load", fmt.Errorf("query entries: %w", err))
	}
	defer rows.Close()

	var recs []record
	for rows.Next() {
		var r record
		var seq int64
		if err := rows.Scan(&r.ID, &r.Content, &r.Timestamp, &r.IsPinned, &r.SourceApp,
			&r.WindowTitle, &r.BundleID, &r.ProcessID, &r.IsFromEditor, &r.Kind, &seq); err != nil {
			return s.healCorrupt(ctx, fmt.Errorf("scan entry: %w", err))
		}
		r.Seq = uint64(seq)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, IOError(s.Name(), "load", fmt.Errorf("iterate rows: %w", err))
	}

	entries, err := decodeRecords(recs)
	if err != nil {
		return s.healCorrupt(ctx, err)
	}
	return entries, nil
}

func (s *PostgresStore) healCorrupt(ctx context.Context, cause error) ([]clip.Entry, error) {
	slog.Warn("postgres history rows are invalid, clearing table",
		"table", s.tableName, "error", cause)
	if err := s.Clear(ctx); err != nil {
		return nil, IOError(s.Name(), "load", fmt.Errorf("clear corrupt table: %w", err))
	}
	return nil, nil
}

// Apply runs the whole diff in one transaction.
func (s *PostgresStore) Apply(ctx context.Context, cs ChangeSet) error {
	if err := s.ensureReady(); err != nil {
		return IOError(s.Name(), "apply", err)
	}
	opCtx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(opCtx, nil)
	if err != nil {
		return IOError(s.Name(), "apply", fmt.Errorf("begin transaction: %w", err))
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	upsert := fmt.Sprintf(`
		INSERT INTO %s (id, content, ts, is_pinned, source_app, window_title,
			bundle_id, process_id, is_from_editor, kind, seq)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id)
		DO UPDATE SET content = EXCLUDED.content, ts = EXCLUDED.ts,
			is_pinned = EXCLUDED.is_pinned, source_app = EXCLUDED.source_app,
			window_title = EXCLUDED.window_title, bundle_id = EXCLUDED.bundle_id,
			process_id = EXCLUDED.process_id, is_from_editor = EXCLUDED.is_from_editor,
			kind = EXCLUDED.kind, seq = EXCLUDED.seq`, quoteIdentifier(s.tableName))

	for _, e := range cs.Inserted {
		if err := pgUpsert(opCtx, tx, upsert, e); err != nil {
			return IOError(s.Name(), "apply", err)
		}
	}
	for _, e := range cs.Updated {
		if err := pgUpsert(opCtx, tx, upsert, e); err != nil {
			return IOError(s.Name(), "apply", err)
		}
	}
	if len(cs.RemovedIDs) > 0 {
		del := fmt.Sprintf("DELETE FROM %s WHERE id = $1", quoteIdentifier(s.tableName))
		for _, id := range cs.RemovedIDs {
			if _, err := tx.ExecContext(opCtx, del, id); err != nil {
				return IOError(s.Name(), "apply", fmt.Errorf("delete entry %s: %w", id, err))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return IOError(s.Name(), "apply", fmt.Errorf("commit: %w", err))
	}
	committed = true
	return nil
}

func pgUpsert(ctx context.Context, tx *sql.Tx, query string, e clip.Entry) error {
	r := encodeRecord(e)
	if _, err := tx.ExecContext(ctx, query,
		r.ID, r.Content, r.Timestamp, r.IsPinned, r.SourceApp, r.WindowTitle,
		r.BundleID, r.ProcessID, r.IsFromEditor, r.Kind, int64(r.Seq),
	); err != nil {
		return fmt.Errorf("upsert entry %s: %w", r.ID, err)
	}
	return nil
}

// Clear empties the table. Clearing twice is a no-op.
func (s *PostgresStore) Clear(ctx context.Context) error {
	if err := s.ensureReady(); err != nil {
		return IOError(s.Name(), "clear", err)
	}
	opCtx, cancel := context.WithTimeout(ctx, postgresOperationTimeout)
	defer cancel()

	query := fmt.Sprintf("DELETE FROM %s", quoteIdentifier(s.tableName))
	if _, err := s.db.ExecContext(opCtx, query); err != nil {
		return IOError(s.Name(), "clear", fmt.Errorf("clear entries: %w", err))
	}
	return nil
}

// Close closes the connection pool if it was ever opened.
func (s *PostgresStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func quoteIdentifier(identifier string) string {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return `""`
	}
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}
