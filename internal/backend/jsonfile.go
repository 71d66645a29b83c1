package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/nissy/kipple-sub002/internal/clip"
)

// JSONFileStore persists the entry set as one indented JSON array. Writes go
// through a temporary file and an atomic rename, so a crash mid-save leaves
// either the old file or the new file, never a torn one.
type JSONFileStore struct {
	path    string
	mu      sync.Mutex
	records map[string]record
	loaded  bool
	closed  bool
}

// NewJSONFileStore creates a file-backed store at path. The parent directory
// is created if needed; the file itself appears on first Apply.
func NewJSONFileStore(path string) (*JSONFileStore, error) {
	if path == "" {
		return nil, fmt.Errorf("json file backend: empty path")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, IOError("jsonfile", "init", fmt.Errorf("create data directory: %w", err))
		}
	}
	return &JSONFileStore{path: path, records: make(map[string]record)}, nil
}

// Name identifies the backend in errors, logs and metrics.
func (s *JSONFileStore) Name() string { return "jsonfile" }

// Load reads the file into memory and returns the decoded entries. A missing
// file is an empty history. Undecodable bytes are corruption: the file is
// cleared and Load reports an empty history rather than an error.
func (s *JSONFileStore) Load(ctx context.Context) ([]clip.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, IOError(s.Name(), "load", ErrClosed)
	}

	if err := s.loadLocked(); err != nil {
		if IsDecodeFailure(err) {
			slog.Warn("clipboard history file is corrupt, clearing it",
				"path", s.path, "error", err)
			if healErr := s.saveLocked(); healErr != nil {
				return nil, IOError(s.Name(), "load", fmt.Errorf("clear corrupt file: %w", healErr))
			}
			return nil, nil
		}
		return nil, err
	}

	entries, err := decodeRecords(s.recordList())
	if err != nil {
		slog.Warn("clipboard history file holds invalid records, clearing it",
			"path", s.path, "error", err)
		s.records = make(map[string]record)
		if healErr := s.saveLocked(); healErr != nil {
			return nil, IOError(s.Name(), "load", fmt.Errorf("clear corrupt file: %w", healErr))
		}
		return nil, nil
	}
	return entries, nil
}

// Apply folds the diff into the in-memory set and rewrites the file once.
// An Apply before any Load reads the file first so a pre-existing history is
// extended, not overwritten.
func (s *JSONFileStore) Apply(ctx context.Context, cs ChangeSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return IOError(s.Name(), "apply", ErrClosed)
	}
	if err := s.loadLocked(); err != nil && !IsDecodeFailure(err) {
		return err
	}

	before := s.records
	next := make(map[string]record, len(before)+len(cs.Inserted))
	for id, r := range before {
		next[id] = r
	}
	for _, e := range cs.Inserted {
		next[e.ID] = encodeRecord(e)
	}
	for _, e := range cs.Updated {
		next[e.ID] = encodeRecord(e)
	}
	for _, id := range cs.RemovedIDs {
		delete(next, id)
	}

	s.records = next
	if err := s.saveLocked(); err != nil {
		s.records = before
		return IOError(s.Name(), "apply", err)
	}
	return nil
}

// Clear empties the set and the file. Clearing twice is a no-op.
func (s *JSONFileStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return IOError(s.Name(), "clear", ErrClosed)
	}

	before := s.records
	s.records = make(map[string]record)
	if err := s.saveLocked(); err != nil {
		s.records = before
		return IOError(s.Name(), "clear", err)
	}
	return nil
}

// Close marks the store unusable. The file already reflects the last
// successful Apply, so there is nothing to flush.
func (s *JSONFileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// loadLocked reads the file into s.records once per store lifetime. Callers
// hold s.mu.
func (s *JSONFileStore) loadLocked() error {
	if s.loaded {
		return nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.loaded = true
			return nil
		}
		return IOError(s.Name(), "load", fmt.Errorf("read history file: %w", err))
	}

	var recs []record
	if err := json.Unmarshal(data, &recs); err != nil {
		s.records = make(map[string]record)
		s.loaded = true
		return DecodeError(s.Name(), "load", fmt.Errorf("unmarshal history file: %w", err))
	}

	s.records = make(map[string]record, len(recs))
	for _, r := range recs {
		s.records[r.ID] = r
	}
	s.loaded = true
	return nil
}

// saveLocked writes the current set atomically. Callers hold s.mu.
func (s *JSONFileStore) saveLocked() error {
	data, err := json.MarshalIndent(s.recordList(), "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}

	tempPath := s.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return fmt.Errorf("write temporary history file: %w", err)
	}
	if err := os.Rename(tempPath, s.path); err != nil {
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}

// recordList returns the set in a stable order so consecutive saves of the
// same state produce identical files.
func (s *JSONFileStore) recordList() []record {
	recs := make([]record, 0, len(s.records))
	for _, r := range s.records {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].Seq != recs[j].Seq {
			return recs[i].Seq > recs[j].Seq
		}
		return recs[i].ID < recs[j].ID
	})
	return recs
}
