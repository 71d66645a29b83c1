package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nissy/kipple-sub002/internal/clip"
)

const (
	redisEntriesKey       = "kipple:entries"
	redisOperationTimeout = 5 * time.Second
)

// RedisStore persists entries in a single hash: field = entry id, value = the
// JSON record. A diff becomes one MULTI/EXEC pipeline, so concurrent clients
// of the same server never observe it half-applied.
type RedisStore struct {
	client *redis.Client
	key    string
}

// NewRedisStore parses a redis:// DSN and pings lazily (the first operation
// connects).
func NewRedisStore(dsn string) (*RedisStore, error) {
	opts, err := redis.ParseURL(dsn)
	if err != nil {
		return nil, fmt.Errorf("redis backend: parse dsn: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts), key: redisEntriesKey}, nil
}

// Name identifies the backend in errors, logs and metrics.
func (s *RedisStore) Name() string { return "redis" }

// Load returns every stored entry. Hash values that do not decode into valid
// records are corruption: the hash is deleted and Load reports an empty
// history.
func (s *RedisStore) Load(ctx context.Context) ([]clip.Entry, error) {
	opCtx, cancel := context.WithTimeout(ctx, redisOperationTimeout)
	defer cancel()

	fields, err := s.client.HGetAll(opCtx, s.key).Result()
	if err != nil {
		return nil, IOError(s.Name(), "load", fmt.Errorf("hgetall: %w", err))
	}

	recs := make([]record, 0, len(fields))
	for id, raw := range fields {
		var r record
		if err := json.Unmarshal([]byte(raw), &r); err != nil {
			return s.healCorrupt(ctx, fmt.Errorf("unmarshal entry %s: %w", id, err))
		}
		recs = append(recs, r)
	}

	entries, err := decodeRecords(recs)
	if err != nil {
		return s.healCorrupt(ctx, err)
	}
	return entries, nil
}

func (s *RedisStore) healCorrupt(ctx context.Context, cause error) ([]clip.Entry, error) {
	slog.Warn("redis history hash is invalid, deleting it", "key", s.key, "error", cause)
	if err := s.Clear(ctx); err != nil {
		return nil, IOError(s.Name(), "load", fmt.Errorf("clear corrupt hash: %w", err))
	}
	return nil, nil
}

// Apply applies the diff as one transactional pipeline.
func (s *RedisStore) Apply(ctx context.Context, cs ChangeSet) error {
	if cs.Empty() {
		return nil
	}
	opCtx, cancel := context.WithTimeout(ctx, redisOperationTimeout)
	defer cancel()

	pipe := s.client.TxPipeline()
	for _, e := range cs.Inserted {
		raw, err := json.Marshal(encodeRecord(e))
		if err != nil {
			return IOError(s.Name(), "apply", fmt.Errorf("marshal entry %s: %w", e.ID, err))
		}
		pipe.HSet(opCtx, s.key, e.ID, raw)
	}
	for _, e := range cs.Updated {
		raw, err := json.Marshal(encodeRecord(e))
		if err != nil {
			return IOError(s.Name(), "apply", fmt.Errorf("marshal entry %s: %w", e.ID, err))
		}
		pipe.HSet(opCtx, s.key, e.ID, raw)
	}
	if len(cs.RemovedIDs) > 0 {
		pipe.HDel(opCtx, s.key, cs.RemovedIDs...)
	}

	if _, err := pipe.Exec(opCtx); err != nil {
		return IOError(s.Name(), "apply", fmt.Errorf("exec pipeline: %w", err))
	}
	return nil
}

// Clear deletes the hash. Deleting a missing key is a no-op.
func (s *RedisStore) Clear(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, redisOperationTimeout)
	defer cancel()

	if err := s.client.Del(opCtx, s.key).Err(); err != nil {
		return IOError(s.Name(), "clear", fmt.Errorf("del: %w", err))
	}
	return nil
}

// Close closes the client connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
