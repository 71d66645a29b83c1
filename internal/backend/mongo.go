package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/nissy/kipple-sub002/internal/clip"
)

const (
	mongoDefaultDatabase  = "kipple"
	mongoCollectionName   = "entries"
	mongoOperationTimeout = 10 * time.Second
)

// MongoStore persists entries as one document per entry, keyed by _id. The
// diff is applied as an ordered bulk write; cross-document atomicity matches
// what the deployment offers (standalone servers apply the bulk in order and
// stop at the first failure).
type MongoStore struct {
	dsn    string
	dbName string

	initOnce sync.Once
	initErr  error
	client   *mongo.Client
	coll     *mongo.Collection
}

// NewMongoStore validates the DSN and returns an unconnected store. The
// database name comes from the DSN path, falling back to "kipple".
func NewMongoStore(dsn string) (*MongoStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("mongo backend: empty dsn")
	}
	dbName := mongoDefaultDatabase
	if u, err := url.Parse(dsn); err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			dbName = name
		}
	}
	return &MongoStore{dsn: dsn, dbName: dbName}, nil
}

// Name identifies the backend in errors, logs and metrics.
func (s *MongoStore) Name() string { return "mongo" }

func (s *MongoStore) ensureReady() error {
	s.initOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), mongoOperationTimeout)
		defer cancel()

		client, err := mongo.Connect(ctx, options.Client().
			ApplyURI(s.dsn).
			SetServerSelectionTimeout(5*time.Second))
		if err != nil {
			s.initErr = err
			return
		}
		s.client = client
		s.coll = client.Database(s.dbName).Collection(mongoCollectionName)
	})
	return s.initErr
}

// Load returns every stored entry. Documents that do not decode into valid
// records are corruption: the collection is emptied and Load reports an
// empty history.
func (s *MongoStore) Load(ctx context.Context) ([]clip.Entry, error) {
	if err := s.ensureReady(); err != nil {
		return nil, IOError(s.Name(), "load", err)
	}
	opCtx, cancel := context.WithTimeout(ctx, mongoOperationTimeout)
	defer cancel()

	cursor, err := s.coll.Find(opCtx, bson.M{})
	if err != nil {
		return nil, IOError(s.Name(), "load", fmt.Errorf("find entries: %w", err))
	}

	var recs []record
	if err := cursor.All(opCtx, &recs); err != nil {
		return s.healCorrupt(ctx, fmt.Errorf("decode documents: %w", err))
	}

	entries, err := decodeRecords(recs)
	if err != nil {
		return s.healCorrupt(ctx, err)
	}
	return entries, nil
}

func (s *MongoStore) healCorrupt(ctx context.Context, cause error) ([]clip.Entry, error) {
	slog.Warn("mongo history documents are invalid, clearing collection",
		"database", s.dbName, "collection", mongoCollectionName, "error", cause)
	if err := s.Clear(ctx); err != nil {
		return nil, IOError(s.Name(), "load", fmt.Errorf("clear corrupt collection: %w", err))
	}
	return nil, nil
}

// Apply applies the diff as one ordered bulk write.
func (s *MongoStore) Apply(ctx context.Context, cs ChangeSet) error {
	if err := s.ensureReady(); err != nil {
		return IOError(s.Name(), "apply", err)
	}
	if cs.Empty() {
		return nil
	}
	opCtx, cancel := context.WithTimeout(ctx, mongoOperationTimeout)
	defer cancel()

	models := make([]mongo.WriteModel, 0, len(cs.Inserted)+len(cs.Updated)+len(cs.RemovedIDs))
	for _, e := range cs.Inserted {
		r := encodeRecord(e)
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": r.ID}).SetReplacement(r).SetUpsert(true))
	}
	for _, e := range cs.Updated {
		r := encodeRecord(e)
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": r.ID}).SetReplacement(r).SetUpsert(true))
	}
	for _, id := range cs.RemovedIDs {
		models = append(models, mongo.NewDeleteOneModel().SetFilter(bson.M{"_id": id}))
	}

	if _, err := s.coll.BulkWrite(opCtx, models, options.BulkWrite().SetOrdered(true)); err != nil {
		return IOError(s.Name(), "apply", fmt.Errorf("bulk write: %w", err))
	}
	return nil
}

// Clear empties the collection. Clearing twice is a no-op.
func (s *MongoStore) Clear(ctx context.Context) error {
	if err := s.ensureReady(); err != nil {
		return IOError(s.Name(), "clear", err)
	}
	opCtx, cancel := context.WithTimeout(ctx, mongoOperationTimeout)
	defer cancel()

	if _, err := s.coll.DeleteMany(opCtx, bson.M{}); err != nil {
		return IOError(s.Name(), "clear", fmt.Errorf("clear entries: %w", err))
	}
	return nil
}

// Close disconnects the client if it was ever connected.
func (s *MongoStore) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoOperationTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}
