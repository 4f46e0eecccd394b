package db

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
)

var (
	// ErrNoDocuments is returned by FindOne when nothing matches.
	ErrNoDocuments = errors.New("no documents in result")
	// ErrDuplicateKey is returned when an insert reuses an existing _id.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrStorageUnavailable means neither the primary database nor the fallback could be initialized.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// FindOptions are passed through to the backend unchanged.
// Without Sort the result order is backend defined.
type FindOptions struct {
	Sort  bson.D
	Limit int64
	Skip  int64
}

// UpdateResult reports how many documents an update matched and changed.
type UpdateResult struct {
	Matched  int64
	Modified int64
}

// Collection is the document-store surface shared by the MongoDB backend and the in-memory fallback.
// Filters support field equality, $exists, $or and $and; updates support $set.
// Ids appear in documents and filters as ID values regardless of backend.
type Collection interface {
	Find(ctx context.Context, filter bson.M, opts FindOptions) ([]bson.M, error)
	FindOne(ctx context.Context, filter bson.M) (bson.M, error)
	InsertOne(ctx context.Context, doc bson.M) (ID, error)
	InsertMany(ctx context.Context, docs []bson.M) ([]ID, error)
	UpdateOne(ctx context.Context, filter, update bson.M) (int64, error)
	UpdateMany(ctx context.Context, filter, update bson.M) (UpdateResult, error)
	DeleteOne(ctx context.Context, filter bson.M) (int64, error)
	CountDocuments(ctx context.Context, filter bson.M) (int64, error)
}

// IndexSpec describes a secondary index the real backend should ensure at startup.
type IndexSpec struct {
	Collection string
	Keys       bson.D
}

// Backend is one storage implementation.
type Backend interface {
	idFormat
	Collection(name string) Collection
	EnsureIndexes(ctx context.Context, specs []IndexSpec) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
