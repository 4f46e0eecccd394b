// Package repository is the only path application code uses to read or write resources.
// It applies the ownership rules uniformly across collections: callers see their own
// resources and system defaults, and may change only their own.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"storyforge/db"
	"storyforge/models"
)

// Store is the storage surface the repository needs. *db.Manager implements it.
type Store interface {
	Collection(ctx context.Context, name string) (db.Collection, error)
	ParseID(ctx context.Context, s string) (db.ID, error)
}

// FindOptions pass sort, limit and skip through to the backend.
type FindOptions = db.FindOptions

// Option customizes a DataAccessLayer.
type Option func(*DataAccessLayer)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *DataAccessLayer) { r.now = now }
}

// DataAccessLayer is the ownership-aware resource repository.
type DataAccessLayer struct {
	store       Store
	collections models.Collections
	log         zerolog.Logger
	now         func() time.Time
}

// New creates a repository over store. collections lists the kinds GetUserStats reports on.
func New(store Store, collections models.Collections, log zerolog.Logger, opts ...Option) *DataAccessLayer {
	r := &DataAccessLayer{
		store:       store,
		collections: collections,
		log:         log.With().Str("component", "repository").Logger(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Collections returns the configured kind to collection mapping.
func (r *DataAccessLayer) Collections() models.Collections {
	return r.collections
}

// ParseID turns a client supplied id string into an ID of the active backend.
func (r *DataAccessLayer) ParseID(ctx context.Context, s string) (db.ID, error) {
	return r.store.ParseID(ctx, s)
}

// timestamp is truncated to milliseconds, the resolution the document database stores.
func (r *DataAccessLayer) timestamp() time.Time {
	return r.now().UTC().Truncate(time.Millisecond)
}

func (r *DataAccessLayer) collection(ctx context.Context, name string, owner models.Owner) (db.Collection, error) {
	if owner.IsZero() {
		return nil, ErrMissingOwnerContext
	}
	if name == "" {
		return nil, ErrInvalidCollection
	}
	return r.store.Collection(ctx, name)
}

// Create stores data as a new resource owned by owner and returns it with its generated id.
// Common attributes present in data are ignored.
func (r *DataAccessLayer) Create(ctx context.Context, collection string, data bson.M, owner models.Owner) (*models.Resource, error) {
	coll, err := r.collection(ctx, collection, owner)
	if err != nil {
		return nil, err
	}

	now := r.timestamp()
	res := &models.Resource{
		Owner:     owner,
		CreatedBy: owner.Key(),
		CreatedAt: now,
		UpdatedAt: now,
		Fields:    payload(data),
	}

	id, err := coll.InsertOne(ctx, res.Document())
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", collection, err)
	}
	res.ID = id

	r.log.Debug().Str("collection", collection).Str("owner", owner.String()).Str("id", id.String()).Msg("resource created")
	return res, nil
}

// CreateSystemResource creates a shared, read-only default. Not reachable from user routes.
func (r *DataAccessLayer) CreateSystemResource(ctx context.Context, collection string, data bson.M) (*models.Resource, error) {
	return r.Create(ctx, collection, data, models.SystemOwner())
}

// CreateSystemResourceBatch inserts several system defaults in one round trip.
func (r *DataAccessLayer) CreateSystemResourceBatch(ctx context.Context, collection string, items []bson.M) ([]*models.Resource, error) {
	owner := models.SystemOwner()
	coll, err := r.collection(ctx, collection, owner)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	now := r.timestamp()
	resources := make([]*models.Resource, 0, len(items))
	docs := make([]bson.M, 0, len(items))
	for _, item := range items {
		res := &models.Resource{
			Owner:     owner,
			CreatedBy: owner.Key(),
			CreatedAt: now,
			UpdatedAt: now,
			Fields:    payload(item),
		}
		resources = append(resources, res)
		docs = append(docs, res.Document())
	}

	ids, err := coll.InsertMany(ctx, docs)
	if err != nil {
		return nil, fmt.Errorf("insert into %s: %w", collection, err)
	}
	for i, id := range ids {
		resources[i].ID = id
	}
	return resources, nil
}

// Find lists resources matching filter that owner may see.
// Without opts.Sort the order is up to the backend.
func (r *DataAccessLayer) Find(ctx context.Context, collection string, filter bson.M, owner models.Owner, opts FindOptions) ([]*models.Resource, error) {
	coll, err := r.collection(ctx, collection, owner)
	if err != nil {
		return nil, err
	}

	docs, err := coll.Find(ctx, withVisibility(filter, owner), opts)
	if err != nil {
		return nil, fmt.Errorf("find in %s: %w", collection, err)
	}
	out := make([]*models.Resource, 0, len(docs))
	for _, doc := range docs {
		out = append(out, models.ResourceFromDocument(doc))
	}
	return out, nil
}

// FindByID returns one visible resource, or ErrNotFoundOrAccessDenied.
func (r *DataAccessLayer) FindByID(ctx context.Context, collection string, id db.ID, owner models.Owner) (*models.Resource, error) {
	coll, err := r.collection(ctx, collection, owner)
	if err != nil {
		return nil, err
	}
	if id.IsZero() {
		return nil, ErrInvalidIdentifier
	}

	doc, err := coll.FindOne(ctx, withVisibility(bson.M{models.FieldID: id}, owner))
	if err != nil {
		if errors.Is(err, db.ErrNoDocuments) {
			return nil, ErrNotFoundOrAccessDenied
		}
		return nil, fmt.Errorf("find %s in %s: %w", id, collection, err)
	}
	return models.ResourceFromDocument(doc), nil
}

// Update applies patch to a resource owned by owner and returns the refreshed resource.
// The ownership check and the write are one conditional update, so there is no window
// between them. System resources are never matched for ordinary users.
func (r *DataAccessLayer) Update(ctx context.Context, collection string, id db.ID, patch bson.M, owner models.Owner) (*models.Resource, error) {
	coll, err := r.collection(ctx, collection, owner)
	if err != nil {
		return nil, err
	}
	if id.IsZero() {
		return nil, ErrInvalidIdentifier
	}

	set := payload(patch)
	set[models.FieldUpdatedAt] = r.timestamp()

	matched, err := coll.UpdateOne(ctx, ownedBy(id, owner), bson.M{"$set": set})
	if err != nil {
		return nil, fmt.Errorf("update %s in %s: %w", id, collection, err)
	}
	if matched == 0 {
		return nil, ErrNotFoundOrAccessDenied
	}

	r.log.Debug().Str("collection", collection).Str("owner", owner.String()).Str("id", id.String()).Msg("resource updated")
	return r.FindByID(ctx, collection, id, owner)
}

// Delete permanently removes a resource owned by owner.
func (r *DataAccessLayer) Delete(ctx context.Context, collection string, id db.ID, owner models.Owner) error {
	coll, err := r.collection(ctx, collection, owner)
	if err != nil {
		return err
	}
	if id.IsZero() {
		return ErrInvalidIdentifier
	}

	deleted, err := coll.DeleteOne(ctx, ownedBy(id, owner))
	if err != nil {
		return fmt.Errorf("delete %s in %s: %w", id, collection, err)
	}
	if deleted == 0 {
		return ErrNotFoundOrAccessDenied
	}

	r.log.Debug().Str("collection", collection).Str("owner", owner.String()).Str("id", id.String()).Msg("resource deleted")
	return nil
}

// Count returns how many resources matching filter owner may see.
func (r *DataAccessLayer) Count(ctx context.Context, collection string, filter bson.M, owner models.Owner) (int64, error) {
	coll, err := r.collection(ctx, collection, owner)
	if err != nil {
		return 0, err
	}
	n, err := coll.CountDocuments(ctx, withVisibility(filter, owner))
	if err != nil {
		return 0, fmt.Errorf("count in %s: %w", collection, err)
	}
	return n, nil
}

// GetUserStats counts visible resources (own plus system) for every configured kind.
func (r *DataAccessLayer) GetUserStats(ctx context.Context, owner models.Owner) (map[models.Kind]int64, error) {
	if owner.IsZero() {
		return nil, ErrMissingOwnerContext
	}
	stats := make(map[models.Kind]int64, len(r.collections))
	for _, kind := range models.AllKinds {
		name, ok := r.collections[kind]
		if !ok {
			continue
		}
		n, err := r.Count(ctx, name, nil, owner)
		if err != nil {
			return nil, err
		}
		stats[kind] = n
	}
	return stats, nil
}

// payload copies data without the attributes only the repository may set.
func payload(data bson.M) bson.M {
	out := make(bson.M, len(data))
	for k, v := range data {
		if models.IsReservedField(k) {
			continue
		}
		out[k] = v
	}
	return out
}
