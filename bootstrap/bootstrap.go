// Package bootstrap holds the one-off data maintenance jobs: stamping legacy documents
// with an owner and seeding the shared system defaults.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"

	"storyforge/auth"
	"storyforge/models"
	"storyforge/repository"
)

// ErrInvalidUserID is returned when a migration target would be refused as a caller id.
var ErrInvalidUserID = errors.New("invalid user id")

// MigrationResult reports how many legacy documents a migration found and changed.
type MigrationResult struct {
	Matched  int64 `json:"matched"`
	Modified int64 `json:"modified"`
}

// SeedResult describes what CreateSystemResources did for one kind.
type SeedResult struct {
	Kind       models.Kind `json:"kind"`
	Collection string      `json:"collection"`
	Existing   int64       `json:"existing"`
	Inserted   int         `json:"inserted"`
}

// Skipped reports whether the kind already had system resources.
func (r SeedResult) Skipped() bool { return r.Existing > 0 }

// SeedReport lists one result per seeded kind.
type SeedReport []SeedResult

// Inserted is the total number of documents inserted.
func (r SeedReport) Inserted() int {
	n := 0
	for _, res := range r {
		n += res.Inserted
	}
	return n
}

// Option customizes a Bootstrapper.
type Option func(*Bootstrapper)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Bootstrapper) { b.now = now }
}

// WithDataset replaces the embedded system resources.
func WithDataset(ds Dataset) Option {
	return func(b *Bootstrapper) { b.dataset = ds }
}

// Bootstrapper runs maintenance jobs against a store.
type Bootstrapper struct {
	store       repository.Store
	collections models.Collections
	log         zerolog.Logger
	now         func() time.Time
	dataset     Dataset
}

// New creates a Bootstrapper. Seeding uses the embedded dataset unless WithDataset is given.
func New(store repository.Store, collections models.Collections, log zerolog.Logger, opts ...Option) *Bootstrapper {
	b := &Bootstrapper{
		store:       store,
		collections: collections,
		log:         log.With().Str("component", "bootstrap").Logger(),
		now:         time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// CollectionNames lists the configured collections in kind order.
func (b *Bootstrapper) CollectionNames() []string {
	var out []string
	for _, kind := range models.AllKinds {
		if name, err := b.collections.Name(kind); err == nil {
			out = append(out, name)
		}
	}
	return out
}

// MigrateResourcesToUser stamps every document in collection that has no owner with userID
// and fresh timestamps. Documents that already have an owner are left alone, so a second run
// matches nothing.
func (b *Bootstrapper) MigrateResourcesToUser(ctx context.Context, collection, userID string) (MigrationResult, error) {
	if err := auth.ValidateUserID(userID); err != nil {
		return MigrationResult{}, fmt.Errorf("%w: %v", ErrInvalidUserID, err)
	}
	if collection == "" {
		return MigrationResult{}, repository.ErrInvalidCollection
	}

	coll, err := b.store.Collection(ctx, collection)
	if err != nil {
		return MigrationResult{}, err
	}

	now := b.now().UTC().Truncate(time.Millisecond)
	owner := models.UserOwner(userID)
	res, err := coll.UpdateMany(ctx,
		bson.M{models.FieldOwnerID: bson.M{"$exists": false}},
		bson.M{"$set": bson.M{
			models.FieldOwnerID:   owner.Key(),
			models.FieldCreatedBy: owner.Key(),
			models.FieldCreatedAt: now,
			models.FieldUpdatedAt: now,
		}},
	)
	if err != nil {
		return MigrationResult{}, fmt.Errorf("migrate %s: %w", collection, err)
	}

	b.log.Info().
		Str("collection", collection).
		Str("owner", owner.String()).
		Int64("matched", res.Matched).
		Int64("modified", res.Modified).
		Msg("migrated unowned resources")
	return MigrationResult{Matched: res.Matched, Modified: res.Modified}, nil
}

// CreateSystemResources inserts the shared defaults for every kind that has none yet.
// Kinds that already hold system resources are skipped, so existing defaults are never
// overwritten or duplicated.
func (b *Bootstrapper) CreateSystemResources(ctx context.Context) (SeedReport, error) {
	ds := b.dataset
	if ds == nil {
		var err error
		if ds, err = SystemResources(); err != nil {
			return nil, err
		}
	}

	repo := repository.New(b.store, b.collections, b.log, repository.WithClock(b.now))
	system := models.SystemOwner()

	var report SeedReport
	for _, kind := range ds.Kinds() {
		name, err := b.collections.Name(kind)
		if err != nil {
			b.log.Warn().Str("kind", string(kind)).Msg("no collection configured, skipping seed")
			continue
		}

		existing, err := repo.Count(ctx, name, nil, system)
		if err != nil {
			return report, fmt.Errorf("count system %s: %w", kind, err)
		}
		result := SeedResult{Kind: kind, Collection: name, Existing: existing}
		if existing > 0 {
			b.log.Info().Str("collection", name).Int64("existing", existing).Msg("system resources already present, skipping")
			report = append(report, result)
			continue
		}

		created, err := repo.CreateSystemResourceBatch(ctx, name, ds[kind])
		if err != nil {
			return report, fmt.Errorf("seed system %s: %w", kind, err)
		}
		result.Inserted = len(created)
		b.log.Info().Str("collection", name).Int("inserted", result.Inserted).Msg("system resources created")
		report = append(report, result)
	}
	return report, nil
}
