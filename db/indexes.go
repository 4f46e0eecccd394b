package db

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the requested secondary indexes. Existing indexes with the
// same keys are left alone by the server. Every spec is attempted; failures are joined.
func (b *MongoBackend) EnsureIndexes(ctx context.Context, specs []IndexSpec) error {
	byCollection := make(map[string][]mongo.IndexModel)
	var order []string
	for _, spec := range specs {
		if _, ok := byCollection[spec.Collection]; !ok {
			order = append(order, spec.Collection)
		}
		byCollection[spec.Collection] = append(byCollection[spec.Collection], mongo.IndexModel{
			Keys:    spec.Keys,
			Options: options.Index(),
		})
	}

	var errs []error
	for _, name := range order {
		if _, err := b.database.Collection(name).Indexes().CreateMany(ctx, byCollection[name]); err != nil {
			errs = append(errs, fmt.Errorf("create indexes on %s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}
