package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBackend stores documents in a MongoDB database.
type MongoBackend struct {
	objectIDFormat

	client   *mongo.Client
	database *mongo.Database
}

// DialMongo connects to uri and verifies the connection with a ping, both bounded by timeout.
func DialMongo(ctx context.Context, uri, database string, timeout time.Duration) (*MongoBackend, error) {
	if uri == "" {
		return nil, errors.New("MONGODB_URI not set")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &MongoBackend{client: client, database: client.Database(database)}, nil
}

func (b *MongoBackend) Collection(name string) Collection {
	return &mongoCollection{coll: b.database.Collection(name)}
}

func (b *MongoBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx, nil)
}

// Close closes the MongoDB connection
func (b *MongoBackend) Close(ctx context.Context) error {
	if b.client == nil {
		return nil
	}
	return b.client.Disconnect(ctx)
}

// Drop removes the whole database. Used by integration tests.
func (b *MongoBackend) Drop(ctx context.Context) error {
	return b.database.Drop(ctx)
}

type mongoCollection struct {
	coll *mongo.Collection
}

func (c *mongoCollection) Find(ctx context.Context, filter bson.M, opts FindOptions) ([]bson.M, error) {
	native, err := toNative(filter)
	if err != nil {
		return nil, err
	}

	findOpts := options.Find()
	if len(opts.Sort) > 0 {
		findOpts.SetSort(opts.Sort)
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(opts.Limit)
	}
	if opts.Skip > 0 {
		findOpts.SetSkip(opts.Skip)
	}

	cursor, err := c.coll.Find(ctx, native, findOpts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]bson.M, 0, len(docs))
	for _, doc := range docs {
		out = append(out, fromNative(doc).(bson.M))
	}
	return out, nil
}

func (c *mongoCollection) FindOne(ctx context.Context, filter bson.M) (bson.M, error) {
	native, err := toNative(filter)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := c.coll.FindOne(ctx, native).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNoDocuments
		}
		return nil, err
	}
	return fromNative(doc).(bson.M), nil
}

func (c *mongoCollection) InsertOne(ctx context.Context, doc bson.M) (ID, error) {
	native, err := toNative(doc)
	if err != nil {
		return ID{}, err
	}
	result, err := c.coll.InsertOne(ctx, native)
	if err != nil {
		return ID{}, translateWriteError(err)
	}
	return insertedID(result.InsertedID)
}

func (c *mongoCollection) InsertMany(ctx context.Context, docs []bson.M) ([]ID, error) {
	if len(docs) == 0 {
		return nil, nil
	}
	natives := make([]interface{}, 0, len(docs))
	for _, doc := range docs {
		native, err := toNative(doc)
		if err != nil {
			return nil, err
		}
		natives = append(natives, native)
	}
	result, err := c.coll.InsertMany(ctx, natives)
	if err != nil {
		return nil, translateWriteError(err)
	}
	ids := make([]ID, 0, len(result.InsertedIDs))
	for _, raw := range result.InsertedIDs {
		id, err := insertedID(raw)
		if err != nil {
			return ids, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (c *mongoCollection) UpdateOne(ctx context.Context, filter, update bson.M) (int64, error) {
	nf, nu, err := nativePair(filter, update)
	if err != nil {
		return 0, err
	}
	result, err := c.coll.UpdateOne(ctx, nf, nu)
	if err != nil {
		return 0, translateWriteError(err)
	}
	return result.MatchedCount, nil
}

func (c *mongoCollection) UpdateMany(ctx context.Context, filter, update bson.M) (UpdateResult, error) {
	nf, nu, err := nativePair(filter, update)
	if err != nil {
		return UpdateResult{}, err
	}
	result, err := c.coll.UpdateMany(ctx, nf, nu)
	if err != nil {
		return UpdateResult{}, translateWriteError(err)
	}
	return UpdateResult{Matched: result.MatchedCount, Modified: result.ModifiedCount}, nil
}

func (c *mongoCollection) DeleteOne(ctx context.Context, filter bson.M) (int64, error) {
	native, err := toNative(filter)
	if err != nil {
		return 0, err
	}
	result, err := c.coll.DeleteOne(ctx, native)
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

func (c *mongoCollection) CountDocuments(ctx context.Context, filter bson.M) (int64, error) {
	native, err := toNative(filter)
	if err != nil {
		return 0, err
	}
	return c.coll.CountDocuments(ctx, native)
}

func nativePair(filter, update bson.M) (interface{}, interface{}, error) {
	nf, err := toNative(filter)
	if err != nil {
		return nil, nil, err
	}
	nu, err := toNative(update)
	if err != nil {
		return nil, nil, err
	}
	return nf, nu, nil
}

func insertedID(raw interface{}) (ID, error) {
	if oid, ok := raw.(primitive.ObjectID); ok {
		return ID{value: oid.Hex()}, nil
	}
	return ID{}, fmt.Errorf("unexpected inserted id type %T", raw)
}

func translateWriteError(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %v", ErrDuplicateKey, err)
	}
	return err
}

// toNative replaces ID values with ObjectIDs. A nil document becomes an empty filter.
func toNative(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case nil:
		return bson.M{}, nil
	case ID:
		oid, err := primitive.ObjectIDFromHex(t.value)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidIdentifier, t.value)
		}
		return oid, nil
	case bson.M:
		return nativeDoc(t)
	case map[string]interface{}:
		return nativeDoc(bson.M(t))
	case bson.A:
		return nativeSlice(t)
	case []interface{}:
		return nativeSlice(t)
	case []bson.M:
		out := make(bson.A, 0, len(t))
		for _, d := range t {
			n, err := nativeDoc(d)
			if err != nil {
				return nil, err
			}
			out = append(out, n)
		}
		return out, nil
	}
	return v, nil
}

func nativeDoc(doc bson.M) (bson.M, error) {
	out := make(bson.M, len(doc))
	for k, v := range doc {
		n, err := toNative(v)
		if err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, nil
}

func nativeSlice(in []interface{}) (bson.A, error) {
	out := make(bson.A, 0, len(in))
	for _, v := range in {
		n, err := toNative(v)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// fromNative converts driver values back into the shapes the fallback store produces.
func fromNative(v interface{}) interface{} {
	switch t := v.(type) {
	case primitive.ObjectID:
		return ID{value: t.Hex()}
	case primitive.DateTime:
		return t.Time().UTC()
	case bson.M:
		out := make(bson.M, len(t))
		for k, val := range t {
			out[k] = fromNative(val)
		}
		return out
	case bson.D:
		out := make(bson.M, len(t))
		for _, e := range t {
			out[e.Key] = fromNative(e.Value)
		}
		return out
	case bson.A:
		out := make(bson.A, len(t))
		for i, val := range t {
			out[i] = fromNative(val)
		}
		return out
	case int32:
		return int64(t)
	}
	return v
}
