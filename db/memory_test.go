package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func newTestCollection(t *testing.T, seed ...bson.M) Collection {
	t.Helper()
	b, err := NewMemoryBackend(map[string][]bson.M{"characters": seed})
	require.NoError(t, err)
	return b.Collection("characters")
}

func TestMemoryInsertAndFind(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t)

	id, err := c.InsertOne(ctx, bson.M{"name": "Luna", "ownerId": "alice"})
	require.NoError(t, err)
	require.False(t, id.IsZero())

	doc, err := c.FindOne(ctx, bson.M{"_id": id})
	require.NoError(t, err)
	assert.Equal(t, "Luna", doc["name"])
	assert.Equal(t, id, doc["_id"])

	_, err = c.FindOne(ctx, bson.M{"name": "nobody"})
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestMemorySeedIDs(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t,
		bson.M{"_id": "seed-luna", "name": "Luna"},
		bson.M{"name": "Sol"},
	)

	doc, err := c.FindOne(ctx, bson.M{"_id": "seed-luna"})
	require.NoError(t, err)
	assert.Equal(t, "Luna", doc["name"])

	_, err = c.InsertOne(ctx, bson.M{"_id": "seed-luna"})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = c.InsertOne(ctx, bson.M{"_id": "not valid!"})
	assert.ErrorIs(t, err, ErrInvalidIdentifier)

	_, err = NewMemoryBackend(map[string][]bson.M{"x": {{"_id": "a"}, {"_id": "a"}}})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestMemoryIDsAreNeverReused(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t, bson.M{"_id": "seed-luna"})

	n, err := c.DeleteOne(ctx, bson.M{"_id": "seed-luna"})
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = c.InsertOne(ctx, bson.M{"_id": "seed-luna"})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestMemoryDocumentsAreCopied(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t)

	in := bson.M{"name": "Luna", "traits": bson.A{"wise"}}
	id, err := c.InsertOne(ctx, in)
	require.NoError(t, err)
	in["name"] = "mutated"
	_, hasID := in["_id"]
	assert.False(t, hasID, "insert must not write back into the caller's document")

	out, err := c.FindOne(ctx, bson.M{"_id": id})
	require.NoError(t, err)
	out["traits"].(bson.A)[0] = "mutated"

	again, err := c.FindOne(ctx, bson.M{"_id": id})
	require.NoError(t, err)
	assert.Equal(t, "Luna", again["name"])
	assert.Equal(t, bson.A{"wise"}, again["traits"])
}

func TestMemoryFindOptions(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t,
		bson.M{"name": "Cleo", "rank": 3},
		bson.M{"name": "Abe", "rank": 1},
		bson.M{"name": "Bea", "rank": 2},
		bson.M{"name": "Dan"},
	)

	docs, err := c.Find(ctx, bson.M{}, FindOptions{Sort: bson.D{{Key: "name", Value: 1}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Abe", "Bea", "Cleo", "Dan"}, names(docs))

	docs, err = c.Find(ctx, bson.M{}, FindOptions{Sort: bson.D{{Key: "rank", Value: -1}}, Skip: 1, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"Bea", "Abe"}, names(docs))

	docs, err = c.Find(ctx, bson.M{}, FindOptions{Skip: 10})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t,
		bson.M{"_id": "a", "ownerId": "alice", "name": "Luna"},
		bson.M{"_id": "b", "ownerId": "system", "name": "Adventure"},
		bson.M{"_id": "c", "name": "Legacy"},
	)

	matched, err := c.UpdateOne(ctx, bson.M{"_id": "b", "ownerId": "alice"}, bson.M{"$set": bson.M{"name": "x"}})
	require.NoError(t, err)
	assert.Zero(t, matched)

	matched, err = c.UpdateOne(ctx, bson.M{"_id": "a", "ownerId": "alice"}, bson.M{"$set": bson.M{"name": "Luna II"}})
	require.NoError(t, err)
	assert.EqualValues(t, 1, matched)

	_, err = c.UpdateOne(ctx, bson.M{"_id": "a"}, bson.M{"$inc": bson.M{"n": 1}})
	assert.Error(t, err)
	doc, err := c.FindOne(ctx, bson.M{"_id": "a"})
	require.NoError(t, err)
	assert.Equal(t, "Luna II", doc["name"])

	res, err := c.UpdateMany(ctx, bson.M{"ownerId": bson.M{"$exists": false}}, bson.M{"$set": bson.M{"ownerId": "alice"}})
	require.NoError(t, err)
	assert.Equal(t, UpdateResult{Matched: 1, Modified: 1}, res)

	res, err = c.UpdateMany(ctx, bson.M{"ownerId": bson.M{"$exists": false}}, bson.M{"$set": bson.M{"ownerId": "alice"}})
	require.NoError(t, err)
	assert.Equal(t, UpdateResult{}, res)

	deleted, err := c.DeleteOne(ctx, bson.M{"_id": "a", "ownerId": "bob"})
	require.NoError(t, err)
	assert.Zero(t, deleted)

	deleted, err = c.DeleteOne(ctx, bson.M{"_id": "a", "ownerId": "alice"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)

	// the id index must stay consistent after removal
	doc, err = c.FindOne(ctx, bson.M{"_id": "c"})
	require.NoError(t, err)
	assert.Equal(t, "Legacy", doc["name"])

	count, err := c.CountDocuments(ctx, bson.M{"ownerId": "alice"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestMemoryInsertMany(t *testing.T) {
	ctx := context.Background()
	c := newTestCollection(t)

	ids, err := c.InsertMany(ctx, []bson.M{{"name": "a"}, {"name": "b"}})
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.NotEqual(t, ids[0], ids[1])

	count, err := c.CountDocuments(ctx, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)
}

func names(docs []bson.M) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d["name"].(string))
	}
	return out
}
