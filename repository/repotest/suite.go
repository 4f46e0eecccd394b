// Package repotest holds a backend-independent script of repository scenarios.
// Running it against the fallback store and a real database and comparing the
// transcripts shows both backends yield the same visible results.
package repotest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"storyforge/models"
	"storyforge/repository"
)

// Collections used by the script.
var Collections = models.Collections{
	models.KindCharacters: "characters",
	models.KindThemes:     "themes",
}

// Run executes the scenario script against store and returns a transcript of
// everything a caller could observe. Ids and timestamps are left out.
func Run(t *testing.T, store repository.Store) []string {
	t.Helper()

	ctx := context.Background()
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	repo := repository.New(store, Collections, zerolog.Nop(), repository.WithClock(func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}))

	alice := models.UserOwner("alice")
	bob := models.UserOwner("bob")

	var transcript []string
	record := func(format string, args ...interface{}) {
		transcript = append(transcript, fmt.Sprintf(format, args...))
	}

	// Scenario: create then read back as owner and as a stranger.
	luna, err := repo.Create(ctx, "characters", bson.M{"name": "Luna", "species": "owl"}, alice)
	require.NoError(t, err)
	require.False(t, luna.ID.IsZero())
	assert.Equal(t, "alice", luna.Owner.Key())
	assert.Equal(t, "alice", luna.CreatedBy)
	assert.True(t, luna.CreatedAt.Equal(luna.UpdatedAt))
	record("create luna owner=%s", luna.Owner.Key())

	got, err := repo.FindByID(ctx, "characters", luna.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "Luna", got.Fields["name"])
	assert.True(t, luna.CreatedAt.Equal(got.CreatedAt))
	record("alice sees luna: %s", got.Fields["name"])

	_, err = repo.FindByID(ctx, "characters", luna.ID, bob)
	assert.ErrorIs(t, err, repository.ErrNotFoundOrAccessDenied)
	record("bob findById luna: %v", err)

	// Id round trip through the boundary parser.
	parsed, err := repo.ParseID(ctx, luna.ID.String())
	require.NoError(t, err)
	assert.Equal(t, luna.ID, parsed)
	_, err = repo.ParseID(ctx, "not an id!")
	assert.ErrorIs(t, err, repository.ErrInvalidIdentifier)
	record("parse invalid id: invalid=%t", err != nil)

	// Scenario: system resources are visible to everyone.
	adventure, err := repo.CreateSystemResource(ctx, "themes", bson.M{"name": "Adventure"})
	require.NoError(t, err)
	assert.True(t, adventure.IsSystem())
	_, err = repo.Create(ctx, "themes", bson.M{"name": "Heist"}, bob)
	require.NoError(t, err)

	aliceThemes, err := repo.Find(ctx, "themes", nil, alice, repository.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Adventure"}, fieldValues(aliceThemes, "name"))
	record("alice themes: %s", strings.Join(fieldValues(aliceThemes, "name"), ","))

	bobThemes, err := repo.Find(ctx, "themes", bson.M{}, bob, repository.FindOptions{Sort: bson.D{{Key: "name", Value: 1}}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Adventure", "Heist"}, orderedValues(bobThemes, "name"))
	record("bob themes sorted: %s", strings.Join(orderedValues(bobThemes, "name"), ","))

	sys, err := repo.FindByID(ctx, "themes", adventure.ID, bob)
	require.NoError(t, err)
	assert.True(t, sys.IsSystem())
	record("bob findById system theme: system=%t", sys.IsSystem())

	// Scenario: system resources are read-only to users.
	_, err = repo.Update(ctx, "themes", adventure.ID, bson.M{"name": "Hijacked"}, alice)
	assert.ErrorIs(t, err, repository.ErrNotFoundOrAccessDenied)
	record("alice update system theme: %v", err)

	err = repo.Delete(ctx, "themes", adventure.ID, alice)
	assert.ErrorIs(t, err, repository.ErrNotFoundOrAccessDenied)
	record("alice delete system theme: %v", err)

	still, err := repo.FindByID(ctx, "themes", adventure.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "Adventure", still.Fields["name"])

	// The system owner itself may change system resources.
	renamed, err := repo.Update(ctx, "themes", adventure.ID, bson.M{"tagline": "Onward"}, models.SystemOwner())
	require.NoError(t, err)
	assert.Equal(t, "Onward", renamed.Fields["tagline"])
	record("system update system theme: tagline=%s", renamed.Fields["tagline"])

	// Scenario: owner updates, reserved fields are ignored.
	updated, err := repo.Update(ctx, "characters", luna.ID, bson.M{
		"species":   "snowy owl",
		"ownerId":   "bob",
		"createdBy": "bob",
		"_id":       "hijack",
	}, alice)
	require.NoError(t, err)
	assert.Equal(t, luna.ID, updated.ID)
	assert.Equal(t, "snowy owl", updated.Fields["species"])
	assert.Equal(t, "Luna", updated.Fields["name"])
	assert.Equal(t, "alice", updated.Owner.Key())
	assert.Equal(t, "alice", updated.CreatedBy)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))
	assert.True(t, luna.CreatedAt.Equal(updated.CreatedAt))
	record("alice update luna: species=%s owner=%s", updated.Fields["species"], updated.Owner.Key())

	_, err = repo.Update(ctx, "characters", luna.ID, bson.M{"species": "crow"}, bob)
	assert.ErrorIs(t, err, repository.ErrNotFoundOrAccessDenied)
	record("bob update luna: %v", err)

	// Ownership isolation across users with caller supplied filters.
	_, err = repo.Create(ctx, "characters", bson.M{"name": "Rex", "species": "dog"}, bob)
	require.NoError(t, err)
	_, err = repo.Create(ctx, "characters", bson.M{"name": "Sage", "species": "owl"}, models.SystemOwner())
	require.NoError(t, err)

	owls, err := repo.Find(ctx, "characters", bson.M{"species": "owl"}, bob, repository.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Sage"}, fieldValues(owls, "name"))
	record("bob owls: %s", strings.Join(fieldValues(owls, "name"), ","))

	sneaky, err := repo.Find(ctx, "characters", bson.M{"ownerId": "alice"}, bob, repository.FindOptions{})
	require.NoError(t, err)
	assert.Empty(t, sneaky)
	record("bob filtering by alice's owner id: %d", len(sneaky))

	orFilter := bson.M{"$or": bson.A{bson.M{"name": "Luna"}, bson.M{"name": "Rex"}}}
	either, err := repo.Find(ctx, "characters", orFilter, alice, repository.FindOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Luna"}, fieldValues(either, "name"))
	record("alice luna-or-rex: %s", strings.Join(fieldValues(either, "name"), ","))

	// Paging with deterministic sort.
	page, err := repo.Find(ctx, "characters", nil, alice, repository.FindOptions{
		Sort:  bson.D{{Key: "name", Value: -1}},
		Skip:  1,
		Limit: 1,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Luna"}, orderedValues(page, "name"))
	record("alice page 2 of names desc: %s", strings.Join(orderedValues(page, "name"), ","))

	// Counts and stats include system resources.
	n, err := repo.Count(ctx, "characters", nil, alice)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	record("alice count characters: %d", n)

	n, err = repo.Count(ctx, "characters", bson.M{"species": "owl"}, bob)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	record("bob count owls: %d", n)

	stats, err := repo.GetUserStats(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, map[models.Kind]int64{models.KindCharacters: 2, models.KindThemes: 2}, stats)
	record("bob stats: characters=%d themes=%d", stats[models.KindCharacters], stats[models.KindThemes])

	// Scenario: delete twice.
	require.NoError(t, repo.Delete(ctx, "characters", luna.ID, alice))
	err = repo.Delete(ctx, "characters", luna.ID, alice)
	assert.ErrorIs(t, err, repository.ErrNotFoundOrAccessDenied)
	record("alice second delete luna: %v", err)

	_, err = repo.FindByID(ctx, "characters", luna.ID, alice)
	assert.ErrorIs(t, err, repository.ErrNotFoundOrAccessDenied)

	// Missing caller identity never reaches storage.
	_, err = repo.Find(ctx, "characters", nil, models.Owner{}, repository.FindOptions{})
	assert.ErrorIs(t, err, repository.ErrMissingOwnerContext)
	record("anonymous find: %v", err)

	return transcript
}

// fieldValues returns a field of each resource, sorted, for order-independent checks.
func fieldValues(resources []*models.Resource, field string) []string {
	out := orderedValues(resources, field)
	sort.Strings(out)
	return out
}

func orderedValues(resources []*models.Resource, field string) []string {
	out := make([]string, 0, len(resources))
	for _, r := range resources {
		s, _ := r.Fields[field].(string)
		out = append(out, s)
	}
	return out
}
