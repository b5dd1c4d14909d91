package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"redscribe/scraper/internal/database"
	"redscribe/scraper/internal/models"
)

func newTestStore(t *testing.T) PersonalityStore {
	t.Helper()

	db, err := database.NewDB(database.NewConfig(filepath.Join(t.TempDir(), "test.db")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewStore(db)
}

func countDefaults(t *testing.T, store PersonalityStore, userID int64) int {
	t.Helper()

	personalities, err := store.ListPersonalities(context.Background(), userID)
	require.NoError(t, err)

	defaults := 0
	for _, p := range personalities {
		if p.IsDefault {
			defaults++
		}
	}
	return defaults
}

func TestGetOrCreateUserIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first, err := store.GetOrCreateUser(ctx, 42, "gopher", "Go")
	require.NoError(t, err)

	second, err := store.GetOrCreateUser(ctx, 42, "gopher", "Go")
	require.NoError(t, err)

	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, 1, countDefaults(t, store, first.UserID), "exactly one default after repeated calls")
}

func TestGetOrCreateUserSeedsDefault(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.GetOrCreateUser(ctx, 42, "", "")
	require.NoError(t, err)

	p, err := store.Resolve(ctx, user.UserID, models.DefaultPersonalityName)
	require.NoError(t, err)

	assert.Equal(t, models.DefaultPersonalityName, p.Name)
	assert.Equal(t, models.DefaultTemperature, p.Temperature)
	assert.Equal(t, models.DefaultMaxTokens, p.MaxTokens)
	assert.True(t, p.IsDefault)
	assert.Contains(t, p.PromptTemplate, "{original_title}")
}

func TestCreatePersonalityDemotesOtherDefaults(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.GetOrCreateUser(ctx, 42, "", "")
	require.NoError(t, err)

	p := models.NewPersonality(user.UserID, "pirate")
	p.PromptTemplate = "Arr: {original_title}"
	p.IsDefault = true
	require.NoError(t, store.CreatePersonality(ctx, p))

	assert.Equal(t, 1, countDefaults(t, store, user.UserID))

	resolved, err := store.Resolve(ctx, user.UserID, models.DefaultPersonalityName)
	require.NoError(t, err)
	assert.Equal(t, "pirate", resolved.Name, "the new default wins resolution")
}

func TestCreatePersonalityDuplicateName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.GetOrCreateUser(ctx, 42, "", "")
	require.NoError(t, err)

	p := models.NewPersonality(user.UserID, "pirate")
	p.PromptTemplate = "Arr: {original_title}"
	require.NoError(t, store.CreatePersonality(ctx, p))

	dup := models.NewPersonality(user.UserID, "pirate")
	dup.PromptTemplate = "Arr again: {original_title}"
	assert.ErrorIs(t, store.CreatePersonality(ctx, dup), ErrDuplicateName)
}

func TestResolveUnknownName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.GetOrCreateUser(ctx, 42, "", "")
	require.NoError(t, err)

	_, err = store.Resolve(ctx, user.UserID, "nope")
	assert.ErrorIs(t, err, ErrPersonalityNotFound)
}

func TestDeleteLastPersonality(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.GetOrCreateUser(ctx, 42, "", "")
	require.NoError(t, err)

	err = store.DeletePersonality(ctx, user.UserID, models.DefaultPersonalityName)
	assert.ErrorIs(t, err, ErrLastPersonality)

	personalities, err := store.ListPersonalities(ctx, user.UserID)
	require.NoError(t, err)
	assert.Len(t, personalities, 1, "store unchanged after rejected delete")
}

func TestDeletePersonality(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.GetOrCreateUser(ctx, 42, "", "")
	require.NoError(t, err)

	p := models.NewPersonality(user.UserID, "pirate")
	p.PromptTemplate = "Arr: {original_title}"
	require.NoError(t, store.CreatePersonality(ctx, p))

	require.NoError(t, store.DeletePersonality(ctx, user.UserID, "pirate"))

	_, err = store.Resolve(ctx, user.UserID, "pirate")
	assert.ErrorIs(t, err, ErrPersonalityNotFound)

	assert.ErrorIs(t, store.DeletePersonality(ctx, user.UserID, "pirate"), ErrPersonalityNotFound)
}

func TestDeleteDefaultKeepsOthers(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.GetOrCreateUser(ctx, 42, "", "")
	require.NoError(t, err)

	p := models.NewPersonality(user.UserID, "pirate")
	p.PromptTemplate = "Arr: {original_title}"
	require.NoError(t, store.CreatePersonality(ctx, p))

	// Deleting the current default is allowed while other personalities
	// remain; "default" then resolves to nothing until a new one is set.
	require.NoError(t, store.DeletePersonality(ctx, user.UserID, models.DefaultPersonalityName))

	_, err = store.Resolve(ctx, user.UserID, models.DefaultPersonalityName)
	assert.ErrorIs(t, err, ErrPersonalityNotFound)

	resolved, err := store.Resolve(ctx, user.UserID, "pirate")
	require.NoError(t, err)
	assert.Equal(t, "pirate", resolved.Name)
}

func TestConcurrentDefaultCreates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	user, err := store.GetOrCreateUser(ctx, 42, "", "")
	require.NoError(t, err)

	const writers = 8
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := models.NewPersonality(user.UserID, fmt.Sprintf("style-%d", i))
			p.PromptTemplate = "Style: {original_title}"
			p.IsDefault = true
			// WAL writers can still collide on the write lock; the busy
			// timeout makes these retries invisible here.
			assert.NoError(t, store.CreatePersonality(ctx, p))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, countDefaults(t, store, user.UserID), "whichever write landed last is the only default")
}

func TestConcurrentGetOrCreateUser(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	const callers = 8
	users := make([]*models.User, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			u, err := store.GetOrCreateUser(ctx, 42, "", "")
			if assert.NoError(t, err) {
				users[i] = u
			}
		}(i)
	}
	wg.Wait()

	for _, u := range users {
		require.NotNil(t, u)
		assert.Equal(t, users[0].UserID, u.UserID)
	}
	assert.Equal(t, 1, countDefaults(t, store, users[0].UserID))
}
