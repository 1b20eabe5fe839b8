package history

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mhalder/ragserver/internal/domain"
	"github.com/mhalder/ragserver/internal/repository"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func TestAppendAndRecent_Ordering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", domain.RoleUser, "hi"))
	require.NoError(t, store.Append(ctx, "s1", domain.RoleAssistant, "hello"))
	require.NoError(t, store.Append(ctx, "s1", domain.RoleUser, "bye"))
	require.NoError(t, store.Append(ctx, "s1", domain.RoleAssistant, "goodbye"))

	turns, err := store.Recent(ctx, "s1", 100000)
	require.NoError(t, err)
	require.Len(t, turns, 4)

	assert.Equal(t, domain.RoleUser, turns[0].Role)
	assert.Equal(t, "hi", turns[0].Content)
	assert.Equal(t, domain.RoleAssistant, turns[1].Role)
	assert.Equal(t, "hello", turns[1].Content)
	assert.Equal(t, domain.RoleUser, turns[2].Role)
	assert.Equal(t, "bye", turns[2].Content)
	assert.Equal(t, domain.RoleAssistant, turns[3].Role)
	assert.Equal(t, "goodbye", turns[3].Content)
}

func TestRecent_TokenBudgetKeepsNewestTurns(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", domain.RoleUser, "one two three four five"))
	require.NoError(t, store.Append(ctx, "s1", domain.RoleAssistant, "six seven eight"))
	require.NoError(t, store.Append(ctx, "s1", domain.RoleUser, "nine ten"))

	// Budget of 5 words fits the last two turns (2 + 3) but not all three.
	turns, err := store.Recent(ctx, "s1", 5)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "six seven eight", turns[0].Content)
	assert.Equal(t, "nine ten", turns[1].Content)
}

func TestRecent_NewestTurnIncludedEvenOverBudget(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "s1", domain.RoleUser, "one two three"))
	require.NoError(t, store.Append(ctx, "s1", domain.RoleAssistant, "four five six seven eight"))

	// The newest turn alone exceeds the budget but is still returned.
	turns, err := store.Recent(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "four five six seven eight", turns[0].Content)
}

func TestRecent_UnknownSessionIsEmpty(t *testing.T) {
	store := newTestStore(t)
	turns, err := store.Recent(context.Background(), "missing", 1000)
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestAppend_SessionsAreIndependent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Append(ctx, "a", domain.RoleUser, "for a"))
	require.NoError(t, store.Append(ctx, "b", domain.RoleUser, "for b"))

	turns, err := store.Recent(ctx, "a", 1000)
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "for a", turns[0].Content)
}

func TestAppend_RejectsEmptySession(t *testing.T) {
	store := newTestStore(t)
	err := store.Append(context.Background(), "", domain.RoleUser, "text")
	assert.ErrorIs(t, err, domain.ErrInvalidRequest)
}
