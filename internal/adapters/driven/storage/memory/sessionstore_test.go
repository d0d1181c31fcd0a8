package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

func TestSessionStore_LoadEmpty(t *testing.T) {
	store := NewSessionStore()

	session, err := store.LoadSession(context.Background())
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestSessionStore_SaveAndLoad(t *testing.T) {
	store := NewSessionStore()
	ctx := context.Background()

	itemID := int64(3)
	session := &domain.Session{
		ID:           "s-1",
		ActiveItemID: &itemID,
		Selection:    []domain.FragmentKey{"1:0", "2:4"},
		Template:     "T",
	}
	require.NoError(t, store.SaveSession(ctx, session))

	// The stored copy is isolated from the caller.
	session.Selection[0] = "9:9"
	itemID = 8

	loaded, err := store.LoadSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.FragmentKey{"1:0", "2:4"}, loaded.Selection)
	require.NotNil(t, loaded.ActiveItemID)
	assert.Equal(t, int64(3), *loaded.ActiveItemID)
}

func TestSessionStore_SaveNil(t *testing.T) {
	store := NewSessionStore()
	assert.ErrorIs(t, store.SaveSession(context.Background(), nil), domain.ErrInvalidInput)
}

func TestOutcomeStore_RecordListPrune(t *testing.T) {
	store := NewOutcomeStore()
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.RecordOutcome(ctx, &domain.GenerationOutcome{
			JobID:      id,
			Status:     domain.GenerationCompleted,
			FinishedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	// Replacing keeps one entry per job.
	require.NoError(t, store.RecordOutcome(ctx, &domain.GenerationOutcome{
		JobID:      "a",
		Status:     domain.GenerationFailed,
		FinishedAt: base.Add(time.Hour),
	}))

	outcomes, err := store.ListOutcomes(ctx, 0)
	require.NoError(t, err)
	require.Len(t, outcomes, 3)
	assert.Equal(t, "a", outcomes[0].JobID)
	assert.Equal(t, domain.GenerationFailed, outcomes[0].Status)
	assert.Equal(t, "c", outcomes[1].JobID)

	limited, err := store.ListOutcomes(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	require.NoError(t, store.PruneOutcomes(ctx, 2))
	kept, err := store.ListOutcomes(ctx, 0)
	require.NoError(t, err)
	require.Len(t, kept, 2)
	assert.Equal(t, "c", kept[1].JobID)

	require.NoError(t, store.PruneOutcomes(ctx, 0))
	none, err := store.ListOutcomes(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestOutcomeStore_RecordInvalid(t *testing.T) {
	store := NewOutcomeStore()
	assert.ErrorIs(t, store.RecordOutcome(context.Background(), &domain.GenerationOutcome{}), domain.ErrInvalidInput)
}
