package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// mockSessionStore implements driven.SessionStore in memory.
type mockSessionStore struct {
	mu      sync.Mutex
	saved   *domain.Session
	saves   int
	loadErr error
	saveErr error
}

func (m *mockSessionStore) LoadSession(context.Context) (*domain.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.saved == nil {
		return nil, nil
	}
	s := *m.saved
	return &s, nil
}

func (m *mockSessionStore) SaveSession(_ context.Context, s *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves++
	saved := *s
	m.saved = &saved
	return nil
}

func (m *mockSessionStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type sessionFixture struct {
	*generationFixture
	store  *mockSessionStore
	keeper *SessionKeeper
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	g := newGenerationFixture(t, fragmentsFixture(4))
	store := &mockSessionStore{}
	keeper := NewSessionKeeper(store, g.fragments, g.registry, g.controller, g.clock, g.bus)
	t.Cleanup(keeper.Close)
	return &sessionFixture{generationFixture: g, store: store, keeper: keeper}
}

func TestSessionKeeper_RestoreNothingSaved(t *testing.T) {
	f := newSessionFixture(t)

	require.NoError(t, f.keeper.Restore(context.Background()))

	assert.Empty(t, f.fragments.Selection())
	assert.Equal(t, domain.DefaultPromptTemplate, f.controller.Template())
	assert.NotEmpty(t, f.keeper.Snapshot().ID)
}

func TestSessionKeeper_RestoreAppliesSavedState(t *testing.T) {
	f := newSessionFixture(t)
	itemKeys := []domain.FragmentKey{"1:0"}
	f.backend.items = []domain.TrainingItem{{ID: 7, Name: "intro", FragmentKeys: itemKeys, PromptTemplate: "item {knowledge_point}"}}
	require.NoError(t, f.registry.Refresh(context.Background()))

	id := int64(7)
	f.store.saved = &domain.Session{
		ID:           "session-1",
		ActiveItemID: &id,
		Selection:    []domain.FragmentKey{"2:1", "1:2", "9:9"},
		Template:     "saved {knowledge_point}",
	}

	require.NoError(t, f.keeper.Restore(context.Background()))

	require.NotNil(t, f.registry.Active())
	assert.Equal(t, int64(7), f.registry.Active().ID)
	assert.Equal(t, []domain.FragmentKey{"1:2", "2:1"}, f.fragments.Selection())
	assert.Equal(t, "saved {knowledge_point}", f.controller.Template())
	assert.Equal(t, "session-1", f.keeper.Snapshot().ID)
}

func TestSessionKeeper_RestoreMissingItem(t *testing.T) {
	f := newSessionFixture(t)
	id := int64(42)
	f.store.saved = &domain.Session{ID: "s", ActiveItemID: &id, Selection: []domain.FragmentKey{"1:0"}}

	require.NoError(t, f.keeper.Restore(context.Background()))

	assert.Nil(t, f.registry.Active())
	assert.Equal(t, []domain.FragmentKey{"1:0"}, f.fragments.Selection())
	assert.Equal(t, domain.DefaultPromptTemplate, f.controller.Template())
}

func TestSessionKeeper_RestoreLoadError(t *testing.T) {
	f := newSessionFixture(t)
	f.store.loadErr = errors.New("locked")

	err := f.keeper.Restore(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "load session")
}

func TestSessionKeeper_TrackSavesOnChange(t *testing.T) {
	f := newSessionFixture(t)
	f.keeper.Track()

	f.fragments.Select("1:0", "2:3")
	require.Equal(t, 1, f.store.saveCount())
	assert.Equal(t, []domain.FragmentKey{"1:0", "2:3"}, f.store.saved.Selection)
	assert.Equal(t, f.clock.Now(), f.store.saved.UpdatedAt)

	// Same state is not written twice.
	require.NoError(t, f.keeper.Save(context.Background()))
	assert.Equal(t, 1, f.store.saveCount())

	f.controller.SetTemplate("new {knowledge_point}")
	assert.Equal(t, 2, f.store.saveCount())
	assert.Equal(t, "new {knowledge_point}", f.store.saved.Template)
}

func TestSessionKeeper_TrackIgnoresUnrelatedEvents(t *testing.T) {
	f := newSessionFixture(t)
	f.keeper.Track()

	f.dataset.Replace(annotationsFixture(2))
	f.bus.Emit(domain.EventJobsChanged)

	assert.Equal(t, 0, f.store.saveCount())
}

func TestSessionKeeper_CloseStopsTracking(t *testing.T) {
	f := newSessionFixture(t)
	f.keeper.Track()
	f.keeper.Close()

	f.fragments.Select("1:0")

	assert.Equal(t, 0, f.store.saveCount())
}

func TestSessionKeeper_SnapshotIncludesGenerationJob(t *testing.T) {
	f := newSessionFixture(t)
	f.fragments.Select("1:0")

	jobID, err := f.controller.Generate(context.Background())
	require.NoError(t, err)

	snap := f.keeper.Snapshot()
	assert.Equal(t, jobID, snap.LastGenerationJobID)
	assert.Equal(t, []domain.FragmentKey{"1:0"}, snap.Selection)
	assert.Nil(t, snap.ActiveItemID)
}

func TestSessionKeeper_NilStoreIsNoop(t *testing.T) {
	g := newGenerationFixture(t, fragmentsFixture(2))
	keeper := NewSessionKeeper(nil, g.fragments, g.registry, g.controller, g.clock, g.bus)

	require.NoError(t, keeper.Restore(context.Background()))
	keeper.Track()
	require.NoError(t, keeper.Save(context.Background()))
	keeper.Close()
}

// mockOutcomeStore implements driven.OutcomeStore in memory.
type mockOutcomeStore struct {
	mu       sync.Mutex
	outcomes []domain.GenerationOutcome
	prunes   int
}

func (m *mockOutcomeStore) RecordOutcome(_ context.Context, o *domain.GenerationOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append([]domain.GenerationOutcome{*o}, m.outcomes...)
	return nil
}

func (m *mockOutcomeStore) ListOutcomes(_ context.Context, limit int) ([]domain.GenerationOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > len(m.outcomes) {
		limit = len(m.outcomes)
	}
	return append([]domain.GenerationOutcome(nil), m.outcomes[:limit]...), nil
}

func (m *mockOutcomeStore) PruneOutcomes(context.Context, int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prunes++
	return nil
}

func TestSessionKeeper_RecordsFinishedGenerationOnce(t *testing.T) {
	f := newSessionFixture(t)
	history := &mockOutcomeStore{}
	f.keeper.KeepHistory(history)
	f.keeper.Track()

	f.backend.statusFn = func(id string) (*domain.GenerationJob, error) {
		return &domain.GenerationJob{
			ID:          id,
			Status:      domain.GenerationCompleted,
			Annotations: annotationsFixture(2),
		}, nil
	}
	f.fragments.Select("1:0")
	_, err := f.controller.Generate(context.Background())
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return f.controller.State() == domain.StateIdle }, waitFor, tick)
	assert.Eventually(t, func() bool {
		list, _ := f.keeper.History(context.Background(), 10)
		return len(list) == 1
	}, waitFor, tick)

	// Later generation events do not record the same job again.
	f.controller.SetTemplate("other {knowledge_point}")

	list, err := f.keeper.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "gen-1", list[0].JobID)
	assert.Equal(t, 2, list[0].AnnotationCount)
}

func TestSessionKeeper_HistoryWithoutStore(t *testing.T) {
	f := newSessionFixture(t)

	_, err := f.keeper.History(context.Background(), 5)

	assert.ErrorIs(t, err, domain.ErrNotImplemented)
}
