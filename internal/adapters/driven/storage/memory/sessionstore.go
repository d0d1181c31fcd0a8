package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driven"
)

// Ensure the stores implement their interfaces.
var (
	_ driven.SessionStore = (*SessionStore)(nil)
	_ driven.OutcomeStore = (*OutcomeStore)(nil)
)

// SessionStore is an in-memory implementation of driven.SessionStore.
type SessionStore struct {
	mu      sync.RWMutex
	session *domain.Session
}

// NewSessionStore creates an empty in-memory session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

// LoadSession returns the last saved session, or nil.
func (s *SessionStore) LoadSession(_ context.Context) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil, nil
	}
	return cloneSession(s.session), nil
}

// SaveSession replaces the stored session.
func (s *SessionStore) SaveSession(_ context.Context, session *domain.Session) error {
	if session == nil {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.session = cloneSession(session)
	return nil
}

func cloneSession(src *domain.Session) *domain.Session {
	out := *src
	out.Selection = slices.Clone(src.Selection)
	if src.ActiveItemID != nil {
		id := *src.ActiveItemID
		out.ActiveItemID = &id
	}
	return &out
}

// OutcomeStore is an in-memory implementation of driven.OutcomeStore.
type OutcomeStore struct {
	mu       sync.RWMutex
	outcomes []domain.GenerationOutcome
}

// NewOutcomeStore creates an empty in-memory outcome store.
func NewOutcomeStore() *OutcomeStore {
	return &OutcomeStore{}
}

// RecordOutcome stores an outcome, replacing one with the same job id.
func (s *OutcomeStore) RecordOutcome(_ context.Context, outcome *domain.GenerationOutcome) error {
	if outcome == nil || outcome.JobID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = slices.DeleteFunc(s.outcomes, func(o domain.GenerationOutcome) bool {
		return o.JobID == outcome.JobID
	})
	s.outcomes = append(s.outcomes, *outcome)
	return nil
}

// ListOutcomes returns up to limit outcomes, newest first.
// A non-positive limit returns all of them.
func (s *OutcomeStore) ListOutcomes(_ context.Context, limit int) ([]domain.GenerationOutcome, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return newestOutcomes(s.outcomes, limit), nil
}

// PruneOutcomes keeps only the newest keep outcomes.
func (s *OutcomeStore) PruneOutcomes(_ context.Context, keep int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if keep <= 0 {
		s.outcomes = nil
		return nil
	}
	s.outcomes = newestOutcomes(s.outcomes, keep)
	return nil
}

func newestOutcomes(outcomes []domain.GenerationOutcome, limit int) []domain.GenerationOutcome {
	sorted := slices.Clone(outcomes)
	slices.SortStableFunc(sorted, func(a, b domain.GenerationOutcome) int {
		return b.FinishedAt.Compare(a.FinishedAt)
	})
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}
