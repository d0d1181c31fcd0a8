package driven

import (
	"context"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// SessionStore persists the local working session across restarts.
type SessionStore interface {
	// LoadSession returns the most recent session.
	// Returns nil and no error if none has been saved.
	LoadSession(ctx context.Context) (*domain.Session, error)

	// SaveSession creates or replaces the session by ID.
	SaveSession(ctx context.Context, session *domain.Session) error
}

// OutcomeStore keeps a local history of finished generation jobs.
type OutcomeStore interface {
	// RecordOutcome stores a finished job. Recording the same job twice
	// replaces the earlier entry.
	RecordOutcome(ctx context.Context, outcome *domain.GenerationOutcome) error

	// ListOutcomes returns the most recent outcomes, newest first.
	ListOutcomes(ctx context.Context, limit int) ([]domain.GenerationOutcome, error)

	// PruneOutcomes keeps only the newest keep outcomes.
	PruneOutcomes(ctx context.Context, keep int) error
}
