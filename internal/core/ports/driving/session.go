package driving

import (
	"context"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// SessionService restores and persists the local working session.
type SessionService interface {
	// Restore applies the saved session. Load the corpus and the
	// training items first so saved keys and ids resolve.
	Restore(ctx context.Context) error

	// Track saves the session whenever selection, active item or
	// generation state changes.
	Track()

	// Save writes the current session if it changed.
	Save(ctx context.Context) error

	// Close stops tracking.
	Close()

	// History returns recorded generation outcomes, newest first.
	History(ctx context.Context, limit int) ([]domain.GenerationOutcome, error)
}
