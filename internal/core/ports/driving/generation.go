package driving

import (
	"context"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// GenerationService drives annotation generation jobs.
type GenerationService interface {
	// Start resumes a pending or running backend job, if any, and begins polling it.
	Start(ctx context.Context) error

	// Generate submits a job for the resolved fragment set and begins polling.
	// Returns the new job id.
	Generate(ctx context.Context) (string, error)

	// State returns the controller state.
	State() domain.GenerationState

	// Job returns the tracked job, or nil when idle.
	Job() *domain.GenerationJob

	// LastOutcome returns how the last tracked job ended, or nil.
	LastOutcome() *domain.GenerationOutcome

	// PollOnce fetches the tracked job's status and applies it.
	// Returns true once the job reached a terminal state.
	PollOnce(ctx context.Context) (bool, error)

	// Stop cancels polling and returns to idle. The backend job is not cancelled.
	Stop()

	// Template returns the prompt template.
	Template() string

	// SetTemplate replaces the prompt template.
	SetTemplate(template string)

	// ResolveFragments returns the fragments the next Generate call would use.
	ResolveFragments() ([]domain.Fragment, error)
}
