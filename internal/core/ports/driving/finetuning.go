package driving

import (
	"context"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// FineTuningService estimates and submits fine-tuning jobs.
type FineTuningService interface {
	// DatasetSize returns the requested size before clamping.
	DatasetSize() int

	// SetDatasetSize changes the requested size.
	SetDatasetSize(n int)

	// EffectiveDatasetSize returns the requested size clamped to [1, max(1, untuned)].
	EffectiveDatasetSize() int

	// UntunedCount returns the number of annotations eligible for submission.
	UntunedCount() int

	// Model returns the base model.
	Model() string

	// SetModel changes the base model.
	SetModel(model string)

	// Platform returns the fine-tuning platform.
	Platform() string

	// SetPlatform changes the fine-tuning platform.
	SetPlatform(platform string)

	// Format returns the training data format.
	Format() domain.TrainingFormat

	// SetFormat changes the training data format.
	SetFormat(format domain.TrainingFormat) error

	// Estimate returns the current estimate, or nil when absent.
	Estimate() *domain.CostEstimate

	// RefreshEstimate recomputes the estimate and waits for it.
	RefreshEstimate(ctx context.Context) (*domain.CostEstimate, error)

	// Submit sends the first EffectiveDatasetSize untuned annotations as one job.
	Submit(ctx context.Context) (*domain.FineTuningJob, error)
}
