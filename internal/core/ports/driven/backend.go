package driven

import (
	"context"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// FragmentBackend reads and updates the remote fragment corpus.
type FragmentBackend interface {
	// ListFragments returns one page of fragments. Pages are 1-based.
	// A minWeight of zero disables server-side weight filtering.
	ListFragments(ctx context.Context, page, pageSize int, minWeight float64) (*domain.FragmentPage, error)

	// UpdateFragmentWeight sets the weight of a fragment by backend id.
	UpdateFragmentWeight(ctx context.Context, id int64, weight float64) error

	// SetFragmentExcluded soft-deletes or restores a fragment.
	SetFragmentExcluded(ctx context.Context, id int64, excluded bool) error
}

// TrainingItemBackend persists training items.
type TrainingItemBackend interface {
	// ListTrainingItems returns all training items.
	ListTrainingItems(ctx context.Context) ([]domain.TrainingItem, error)

	// SaveTrainingItem creates or updates an item by name.
	SaveTrainingItem(ctx context.Context, name string, keys []domain.FragmentKey, template string) (*domain.TrainingItem, error)

	// DeleteTrainingItem removes an item.
	DeleteTrainingItem(ctx context.Context, id int64) error
}

// GenerationBackend runs annotation generation jobs.
type GenerationBackend interface {
	// SubmitGenerationJob starts a job and returns its id.
	SubmitGenerationJob(ctx context.Context, req domain.GenerationRequest) (string, error)

	// GetGenerationJobStatus returns the current state of a job.
	// Annotations are populated only once the job has completed.
	GetGenerationJobStatus(ctx context.Context, jobID string) (*domain.GenerationJob, error)

	// ListRecentGenerationJobs returns up to limit jobs, newest first.
	ListRecentGenerationJobs(ctx context.Context, limit int) ([]domain.GenerationJob, error)
}

// TrainingSetBackend persists annotation datasets.
type TrainingSetBackend interface {
	// SaveTrainingSet writes annotations, optionally scoped to a training item.
	// Returns the number of annotations stored.
	SaveTrainingSet(ctx context.Context, annotations []domain.Annotation, trainingItemID *int64) (int, error)

	// LoadTrainingSet reads annotations, optionally scoped to a training item.
	LoadTrainingSet(ctx context.Context, trainingItemID *int64) ([]domain.Annotation, error)
}

// FineTuningBackend submits and inspects fine-tuning jobs.
type FineTuningBackend interface {
	// EstimateFineTuningCost prices a prospective job.
	EstimateFineTuningCost(ctx context.Context, datasetSize int, model, platform string) (*domain.CostEstimate, error)

	// SubmitFineTuningJob submits annotations as one job. Never retried automatically.
	SubmitFineTuningJob(ctx context.Context, annotations []domain.Annotation, platform, model string, format domain.TrainingFormat) (*domain.FineTuningJob, error)

	// ListFineTuningJobs returns all jobs, newest first.
	ListFineTuningJobs(ctx context.Context) ([]domain.FineTuningJob, error)

	// GetFineTuningJobStatus returns the detailed status of a job.
	GetFineTuningJobStatus(ctx context.Context, jobID string) (*domain.JobStatusDetail, error)

	// GetFineTuningJobLogs returns up to limit log entries of a job.
	GetFineTuningJobLogs(ctx context.Context, jobID string, limit int) ([]domain.JobLogEntry, error)
}

// Backend is the full remote capability surface consumed by the core.
// Every call may fail independently. Implementations wrap network and
// server failures with domain.ErrTransient and rejections with
// domain.ErrSubmission.
type Backend interface {
	FragmentBackend
	TrainingItemBackend
	GenerationBackend
	TrainingSetBackend
	FineTuningBackend
}
