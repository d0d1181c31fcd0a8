package driving

import (
	"context"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// JobMonitorService lists fine-tuning jobs and inspects one at a time.
type JobMonitorService interface {
	// Refresh reloads the job list.
	Refresh(ctx context.Context) error

	// Jobs returns the job list.
	Jobs() []domain.FineTuningJob

	// Expand marks jobID as expanded and fetches its status and logs.
	// Results for a job that is no longer expanded are discarded.
	Expand(ctx context.Context, jobID string) error

	// Collapse clears the expanded job and its detail.
	Collapse()

	// Expanded returns the expanded job id, or "".
	Expanded() string

	// Detail returns the expanded job's detail, or nil while loading.
	Detail() *domain.JobDetail

	// AutoRefresh reports whether periodic refresh is running.
	AutoRefresh() bool

	// SetAutoRefresh starts or stops periodic refresh.
	SetAutoRefresh(enabled bool)

	// RefreshAll reloads the dataset, the job list and the expanded job's
	// detail, returning a combined error.
	RefreshAll(ctx context.Context) error

	// Stop cancels periodic refresh.
	Stop()
}
