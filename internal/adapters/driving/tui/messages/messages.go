// Package messages defines Bubbletea message types for the TUI.
// Messages represent events and commands that flow through the Elm architecture.
package messages

import (
	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// ViewChanged is sent when navigating between views.
type ViewChanged struct {
	View ViewType
}

// ViewType identifies which view is currently active.
type ViewType int

const (
	// ViewMenu is the main navigation menu.
	ViewMenu ViewType = iota
	// ViewFragments is the fragment filter and selection view.
	ViewFragments
	// ViewItems lists saved training items.
	ViewItems
	// ViewDataset is the annotation scoring and editing view.
	ViewDataset
	// ViewFineTune is the fine-tuning submission view.
	ViewFineTune
	// ViewJobs is the fine-tuning job monitor.
	ViewJobs
	// ViewHelp is the help/keybindings view.
	ViewHelp
)

// String returns the string representation of the view type.
func (v ViewType) String() string {
	switch v {
	case ViewMenu:
		return "menu"
	case ViewFragments:
		return "fragments"
	case ViewItems:
		return "items"
	case ViewDataset:
		return "dataset"
	case ViewFineTune:
		return "finetune"
	case ViewJobs:
		return "jobs"
	case ViewHelp:
		return "help"
	default:
		return "unknown"
	}
}

// CoreEvent relays a change notification from the core services.
// Views re-read service state when they receive one.
type CoreEvent struct {
	Event domain.Event
}

// ErrorOccurred signals that an error happened.
type ErrorOccurred struct {
	Err error
}

// Quit signals the application should exit.
type Quit struct{}

// FragmentsLoaded signals the corpus refresh finished.
type FragmentsLoaded struct {
	Err error
}

// FragmentUpdated signals a weight change or exclusion finished.
type FragmentUpdated struct {
	Key domain.FragmentKey
	Err error
}

// ItemsLoaded signals the training item list refresh finished.
type ItemsLoaded struct {
	Err error
}

// ItemSaved carries a newly saved training item.
type ItemSaved struct {
	Item *domain.TrainingItem
	Err  error
}

// ItemActivated signals a training item was activated.
type ItemActivated struct {
	ID  int64
	Err error
}

// ItemDeleted signals a training item was deleted.
type ItemDeleted struct {
	ID  int64
	Err error
}

// GenerationSubmitted carries the id of a submitted generation job.
type GenerationSubmitted struct {
	JobID string
	Err   error
}

// DatasetSaved carries the number of annotations stored.
type DatasetSaved struct {
	Count int
	Err   error
}

// EstimateLoaded carries a refreshed cost estimate. Estimate is nil when
// nothing can be submitted.
type EstimateLoaded struct {
	Estimate *domain.CostEstimate
	Err      error
}

// JobSubmitted carries a newly submitted fine-tuning job.
type JobSubmitted struct {
	Job *domain.FineTuningJob
	Err error
}

// JobsLoaded signals the job list refresh finished.
type JobsLoaded struct {
	Err error
}

// JobExpanded signals the detail fetch for a job finished.
type JobExpanded struct {
	JobID string
	Err   error
}
