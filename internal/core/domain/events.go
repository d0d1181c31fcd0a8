package domain

// EventKind identifies a change notification published by a core component.
type EventKind string

// Event kinds.
const (
	EventFragmentsChanged  EventKind = "fragments_changed"
	EventSelectionChanged  EventKind = "selection_changed"
	EventTrainingItems     EventKind = "training_items_changed"
	EventActiveItemChanged EventKind = "active_item_changed"
	EventGenerationChanged EventKind = "generation_changed"
	EventDatasetChanged    EventKind = "dataset_changed"
	EventEstimateChanged   EventKind = "estimate_changed"
	EventJobsChanged       EventKind = "jobs_changed"
	EventJobDetailChanged  EventKind = "job_detail_changed"
	EventSettingsChanged   EventKind = "settings_changed"
	EventNotice            EventKind = "notice"
)

// Event is a typed, process-scoped change notification.
// Err is set on EventNotice to carry a one-shot user-visible failure.
type Event struct {
	Kind    EventKind
	Message string
	Err     error
}
