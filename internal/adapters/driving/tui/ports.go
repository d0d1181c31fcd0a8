// Package tui provides an interactive terminal user interface for privatetune.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/privatetune/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the TUI.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Fragments owns the corpus, filter and selection.
	Fragments driving.FragmentService

	// Items manages saved training items.
	Items driving.TrainingItemService

	// Generation drives annotation generation jobs.
	Generation driving.GenerationService

	// Dataset owns the working annotation list.
	Dataset driving.DatasetService

	// FineTuning estimates cost and submits jobs.
	FineTuning driving.FineTuningService

	// Monitor lists and inspects fine-tuning jobs.
	Monitor driving.JobMonitorService

	// Settings manages application settings. Optional.
	Settings driving.SettingsService

	// Events relays core state changes to the views. Optional.
	Events driving.EventSource
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Fragments == nil {
		return ErrMissingFragmentService
	}
	if p.Items == nil {
		return ErrMissingTrainingItemService
	}
	if p.Generation == nil {
		return ErrMissingGenerationService
	}
	if p.Dataset == nil {
		return ErrMissingDatasetService
	}
	if p.FineTuning == nil {
		return ErrMissingFineTuningService
	}
	if p.Monitor == nil {
		return ErrMissingJobMonitor
	}
	return nil
}
