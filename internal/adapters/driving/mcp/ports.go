package mcp

import (
	"github.com/custodia-labs/privatetune/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Fragments owns the fragment corpus.
	Fragments driving.FragmentService

	// Items lists saved training items.
	Items driving.TrainingItemService

	// Dataset loads saved annotation sets.
	Dataset driving.DatasetService

	// Generation reports the generation controller state.
	Generation driving.GenerationService

	// Monitor lists fine-tuning jobs.
	Monitor driving.JobMonitorService
}

// Validate ensures all required ports are set.
// Only Fragments is required; tools for missing optional ports report
// ErrServiceUnavailable.
func (p *Ports) Validate() error {
	if p.Fragments == nil {
		return ErrMissingFragmentService
	}
	return nil
}
