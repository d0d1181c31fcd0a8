// Package cli provides the privatetune command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/privatetune/internal/core/ports/driving"
	"github.com/custodia-labs/privatetune/internal/logger"
)

var (
	version = "dev"
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "privatetune",
	Short: "Curate training data and fine-tune models from your knowledge base",
	Long: `privatetune turns the knowledge fragments held by a privatetune backend
into fine-tuning datasets.

Filter and select fragments, save selections as training items, generate
instruction/response annotations, score and edit them, then submit the
untuned ones as a fine-tuning job and follow its progress.

Run 'privatetune tui' for the interactive interface.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print debug logs to stderr")
}

// Services holds the core services driven by the commands.
type Services struct {
	Fragments  driving.FragmentService
	Items      driving.TrainingItemService
	Generation driving.GenerationService
	Dataset    driving.DatasetService
	FineTuning driving.FineTuningService
	Monitor    driving.JobMonitorService
	Settings   driving.SettingsService
	Session    driving.SessionService
	Templates  driving.TemplateService
	Events     driving.EventSource
}

// Service instances used by the commands.
var (
	fragmentService   driving.FragmentService
	itemService       driving.TrainingItemService
	generationService driving.GenerationService
	datasetService    driving.DatasetService
	finetuneService   driving.FineTuningService
	monitorService    driving.JobMonitorService
	settingsService   driving.SettingsService
	sessionService    driving.SessionService
	templateService   driving.TemplateService
	eventSource       driving.EventSource
)

// SetServices injects the core services.
func SetServices(s Services) {
	fragmentService = s.Fragments
	itemService = s.Items
	generationService = s.Generation
	datasetService = s.Dataset
	finetuneService = s.FineTuning
	monitorService = s.Monitor
	settingsService = s.Settings
	sessionService = s.Session
	templateService = s.Templates
	eventSource = s.Events
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// errNotConfigured reports a service missing from the composition root.
func errNotConfigured(name string) error {
	return fmt.Errorf("%s service not configured", name)
}

// loadWorkspace fetches the fragment corpus and training items, then
// restores the saved session and keeps it in sync for the rest of the run.
func loadWorkspace(ctx context.Context) error {
	if fragmentService == nil {
		return errNotConfigured("fragment")
	}
	if err := fragmentService.Refresh(ctx); err != nil {
		return fmt.Errorf("load fragments: %w", err)
	}
	if itemService != nil {
		if err := itemService.Refresh(ctx); err != nil {
			return fmt.Errorf("load training items: %w", err)
		}
	}
	if sessionService != nil {
		if err := sessionService.Restore(ctx); err != nil {
			logger.Warn("session restore failed: %v", err)
		}
		sessionService.Track()
	}
	return nil
}

// commandContext returns the command's context, or a background one in tests.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

var errAborted = errors.New("aborted")
