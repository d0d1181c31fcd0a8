package cli

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/privatetune/internal/adapters/driving/tui"
)

// tuiCmd represents the tui command.
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal user interface.

The TUI walks through the whole workflow: filter and weight knowledge
points, save selections as training items, generate and score annotations,
then submit a fine-tuning job and watch it run.

Controls:
  ↑/k, ↓/j - Navigate
  1-5      - Open a section from the menu
  Esc      - Back / Cancel
  ?        - Toggle help
  ctrl+c   - Quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

// tuiPorts builds the TUI ports from the injected services.
func tuiPorts() *tui.Ports {
	return &tui.Ports{
		Fragments:  fragmentService,
		Items:      itemService,
		Generation: generationService,
		Dataset:    datasetService,
		FineTuning: finetuneService,
		Monitor:    monitorService,
		Settings:   settingsService,
		Events:     eventSource,
	}
}

func runTUI(cmd *cobra.Command, _ []string) error {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	ctx := commandContext(cmd)

	// NewApp rejects missing required ports, so ports.Generation and
	// ports.Monitor are set past this point.
	ports := tuiPorts()
	app, err := tui.NewApp(ports)
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}

	if err := loadWorkspace(ctx); err != nil {
		return err
	}
	if ports.Settings != nil {
		if settings, err := ports.Settings.Get(); err == nil {
			ports.Monitor.SetAutoRefresh(settings.Monitor.AutoRefresh)
		}
	}
	defer ports.Generation.Stop()
	defer ports.Monitor.Stop()

	if err := app.WithContext(ctx).Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
