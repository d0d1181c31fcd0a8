package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

var (
	generateTemplate string
	generateDetach   bool
	generateSave     bool
	generateTimeout  time.Duration

	generateHistoryLimit int
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate annotations from the selected fragments",
	Long: `Submits a generation job for the selected fragments. With nothing selected
the active training item's fragments are used, and failing that every
fragment matching the last filter.

The command waits for the job to finish, then saves the generated
annotations scoped to the active training item. Use --detach to return
as soon as the job is accepted and 'generate resume' to pick it up later.`,
	Args: cobra.NoArgs,
	RunE: runGenerate,
}

var generatePreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the fragments and prompt the next generation would use",
	Args:  cobra.NoArgs,
	RunE:  runGeneratePreview,
}

var generateResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume following a pending or running generation job",
	Args:  cobra.NoArgs,
	RunE:  runGenerateResume,
}

var generateHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List finished generation jobs recorded locally",
	Args:  cobra.NoArgs,
	RunE:  runGenerateHistory,
}

func init() {
	for _, c := range []*cobra.Command{generateCmd, generateResumeCmd} {
		c.Flags().BoolVar(&generateSave, "save", true, "save generated annotations when the job completes")
		c.Flags().DurationVar(&generateTimeout, "timeout", 30*time.Minute, "give up waiting after this long")
	}
	generateCmd.Flags().StringVarP(&generateTemplate, "template", "t", "", "use a named template from the library")
	generateCmd.Flags().BoolVarP(&generateDetach, "detach", "d", false, "return once the job is accepted")
	generatePreviewCmd.Flags().StringVarP(&generateTemplate, "template", "t", "", "use a named template from the library")
	generateHistoryCmd.Flags().IntVarP(&generateHistoryLimit, "limit", "n", 20, "maximum number of entries")

	generateCmd.AddCommand(generatePreviewCmd)
	generateCmd.AddCommand(generateResumeCmd)
	generateCmd.AddCommand(generateHistoryCmd)
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, _ []string) error {
	if generationService == nil {
		return errNotConfigured("generation")
	}
	ctx := commandContext(cmd)
	if err := loadWorkspace(ctx); err != nil {
		return err
	}
	if err := useTemplateFlag(); err != nil {
		return err
	}

	frags, err := generationService.ResolveFragments()
	if err != nil {
		return err
	}
	jobID, err := generationService.Generate(ctx)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}
	cmd.Printf("Submitted generation job %s for %d fragments.\n", jobID, len(frags))

	if generateDetach {
		generationService.Stop()
		cmd.Println("Run 'privatetune generate resume' to follow it.")
		return nil
	}
	return followGeneration(ctx, cmd)
}

func runGeneratePreview(cmd *cobra.Command, _ []string) error {
	if generationService == nil {
		return errNotConfigured("generation")
	}
	if err := loadWorkspace(commandContext(cmd)); err != nil {
		return err
	}
	if err := useTemplateFlag(); err != nil {
		return err
	}

	frags, err := generationService.ResolveFragments()
	if err != nil {
		return err
	}
	cmd.Printf("%d fragments would be submitted.\n\n", len(frags))
	cmd.Println("First prompt:")
	cmd.Println(domain.RenderPrompt(generationService.Template(), frags[0].Content))
	return nil
}

func runGenerateResume(cmd *cobra.Command, _ []string) error {
	if generationService == nil {
		return errNotConfigured("generation")
	}
	ctx := commandContext(cmd)
	if err := loadWorkspace(ctx); err != nil {
		return err
	}
	if err := generationService.Start(ctx); err != nil {
		return fmt.Errorf("failed to resume: %w", err)
	}
	job := generationService.Job()
	if job == nil {
		cmd.Println("No pending or running generation job.")
		return nil
	}
	cmd.Printf("Resuming generation job %s (%s).\n", job.ID, job.Status)
	return followGeneration(ctx, cmd)
}

func runGenerateHistory(cmd *cobra.Command, _ []string) error {
	if sessionService == nil {
		return errNotConfigured("session")
	}
	outcomes, err := sessionService.History(commandContext(cmd), generateHistoryLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(outcomes) == 0 {
		cmd.Println("No generation jobs recorded.")
		return nil
	}
	for i := range outcomes {
		o := outcomes[i]
		cmd.Printf("%s  %-10s %-36s", o.FinishedAt.Local().Format("2006-01-02 15:04"), o.Status, o.JobID)
		if o.Status == domain.GenerationCompleted {
			cmd.Printf(" %d annotations", o.AnnotationCount)
		} else if o.ErrorMessage != "" {
			cmd.Printf(" %s", truncate(o.ErrorMessage, 60))
		}
		cmd.Println()
	}
	return nil
}

func useTemplateFlag() error {
	if generateTemplate == "" {
		return nil
	}
	if templateService == nil {
		return errNotConfigured("template")
	}
	return templateService.Use(generateTemplate)
}

// followGeneration waits until the tracked job settles, printing progress.
func followGeneration(ctx context.Context, cmd *cobra.Command) error {
	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()
	defer generationService.Stop()

	changed := make(chan struct{}, 1)
	if eventSource != nil {
		unsubscribe := eventSource.Subscribe(func(ev domain.Event) {
			if ev.Kind != domain.EventGenerationChanged {
				return
			}
			select {
			case changed <- struct{}{}:
			default:
			}
		})
		defer unsubscribe()
	}

	// Poll directly as well so progress never depends on event delivery.
	ticker := time.NewTicker(domain.GenerationPollInterval)
	defer ticker.Stop()

	lastProgress := -1.0
	for {
		if generationService.State() == domain.StateIdle {
			break
		}
		if job := generationService.Job(); job != nil && job.Progress != lastProgress {
			lastProgress = job.Progress
			cmd.Printf("  %s %3.0f%%\n", job.Status, job.Progress)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("stopped waiting for generation: %w", ctx.Err())
		case <-changed:
		case <-ticker.C:
			if _, err := generationService.PollOnce(ctx); err != nil {
				cmd.PrintErrf("poll failed, retrying: %v\n", err)
			}
		}
	}

	outcome := generationService.LastOutcome()
	if outcome == nil {
		return nil
	}
	if outcome.Status != domain.GenerationCompleted {
		return fmt.Errorf("%w: %s", domain.ErrJobFailed, outcome.ErrorMessage)
	}
	cmd.Printf("Generated %d annotations.\n", outcome.AnnotationCount)

	if !generateSave || datasetService == nil || outcome.AnnotationCount == 0 {
		return nil
	}
	count, err := datasetService.Save(ctx, activeItemID())
	if err != nil {
		return fmt.Errorf("failed to save annotations: %w", err)
	}
	cmd.Printf("Saved %d annotations.\n", count)
	return nil
}

// activeItemID returns the active training item id, or nil.
func activeItemID() *int64 {
	if itemService == nil {
		return nil
	}
	if item := itemService.Active(); item != nil {
		id := item.ID
		return &id
	}
	return nil
}
