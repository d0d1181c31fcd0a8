package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

var (
	finetuneSize     int
	finetuneModel    string
	finetunePlatform string
	finetuneFormat   string
	finetuneYes      bool
)

var finetuneCmd = &cobra.Command{
	Use:   "finetune",
	Short: "Estimate and submit fine-tuning jobs",
	Long: `Submits annotations that have not been used for fine-tuning yet. The
dataset size is clamped to the number of untuned annotations and they are
taken in dataset order. Defaults come from 'privatetune settings'.`,
}

var finetuneEstimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate the cost of a fine-tuning job",
	Args:  cobra.NoArgs,
	RunE:  runFinetuneEstimate,
}

var finetuneSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit untuned annotations as a fine-tuning job",
	Args:  cobra.NoArgs,
	RunE:  runFinetuneSubmit,
}

func init() {
	for _, c := range []*cobra.Command{finetuneEstimateCmd, finetuneSubmitCmd} {
		c.Flags().IntVarP(&finetuneSize, "size", "s", 0, "number of annotations to submit")
		c.Flags().StringVarP(&finetuneModel, "model", "m", "", "base model")
		c.Flags().StringVarP(&finetunePlatform, "platform", "p", "", "fine-tuning platform")
	}
	finetuneSubmitCmd.Flags().StringVarP(&finetuneFormat, "format", "f", "", "training data format: sft or dpo")
	finetuneSubmitCmd.Flags().BoolVarP(&finetuneYes, "yes", "y", false, "submit without asking")

	finetuneCmd.PersistentFlags().Int64Var(&datasetItem, "item", 0, "training item id to scope to")
	finetuneCmd.PersistentFlags().BoolVar(&datasetUnscoped, "unscoped", false, "ignore the active training item")

	finetuneCmd.AddCommand(finetuneEstimateCmd)
	finetuneCmd.AddCommand(finetuneSubmitCmd)
	rootCmd.AddCommand(finetuneCmd)
}

// prepareFinetune loads the dataset and applies the flag overrides.
func prepareFinetune(cmd *cobra.Command) error {
	if finetuneService == nil {
		return errNotConfigured("fine-tuning")
	}
	if _, err := loadDataset(commandContext(cmd)); err != nil {
		return err
	}

	if cmd.Flags().Changed("size") {
		finetuneService.SetDatasetSize(finetuneSize)
	}
	if finetuneModel != "" {
		finetuneService.SetModel(finetuneModel)
	}
	if finetunePlatform != "" {
		finetuneService.SetPlatform(finetunePlatform)
	}
	if finetuneFormat != "" {
		if err := finetuneService.SetFormat(domain.TrainingFormat(finetuneFormat)); err != nil {
			return err
		}
	}
	return nil
}

func printEstimate(cmd *cobra.Command, est *domain.CostEstimate) {
	cmd.Printf("Platform:   %s\n", finetuneService.Platform())
	cmd.Printf("Model:      %s\n", finetuneService.Model())
	cmd.Printf("Format:     %s\n", finetuneService.Format())
	cmd.Printf("Untuned:    %d\n", finetuneService.UntunedCount())
	cmd.Printf("Submitting: %d", finetuneService.EffectiveDatasetSize())
	if requested := finetuneService.DatasetSize(); requested != finetuneService.EffectiveDatasetSize() {
		cmd.Printf(" (requested %d)", requested)
	}
	cmd.Println()
	if est != nil {
		cmd.Printf("Estimate:   $%.2f\n", est.EstimatedCostUSD)
	} else {
		cmd.Println("Estimate:   n/a")
	}
}

func runFinetuneEstimate(cmd *cobra.Command, _ []string) error {
	if err := prepareFinetune(cmd); err != nil {
		return err
	}
	est, err := finetuneService.RefreshEstimate(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to estimate cost: %w", err)
	}
	printEstimate(cmd, est)
	return nil
}

func runFinetuneSubmit(cmd *cobra.Command, _ []string) error {
	if err := prepareFinetune(cmd); err != nil {
		return err
	}
	ctx := commandContext(cmd)
	if finetuneService.UntunedCount() == 0 {
		return domain.ErrNoUntunedAnnotations
	}

	est, err := finetuneService.RefreshEstimate(ctx)
	if err != nil {
		cmd.PrintErrf("Cost estimate unavailable: %v\n", err)
	}
	printEstimate(cmd, est)

	if !finetuneYes {
		cmd.Print("\nSubmit this job? [y/N]: ")
		answer := strings.ToLower(readLine(bufio.NewReader(os.Stdin)))
		if answer != "y" && answer != "yes" {
			return errAborted
		}
	}

	job, err := finetuneService.Submit(ctx)
	if err != nil {
		return fmt.Errorf("failed to submit: %w", err)
	}
	cmd.Printf("Submitted fine-tuning job %s (%s).\n", job.ID, job.Status)
	cmd.Printf("Follow it with 'privatetune jobs show %s'.\n", job.ID)
	return nil
}
