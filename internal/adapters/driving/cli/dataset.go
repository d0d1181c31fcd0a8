package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

var (
	datasetItem     int64
	datasetUnscoped bool

	datasetShowJSON  bool
	datasetShowLimit int

	datasetExportFormat   string
	datasetExportMinScore int
	datasetExportUntuned  bool
	datasetExportOutput   string

	datasetEditInstruction string
	datasetEditResponse    string
)

var datasetCmd = &cobra.Command{
	Use:   "dataset",
	Short: "Inspect, score, edit and export saved annotations",
	Long: `Works on the annotation set saved on the backend. Commands are scoped to
the active training item unless --item or --unscoped is given.`,
	RunE: runDatasetShow,
}

var datasetShowCmd = &cobra.Command{
	Use:   "show",
	Short: "List annotations",
	Args:  cobra.NoArgs,
	RunE:  runDatasetShow,
}

var datasetStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the annotation set",
	Args:  cobra.NoArgs,
	RunE:  runDatasetStats,
}

var datasetScoreCmd = &cobra.Command{
	Use:   "score index score",
	Short: "Score an annotation (1-5) and save",
	Args:  cobra.ExactArgs(2),
	RunE:  runDatasetScore,
}

var datasetEditCmd = &cobra.Command{
	Use:   "edit index",
	Short: "Edit an annotation's instruction or response and save",
	Args:  cobra.ExactArgs(1),
	RunE:  runDatasetEdit,
}

var datasetExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export annotations as JSON Lines",
	Long: `Writes one JSON record per annotation. The raw format keeps
instruction, response and score; the sft format writes chat messages.`,
	Args: cobra.NoArgs,
	RunE: runDatasetExport,
}

func init() {
	datasetCmd.PersistentFlags().Int64Var(&datasetItem, "item", 0, "training item id to scope to")
	datasetCmd.PersistentFlags().BoolVar(&datasetUnscoped, "unscoped", false, "ignore the active training item")

	for _, c := range []*cobra.Command{datasetCmd, datasetShowCmd} {
		c.Flags().BoolVar(&datasetShowJSON, "json", false, "output annotations as JSON")
		c.Flags().IntVarP(&datasetShowLimit, "limit", "n", 0, "maximum number of annotations to print (0 = all)")
	}

	datasetEditCmd.Flags().StringVar(&datasetEditInstruction, "instruction", "", "new instruction")
	datasetEditCmd.Flags().StringVar(&datasetEditResponse, "response", "", "new response")

	datasetExportCmd.Flags().StringVarP(&datasetExportFormat, "format", "f", string(domain.ExportRaw), "export format: raw or sft")
	datasetExportCmd.Flags().IntVar(&datasetExportMinScore, "min-score", 0, "only annotations scored at least this")
	datasetExportCmd.Flags().BoolVar(&datasetExportUntuned, "untuned", false, "only annotations not yet fine-tuned")
	datasetExportCmd.Flags().StringVarP(&datasetExportOutput, "output", "o", "", "write to a file instead of stdout")

	datasetCmd.AddCommand(datasetShowCmd)
	datasetCmd.AddCommand(datasetStatsCmd)
	datasetCmd.AddCommand(datasetScoreCmd)
	datasetCmd.AddCommand(datasetEditCmd)
	datasetCmd.AddCommand(datasetExportCmd)
	rootCmd.AddCommand(datasetCmd)
}

// datasetScope resolves the training item scope from the flags.
func datasetScope() *int64 {
	if datasetUnscoped {
		return nil
	}
	if datasetItem > 0 {
		id := datasetItem
		return &id
	}
	return activeItemID()
}

// loadDataset loads the workspace and the scoped annotation set.
func loadDataset(ctx context.Context) (*int64, error) {
	if datasetService == nil {
		return nil, errNotConfigured("dataset")
	}
	if err := loadWorkspace(ctx); err != nil {
		return nil, err
	}
	scope := datasetScope()
	if err := datasetService.Load(ctx, scope); err != nil {
		return nil, fmt.Errorf("failed to load annotations: %w", err)
	}
	return scope, nil
}

func runDatasetShow(cmd *cobra.Command, _ []string) error {
	if _, err := loadDataset(commandContext(cmd)); err != nil {
		return err
	}

	anns := datasetService.Annotations()
	if datasetShowLimit > 0 && len(anns) > datasetShowLimit {
		anns = anns[:datasetShowLimit]
	}
	if datasetShowJSON {
		out := make([]annotationJSON, len(anns))
		for i := range anns {
			out[i] = annotationJSON{
				Index:       i,
				ID:          anns[i].ID,
				Instruction: anns[i].Instruction,
				Response:    anns[i].Response,
				Finetuned:   anns[i].Finetuned,
			}
			if anns[i].HasScore() {
				score := anns[i].Score
				out[i].Score = &score
			}
		}
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal annotations: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if len(anns) == 0 {
		cmd.Println("No annotations.")
		return nil
	}
	for i := range anns {
		score := "-"
		if anns[i].HasScore() {
			score = strconv.Itoa(anns[i].Score)
		}
		tuned := " "
		if anns[i].Finetuned {
			tuned = "T"
		}
		cmd.Printf("%4d  [%s] %s  %s\n", i, score, tuned, truncate(oneLine(anns[i].Instruction), 70))
		cmd.Printf("            %s\n", truncate(oneLine(anns[i].Response), 70))
	}
	cmd.Println()
	printStats(cmd, datasetService.Stats())
	return nil
}

type annotationJSON struct {
	Index       int    `json:"index"`
	ID          int64  `json:"id,omitempty"`
	Instruction string `json:"instruction"`
	Response    string `json:"response"`
	Score       *int   `json:"score"`
	Finetuned   bool   `json:"finetuned"`
}

func runDatasetStats(cmd *cobra.Command, _ []string) error {
	if _, err := loadDataset(commandContext(cmd)); err != nil {
		return err
	}
	printStats(cmd, datasetService.Stats())
	return nil
}

func printStats(cmd *cobra.Command, s domain.DatasetStats) {
	cmd.Printf("%d annotations, %d scored", s.Total, s.Scored)
	if s.Scored > 0 {
		cmd.Printf(" (average %.2f)", s.AverageScore)
	}
	cmd.Printf(", %d fine-tuned, %d untuned.\n", s.Tuned, s.Untuned)
}

func runDatasetScore(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: index %q", domain.ErrInvalidInput, args[0])
	}
	score, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("%w: score %q", domain.ErrInvalidInput, args[1])
	}

	ctx := commandContext(cmd)
	scope, err := loadDataset(ctx)
	if err != nil {
		return err
	}
	if err := datasetService.SetScore(index, score); err != nil {
		return err
	}
	if _, err := datasetService.Save(ctx, scope); err != nil {
		return fmt.Errorf("failed to save annotations: %w", err)
	}
	cmd.Printf("Scored annotation %d: %d.\n", index, datasetService.Annotations()[index].Score)
	return nil
}

func runDatasetEdit(cmd *cobra.Command, args []string) error {
	index, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("%w: index %q", domain.ErrInvalidInput, args[0])
	}
	if !cmd.Flags().Changed("instruction") && !cmd.Flags().Changed("response") {
		return fmt.Errorf("%w: give --instruction or --response", domain.ErrInvalidInput)
	}

	ctx := commandContext(cmd)
	scope, err := loadDataset(ctx)
	if err != nil {
		return err
	}
	draft, err := datasetService.BeginEdit(index)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("instruction") {
		draft.Instruction = datasetEditInstruction
	}
	if cmd.Flags().Changed("response") {
		draft.Response = datasetEditResponse
	}
	if err := datasetService.CommitEdit(*draft); err != nil {
		return err
	}
	if _, err := datasetService.Save(ctx, scope); err != nil {
		return fmt.Errorf("failed to save annotations: %w", err)
	}
	cmd.Printf("Updated annotation %d.\n", index)
	return nil
}

func runDatasetExport(cmd *cobra.Command, _ []string) error {
	opts := domain.ExportOptions{
		Format:      domain.ExportFormat(datasetExportFormat),
		MinScore:    datasetExportMinScore,
		UntunedOnly: datasetExportUntuned,
	}
	if !opts.Format.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidFormat, datasetExportFormat)
	}
	if _, err := loadDataset(commandContext(cmd)); err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if datasetExportOutput != "" {
		f, err := os.Create(datasetExportOutput)
		if err != nil {
			return fmt.Errorf("failed to create output: %w", err)
		}
		defer f.Close()
		w = f
	}

	n, err := datasetService.Export(w, opts)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	if datasetExportOutput != "" {
		cmd.Printf("Exported %d annotations to %s.\n", n, datasetExportOutput)
	} else {
		cmd.PrintErrf("Exported %d annotations.\n", n)
	}
	return nil
}
