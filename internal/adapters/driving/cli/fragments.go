package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// filterFlags are the fragment filter options shared by several commands.
type filterFlags struct {
	minWeight float64
	content   string
	keywords  string
	order     string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&f.minWeight, "min-weight", 0, "only fragments with at least this weight")
	cmd.Flags().StringVar(&f.content, "content", "", "substring of the content or document name")
	cmd.Flags().StringVar(&f.keywords, "keywords", "", "comma or space separated keywords, all must match")
	cmd.Flags().StringVar(&f.order, "order", "", "order by 'document' or 'weight'")
}

// apply installs the filter and order on the fragment service.
func (f *filterFlags) apply() error {
	if err := fragmentService.SetOrder(domain.FragmentOrder(f.order)); err != nil {
		return err
	}
	fragmentService.SetFilter(domain.FragmentFilter{
		MinWeight: f.minWeight,
		Content:   f.content,
		Keywords:  f.keywords,
	})
	return nil
}

var (
	fragmentsListFilter   filterFlags
	fragmentsListLimit    int
	fragmentsListJSON     bool
	fragmentsListSelected bool

	fragmentsSelectFilter filterFlags
	fragmentsSelectAll    bool
)

var fragmentsCmd = &cobra.Command{
	Use:     "fragments",
	Aliases: []string{"frags"},
	Short:   "Browse, select and weight knowledge fragments",
	Long: `Lists the fragment corpus held by the backend and manages the selection
used for generation. Fragments are addressed by their key, "<document>:<chunk>".`,
	RunE: runFragmentsList,
}

var fragmentsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List fragments matching a filter",
	RunE:  runFragmentsList,
}

var fragmentsSelectCmd = &cobra.Command{
	Use:   "select [key...]",
	Short: "Add fragments to the selection",
	Long: `Adds fragments to the selection. With --all every fragment matching the
filter flags is selected.`,
	RunE: runFragmentsSelect,
}

var fragmentsDeselectCmd = &cobra.Command{
	Use:   "deselect key...",
	Short: "Remove fragments from the selection",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFragmentsDeselect,
}

var fragmentsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the selection",
	Args:  cobra.NoArgs,
	RunE:  runFragmentsClear,
}

var fragmentsWeightCmd = &cobra.Command{
	Use:   "weight key weight",
	Short: "Set a fragment's weight (1-5)",
	Args:  cobra.ExactArgs(2),
	RunE:  runFragmentsWeight,
}

var fragmentsExcludeCmd = &cobra.Command{
	Use:   "exclude key...",
	Short: "Exclude fragments from the corpus",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runFragmentsExclude,
}

func init() {
	fragmentsListFilter.register(fragmentsListCmd)
	fragmentsListCmd.Flags().IntVarP(&fragmentsListLimit, "limit", "n", 0, "maximum number of fragments to print (0 = all)")
	fragmentsListCmd.Flags().BoolVar(&fragmentsListJSON, "json", false, "output fragments as JSON")
	fragmentsListCmd.Flags().BoolVar(&fragmentsListSelected, "selected", false, "only list selected fragments")

	fragmentsSelectFilter.register(fragmentsSelectCmd)
	fragmentsSelectCmd.Flags().BoolVar(&fragmentsSelectAll, "all", false, "select every fragment matching the filter")

	fragmentsCmd.AddCommand(fragmentsListCmd)
	fragmentsCmd.AddCommand(fragmentsSelectCmd)
	fragmentsCmd.AddCommand(fragmentsDeselectCmd)
	fragmentsCmd.AddCommand(fragmentsClearCmd)
	fragmentsCmd.AddCommand(fragmentsWeightCmd)
	fragmentsCmd.AddCommand(fragmentsExcludeCmd)
	rootCmd.AddCommand(fragmentsCmd)
}

func runFragmentsList(cmd *cobra.Command, _ []string) error {
	if err := loadWorkspace(commandContext(cmd)); err != nil {
		return err
	}
	if err := fragmentsListFilter.apply(); err != nil {
		return err
	}

	frags := fragmentService.Filtered()
	if fragmentsListSelected {
		frags = fragmentService.Lookup(fragmentService.Selection())
	}
	total := len(frags)
	if fragmentsListLimit > 0 && len(frags) > fragmentsListLimit {
		frags = frags[:fragmentsListLimit]
	}

	if fragmentsListJSON {
		return outputFragmentsJSON(cmd, frags)
	}

	if len(frags) == 0 {
		cmd.Println("No fragments found.")
		return nil
	}
	for i := range frags {
		mark := " "
		if fragmentService.IsSelected(frags[i].Key()) {
			mark = "x"
		}
		cmd.Printf("[%s] %-10s %3.1f  %-24s %s\n",
			mark, frags[i].Key(), frags[i].Weight,
			truncate(frags[i].DocumentName, 24), truncate(oneLine(frags[i].Content), 60))
	}
	cmd.Println()
	cmd.Printf("%d of %d fragments shown, %d selected.\n",
		len(frags), total, len(fragmentService.Selection()))
	return nil
}

type fragmentJSON struct {
	Key          string   `json:"key"`
	ID           int64    `json:"id"`
	DocumentName string   `json:"document_name"`
	Weight       float64  `json:"weight"`
	Keywords     []string `json:"keywords,omitempty"`
	Content      string   `json:"content"`
	Selected     bool     `json:"selected"`
}

func outputFragmentsJSON(cmd *cobra.Command, frags []domain.Fragment) error {
	out := make([]fragmentJSON, len(frags))
	for i := range frags {
		out[i] = fragmentJSON{
			Key:          string(frags[i].Key()),
			ID:           frags[i].ID,
			DocumentName: frags[i].DocumentName,
			Weight:       frags[i].Weight,
			Keywords:     frags[i].Keywords,
			Content:      frags[i].Content,
			Selected:     fragmentService.IsSelected(frags[i].Key()),
		}
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal fragments: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func runFragmentsSelect(cmd *cobra.Command, args []string) error {
	if !fragmentsSelectAll && len(args) == 0 {
		return fmt.Errorf("%w: give fragment keys or --all", domain.ErrInvalidInput)
	}
	if err := loadWorkspace(commandContext(cmd)); err != nil {
		return err
	}

	before := len(fragmentService.Selection())
	if fragmentsSelectAll {
		if err := fragmentsSelectFilter.apply(); err != nil {
			return err
		}
		fragmentService.SelectAllFiltered()
	}
	fragmentService.Select(parseKeys(args)...)

	after := len(fragmentService.Selection())
	cmd.Printf("Selected %d fragments (%d total).\n", after-before, after)
	return nil
}

func runFragmentsDeselect(cmd *cobra.Command, args []string) error {
	if err := loadWorkspace(commandContext(cmd)); err != nil {
		return err
	}
	fragmentService.Deselect(parseKeys(args)...)
	cmd.Printf("%d fragments selected.\n", len(fragmentService.Selection()))
	return nil
}

func runFragmentsClear(cmd *cobra.Command, _ []string) error {
	if err := loadWorkspace(commandContext(cmd)); err != nil {
		return err
	}
	fragmentService.ClearSelection()
	cmd.Println("Selection cleared.")
	return nil
}

func runFragmentsWeight(cmd *cobra.Command, args []string) error {
	weight, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return fmt.Errorf("%w: weight %q", domain.ErrInvalidInput, args[1])
	}
	ctx := commandContext(cmd)
	if err := loadWorkspace(ctx); err != nil {
		return err
	}
	key := domain.FragmentKey(args[0])
	if err := fragmentService.UpdateWeight(ctx, key, weight); err != nil {
		return fmt.Errorf("failed to update weight: %w", err)
	}
	cmd.Printf("Set weight of %s to %.1f.\n", key, weight)
	return nil
}

func runFragmentsExclude(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	if err := loadWorkspace(ctx); err != nil {
		return err
	}
	for _, key := range parseKeys(args) {
		if err := fragmentService.Exclude(ctx, key); err != nil {
			return fmt.Errorf("failed to exclude %s: %w", key, err)
		}
		cmd.Printf("Excluded %s.\n", key)
	}
	return nil
}

// parseKeys accepts keys as separate arguments or comma separated.
func parseKeys(args []string) []domain.FragmentKey {
	var keys []domain.FragmentKey
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			if part = strings.TrimSpace(part); part != "" {
				keys = append(keys, domain.FragmentKey(part))
			}
		}
	}
	return keys
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
