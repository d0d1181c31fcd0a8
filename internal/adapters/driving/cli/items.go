package cli

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

var itemsSaveTemplateFile string

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Manage training items",
	Long: `A training item is a named checkpoint of a fragment selection and a
prompt template. Activating an item restores both and loads the
annotations saved for it.`,
	RunE: runItemsList,
}

var itemsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List training items",
	RunE:  runItemsList,
}

var itemsSaveCmd = &cobra.Command{
	Use:   "save name",
	Short: "Save the current selection and template as a training item",
	Long: `Saves the current fragment selection and prompt template under name and
makes it the active item. An item with the same name is overwritten.`,
	Args: cobra.ExactArgs(1),
	RunE: runItemsSave,
}

var itemsActivateCmd = &cobra.Command{
	Use:   "activate id",
	Short: "Restore a training item's selection, template and annotations",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsActivate,
}

var itemsDeleteCmd = &cobra.Command{
	Use:   "delete id",
	Short: "Delete a training item",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsDelete,
}

func init() {
	itemsSaveCmd.Flags().StringVar(&itemsSaveTemplateFile, "template-file", "", "read the prompt template from a file")

	itemsCmd.AddCommand(itemsListCmd)
	itemsCmd.AddCommand(itemsSaveCmd)
	itemsCmd.AddCommand(itemsActivateCmd)
	itemsCmd.AddCommand(itemsDeleteCmd)
	rootCmd.AddCommand(itemsCmd)
}

func runItemsList(cmd *cobra.Command, _ []string) error {
	if itemService == nil {
		return errNotConfigured("training item")
	}
	if err := loadWorkspace(commandContext(cmd)); err != nil {
		return err
	}

	items := itemService.Items()
	if len(items) == 0 {
		cmd.Println("No training items.")
		return nil
	}

	var activeID int64
	if active := itemService.Active(); active != nil {
		activeID = active.ID
	}
	for i := range items {
		mark := " "
		if items[i].ID == activeID {
			mark = "*"
		}
		resolved := len(itemService.ResolveKeys(items[i]))
		cmd.Printf("%s %4d  %-24s %d fragments", mark, items[i].ID, truncate(items[i].Name, 24), len(items[i].FragmentKeys))
		if resolved != len(items[i].FragmentKeys) {
			cmd.Printf(" (%d available)", resolved)
		}
		if !items[i].UpdatedAt.IsZero() {
			cmd.Printf("  updated %s", items[i].UpdatedAt.Local().Format("2006-01-02 15:04"))
		}
		cmd.Println()
	}
	return nil
}

func runItemsSave(cmd *cobra.Command, args []string) error {
	if itemService == nil || generationService == nil {
		return errNotConfigured("training item")
	}
	ctx := commandContext(cmd)
	if err := loadWorkspace(ctx); err != nil {
		return err
	}

	template := generationService.Template()
	if itemsSaveTemplateFile != "" {
		data, err := os.ReadFile(itemsSaveTemplateFile)
		if err != nil {
			return fmt.Errorf("failed to read template: %w", err)
		}
		template = string(data)
	}

	item, err := itemService.Save(ctx, args[0], fragmentService.Selection(), template)
	if err != nil {
		return fmt.Errorf("failed to save training item: %w", err)
	}
	cmd.Printf("Saved training item %q (id %d) with %d fragments.\n", item.Name, item.ID, len(item.FragmentKeys))
	return nil
}

func runItemsActivate(cmd *cobra.Command, args []string) error {
	if itemService == nil {
		return errNotConfigured("training item")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	if err := loadWorkspace(ctx); err != nil {
		return err
	}

	if err := itemService.Activate(ctx, id); err != nil {
		return fmt.Errorf("failed to activate training item: %w", err)
	}
	active := itemService.Active()
	cmd.Printf("Activated %q: %d fragments selected", active.Name, len(fragmentService.Selection()))
	if datasetService != nil {
		cmd.Printf(", %d annotations loaded", datasetService.Len())
	}
	cmd.Println(".")
	return nil
}

func runItemsDelete(cmd *cobra.Command, args []string) error {
	if itemService == nil {
		return errNotConfigured("training item")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	ctx := commandContext(cmd)
	if err := loadWorkspace(ctx); err != nil {
		return err
	}

	if err := itemService.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete training item: %w", err)
	}
	cmd.Printf("Deleted training item %d.\n", id)
	return nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: id %q", domain.ErrInvalidInput, s)
	}
	return id, nil
}
