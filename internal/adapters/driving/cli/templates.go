package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	templatesSaveFile    string
	templatesSaveCurrent bool
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "Manage the prompt template library",
	Long: `Prompt templates wrap each fragment before it is sent for generation.
The placeholder {knowledge_point} is replaced by the fragment content; a
template without it gets the content appended.`,
	RunE: runTemplatesList,
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored templates",
	Args:  cobra.NoArgs,
	RunE:  runTemplatesList,
}

var templatesShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Print a stored template, or the current one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTemplatesShow,
}

var templatesUseCmd = &cobra.Command{
	Use:   "use name",
	Short: "Make a stored template the current one",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesUse,
}

var templatesSaveCmd = &cobra.Command{
	Use:   "save name",
	Short: "Store a template from a file or the current one",
	Args:  cobra.ExactArgs(1),
	RunE:  runTemplatesSave,
}

func init() {
	templatesSaveCmd.Flags().StringVarP(&templatesSaveFile, "file", "f", "", "read the template from a file")
	templatesSaveCmd.Flags().BoolVar(&templatesSaveCurrent, "current", false, "store the current template")

	templatesCmd.AddCommand(templatesListCmd)
	templatesCmd.AddCommand(templatesShowCmd)
	templatesCmd.AddCommand(templatesUseCmd)
	templatesCmd.AddCommand(templatesSaveCmd)
	rootCmd.AddCommand(templatesCmd)
}

func runTemplatesList(cmd *cobra.Command, _ []string) error {
	if templateService == nil {
		return errNotConfigured("template")
	}
	names, err := templateService.List()
	if err != nil {
		return fmt.Errorf("failed to list templates: %w", err)
	}
	if len(names) == 0 {
		cmd.Println("No templates.")
		return nil
	}
	for _, name := range names {
		cmd.Println("  " + name)
	}
	return nil
}

func runTemplatesShow(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		if generationService == nil {
			return errNotConfigured("generation")
		}
		if err := loadWorkspace(commandContext(cmd)); err != nil {
			return err
		}
		cmd.Println(generationService.Template())
		return nil
	}

	if templateService == nil {
		return errNotConfigured("template")
	}
	tmpl, err := templateService.Show(args[0])
	if err != nil {
		return err
	}
	cmd.Println(tmpl)
	return nil
}

func runTemplatesUse(cmd *cobra.Command, args []string) error {
	if templateService == nil {
		return errNotConfigured("template")
	}
	if err := loadWorkspace(commandContext(cmd)); err != nil {
		return err
	}
	if err := templateService.Use(args[0]); err != nil {
		return err
	}
	cmd.Printf("Using template %q.\n", args[0])
	return nil
}

func runTemplatesSave(cmd *cobra.Command, args []string) error {
	if templateService == nil {
		return errNotConfigured("template")
	}
	name := args[0]

	switch {
	case templatesSaveFile != "" && templatesSaveCurrent:
		return fmt.Errorf("--file and --current are mutually exclusive")
	case templatesSaveFile != "":
		data, err := os.ReadFile(templatesSaveFile)
		if err != nil {
			return fmt.Errorf("failed to read template: %w", err)
		}
		if err := templateService.Save(name, string(data)); err != nil {
			return err
		}
	case templatesSaveCurrent:
		if err := loadWorkspace(commandContext(cmd)); err != nil {
			return err
		}
		if err := templateService.SaveCurrent(name); err != nil {
			return err
		}
	default:
		return fmt.Errorf("give --file or --current")
	}

	cmd.Printf("Saved template %q.\n", name)
	return nil
}
