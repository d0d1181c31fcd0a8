package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// settingsInput is where interactive answers are read from.
var settingsInput io.Reader = os.Stdin

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure the backend connection, the generation model and the
fine-tuning defaults.

Use subcommands to configure specific settings or run the interactive wizard.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure all settings step by step.`,
	RunE:  runSettingsWizard,
}

var settingsBackendCmd = &cobra.Command{
	Use:   "backend",
	Short: "Configure the backend connection",
	RunE:  runSettingsBackend,
}

var settingsGenerationCmd = &cobra.Command{
	Use:   "generation",
	Short: "Configure the annotation generation model",
	Long: `Configure the platform, model and API key used to generate annotations.

Available platforms:
  deepseek  - DeepSeek (cloud)
  dashscope - DashScope (cloud)
  openai    - OpenAI (cloud)`,
	RunE: runSettingsGeneration,
}

var settingsFinetuningCmd = &cobra.Command{
	Use:   "finetuning",
	Short: "Configure fine-tuning defaults",
	RunE:  runSettingsFinetuning,
}

var settingsAutoRefreshCmd = &cobra.Command{
	Use:       "auto-refresh on|off",
	Short:     "Toggle periodic job list refresh",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runSettingsAutoRefresh,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	settingsCmd.AddCommand(settingsBackendCmd)
	settingsCmd.AddCommand(settingsGenerationCmd)
	settingsCmd.AddCommand(settingsFinetuningCmd)
	settingsCmd.AddCommand(settingsAutoRefreshCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	// Backend settings
	cmd.Println("[Backend]")
	cmd.Printf("  URL: %s\n", settings.Backend.URL)
	if settings.Backend.Token != "" {
		cmd.Printf("  Token: %s\n", maskAPIKey(settings.Backend.Token))
	} else {
		cmd.Printf("  Token: (not set)\n")
	}
	cmd.Printf("  Timeout: %s\n", settings.Backend.Timeout)
	if settings.Backend.RequestsPerSecond > 0 {
		cmd.Printf("  Rate limit: %g requests/s\n", settings.Backend.RequestsPerSecond)
	} else {
		cmd.Printf("  Rate limit: off\n")
	}
	cmd.Println()

	// Generation settings
	cmd.Println("[Generation]")
	cmd.Printf("  Platform: %s\n", domain.Platform(settings.Generation.Platform).Description())
	cmd.Printf("  Model: %s\n", valueOrUnset(settings.Generation.Model))
	if settings.Generation.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Generation.BaseURL)
	}
	if settings.Generation.APIKey != "" {
		cmd.Printf("  API Key: %s\n", maskAPIKey(settings.Generation.APIKey))
	} else {
		cmd.Printf("  API Key: (not set)\n")
	}
	cmd.Printf("  Candidates per fragment: %d\n", settings.Generation.CandidateCount)
	status := "configured"
	if !settings.Generation.IsConfigured() {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
	cmd.Println()

	// Fine-tuning settings
	cmd.Println("[Fine-tuning]")
	cmd.Printf("  Platform: %s\n", domain.Platform(settings.FineTuning.Platform).Description())
	cmd.Printf("  Model: %s\n", valueOrUnset(settings.FineTuning.Model))
	cmd.Printf("  Format: %s\n", settings.FineTuning.Format)
	cmd.Printf("  Dataset size: %d\n", settings.FineTuning.DatasetSize)
	cmd.Println()

	// Monitor settings
	cmd.Println("[Monitor]")
	if settings.Monitor.AutoRefresh {
		cmd.Printf("  Auto-refresh: on\n")
	} else {
		cmd.Printf("  Auto-refresh: off\n")
	}
	cmd.Println()

	// Validation
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'privatetune settings wizard' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Println("privatetune Settings Wizard")
	cmd.Println("===========================")
	cmd.Println()

	reader := bufio.NewReader(settingsInput)

	// Step 1: Backend
	cmd.Println("Step 1: Backend Connection")
	cmd.Println("--------------------------")
	if err := configureBackend(cmd, reader); err != nil {
		return err
	}

	// Step 2: Generation model
	cmd.Println("Step 2: Generation Model")
	cmd.Println("------------------------")
	if err := configureGeneration(cmd, reader); err != nil {
		return err
	}

	// Step 3: Fine-tuning defaults
	cmd.Println("Step 3: Fine-tuning Defaults")
	cmd.Println("----------------------------")
	if err := configureFinetuning(cmd, reader); err != nil {
		return err
	}

	// Final validation
	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("All settings are valid and saved.")
	}

	return nil
}

func runSettingsBackend(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureBackend(cmd, bufio.NewReader(settingsInput))
}

func runSettingsGeneration(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureGeneration(cmd, bufio.NewReader(settingsInput))
}

func runSettingsFinetuning(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}
	return configureFinetuning(cmd, bufio.NewReader(settingsInput))
}

func runSettingsAutoRefresh(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	var enabled bool
	switch strings.ToLower(args[0]) {
	case "on", "true", "yes":
		enabled = true
	case "off", "false", "no":
		enabled = false
	default:
		return fmt.Errorf("%w: expected on or off, got %q", domain.ErrInvalidInput, args[0])
	}

	if err := settingsService.SetAutoRefresh(enabled); err != nil {
		return fmt.Errorf("failed to set auto-refresh: %w", err)
	}
	cmd.Printf("Auto-refresh %s.\n", args[0])
	return nil
}

func configureBackend(cmd *cobra.Command, reader *bufio.Reader) error {
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	current := settings.Backend

	cmd.Printf("Backend URL [%s]: ", current.URL)
	url := readLine(reader)
	if url == "" {
		url = current.URL
	}

	cmd.Printf("Request timeout in seconds [%d]: ", int(current.Timeout/time.Second))
	timeout := current.Timeout
	if secs, err := strconv.Atoi(readLine(reader)); err == nil && secs > 0 {
		timeout = time.Duration(secs) * time.Second
	}

	cmd.Print("Bearer token (leave empty to keep current): ")
	token := readPassword(reader)
	cmd.Println()

	backend := domain.BackendSettings{
		URL:               url,
		Token:             token,
		Timeout:           timeout,
		RequestsPerSecond: current.RequestsPerSecond,
	}
	if err := settingsService.SetBackend(backend); err != nil {
		return fmt.Errorf("failed to set backend: %w", err)
	}

	cmd.Printf("Backend configured: %s\n\n", url)
	return nil
}

func configureGeneration(cmd *cobra.Command, reader *bufio.Reader) error {
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	current := settings.Generation

	selected := choosePlatform(cmd, reader, current.Platform)

	cmd.Printf("Model name [%s]: ", current.Model)
	model := readLine(reader)
	if model == "" {
		model = current.Model
	}

	cmd.Print("API base URL (leave empty for the platform default): ")
	baseURL := readLine(reader)

	cmd.Printf("Candidates per fragment (%d-%d) [%d]: ",
		domain.MinCandidateCount, domain.MaxCandidateCount, current.CandidateCount)
	candidates := parseChoice(readLine(reader), domain.MaxCandidateCount, current.CandidateCount)

	cmd.Print("API key (leave empty to keep current): ")
	apiKey := readPassword(reader)
	cmd.Println()

	cfg := domain.ModelConfig{
		Platform:       selected.String(),
		Model:          model,
		APIKey:         apiKey,
		BaseURL:        baseURL,
		CandidateCount: candidates,
	}
	if err := settingsService.SetGenerationModel(cfg); err != nil {
		return fmt.Errorf("failed to set generation model: %w", err)
	}

	cmd.Printf("Generation model configured: %s (%s)\n\n", selected.Description(), model)
	return nil
}

func configureFinetuning(cmd *cobra.Command, reader *bufio.Reader) error {
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}
	current := settings.FineTuning

	selected := choosePlatform(cmd, reader, current.Platform)

	cmd.Printf("Base model [%s]: ", current.Model)
	model := readLine(reader)
	if model == "" {
		model = current.Model
	}

	cmd.Printf("Format (sft, dpo) [%s]: ", current.Format)
	format := domain.TrainingFormat(strings.ToLower(readLine(reader)))
	if format == "" {
		format = current.Format
	}

	cmd.Printf("Dataset size [%d]: ", current.DatasetSize)
	size := current.DatasetSize
	if n, err := strconv.Atoi(readLine(reader)); err == nil && n > 0 {
		size = n
	}

	ft := domain.FineTuningSettings{
		Platform:    selected.String(),
		Model:       model,
		Format:      format,
		DatasetSize: size,
	}
	if err := settingsService.SetFineTuning(ft); err != nil {
		return fmt.Errorf("failed to set fine-tuning defaults: %w", err)
	}

	cmd.Printf("Fine-tuning configured: %s (%s, %s)\n\n", selected.Description(), valueOrUnset(model), format)
	return nil
}

func choosePlatform(cmd *cobra.Command, reader *bufio.Reader, current string) domain.Platform {
	platforms := domain.AllPlatforms()
	defaultIdx := 1
	cmd.Println("Select Platform")
	for i, p := range platforms {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
		if p.String() == current {
			defaultIdx = i + 1
		}
	}
	cmd.Printf("\nEnter choice [%d]: ", defaultIdx)
	idx := parseChoice(readLine(reader), len(platforms), defaultIdx)
	return platforms[idx-1]
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads a secret without echo when stdin is a terminal,
// falling back to reader otherwise.
func readPassword(reader *bufio.Reader) string {
	if settingsInput == os.Stdin && term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

func valueOrUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}
