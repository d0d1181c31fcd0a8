package driving

import "github.com/custodia-labs/privatetune/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current application settings.
	Get() (*domain.AppSettings, error)

	// Save persists application settings.
	Save(settings *domain.AppSettings) error

	// SetBackend updates the backend connection settings.
	SetBackend(backend domain.BackendSettings) error

	// SetGenerationModel updates the generation model and credential context.
	SetGenerationModel(cfg domain.ModelConfig) error

	// SetFineTuning updates the fine-tuning defaults.
	SetFineTuning(ft domain.FineTuningSettings) error

	// SetAutoRefresh updates the job monitor auto-refresh preference.
	SetAutoRefresh(enabled bool) error

	// Validate checks the current settings.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.AppSettings
}
