package services

import (
	"fmt"
	"time"

	"github.com/custodia-labs/privatetune/internal/core/domain"
	"github.com/custodia-labs/privatetune/internal/core/ports/driven"
	"github.com/custodia-labs/privatetune/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyBackendURL         = "backend.url"
	keyBackendToken       = "backend.token"
	keyBackendTimeout     = "backend.timeout_seconds"
	keyBackendRPS         = "backend.requests_per_second"
	keyGenPlatform        = "generation.platform"
	keyGenModel           = "generation.model"
	keyGenAPIKey          = "generation.api_key"
	keyGenBaseURL         = "generation.base_url"
	keyGenCandidates      = "generation.candidate_count"
	keyFinetunePlatform   = "finetuning.platform"
	keyFinetuneModel      = "finetuning.model"
	keyFinetuneFormat     = "finetuning.format"
	keyFinetuneSize       = "finetuning.dataset_size"
	keyMonitorAutoRefresh = "monitor.auto_refresh"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	bus         *EventBus
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, bus *EventBus) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		bus:         bus,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	if s.configStore == nil {
		defaults := domain.DefaultAppSettings()
		return &defaults, nil
	}
	defaults := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Backend: domain.BackendSettings{
			URL:               s.getString(keyBackendURL, defaults.Backend.URL),
			Token:             s.configStore.GetString(keyBackendToken),
			Timeout:           time.Duration(s.getInt(keyBackendTimeout, int(defaults.Backend.Timeout/time.Second))) * time.Second,
			RequestsPerSecond: s.getFloat(keyBackendRPS, defaults.Backend.RequestsPerSecond),
		},
		Generation: domain.ModelConfig{
			Platform:       s.getPlatform(keyGenPlatform, defaults.Generation.Platform),
			Model:          s.configStore.GetString(keyGenModel),
			APIKey:         s.configStore.GetString(keyGenAPIKey),
			BaseURL:        s.configStore.GetString(keyGenBaseURL), // No default - empty uses the platform endpoint
			CandidateCount: s.getInt(keyGenCandidates, defaults.Generation.CandidateCount),
		},
		FineTuning: domain.FineTuningSettings{
			Platform:    s.getPlatform(keyFinetunePlatform, defaults.FineTuning.Platform),
			Model:       s.configStore.GetString(keyFinetuneModel),
			Format:      s.getFormat(defaults.FineTuning.Format),
			DatasetSize: s.getInt(keyFinetuneSize, defaults.FineTuning.DatasetSize),
		},
		Monitor: domain.MonitorSettings{
			AutoRefresh: s.getBool(keyMonitorAutoRefresh, defaults.Monitor.AutoRefresh),
		},
	}
	settings.Generation.CandidateCount = settings.Generation.NormalisedCandidateCount()

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	if s.configStore == nil {
		return domain.ErrNotImplemented
	}

	values := []struct {
		key   string
		value any
		label string
	}{
		{keyBackendURL, settings.Backend.URL, "backend url"},
		{keyBackendTimeout, int(settings.Backend.Timeout / time.Second), "backend timeout"},
		{keyBackendRPS, settings.Backend.RequestsPerSecond, "backend rate"},
		{keyGenPlatform, settings.Generation.Platform, "generation platform"},
		{keyGenModel, settings.Generation.Model, "generation model"},
		{keyGenBaseURL, settings.Generation.BaseURL, "generation base_url"},
		{keyGenCandidates, settings.Generation.NormalisedCandidateCount(), "candidate count"},
		{keyFinetunePlatform, settings.FineTuning.Platform, "fine-tuning platform"},
		{keyFinetuneModel, settings.FineTuning.Model, "fine-tuning model"},
		{keyFinetuneFormat, settings.FineTuning.Format.String(), "fine-tuning format"},
		{keyFinetuneSize, settings.FineTuning.DatasetSize, "dataset size"},
		{keyMonitorAutoRefresh, settings.Monitor.AutoRefresh, "auto refresh"},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.label, err)
		}
	}

	// Secrets are only written when set so an empty form never erases them.
	if settings.Backend.Token != "" {
		if err := s.configStore.Set(keyBackendToken, settings.Backend.Token); err != nil {
			return fmt.Errorf("save backend token: %w", err)
		}
	}
	if settings.Generation.APIKey != "" {
		if err := s.configStore.Set(keyGenAPIKey, settings.Generation.APIKey); err != nil {
			return fmt.Errorf("save generation api_key: %w", err)
		}
	}

	s.bus.Emit(domain.EventSettingsChanged)
	return nil
}

// SetBackend updates the backend connection settings.
func (s *SettingsService) SetBackend(backend domain.BackendSettings) error {
	if backend.URL == "" {
		return fmt.Errorf("%w: backend url is required", domain.ErrInvalidInput)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if backend.Timeout <= 0 {
		backend.Timeout = settings.Backend.Timeout
	}
	if backend.RequestsPerSecond < 0 {
		backend.RequestsPerSecond = 0
	}
	settings.Backend = backend
	return s.Save(settings)
}

// SetGenerationModel updates the generation model and credential context.
func (s *SettingsService) SetGenerationModel(cfg domain.ModelConfig) error {
	if cfg.Platform != "" && !domain.Platform(cfg.Platform).IsValid() {
		return fmt.Errorf("invalid generation platform: %s", cfg.Platform)
	}
	if cfg.Model == "" {
		return domain.ErrModelNotConfigured
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	// Keep the stored key when none was given.
	if cfg.APIKey == "" {
		cfg.APIKey = settings.Generation.APIKey
	}
	cfg.CandidateCount = cfg.NormalisedCandidateCount()
	settings.Generation = cfg

	return s.Save(settings)
}

// SetFineTuning updates the fine-tuning defaults.
func (s *SettingsService) SetFineTuning(ft domain.FineTuningSettings) error {
	if ft.Platform != "" && !domain.Platform(ft.Platform).IsValid() {
		return fmt.Errorf("invalid fine-tuning platform: %s", ft.Platform)
	}
	if ft.Format == "" {
		ft.Format = domain.FormatSFT
	}
	if !ft.Format.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidFormat, ft.Format)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if ft.DatasetSize <= 0 {
		ft.DatasetSize = settings.FineTuning.DatasetSize
	}
	settings.FineTuning = ft

	return s.Save(settings)
}

// SetAutoRefresh updates the job monitor auto-refresh preference.
func (s *SettingsService) SetAutoRefresh(enabled bool) error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Monitor.AutoRefresh = enabled
	return s.Save(settings)
}

// Validate checks the current settings.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if settings.Backend.URL == "" {
		return fmt.Errorf("%w: backend url is required", domain.ErrInvalidInput)
	}
	if !settings.Generation.IsConfigured() {
		return fmt.Errorf("generation: %w", domain.ErrModelNotConfigured)
	}
	if !settings.FineTuning.IsConfigured() {
		return fmt.Errorf("fine-tuning: %w", domain.ErrModelNotConfigured)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getFloat distinguishes an explicit 0 (throttling off) from a missing key.
func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getPlatform(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" || !domain.Platform(val).IsValid() {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getFormat(defaultVal domain.TrainingFormat) domain.TrainingFormat {
	format := domain.TrainingFormat(s.configStore.GetString(keyFinetuneFormat))
	if !format.IsValid() {
		return defaultVal
	}
	return format
}
