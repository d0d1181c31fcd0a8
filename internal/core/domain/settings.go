package domain

import "time"

const unknownDescription = "Unknown"

// Platform identifies a cloud provider used for generation or fine-tuning.
type Platform string

// Known platforms.
const (
	// PlatformDeepSeek is api.deepseek.com.
	PlatformDeepSeek Platform = "deepseek"

	// PlatformDashScope is Alibaba DashScope.
	PlatformDashScope Platform = "dashscope"

	// PlatformOpenAI is the OpenAI API.
	PlatformOpenAI Platform = "openai"
)

// IsValid returns true if the platform is recognised.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformDeepSeek, PlatformDashScope, PlatformOpenAI:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (p Platform) String() string {
	return string(p)
}

// Description returns a human-readable description of the platform.
func (p Platform) Description() string {
	switch p {
	case PlatformDeepSeek:
		return "DeepSeek (cloud)"
	case PlatformDashScope:
		return "DashScope (cloud)"
	case PlatformOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// AllPlatforms returns all known platforms.
func AllPlatforms() []Platform {
	return []Platform{PlatformDeepSeek, PlatformDashScope, PlatformOpenAI}
}

// BackendSettings holds the connection settings for the remote backend.
type BackendSettings struct {
	// URL is the backend base URL.
	URL string

	// Token is an optional bearer token.
	Token string

	// Timeout bounds a single request.
	Timeout time.Duration

	// RequestsPerSecond throttles outgoing requests. Zero disables throttling.
	RequestsPerSecond float64
}

// FineTuningSettings holds fine-tuning submission defaults.
type FineTuningSettings struct {
	// Platform is the fine-tuning provider.
	Platform string

	// Model is the base model to fine-tune.
	Model string

	// Format is the training data format.
	Format TrainingFormat

	// DatasetSize is the requested submission size before clamping.
	DatasetSize int
}

// IsConfigured returns true if a platform and model are set.
func (f FineTuningSettings) IsConfigured() bool {
	return f.Platform != "" && f.Model != ""
}

// MonitorSettings holds job monitor preferences.
type MonitorSettings struct {
	// AutoRefresh enables periodic job list refresh.
	AutoRefresh bool
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Backend holds remote backend connection settings.
	Backend BackendSettings

	// Generation holds the model and credential context for annotation generation.
	Generation ModelConfig

	// FineTuning holds fine-tuning submission defaults.
	FineTuning FineTuningSettings

	// Monitor holds job monitor preferences.
	Monitor MonitorSettings
}

// Default intervals used by the core.
const (
	// GenerationPollInterval is the fixed generation job polling interval.
	GenerationPollInterval = 2000 * time.Millisecond

	// JobAutoRefreshInterval is the fixed fine-tuning job list refresh interval.
	JobAutoRefreshInterval = 8000 * time.Millisecond

	// DefaultJobLogLimit is the number of log lines fetched for an expanded job.
	DefaultJobLogLimit = 100

	// DefaultRecentJobsLimit is the number of generation jobs inspected on startup.
	DefaultRecentJobsLimit = 10
)

// DefaultAppSettings returns settings with sensible defaults.
// Generation and fine-tuning models are left unconfigured by default.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Backend: BackendSettings{
			URL:               "http://127.0.0.1:8765",
			Timeout:           60 * time.Second,
			RequestsPerSecond: 10,
		},
		Generation: ModelConfig{
			Platform:       PlatformDeepSeek.String(),
			CandidateCount: 1,
		},
		FineTuning: FineTuningSettings{
			Platform:    PlatformDeepSeek.String(),
			Format:      FormatSFT,
			DatasetSize: 100,
		},
		Monitor: MonitorSettings{
			AutoRefresh: true,
		},
	}
}
