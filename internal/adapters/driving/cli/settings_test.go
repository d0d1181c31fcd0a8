package cli

import (
	"bufio"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/privatetune/internal/core/domain"
)

// withInput feeds the interactive settings prompts from text.
func withInput(t *testing.T, text string) {
	t.Helper()
	previous := settingsInput
	settingsInput = strings.NewReader(text)
	t.Cleanup(func() { settingsInput = previous })
}

func currentSettings(t *testing.T, env *testEnv) *domain.AppSettings {
	t.Helper()
	settings, err := env.settings.Get()
	require.NoError(t, err)
	return settings
}

func TestSettingsShow_Defaults(t *testing.T) {
	setupTestServices(t)

	out, err := run(t, "settings")

	require.NoError(t, err)
	assert.Contains(t, out, "URL: http://127.0.0.1:8765")
	assert.Contains(t, out, "Token: (not set)")
	assert.Contains(t, out, "Rate limit: 10 requests/s")
	assert.Contains(t, out, "Platform: DeepSeek (cloud)")
	assert.Contains(t, out, "Model: (not set)")
	assert.Contains(t, out, "Auto-refresh: on")
	assert.Contains(t, out, "Warning: generation: ")
}

func TestSettingsAutoRefresh(t *testing.T) {
	env := setupTestServices(t)

	out, err := run(t, "settings", "auto-refresh", "off")
	require.NoError(t, err)
	assert.Contains(t, out, "Auto-refresh off.")
	assert.False(t, currentSettings(t, env).Monitor.AutoRefresh)

	_, err = run(t, "settings", "auto-refresh", "on")
	require.NoError(t, err)
	assert.True(t, currentSettings(t, env).Monitor.AutoRefresh)

	_, err = run(t, "settings", "auto-refresh", "sometimes")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsBackend_Interactive(t *testing.T) {
	env := setupTestServices(t)
	withInput(t, "http://backend:9000\n30\ntok-1234567890\n")

	out, err := run(t, "settings", "backend")
	require.NoError(t, err)
	assert.Contains(t, out, "Backend configured: http://backend:9000")

	backend := currentSettings(t, env).Backend
	assert.Equal(t, "http://backend:9000", backend.URL)
	assert.Equal(t, 30*time.Second, backend.Timeout)
	assert.Equal(t, "tok-1234567890", backend.Token)

	out, err = run(t, "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Token: tok-...7890")
}

func TestSettingsBackend_KeepsDefaults(t *testing.T) {
	env := setupTestServices(t)
	withInput(t, "\n\n\n")

	_, err := run(t, "settings", "backend")
	require.NoError(t, err)

	backend := currentSettings(t, env).Backend
	assert.Equal(t, "http://127.0.0.1:8765", backend.URL)
	assert.Equal(t, 60*time.Second, backend.Timeout)
	assert.Empty(t, backend.Token)
}

func TestSettingsGeneration_Interactive(t *testing.T) {
	env := setupTestServices(t)
	withInput(t, "3\ngpt-4o-mini\n\n2\nsk-test-1234567890\n")

	out, err := run(t, "settings", "generation")
	require.NoError(t, err)
	assert.Contains(t, out, "Generation model configured: OpenAI (cloud) (gpt-4o-mini)")

	gen := currentSettings(t, env).Generation
	assert.Equal(t, domain.PlatformOpenAI.String(), gen.Platform)
	assert.Equal(t, "gpt-4o-mini", gen.Model)
	assert.Equal(t, 2, gen.CandidateCount)
	assert.Equal(t, "sk-test-1234567890", gen.APIKey)
}

func TestSettingsFinetuning_Interactive(t *testing.T) {
	env := setupTestServices(t)
	withInput(t, "2\nqwen-turbo\ndpo\n50\n")

	out, err := run(t, "settings", "finetuning")
	require.NoError(t, err)
	assert.Contains(t, out, "Fine-tuning configured: DashScope (cloud) (qwen-turbo, dpo)")

	ft := currentSettings(t, env).FineTuning
	assert.Equal(t, domain.PlatformDashScope.String(), ft.Platform)
	assert.Equal(t, "qwen-turbo", ft.Model)
	assert.Equal(t, domain.FormatDPO, ft.Format)
	assert.Equal(t, 50, ft.DatasetSize)
}

func TestSettingsWizard(t *testing.T) {
	setupTestServices(t)
	withInput(t, strings.Join([]string{
		"", "", "",
		"1", "deepseek-chat", "", "", "sk-abcdefghijkl",
		"1", "deepseek-chat", "sft", "20",
	}, "\n")+"\n")

	out, err := run(t, "settings", "wizard")

	require.NoError(t, err)
	assert.Contains(t, out, "Step 3: Fine-tuning Defaults")
	assert.Contains(t, out, "All settings are valid and saved.")
}

func TestSettings_NotConfigured(t *testing.T) {
	SetServices(Services{})
	withInput(t, "")

	for _, args := range [][]string{
		{"settings"},
		{"settings", "backend"},
		{"settings", "auto-refresh", "on"},
	} {
		_, err := run(t, args...)
		assert.EqualError(t, err, "settings service not configured", args)
	}
}

func TestReadLine(t *testing.T) {
	reader := bufio.NewReader(strings.NewReader("  first  \nsecond"))

	assert.Equal(t, "first", readLine(reader))
	assert.Equal(t, "second", readLine(reader))
	assert.Equal(t, "", readLine(reader))
}

func TestValueOrUnset(t *testing.T) {
	assert.Equal(t, "(not set)", valueOrUnset(""))
	assert.Equal(t, "x", valueOrUnset("x"))
}

// Test helper functions in settings.go

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}
