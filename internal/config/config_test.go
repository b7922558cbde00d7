package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultHost, cfg.Host)
	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, ModeResponses, cfg.OpenAIMode)
	assert.Equal(t, 5*time.Minute, cfg.UpstreamTimeout)
	assert.Equal(t, "2023-06-01", cfg.ClaudeAPIVersion)

	assert.False(t, cfg.ClaudeConfigured())
	assert.False(t, cfg.OpenAIConfigured())
	assert.False(t, cfg.AuthEnabled())
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("HOST", "0.0.0.0")
	t.Setenv("PORT", "8080")
	t.Setenv("SERVICE_API_KEY", "svc-key")
	t.Setenv("CLAUDE_ENDPOINT", "https://claude.example.com/v1/messages")
	t.Setenv("CLAUDE_API_KEY", "sk-claude")
	t.Setenv("OPENAI_ENDPOINT", "https://gateway.example.com/v1/responses")
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("OPENAI_MODE", "chat")
	t.Setenv("UPSTREAM_TIMEOUT", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
	assert.Equal(t, ModeChat, cfg.OpenAIMode)
	assert.Equal(t, 90*time.Second, cfg.UpstreamTimeout)

	assert.True(t, cfg.ClaudeConfigured())
	assert.True(t, cfg.OpenAIConfigured())
	assert.True(t, cfg.AuthEnabled())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero port", "PORT", "0"},
		{"bad mode", "OPENAI_MODE", "completions"},
		{"bad endpoint", "CLAUDE_ENDPOINT", "not a url"},
		{"zero timeout", "UPSTREAM_TIMEOUT", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestConfig_PartialVendorIsNotConfigured(t *testing.T) {
	// An endpoint without a key is unusable.
	cfg := Config{ClaudeEndpoint: "https://claude.example.com"}
	assert.False(t, cfg.ClaudeConfigured())

	cfg = Config{OpenAIAPIKey: "sk-openai"}
	assert.False(t, cfg.OpenAIConfigured())
}
