package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/v2"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 3456

	ModeResponses = "responses"
	ModeChat      = "chat"
)

// Config is the immutable process configuration, built once at startup from
// the environment and passed by value to every component that needs it.
type Config struct {
	Host          string `koanf:"host"`
	Port          int    `koanf:"port" validate:"min=1,max=65535"`
	ServiceAPIKey string `koanf:"service_api_key"`

	ClaudeEndpoint   string `koanf:"claude_endpoint" validate:"omitempty,url"`
	ClaudeAPIKey     string `koanf:"claude_api_key"`
	ClaudeModel      string `koanf:"claude_model"`
	ClaudeAPIVersion string `koanf:"claude_api_version"`

	OpenAIEndpoint string `koanf:"openai_endpoint" validate:"omitempty,url"`
	OpenAIAPIKey   string `koanf:"openai_api_key"`
	OpenAIModel    string `koanf:"openai_model"`
	OpenAIMode     string `koanf:"openai_mode" validate:"oneof=responses chat"`

	UpstreamTimeout time.Duration `koanf:"upstream_timeout"`
}

func defaults() map[string]any {
	return map[string]any{
		"host":               DefaultHost,
		"port":               DefaultPort,
		"claude_model":       "claude-3-7-sonnet-20250219",
		"claude_api_version": "2023-06-01",
		"openai_model":       "gpt-4o",
		"openai_mode":        ModeResponses,
		"upstream_timeout":   "5m",
	}
}

// Load builds the configuration from process environment variables layered
// over the built-in defaults. A missing upstream endpoint or key is not an
// error here; requests that need the missing vendor fail individually with a
// configuration error so the proxy can still serve the other vendor.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	err := k.Load(env.Provider(".", env.Opt{
		TransformFunc: func(key, value string) (string, any) {
			return strings.ToLower(key), value
		},
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.UpstreamTimeout <= 0 {
		return Config{}, errors.New("UPSTREAM_TIMEOUT must be a positive duration")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks field constraints. Vendor presence is intentionally not
// checked; use ClaudeConfigured/OpenAIConfigured at request time.
func (c Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) && len(invalid) > 0 {
		first := invalid[0]
		return fmt.Errorf("config field %s is invalid (rule %q)", first.Field(), first.Tag())
	}

	return fmt.Errorf("validate config: %w", err)
}

// ClaudeConfigured reports whether the Claude upstream can be called.
func (c Config) ClaudeConfigured() bool {
	return c.ClaudeEndpoint != "" && c.ClaudeAPIKey != ""
}

// OpenAIConfigured reports whether the GPT upstream can be called.
func (c Config) OpenAIConfigured() bool {
	return c.OpenAIEndpoint != "" && c.OpenAIAPIKey != ""
}

// AuthEnabled reports whether callers must present the shared service key.
func (c Config) AuthEnabled() bool {
	return c.ServiceAPIKey != ""
}

// Addr returns the listen address.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
