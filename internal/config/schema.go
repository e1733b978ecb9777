package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/jackzampolin/songbook/internal/providers"
)

// ErrInvalid is returned when configuration fails validation.
var ErrInvalid = errors.New("invalid config")

// Config holds songbook configuration.
// Stored at: ~/.songbook/config.yaml
type Config struct {
	Server     ServerCfg     `mapstructure:"server" yaml:"server"`
	ElevenLabs ElevenLabsCfg `mapstructure:"elevenlabs" yaml:"elevenlabs"`
	Gloo       GlooCfg       `mapstructure:"gloo" yaml:"gloo"`
	Prompts    PromptsCfg    `mapstructure:"prompts" yaml:"prompts"`
	Music      MusicCfg      `mapstructure:"music" yaml:"music"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host" validate:"omitempty,hostname|ip"`
	Port string `mapstructure:"port" yaml:"port" validate:"required,numeric"`
}

// ElevenLabsCfg configures the music generation API.
type ElevenLabsCfg struct {
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`   // Supports ${ENV_VAR} syntax
	BaseURL        string `mapstructure:"base_url" yaml:"base_url"` // Point at a mock server for local testing
	Format         string `mapstructure:"format" yaml:"format" validate:"required"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds" validate:"min=1,max=600"`
	MaxRetries     int    `mapstructure:"max_retries" yaml:"max_retries" validate:"min=1,max=10"`
	RetryDelayMS   int    `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms" validate:"min=1,max=60000"`
}

// GlooCfg configures the chat model used for structured input extraction.
type GlooCfg struct {
	Enabled      bool   `mapstructure:"enabled" yaml:"enabled"`
	ClientID     string `mapstructure:"client_id" yaml:"client_id"`         // Supports ${ENV_VAR} syntax
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"` // Supports ${ENV_VAR} syntax
	TokenURL     string `mapstructure:"token_url" yaml:"token_url" validate:"omitempty,url"`
	BaseURL      string `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Model        string `mapstructure:"model" yaml:"model"`
}

// PromptsCfg configures prompt templates.
type PromptsCfg struct {
	Version string `mapstructure:"version" yaml:"version" validate:"required"`
	Dir     string `mapstructure:"dir" yaml:"dir"`     // Override directory (default: ~/.songbook/prompts)
	Watch   bool   `mapstructure:"watch" yaml:"watch"` // Reload templates when files change
}

// MusicCfg configures song generation.
type MusicCfg struct {
	MaxDurationSeconds     int    `mapstructure:"max_duration_seconds" yaml:"max_duration_seconds" validate:"min=1,max=600"`
	DefaultDurationSeconds int    `mapstructure:"default_duration_seconds" yaml:"default_duration_seconds" validate:"min=1,max=600"`
	ExtractFields          bool   `mapstructure:"extract_fields" yaml:"extract_fields"` // Tidy input with Gloo for templates >= 2.0
	OutputDir              string `mapstructure:"output_dir" yaml:"output_dir"`         // Default: ~/.songbook/audio
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: "8080",
		},
		ElevenLabs: ElevenLabsCfg{
			APIKey:         "${ELEVENLABS_API_KEY}",
			BaseURL:        providers.ElevenLabsDefaultBaseURL,
			Format:         providers.ElevenLabsDefaultFormat,
			TimeoutSeconds: 120,
			MaxRetries:     3,
			RetryDelayMS:   1000,
		},
		Gloo: GlooCfg{
			Enabled:      true,
			ClientID:     "${GLOO_CLIENT_ID}",
			ClientSecret: "${GLOO_CLIENT_SECRET}",
			TokenURL:     providers.GlooDefaultTokenURL,
			BaseURL:      providers.GlooDefaultBaseURL,
			Model:        providers.GlooDefaultModel,
		},
		Prompts: PromptsCfg{
			Version: "1.0",
			Watch:   true,
		},
		Music: MusicCfg{
			MaxDurationSeconds:     30,
			DefaultDurationSeconds: 30,
			ExtractFields:          true,
		},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks field constraints. Errors wrap ErrInvalid and name the
// offending keys (e.g. "music.max_duration_seconds").
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		key := fe.Namespace()
		if i := strings.Index(key, "."); i >= 0 {
			key = key[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", key, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", key, fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// Addr returns the server listen address.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
