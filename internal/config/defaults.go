package config

import (
	"github.com/spf13/viper"
)

// Entry is one configuration setting with its current value.
type Entry struct {
	Key         string `json:"key" yaml:"key"`
	Value       any    `json:"value" yaml:"value"`
	Description string `json:"description" yaml:"description"`
	Secret      bool   `json:"secret,omitempty" yaml:"secret,omitempty"`
}

type setting struct {
	key         string
	description string
	secret      bool
	get         func(*Config) any
}

// settings lists every leaf key. It seeds viper defaults, so each key can
// also be set through SONGBOOK_<KEY> environment variables.
var settings = []setting{
	{"server.host", "Interface the HTTP server binds", false, func(c *Config) any { return c.Server.Host }},
	{"server.port", "Port the HTTP server listens on", false, func(c *Config) any { return c.Server.Port }},

	{"elevenlabs.api_key", "ElevenLabs API key (uses environment variable)", true, func(c *Config) any { return c.ElevenLabs.APIKey }},
	{"elevenlabs.base_url", "ElevenLabs API base URL", false, func(c *Config) any { return c.ElevenLabs.BaseURL }},
	{"elevenlabs.format", "Audio output format", false, func(c *Config) any { return c.ElevenLabs.Format }},
	{"elevenlabs.timeout_seconds", "Timeout in seconds for each generation attempt", false, func(c *Config) any { return c.ElevenLabs.TimeoutSeconds }},
	{"elevenlabs.max_retries", "Maximum generation attempts", false, func(c *Config) any { return c.ElevenLabs.MaxRetries }},
	{"elevenlabs.retry_delay_ms", "Base delay in milliseconds for exponential backoff", false, func(c *Config) any { return c.ElevenLabs.RetryDelayMS }},

	{"gloo.enabled", "Whether structured input extraction is enabled", false, func(c *Config) any { return c.Gloo.Enabled }},
	{"gloo.client_id", "Gloo OAuth2 client ID (uses environment variable)", true, func(c *Config) any { return c.Gloo.ClientID }},
	{"gloo.client_secret", "Gloo OAuth2 client secret (uses environment variable)", true, func(c *Config) any { return c.Gloo.ClientSecret }},
	{"gloo.token_url", "Gloo OAuth2 token URL", false, func(c *Config) any { return c.Gloo.TokenURL }},
	{"gloo.base_url", "Gloo chat completions base URL", false, func(c *Config) any { return c.Gloo.BaseURL }},
	{"gloo.model", "Model used for extraction", false, func(c *Config) any { return c.Gloo.Model }},

	{"prompts.version", "Prompt template version", false, func(c *Config) any { return c.Prompts.Version }},
	{"prompts.dir", "Template override directory", false, func(c *Config) any { return c.Prompts.Dir }},
	{"prompts.watch", "Reload templates when files change", false, func(c *Config) any { return c.Prompts.Watch }},

	{"music.max_duration_seconds", "Longest song that may be generated", false, func(c *Config) any { return c.Music.MaxDurationSeconds }},
	{"music.default_duration_seconds", "Song length when none is requested", false, func(c *Config) any { return c.Music.DefaultDurationSeconds }},
	{"music.extract_fields", "Tidy song input with the chat model for templates 2.0 and later", false, func(c *Config) any { return c.Music.ExtractFields }},
	{"music.output_dir", "Directory for generated audio", false, func(c *Config) any { return c.Music.OutputDir }},
}

// setDefaults seeds v with DefaultConfig values.
func setDefaults(v *viper.Viper) {
	defaults := DefaultConfig()
	for _, s := range settings {
		v.SetDefault(s.key, s.get(defaults))
	}
}

// Entries returns every setting with its value in cfg. Secrets are
// reported as "(set)" or "(unset)" after ${ENV_VAR} resolution.
func Entries(cfg *Config) []Entry {
	entries := make([]Entry, 0, len(settings))
	for _, s := range settings {
		value := s.get(cfg)
		if s.secret {
			if str, _ := value.(string); ResolveEnvVars(str) != "" {
				value = "(set)"
			} else {
				value = "(unset)"
			}
		}
		entries = append(entries, Entry{
			Key:         s.key,
			Value:       value,
			Description: s.description,
			Secret:      s.secret,
		})
	}
	return entries
}
