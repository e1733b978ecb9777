package providers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// Registry holds the music provider and chat client built from config.
// It supports hot-reload and provides thread-safe access.
type Registry struct {
	mu     sync.RWMutex
	music  MusicProvider
	chat   LLMClient
	cfg    RegistryConfig
	logger *slog.Logger
}

// RegistryConfig defines the providers to instantiate from config.
// This mirrors the config.Config structure for provider setup.
type RegistryConfig struct {
	ElevenLabs ElevenLabsProviderConfig
	Gloo       GlooProviderConfig

	// HTTPClient is shared by all providers when set.
	HTTPClient *http.Client
}

// ElevenLabsProviderConfig matches config.ElevenLabsCfg with resolved API key.
type ElevenLabsProviderConfig struct {
	APIKey     string
	BaseURL    string
	Format     string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
}

// GlooProviderConfig matches config.GlooCfg with resolved credentials.
type GlooProviderConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	BaseURL      string
	Model        string
	Enabled      bool
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{logger: slog.Default()}
}

// NewRegistryFromConfig creates a registry with providers based on configuration.
// Providers without credentials are not registered.
func NewRegistryFromConfig(cfg RegistryConfig, logger *slog.Logger) *Registry {
	r := NewRegistry()
	if logger != nil {
		r.logger = logger
	}
	r.Reload(cfg)
	return r
}

// SetMusic registers a music provider directly.
func (r *Registry) SetMusic(p MusicProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.music = p
}

// SetChat registers a chat client directly.
func (r *Registry) SetChat(c LLMClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat = c
}

// Music returns the music provider, or nil when none is configured.
func (r *Registry) Music() MusicProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.music
}

// Chat returns the chat client, or nil when none is configured.
func (r *Registry) Chat() LLMClient {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chat
}

// Reload updates the registry based on new configuration.
// Providers that are no longer configured are unregistered; providers
// with changed settings are rebuilt.
func (r *Registry) Reload(cfg RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case cfg.ElevenLabs.APIKey == "":
		if r.music != nil {
			r.logger.Info("unregistered music provider", "name", ElevenLabsMusicName)
		}
		r.music = nil
	case r.music == nil || r.cfg.ElevenLabs != cfg.ElevenLabs || r.cfg.HTTPClient != cfg.HTTPClient:
		existed := r.music != nil
		r.music = NewElevenLabsMusicClient(ElevenLabsMusicConfig{
			APIKey:     cfg.ElevenLabs.APIKey,
			BaseURL:    cfg.ElevenLabs.BaseURL,
			Format:     cfg.ElevenLabs.Format,
			Timeout:    cfg.ElevenLabs.Timeout,
			MaxRetries: cfg.ElevenLabs.MaxRetries,
			RetryDelay: cfg.ElevenLabs.RetryDelay,
			HTTPClient: cfg.HTTPClient,
			Logger:     r.logger,
		})
		if existed {
			r.logger.Info("updated music provider", "name", ElevenLabsMusicName)
		} else {
			r.logger.Info("registered music provider", "name", ElevenLabsMusicName)
		}
	}

	gloo := cfg.Gloo
	switch {
	case !gloo.Enabled || gloo.ClientID == "" || gloo.ClientSecret == "":
		if r.chat != nil {
			r.logger.Info("unregistered chat client", "name", GlooName)
		}
		r.chat = nil
	case r.chat == nil || r.cfg.Gloo != gloo || r.cfg.HTTPClient != cfg.HTTPClient:
		existed := r.chat != nil
		r.chat = NewGlooChatClient(GlooChatConfig{
			ClientID:     gloo.ClientID,
			ClientSecret: gloo.ClientSecret,
			TokenURL:     gloo.TokenURL,
			BaseURL:      gloo.BaseURL,
			Model:        gloo.Model,
			HTTPClient:   cfg.HTTPClient,
		})
		if existed {
			r.logger.Info("updated chat client", "name", GlooName, "model", gloo.Model)
		} else {
			r.logger.Info("registered chat client", "name", GlooName, "model", gloo.Model)
		}
	}

	r.cfg = cfg
}
