package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configFile, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configFile
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.ElevenLabs.APIKey != "${ELEVENLABS_API_KEY}" {
		t.Error("expected ElevenLabs API key placeholder")
	}
	if cfg.Music.MaxDurationSeconds != 30 {
		t.Errorf("expected 30s max duration, got %d", cfg.Music.MaxDurationSeconds)
	}
	if cfg.Prompts.Version != "1.0" {
		t.Errorf("expected prompt version 1.0, got %s", cfg.Prompts.Version)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantKey string
	}{
		{"zero max duration", func(c *Config) { c.Music.MaxDurationSeconds = 0 }, "music.max_duration_seconds"},
		{"non numeric port", func(c *Config) { c.Server.Port = "http" }, "server.port"},
		{"missing version", func(c *Config) { c.Prompts.Version = "" }, "prompts.version"},
		{"too many retries", func(c *Config) { c.ElevenLabs.MaxRetries = 50 }, "elevenlabs.max_retries"},
		{"bad token url", func(c *Config) { c.Gloo.TokenURL = "not a url" }, "gloo.token_url"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantKey) {
				t.Errorf("expected %q in %q", tt.wantKey, err.Error())
			}
		})
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestConfig_ToProviderRegistryConfig(t *testing.T) {
	t.Setenv("TEST_ELEVEN_KEY", "el-key")
	t.Setenv("TEST_GLOO_ID", "gloo-id")

	cfg := DefaultConfig()
	cfg.ElevenLabs.APIKey = "${TEST_ELEVEN_KEY}"
	cfg.Gloo.ClientID = "${TEST_GLOO_ID}"
	cfg.Gloo.ClientSecret = "direct"

	rc := cfg.ToProviderRegistryConfig()
	if rc.ElevenLabs.APIKey != "el-key" {
		t.Errorf("APIKey = %q", rc.ElevenLabs.APIKey)
	}
	if rc.ElevenLabs.Timeout != 120*time.Second || rc.ElevenLabs.RetryDelay != time.Second {
		t.Errorf("Timeout/RetryDelay = %s/%s", rc.ElevenLabs.Timeout, rc.ElevenLabs.RetryDelay)
	}
	if rc.Gloo.ClientID != "gloo-id" || rc.Gloo.ClientSecret != "direct" || !rc.Gloo.Enabled {
		t.Errorf("Gloo = %+v", rc.Gloo)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		configFile := writeConfig(t, `
prompts:
  version: "2.0"
music:
  max_duration_seconds: 60
`)

		mgr, err := NewManager(configFile, nil)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Prompts.Version != "2.0" {
			t.Errorf("expected 2.0, got %s", cfg.Prompts.Version)
		}
		if cfg.Music.MaxDurationSeconds != 60 {
			t.Errorf("expected 60, got %d", cfg.Music.MaxDurationSeconds)
		}
		// Unset keys keep their defaults.
		if cfg.ElevenLabs.TimeoutSeconds != 120 {
			t.Errorf("expected default timeout, got %d", cfg.ElevenLabs.TimeoutSeconds)
		}
		if mgr.ConfigFile() != configFile {
			t.Errorf("ConfigFile() = %s", mgr.ConfigFile())
		}
	})

	t.Run("environment overrides file", func(t *testing.T) {
		configFile := writeConfig(t, "prompts:\n  version: \"2.0\"\n")
		t.Setenv("SONGBOOK_PROMPTS_VERSION", "1.0")
		t.Setenv("SONGBOOK_MUSIC_MAX_DURATION_SECONDS", "45")

		mgr, err := NewManager(configFile, nil)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		cfg := mgr.Get()
		if cfg.Prompts.Version != "1.0" || cfg.Music.MaxDurationSeconds != 45 {
			t.Errorf("env overrides not applied: %+v %+v", cfg.Prompts, cfg.Music)
		}
	})

	t.Run("rejects invalid config", func(t *testing.T) {
		configFile := writeConfig(t, "music:\n  max_duration_seconds: 0\n")
		if _, err := NewManager(configFile, nil); !errors.Is(err, ErrInvalid) {
			t.Errorf("expected ErrInvalid, got %v", err)
		}
	})

	t.Run("rejects unreadable config", func(t *testing.T) {
		configFile := writeConfig(t, "music: [unclosed\n")
		if _, err := NewManager(configFile, nil); err == nil {
			t.Error("expected error for malformed YAML")
		}
	})
}

func TestManager_OnChange_Multiple(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "prompts:\n  version: \"1.0\"\n"), nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	mgr, err := NewManager(writeConfig(t, "prompts:\n  version: \"1.0\"\n"), nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Prompts.Version
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	configFile := writeConfig(t, "prompts:\n  version: \"1.0\"\n")

	mgr, err := NewManager(configFile, nil)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Value

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(cfg.Prompts.Version)
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("prompts:\n  version: \"2.0\"\n"), 0o644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	// Wait for the watcher to detect the change (fsnotify is async)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if callbackCount.Load() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Fatal("callback was not invoked after config file change")
	}
	if got := mgr.Get().Prompts.Version; got != "2.0" {
		t.Errorf("config not updated: expected 2.0, got %s", got)
	}
	if v := lastValue.Load(); v != "2.0" {
		t.Errorf("callback received wrong value: expected 2.0, got %v", v)
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), "# Songbook configuration") {
		t.Error("expected header comment")
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("written config is not valid YAML: %v", err)
	}
	if parsed.ElevenLabs.APIKey != "${ELEVENLABS_API_KEY}" || parsed.Music.MaxDurationSeconds != 30 {
		t.Errorf("unexpected round trip: %+v", parsed)
	}

	mgr, err := NewManager(path, nil)
	if err != nil {
		t.Fatalf("written config should load: %v", err)
	}
	if mgr.Get().Server.Port != "8080" {
		t.Errorf("Port = %s", mgr.Get().Server.Port)
	}
}

func TestEntries(t *testing.T) {
	t.Setenv("ELEVENLABS_API_KEY", "secret")
	t.Setenv("GLOO_CLIENT_ID", "")

	entries := Entries(DefaultConfig())
	if len(entries) != len(settings) {
		t.Fatalf("expected %d entries, got %d", len(settings), len(entries))
	}

	byKey := make(map[string]Entry, len(entries))
	for _, e := range entries {
		if e.Description == "" {
			t.Errorf("%s has no description", e.Key)
		}
		byKey[e.Key] = e
	}
	if v := byKey["elevenlabs.api_key"].Value; v != "(set)" {
		t.Errorf("api_key = %v", v)
	}
	if v := byKey["gloo.client_id"].Value; v != "(unset)" {
		t.Errorf("client_id = %v", v)
	}
	if v := byKey["music.max_duration_seconds"].Value; v != 30 {
		t.Errorf("max_duration_seconds = %v", v)
	}
}
