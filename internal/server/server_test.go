package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/jackzampolin/songbook/internal/config"
	"github.com/jackzampolin/songbook/internal/home"
	"github.com/jackzampolin/songbook/internal/music"
	"github.com/jackzampolin/songbook/internal/prompts"
	"github.com/jackzampolin/songbook/internal/providers"
	"github.com/jackzampolin/songbook/internal/server/endpoints"
	"github.com/jackzampolin/songbook/internal/testutil"
)

type testEnv struct {
	srv   *Server
	http  *httptest.Server
	mock  *providers.MockMusicProvider
	home  *home.Dir
	calls func() int64
}

func newTestEnv(t *testing.T, mutate func(*Config)) *testEnv {
	t.Helper()

	h, err := home.New(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := h.EnsureExists(); err != nil {
		t.Fatal(err)
	}

	mock := providers.NewMockMusicProvider()
	registry := providers.NewRegistry()
	registry.SetMusic(mock)

	cfg := Config{
		Home:     h,
		Registry: registry,
		Loader:   prompts.NewLoader(nil, prompts.Embedded()),
		Logger:   testutil.Logger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}

	srv, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{srv: srv, http: ts, mock: mock, home: h, calls: mock.RequestCount}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.http.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, data
}

func decode[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("failed to decode %s: %v", data, err)
	}
	return v
}

func TestServer_Health(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, "GET", "/health", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	if got := decode[endpoints.HealthResponse](t, body); got.Status != "ok" {
		t.Errorf("Status = %q", got.Status)
	}

	resp, body = env.do(t, "GET", "/status?check=true", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	status := decode[endpoints.StatusResponse](t, body)
	if status.Template.Version != "1.0" || status.Template.Fallback {
		t.Errorf("Template = %+v", status.Template)
	}
	if !status.Providers.Configured || status.Providers.Music != providers.MockClientName || status.Providers.Health != "healthy" {
		t.Errorf("Providers = %+v", status.Providers)
	}
}

func TestServer_Metrics(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, "POST", "/api/prompts/check", endpoints.CheckRequest{})

	resp, body := env.do(t, "GET", "/metrics", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("metrics status = %d", resp.StatusCode)
	}
	if !strings.Contains(string(body), "songbook_prompt_length_chars") {
		t.Error("expected songbook metrics in exposition")
	}
}

func TestServer_Prompts(t *testing.T) {
	env := newTestEnv(t, nil)

	t.Run("list", func(t *testing.T) {
		resp, body := env.do(t, "GET", "/api/prompts", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		list := decode[endpoints.PromptsListResponse](t, body)
		if len(list.Versions) < 2 || list.Current != "1.0" {
			t.Errorf("list = %+v", list)
		}
	})

	t.Run("get", func(t *testing.T) {
		resp, body := env.do(t, "GET", "/api/prompts/2.0", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d: %s", resp.StatusCode, body)
		}
		info := decode[struct {
			Version   string   `json:"version"`
			Variables []string `json:"variables"`
		}](t, body)
		if info.Version != "2.0" || len(info.Variables) == 0 {
			t.Errorf("info = %+v", info)
		}
	})

	t.Run("unknown version suggests", func(t *testing.T) {
		resp, body := env.do(t, "GET", "/api/prompts/2", nil)
		if resp.StatusCode != http.StatusNotFound {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		errResp := decode[endpoints.ErrorResponse](t, body)
		if len(errResp.Suggestions) == 0 || errResp.Suggestions[0] != "2.0" {
			t.Errorf("suggestions = %v", errResp.Suggestions)
		}
	})

	t.Run("render", func(t *testing.T) {
		resp, body := env.do(t, "POST", "/api/prompts/render", endpoints.RenderRequest{
			Template: "Hi {{name|friend}}{{#loud}}!{{/loud}}",
			Vars:     prompts.Vars{"loud": true},
		})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		got := decode[endpoints.RenderResponse](t, body)
		if got.Rendered != "Hi friend!" || got.Length != 10 {
			t.Errorf("render = %+v", got)
		}
	})

	t.Run("render bad body", func(t *testing.T) {
		req, _ := http.NewRequest("POST", env.http.URL+"/api/prompts/render", strings.NewReader("{"))
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("check truncates long lyrics", func(t *testing.T) {
		req := endpoints.CheckRequest{}
		req.Input.Theme = "kindness"
		req.Input.Lyrics = strings.Repeat("Jesus loves me this I know. ", 120)
		resp, body := env.do(t, "POST", "/api/prompts/check", req)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		got := decode[endpoints.CheckResponse](t, body)
		if !got.Valid || got.Length > got.Limit || got.Truncation == nil {
			t.Errorf("check = %+v", got)
		}
	})

	t.Run("check invalid input", func(t *testing.T) {
		req := endpoints.CheckRequest{}
		req.Input.AgeGroup = "toddlers"
		resp, _ := env.do(t, "POST", "/api/prompts/check", req)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("clear cache", func(t *testing.T) {
		resp, body := env.do(t, "POST", "/api/prompts/cache/clear", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if !decode[endpoints.ClearCacheResponse](t, body).Cleared {
			t.Error("expected cleared")
		}
		if env.srv.Songs().Builder().Version() != "1.0" {
			t.Error("builder should keep its version")
		}
	})
}

func TestServer_GenerateAndServeSong(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, "GET", "/api/music/config", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("config status = %d", resp.StatusCode)
	}
	if got := string(bytes.TrimSpace(body)); got != `{"maxDurationSeconds":30,"defaultDurationSeconds":30}` {
		t.Errorf("config = %s", got)
	}

	req := map[string]any{
		"songId":   "song-1",
		"duration": 90,
		"input":    map[string]any{"theme": "sharing", "mood": "happy"},
	}
	resp, body = env.do(t, "POST", "/api/music/generate", req)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("generate status = %d: %s", resp.StatusCode, body)
	}
	gen := decode[map[string]any](t, body)
	if gen["success"] != true || gen["actualDuration"] != float64(30) || gen["wasLimited"] != true {
		t.Errorf("generate = %v", gen)
	}
	if !strings.Contains(env.mock.LastPrompt, "joyful and uplifting") {
		t.Errorf("prompt = %q", env.mock.LastPrompt)
	}
	if _, err := os.Stat(filepath.Join(env.home.AudioDir(), "song-1.mp3")); err != nil {
		t.Errorf("audio not stored: %v", err)
	}

	resp, body = env.do(t, "GET", "/api/songs", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	if list := decode[endpoints.SongsListResponse](t, body); len(list.Songs) != 1 || list.Songs[0].ID != "song-1" {
		t.Errorf("songs = %s", body)
	}

	resp, _ = env.do(t, "GET", "/api/songs/song-1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get status = %d", resp.StatusCode)
	}

	resp, body = env.do(t, "GET", "/api/songs/song-1/audio", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("audio status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "audio/mpeg" {
		t.Errorf("Content-Type = %q", ct)
	}
	if string(body) != "ID3mock-audio" {
		t.Errorf("audio = %q", body)
	}

	resp, _ = env.do(t, "GET", "/api/songs/missing/audio", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing song status = %d", resp.StatusCode)
	}
	resp, _ = env.do(t, "GET", "/api/songs/.hidden", nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid id status = %d", resp.StatusCode)
	}
}

func TestServer_GenerateErrors(t *testing.T) {
	longTemplate := fstest.MapFS{
		"music-v1.0.md": &fstest.MapFile{Data: []byte("---\nversion: \"1.0\"\ndescription: t\n---\n# Base Template\n\n" +
			strings.Repeat("padding ", 260) + "{{lyrics}}\n")},
	}

	tests := []struct {
		name        string
		mutate      func(*Config)
		providerErr error
		input       map[string]any
		wantStatus  int
		wantError   string
		wantCalls   int64
	}{
		{
			name:       "prompt too long",
			mutate:     func(c *Config) { c.Loader = prompts.NewLoader(nil, longTemplate) },
			input:      map[string]any{"lyrics": strings.Repeat("la ", 100)},
			wantStatus: http.StatusUnprocessableEntity,
			wantError:  "Song description is too long. Please shorten the lyrics or theme.",
		},
		{
			name:       "invalid input",
			input:      map[string]any{"theme": "x", "ageGroup": "toddlers"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing lyrics and theme",
			input:      map[string]any{"mood": "happy"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "not configured",
			mutate:     func(c *Config) { c.Registry = providers.NewRegistry() },
			input:      map[string]any{"theme": "x"},
			wantStatus: http.StatusServiceUnavailable,
		},
		{
			name:        "rate limited",
			providerErr: generationError(providers.CategoryRateLimited, "Too many requests. Please wait a moment and try again."),
			input:       map[string]any{"theme": "x"},
			wantStatus:  http.StatusTooManyRequests,
			wantError:   "Too many requests. Please wait a moment and try again.",
			wantCalls:   1,
		},
		{
			name:        "timeout",
			providerErr: generationError(providers.CategoryTimeout, "Music generation is taking longer than expected. Please try again."),
			input:       map[string]any{"theme": "x"},
			wantStatus:  http.StatusGatewayTimeout,
			wantCalls:   1,
		},
		{
			name:        "unavailable",
			providerErr: generationError(providers.CategoryUnavailable, "down"),
			input:       map[string]any{"theme": "x"},
			wantStatus:  http.StatusServiceUnavailable,
			wantCalls:   1,
		},
		{
			name:        "unauthorized",
			providerErr: generationError(providers.CategoryUnauthorized, "auth"),
			input:       map[string]any{"theme": "x"},
			wantStatus:  http.StatusBadGateway,
			wantCalls:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.mutate)
			env.mock.Err = tt.providerErr

			resp, body := env.do(t, "POST", "/api/music/generate", map[string]any{"input": tt.input})
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", resp.StatusCode, tt.wantStatus, body)
			}
			errResp := decode[endpoints.ErrorResponse](t, body)
			if tt.wantError != "" && errResp.Error != tt.wantError {
				t.Errorf("error = %q, want %q", errResp.Error, tt.wantError)
			}
			if got := env.calls(); got != tt.wantCalls {
				t.Errorf("provider calls = %d, want %d", got, tt.wantCalls)
			}
		})
	}
}

func TestServer_BibleDetect(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, "POST", "/api/bible/detect", endpoints.DetectRequest{Text: "What does phil 4:13 say?"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[endpoints.DetectResponse](t, body)
	if len(got.Formatted) != 1 || got.Formatted[0] != "Philippians 4:13" || !got.ShouldLookup {
		t.Errorf("detect = %+v", got)
	}
}

func TestServer_Settings(t *testing.T) {
	t.Run("without config manager", func(t *testing.T) {
		env := newTestEnv(t, nil)
		resp, _ := env.do(t, "GET", "/api/settings", nil)
		if resp.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("status = %d", resp.StatusCode)
		}
	})

	t.Run("redacts secrets", func(t *testing.T) {
		mgr := newConfigManager(t, "elevenlabs:\n  api_key: secret-key\n")
		env := newTestEnv(t, func(c *Config) { c.ConfigManager = mgr })

		resp, body := env.do(t, "GET", "/api/settings", nil)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("status = %d", resp.StatusCode)
		}
		if strings.Contains(string(body), "secret-key") {
			t.Error("secret leaked in settings")
		}
		got := decode[endpoints.SettingsResponse](t, body)
		for _, e := range got.Settings {
			if e.Key == "elevenlabs.api_key" && e.Value != "(set)" {
				t.Errorf("api_key = %v", e.Value)
			}
		}
	})
}

func TestServer_ApplyConfig(t *testing.T) {
	fake := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer fake.Close()

	env := newTestEnv(t, nil)
	outDir := t.TempDir()

	cfg := config.DefaultConfig()
	cfg.Prompts.Version = "2.0"
	cfg.Music.MaxDurationSeconds = 60
	cfg.Music.DefaultDurationSeconds = 20
	cfg.Music.OutputDir = outDir
	cfg.ElevenLabs.APIKey = "new-key"
	cfg.ElevenLabs.BaseURL = fake.URL
	cfg.Gloo.Enabled = false

	env.srv.applyConfig(cfg, env.home)

	if got := env.srv.Songs().Builder().Version(); got != "2.0" {
		t.Errorf("builder version = %q", got)
	}
	if got := env.srv.Songs().Config(); got.MaxDurationSeconds != 60 || got.DefaultDurationSeconds != 20 {
		t.Errorf("limits = %+v", got)
	}
	if m := env.srv.Registry().Music(); m == nil || m.Name() != providers.ElevenLabsMusicName {
		t.Errorf("music provider = %v", m)
	}

	cfg.ElevenLabs.APIKey = ""
	env.srv.applyConfig(cfg, env.home)
	if env.srv.Registry().Music() != nil {
		t.Error("expected music provider removed")
	}
}

func TestServer_ReloadTemplates(t *testing.T) {
	fsys := fstest.MapFS{
		"music-v1.0.md": &fstest.MapFile{Data: []byte("---\nversion: \"1.0\"\n---\n# Base Template\n\nFirst {{theme}}\n")},
	}
	env := newTestEnv(t, func(c *Config) { c.Loader = prompts.NewLoader(nil, fsys) })

	fsys["music-v1.0.md"] = &fstest.MapFile{Data: []byte("---\nversion: \"1.0\"\n---\n# Base Template\n\nSecond {{theme}}\n")}
	env.srv.loader.ClearCache()
	env.srv.reloadTemplates("music-v1.0.md")

	got, err := env.srv.Songs().Builder().BuildPrompt(music.SongInput{Theme: "joy"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "Second joy" {
		t.Errorf("prompt = %q", got)
	}
}

func TestServer_StartStop(t *testing.T) {
	port, err := testutil.FindFreePort()
	if err != nil {
		t.Fatal(err)
	}
	env := newTestEnv(t, func(c *Config) {
		c.Host = "127.0.0.1"
		c.Port = port
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- env.srv.Start(ctx) }()

	if err := testutil.WaitForServer("http://127.0.0.1:"+port, 5*time.Second); err != nil {
		cancel()
		t.Fatal(err)
	}
	if !env.srv.IsRunning() {
		t.Error("IsRunning() = false, want true")
	}
	if err := env.srv.Start(ctx); err == nil {
		t.Error("expected error starting a running server")
	}

	cancel()
	if err := testutil.WaitForShutdown(done, 10*time.Second); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if env.srv.IsRunning() {
		t.Error("IsRunning() = true after shutdown")
	}
}

func generationError(category providers.Category, msg string) error {
	return &providers.GenerationError{Category: category, Message: msg}
}

func newConfigManager(t *testing.T, yaml string) *config.Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	mgr, err := config.NewManager(path, testutil.Logger())
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return mgr
}
