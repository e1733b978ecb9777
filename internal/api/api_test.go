package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type fakeEndpoint struct {
	method, path, use string
	requiresInit      bool
}

func (f *fakeEndpoint) Route() (string, string, http.HandlerFunc) {
	return f.method, f.path, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	}
}

func (f *fakeEndpoint) RequiresInit() bool { return f.requiresInit }

func (f *fakeEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{Use: f.use}
}

func TestCommandGroup(t *testing.T) {
	tests := map[string]string{
		"/health":                  "",
		"/metrics":                 "",
		"/api/prompts":             "prompts",
		"/api/prompts/{version}":   "prompts",
		"/api/prompts/cache/clear": "prompts",
		"/api/songs/{id}/audio":    "songs",
		"/api/{id}":                "",
	}
	for path, want := range tests {
		if got := commandGroup(path); got != want {
			t.Errorf("commandGroup(%q) = %q, want %q", path, got, want)
		}
	}
}

func TestRegistry_BuildCommands(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeEndpoint{method: "GET", path: "/health", use: "health"})
	r.Register(&fakeEndpoint{method: "GET", path: "/api/songs", use: "list"})
	r.Register(&fakeEndpoint{method: "GET", path: "/api/songs/{id}", use: "get"})
	r.Register(&fakeEndpoint{method: "GET", path: "/api/prompts", use: "list"})

	root := r.BuildCommands(func() string { return "http://localhost" })

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	if got := strings.Join(names, ","); got != "health,prompts,songs" {
		t.Errorf("top-level commands = %s", got)
	}

	songsCmd, _, err := root.Find([]string{"songs", "get"})
	if err != nil || songsCmd.Name() != "get" {
		t.Errorf("Find(songs get) = %v, %v", songsCmd, err)
	}
}

func TestRegistry_RegisterRoutes(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeEndpoint{method: "GET", path: "/open", use: "open"})
	r.Register(&fakeEndpoint{method: "GET", path: "/guarded", use: "guarded", requiresInit: true})

	mux := http.NewServeMux()
	r.RegisterRoutes(mux, func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})

	for path, want := range map[string]int{"/open": http.StatusOK, "/guarded": http.StatusServiceUnavailable} {
		w := httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		if w.Code != want {
			t.Errorf("%s status = %d, want %d", path, w.Code, want)
		}
	}
}

func TestClient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/echo":
			if r.Header.Get("Content-Type") != "application/json" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.Write([]byte(`{"ok":true}`))
		case "/raw":
			w.Write([]byte("ID3bytes"))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"template version \"9\" not found","suggestions":["1.0"]}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("boom"))
		}
	}))
	defer ts.Close()

	ctx := context.Background()
	c := NewClient(ts.URL)

	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.Post(ctx, "/echo", map[string]string{"a": "b"}, &out); err != nil || !out.OK {
		t.Errorf("Post = %v, %+v", err, out)
	}

	data, err := c.GetRaw(ctx, "/raw")
	if err != nil || string(data) != "ID3bytes" {
		t.Errorf("GetRaw = %q, %v", data, err)
	}

	err = c.Get(ctx, "/missing", nil)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusNotFound || len(statusErr.Suggestions) != 1 {
		t.Errorf("StatusError = %+v", statusErr)
	}

	if _, err := c.GetRaw(ctx, "/broken"); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("GetRaw(/broken) error = %v", err)
	}
}

func TestOutputTo(t *testing.T) {
	data := map[string]any{"version": "2.0"}

	var buf bytes.Buffer
	if err := OutputTo(&buf, OutputFormatJSON, data); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"version": "2.0"`) {
		t.Errorf("json = %s", buf.String())
	}

	buf.Reset()
	if err := OutputTo(&buf, OutputFormatYAML, data); err != nil {
		t.Fatal(err)
	}
	var back map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &back); err != nil || back["version"] != "2.0" {
		t.Errorf("yaml = %s (%v)", buf.String(), err)
	}

	if err := OutputTo(&buf, OutputFormat("xml"), data); err == nil {
		t.Error("expected error for unknown format")
	}
}

type textResult struct {
	Name string `yaml:"name"`
}

func (r textResult) Text() string { return "name " + r.Name }

func TestOutputTo_Text(t *testing.T) {
	var buf bytes.Buffer
	if err := OutputTo(&buf, OutputFormatText, textResult{Name: "joy"}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "name joy\n" {
		t.Errorf("text = %q", buf.String())
	}

	// Results without a text form print as YAML.
	buf.Reset()
	if err := OutputTo(&buf, OutputFormatText, map[string]any{"version": "2.0"}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "version: \"2.0\"\n" {
		t.Errorf("fallback = %q", buf.String())
	}
}

func TestSetOutputFormat(t *testing.T) {
	t.Cleanup(func() { SetOutputFormat("yaml") })
	for in, want := range map[string]OutputFormat{
		"json": OutputFormatJSON,
		"text": OutputFormatText,
		"yaml": OutputFormatYAML,
		"xml":  OutputFormatYAML,
	} {
		SetOutputFormat(in)
		if outputFormat != want {
			t.Errorf("SetOutputFormat(%q) = %s, want %s", in, outputFormat, want)
		}
	}
}
