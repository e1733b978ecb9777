package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

// Registry holds all registered endpoints.
type Registry struct {
	endpoints []Endpoint
}

// NewRegistry creates a new endpoint registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds an endpoint to the registry.
func (r *Registry) Register(ep Endpoint) {
	r.endpoints = append(r.endpoints, ep)
}

// RegisterRoutes registers all endpoint HTTP routes with the given mux.
// initMiddleware wraps handlers that require full server initialization.
func (r *Registry) RegisterRoutes(mux *http.ServeMux, initMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	for _, ep := range r.endpoints {
		method, path, handler := ep.Route()
		if ep.RequiresInit() {
			handler = initMiddleware(handler)
		}
		mux.HandleFunc(method+" "+path, handler)
	}
}

// BuildCommands returns a cobra.Command tree for all registered endpoints.
// Commands are organized by their URL path structure.
// getServerURL is called at runtime to get the server URL.
func (r *Registry) BuildCommands(getServerURL func() string) *cobra.Command {
	apiCmd := &cobra.Command{
		Use:   "api",
		Short: "Commands that call the running server",
		Long: `API commands call the running Songbook server via HTTP.

These commands require a running server (songbook serve).
Use --server to specify a custom server URL.

Examples:
  songbook api health                         # Check server health
  songbook api prompts get 2.0                # Show a template version
  songbook api music generate --theme kindness # Generate a song
  songbook api songs audio <id> -f song.mp3   # Download generated audio`,
	}

	groups := make(map[string]*cobra.Command)
	for _, ep := range r.endpoints {
		_, path, _ := ep.Route()
		group := commandGroup(path)
		if group == "" {
			apiCmd.AddCommand(ep.Command(getServerURL))
			continue
		}
		parent, ok := groups[group]
		if !ok {
			parent = &cobra.Command{
				Use:   group,
				Short: fmt.Sprintf("Commands for /api/%s", group),
			}
			groups[group] = parent
			apiCmd.AddCommand(parent)
		}
		parent.AddCommand(ep.Command(getServerURL))
	}

	return apiCmd
}

// commandGroup returns the first path segment after /api/, or "" for
// top-level routes such as /health.
func commandGroup(path string) string {
	rest, ok := strings.CutPrefix(path, "/api/")
	if !ok {
		return ""
	}
	group, _, _ := strings.Cut(rest, "/")
	if group == "" || strings.HasPrefix(group, "{") {
		return ""
	}
	return group
}

// Endpoints returns all registered endpoints.
func (r *Registry) Endpoints() []Endpoint {
	return r.endpoints
}
