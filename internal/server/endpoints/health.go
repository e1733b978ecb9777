package endpoints

import (
	"fmt"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/jackzampolin/songbook/internal/api"
	"github.com/jackzampolin/songbook/internal/svcctx"
)

// HealthResponse is the response for health check endpoints.
type HealthResponse struct {
	Status string `json:"status"`
}

// HealthEndpoint handles GET /health.
type HealthEndpoint struct{}

func (e *HealthEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/health", e.handler
}

func (e *HealthEndpoint) RequiresInit() bool { return false }

func (e *HealthEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}

func (e *HealthEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check server health",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp HealthResponse
			if err := client.Get(cmd.Context(), "/health", &resp); err != nil {
				return err
			}
			fmt.Printf("Status: %s\n", resp.Status)
			return nil
		},
	}
}

// StatusResponse is the detailed status response.
type StatusResponse struct {
	Server    string          `json:"server"`
	Template  TemplateStatus  `json:"template"`
	Providers ProvidersStatus `json:"providers"`
}

// TemplateStatus shows the prompt template in use.
type TemplateStatus struct {
	Requested string `json:"requested"`
	Version   string `json:"version"`
	Fallback  bool   `json:"fallback"`
}

// ProvidersStatus shows the registered providers.
type ProvidersStatus struct {
	Music      string `json:"music,omitempty"`
	Chat       string `json:"chat,omitempty"`
	Configured bool   `json:"configured"`
	Health     string `json:"health,omitempty"`
}

// StatusEndpoint handles GET /status. Passing ?check=true also calls the
// music provider's health check.
type StatusEndpoint struct{}

func (e *StatusEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/status", e.handler
}

func (e *StatusEndpoint) RequiresInit() bool { return false }

func (e *StatusEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{Server: "running"}

	if svc := svcctx.SongsFrom(r.Context()); svc != nil {
		if b := svc.Builder(); b != nil {
			info := b.Info()
			resp.Template = TemplateStatus{
				Requested: info.RequestedVersion,
				Version:   info.Version,
				Fallback:  info.Fallback,
			}
		}
	}

	if registry := svcctx.RegistryFrom(r.Context()); registry != nil {
		if m := registry.Music(); m != nil {
			resp.Providers.Music = m.Name()
			resp.Providers.Configured = true
			if r.URL.Query().Get("check") == "true" {
				if err := m.HealthCheck(r.Context()); err != nil {
					resp.Providers.Health = "unhealthy"
				} else {
					resp.Providers.Health = "healthy"
				}
			}
		}
		if c := registry.Chat(); c != nil {
			resp.Providers.Chat = c.Name()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

func (e *StatusEndpoint) Command(getServerURL func() string) *cobra.Command {
	var check bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Get detailed server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			path := "/status"
			if check {
				path += "?check=true"
			}
			var resp StatusResponse
			if err := client.Get(cmd.Context(), path, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().BoolVar(&check, "check", false, "Also check the music provider's health")
	return cmd
}

// MetricsEndpoint handles GET /metrics in the Prometheus text format.
type MetricsEndpoint struct{}

func (e *MetricsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/metrics", promhttp.Handler().ServeHTTP
}

func (e *MetricsEndpoint) RequiresInit() bool { return false }

func (e *MetricsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Print Prometheus metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			data, err := client.GetRaw(cmd.Context(), "/metrics")
			if err != nil {
				return err
			}
			_, err = os.Stdout.Write(data)
			return err
		},
	}
}
