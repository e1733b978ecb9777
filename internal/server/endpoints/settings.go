package endpoints

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/songbook/internal/api"
	"github.com/jackzampolin/songbook/internal/config"
	"github.com/jackzampolin/songbook/internal/svcctx"
)

// SettingsResponse contains all config entries. Secrets are redacted.
type SettingsResponse struct {
	ConfigFile string         `json:"config_file,omitempty"`
	Settings   []config.Entry `json:"settings"`
}

// ListSettingsEndpoint handles GET /api/settings.
type ListSettingsEndpoint struct{}

func (e *ListSettingsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/settings", e.handler
}

func (e *ListSettingsEndpoint) RequiresInit() bool { return false }

// handler godoc
//
//	@Summary		List all settings
//	@Description	Get the effective configuration with secrets redacted
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	SettingsResponse
//	@Failure		503	{object}	ErrorResponse
//	@Router			/api/settings [get]
func (e *ListSettingsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	mgr := svcctx.ConfigManagerFrom(r.Context())
	if mgr == nil {
		writeError(w, http.StatusServiceUnavailable, "config manager not available")
		return
	}
	writeJSON(w, http.StatusOK, SettingsResponse{
		ConfigFile: mgr.ConfigFile(),
		Settings:   config.Entries(mgr.Get()),
	})
}

func (e *ListSettingsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the server's effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SettingsResponse
			if err := client.Get(cmd.Context(), "/api/settings", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
