package endpoints

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/songbook/internal/api"
	"github.com/jackzampolin/songbook/internal/music"
	"github.com/jackzampolin/songbook/internal/prompts"
	"github.com/jackzampolin/songbook/internal/svcctx"
)

// PromptsListResponse lists template files and music template versions.
type PromptsListResponse struct {
	Files    []string `json:"files"`
	Versions []string `json:"versions"`
	Current  string   `json:"current,omitempty"`
}

// RenderRequest is the request body for rendering an arbitrary template.
type RenderRequest struct {
	Template string       `json:"template"`
	Vars     prompts.Vars `json:"vars"`
}

// RenderResponse is a rendered template.
type RenderResponse struct {
	Rendered  string   `json:"rendered"`
	Length    int      `json:"length"`
	Variables []string `json:"variables"`
}

// CheckRequest asks whether a song input builds into a prompt that fits.
// Version defaults to the template the server is using.
type CheckRequest struct {
	Version string          `json:"version,omitempty"`
	Input   music.SongInput `json:"input"`
}

// CheckResponse is a length check for one template version.
type CheckResponse struct {
	Version  string `json:"version"`
	Fallback bool   `json:"fallback"`
	music.Check
}

// Text summarizes the check on one line.
func (r CheckResponse) Text() string {
	status := "ok"
	if !r.Valid {
		status = "too long"
	}
	line := fmt.Sprintf("%s: %d/%d characters, template %s", status, r.Length, r.Limit, r.Version)
	if r.Fallback {
		line += " (fallback)"
	}
	if r.Truncation != nil {
		line += fmt.Sprintf(", lyrics truncated at %s %d -> %d", r.Truncation.Tier, r.Truncation.OriginalLyricsLength, r.Truncation.TruncatedLyricsLength)
	}
	return line
}

// ClearCacheResponse confirms a cache clear.
type ClearCacheResponse struct {
	Cleared bool `json:"cleared"`
}

// ListPromptsEndpoint handles GET /api/prompts.
type ListPromptsEndpoint struct{}

func (e *ListPromptsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts", e.handler
}

func (e *ListPromptsEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		List prompt templates
//	@Description	Get the template files and music template versions the loader can see
//	@Tags			prompts
//	@Produce		json
//	@Success		200	{object}	PromptsListResponse
//	@Router			/api/prompts [get]
func (e *ListPromptsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	loader := svcctx.LoaderFrom(r.Context())
	resp := PromptsListResponse{
		Files:    loader.Available(),
		Versions: loader.Versions(),
	}
	if svc := svcctx.SongsFrom(r.Context()); svc != nil && svc.Builder() != nil {
		resp.Current = svc.Builder().Version()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (e *ListPromptsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List prompt templates",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp PromptsListResponse
			if err := client.Get(cmd.Context(), "/api/prompts", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetPromptEndpoint handles GET /api/prompts/{version}.
type GetPromptEndpoint struct{}

func (e *GetPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/prompts/{version}", e.handler
}

func (e *GetPromptEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Get a prompt template
//	@Description	Describe one music template version. Unknown versions return suggestions.
//	@Tags			prompts
//	@Produce		json
//	@Param			version	path		string	true	"Template version (e.g., 2.0)"
//	@Success		200		{object}	music.Info
//	@Failure		404		{object}	ErrorResponse
//	@Router			/api/prompts/{version} [get]
func (e *GetPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	version, err := url.PathUnescape(r.PathValue("version"))
	if err != nil || version == "" {
		writeError(w, http.StatusBadRequest, "invalid template version")
		return
	}

	loader := svcctx.LoaderFrom(r.Context())
	if _, err := loader.LoadVersion(version); err != nil {
		if errors.Is(err, prompts.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, ErrorResponse{
				Error:       fmt.Sprintf("template version %q not found", version),
				Suggestions: loader.Suggest(version),
			})
			return
		}
		writeServiceError(w, r, err)
		return
	}

	builder := music.NewBuilder(loader, version, music.WithLogger(svcctx.LoggerFrom(r.Context())))
	writeJSON(w, http.StatusOK, builder.Info())
}

func (e *GetPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <version>",
		Short: "Show a prompt template version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp music.Info
			if err := client.Get(cmd.Context(), "/api/prompts/"+url.PathEscape(args[0]), &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// RenderPromptEndpoint handles POST /api/prompts/render.
type RenderPromptEndpoint struct{}

func (e *RenderPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/prompts/render", e.handler
}

func (e *RenderPromptEndpoint) RequiresInit() bool { return false }

func (e *RenderPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req RenderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rendered := prompts.Render(req.Template, req.Vars)
	writeJSON(w, http.StatusOK, RenderResponse{
		Rendered:  rendered,
		Length:    music.Length(rendered),
		Variables: prompts.ExtractVariables(req.Template),
	})
}

func (e *RenderPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		template string
		vars     map[string]string
	)
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a template with variables",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := RenderRequest{Template: template, Vars: prompts.Vars{}}
			for k, v := range vars {
				req.Vars[k] = v
			}
			client := api.NewClient(getServerURL())
			var resp RenderResponse
			if err := client.Post(cmd.Context(), "/api/prompts/render", req, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVarP(&template, "template", "t", "", "Template text")
	cmd.Flags().StringToStringVar(&vars, "var", nil, "Variable as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("template")
	return cmd
}

// CheckPromptEndpoint handles POST /api/prompts/check.
type CheckPromptEndpoint struct{}

func (e *CheckPromptEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/prompts/check", e.handler
}

func (e *CheckPromptEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Check a prompt
//	@Description	Build a prompt from song input and report whether it fits the length limit
//	@Tags			prompts
//	@Accept			json
//	@Produce		json
//	@Param			request	body		CheckRequest	true	"Song input"
//	@Success		200		{object}	CheckResponse
//	@Failure		400		{object}	ErrorResponse
//	@Router			/api/prompts/check [post]
func (e *CheckPromptEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Input.Validate(); err != nil {
		writeServiceError(w, r, err)
		return
	}

	var builder *music.Builder
	if req.Version != "" {
		builder = music.NewBuilder(svcctx.LoaderFrom(r.Context()), req.Version, music.WithLogger(svcctx.LoggerFrom(r.Context())))
	} else if svc := svcctx.SongsFrom(r.Context()); svc != nil {
		builder = svc.Builder()
	}
	if builder == nil {
		writeError(w, http.StatusServiceUnavailable, "prompt builder not available")
		return
	}

	writeJSON(w, http.StatusOK, CheckResponse{
		Version:  builder.Version(),
		Fallback: builder.Fallback(),
		Check:    builder.Check(req.Input),
	})
}

func (e *CheckPromptEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		version string
		input   music.SongInput
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that a song input builds a prompt within the length limit",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp CheckResponse
			if err := client.Post(cmd.Context(), "/api/prompts/check", CheckRequest{Version: version, Input: input}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&version, "version", "", "Template version (defaults to the server's)")
	AddSongInputFlags(cmd, &input)
	return cmd
}

// ClearPromptCacheEndpoint handles POST /api/prompts/cache/clear.
type ClearPromptCacheEndpoint struct{}

func (e *ClearPromptCacheEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/prompts/cache/clear", e.handler
}

func (e *ClearPromptCacheEndpoint) RequiresInit() bool { return true }

func (e *ClearPromptCacheEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	loader := svcctx.LoaderFrom(r.Context())
	logger := svcctx.LoggerFrom(r.Context())
	loader.ClearCache()

	// Recompile the active template so edits on disk take effect.
	if svc := svcctx.SongsFrom(r.Context()); svc != nil && svc.Builder() != nil {
		requested := svc.Builder().Info().RequestedVersion
		svc.SetBuilder(music.NewBuilder(loader, requested, music.WithLogger(logger)))
	}
	logger.Info("prompt template cache cleared")
	writeJSON(w, http.StatusOK, ClearCacheResponse{Cleared: true})
}

func (e *ClearPromptCacheEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache",
		Short: "Clear the server's prompt template cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp ClearCacheResponse
			if err := client.Post(cmd.Context(), "/api/prompts/cache/clear", nil, &resp); err != nil {
				return err
			}
			fmt.Println("Prompt cache cleared")
			return nil
		},
	}
}
