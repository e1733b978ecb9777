package endpoints

import (
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/songbook/internal/api"
	"github.com/jackzampolin/songbook/internal/bible"
)

// DetectRequest is the request body for reference detection.
type DetectRequest struct {
	Text string `json:"text"`
}

// DetectResponse lists references found in text.
type DetectResponse struct {
	References   []bible.Reference `json:"references"`
	Formatted    []string          `json:"formatted"`
	HasKeywords  bool              `json:"has_keywords"`
	ShouldLookup bool              `json:"should_lookup"`
}

// DetectBibleEndpoint handles POST /api/bible/detect.
type DetectBibleEndpoint struct{}

func (e *DetectBibleEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/bible/detect", e.handler
}

func (e *DetectBibleEndpoint) RequiresInit() bool { return false }

func (e *DetectBibleEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, detect(req.Text))
}

func detect(text string) DetectResponse {
	refs := bible.Detect(text)
	resp := DetectResponse{
		References:   make([]bible.Reference, 0, len(refs)),
		Formatted:    make([]string, 0, len(refs)),
		HasKeywords:  bible.ContainsBiblicalKeywords(text),
		ShouldLookup: bible.ShouldLookup(text),
	}
	for _, ref := range refs {
		resp.References = append(resp.References, ref)
		resp.Formatted = append(resp.Formatted, ref.String())
	}
	return resp
}

func (e *DetectBibleEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "detect <text>...",
		Short: "Detect Bible references in text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp DetectResponse
			if err := client.Post(cmd.Context(), "/api/bible/detect", DetectRequest{Text: strings.Join(args, " ")}, &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}
