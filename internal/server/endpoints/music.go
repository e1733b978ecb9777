package endpoints

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/songbook/internal/api"
	"github.com/jackzampolin/songbook/internal/music"
	"github.com/jackzampolin/songbook/internal/songs"
	"github.com/jackzampolin/songbook/internal/svcctx"
)

// GenerateResponse is a completed generation.
type GenerateResponse struct {
	Success bool `json:"success"`
	*songs.Generation
}

// MusicConfigEndpoint handles GET /api/music/config.
type MusicConfigEndpoint struct{}

func (e *MusicConfigEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/music/config", e.handler
}

func (e *MusicConfigEndpoint) RequiresInit() bool { return true }

func (e *MusicConfigEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, svcctx.SongsFrom(r.Context()).Config())
}

func (e *MusicConfigEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show music generation limits",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp songs.Limits
			if err := client.Get(cmd.Context(), "/api/music/config", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GenerateEndpoint handles POST /api/music/generate.
type GenerateEndpoint struct{}

func (e *GenerateEndpoint) Route() (string, string, http.HandlerFunc) {
	return "POST", "/api/music/generate", e.handler
}

func (e *GenerateEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Generate a song
//	@Description	Build a prompt from song input and generate audio. The audio is stored and served from /api/songs/{id}/audio.
//	@Tags			music
//	@Accept			json
//	@Produce		json
//	@Param			request	body		songs.GenerateRequest	true	"Song request"
//	@Success		200		{object}	GenerateResponse
//	@Failure		400		{object}	ErrorResponse
//	@Failure		422		{object}	ErrorResponse
//	@Failure		429		{object}	ErrorResponse
//	@Failure		502		{object}	ErrorResponse
//	@Failure		503		{object}	ErrorResponse
//	@Failure		504		{object}	ErrorResponse
//	@Router			/api/music/generate [post]
func (e *GenerateEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	var req songs.GenerateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	gen, err := svcctx.SongsFrom(r.Context()).Generate(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, GenerateResponse{Success: true, Generation: gen})
}

func (e *GenerateEndpoint) Command(getServerURL func() string) *cobra.Command {
	var (
		req        songs.GenerateRequest
		outputPath string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a song",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client := api.NewClient(getServerURL())
			var resp GenerateResponse
			if err := client.Post(ctx, "/api/music/generate", req, &resp); err != nil {
				return err
			}

			if outputPath != "" {
				if err := downloadAudio(ctx, client, resp.ID, outputPath); err != nil {
					return err
				}
			}
			return api.Output(resp)
		},
	}
	cmd.Flags().StringVar(&req.SongID, "id", "", "Song ID (generated when empty; reusing an ID regenerates the song)")
	cmd.Flags().IntVar(&req.DurationSeconds, "duration", 0, "Requested duration in seconds")
	cmd.Flags().StringVarP(&outputPath, "file", "f", "", "Also download the audio to this path")
	AddSongInputFlags(cmd, &req.Input)
	return cmd
}

// AddSongInputFlags binds the song input fields to flags on cmd.
func AddSongInputFlags(cmd *cobra.Command, in *music.SongInput) {
	f := cmd.Flags()
	f.StringVar(&in.Theme, "theme", "", "Song theme")
	f.StringVar(&in.Mood, "mood", "", "Mood (e.g., joyful, peaceful)")
	f.StringVar(&in.Energy, "energy", "", "Energy (low, medium, high)")
	f.StringVar(&in.Tempo, "tempo", "", "Tempo description")
	f.StringVar(&in.Lyrics, "lyrics", "", "Song lyrics")
	f.StringVar(&in.BibleReference, "bible-reference", "", "Bible reference (e.g., John 3:16)")
	f.StringVar(&in.AgeGroup, "age-group", "", fmt.Sprintf("Age group (default %s)", music.DefaultAgeGroup))
	f.BoolVar(&in.Instrumental, "instrumental", false, "Generate without vocals")
}
