package endpoints

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/songbook/internal/api"
	"github.com/jackzampolin/songbook/internal/songs"
	"github.com/jackzampolin/songbook/internal/svcctx"
)

// SongsListResponse lists stored songs, newest first.
type SongsListResponse struct {
	Songs []*songs.Generation `json:"songs"`
}

// Text prints one song per line: id, template version, duration, created.
func (r SongsListResponse) Text() string {
	if len(r.Songs) == 0 {
		return "no songs"
	}
	var b strings.Builder
	for i, g := range r.Songs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s\tv%s\t%ds\t%s", g.ID, g.TemplateVersion, g.DurationSeconds, g.CreatedAt.Format(time.RFC3339))
	}
	return b.String()
}

// ListSongsEndpoint handles GET /api/songs.
type ListSongsEndpoint struct{}

func (e *ListSongsEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/songs", e.handler
}

func (e *ListSongsEndpoint) RequiresInit() bool { return true }

func (e *ListSongsEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	list, err := svcctx.SongsFrom(r.Context()).List()
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, SongsListResponse{Songs: list})
}

func (e *ListSongsEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List generated songs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp SongsListResponse
			if err := client.Get(cmd.Context(), "/api/songs", &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// GetSongEndpoint handles GET /api/songs/{id}.
type GetSongEndpoint struct{}

func (e *GetSongEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/songs/{id}", e.handler
}

func (e *GetSongEndpoint) RequiresInit() bool { return true }

func (e *GetSongEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	gen, err := svcctx.SongsFrom(r.Context()).Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gen)
}

func (e *GetSongEndpoint) Command(getServerURL func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Get a generated song",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			var resp songs.Generation
			if err := client.Get(cmd.Context(), "/api/songs/"+args[0], &resp); err != nil {
				return err
			}
			return api.Output(resp)
		},
	}
}

// SongAudioEndpoint handles GET /api/songs/{id}/audio.
type SongAudioEndpoint struct{}

func (e *SongAudioEndpoint) Route() (string, string, http.HandlerFunc) {
	return "GET", "/api/songs/{id}/audio", e.handler
}

func (e *SongAudioEndpoint) RequiresInit() bool { return true }

// handler godoc
//
//	@Summary		Download song audio
//	@Tags			songs
//	@Produce		audio/mpeg
//	@Param			id	path		string	true	"Song ID"
//	@Success		200	{file}		binary
//	@Failure		404	{object}	ErrorResponse
//	@Router			/api/songs/{id}/audio [get]
func (e *SongAudioEndpoint) handler(w http.ResponseWriter, r *http.Request) {
	gen, err := svcctx.SongsFrom(r.Context()).Get(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	if _, err := os.Stat(gen.AudioPath); os.IsNotExist(err) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("audio file missing for song %s", gen.ID))
		return
	}

	contentType := gen.ContentType
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filepath.Base(gen.AudioPath)))
	http.ServeFile(w, r, gen.AudioPath)
}

func (e *SongAudioEndpoint) Command(getServerURL func() string) *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "audio <id>",
		Short: "Download a song's audio file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := api.NewClient(getServerURL())
			if outputPath == "" {
				outputPath = args[0] + ".mp3"
			}
			return downloadAudio(cmd.Context(), client, args[0], outputPath)
		},
	}
	cmd.Flags().StringVarP(&outputPath, "file", "f", "", "Output file path")
	return cmd
}

func downloadAudio(ctx context.Context, client *api.Client, songID, outputPath string) error {
	data, err := client.GetRaw(ctx, fmt.Sprintf("/api/songs/%s/audio", songID))
	if err != nil {
		return err
	}
	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	fmt.Fprintf(os.Stderr, "Downloaded to: %s\n", outputPath)
	return nil
}
