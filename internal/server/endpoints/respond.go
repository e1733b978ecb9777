package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/jackzampolin/songbook/internal/music"
	"github.com/jackzampolin/songbook/internal/prompts"
	"github.com/jackzampolin/songbook/internal/providers"
	"github.com/jackzampolin/songbook/internal/songs"
	"github.com/jackzampolin/songbook/internal/svcctx"
)

// maxBodyBytes bounds JSON request bodies. Lyrics are at most 10k characters.
const maxBodyBytes = 1 << 20

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error       string   `json:"error"`
	Category    string   `json:"category,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// writeServiceError maps domain errors onto HTTP statuses. Messages of
// user-facing errors are passed through unchanged.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		tooLong *music.PromptTooLongError
		genErr  *providers.GenerationError
	)
	switch {
	case errors.As(err, &tooLong):
		svcctx.LoggerFrom(r.Context()).Warn("rejected prompt", "detail", tooLong.Detail())
		writeError(w, http.StatusUnprocessableEntity, tooLong.Error())
	case errors.Is(err, music.ErrInvalidInput), errors.Is(err, songs.ErrInvalidID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, songs.ErrNotFound), errors.Is(err, prompts.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, songs.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &genErr):
		writeJSON(w, statusForCategory(genErr.Category), ErrorResponse{
			Error:    genErr.Message,
			Category: string(genErr.Category),
		})
	default:
		svcctx.LoggerFrom(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func statusForCategory(c providers.Category) int {
	switch c {
	case providers.CategoryTimeout:
		return http.StatusGatewayTimeout
	case providers.CategoryRateLimited:
		return http.StatusTooManyRequests
	case providers.CategoryBadRequest:
		return http.StatusBadRequest
	case providers.CategoryUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
