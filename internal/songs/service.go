// Package songs generates and stores songs. A generation validates the
// input, clamps the duration, optionally tidies the input with the chat
// model, builds a bounded prompt and hands it to the music provider.
package songs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jackzampolin/songbook/internal/metrics"
	"github.com/jackzampolin/songbook/internal/music"
	"github.com/jackzampolin/songbook/internal/providers"
)

var (
	// ErrNotConfigured is returned when no music provider is available.
	ErrNotConfigured = errors.New("music generation is not configured")

	// ErrNotFound is returned for unknown song IDs.
	ErrNotFound = errors.New("song not found")

	// ErrInvalidID is returned for song IDs that can't name a file.
	ErrInvalidID = errors.New("invalid song id")
)

var songIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,63}$`)

// extractionMinVersion is the first template version that asks the chat
// model to tidy input before building.
const extractionMinVersion = "2.0"

// Config controls generation limits and storage.
type Config struct {
	MaxDurationSeconds     int
	DefaultDurationSeconds int
	ExtractFields          bool
	OutputDir              string
}

// Limits is the client-visible generation config.
type Limits struct {
	MaxDurationSeconds     int `json:"maxDurationSeconds"`
	DefaultDurationSeconds int `json:"defaultDurationSeconds"`
}

// GenerateRequest asks for one song.
type GenerateRequest struct {
	SongID          string          `json:"songId,omitempty"`
	Input           music.SongInput `json:"input"`
	DurationSeconds int             `json:"duration,omitempty"`
}

// Generation is a completed song. It is stored next to the audio file.
type Generation struct {
	ID                       string            `json:"id"`
	Input                    music.SongInput   `json:"input"`
	Extracted                bool              `json:"extracted"`
	Prompt                   string            `json:"prompt"`
	PromptLength             int               `json:"promptLength"`
	TemplateVersion          string            `json:"templateVersion"`
	Fallback                 bool              `json:"fallback"`
	Truncation               *music.Truncation `json:"truncation,omitempty"`
	RequestedDurationSeconds int               `json:"requestedDuration"`
	DurationSeconds          int               `json:"actualDuration"`
	WasLimited               bool              `json:"wasLimited"`
	Message                  string            `json:"message"`
	AudioPath                string            `json:"audioPath"`
	Format                   string            `json:"format"`
	ContentType              string            `json:"contentType"`
	Bytes                    int               `json:"bytes"`
	Attempts                 int               `json:"attempts"`
	CreatedAt                time.Time         `json:"createdAt"`
}

// Service generates songs. It is safe for concurrent use; the builder and
// config may be swapped at runtime.
type Service struct {
	mu       sync.RWMutex
	builder  *music.Builder
	cfg      Config
	registry *providers.Registry
	logger   *slog.Logger
}

// NewService creates a song service.
func NewService(builder *music.Builder, registry *providers.Registry, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if registry == nil {
		registry = providers.NewRegistry()
	}
	return &Service{
		builder:  builder,
		cfg:      normalize(cfg),
		registry: registry,
		logger:   logger,
	}
}

func normalize(cfg Config) Config {
	if cfg.MaxDurationSeconds <= 0 {
		cfg.MaxDurationSeconds = 30
	}
	if cfg.DefaultDurationSeconds <= 0 {
		cfg.DefaultDurationSeconds = cfg.MaxDurationSeconds
	}
	return cfg
}

// Builder returns the prompt builder in use.
func (s *Service) Builder() *music.Builder {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.builder
}

// SetBuilder swaps the prompt builder, e.g. after a template change.
func (s *Service) SetBuilder(b *music.Builder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.builder = b
}

// SetConfig swaps generation limits.
func (s *Service) SetConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = normalize(cfg)
}

// Registry returns the provider registry.
func (s *Service) Registry() *providers.Registry {
	return s.registry
}

// Config returns the client-visible limits.
func (s *Service) Config() Limits {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Limits{
		MaxDurationSeconds:     s.cfg.MaxDurationSeconds,
		DefaultDurationSeconds: s.cfg.DefaultDurationSeconds,
	}
}

// Generate produces a song and writes it to the output directory. A prompt
// that is too long fails with music.ErrPromptTooLong before the provider is
// called; provider failures are *providers.GenerationError.
func (s *Service) Generate(ctx context.Context, req GenerateRequest) (gen *Generation, err error) {
	start := time.Now()
	defer func() {
		metrics.GenerationDuration.Observe(time.Since(start).Seconds())
		metrics.GenerationsTotal.WithLabelValues(resultLabel(err)).Inc()
	}()

	s.mu.RLock()
	builder, cfg := s.builder, s.cfg
	s.mu.RUnlock()

	if builder == nil {
		return nil, fmt.Errorf("%w: no prompt builder", ErrNotConfigured)
	}
	provider := s.registry.Music()
	if provider == nil {
		return nil, ErrNotConfigured
	}

	songID := req.SongID
	if songID == "" {
		songID = uuid.NewString()
	}
	if !songIDPattern.MatchString(songID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, songID)
	}
	if err := req.Input.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.Input.Lyrics) == "" && strings.TrimSpace(req.Input.Theme) == "" {
		return nil, fmt.Errorf("%w: lyrics or theme is required", music.ErrInvalidInput)
	}

	requested := req.DurationSeconds
	if requested <= 0 {
		requested = cfg.DefaultDurationSeconds
	}
	duration := min(requested, cfg.MaxDurationSeconds)
	wasLimited := requested > cfg.MaxDurationSeconds

	input := req.Input
	extracted := false
	if cfg.ExtractFields && versionAtLeast(builder.Version(), extractionMinVersion) {
		if chat := s.registry.Chat(); chat != nil {
			if out, err := providers.ExtractSongFields(ctx, chat, input, s.logger); err == nil {
				input, extracted = out, true
			}
		}
	}

	built, err := builder.Build(input)
	if err != nil {
		return nil, err
	}

	s.logger.Info("generating song",
		"song_id", songID,
		"template_version", built.Version,
		"prompt_length", built.Length,
		"duration_seconds", duration,
		"was_limited", wasLimited,
	)

	res, err := provider.Compose(ctx, &providers.MusicRequest{
		Prompt:       built.Prompt,
		Duration:     time.Duration(duration) * time.Second,
		Instrumental: input.Instrumental,
	})
	if err != nil {
		return nil, err
	}

	gen = &Generation{
		ID:                       songID,
		Input:                    input,
		Extracted:                extracted,
		Prompt:                   built.Prompt,
		PromptLength:             built.Length,
		TemplateVersion:          built.Version,
		Fallback:                 built.Fallback,
		Truncation:               built.Truncation,
		RequestedDurationSeconds: requested,
		DurationSeconds:          duration,
		WasLimited:               wasLimited,
		Message:                  message(duration, requested, wasLimited),
		Format:                   res.Format,
		ContentType:              res.ContentType,
		Bytes:                    len(res.Audio),
		Attempts:                 res.Attempts,
		CreatedAt:                time.Now().UTC(),
	}
	if err := s.store(cfg.OutputDir, gen, res.Audio); err != nil {
		return nil, err
	}

	s.logger.Info("song generated",
		"song_id", songID,
		"bytes", gen.Bytes,
		"attempts", gen.Attempts,
		"path", gen.AudioPath,
	)
	return gen, nil
}

// store writes the audio and its record. Regenerating a song replaces both.
func (s *Service) store(dir string, gen *Generation, audio []byte) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	format := gen.Format
	if format == "" {
		format = "mp3"
	}
	gen.AudioPath = filepath.Join(dir, gen.ID+"."+format)
	if err := writeFileAtomic(gen.AudioPath, audio); err != nil {
		return fmt.Errorf("failed to save audio file: %w", err)
	}

	data, err := json.MarshalIndent(gen, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal song record: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(dir, gen.ID+".json"), data); err != nil {
		return fmt.Errorf("failed to save song record: %w", err)
	}
	return nil
}

// Get returns a stored song.
func (s *Service) Get(songID string) (*Generation, error) {
	if !songIDPattern.MatchString(songID) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, songID)
	}
	s.mu.RLock()
	dir := s.cfg.OutputDir
	s.mu.RUnlock()

	data, err := os.ReadFile(filepath.Join(dir, songID+".json"))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, songID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read song record: %w", err)
	}
	var gen Generation
	if err := json.Unmarshal(data, &gen); err != nil {
		return nil, fmt.Errorf("failed to parse song record %s: %w", songID, err)
	}
	return &gen, nil
}

// List returns stored songs, newest first.
func (s *Service) List() ([]*Generation, error) {
	s.mu.RLock()
	dir := s.cfg.OutputDir
	s.mu.RUnlock()

	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, err
	}
	songs := make([]*Generation, 0, len(matches))
	for _, m := range matches {
		gen, err := s.Get(strings.TrimSuffix(filepath.Base(m), ".json"))
		if err != nil {
			s.logger.Warn("skipping unreadable song record", "path", m, "error", err)
			continue
		}
		songs = append(songs, gen)
	}
	sort.Slice(songs, func(i, j int) bool {
		return songs[i].CreatedAt.After(songs[j].CreatedAt)
	})
	return songs, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func message(duration, requested int, wasLimited bool) string {
	if wasLimited {
		return fmt.Sprintf("Music generated successfully at %d seconds (limited from %d seconds).", duration, requested)
	}
	return "Music generated successfully!"
}

func resultLabel(err error) string {
	var genErr *providers.GenerationError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, music.ErrPromptTooLong):
		return "prompt_too_long"
	case errors.Is(err, music.ErrInvalidInput), errors.Is(err, ErrInvalidID):
		return "invalid_input"
	case errors.Is(err, ErrNotConfigured):
		return "not_configured"
	case errors.As(err, &genErr):
		return string(genErr.Category)
	default:
		return "error"
	}
}

// versionAtLeast compares dotted numeric versions. Non-numeric parts
// compare as zero.
func versionAtLeast(version, minimum string) bool {
	a, b := strings.Split(version, "."), strings.Split(minimum, ".")
	for i := 0; i < max(len(a), len(b)); i++ {
		x, y := part(a, i), part(b, i)
		if x != y {
			return x > y
		}
	}
	return true
}

func part(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, _ := strconv.Atoi(parts[i])
	return n
}
