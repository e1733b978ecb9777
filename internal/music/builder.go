// Package music builds bounded music-generation prompts from song input.
//
// A Builder renders one template version. When the rendered prompt is over
// MaxPromptLength, only the lyrics are shortened (see TruncateLyrics) and
// the prompt is rendered once more. If that is still too long the build
// fails with *PromptTooLongError and no generation should be attempted.
package music

import (
	"errors"
	"log/slog"

	"github.com/jackzampolin/songbook/internal/bible"
	"github.com/jackzampolin/songbook/internal/metrics"
	"github.com/jackzampolin/songbook/internal/prompts"
)

// Truncation records one lyrics truncation.
type Truncation struct {
	OriginalPromptLength  int  `json:"original_prompt_length"`
	TruncatedPromptLength int  `json:"truncated_prompt_length"`
	OriginalLyricsLength  int  `json:"original_lyrics_length"`
	TruncatedLyricsLength int  `json:"truncated_lyrics_length"`
	TargetLyricsLength    int  `json:"target_lyrics_length"`
	Tier                  Tier `json:"tier"`
}

// Result is a built prompt.
type Result struct {
	Prompt     string      `json:"prompt"`
	Length     int         `json:"length"`
	Version    string      `json:"version"`
	Fallback   bool        `json:"fallback"`
	Truncation *Truncation `json:"truncation,omitempty"`
}

// Check is the outcome of a length check.
type Check struct {
	Valid      bool        `json:"valid"`
	Length     int         `json:"length"`
	Limit      int         `json:"limit"`
	Prompt     string      `json:"prompt,omitempty"`
	Truncation *Truncation `json:"truncation,omitempty"`
	Message    string      `json:"message,omitempty"`
}

// Info describes the template a Builder renders.
type Info struct {
	RequestedVersion   string            `json:"requested_version"`
	Version            string            `json:"version"`
	Fallback           bool              `json:"fallback"`
	Metadata           prompts.Metadata  `json:"metadata"`
	BaseTemplate       string            `json:"base_template"`
	MoodMappings       map[string]string `json:"mood_mappings"`
	EnergyMappings     map[string]string `json:"energy_mappings"`
	TruncationPriority []string          `json:"truncation_priority"`
	Variables          []string          `json:"variables"`
	Hash               string            `json:"hash"`
}

// Builder renders song input into prompts for one template version.
// It is immutable after construction and safe for concurrent use.
type Builder struct {
	requested string
	prompt    *prompts.MusicPrompt
	template  *prompts.Template
	fallback  bool
	logger    *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the builder's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBuilder loads version from loader. A version that can't be loaded, or
// that has no base template, falls back to DefaultMusicPrompt. A nil loader
// always uses the fallback.
func NewBuilder(loader *prompts.Loader, version string, opts ...Option) *Builder {
	b := &Builder{requested: version, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}

	var mp *prompts.MusicPrompt
	if loader != nil {
		loaded, err := loader.LoadMusicPrompt(version)
		switch {
		case errors.Is(err, prompts.ErrNotFound):
			b.logger.Warn("prompt template not found, using built-in default", "version", version, "error", err)
		case err != nil:
			b.logger.Warn("failed to load prompt template, using built-in default", "version", version, "error", err)
		case loaded.BaseTemplate == "":
			b.logger.Warn("prompt template has no base template, using built-in default", "version", version)
		default:
			mp = loaded
		}
	}
	if mp == nil {
		mp = DefaultMusicPrompt()
		b.fallback = true
	}

	b.prompt = mp
	b.template = prompts.Compile(mp.BaseTemplate)
	return b
}

// Version returns the version of the template in use.
func (b *Builder) Version() string {
	return b.prompt.Version
}

// Fallback reports whether the built-in default template is in use.
func (b *Builder) Fallback() bool {
	return b.fallback
}

// Vars returns the render variables for input after mood and energy are
// mapped to phrases and the Bible reference is normalized.
func (b *Builder) Vars(input SongInput) prompts.Vars {
	vars := input.Vars()
	if mood, ok := vars["mood"].(string); ok {
		vars["mood"] = describe(mood, b.prompt.MoodMappings, defaultMoods)
	}
	if energy, ok := vars["energy"].(string); ok {
		vars["energy"] = describe(energy, b.prompt.EnergyMappings, defaultEnergies)
	}
	if ref, ok := vars["bibleReference"].(string); ok {
		vars["bibleReference"] = bible.Normalize(ref)
	}
	return vars
}

// Build renders input, truncating the lyrics when the prompt is over
// MaxPromptLength. It fails only with *PromptTooLongError.
func (b *Builder) Build(input SongInput) (*Result, error) {
	vars := b.Vars(input)
	prompt := b.template.Render(vars)
	length := Length(prompt)

	res := &Result{
		Prompt:   prompt,
		Length:   length,
		Version:  b.prompt.Version,
		Fallback: b.fallback,
	}
	if b.fallback {
		metrics.FallbackBuildsTotal.Inc()
	}
	if length <= MaxPromptLength {
		metrics.PromptLength.Observe(float64(length))
		return res, nil
	}

	lyrics, _ := vars["lyrics"].(string)
	lyricsLength := Length(lyrics)
	excess := length - MaxPromptLength + TruncationBuffer
	target := max(MinLyricsLength, lyricsLength-excess)

	truncated, tier := TruncateLyrics(lyrics, target)
	if tier != TierNone {
		vars["lyrics"] = truncated
		prompt = b.template.Render(vars)

		res.Truncation = &Truncation{
			OriginalPromptLength:  length,
			TruncatedPromptLength: Length(prompt),
			OriginalLyricsLength:  lyricsLength,
			TruncatedLyricsLength: Length(truncated),
			TargetLyricsLength:    target,
			Tier:                  tier,
		}
		res.Prompt = prompt
		res.Length = res.Truncation.TruncatedPromptLength

		metrics.TruncationsTotal.WithLabelValues(string(tier)).Inc()
		b.logger.Warn("truncated lyrics to fit prompt limit",
			"version", res.Version,
			"tier", tier,
			"original_prompt_length", length,
			"truncated_prompt_length", res.Length,
			"original_lyrics_length", lyricsLength,
			"truncated_lyrics_length", res.Truncation.TruncatedLyricsLength,
			"target_lyrics_length", target,
		)
	}

	if res.Length > MaxPromptLength {
		metrics.PromptsTooLongTotal.Inc()
		b.logger.Warn("prompt exceeds limit after truncation",
			"version", res.Version,
			"length", res.Length,
			"limit", MaxPromptLength,
		)
		return nil, &PromptTooLongError{Length: res.Length, Limit: MaxPromptLength}
	}

	metrics.PromptLength.Observe(float64(res.Length))
	return res, nil
}

// BuildPrompt is Build returning only the prompt text.
func (b *Builder) BuildPrompt(input SongInput) (string, error) {
	res, err := b.Build(input)
	if err != nil {
		return "", err
	}
	return res.Prompt, nil
}

// Check builds input and reports whether the result fits. It never fails.
func (b *Builder) Check(input SongInput) Check {
	res, err := b.Build(input)
	if err != nil {
		c := Check{Valid: false, Limit: MaxPromptLength, Message: err.Error()}
		var tooLong *PromptTooLongError
		if errors.As(err, &tooLong) {
			c.Length = tooLong.Length
		}
		return c
	}
	return Check{
		Valid:      true,
		Length:     res.Length,
		Limit:      MaxPromptLength,
		Prompt:     res.Prompt,
		Truncation: res.Truncation,
	}
}

// Info describes the template in use.
func (b *Builder) Info() Info {
	return Info{
		RequestedVersion:   b.requested,
		Version:            b.prompt.Version,
		Fallback:           b.fallback,
		Metadata:           b.prompt.Metadata,
		BaseTemplate:       b.prompt.BaseTemplate,
		MoodMappings:       b.prompt.MoodMappings,
		EnergyMappings:     b.prompt.EnergyMappings,
		TruncationPriority: b.prompt.TruncationPriority,
		Variables:          prompts.ExtractVariables(b.prompt.BaseTemplate),
		Hash:               prompts.HashText(b.prompt.BaseTemplate),
	}
}
