package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jackzampolin/songbook/internal/music"
)

const extractionSystemPrompt = "You are a JSON extraction assistant. Return only valid JSON."

// songFieldsSchema constrains the extraction reply. Fields may be null or
// absent when the model has nothing to add.
var songFieldsSchema = json.RawMessage(`{
	"name": "song_fields",
	"strict": false,
	"schema": {
		"type": "object",
		"properties": {
			"theme": {"type": ["string", "null"], "maxLength": 500},
			"mood": {"type": ["string", "null"], "maxLength": 50},
			"energy": {"type": ["string", "null"], "maxLength": 50},
			"bibleReference": {"type": ["string", "null"], "maxLength": 100},
			"ageGroup": {"type": ["string", "null"], "maxLength": 10},
			"instrumental": {"type": ["boolean", "null"]}
		}
	}
}`)

var (
	songFieldsOnce     sync.Once
	songFieldsCompiled *jsonschema.Schema
	songFieldsErr      error
)

func songFieldsValidator() (*jsonschema.Schema, error) {
	songFieldsOnce.Do(func() {
		songFieldsCompiled, songFieldsErr = compileSchema(songFieldsSchema)
	})
	return songFieldsCompiled, songFieldsErr
}

type extractedFields struct {
	Theme          string `json:"theme"`
	Mood           string `json:"mood"`
	Energy         string `json:"energy"`
	BibleReference string `json:"bibleReference"`
	AgeGroup       string `json:"ageGroup"`
	Instrumental   *bool  `json:"instrumental"`
}

// ExtractSongFields asks chat to tidy a song request into structured fields
// and merges the answer over input. Extracted values win when non-empty,
// lyrics and tempo are never replaced, and the age group defaults to
// music.DefaultAgeGroup. On any failure the original input is returned
// together with the error, which is also logged.
func ExtractSongFields(ctx context.Context, chat LLMClient, input music.SongInput, logger *slog.Logger) (music.SongInput, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fields, err := extractFields(ctx, chat, input)
	if err != nil {
		logger.Warn("failed to extract structured input, using original", "error", err)
		return input, err
	}

	out := input
	out.Theme = firstNonEmpty(fields.Theme, input.Theme)
	out.Mood = firstNonEmpty(fields.Mood, input.Mood)
	out.Energy = firstNonEmpty(fields.Energy, input.Energy)
	out.BibleReference = firstNonEmpty(fields.BibleReference, input.BibleReference)
	out.AgeGroup = firstNonEmpty(fields.AgeGroup, input.AgeGroup, music.DefaultAgeGroup)
	if fields.Instrumental != nil {
		out.Instrumental = *fields.Instrumental
	}

	if err := out.Validate(); err != nil {
		logger.Warn("extracted fields failed validation, using original", "error", err)
		return input, err
	}

	logger.Debug("extracted structured input",
		"theme", out.Theme,
		"mood", out.Mood,
		"energy", out.Energy,
		"bible_reference", out.BibleReference,
	)
	return out, nil
}

func extractFields(ctx context.Context, chat LLMClient, input music.SongInput) (*extractedFields, error) {
	if chat == nil {
		return nil, fmt.Errorf("no chat client configured")
	}
	schema, err := songFieldsValidator()
	if err != nil {
		return nil, err
	}

	messages := []Message{
		{Role: "system", Content: extractionSystemPrompt},
		{Role: "user", Content: extractionPrompt(input)},
	}

	var lastErr error
	for attempt := 0; attempt <= maxStructuredRepairAttempts; attempt++ {
		res, err := chat.Chat(ctx, &ChatRequest{Messages: messages, MaxTokens: 500})
		if err != nil {
			return nil, fmt.Errorf("extraction request failed: %w", err)
		}

		parsed, err := parseStructuredJSON(res.Content)
		if err == nil {
			err = validateStructuredJSON(schema, parsed)
		}
		if err == nil {
			var fields extractedFields
			if err := json.Unmarshal(parsed, &fields); err != nil {
				return nil, fmt.Errorf("failed to decode extracted fields: %w", err)
			}
			return &fields, nil
		}

		lastErr = err
		messages = append(messages,
			Message{Role: "assistant", Content: res.Content},
			Message{Role: "user", Content: structuredRepairPrompt(songFieldsSchema, res.Content, err)},
		)
	}
	return nil, lastErr
}

func extractionPrompt(input music.SongInput) string {
	instrumental := "no"
	if input.Instrumental {
		instrumental = "yes"
	}
	lyrics := "not provided"
	if strings.TrimSpace(input.Lyrics) != "" {
		lyrics = "provided"
	}

	return fmt.Sprintf(`Extract the following information from this Sunday School song request. Return ONLY a JSON object with these fields:
{
  "theme": "main theme or topic",
  "mood": "happy/peaceful/excited/reflective/worship",
  "energy": "high/medium/low/calm",
  "bibleReference": "exact Bible verse reference if mentioned",
  "ageGroup": "age range (default: 5-10)",
  "instrumental": boolean (true if instrumental requested)
}

Song request:
Theme: %s
Bible Reference: %s
Mood: %s
Energy: %s
Age Group: %s
Instrumental: %s
Lyrics: %s

Respond with ONLY the JSON object.`,
		orDefault(input.Theme, "not specified"),
		orDefault(input.BibleReference, "not specified"),
		orDefault(input.Mood, "not specified"),
		orDefault(input.Energy, "not specified"),
		orDefault(input.AgeGroup, music.DefaultAgeGroup),
		instrumental,
		lyrics,
	)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
