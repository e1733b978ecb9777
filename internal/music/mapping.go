package music

import (
	"strings"

	"github.com/jackzampolin/songbook/internal/prompts"
)

// FallbackVersion names the built-in template used when a requested
// version cannot be loaded.
const FallbackVersion = "default"

var defaultMoods = map[string]string{
	"happy":      "joyful and uplifting",
	"peaceful":   "calm and peaceful",
	"excited":    "enthusiastic and celebratory",
	"reflective": "gentle and thoughtful",
	"worship":    "reverent and worshipful",
}

var defaultEnergies = map[string]string{
	"high":   "energetic and fun",
	"medium": "moderately paced",
	"low":    "gentle and soothing",
	"calm":   "peaceful and relaxing",
}

const defaultBaseTemplate = `Create a Sunday School song for children aged {{ageGroup|5-10}}` +
	`{{#theme}}, with the theme: "{{theme}}"{{/theme}}` +
	`{{#bibleReference}}, based on the Bible verse: {{bibleReference}}{{/bibleReference}}` +
	`{{#mood}}, with a {{mood}} feeling{{/mood}}` +
	`{{#energy}}, that is {{energy}}{{/energy}}` +
	`{{#instrumental}}, as an instrumental piece suitable for singing along{{/instrumental}}` +
	`{{^instrumental}}, with vocals included{{#lyrics}}, Lyrics: "{{lyrics}}"{{/lyrics}}{{/instrumental}}` +
	`, Make it simple, engaging, and appropriate for young children in a Christian educational setting`

// DefaultMusicPrompt returns the built-in template. Each call returns a
// fresh copy.
func DefaultMusicPrompt() *prompts.MusicPrompt {
	moods := make(map[string]string, len(defaultMoods))
	for k, v := range defaultMoods {
		moods[k] = v
	}
	energies := make(map[string]string, len(defaultEnergies))
	for k, v := range defaultEnergies {
		energies[k] = v
	}
	return &prompts.MusicPrompt{
		Version: FallbackVersion,
		Metadata: prompts.Metadata{
			Version:     FallbackVersion,
			Description: "Built-in Sunday School music prompt",
			Author:      "System",
			Features:    []string{"mood mappings", "energy mappings", "lyrics truncation"},
		},
		BaseTemplate:       defaultBaseTemplate,
		MoodMappings:       moods,
		EnergyMappings:     energies,
		TruncationPriority: []string{"lyrics", "energy", "mood", "bibleReference", "theme"},
	}
}

// describe maps a mood or energy word to its phrase: the template's table
// first, then the built-in table, then the word itself.
func describe(word string, table, builtin map[string]string) string {
	word = strings.TrimSpace(word)
	key := strings.ToLower(word)
	if key == "" {
		return ""
	}
	if phrase, ok := table[key]; ok {
		return phrase
	}
	if phrase, ok := builtin[key]; ok {
		return phrase
	}
	return word
}
