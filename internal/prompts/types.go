// Package prompts loads versioned music-prompt templates and renders them.
//
// Templates are markdown documents with YAML front matter:
//
//	---
//	version: "1.0"
//	description: Sunday School music prompt
//	author: System
//	createdAt: "2024-10-09"
//	features: [mood mappings, lyrics truncation]
//	---
//	# Base Template
//
//	Create a Sunday School song{{#theme}} about {{theme}}{{/theme}}...
//
//	# Mood Mappings
//
//	- happy: joyful and uplifting
//
// Resolution order for a template file:
//  1. The override directory (~/.songbook/prompts), if present
//  2. Embedded defaults compiled into the binary
//
// Parsed documents are cached per filename for the life of the Loader until
// ClearCache is called.
package prompts

import (
	"errors"
	"strings"
)

// ErrNotFound is returned when a template file is missing, unreadable or
// malformed. Callers treat it as a normal outcome and fall back to defaults.
var ErrNotFound = errors.New("prompt template not found")

// Metadata is the front matter of a template document.
// It is informational only and never affects rendering.
type Metadata struct {
	Version     string   `json:"version" yaml:"version"`
	Description string   `json:"description" yaml:"description"`
	CreatedAt   string   `json:"created_at" yaml:"createdAt"`
	Author      string   `json:"author" yaml:"author"`
	Features    []string `json:"features" yaml:"features"`
}

// Document is a parsed template file.
type Document struct {
	Filename string    `json:"filename"`
	Metadata Metadata  `json:"metadata"`
	Content  string    `json:"content"` // Body with front matter removed, trimmed
	Sections []Section `json:"sections"`
}

// Section returns the first section of the given kind.
func (d *Document) Section(kind SectionKind) (Section, bool) {
	for _, s := range d.Sections {
		if s.Kind == kind {
			return s, true
		}
	}
	return Section{}, false
}

// SectionKind tags a body section.
type SectionKind string

const (
	SectionBaseTemplate       SectionKind = "base_template"
	SectionMoodMappings       SectionKind = "mood_mappings"
	SectionEnergyMappings     SectionKind = "energy_mappings"
	SectionTruncationPriority SectionKind = "truncation_priority"
	SectionOther              SectionKind = "other"
)

// sectionKindFor maps a heading title to its section kind.
func sectionKindFor(title string) SectionKind {
	switch strings.ToLower(strings.TrimSpace(title)) {
	case "base template":
		return SectionBaseTemplate
	case "mood mappings":
		return SectionMoodMappings
	case "energy mappings":
		return SectionEnergyMappings
	case "truncation priority":
		return SectionTruncationPriority
	default:
		return SectionOther
	}
}

// Section is one heading-delimited part of a document body.
// Which of Text, Entries or Items is populated depends on Kind.
type Section struct {
	Kind    SectionKind `json:"kind"`
	Title   string      `json:"title"`
	Lines   []string    `json:"-"`
	Text    string      `json:"text,omitempty"`    // SectionBaseTemplate
	Entries []Mapping   `json:"entries,omitempty"` // SectionMoodMappings, SectionEnergyMappings
	Items   []string    `json:"items,omitempty"`   // SectionTruncationPriority
}

// Mapping is a single "- key: value" line.
type Mapping struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// MusicPrompt is the structured view of a music template document.
type MusicPrompt struct {
	Version            string            `json:"version"`
	Metadata           Metadata          `json:"metadata"`
	BaseTemplate       string            `json:"base_template"`
	MoodMappings       map[string]string `json:"mood_mappings"`
	EnergyMappings     map[string]string `json:"energy_mappings"`
	TruncationPriority []string          `json:"truncation_priority"`
}

// ValidationResult reports structural problems in a template file.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}
