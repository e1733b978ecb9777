package prompts

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const frontMatterDelimiter = "---"

var (
	// mappingLinePattern matches "- key: value".
	mappingLinePattern = regexp.MustCompile(`^-\s*([A-Za-z0-9_-]+):\s*(.+)$`)

	// priorityLinePattern matches "1. item".
	priorityLinePattern = regexp.MustCompile(`^\d+\.\s*(.+)$`)
)

// ParseDocument parses a template file into front matter and sections.
// A document without a front matter block is malformed.
func ParseDocument(filename string, data []byte) (*Document, error) {
	front, body, err := splitFrontMatter(data)
	if err != nil {
		return nil, err
	}

	var raw struct {
		Version     any    `yaml:"version"`
		Description string `yaml:"description"`
		CreatedAt   any    `yaml:"createdAt"`
		Author      string `yaml:"author"`
		Features    any    `yaml:"features"`
	}
	if err := yaml.Unmarshal([]byte(front), &raw); err != nil {
		return nil, fmt.Errorf("failed to parse front matter: %w", err)
	}

	meta := Metadata{
		Version:     versionString(raw.Version),
		Description: raw.Description,
		CreatedAt:   scalarString(raw.CreatedAt),
		Author:      raw.Author,
	}
	if meta.Version == "" {
		meta.Version = "unknown"
	}
	if meta.Author == "" {
		meta.Author = "Unknown"
	}
	if meta.CreatedAt == "" {
		meta.CreatedAt = time.Now().Format(time.DateOnly)
	}
	if features, ok := raw.Features.([]any); ok {
		for _, f := range features {
			if s := scalarString(f); s != "" {
				meta.Features = append(meta.Features, s)
			}
		}
	}
	if meta.Features == nil {
		meta.Features = []string{}
	}

	content := strings.TrimSpace(body)
	return &Document{
		Filename: filename,
		Metadata: meta,
		Content:  content,
		Sections: parseSections(content),
	}, nil
}

// splitFrontMatter separates the YAML block between the leading "---"
// delimiters from the body.
func splitFrontMatter(data []byte) (front, body string, err error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if !scanner.Scan() || strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff")) != frontMatterDelimiter {
		return "", "", fmt.Errorf("missing front matter delimiter")
	}

	var frontLines []string
	closed := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == frontMatterDelimiter {
			closed = true
			break
		}
		frontLines = append(frontLines, line)
	}
	if !closed {
		return "", "", fmt.Errorf("unterminated front matter")
	}

	var bodyLines []string
	for scanner.Scan() {
		bodyLines = append(bodyLines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", "", fmt.Errorf("failed to scan document: %w", err)
	}

	return strings.Join(frontLines, "\n"), strings.Join(bodyLines, "\n"), nil
}

// parseSections splits the body on top-level "# " headings. Text before
// the first heading is ignored. Deeper headings ("## ...") stay inside the
// enclosing section.
func parseSections(body string) []Section {
	var sections []Section
	var current *Section

	flush := func() {
		if current != nil {
			finishSection(current)
			sections = append(sections, *current)
		}
	}

	for _, line := range strings.Split(body, "\n") {
		if title, ok := topLevelHeading(line); ok {
			flush()
			current = &Section{Kind: sectionKindFor(title), Title: title}
			continue
		}
		if current != nil {
			current.Lines = append(current.Lines, line)
		}
	}
	flush()

	return sections
}

func topLevelHeading(line string) (string, bool) {
	if !strings.HasPrefix(line, "#") || strings.HasPrefix(line, "##") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "#")), true
}

// finishSection fills the kind-specific fields from the raw lines.
// Lines that don't match the expected shape are skipped.
func finishSection(s *Section) {
	switch s.Kind {
	case SectionBaseTemplate:
		var parts []string
		for _, line := range s.Lines {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				parts = append(parts, trimmed)
			}
		}
		s.Text = strings.Join(parts, " ")

	case SectionMoodMappings, SectionEnergyMappings:
		for _, line := range s.Lines {
			m := mappingLinePattern.FindStringSubmatch(strings.TrimSpace(line))
			if m == nil {
				continue
			}
			s.Entries = append(s.Entries, Mapping{
				Key:   strings.ToLower(m[1]),
				Value: strings.TrimSpace(m[2]),
			})
		}

	case SectionTruncationPriority:
		for _, line := range s.Lines {
			m := priorityLinePattern.FindStringSubmatch(strings.TrimSpace(line))
			if m == nil {
				continue
			}
			s.Items = append(s.Items, strings.TrimSpace(m[1]))
		}
	}
}

// ParseMusicPrompt builds the structured music view of a document.
// Absent sections produce empty tables.
func ParseMusicPrompt(doc *Document) *MusicPrompt {
	mp := &MusicPrompt{
		Version:            doc.Metadata.Version,
		Metadata:           doc.Metadata,
		MoodMappings:       make(map[string]string),
		EnergyMappings:     make(map[string]string),
		TruncationPriority: []string{},
	}

	for _, s := range doc.Sections {
		switch s.Kind {
		case SectionBaseTemplate:
			if mp.BaseTemplate == "" {
				mp.BaseTemplate = s.Text
			}
		case SectionMoodMappings:
			for _, e := range s.Entries {
				mp.MoodMappings[e.Key] = e.Value
			}
		case SectionEnergyMappings:
			for _, e := range s.Entries {
				mp.EnergyMappings[e.Key] = e.Value
			}
		case SectionTruncationPriority:
			mp.TruncationPriority = append(mp.TruncationPriority, s.Items...)
		}
	}

	return mp
}

// versionString renders an unquoted YAML version. 1.0 decodes as a float
// (or 2 as an int), so it is formatted back with at least one decimal.
func versionString(v any) string {
	switch t := v.(type) {
	case float64:
		s := fmt.Sprintf("%g", t)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return s
	case int:
		return fmt.Sprintf("%d.0", t)
	default:
		return scalarString(v)
	}
}

// scalarString renders a YAML scalar as a string.
func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(time.DateOnly)
	default:
		return fmt.Sprint(t)
	}
}
