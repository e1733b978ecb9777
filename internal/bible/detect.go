package bible

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	referencePattern = regexp.MustCompile(`(?i)\b((?:\d\s+)?[A-Za-z]+(?:\s+of\s+[A-Za-z]+)?)\s+(\d+)(?::(\d+)(?:-(\d+))?)?`)
	lookupPattern    = regexp.MustCompile(`(?i)\b(show|read|quote|find|lookup|get)\b.*\b(verse|scripture|bible)\b`)
)

var keywords = []string{
	"verse", "scripture", "bible", "biblical", "psalm", "proverb",
	"testament", "gospel", "apostle", "prophet", "lord", "god",
	"jesus", "christ", "holy", "prayer", "faith", "worship",
}

// Reference is a detected Bible reference. Verse and EndVerse are zero when
// absent.
type Reference struct {
	Book     string `json:"book"`
	Chapter  int    `json:"chapter"`
	Verse    int    `json:"verse,omitempty"`
	EndVerse int    `json:"end_verse,omitempty"`
	Original string `json:"original_text"`
}

// String formats the reference as "Book Chapter[:Verse[-EndVerse]]".
func (r Reference) String() string {
	s := fmt.Sprintf("%s %d", r.Book, r.Chapter)
	if r.Verse > 0 {
		s += fmt.Sprintf(":%d", r.Verse)
		if r.EndVerse > 0 && r.EndVerse != r.Verse {
			s += fmt.Sprintf("-%d", r.EndVerse)
		}
	}
	return s
}

// Detect finds the Bible references in text, in order of appearance,
// without duplicates.
func Detect(text string) []Reference {
	var refs []Reference
	seen := make(map[string]bool)

	for pos := 0; pos < len(text); {
		loc := referencePattern.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		base := pos
		group := func(i int) string {
			if loc[2*i] < 0 {
				return ""
			}
			return text[base+loc[2*i] : base+loc[2*i+1]]
		}

		book, ok := NormalizeBookName(group(1))
		if !ok {
			// "read 1 Corinthians 13:4" first matches "read 1"; rescan from
			// the number so the numbered book is still found.
			pos += loc[4]
			continue
		}
		pos += loc[1]

		chapter, err := strconv.Atoi(group(2))
		if err != nil || chapter == 0 {
			continue
		}
		verse, _ := strconv.Atoi(group(3))
		endVerse, _ := strconv.Atoi(group(4))

		ref := Reference{
			Book:     book,
			Chapter:  chapter,
			Verse:    verse,
			EndVerse: endVerse,
			Original: text[base+loc[0] : base+loc[1]],
		}
		key := ref.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		refs = append(refs, ref)
	}
	return refs
}

// Normalize returns the canonical form of a single reference ("phil 4:13"
// becomes "Philippians 4:13"). Input that isn't exactly one reference is
// returned trimmed but otherwise unchanged.
func Normalize(ref string) string {
	trimmed := strings.TrimSpace(ref)
	refs := Detect(trimmed)
	if len(refs) != 1 || strings.TrimSpace(refs[0].Original) != trimmed {
		return trimmed
	}
	return refs[0].String()
}

// ContainsBiblicalKeywords reports whether text mentions a common biblical
// term.
func ContainsBiblicalKeywords(text string) bool {
	lower := strings.ToLower(text)
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

// ShouldLookup reports whether a chat message asks for scripture: either it
// contains a reference, or it has biblical keywords and a lookup request
// ("show me a verse about ...").
func ShouldLookup(message string) bool {
	if len(Detect(message)) > 0 {
		return true
	}
	return ContainsBiblicalKeywords(message) && lookupPattern.MatchString(message)
}
