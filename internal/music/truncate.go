package music

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// MaxPromptLength is the music API's prompt ceiling in characters.
	MaxPromptLength = 2000

	// TruncationBuffer is extra room taken off the lyrics beyond the excess.
	TruncationBuffer = 50

	// MinLyricsLength is the floor for the lyrics truncation target.
	MinLyricsLength = 100

	// Ellipsis marks truncated lyrics.
	Ellipsis = "..."
)

// Tier is the granularity lyrics were truncated at.
type Tier string

const (
	TierNone      Tier = "none"
	TierParagraph Tier = "paragraph"
	TierSentence  Tier = "sentence"
	TierHardCut   Tier = "hard_cut"
)

var (
	paragraphBreakPattern = regexp.MustCompile(`\n[ \t\r]*\n`)
	sentencePattern       = regexp.MustCompile(`[^.!?]+[.!?]+`)
)

// Length counts characters, not bytes.
func Length(s string) int {
	return utf8.RuneCountInString(s)
}

// TruncateLyrics shortens lyrics to at most target characters, ellipsis
// included. It keeps the longest run of whole paragraphs that fits, else
// whole sentences, else cuts at target-3 characters. Paragraph and sentence
// results are a prefix of the trimmed lyrics plus Ellipsis. Lyrics already
// within target come back unchanged with TierNone.
func TruncateLyrics(lyrics string, target int) (string, Tier) {
	if Length(lyrics) <= target {
		return lyrics, TierNone
	}
	text := strings.TrimSpace(lyrics)

	var paragraphEnds []int
	for _, loc := range paragraphBreakPattern.FindAllStringIndex(text, -1) {
		paragraphEnds = append(paragraphEnds, loc[0])
	}
	paragraphEnds = append(paragraphEnds, len(text))
	if kept := longestPrefix(text, paragraphEnds, target); kept != "" {
		return kept + Ellipsis, TierParagraph
	}

	var sentenceEnds []int
	for _, loc := range sentencePattern.FindAllStringIndex(text, -1) {
		sentenceEnds = append(sentenceEnds, loc[1])
	}
	if kept := longestPrefix(text, sentenceEnds, target); kept != "" {
		return kept + Ellipsis, TierSentence
	}

	n := target - len(Ellipsis)
	if n < 0 {
		n = 0
	}
	runes := []rune(text)
	if n > len(runes) {
		n = len(runes)
	}
	return string(runes[:n]) + Ellipsis, TierHardCut
}

// longestPrefix returns the longest text[:end] over ends (ascending) that
// still fits target once Ellipsis is appended.
func longestPrefix(text string, ends []int, target int) string {
	var kept string
	for _, end := range ends {
		candidate := strings.TrimRightFunc(text[:end], unicode.IsSpace)
		if candidate == "" {
			continue
		}
		if Length(candidate)+len(Ellipsis) > target {
			break
		}
		kept = candidate
	}
	return kept
}
