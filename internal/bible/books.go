// Package bible detects and normalizes Bible references such as
// "John 3:16", "phil 4:13" or "Psalm 23".
package bible

import (
	"regexp"
	"strings"
)

// Books lists the 66 books of the Protestant canon in order.
var Books = []string{
	// Old Testament
	"Genesis", "Exodus", "Leviticus", "Numbers", "Deuteronomy", "Joshua", "Judges", "Ruth",
	"1 Samuel", "2 Samuel", "1 Kings", "2 Kings", "1 Chronicles", "2 Chronicles",
	"Ezra", "Nehemiah", "Esther", "Job", "Psalms", "Proverbs", "Ecclesiastes",
	"Song of Solomon", "Isaiah", "Jeremiah", "Lamentations", "Ezekiel", "Daniel",
	"Hosea", "Joel", "Amos", "Obadiah", "Jonah", "Micah", "Nahum", "Habakkuk",
	"Zephaniah", "Haggai", "Zechariah", "Malachi",
	// New Testament
	"Matthew", "Mark", "Luke", "John", "Acts", "Romans", "1 Corinthians", "2 Corinthians",
	"Galatians", "Ephesians", "Philippians", "Colossians", "1 Thessalonians", "2 Thessalonians",
	"1 Timothy", "2 Timothy", "Titus", "Philemon", "Hebrews", "James", "1 Peter", "2 Peter",
	"1 John", "2 John", "3 John", "Jude", "Revelation",
}

// Abbreviations maps lower-case abbreviations to book names.
var Abbreviations = map[string]string{
	// Old Testament
	"gen": "Genesis", "ex": "Exodus", "exod": "Exodus", "lev": "Leviticus", "num": "Numbers",
	"deut": "Deuteronomy", "dt": "Deuteronomy", "josh": "Joshua", "judg": "Judges",
	"1sam": "1 Samuel", "2sam": "2 Samuel", "1ki": "1 Kings", "1kgs": "1 Kings",
	"2ki": "2 Kings", "2kgs": "2 Kings", "1chr": "1 Chronicles", "2chr": "2 Chronicles",
	"neh": "Nehemiah", "est": "Esther", "ps": "Psalms", "psa": "Psalms", "psalm": "Psalms",
	"prov": "Proverbs", "pr": "Proverbs", "eccl": "Ecclesiastes", "ecc": "Ecclesiastes",
	"song": "Song of Solomon", "sos": "Song of Solomon", "isa": "Isaiah", "is": "Isaiah",
	"jer": "Jeremiah", "lam": "Lamentations", "ezek": "Ezekiel", "ez": "Ezekiel",
	"dan": "Daniel", "hos": "Hosea", "joel": "Joel", "am": "Amos", "obad": "Obadiah",
	"ob": "Obadiah", "jon": "Jonah", "mic": "Micah", "nah": "Nahum", "hab": "Habakkuk",
	"zeph": "Zephaniah", "zep": "Zephaniah", "hag": "Haggai", "zech": "Zechariah",
	"zec": "Zechariah", "mal": "Malachi",
	// New Testament
	"matt": "Matthew", "mt": "Matthew", "mk": "Mark", "lk": "Luke", "jn": "John",
	"joh": "John", "acts": "Acts", "rom": "Romans", "1cor": "1 Corinthians",
	"2cor": "2 Corinthians", "gal": "Galatians", "eph": "Ephesians", "phil": "Philippians",
	"php": "Philippians", "col": "Colossians", "1thess": "1 Thessalonians", "1th": "1 Thessalonians",
	"2thess": "2 Thessalonians", "2th": "2 Thessalonians", "1tim": "1 Timothy", "1ti": "1 Timothy",
	"2tim": "2 Timothy", "2ti": "2 Timothy", "tit": "Titus", "philem": "Philemon",
	"phlm": "Philemon", "heb": "Hebrews", "jas": "James", "jam": "James", "1pet": "1 Peter",
	"1pe": "1 Peter", "2pet": "2 Peter", "2pe": "2 Peter", "1jn": "1 John", "1jo": "1 John",
	"2jn": "2 John", "2jo": "2 John", "3jn": "3 John", "3jo": "3 John", "jude": "Jude",
	"rev": "Revelation",
}

// minPrefixLength is the shortest input matched as a book-name prefix.
// Shorter inputs only match through Abbreviations.
const minPrefixLength = 3

var (
	punctuationPattern = regexp.MustCompile(`[^\w\s]`)
	spacePattern       = regexp.MustCompile(`\s+`)
)

// NormalizeBookName resolves an abbreviation, full name, unspaced name
// ("1john") or name prefix ("genes") to its canonical book name.
func NormalizeBookName(input string) (string, bool) {
	normalized := strings.TrimSpace(punctuationPattern.ReplaceAllString(strings.ToLower(input), ""))
	normalized = spacePattern.ReplaceAllString(normalized, " ")
	if normalized == "" {
		return "", false
	}

	if book, ok := Abbreviations[normalized]; ok {
		return book, true
	}
	if book, ok := Abbreviations[strings.ReplaceAll(normalized, " ", "")]; ok {
		return book, true
	}

	for _, book := range Books {
		lower := strings.ToLower(book)
		switch {
		case lower == normalized:
			return book, true
		case normalized == strings.ReplaceAll(lower, " ", ""):
			return book, true
		case len(normalized) >= minPrefixLength && strings.HasPrefix(lower, normalized):
			return book, true
		}
	}
	return "", false
}
