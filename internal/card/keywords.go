package card

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// continuationWord joins with the preceding word into one keyword token
// ("Last Gasp").
const continuationWord = "gasp"

// keywordTokenPattern matches a word, optionally followed by the continuation word.
var keywordTokenPattern = regexp.MustCompile(`(?i)\w+(?:\s+` + continuationWord + `\b)?`)

// keywordVocabulary is the closed set of recognized keywords, title-cased.
var keywordVocabulary = map[string]bool{
	"Assemble":     true,
	"Betray":       true,
	"Breakthrough": true,
	"Charge":       true,
	"Consume":      true,
	"Drain":        true,
	"Empower":      true,
	"Exalt":        true,
	"Expertise":    true,
	"Guard":        true,
	"Invade":       true,
	"Last Gasp":    true,
	"Lethal":       true,
	"Mobilize":     true,
	"Pilfer":       true,
	"Plot":         true,
	"Prophecy":     true,
	"Rally":        true,
	"Regenerate":   true,
	"Shackle":      true,
	"Silence":      true,
	"Slay":         true,
	"Summon":       true,
	"Unite":        true,
	"Veteran":      true,
	"Ward":         true,
}

// IsKeyword reports whether s (any case) is in the keyword vocabulary.
func IsKeyword(s string) bool {
	return keywordVocabulary[titleCase(s)]
}

// ExtractKeywords returns the leading run of keywords in a card description.
// Scanning stops at the first token that is not a keyword; duplicates within
// the run are dropped, keeping first-occurrence order.
func ExtractKeywords(text string) []string {
	var keywords []string
	seen := make(map[string]bool)
	for _, tok := range keywordTokenPattern.FindAllString(text, -1) {
		kw := titleCase(strings.Join(strings.Fields(tok), " "))
		if !keywordVocabulary[kw] {
			break
		}
		if seen[kw] {
			continue
		}
		seen[kw] = true
		keywords = append(keywords, kw)
	}
	return keywords
}

// titleCase upper-cases the first letter of each word and lower-cases the rest.
// A Caser keeps state, so one is built per call.
func titleCase(s string) string {
	return cases.Title(language.Und).String(s)
}
