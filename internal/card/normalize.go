package card

import (
	"strings"
	"unicode"
)

// strippedRunes lists the punctuation removed from names before lookup.
// Whitespace is handled separately via unicode.IsSpace.
var strippedRunes = map[rune]bool{
	'-': true, '_': true,
	'"': true, '\'': true,
	'“': true, '”': true, // curly double quotes
	'‘': true, '’': true, // curly single quotes
	',': true, ';': true,
	'{': true, '}': true,
}

// NormalizeKey canonicalizes a card name for lookup:
// 1. Drop all whitespace
// 2. Drop hyphens, underscores, quotes, commas, semicolons and braces
// 3. Lowercase
//
// An input made only of stripped characters yields "", which callers treat as
// "nothing to look up".
func NormalizeKey(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || strippedRunes[r] {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
