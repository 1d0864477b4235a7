package card

import "regexp"

// mentionPattern matches {{...}} non-greedily so that "{{A}} {{B}}" yields two
// mentions. An opening "{{" without a closing "}}" never matches. Mentions
// may span lines.
var mentionPattern = regexp.MustCompile(`(?s)\{\{(.*?)\}\}`)

// ExtractMentions returns the raw mentions in text, in first-seen order.
// Mentions that normalize to an already-seen key are dropped, so
// "{{Tyr}} {{tyr}}" yields a single "Tyr".
func ExtractMentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(matches))
	mentions := make([]string, 0, len(matches))
	for _, m := range matches {
		raw := m[1]
		key := NormalizeKey(raw)
		if seen[key] {
			continue
		}
		seen[key] = true
		mentions = append(mentions, raw)
	}
	return mentions
}
