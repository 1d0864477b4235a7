package reply

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/hpungsan/cardbot/internal/card"
)

const (
	intro      = "Here are the cards you mentioned:"
	header     = "| Name | Type | Cost | Stats | Keywords | Attributes | Rarity |"
	separator  = "|---|---|---|---|---|---|---|"
	unknownRow = "| %s | This card does not seem to exist. Possible typo? | | | | | |"
)

// Picker chooses an index in [0, n).
type Picker interface {
	IntN(n int) int
}

type randPicker struct{}

func (randPicker) IntN(n int) int { return rand.IntN(n) }

// RandomPicker returns the process-wide random picker.
func RandomPicker() Picker { return randPicker{} }

// FixedPicker always returns the same index (clamped to n-1).
type FixedPicker int

// IntN implements Picker.
func (f FixedPicker) IntN(n int) int {
	return min(max(int(f), 0), n-1)
}

// Footer holds the operator details appended to every reply.
type Footer struct {
	Operator   string
	SourceURL  string
	ContactURL string
}

// String renders the footer block.
func (f Footer) String() string {
	operator := f.Operator
	if operator == "" {
		operator = "the operator"
	}
	var b strings.Builder
	b.WriteString("&nbsp;\n\n___\n")
	fmt.Fprintf(&b, "^(_I am a bot, and this action was performed automatically. "+
		"For information or to submit a bug report, please contact %s._)", operator)

	var links []string
	if f.SourceURL != "" {
		links = append(links, fmt.Sprintf("[Source Code](%s)", f.SourceURL))
	}
	if f.ContactURL != "" {
		links = append(links, fmt.Sprintf("[Send PM](%s)", f.ContactURL))
	}
	if len(links) > 0 {
		b.WriteString("\n\n")
		b.WriteString(strings.Join(links, " | "))
	}
	return b.String()
}

// Formatter renders resolved views as a markdown reply.
type Formatter struct {
	Footer Footer
	Tips   []string
	Picker Picker
}

// Format renders views into reply text. An empty view list yields "".
// Output is deterministic for a deterministic Picker.
func (f Formatter) Format(views []card.View) string {
	if len(views) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(intro)
	b.WriteString("\n\n")
	b.WriteString(header)
	b.WriteString("\n")
	b.WriteString(separator)
	b.WriteString("\n")
	for _, v := range views {
		b.WriteString(Row(v))
		b.WriteString("\n")
	}

	if tip := f.tip(); tip != "" {
		b.WriteString("\n**Did you know?** ")
		b.WriteString(tip)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(f.Footer.String())
	return b.String()
}

func (f Formatter) tip() string {
	if len(f.Tips) == 0 {
		return ""
	}
	p := f.Picker
	if p == nil {
		p = RandomPicker()
	}
	return f.Tips[p.IntN(len(f.Tips))]
}

// Row renders one table row.
func Row(v card.View) string {
	if v.Unknown {
		return fmt.Sprintf(unknownRow, cell(v.Mention))
	}

	name := cell(v.Name)
	if v.ImageURL != "" {
		name = fmt.Sprintf("[%s](%s)", name, v.ImageURL)
	}

	stats := "-"
	if v.Stats != nil {
		stats = v.Stats.String()
	}

	keywords := "none"
	if len(v.Keywords) > 0 {
		keywords = strings.Join(v.Keywords, ", ")
	}

	return fmt.Sprintf("| %s | %s | %d | %s | %s | %s | %s |",
		name,
		title(string(v.Kind)),
		v.Cost,
		stats,
		keywords,
		title(strings.Join(v.Attributes, "/")),
		title(v.Rarity),
	)
}

func title(s string) string {
	return cases.Title(language.Und).String(s)
}

// cell keeps user text from breaking the table layout.
func cell(s string) string {
	s = strings.ReplaceAll(s, "|", "\\|")
	return strings.Join(strings.Fields(s), " ")
}
