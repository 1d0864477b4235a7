package card

import (
	"fmt"
	"regexp"
	"strconv"
)

// Stats holds the numeric stats shown for a card.
type Stats struct {
	Power  int `json:"power"`
	Health int `json:"health"`

	// Bonus is true for item stats, which are modifiers rather than totals
	Bonus bool `json:"bonus,omitempty"`
}

// String renders stats as "P/H", or "+P/+H" for item bonuses.
func (s Stats) String() string {
	if s.Bonus {
		return fmt.Sprintf("+%d/+%d", s.Power, s.Health)
	}
	return fmt.Sprintf("%d/%d", s.Power, s.Health)
}

// bonusPattern matches an item bonus such as "+2/+1".
var bonusPattern = regexp.MustCompile(`\+(\d+)/\+(\d+)`)

// StatsFor returns the stats for a record, depending on its kind:
// creatures read power/health directly, items take the first "+N/+M" in
// their text, other kinds have none.
func StatsFor(r Record) (Stats, bool) {
	switch r.Kind {
	case KindCreature:
		return Stats{Power: r.Power, Health: r.Health}, true
	case KindItem:
		return parseBonus(r.Text)
	default:
		return Stats{}, false
	}
}

func parseBonus(text string) (Stats, bool) {
	m := bonusPattern.FindStringSubmatch(text)
	if m == nil {
		return Stats{}, false
	}
	power, err := strconv.Atoi(m[1])
	if err != nil {
		return Stats{}, false
	}
	health, err := strconv.Atoi(m[2])
	if err != nil {
		return Stats{}, false
	}
	return Stats{Power: power, Health: health, Bonus: true}, true
}
