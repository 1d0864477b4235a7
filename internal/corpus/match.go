package corpus

import (
	"strings"

	"github.com/samber/mo"

	"github.com/hpungsan/cardbot/internal/card"
)

// DefaultCeiling bounds the progressive-prefix scan.
const DefaultCeiling = 30

// MatchPolicy controls partial matching.
type MatchPolicy struct {
	// Ceiling is the largest prefix length tried before giving up.
	Ceiling int

	// Lenient accepts a single surviving candidate even when its name does
	// not start with the full query.
	Lenient bool

	// SelfName is the bot's own name; querying it returns SelfRecord.
	SelfName string
}

func (p MatchPolicy) withDefaults() MatchPolicy {
	if p.Ceiling <= 0 {
		p.Ceiling = DefaultCeiling
	}
	return p
}

// SelfRecord is the card returned when someone mentions the bot by name.
func SelfRecord(name string) card.Record {
	return card.Record{
		Name:       name,
		Kind:       card.KindCreature,
		Attributes: []string{"neutral"},
		Rarity:     "legendary",
		Cost:       0,
		Text:       "Prophecy, Guard. Summon: Reply to every card mention in sight.",
		Power:      1,
		Health:     99,
	}
}

// IsSelf reports whether key names the bot itself.
func (c *Corpus) IsSelf(key string) bool {
	self := card.NormalizeKey(c.policy.SelfName)
	return self != "" && key == self
}

// Resolve maps a normalized key to at most one record. Ambiguous or unknown
// keys yield None; it never picks arbitrarily between candidates.
func (c *Corpus) Resolve(key string) mo.Option[card.Record] {
	if key == "" {
		return mo.None[card.Record]()
	}
	if c.IsSelf(key) {
		return mo.Some(SelfRecord(c.policy.SelfName))
	}
	if i, ok := c.byKey[key]; ok {
		return mo.Some(c.records[i])
	}

	candidates := make([]int, len(c.records))
	for i := range candidates {
		candidates[i] = i
	}
	for n := 0; n <= c.policy.Ceiling && len(candidates) > 1; n++ {
		prefix := key[:min(n, len(key))]
		next := candidates[:0]
		for _, i := range candidates {
			if strings.HasPrefix(c.keys[i], prefix) {
				next = append(next, i)
			}
		}
		candidates = next
	}

	if len(candidates) != 1 {
		return mo.None[card.Record]()
	}
	i := candidates[0]
	if !c.policy.Lenient && !strings.HasPrefix(c.keys[i], key) {
		return mo.None[card.Record]()
	}
	return mo.Some(c.records[i])
}
