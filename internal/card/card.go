package card

import "strings"

// Kind is the card type as it appears in the corpus file.
type Kind string

const (
	KindCreature Kind = "creature"
	KindItem     Kind = "item"
	KindAction   Kind = "action"
	KindSupport  Kind = "support"
	KindOther    Kind = "other"
)

// ParseKind maps a corpus type string to a Kind. Unknown types map to KindOther.
func ParseKind(s string) Kind {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindCreature:
		return KindCreature
	case KindItem:
		return KindItem
	case KindAction:
		return KindAction
	case KindSupport:
		return KindSupport
	default:
		return KindOther
	}
}

// Record is a single corpus entry. Records are immutable once loaded.
type Record struct {
	// Name is the display name of the card
	Name string `json:"name"`

	// Kind is the card type (creature, item, action, support, other)
	Kind Kind `json:"type"`

	// Attributes holds one or two attribute tags (e.g. "strength", "willpower")
	Attributes []string `json:"attributes"`

	// Rarity is the rarity tier (e.g. "common", "legendary")
	Rarity string `json:"rarity"`

	// Cost is the magicka cost
	Cost int `json:"cost"`

	// Text is the free-text card description
	Text string `json:"text"`

	// Power is the creature attack value (creature only)
	Power int `json:"attack,omitempty"`

	// Health is the creature health value (creature only)
	Health int `json:"health,omitempty"`
}

// Key returns the normalized lookup key for the record name.
func (r Record) Key() string {
	return NormalizeKey(r.Name)
}

// View is a resolved mention ready for formatting. It is either a card derived
// from a Record or an unknown placeholder carrying the original mention text.
type View struct {
	// Unknown is true when no corpus entry matched the mention
	Unknown bool `json:"unknown"`

	// Mention is the raw mention text as written by the user
	Mention string `json:"mention"`

	// Key is the normalized lookup key of the mention
	Key string `json:"key"`

	Name       string   `json:"name,omitempty"`
	Kind       Kind     `json:"type,omitempty"`
	Attributes []string `json:"attributes,omitempty"`
	Rarity     string   `json:"rarity,omitempty"`
	Cost       int      `json:"cost"`
	Text       string   `json:"text,omitempty"`

	// Keywords is the leading keyword run of Text, computed once at construction
	Keywords []string `json:"keywords,omitempty"`

	// Stats is nil for kinds without numeric stats
	Stats *Stats `json:"stats,omitempty"`

	// ImageURL is the verified image link, or the fallback link
	ImageURL string `json:"image_url,omitempty"`
}

// NewView builds a resolved View from a record and its image URL.
func NewView(mention string, r Record, imageURL string) View {
	v := View{
		Mention:    mention,
		Key:        NormalizeKey(mention),
		Name:       r.Name,
		Kind:       r.Kind,
		Attributes: r.Attributes,
		Rarity:     r.Rarity,
		Cost:       r.Cost,
		Text:       r.Text,
		Keywords:   ExtractKeywords(r.Text),
		ImageURL:   imageURL,
	}
	if s, ok := StatsFor(r); ok {
		v.Stats = &s
	}
	return v
}

// UnknownView builds the placeholder for a mention with no corpus match.
func UnknownView(mention string) View {
	return View{
		Unknown: true,
		Mention: mention,
		Key:     NormalizeKey(mention),
	}
}
