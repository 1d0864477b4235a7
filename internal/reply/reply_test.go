package reply

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/cardbot/internal/card"
)

var tyr = card.Record{
	Name:       "Tyr",
	Kind:       card.KindCreature,
	Attributes: []string{"strength", "willpower"},
	Rarity:     "legendary",
	Cost:       8,
	Text:       "Guard. Summon: Put Tyr's Avatar into your hand.",
	Power:      7,
	Health:     7,
}

func TestFormat_Empty(t *testing.T) {
	f := Formatter{Footer: Footer{Operator: "/u/someone"}}
	require.Equal(t, "", f.Format(nil))
	require.Equal(t, "", f.Format([]card.View{}))
}

func TestFormat_RowsAndFooter(t *testing.T) {
	f := Formatter{Footer: Footer{
		Operator:   "/u/someone",
		SourceURL:  "https://example.com/src",
		ContactURL: "https://example.com/pm",
	}}
	views := []card.View{
		card.NewView("Tyr", tyr, "https://img/tyr.png"),
		card.UnknownView("Nonexistent Card Name"),
	}

	out := f.Format(views)
	lines := strings.Split(out, "\n")

	require.Equal(t, intro, lines[0])
	require.Equal(t, header, lines[2])
	require.Equal(t, separator, lines[3])
	require.Equal(t, "| [Tyr](https://img/tyr.png) | Creature | 8 | 7/7 | Guard, Summon | Strength/Willpower | Legendary |", lines[4])
	require.Equal(t, "| Nonexistent Card Name | This card does not seem to exist. Possible typo? | | | | | |", lines[5])

	require.Equal(t, 1, strings.Count(out, "I am a bot"))
	require.True(t, strings.HasSuffix(out, "[Source Code](https://example.com/src) | [Send PM](https://example.com/pm)"))
	require.Contains(t, out, "please contact /u/someone._)")
	require.NotContains(t, out, "Did you know?")
}

func TestRow(t *testing.T) {
	scimitar := card.Record{Name: "Steel Scimitar", Kind: card.KindItem, Attributes: []string{"strength"}, Rarity: "common", Cost: 2, Text: "+2/+2"}
	storm := card.Record{Name: "Storm", Kind: card.KindAction, Attributes: []string{"intelligence"}, Rarity: "epic", Cost: 5, Text: "Deal 3 damage."}

	tests := []struct {
		name string
		view card.View
		want string
	}{
		{
			name: "item bonus",
			view: card.NewView("steel", scimitar, ""),
			want: "| Steel Scimitar | Item | 2 | +2/+2 | none | Strength | Common |",
		},
		{
			name: "action without stats",
			view: card.NewView("storm", storm, "u"),
			want: "| [Storm](u) | Action | 5 | - | none | Intelligence | Epic |",
		},
		{
			name: "unknown escapes pipes",
			view: card.UnknownView("a|b  c"),
			want: "| a\\|b c | This card does not seem to exist. Possible typo? | | | | | |",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, Row(tt.view))
		})
	}
}

func TestFormat_Tip(t *testing.T) {
	f := Formatter{
		Tips:   []string{"first tip", "second tip"},
		Picker: FixedPicker(1),
	}
	out := f.Format([]card.View{card.NewView("Tyr", tyr, "")})
	require.Contains(t, out, "**Did you know?** second tip")
	require.Equal(t, out, f.Format([]card.View{card.NewView("Tyr", tyr, "")}))

	f.Picker = FixedPicker(99)
	require.Contains(t, f.Format([]card.View{card.NewView("Tyr", tyr, "")}), "second tip")
}

func TestFooter_Defaults(t *testing.T) {
	s := Footer{}.String()
	require.Contains(t, s, "please contact the operator._)")
	require.NotContains(t, s, "[Source Code]")
}

func TestRandomPicker(t *testing.T) {
	p := RandomPicker()
	for range 50 {
		n := p.IntN(3)
		require.GreaterOrEqual(t, n, 0)
		require.Less(t, n, 3)
	}
}
