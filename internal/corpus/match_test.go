package corpus

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/cardbot/internal/card"
)

func TestResolve(t *testing.T) {
	c := loadSample(t, MatchPolicy{SelfName: "TESL_Bot"})

	tests := []struct {
		name string
		key  string
		want string // empty means None
	}{
		{"exact", "tyr", "Tyr"},
		{"unique prefix", "ty", "Tyr"},
		{"normalized full name", card.NormalizeKey("Bl-ood, _-\"' Drag;on"), "Blood Dragon"},
		{"unique partial", "blood", "Blood Dragon"},
		{"exact name beats ambiguity", "storm", "Storm"},
		{"ambiguous prefix", "stor", ""},
		{"unique after narrowing", "stormc", "Stormcloak Sergeant"},
		{"query longer than name", "tyrant", ""},
		{"no candidates", "zzz", ""},
		{"empty key", "", ""},
		{"item", "steelscimitar", "Steel Scimitar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Resolve(tt.key)
			if tt.want == "" {
				require.True(t, got.IsAbsent(), "Resolve(%q) = %+v, want None", tt.key, got.OrEmpty())
				return
			}
			require.True(t, got.IsPresent(), "Resolve(%q) = None, want %s", tt.key, tt.want)
			require.Equal(t, tt.want, got.MustGet().Name)
		})
	}
}

func TestResolve_AmbiguousWithoutExactName(t *testing.T) {
	c, err := New([]card.Record{
		{Name: "Stormcloak Sergeant", Kind: card.KindCreature},
		{Name: "Storm Atronach", Kind: card.KindCreature},
	}, MatchPolicy{})
	require.NoError(t, err)

	require.True(t, c.Resolve("storm").IsAbsent())
	require.True(t, c.Resolve("stormatronach").IsPresent())
}

func TestResolve_Lenient(t *testing.T) {
	records := []card.Record{
		{Name: "Tyr", Kind: card.KindCreature},
		{Name: "Odahviing", Kind: card.KindCreature},
	}

	strict, err := New(records, MatchPolicy{})
	require.NoError(t, err)
	require.True(t, strict.Resolve("tyrx").IsAbsent())

	lenient, err := New(records, MatchPolicy{Lenient: true})
	require.NoError(t, err)
	got := lenient.Resolve("tyrx")
	require.True(t, got.IsPresent())
	require.Equal(t, "Tyr", got.MustGet().Name)
}

func TestResolve_Ceiling(t *testing.T) {
	records := []card.Record{
		{Name: "Abcdefgh One"},
		{Name: "Abcdefgh Two"},
	}
	c, err := New(records, MatchPolicy{Ceiling: 3})
	require.NoError(t, err)

	// Candidates never drop to one within the ceiling.
	require.True(t, c.Resolve("abcdefghtw").IsAbsent())

	wide, err := New(records, MatchPolicy{})
	require.NoError(t, err)
	require.Equal(t, "Abcdefgh Two", wide.Resolve("abcdefghtw").MustGet().Name)
}

func TestResolve_Self(t *testing.T) {
	c := loadSample(t, MatchPolicy{SelfName: "TESL_Bot"})

	got := c.Resolve("teslbot")
	require.True(t, got.IsPresent())
	require.Equal(t, "TESL_Bot", got.MustGet().Name)
	require.True(t, c.IsSelf("teslbot"))

	noSelf := loadSample(t, MatchPolicy{})
	require.False(t, noSelf.IsSelf(""))
	require.True(t, noSelf.Resolve("teslbot").IsAbsent())
}
