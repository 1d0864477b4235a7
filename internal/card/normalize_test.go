package card

import (
	"testing"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "simple lowercase",
			input: "Blood Dragon",
			want:  "blooddragon",
		},
		{
			name:  "mixed punctuation",
			input: "Bl-ood, _-\"' Drag;on",
			want:  "blooddragon",
		},
		{
			name:  "stray delimiters",
			input: "{{{HOHO}}}}}",
			want:  "hoho",
		},
		{
			name:  "tabs and newlines",
			input: "Blood\t\nDragon",
			want:  "blooddragon",
		},
		{
			name:  "curly quotes",
			input: "“Tyr’s” Blade",
			want:  "tyrsblade",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
		{
			name:  "only punctuation",
			input: " -_,; '\" ",
			want:  "",
		},
		{
			name:  "keeps other punctuation",
			input: "Ald. Bridge!",
			want:  "ald.bridge!",
		},
		{
			name:  "unicode letters",
			input: "ÉLAN Vital",
			want:  "élanvital",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeKey(tt.input)
			if got != tt.want {
				t.Errorf("NormalizeKey(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeKey_Idempotent(t *testing.T) {
	inputs := []string{
		"Blood Dragon",
		"Bl-ood, _-\"' Drag;on",
		"{{Tyr}}",
		"  ",
		"Last Gasp: rip",
	}
	for _, in := range inputs {
		once := NormalizeKey(in)
		twice := NormalizeKey(once)
		if once != twice {
			t.Errorf("NormalizeKey not idempotent for %q: %q then %q", in, once, twice)
		}
	}
}

func TestNormalizeKey_CaseInsensitive(t *testing.T) {
	if NormalizeKey("BLOOD DRAGON") != NormalizeKey("blood dragon") {
		t.Error("NormalizeKey should fold case")
	}
}
