package card

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "single mention",
			input: "{{Test}}",
			want:  []string{"Test"},
		},
		{
			name:  "two mentions are not merged",
			input: "{{Test}} {{Blood Dragon}}",
			want:  []string{"Test", "Blood Dragon"},
		},
		{
			name:  "verbatim repeats collapse",
			input: strings.Repeat("{{Test}} {{Blood Dragon}} ", 4),
			want:  []string{"Test", "Blood Dragon"},
		},
		{
			name:  "normalized repeats collapse to first spelling",
			input: "{{Blood Dragon}} {{blood-dragon}} {{BLOOD DRAGON}}",
			want:  []string{"Blood Dragon"},
		},
		{
			name:  "case and punctuation preserved",
			input: "what about {{Tyr's Blade, Edge}}?",
			want:  []string{"Tyr's Blade, Edge"},
		},
		{
			name:  "mention spans a newline",
			input: "try {{Blood\nDragon}} now",
			want:  []string{"Blood\nDragon"},
		},
		{
			name:  "unterminated delimiter",
			input: "{{Tyr and nothing else",
			want:  nil,
		},
		{
			name:  "terminated after unterminated",
			input: "{{broken {{Tyr}}",
			want:  []string{"broken {{Tyr"},
		},
		{
			name:  "no delimiters",
			input: "just talking about cards",
			want:  nil,
		},
		{
			name:  "empty string",
			input: "",
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractMentions(tt.input)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractMentions(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExtractMentions_ManyRepeats(t *testing.T) {
	text := strings.Repeat("{{Tyr}}", 500) + "{{Nonexistent Card Name}}"
	got := ExtractMentions(text)
	want := []string{"Tyr", "Nonexistent Card Name"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractMentions() = %q, want %q", got, want)
	}
}

func TestExtractMentions_MultilineKey(t *testing.T) {
	got := ExtractMentions("{{Blood\nDragon}} and {{blood dragon}}")
	if len(got) != 1 {
		t.Fatalf("ExtractMentions() = %q, want one mention", got)
	}
	if key := NormalizeKey(got[0]); key != "blooddragon" {
		t.Errorf("NormalizeKey(%q) = %q, want blooddragon", got[0], key)
	}
}
