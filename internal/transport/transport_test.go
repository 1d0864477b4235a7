package transport

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEvent_Text(t *testing.T) {
	s := NewSubmission("s1", "alice", "Deck help", "Is {{Tyr}} good?")
	require.Equal(t, KindSubmission, s.Kind)
	require.Equal(t, "Is {{Tyr}} good?", s.Text())

	c := NewComment("c1", "bob", "{{Storm}}")
	require.Equal(t, KindComment, c.Kind)
	require.Equal(t, "{{Storm}}", c.Text())
}

func TestMemory_Script(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("cardbot")

	m.PushComments(NewComment("c1", "a", "x"), NewComment("c2", "a", "y"))
	m.PushComments(NewComment("c3", "a", "z"))

	first, err := m.FetchComments(ctx, "general", 1)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Equal(t, "c1", first[0].ID)

	second, err := m.FetchComments(ctx, "general", 10)
	require.NoError(t, err)
	require.Equal(t, "c3", second[0].ID)

	// Last batch repeats.
	again, err := m.FetchComments(ctx, "general", 10)
	require.NoError(t, err)
	require.Equal(t, "c3", again[0].ID)

	subs, err := m.FetchSubmissions(ctx, "general", 10)
	require.NoError(t, err)
	require.Empty(t, subs)
}

func TestMemory_ReplyAndSave(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("cardbot")
	ev := NewComment("c1", "a", "{{Tyr}}")
	m.PushComments(ev)

	require.NoError(t, m.Reply(ctx, ev, "hello"))
	require.NoError(t, m.MarkSaved(ctx, ev))
	require.True(t, m.IsSaved("c1"))

	replies := m.Replies()
	require.Len(t, replies, 1)
	require.Equal(t, "hello", replies[0].Text)

	fetched, err := m.FetchComments(ctx, "general", 10)
	require.NoError(t, err)
	require.True(t, fetched[0].Saved)
}

func TestMemory_Failures(t *testing.T) {
	ctx := context.Background()
	m := NewMemory("cardbot")
	m.FetchErr = fmt.Errorf("503")
	m.ReplyErr["c1"] = fmt.Errorf("403")
	m.SaveErr["c2"] = fmt.Errorf("429")
	m.IdentityErr = fmt.Errorf("bad token")

	_, err := m.Identity(ctx)
	require.Error(t, err)
	_, err = m.FetchComments(ctx, "general", 10)
	require.Error(t, err)
	require.Error(t, m.Reply(ctx, NewComment("c1", "a", ""), "x"))
	require.Error(t, m.MarkSaved(ctx, NewComment("c2", "a", "")))
	require.Empty(t, m.Replies())
}

func TestReadEvents(t *testing.T) {
	input := `
# replay file
{"id": "s1", "kind": "submission", "author": "alice", "title": "Help", "selftext": "{{Tyr}}"}
{"id": "c1", "author": "bob", "body": "{{Storm}}"}
{"id": "s2", "author": "carol", "selftext": "{{Odahviing}}"}
`
	events, err := ReadEvents(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, events, 3)
	require.Equal(t, KindSubmission, events[0].Kind)
	require.Equal(t, KindComment, events[1].Kind)
	require.Equal(t, KindSubmission, events[2].Kind)
}

func TestReadEvents_Errors(t *testing.T) {
	tests := map[string]string{
		"bad json":     `{"id":`,
		"missing id":   `{"body": "x"}`,
		"unknown kind": `{"id": "x", "kind": "dm"}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadEvents(strings.NewReader(input))
			require.Error(t, err)
			require.Contains(t, err.Error(), "line 1")
		})
	}
}

func TestLoadReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	data := `{"id": "s1", "kind": "submission", "author": "a", "selftext": "{{Tyr}}"}
{"id": "c1", "kind": "comment", "author": "b", "body": "{{Tyr}}"}
{"id": "c2", "kind": "comment", "author": "b", "body": "no mentions"}
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	m, err := LoadReplay(path, "cardbot")
	require.NoError(t, err)

	subs, err := m.FetchSubmissions(context.Background(), "x", 10)
	require.NoError(t, err)
	require.Len(t, subs, 1)

	comments, err := m.FetchComments(context.Background(), "x", 10)
	require.NoError(t, err)
	require.Len(t, comments, 2)

	_, err = LoadReplay(filepath.Join(t.TempDir(), "missing.jsonl"), "cardbot")
	require.Error(t, err)
}
