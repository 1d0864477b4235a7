package discord

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/cardbot/internal/transport"
)

type sent struct {
	channel string
	content string
	replyTo string
}

type fakeSession struct {
	me       *discordgo.User
	channel  *discordgo.Channel
	messages map[string][]*discordgo.Message // channel -> messages
	threads  []*discordgo.Channel
	sent     []sent
	reacted  []string
	fail     error
}

func (f *fakeSession) User(string, ...discordgo.RequestOption) (*discordgo.User, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return f.me, nil
}

func (f *fakeSession) Channel(string, ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	return f.channel, nil
}

func (f *fakeSession) ChannelMessages(channelID string, limit int, _, _, _ string, _ ...discordgo.RequestOption) ([]*discordgo.Message, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	msgs := f.messages[channelID]
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (f *fakeSession) ChannelMessage(channelID, messageID string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	for _, m := range f.messages[channelID] {
		if m.ID == messageID {
			return m, nil
		}
	}
	return nil, fmt.Errorf("404: unknown message")
}

func (f *fakeSession) GuildThreadsActive(string, ...discordgo.RequestOption) (*discordgo.ThreadsList, error) {
	return &discordgo.ThreadsList{Threads: f.threads}, nil
}

func (f *fakeSession) ChannelMessageSend(channelID string, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.sent = append(f.sent, sent{channel: channelID, content: content})
	return &discordgo.Message{}, nil
}

func (f *fakeSession) ChannelMessageSendReply(channelID string, content string, ref *discordgo.MessageReference, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	if f.fail != nil {
		return nil, f.fail
	}
	f.sent = append(f.sent, sent{channel: channelID, content: content, replyTo: ref.MessageID})
	return &discordgo.Message{}, nil
}

func (f *fakeSession) MessageReactionAdd(channelID, messageID, emojiID string, _ ...discordgo.RequestOption) error {
	if f.fail != nil {
		return f.fail
	}
	f.reacted = append(f.reacted, channelID+"/"+messageID+"/"+emojiID)
	return nil
}

func newFake() *fakeSession {
	return &fakeSession{
		me:      &discordgo.User{Username: "cardbot"},
		channel: &discordgo.Channel{ID: "chan", GuildID: "guild"},
		messages: map[string][]*discordgo.Message{
			"chan": {
				{ID: "m1", ChannelID: "chan", Content: "{{Tyr}}", Author: &discordgo.User{Username: "alice"}},
				{ID: "m2", ChannelID: "chan", Content: "done", Author: &discordgo.User{Username: "bob"},
					Reactions: []*discordgo.MessageReactions{{Me: true, Emoji: &discordgo.Emoji{Name: SavedEmoji}}}},
				{ID: "m3", ChannelID: "chan", Content: "no author"},
				{ID: "t1", ChannelID: "chan", Content: "{{Storm}} deck", Author: &discordgo.User{Username: "carol"}},
			},
			"t2": {
				{ID: "t2", ChannelID: "t2", Content: "forum {{Odahviing}}", Author: &discordgo.User{Username: "dave"}},
			},
		},
		threads: []*discordgo.Channel{
			{ID: "t1", ParentID: "chan", Name: "Storm decks"},
			{ID: "t2", ParentID: "chan", Name: "Forum post"},
			{ID: "t3", ParentID: "elsewhere", Name: "Other channel"},
		},
	}
}

func TestIdentity(t *testing.T) {
	f := newFake()
	tr := &Transport{s: f}

	name, err := tr.Identity(context.Background())
	require.NoError(t, err)
	require.Equal(t, "cardbot", name)

	f.me = &discordgo.User{Username: "changed"}
	name, err = tr.Identity(context.Background())
	require.NoError(t, err)
	require.Equal(t, "cardbot", name, "identity is cached")

	_, err = (&Transport{s: &fakeSession{fail: fmt.Errorf("401")}}).Identity(context.Background())
	require.Error(t, err)
}

func TestFetchComments(t *testing.T) {
	tr := &Transport{s: newFake()}

	events, err := tr.FetchComments(context.Background(), "chan", 10)
	require.NoError(t, err)
	require.Len(t, events, 3)

	require.Equal(t, "m1", events[0].ID)
	require.Equal(t, transport.KindComment, events[0].Kind)
	require.Equal(t, "{{Tyr}}", events[0].Text())
	require.Equal(t, "alice", events[0].Author)
	require.False(t, events[0].Saved)

	require.True(t, events[1].Saved)

	_, err = (&Transport{s: &fakeSession{fail: fmt.Errorf("503")}}).FetchComments(context.Background(), "chan", 10)
	require.Error(t, err)
}

func TestFetchSubmissions(t *testing.T) {
	tr := &Transport{s: newFake()}

	events, err := tr.FetchSubmissions(context.Background(), "chan", 10)
	require.NoError(t, err)
	require.Len(t, events, 2)

	require.Equal(t, transport.KindSubmission, events[0].Kind)
	require.Equal(t, "Storm decks", events[0].Title)
	require.Equal(t, "{{Storm}} deck", events[0].Text())
	require.Equal(t, "chan", events[0].Channel)
	require.Equal(t, "t1", events[0].Thread)

	require.Equal(t, "t2", events[1].Channel)
	require.Equal(t, "dave", events[1].Author)

	limited, err := tr.FetchSubmissions(context.Background(), "chan", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestReplyAndMarkSaved(t *testing.T) {
	f := newFake()
	tr := &Transport{s: f}
	ctx := context.Background()

	comment := transport.NewComment("m1", "alice", "{{Tyr}}")
	comment.Channel = "chan"
	require.NoError(t, tr.Reply(ctx, comment, "cards"))
	require.Equal(t, sent{channel: "chan", content: "cards", replyTo: "m1"}, f.sent[0])

	sub := transport.NewSubmission("t1", "carol", "Storm decks", "{{Storm}}")
	sub.Channel = "chan"
	sub.Thread = "t1"
	require.NoError(t, tr.Reply(ctx, sub, "thread cards"))
	require.Equal(t, sent{channel: "t1", content: "thread cards"}, f.sent[1])

	require.NoError(t, tr.MarkSaved(ctx, comment))
	require.Equal(t, []string{"chan/m1/" + SavedEmoji}, f.reacted)

	f.fail = fmt.Errorf("403")
	require.Error(t, tr.Reply(ctx, comment, "x"))
	require.Error(t, tr.MarkSaved(ctx, comment))
}

func TestReply_SplitsLongText(t *testing.T) {
	f := newFake()
	tr := &Transport{s: f}
	comment := transport.NewComment("m1", "alice", "")
	comment.Channel = "chan"

	line := strings.Repeat("x", 999) + "\n"
	require.NoError(t, tr.Reply(context.Background(), comment, strings.Repeat(line, 5)))
	require.Len(t, f.sent, 3)
	require.Equal(t, "m1", f.sent[0].replyTo)
	require.Empty(t, f.sent[1].replyTo)
	for _, s := range f.sent {
		require.LessOrEqual(t, len(s.content), maxMessageLen)
	}
}

func TestChunk(t *testing.T) {
	require.Equal(t, []string{"short"}, Chunk("short", 10))

	parts := Chunk("aaaa\nbbbb\ncccc", 10)
	require.Equal(t, []string{"aaaa\nbbbb", "cccc"}, parts)

	parts = Chunk(strings.Repeat("z", 25), 10)
	require.Equal(t, []string{"zzzzzzzzzz", "zzzzzzzzzz", "zzzzz"}, parts)
}

func TestClampLimit(t *testing.T) {
	require.Equal(t, 1, clampLimit(0))
	require.Equal(t, 10, clampLimit(10))
	require.Equal(t, 100, clampLimit(500))
}
