package discord

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"

	"github.com/hpungsan/cardbot/internal/transport"
)

// SavedEmoji is the reaction the bot leaves on messages it has handled.
const SavedEmoji = "✅"

// maxMessageLen is Discord's message content limit.
const maxMessageLen = 2000

// session is the subset of *discordgo.Session the transport calls.
type session interface {
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessages(channelID string, limit int, beforeID, afterID, aroundID string, options ...discordgo.RequestOption) ([]*discordgo.Message, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	GuildThreadsActive(guildID string, options ...discordgo.RequestOption) (*discordgo.ThreadsList, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error)
	MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
}

// Transport polls a Discord text channel over the REST API. Channel messages
// are comments; active threads under the channel are submissions.
type Transport struct {
	s session

	mu       sync.Mutex
	identity string
}

// New creates a transport authenticated with a bot token.
func New(token string) (*Transport, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	return &Transport{s: s}, nil
}

// Identity implements transport.Transport.
func (t *Transport) Identity(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.identity != "" {
		return t.identity, nil
	}
	u, err := t.s.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("failed to fetch bot user: %w", err)
	}
	t.identity = u.Username
	return t.identity, nil
}

// FetchComments implements transport.Transport.
func (t *Transport) FetchComments(ctx context.Context, channel string, limit int) ([]transport.Event, error) {
	msgs, err := t.s.ChannelMessages(channel, clampLimit(limit), "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages for %s: %w", channel, err)
	}

	events := make([]transport.Event, 0, len(msgs))
	for _, m := range msgs {
		if m == nil || m.Author == nil {
			continue
		}
		ev := transport.NewComment(m.ID, m.Author.Username, m.Content)
		ev.Channel = m.ChannelID
		ev.Saved = hasOwnReaction(m, SavedEmoji)
		events = append(events, ev)
	}
	return events, nil
}

// FetchSubmissions implements transport.Transport.
func (t *Transport) FetchSubmissions(ctx context.Context, channel string, limit int) ([]transport.Event, error) {
	ch, err := t.s.Channel(channel, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch channel %s: %w", channel, err)
	}
	list, err := t.s.GuildThreadsActive(ch.GuildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch active threads for %s: %w", ch.GuildID, err)
	}

	var events []transport.Event
	for _, thread := range list.Threads {
		if thread == nil || thread.ParentID != channel {
			continue
		}
		if limit > 0 && len(events) >= limit {
			break
		}
		starter, where := t.starterMessage(ctx, thread)
		if starter == nil || starter.Author == nil {
			continue
		}
		ev := transport.NewSubmission(thread.ID, starter.Author.Username, thread.Name, starter.Content)
		ev.Channel = where
		ev.Thread = thread.ID
		ev.Saved = hasOwnReaction(starter, SavedEmoji)
		events = append(events, ev)
	}
	return events, nil
}

// starterMessage finds the message a thread was started from. Threads
// started from a channel message share its id; forum posts keep the
// starter inside the thread.
func (t *Transport) starterMessage(ctx context.Context, thread *discordgo.Channel) (*discordgo.Message, string) {
	for _, where := range []string{thread.ParentID, thread.ID} {
		m, err := t.s.ChannelMessage(where, thread.ID, discordgo.WithContext(ctx))
		if err == nil && m != nil {
			return m, where
		}
	}
	slog.Debug("thread starter message not found", "thread", thread.ID)
	return nil, ""
}

// Reply implements transport.Transport. Submissions get a message in their
// thread; comments get an inline reply. Long replies are split.
func (t *Transport) Reply(ctx context.Context, ev transport.Event, text string) error {
	parts := Chunk(text, maxMessageLen)
	for i, part := range parts {
		var err error
		switch {
		case ev.Kind == transport.KindSubmission:
			_, err = t.s.ChannelMessageSend(ev.Thread, part, discordgo.WithContext(ctx))
		case i == 0:
			ref := &discordgo.MessageReference{MessageID: ev.ID, ChannelID: ev.Channel}
			_, err = t.s.ChannelMessageSendReply(ev.Channel, part, ref, discordgo.WithContext(ctx))
		default:
			_, err = t.s.ChannelMessageSend(ev.Channel, part, discordgo.WithContext(ctx))
		}
		if err != nil {
			return fmt.Errorf("failed to send reply to %s: %w", ev.ID, err)
		}
	}
	return nil
}

// MarkSaved implements transport.Transport.
func (t *Transport) MarkSaved(ctx context.Context, ev transport.Event) error {
	if err := t.s.MessageReactionAdd(ev.Channel, ev.ID, SavedEmoji, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to add reaction to %s: %w", ev.ID, err)
	}
	return nil
}

func hasOwnReaction(m *discordgo.Message, emoji string) bool {
	for _, r := range m.Reactions {
		if r != nil && r.Me && r.Emoji != nil && r.Emoji.Name == emoji {
			return true
		}
	}
	return false
}

// ChannelMessages accepts 1..100.
func clampLimit(limit int) int {
	return min(max(limit, 1), 100)
}

// Chunk splits text into pieces of at most size bytes, preferring line
// breaks. A single line longer than size is split hard.
func Chunk(text string, size int) []string {
	if len(text) <= size {
		return []string{text}
	}

	var parts []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, strings.TrimRight(cur.String(), "\n"))
			cur.Reset()
		}
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > size {
			flush()
			parts = append(parts, line[:size])
			line = line[size:]
		}
		if cur.Len()+len(line) > size {
			flush()
		}
		cur.WriteString(line)
	}
	flush()
	return parts
}
