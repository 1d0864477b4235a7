package slack

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/slack-go/slack"

	"github.com/hpungsan/cardbot/internal/transport"
)

// SavedReaction is the reaction the bot leaves on messages it has handled.
const SavedReaction = "white_check_mark"

// api is the subset of *slack.Client the transport calls.
type api interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
	AddReactionContext(ctx context.Context, name string, item slack.ItemRef) error
}

// Transport polls a Slack channel. Top-level messages are submissions;
// thread replies are comments. Authors and identity are Slack user ids.
type Transport struct {
	client api

	mu     sync.Mutex
	userID string
}

// New creates a transport authenticated with a bot token.
func New(token string) *Transport {
	return &Transport{client: slack.New(token)}
}

// Identity implements transport.Transport.
func (t *Transport) Identity(ctx context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.userID != "" {
		return t.userID, nil
	}
	resp, err := t.client.AuthTestContext(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to verify slack token: %w", err)
	}
	t.userID = resp.UserID
	return t.userID, nil
}

// FetchSubmissions implements transport.Transport.
func (t *Transport) FetchSubmissions(ctx context.Context, channel string, limit int) ([]transport.Event, error) {
	msgs, err := t.history(ctx, channel, limit)
	if err != nil {
		return nil, err
	}
	me, err := t.Identity(ctx)
	if err != nil {
		return nil, err
	}

	events := make([]transport.Event, 0, len(msgs))
	for _, m := range msgs {
		if !isUserMessage(m) {
			continue
		}
		ev := transport.NewSubmission(m.Timestamp, m.User, "", m.Text)
		ev.Channel = channel
		ev.Thread = m.Timestamp
		ev.Saved = hasReaction(m, SavedReaction, me)
		events = append(events, ev)
	}
	return events, nil
}

// FetchComments implements transport.Transport. Replies are gathered from
// the recent threads in the channel until limit is reached.
func (t *Transport) FetchComments(ctx context.Context, channel string, limit int) ([]transport.Event, error) {
	msgs, err := t.history(ctx, channel, limit)
	if err != nil {
		return nil, err
	}
	me, err := t.Identity(ctx)
	if err != nil {
		return nil, err
	}

	var events []transport.Event
	for _, parent := range msgs {
		if parent.ReplyCount == 0 {
			continue
		}
		replies, _, _, err := t.client.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
			ChannelID: channel,
			Timestamp: parent.Timestamp,
			Limit:     limit,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to fetch replies for %s: %w", parent.Timestamp, err)
		}
		for _, m := range replies {
			if m.Timestamp == parent.Timestamp || !isUserMessage(m) {
				continue
			}
			if limit > 0 && len(events) >= limit {
				return events, nil
			}
			ev := transport.NewComment(m.Timestamp, m.User, m.Text)
			ev.Channel = channel
			ev.Thread = parent.Timestamp
			ev.Saved = hasReaction(m, SavedReaction, me)
			events = append(events, ev)
		}
	}
	return events, nil
}

func (t *Transport) history(ctx context.Context, channel string, limit int) ([]slack.Message, error) {
	resp, err := t.client.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: channel,
		Limit:     limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch history for %s: %w", channel, err)
	}
	return resp.Messages, nil
}

// Reply implements transport.Transport. Both variants are answered in the
// event's thread.
func (t *Transport) Reply(ctx context.Context, ev transport.Event, text string) error {
	thread := ev.Thread
	if thread == "" {
		thread = ev.ID
	}
	_, _, err := t.client.PostMessageContext(ctx, ev.Channel,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(thread),
	)
	if err != nil {
		return fmt.Errorf("failed to post reply to %s: %w", ev.ID, err)
	}
	return nil
}

// MarkSaved implements transport.Transport.
func (t *Transport) MarkSaved(ctx context.Context, ev transport.Event) error {
	if err := t.client.AddReactionContext(ctx, SavedReaction, slack.NewRefToMessage(ev.Channel, ev.ID)); err != nil {
		return fmt.Errorf("failed to add reaction to %s: %w", ev.ID, err)
	}
	return nil
}

// isUserMessage filters out joins, edits and bot posts.
func isUserMessage(m slack.Message) bool {
	return m.SubType == "" && m.BotID == "" && m.User != ""
}

func hasReaction(m slack.Message, name, userID string) bool {
	for _, r := range m.Reactions {
		if r.Name == name && slices.Contains(r.Users, userID) {
			return true
		}
	}
	return false
}
