package transport

import "context"

// Kind distinguishes the two event variants.
type Kind string

const (
	KindSubmission Kind = "submission"
	KindComment    Kind = "comment"
)

// Event is a user-authored post. The variant is fixed at the transport
// boundary; Text returns the field that carries the body for that variant.
type Event struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Author string `json:"author"`
	Saved  bool   `json:"saved,omitempty"`

	// Submission fields
	Title    string `json:"title,omitempty"`
	SelfText string `json:"selftext,omitempty"`

	// Comment fields
	Body string `json:"body,omitempty"`

	// Channel and Thread locate the event for transports that need them.
	Channel string `json:"channel,omitempty"`
	Thread  string `json:"thread,omitempty"`
}

// NewSubmission builds a submission event.
func NewSubmission(id, author, title, selfText string) Event {
	return Event{ID: id, Kind: KindSubmission, Author: author, Title: title, SelfText: selfText}
}

// NewComment builds a comment event.
func NewComment(id, author, body string) Event {
	return Event{ID: id, Kind: KindComment, Author: author, Body: body}
}

// Text returns the event body for its variant.
func (e Event) Text() string {
	if e.Kind == KindSubmission {
		return e.SelfText
	}
	return e.Body
}

// Transport is the platform boundary the poll loop talks to.
type Transport interface {
	// Identity returns the authenticated account name.
	Identity(ctx context.Context) (string, error)

	// FetchSubmissions returns up to limit recent submissions in channel.
	FetchSubmissions(ctx context.Context, channel string, limit int) ([]Event, error)

	// FetchComments returns up to limit recent comments in channel.
	FetchComments(ctx context.Context, channel string, limit int) ([]Event, error)

	// Reply posts text in response to ev.
	Reply(ctx context.Context, ev Event, text string) error

	// MarkSaved flags ev as handled on the platform.
	MarkSaved(ctx context.Context, ev Event) error
}
