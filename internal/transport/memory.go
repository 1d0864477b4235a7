package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// SentReply is a reply recorded by Memory.
type SentReply struct {
	Event Event
	Text  string
}

// Memory is an in-process Transport. Fetches return scripted batches; once
// the script runs out the last batch repeats. Replies are recorded.
type Memory struct {
	mu          sync.Mutex
	identity    string
	submissions [][]Event
	comments    [][]Event
	replies     []SentReply
	saved       map[string]bool

	// Failure injection
	IdentityErr error
	FetchErr    error
	ReplyErr    map[string]error
	SaveErr     map[string]error

	// ReplyDelay is slept before each reply is recorded
	ReplyDelay time.Duration
}

// NewMemory creates an empty memory transport for identity.
func NewMemory(identity string) *Memory {
	return &Memory{
		identity: identity,
		saved:    make(map[string]bool),
		ReplyErr: make(map[string]error),
		SaveErr:  make(map[string]error),
	}
}

// PushSubmissions appends one scripted submission batch.
func (m *Memory) PushSubmissions(batch ...Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions = append(m.submissions, batch)
}

// PushComments appends one scripted comment batch.
func (m *Memory) PushComments(batch ...Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.comments = append(m.comments, batch)
}

// Identity implements Transport.
func (m *Memory) Identity(_ context.Context) (string, error) {
	if m.IdentityErr != nil {
		return "", m.IdentityErr
	}
	return m.identity, nil
}

// FetchSubmissions implements Transport.
func (m *Memory) FetchSubmissions(_ context.Context, _ string, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	return m.next(&m.submissions, limit), nil
}

// FetchComments implements Transport.
func (m *Memory) FetchComments(_ context.Context, _ string, limit int) ([]Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	return m.next(&m.comments, limit), nil
}

func (m *Memory) next(script *[][]Event, limit int) []Event {
	if len(*script) == 0 {
		return nil
	}
	batch := (*script)[0]
	if len(*script) > 1 {
		*script = (*script)[1:]
	}
	if limit > 0 && len(batch) > limit {
		batch = batch[:limit]
	}
	out := make([]Event, len(batch))
	for i, ev := range batch {
		ev.Saved = ev.Saved || m.saved[ev.ID]
		out[i] = ev
	}
	return out
}

// Reply implements Transport.
func (m *Memory) Reply(_ context.Context, ev Event, text string) error {
	if m.ReplyDelay > 0 {
		time.Sleep(m.ReplyDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.ReplyErr[ev.ID]; err != nil {
		return err
	}
	m.replies = append(m.replies, SentReply{Event: ev, Text: text})
	return nil
}

// MarkSaved implements Transport.
func (m *Memory) MarkSaved(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.SaveErr[ev.ID]; err != nil {
		return err
	}
	m.saved[ev.ID] = true
	return nil
}

// Replies returns every reply sent so far.
func (m *Memory) Replies() []SentReply {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentReply, len(m.replies))
	copy(out, m.replies)
	return out
}

// IsSaved reports whether MarkSaved succeeded for id.
func (m *Memory) IsSaved(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved[id]
}

// ReadEvents parses JSON Lines, one event per line. Blank lines and lines
// starting with # are skipped. A missing kind is inferred from the fields.
func ReadEvents(r io.Reader) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var ev Event
		if err := json.Unmarshal([]byte(text), &ev); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		if ev.ID == "" {
			return nil, fmt.Errorf("line %d: event has no id", line)
		}
		switch ev.Kind {
		case KindSubmission, KindComment:
		case "":
			if ev.SelfText != "" || ev.Title != "" {
				ev.Kind = KindSubmission
			} else {
				ev.Kind = KindComment
			}
		default:
			return nil, fmt.Errorf("line %d: unknown event kind %q", line, ev.Kind)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// LoadReplay builds a Memory transport from a JSONL file. Submissions and
// comments each form a single batch.
func LoadReplay(path, identity string) (*Memory, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	events, err := ReadEvents(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m := NewMemory(identity)
	var subs, comments []Event
	for _, ev := range events {
		if ev.Kind == KindSubmission {
			subs = append(subs, ev)
		} else {
			comments = append(comments, ev)
		}
	}
	m.PushSubmissions(subs...)
	m.PushComments(comments...)
	return m, nil
}
