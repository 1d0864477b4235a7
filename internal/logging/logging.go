package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Setup installs the default logger. Output goes to stderr so stdout stays
// free for JSON results and the MCP stdio transport.
func Setup(level string, json bool) {
	slog.SetDefault(New(os.Stderr, level, json))
}

// New builds a logger writing to w.
func New(w io.Writer, level string, json bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if json {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(NewContextHandler(h))
}

// ParseLevel maps debug/info/warn/error to a slog level. Unknown values
// fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type fieldsKey struct{}

// Fields are attached to every record logged with a context carrying them.
type Fields struct {
	EventID string
	Kind    string
	Channel string
	RunID   string
}

// WithFields returns ctx carrying f merged over any existing fields.
func WithFields(ctx context.Context, f Fields) context.Context {
	cur := FieldsFrom(ctx)
	if f.EventID != "" {
		cur.EventID = f.EventID
	}
	if f.Kind != "" {
		cur.Kind = f.Kind
	}
	if f.Channel != "" {
		cur.Channel = f.Channel
	}
	if f.RunID != "" {
		cur.RunID = f.RunID
	}
	return context.WithValue(ctx, fieldsKey{}, cur)
}

// FieldsFrom returns the fields stored in ctx.
func FieldsFrom(ctx context.Context) Fields {
	if ctx == nil {
		return Fields{}
	}
	f, _ := ctx.Value(fieldsKey{}).(Fields)
	return f
}

// ContextHandler adds Fields from the record context.
type ContextHandler struct {
	slog.Handler
}

// NewContextHandler wraps h.
func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

// Handle implements slog.Handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	f := FieldsFrom(ctx)
	if f.RunID != "" {
		r.AddAttrs(slog.String("run_id", f.RunID))
	}
	if f.Channel != "" {
		r.AddAttrs(slog.String("channel", f.Channel))
	}
	if f.EventID != "" {
		r.AddAttrs(slog.String("event_id", f.EventID))
	}
	if f.Kind != "" {
		r.AddAttrs(slog.String("kind", f.Kind))
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}
