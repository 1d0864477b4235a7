package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/cardbot/internal/card"
	"github.com/hpungsan/cardbot/internal/db"
	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/ops"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "cards", "preview", "replies", "lookups"
}

// CardsPageData is the template data for the card list page.
type CardsPageData struct {
	PageData
	Items      []card.Record
	Pagination ops.Pagination
	Kind       string
	NamePrefix string
}

// CardPageData is the template data for the card detail page.
type CardPageData struct {
	PageData
	Card *card.View
}

// PreviewPageData is the template data for the reply preview page.
type PreviewPageData struct {
	PageData
	Text     string
	Preview  *ops.PreviewOutput
	Rendered template.HTML
}

// RepliesPageData is the template data for the reply log page.
type RepliesPageData struct {
	PageData
	Items      []db.Reply
	Pagination ops.Pagination
	Channel    string
	RunID      string
}

// ReplyPageData is the template data for a single logged reply.
type ReplyPageData struct {
	PageData
	Reply    *db.Reply
	Rendered template.HTML
}

// LookupsPageData is the template data for the lookup statistics page.
type LookupsPageData struct {
	PageData
	Items      []db.LookupStat
	Pagination ops.Pagination
	Outcome    string
	Name       string
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) *Renderer {
	funcMap := template.FuncMap{
		"add":        func(a, b int) int { return a + b },
		"sub":        func(a, b int) int { return a - b },
		"formatTime": formatTime,
		"join":       strings.Join,
		"cardPath":   cardPath,
	}

	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"cards":   "cards.html",
		"card":    "card.html",
		"preview": "preview.html",
		"replies": "replies.html",
		"reply":   "reply.html",
		"lookups": "lookups.html",
		"error":   "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
	}
}

// page builds the shared page fields.
func (r *Renderer) page(title, nav string) PageData {
	return PageData{Title: title, Version: r.version, Nav: nav}
}

// respond renders data as JSON when the client asks for it, otherwise as
// the named page.
func (r *Renderer) respond(w http.ResponseWriter, req *http.Request, name string, page, jsonData any) {
	if wantsJSON(req) {
		renderJSON(w, http.StatusOK, jsonData)
		return
	}
	r.renderPageStatus(w, http.StatusOK, name, page)
}

// renderPageStatus renders a named page template with the given HTTP status.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		slog.Error("template not found", "template", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		slog.Error("template execution failed", "template", name, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var cbErr *errors.CardbotError
	if !stderrors.As(err, &cbErr) {
		cbErr = errors.NewInternal(err)
	}

	status := cbErr.Status
	message := cbErr.Message
	if cbErr.Code == errors.ErrInternal {
		slog.Error("request failed", "path", req.URL.Path, "error", err)
		message = "an internal error occurred"
	}

	if wantsJSON(req) {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(cbErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	r.renderPageStatus(w, status, "error", ErrorPageData{
		PageData:   r.page(fmt.Sprintf("Error %d", status), ""),
		StatusCode: status,
		Message:    message,
	})
}

func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json")
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// markdown renders reply text. Replies are pipe tables, so the table
// extension is required.
var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// renderMarkdown converts markdown text to HTML. goldmark omits raw HTML
// unless the unsafe renderer option is set.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// cardPath links a card by its normalized key.
func cardPath(name string) string {
	return "/cards/" + url.PathEscape(card.NormalizeKey(name))
}
