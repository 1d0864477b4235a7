package web

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/ops"
	"github.com/hpungsan/cardbot/internal/reply"
	"github.com/hpungsan/cardbot/internal/resolve"
)

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db        *sql.DB
	resolver  *resolve.Resolver
	formatter reply.Formatter
	renderer  *Renderer
}

// HandleCards handles GET /cards, the paged corpus listing.
func (h *Handlers) HandleCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := ops.ListCards(h.resolver.Corpus(), ops.ListCardsInput{
		Kind:       q.Get("type"),
		NamePrefix: q.Get("name_prefix"),
		Limit:      parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:     parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.respond(w, r, "cards", CardsPageData{
		PageData:   h.renderer.page("Cards", "cards"),
		Items:      result.Items,
		Pagination: result.Pagination,
		Kind:       q.Get("type"),
		NamePrefix: q.Get("name_prefix"),
	}, result)
}

// HandleCard handles GET /cards/{name}, a single resolved card.
func (h *Handlers) HandleCard(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if name == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("card name is required"))
		return
	}

	v, err := ops.GetCard(r.Context(), h.resolver, ops.GetCardInput{Name: name})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.respond(w, r, "card", CardPageData{
		PageData: h.renderer.page(v.Name, "cards"),
		Card:     v,
	}, v)
}

// HandlePreview handles GET /preview. Without text it shows the empty form.
func (h *Handlers) HandlePreview(w http.ResponseWriter, r *http.Request) {
	text := r.URL.Query().Get("text")
	data := PreviewPageData{
		PageData: h.renderer.page("Preview", "preview"),
		Text:     text,
	}
	if text == "" {
		h.renderer.respond(w, r, "preview", data, map[string]any{})
		return
	}

	result, err := ops.Preview(r.Context(), h.resolver, h.formatter, ops.PreviewInput{Text: text})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	data.Preview = result
	data.Rendered = renderMarkdown(result.Reply)

	h.renderer.respond(w, r, "preview", data, result)
}

// HandleReplies handles GET /replies, the reply log.
func (h *Handlers) HandleReplies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := ops.History(h.db, ops.HistoryInput{
		Channel: q.Get("channel"),
		EventID: q.Get("event_id"),
		RunID:   q.Get("run_id"),
		Limit:   parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:  parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.respond(w, r, "replies", RepliesPageData{
		PageData:   h.renderer.page("Replies", "replies"),
		Items:      result.Items,
		Pagination: result.Pagination,
		Channel:    q.Get("channel"),
		RunID:      q.Get("run_id"),
	}, result)
}

// HandleReply handles GET /replies/{id}, one logged reply rendered as it
// appeared on the platform.
func (h *Handlers) HandleReply(w http.ResponseWriter, r *http.Request) {
	rep, err := ops.GetReply(h.db, ops.GetReplyInput{ID: r.PathValue("id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.respond(w, r, "reply", ReplyPageData{
		PageData: h.renderer.page("Reply to "+rep.EventID, "replies"),
		Reply:    rep,
		Rendered: renderMarkdown(rep.ReplyText),
	}, rep)
}

// HandleLookups handles GET /lookups, the lookup counters.
func (h *Handlers) HandleLookups(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	result, err := ops.LookupStats(h.db, ops.LookupStatsInput{
		Outcome: q.Get("outcome"),
		Name:    q.Get("name"),
		Limit:   parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:  parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.respond(w, r, "lookups", LookupsPageData{
		PageData:   h.renderer.page("Lookups", "lookups"),
		Items:      result.Items,
		Pagination: result.Pagination,
		Outcome:    q.Get("outcome"),
		Name:       q.Get("name"),
	}, result)
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
