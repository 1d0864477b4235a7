package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/ops"
	"github.com/hpungsan/cardbot/internal/reply"
	"github.com/hpungsan/cardbot/internal/resolve"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db        *sql.DB
	resolver  *resolve.Resolver
	formatter reply.Formatter
}

// NewHandlers creates a new Handlers instance.
func NewHandlers(db *sql.DB, r *resolve.Resolver, f reply.Formatter) *Handlers {
	return &Handlers{db: db, resolver: r, formatter: f}
}

// LookupRequest represents the arguments for card_lookup.
type LookupRequest struct {
	Names []string `json:"names"`
}

// GetCardRequest represents the arguments for card_get.
type GetCardRequest struct {
	Name string `json:"name"`
}

// PreviewRequest represents the arguments for card_preview.
type PreviewRequest struct {
	Text string `json:"text"`
}

// ListCardsRequest represents the arguments for card_list.
type ListCardsRequest struct {
	Type       string `json:"type,omitempty"`
	NamePrefix string `json:"name_prefix,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Offset     int    `json:"offset,omitempty"`
}

// HistoryRequest represents the arguments for reply_history.
type HistoryRequest struct {
	Channel string `json:"channel,omitempty"`
	EventID string `json:"event_id,omitempty"`
	RunID   string `json:"run_id,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// GetReplyRequest represents the arguments for reply_get.
type GetReplyRequest struct {
	ID string `json:"id"`
}

// LookupStatsRequest represents the arguments for lookup_stats.
type LookupStatsRequest struct {
	Outcome string `json:"outcome,omitempty"`
	Name    string `json:"name,omitempty"`
	Limit   int    `json:"limit,omitempty"`
	Offset  int    `json:"offset,omitempty"`
}

// HandleLookup handles the card_lookup tool call.
func (h *Handlers) HandleLookup(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LookupRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Lookup(ctx, h.resolver, ops.LookupInput{Names: input.Names})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleGetCard handles the card_get tool call.
func (h *Handlers) HandleGetCard(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetCardRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GetCard(ctx, h.resolver, ops.GetCardInput{Name: input.Name})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandlePreview handles the card_preview tool call.
func (h *Handlers) HandlePreview(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[PreviewRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Preview(ctx, h.resolver, h.formatter, ops.PreviewInput{Text: input.Text})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleListCards handles the card_list tool call.
func (h *Handlers) HandleListCards(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ListCardsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.ListCards(h.resolver.Corpus(), ops.ListCardsInput{
		Kind:       input.Type,
		NamePrefix: input.NamePrefix,
		Limit:      input.Limit,
		Offset:     input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleHistory handles the reply_history tool call.
func (h *Handlers) HandleHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[HistoryRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.History(h.db, ops.HistoryInput{
		Channel: input.Channel,
		EventID: input.EventID,
		RunID:   input.RunID,
		Limit:   input.Limit,
		Offset:  input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleGetReply handles the reply_get tool call.
func (h *Handlers) HandleGetReply(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[GetReplyRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GetReply(h.db, ops.GetReplyInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// HandleLookupStats handles the lookup_stats tool call.
func (h *Handlers) HandleLookupStats(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LookupStatsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.LookupStats(h.db, ops.LookupStatsInput{
		Outcome: input.Outcome,
		Name:    input.Name,
		Limit:   input.Limit,
		Offset:  input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}
	return successResult(result)
}

// errorResult creates an MCP error result with IsError set. INTERNAL errors
// carry a generic message and no details so SQL errors and paths stay private.
func errorResult(err error) *mcp.CallToolResult {
	errorObj := map[string]any{
		"code":    string(errors.ErrInternal),
		"message": "an internal error occurred",
		"status":  500,
	}

	var cbErr *errors.CardbotError
	if stderrors.As(err, &cbErr) && cbErr.Code != errors.ErrInternal {
		errorObj["code"] = string(cbErr.Code)
		errorObj["status"] = cbErr.Status
		errorObj["message"] = cbErr.Message
		if err != error(cbErr) {
			// keep wrapper context such as "names[3]: ..."
			errorObj["message"] = err.Error()
		}
		if cbErr.Details != nil {
			errorObj["details"] = cbErr.Details
		}
	}

	content, _ := json.Marshal(map[string]any{"error": errorObj})
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
