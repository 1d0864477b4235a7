package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/cardbot/internal/card"
	"github.com/hpungsan/cardbot/internal/config"
	"github.com/hpungsan/cardbot/internal/corpus"
	"github.com/hpungsan/cardbot/internal/db"
	"github.com/hpungsan/cardbot/internal/errors"
	"github.com/hpungsan/cardbot/internal/reply"
	"github.com/hpungsan/cardbot/internal/resolve"
)

// testSetup creates a temporary database, a small corpus and handlers.
func testSetup(t *testing.T) (*Handlers, *sql.DB, *config.Config) {
	t.Helper()

	database, err := db.Init(t.TempDir())
	if err != nil {
		t.Fatalf("failed to init db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	c, err := corpus.New([]card.Record{
		{Name: "Tyr", Kind: card.KindCreature, Cost: 8, Text: "Guard", Power: 7, Health: 7},
		{Name: "Storm Atronach", Kind: card.KindCreature, Cost: 9},
		{Name: "Stormcloak Sergeant", Kind: card.KindCreature, Cost: 3},
		{Name: "Steel Scimitar", Kind: card.KindItem, Cost: 2, Text: "+2/+2"},
	}, corpus.MatchPolicy{SelfName: "cardbot"})
	if err != nil {
		t.Fatalf("failed to build corpus: %v", err)
	}
	r := resolve.New(c, nil, resolve.Options{Template: "https://img.test/{}.png"})
	f := reply.Formatter{Footer: reply.Footer{Operator: "/u/op"}, Picker: reply.FixedPicker(0)}

	return NewHandlers(database, r, f), database, config.DefaultConfig()
}

// makeRequest creates a CallToolRequest with the given arguments.
func makeRequest(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

type handlerFunc func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)

func runCases(t *testing.T, handler handlerFunc, tests []handlerCase) {
	t.Helper()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := handler(context.Background(), makeRequest(tt.args))
			if err != nil {
				t.Fatalf("handler returned error: %v", err)
			}
			if tt.errorCode != "" {
				if !result.IsError {
					t.Fatalf("expected error result, got success")
				}
				assertErrorCode(t, result, tt.errorCode)
				return
			}
			if result.IsError {
				t.Fatalf("expected success, got error: %v", extractErrorMessage(result))
			}
			if tt.check != nil {
				tt.check(t, parseOutput(t, result))
			}
		})
	}
}

type handlerCase struct {
	name      string
	args      map[string]any
	errorCode string
	check     func(t *testing.T, out map[string]any)
}

func TestHandleLookup(t *testing.T) {
	h, _, _ := testSetup(t)

	runCases(t, h.HandleLookup, []handlerCase{
		{
			name: "mixed names",
			args: map[string]any{"names": []any{"tyr", "storm", "steel"}},
			check: func(t *testing.T, out map[string]any) {
				if out["found"].(float64) != 2 || out["not_found"].(float64) != 1 {
					t.Errorf("found/not_found = %v/%v, want 2/1", out["found"], out["not_found"])
				}
				items := out["items"].([]any)
				if items[0].(map[string]any)["name"] != "Tyr" {
					t.Errorf("items[0] = %v", items[0])
				}
			},
		},
		{
			name: "self mention",
			args: map[string]any{"names": []any{"CardBot"}},
			check: func(t *testing.T, out map[string]any) {
				if out["found"].(float64) != 1 {
					t.Errorf("found = %v, want 1", out["found"])
				}
			},
		},
		{
			name:      "missing names",
			args:      map[string]any{},
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "unknown argument",
			args:      map[string]any{"names": []any{"tyr"}, "nmaes": true},
			errorCode: "INVALID_REQUEST",
		},
		{
			name:      "wrong type",
			args:      map[string]any{"names": "tyr"},
			errorCode: "INVALID_REQUEST",
		},
	})
}

func TestHandleGetCard(t *testing.T) {
	h, _, _ := testSetup(t)

	runCases(t, h.HandleGetCard, []handlerCase{
		{
			name: "item with bonus stats",
			args: map[string]any{"name": "steel scim"},
			check: func(t *testing.T, out map[string]any) {
				stats := out["stats"].(map[string]any)
				if stats["bonus"] != true || stats["power"].(float64) != 2 {
					t.Errorf("stats = %v", stats)
				}
				if out["image_url"] != "https://img.test/steelscimitar.png" {
					t.Errorf("image_url = %v", out["image_url"])
				}
			},
		},
		{
			name:      "ambiguous",
			args:      map[string]any{"name": "storm"},
			errorCode: "NOT_FOUND",
		},
		{
			name:      "empty",
			args:      map[string]any{"name": "  "},
			errorCode: "INVALID_REQUEST",
		},
	})
}

func TestHandlePreview(t *testing.T) {
	h, _, _ := testSetup(t)

	runCases(t, h.HandlePreview, []handlerCase{
		{
			name: "two rows and a footer",
			args: map[string]any{"text": "{{Tyr}} {{Tyr}} {{Nonexistent Card Name}}"},
			check: func(t *testing.T, out map[string]any) {
				text := out["reply"].(string)
				// header plus two rows
				if got := strings.Count(text, "\n| "); got != 3 {
					t.Errorf("table line count = %d, want 3\n%s", got, text)
				}
				if !strings.Contains(text, "/u/op") {
					t.Errorf("footer missing operator:\n%s", text)
				}
			},
		},
		{
			name: "no mentions",
			args: map[string]any{"text": "nothing to see"},
			check: func(t *testing.T, out map[string]any) {
				if out["reply"] != "" {
					t.Errorf("reply = %q, want empty", out["reply"])
				}
			},
		},
		{
			name:      "missing text",
			args:      map[string]any{},
			errorCode: "INVALID_REQUEST",
		},
	})
}

func TestHandleListCards(t *testing.T) {
	h, _, _ := testSetup(t)

	runCases(t, h.HandleListCards, []handlerCase{
		{
			name: "all",
			args: map[string]any{},
			check: func(t *testing.T, out map[string]any) {
				p := out["pagination"].(map[string]any)
				if p["total"].(float64) != 4 {
					t.Errorf("total = %v, want 4", p["total"])
				}
				if out["sort"] != "name_asc" {
					t.Errorf("sort = %v", out["sort"])
				}
			},
		},
		{
			name: "items only",
			args: map[string]any{"type": "item"},
			check: func(t *testing.T, out map[string]any) {
				items := out["items"].([]any)
				if len(items) != 1 || items[0].(map[string]any)["name"] != "Steel Scimitar" {
					t.Errorf("items = %v", items)
				}
			},
		},
		{
			name: "paged",
			args: map[string]any{"limit": 1, "offset": 1},
			check: func(t *testing.T, out map[string]any) {
				p := out["pagination"].(map[string]any)
				if p["has_more"] != true || len(out["items"].([]any)) != 1 {
					t.Errorf("pagination = %v", p)
				}
			},
		},
		{
			name:      "unknown type",
			args:      map[string]any{"type": "rune"},
			errorCode: "INVALID_REQUEST",
		},
	})
}

func TestHandleHistoryAndGetReply(t *testing.T) {
	h, database, _ := testSetup(t)

	id := db.NewID()
	if err := db.InsertReply(database, &db.Reply{
		ID: id, RunID: "run1", EventID: "m1", EventKind: "comment",
		Channel: "general", Author: "alice", Mentions: []string{"Tyr"},
		ReplyText: "Here are the cards you mentioned:", CreatedAt: 100,
	}); err != nil {
		t.Fatalf("InsertReply failed: %v", err)
	}

	runCases(t, h.HandleHistory, []handlerCase{
		{
			name: "by channel",
			args: map[string]any{"channel": "general"},
			check: func(t *testing.T, out map[string]any) {
				items := out["items"].([]any)
				if len(items) != 1 || items[0].(map[string]any)["event_id"] != "m1" {
					t.Errorf("items = %v", items)
				}
			},
		},
		{
			name: "other channel",
			args: map[string]any{"channel": "elsewhere"},
			check: func(t *testing.T, out map[string]any) {
				if len(out["items"].([]any)) != 0 {
					t.Errorf("items = %v, want none", out["items"])
				}
			},
		},
	})

	runCases(t, h.HandleGetReply, []handlerCase{
		{
			name: "existing",
			args: map[string]any{"id": id},
			check: func(t *testing.T, out map[string]any) {
				if out["author"] != "alice" {
					t.Errorf("author = %v", out["author"])
				}
			},
		},
		{
			name:      "missing",
			args:      map[string]any{"id": "01NOPE"},
			errorCode: "NOT_FOUND",
		},
		{
			name:      "no id",
			args:      map[string]any{},
			errorCode: "INVALID_REQUEST",
		},
	})
}

func TestHandleLookupStats(t *testing.T) {
	h, database, _ := testSetup(t)
	for _, key := range []string{"tyr", "tyr", "storm"} {
		outcome := "resolved"
		if key == "storm" {
			outcome = "not_found"
		}
		if err := db.RecordLookup(database, key, outcome); err != nil {
			t.Fatalf("RecordLookup failed: %v", err)
		}
	}

	runCases(t, h.HandleLookupStats, []handlerCase{
		{
			name: "most frequent first",
			args: map[string]any{},
			check: func(t *testing.T, out map[string]any) {
				first := out["items"].([]any)[0].(map[string]any)
				if first["key"] != "tyr" || first["count"].(float64) != 2 {
					t.Errorf("first = %v", first)
				}
			},
		},
		{
			name: "by outcome",
			args: map[string]any{"outcome": "not_found"},
			check: func(t *testing.T, out map[string]any) {
				if out["pagination"].(map[string]any)["total"].(float64) != 1 {
					t.Errorf("out = %v", out)
				}
			},
		},
		{
			name:      "bad outcome",
			args:      map[string]any{"outcome": "maybe"},
			errorCode: "INVALID_REQUEST",
		},
	})
}

func TestServerRegistration(t *testing.T) {
	h, _, cfg := testSetup(t)

	tools := NewServer(h, cfg, "test").ListTools()
	if len(tools) != len(toolRegistry) {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry))
	}
	for _, name := range AllToolNames() {
		if _, ok := tools[name]; !ok {
			t.Errorf("missing registered tool: %s", name)
		}
	}
}

func TestServerRegistration_Disabled(t *testing.T) {
	h, _, cfg := testSetup(t)

	cfg.DisabledTools = []string{"card_preview", "card_preview"}
	cfg.DisabledTypes = []string{"reply"}
	tools := NewServer(h, cfg, "test").ListTools()

	if len(tools) != len(toolRegistry)-3 {
		t.Errorf("registered tool count = %d, want %d", len(tools), len(toolRegistry)-3)
	}
	for _, name := range []string{"card_preview", "reply_history", "reply_get"} {
		if _, ok := tools[name]; ok {
			t.Errorf("disabled tool %q should not be registered", name)
		}
	}
	if _, ok := tools["lookup_stats"]; !ok {
		t.Error("lookup_stats should be registered")
	}
}

func TestServerRegistration_AllToolsDisabled(t *testing.T) {
	h, _, cfg := testSetup(t)

	cfg.DisabledTools = AllToolNames()
	if tools := NewServer(h, cfg, "test").ListTools(); len(tools) != 0 {
		t.Errorf("registered tool count = %d, want 0", len(tools))
	}
}

func TestValidateDisabled(t *testing.T) {
	tests := []struct {
		name      string
		tools     []string
		types     []string
		wantTools int
		wantTypes int
	}{
		{name: "all valid", tools: []string{"card_get", "lookup_stats"}, types: []string{"card"}},
		{name: "one unknown each", tools: []string{"card_get", "deck_store"}, types: []string{"deck"}, wantTools: 1, wantTypes: 1},
		{name: "empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateDisabledTools(tt.tools); len(got) != tt.wantTools {
				t.Errorf("ValidateDisabledTools() = %v, want %d unknown", got, tt.wantTools)
			}
			if got := ValidateDisabledTypes(tt.types); len(got) != tt.wantTypes {
				t.Errorf("ValidateDisabledTypes() = %v, want %d unknown", got, tt.wantTypes)
			}
		})
	}
}

func TestGetTypeForTool(t *testing.T) {
	for name := range toolRegistry {
		typ := GetTypeForTool(name)
		if len(ValidateDisabledTypes([]string{typ})) != 0 {
			t.Errorf("tool %q has unknown type %q", name, typ)
		}
	}
	if GetTypeForTool("plain") != "" {
		t.Error("tool name without underscore should have no type")
	}
}

func TestErrorResult_InternalDoesNotExposeDetails(t *testing.T) {
	r := errorResult(errors.NewInternal(fmt.Errorf("sql error: open /tmp/secret.db: permission denied")))
	if !r.IsError {
		t.Fatal("expected IsError=true")
	}

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInternal) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrInternal)
	}
	if _, ok := errObj["details"]; ok {
		t.Fatal("expected INTERNAL errors to omit details")
	}
	if strings.Contains(errObj["message"].(string), "secret") {
		t.Fatal("INTERNAL message leaked the cause")
	}
}

func TestErrorResult_WrappedErrorPreservesContext(t *testing.T) {
	r := errorResult(fmt.Errorf("names[2]: %w", errors.NewInvalidRequest("name must not be empty")))

	errObj := errorObject(t, r)
	if errObj["code"] != string(errors.ErrInvalidRequest) {
		t.Errorf("code=%v, want %v", errObj["code"], errors.ErrInvalidRequest)
	}
	if msg := errObj["message"].(string); !strings.Contains(msg, "names[2]") {
		t.Errorf("message should keep wrapper context, got: %s", msg)
	}
}

func TestErrorResult_NonInternalIncludesDetails(t *testing.T) {
	errObj := errorObject(t, errorResult(errors.NewNotFound("card", "abc")))
	if errObj["code"] != string(errors.ErrNotFound) {
		t.Fatalf("code=%v, want %v", errObj["code"], errors.ErrNotFound)
	}
	if _, ok := errObj["details"]; !ok {
		t.Fatal("expected non-INTERNAL errors to include details when present")
	}
}

func TestErrorResult_PlainError(t *testing.T) {
	errObj := errorObject(t, errorResult(fmt.Errorf("boom")))
	if errObj["code"] != string(errors.ErrInternal) || errObj["status"].(float64) != 500 {
		t.Errorf("errObj = %v", errObj)
	}
}

// Helper functions

func errorObject(t *testing.T, r *mcp.CallToolResult) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal([]byte(r.Content[0].(mcp.TextContent).Text), &payload); err != nil {
		t.Fatalf("failed to unmarshal error payload: %v", err)
	}
	return payload["error"].(map[string]any)
}

// parseOutput extracts and unmarshals the JSON output from an MCP result.
func parseOutput(t *testing.T, result *mcp.CallToolResult) map[string]any {
	t.Helper()
	var output map[string]any
	if err := json.Unmarshal([]byte(result.Content[0].(mcp.TextContent).Text), &output); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	return output
}

func assertErrorCode(t *testing.T, result *mcp.CallToolResult, expectedCode string) {
	t.Helper()

	if len(result.Content) == 0 {
		t.Errorf("no content in error result")
		return
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Errorf("content is not TextContent")
		return
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(text.Text), &payload); err != nil {
		t.Errorf("failed to unmarshal error payload: %v", err)
		return
	}
	errorObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Errorf("no error object in payload")
		return
	}
	if code, _ := errorObj["code"].(string); code != expectedCode {
		t.Errorf("got error code %q, want %q", code, expectedCode)
	}
}

func extractErrorMessage(result *mcp.CallToolResult) string {
	if len(result.Content) == 0 {
		return "<no content>"
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		return "<not text content>"
	}
	return text.Text
}
