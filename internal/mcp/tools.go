package mcp

import "github.com/mark3labs/mcp-go/mcp"

var lookupToolDef = mcp.NewTool("card_lookup",
	mcp.WithDescription("Resolve card names the way {{mentions}} are resolved. Ambiguous or unknown names come back with unknown=true."),
	mcp.WithArray("names",
		mcp.Required(),
		mcp.WithStringItems(),
		mcp.Description("Card names or partial names (max 50)"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var getCardToolDef = mcp.NewTool("card_get",
	mcp.WithDescription("Resolve exactly one card. Fails with NOT_FOUND when the name is unknown or ambiguous."),
	mcp.WithString("name",
		mcp.Required(),
		mcp.Description("Card name or unambiguous prefix"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var previewToolDef = mcp.NewTool("card_preview",
	mcp.WithDescription("Render the reply the bot would post for a message, without posting it."),
	mcp.WithString("text",
		mcp.Required(),
		mcp.Description("Message text containing {{Card Name}} mentions"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var listCardsToolDef = mcp.NewTool("card_list",
	mcp.WithDescription("List corpus cards sorted by name."),
	mcp.WithString("type",
		mcp.Description("Filter by card type"),
		mcp.Enum("creature", "item", "action", "support", "other"),
	),
	mcp.WithString("name_prefix",
		mcp.Description("Filter by normalized name prefix"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Page size (default 20, max 100)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Items to skip"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var historyToolDef = mcp.NewTool("reply_history",
	mcp.WithDescription("List replies the bot has posted, newest first."),
	mcp.WithString("channel",
		mcp.Description("Filter by channel id"),
	),
	mcp.WithString("event_id",
		mcp.Description("Filter by the event that was answered"),
	),
	mcp.WithString("run_id",
		mcp.Description("Filter by poller run"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Page size (default 20, max 100)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Items to skip"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var getReplyToolDef = mcp.NewTool("reply_get",
	mcp.WithDescription("Fetch one logged reply by id."),
	mcp.WithString("id",
		mcp.Required(),
		mcp.Description("Reply ULID"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)

var lookupStatsToolDef = mcp.NewTool("lookup_stats",
	mcp.WithDescription("Show how often each card key was looked up, per outcome, most frequent first."),
	mcp.WithString("outcome",
		mcp.Description("Filter by outcome"),
		mcp.Enum("resolved", "fallback", "not_found"),
	),
	mcp.WithString("name",
		mcp.Description("Filter by card name (normalized before matching)"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Page size (default 20, max 100)"),
	),
	mcp.WithNumber("offset",
		mcp.Description("Items to skip"),
	),
	mcp.WithReadOnlyHintAnnotation(true),
)
