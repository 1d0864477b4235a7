package ops

import (
	"database/sql"
	"strings"

	"github.com/hpungsan/cardbot/internal/card"
	"github.com/hpungsan/cardbot/internal/db"
	"github.com/hpungsan/cardbot/internal/errors"
)

// HistoryInput contains parameters for the History operation.
type HistoryInput struct {
	Channel string // optional
	EventID string // optional
	RunID   string // optional
	Limit   int    // default: 20, max: 100
	Offset  int
}

// HistoryOutput contains the result of the History operation.
type HistoryOutput struct {
	Items      []db.Reply `json:"items"`
	Pagination Pagination `json:"pagination"`
	Sort       string     `json:"sort"`
}

// History lists logged replies, newest first.
func History(database *sql.DB, input HistoryInput) (*HistoryOutput, error) {
	limit, offset := page(input.Limit, input.Offset)

	items, total, err := db.ListReplies(database, db.ReplyFilter{
		Channel: strings.TrimSpace(input.Channel),
		EventID: strings.TrimSpace(input.EventID),
		RunID:   strings.TrimSpace(input.RunID),
	}, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []db.Reply{}
	}

	return &HistoryOutput{
		Items:      items,
		Pagination: pagination(limit, offset, len(items), total),
		Sort:       "created_at_desc",
	}, nil
}

// GetReplyInput contains parameters for the GetReply operation.
type GetReplyInput struct {
	ID string // required
}

// GetReply fetches a single logged reply.
func GetReply(database *sql.DB, input GetReplyInput) (*db.Reply, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}
	return db.GetReply(database, id)
}

// Lookup outcomes accepted by LookupStats.
var lookupOutcomes = map[string]bool{
	"resolved":  true,
	"fallback":  true,
	"not_found": true,
}

// LookupStatsInput contains parameters for the LookupStats operation.
type LookupStatsInput struct {
	Outcome string // optional: resolved, fallback, not_found
	Name    string // optional, normalized before filtering
	Limit   int    // default: 20, max: 100
	Offset  int
}

// LookupStatsOutput contains the result of the LookupStats operation.
type LookupStatsOutput struct {
	Items      []db.LookupStat `json:"items"`
	Pagination Pagination      `json:"pagination"`
	Sort       string          `json:"sort"`
}

// LookupStats lists how often each key was looked up, by outcome.
func LookupStats(database *sql.DB, input LookupStatsInput) (*LookupStatsOutput, error) {
	outcome := strings.TrimSpace(input.Outcome)
	if outcome != "" && !lookupOutcomes[outcome] {
		return nil, errors.NewInvalidRequest("outcome must be one of: resolved, fallback, not_found")
	}
	limit, offset := page(input.Limit, input.Offset)

	items, total, err := db.ListLookups(database, db.LookupFilter{
		Outcome: outcome,
		Key:     card.NormalizeKey(input.Name),
	}, limit, offset)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []db.LookupStat{}
	}

	return &LookupStatsOutput{
		Items:      items,
		Pagination: pagination(limit, offset, len(items), total),
		Sort:       "count_desc",
	}, nil
}
