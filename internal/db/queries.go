package db

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/hpungsan/cardbot/internal/errors"
)

// Reply is one row of the reply log.
type Reply struct {
	ID        string   `json:"id"`
	RunID     string   `json:"run_id,omitempty"`
	EventID   string   `json:"event_id"`
	EventKind string   `json:"event_kind"`
	Channel   string   `json:"channel"`
	Author    string   `json:"author,omitempty"`
	Mentions  []string `json:"mentions,omitempty"`
	ReplyText string   `json:"reply_text"`
	CreatedAt int64    `json:"created_at"`
}

// LookupStat counts how often a key resolved a certain way.
type LookupStat struct {
	Key        string `json:"key"`
	Outcome    string `json:"outcome"`
	Count      int    `json:"count"`
	LastSeenAt int64  `json:"last_seen_at"`
}

// ReplyFilter narrows ListReplies.
type ReplyFilter struct {
	Channel string
	EventID string
	RunID   string
}

// LookupFilter narrows ListLookups.
type LookupFilter struct {
	Outcome string
	Key     string
}

// InsertReply appends a row to the reply log.
func InsertReply(db *sql.DB, r *Reply) error {
	var mentionsJSON sql.NullString
	if len(r.Mentions) > 0 {
		data, err := json.Marshal(r.Mentions)
		if err != nil {
			return errors.NewInternal(err)
		}
		mentionsJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO replies (
			id, run_id, event_id, event_kind, channel, author,
			mentions_json, reply_text, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query,
		r.ID, toNullString(r.RunID), r.EventID, r.EventKind, r.Channel, toNullString(r.Author),
		mentionsJSON, r.ReplyText, r.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetReply retrieves a reply by its ULID.
func GetReply(db *sql.DB, id string) (*Reply, error) {
	query := `
		SELECT id, run_id, event_id, event_kind, channel, author,
			mentions_json, reply_text, created_at
		FROM replies
		WHERE id = ?
	`
	r, err := scanReply(db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("reply", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// ListReplies returns replies newest first, with the total matching count.
func ListReplies(db *sql.DB, f ReplyFilter, limit, offset int) ([]Reply, int, error) {
	where, args := replyWhere(f)

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM replies"+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT id, run_id, event_id, event_kind, channel, author,
			mentions_json, reply_text, created_at
		FROM replies` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []Reply
	for rows.Next() {
		r, err := scanReply(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		out = append(out, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return out, total, nil
}

func replyWhere(f ReplyFilter) (string, []any) {
	var conds []string
	var args []any
	if f.Channel != "" {
		conds = append(conds, "channel = ?")
		args = append(args, f.Channel)
	}
	if f.EventID != "" {
		conds = append(conds, "event_id = ?")
		args = append(args, f.EventID)
	}
	if f.RunID != "" {
		conds = append(conds, "run_id = ?")
		args = append(args, f.RunID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// RecordLookup increments the counter for (key, outcome).
func RecordLookup(db *sql.DB, key, outcome string) error {
	query := `
		INSERT INTO lookups (card_key, outcome, count, last_seen_at)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(card_key, outcome) DO UPDATE SET
			count = count + 1,
			last_seen_at = excluded.last_seen_at
	`
	if _, err := db.Exec(query, key, outcome, time.Now().Unix()); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// ListLookups returns counters ordered by count, highest first.
func ListLookups(db *sql.DB, f LookupFilter, limit, offset int) ([]LookupStat, int, error) {
	var conds []string
	var args []any
	if f.Outcome != "" {
		conds = append(conds, "outcome = ?")
		args = append(args, f.Outcome)
	}
	if f.Key != "" {
		conds = append(conds, "card_key = ?")
		args = append(args, f.Key)
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM lookups"+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT card_key, outcome, count, last_seen_at
		FROM lookups` + where + `
		ORDER BY count DESC, last_seen_at DESC, card_key ASC
		LIMIT ? OFFSET ?
	`
	rows, err := db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var out []LookupStat
	for rows.Next() {
		var s LookupStat
		if err := rows.Scan(&s.Key, &s.Outcome, &s.Count, &s.LastSeenAt); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return out, total, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReply(row scanner) (*Reply, error) {
	var (
		r            Reply
		runID        sql.NullString
		author       sql.NullString
		mentionsJSON sql.NullString
	)
	err := row.Scan(
		&r.ID, &runID, &r.EventID, &r.EventKind, &r.Channel, &author,
		&mentionsJSON, &r.ReplyText, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.RunID = runID.String
	r.Author = author.String

	if mentionsJSON.Valid && mentionsJSON.String != "" {
		if err := json.Unmarshal([]byte(mentionsJSON.String), &r.Mentions); err != nil {
			return nil, err
		}
	}
	return &r, nil
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
