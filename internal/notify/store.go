package notify

import (
	"context"
	"database/sql"
	"fmt"

	"fleetd/internal/db"
)

// RecordNotification appends a delivery attempt to the history.
func RecordNotification(ctx context.Context, q db.Querier, rec *Record) (int64, error) {
	var sentAt any
	if !rec.SentAt.IsZero() {
		sentAt = db.TimeString(rec.SentAt)
	}

	res, err := q.ExecContext(ctx, `
		INSERT INTO notification_history
			(target, event_type, agent_guid, hostname, message, status, error_message, sent_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Target, rec.EventType, nullIfEmpty(rec.AgentGUID), nullIfEmpty(rec.Hostname),
		rec.Message, rec.Status, nullIfEmpty(rec.ErrorMessage), sentAt, db.TimeString(rec.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("record notification: %w", err)
	}
	return res.LastInsertId()
}

// RecentHistory returns the latest delivery attempts, newest first.
func RecentHistory(ctx context.Context, q db.Querier, limit int) ([]Record, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	rows, err := q.QueryContext(ctx, `
		SELECT id, target, event_type, agent_guid, hostname, message, status,
		       error_message, sent_at, created_at
		FROM notification_history
		ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent history: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var guid, hostname, errMsg, sentAt sql.NullString
		var createdAt string
		if err := rows.Scan(&r.ID, &r.Target, &r.EventType, &guid, &hostname, &r.Message,
			&r.Status, &errMsg, &sentAt, &createdAt); err != nil {
			return nil, err
		}
		r.AgentGUID = guid.String
		r.Hostname = hostname.String
		r.ErrorMessage = errMsg.String
		if t := db.ParseNullTime(sentAt); t != nil {
			r.SentAt = *t
		}
		r.CreatedAt = db.ParseTime(createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
