// Package audit keeps the append-only trail of state-changing operations.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fleetd/internal/db"
)

// Recorder appends audit events. It never updates or deletes rows.
type Recorder struct {
	now func() time.Time
}

// NewRecorder creates a recorder using the wall clock.
func NewRecorder() *Recorder {
	return &Recorder{now: func() time.Time { return time.Now().UTC() }}
}

// Append writes e through q. Callers pass their open transaction so the
// audit row commits or rolls back together with the change it describes.
func (r *Recorder) Append(ctx context.Context, q db.Querier, e Entry) (int64, error) {
	if e.Action == "" || e.ResourceType == "" {
		return 0, fmt.Errorf("audit entry needs action and resource type")
	}

	var details any
	if len(e.Details) > 0 {
		var err error
		if details, err = db.JSONText(e.Details); err != nil {
			return 0, fmt.Errorf("encode audit details: %w", err)
		}
	}

	var identityID any
	if e.IdentityID != nil {
		identityID = *e.IdentityID
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO audit_logs (agent_id, agent_guid, action, resource_type, resource_id,
		                        details, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		identityID, db.NullString(e.GUID), string(e.Action), e.ResourceType,
		db.NullString(e.ResourceID), details, nullIfEmpty(e.Origin.IPAddress),
		nullIfEmpty(e.Origin.UserAgent), db.TimeString(r.now()))
	if err != nil {
		return 0, fmt.Errorf("append audit %s: %w", e.Action, err)
	}
	return result.LastInsertId()
}

// List returns audit events matching f, newest first.
func List(ctx context.Context, q db.Querier, f Filter) ([]Event, error) {
	var where []string
	var args []any
	if f.GUID != "" {
		where = append(where, "agent_guid = ?")
		args = append(args, f.GUID)
	}
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, string(f.Action))
	}

	query := `
		SELECT id, agent_id, agent_guid, action, resource_type, resource_id,
		       details, ip_address, user_agent, created_at
		FROM audit_logs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := f.Limit
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var ev Event
		var identityID sql.NullInt64
		var guid, resourceID, details, ip, ua sql.NullString
		var action, createdAt string

		if err := rows.Scan(&ev.ID, &identityID, &guid, &action, &ev.ResourceType,
			&resourceID, &details, &ip, &ua, &createdAt); err != nil {
			return nil, err
		}

		ev.Action = Action(action)
		if identityID.Valid {
			id := identityID.Int64
			ev.IdentityID = &id
		}
		if guid.Valid {
			ev.GUID = &guid.String
		}
		if resourceID.Valid {
			ev.ResourceID = &resourceID.String
		}
		ev.Details = db.DecodeJSONMap(details)
		ev.IPAddress = ip.String
		ev.UserAgent = ua.String
		ev.CreatedAt = db.ParseTime(createdAt)
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Count returns how many events with action reference resourceID.
func Count(ctx context.Context, q db.Querier, action Action, resourceID string) (int, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM audit_logs WHERE action = ? AND resource_id = ?",
		string(action), resourceID).Scan(&n)
	return n, err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
