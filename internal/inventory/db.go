package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"fleetd/internal/db"
)

const snapshotColumns = `id, agent_id, agent_guid, sync_type, inventory_data,
	collected_at, synced_at, snipeit_updated, created_at`

// InsertSnapshot appends s and sets its ID. Snapshots are never updated
// except for the projection flag.
func InsertSnapshot(ctx context.Context, q db.Querier, s *Snapshot) error {
	var payload any = "{}"
	if s.Payload != nil {
		var err error
		if payload, err = db.JSONText(s.Payload); err != nil {
			return fmt.Errorf("encode inventory payload: %w", err)
		}
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO inventories (agent_id, agent_guid, sync_type, inventory_data,
		                         collected_at, synced_at, snipeit_updated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		s.IdentityID, s.GUID, string(s.SyncType), payload,
		db.TimeString(s.CollectedAt), db.TimeString(s.SyncedAt),
		db.BoolToInt(s.ExternalProjectionApplied), db.TimeString(s.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert inventory snapshot: %w", err)
	}
	s.ID, err = result.LastInsertId()
	return err
}

// SetProjectionApplied records the projector outcome for a snapshot.
func SetProjectionApplied(ctx context.Context, q db.Querier, id int64, applied bool) error {
	_, err := q.ExecContext(ctx,
		"UPDATE inventories SET snipeit_updated = ? WHERE id = ?",
		db.BoolToInt(applied), id)
	if err != nil {
		return fmt.Errorf("set projection flag on snapshot %d: %w", id, err)
	}
	return nil
}

// GetSnapshot returns the snapshot with id, or nil when absent.
func GetSnapshot(ctx context.Context, q db.Querier, id int64) (*Snapshot, error) {
	row := q.QueryRowContext(ctx, "SELECT "+snapshotColumns+" FROM inventories WHERE id = ?", id)
	s, err := scanSnapshot(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return s, err
}

// ListSnapshots returns the newest snapshots for guid.
func ListSnapshots(ctx context.Context, q db.Querier, guid string, limit int) ([]Snapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := q.QueryContext(ctx, "SELECT "+snapshotColumns+`
		FROM inventories WHERE agent_guid = ?
		ORDER BY id DESC LIMIT ?`, guid, limit)
	if err != nil {
		return nil, fmt.Errorf("list snapshots for %s: %w", guid, err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(r rowScanner) (*Snapshot, error) {
	var s Snapshot
	var syncType, collectedAt, syncedAt, createdAt string
	var payload sql.NullString
	var applied int

	if err := r.Scan(&s.ID, &s.IdentityID, &s.GUID, &syncType, &payload,
		&collectedAt, &syncedAt, &applied, &createdAt); err != nil {
		return nil, err
	}
	s.SyncType = SyncType(syncType)
	s.Payload = db.DecodeJSONMap(payload)
	s.CollectedAt = db.ParseTime(collectedAt)
	s.SyncedAt = db.ParseTime(syncedAt)
	s.ExternalProjectionApplied = db.IntToBool(applied)
	s.CreatedAt = db.ParseTime(createdAt)
	return &s, nil
}

// collectedAt reads the agent-reported collection time from the payload,
// falling back to now when it is missing or unparsable.
func collectedAt(payload map[string]any, now time.Time) time.Time {
	raw, ok := payload["collected_at"].(string)
	if !ok || raw == "" {
		return now
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", db.TimeFormat} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}
	return now
}
