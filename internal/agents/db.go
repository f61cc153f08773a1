package agents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fleetd/internal/db"
)

const identityColumns = `
	id, agent_guid, hostname, serial_number, domain, site_code, device_token,
	version, status, is_online, last_heartbeat, last_sync, created_at, updated_at`

// ─── Identity store ───────────────────────────────────────────────────────────

// GetIdentityByGUID returns the identity for guid, or nil if none exists.
func GetIdentityByGUID(ctx context.Context, q db.Querier, guid string) (*Identity, error) {
	row := q.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM agents WHERE agent_guid = ?`, guid)
	return scanIdentityRow(row)
}

// GetIdentityByID retrieves an identity by primary key.
func GetIdentityByID(ctx context.Context, q db.Querier, id int64) (*Identity, error) {
	row := q.QueryRowContext(ctx, `SELECT `+identityColumns+` FROM agents WHERE id = ?`, id)
	return scanIdentityRow(row)
}

// ListIdentities returns all identities ordered by hostname.
func ListIdentities(ctx context.Context, q db.Querier) ([]Identity, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+identityColumns+` FROM agents ORDER BY hostname, id`)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	defer rows.Close()
	return collectIdentities(rows)
}

// ListStaleOnline returns online identities whose last heartbeat (or, if
// they never sent one, registration) is older than cutoff.
func ListStaleOnline(ctx context.Context, q db.Querier, cutoff time.Time) ([]Identity, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+identityColumns+` FROM agents
		WHERE is_online = 1 AND COALESCE(last_heartbeat, created_at) < ?
		ORDER BY id`, cutoff.UTC().Format(db.TimeFormat))
	if err != nil {
		return nil, fmt.Errorf("list stale agents: %w", err)
	}
	defer rows.Close()
	return collectIdentities(rows)
}

// InsertIdentity stores a new identity and sets its ID.
func InsertIdentity(ctx context.Context, q db.Querier, a *Identity) error {
	result, err := q.ExecContext(ctx, `
		INSERT INTO agents (agent_guid, hostname, serial_number, domain, site_code,
		                    device_token, version, status, is_online, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.GUID, a.Hostname, a.SerialNumber, nullIfEmpty(a.Domain), a.SiteCode,
		a.DeviceToken, a.AgentVersion, a.Status, db.BoolToInt(a.IsOnline),
		db.TimeString(a.CreatedAt), db.TimeString(a.UpdatedAt))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return fmt.Errorf("insert agent %q: %w: %v", a.GUID, db.ErrUniqueViolation, err)
		}
		return fmt.Errorf("insert agent %q: %w", a.GUID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = id
	return nil
}

// UpdateRegistration overwrites the agent-reported descriptive fields.
// device_token and id are never touched.
func UpdateRegistration(ctx context.Context, q db.Querier, id int64, reg Registration, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		UPDATE agents
		SET hostname = ?, serial_number = ?, domain = ?, site_code = ?, version = ?, updated_at = ?
		WHERE id = ?`,
		reg.Hostname, reg.Serial, nullIfEmpty(reg.Domain), reg.SiteCode, reg.Version,
		db.TimeString(now), id)
	if err != nil {
		return fmt.Errorf("update agent %d: %w", id, err)
	}
	return nil
}

// ApplyHeartbeat marks the identity online and records reported status.
func ApplyHeartbeat(ctx context.Context, q db.Querier, id int64, status, version string, now time.Time) error {
	_, err := q.ExecContext(ctx, `
		UPDATE agents
		SET is_online = 1, status = ?, version = ?, last_heartbeat = ?, updated_at = ?
		WHERE id = ?`,
		status, version, db.TimeString(now), db.TimeString(now), id)
	if err != nil {
		return fmt.Errorf("apply heartbeat to agent %d: %w", id, err)
	}
	return nil
}

// TouchLastSync stamps last_sync on the identity.
func TouchLastSync(ctx context.Context, q db.Querier, id int64, now time.Time) error {
	_, err := q.ExecContext(ctx,
		"UPDATE agents SET last_sync = ?, updated_at = ? WHERE id = ?",
		db.TimeString(now), db.TimeString(now), id)
	if err != nil {
		return fmt.Errorf("touch last sync on agent %d: %w", id, err)
	}
	return nil
}

// MarkOffline clears is_online. It reports whether a row changed, so two
// concurrent sweeps do not both claim the transition.
func MarkOffline(ctx context.Context, q db.Querier, id int64, now time.Time) (bool, error) {
	result, err := q.ExecContext(ctx,
		"UPDATE agents SET is_online = 0, updated_at = ? WHERE id = ? AND is_online = 1",
		db.TimeString(now), id)
	if err != nil {
		return false, fmt.Errorf("mark agent %d offline: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ─── Heartbeat store ──────────────────────────────────────────────────────────

// InsertHeartbeat appends a heartbeat row and sets its ID.
func InsertHeartbeat(ctx context.Context, q db.Querier, h *HeartbeatEvent) error {
	result, err := q.ExecContext(ctx, `
		INSERT INTO heartbeats (agent_id, agent_guid, status, version, last_sync, received_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		h.IdentityID, h.GUID, h.ReportedStatus, h.ReportedVersion,
		db.NullTimeString(h.ReportedLastSync), db.TimeString(h.ReceivedAt))
	if err != nil {
		return fmt.Errorf("insert heartbeat: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	h.ID = id
	return nil
}

// ListHeartbeats returns the most recent heartbeats for guid, newest first.
func ListHeartbeats(ctx context.Context, q db.Querier, guid string, limit int) ([]HeartbeatEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := q.QueryContext(ctx, `
		SELECT id, agent_id, agent_guid, status, version, last_sync, received_at
		FROM heartbeats WHERE agent_guid = ?
		ORDER BY id DESC LIMIT ?`, guid, limit)
	if err != nil {
		return nil, fmt.Errorf("list heartbeats: %w", err)
	}
	defer rows.Close()

	var out []HeartbeatEvent
	for rows.Next() {
		var h HeartbeatEvent
		var lastSync sql.NullString
		var receivedAt string
		if err := rows.Scan(&h.ID, &h.IdentityID, &h.GUID, &h.ReportedStatus,
			&h.ReportedVersion, &lastSync, &receivedAt); err != nil {
			return nil, err
		}
		h.ReportedLastSync = db.ParseNullTime(lastSync)
		h.ReceivedAt = db.ParseTime(receivedAt)
		out = append(out, h)
	}
	return out, rows.Err()
}

// ─── Scan helpers ─────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentityRow(row *sql.Row) (*Identity, error) {
	a, err := scanIdentity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func collectIdentities(rows *sql.Rows) ([]Identity, error) {
	var out []Identity
	for rows.Next() {
		a, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func scanIdentity(s rowScanner) (*Identity, error) {
	var a Identity
	var domain sql.NullString
	var lastHeartbeat, lastSync sql.NullString
	var createdAt, updatedAt string
	var online int

	if err := s.Scan(
		&a.ID, &a.GUID, &a.Hostname, &a.SerialNumber, &domain, &a.SiteCode, &a.DeviceToken,
		&a.AgentVersion, &a.Status, &online, &lastHeartbeat, &lastSync, &createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}

	if domain.Valid {
		a.Domain = domain.String
	}
	a.IsOnline = db.IntToBool(online)
	a.LastHeartbeatAt = db.ParseNullTime(lastHeartbeat)
	a.LastSyncAt = db.ParseNullTime(lastSync)
	a.CreatedAt = db.ParseTime(createdAt)
	a.UpdatedAt = db.ParseTime(updatedAt)
	return &a, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
