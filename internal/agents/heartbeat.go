package agents

import (
	"context"
	"database/sql"
	"time"

	"fleetd/internal/db"
)

// Tracker records liveness for already-registered identities. It never
// registers an unknown GUID.
type Tracker struct {
	db  *sql.DB
	now func() time.Time
}

// NewTracker creates a heartbeat tracker backed by conn.
func NewTracker(conn *sql.DB) *Tracker {
	return &Tracker{
		db:  conn,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// RecordHeartbeat marks the identity online and appends a heartbeat row in
// one transaction. An unknown GUID yields Found=false and no writes.
func (t *Tracker) RecordHeartbeat(ctx context.Context, hb Heartbeat) (HeartbeatResult, error) {
	var result HeartbeatResult
	now := t.now()

	err := db.WithTx(ctx, t.db, func(tx *sql.Tx) error {
		a, err := GetIdentityByGUID(ctx, tx, hb.GUID)
		if err != nil || a == nil {
			return err
		}

		if err := ApplyHeartbeat(ctx, tx, a.ID, hb.Status, hb.Version, now); err != nil {
			return err
		}
		if err := InsertHeartbeat(ctx, tx, &HeartbeatEvent{
			IdentityID:       a.ID,
			GUID:             a.GUID,
			ReportedStatus:   hb.Status,
			ReportedVersion:  hb.Version,
			ReportedLastSync: hb.LastSync,
			ReceivedAt:       now,
		}); err != nil {
			return err
		}

		stamp := now.Truncate(time.Second)
		a.IsOnline = true
		a.Status = hb.Status
		a.AgentVersion = hb.Version
		a.LastHeartbeatAt = &stamp
		a.UpdatedAt = stamp

		result.Found = true
		result.Identity = a
		return nil
	})
	if err != nil {
		return HeartbeatResult{}, err
	}

	// Policy is global and unversioned, so nothing can have changed.
	result.ConfigUpdated = false
	return result, nil
}
