// Package inventory stores agent inventory snapshots and mirrors them into
// the external asset system.
package inventory

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"time"

	"fleetd/internal/agents"
	"fleetd/internal/audit"
	"fleetd/internal/db"
	"fleetd/internal/events"
)

// DefaultProjectionTimeout bounds one projection attempt.
const DefaultProjectionTimeout = 30 * time.Second

// Projector mirrors a payload into an external system. It reports whether
// the write landed and never returns an error; failures are its own to log.
type Projector interface {
	Project(ctx context.Context, guid string, payload map[string]any) bool
}

// Reconciler persists snapshots and drives the projector.
type Reconciler struct {
	db        *sql.DB
	projector Projector
	recorder  *audit.Recorder
	bus       *events.Bus

	deltaInterval time.Duration
	timeout       time.Duration
	now           func() time.Time
}

// NewReconciler creates a reconciler. A nil projector records every
// snapshot as not projected. deltaInterval feeds the next-sync hint.
func NewReconciler(conn *sql.DB, projector Projector, recorder *audit.Recorder, bus *events.Bus, deltaInterval time.Duration) *Reconciler {
	return &Reconciler{
		db:            conn,
		projector:     projector,
		recorder:      recorder,
		bus:           bus,
		deltaInterval: deltaInterval,
		timeout:       DefaultProjectionTimeout,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// SetProjectionTimeout overrides DefaultProjectionTimeout.
func (r *Reconciler) SetProjectionTimeout(d time.Duration) {
	if d > 0 {
		r.timeout = d
	}
}

// Reconcile stores sub as a new snapshot, projects it, and records the
// outcome. Only storage errors are returned; a failed projection is
// reported through SyncResult.ProjectionApplied.
func (r *Reconciler) Reconcile(ctx context.Context, sub Submission) (SyncResult, error) {
	now := r.now()
	var identity *agents.Identity
	snap := &Snapshot{
		GUID:        sub.GUID,
		SyncType:    sub.SyncType,
		Payload:     sub.Payload,
		CollectedAt: collectedAt(sub.Payload, now),
		SyncedAt:    now,
		CreatedAt:   now,
	}

	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		a, err := agents.GetIdentityByGUID(ctx, tx, sub.GUID)
		if err != nil || a == nil {
			return err
		}
		identity = a
		snap.IdentityID = a.ID
		if err := InsertSnapshot(ctx, tx, snap); err != nil {
			return err
		}
		return agents.TouchLastSync(ctx, tx, a.ID, now)
	})
	if err != nil {
		return SyncResult{}, err
	}
	if identity == nil {
		return SyncResult{Found: false}, nil
	}

	// From here on the outcome is recorded even if the client goes away.
	ctx = context.WithoutCancel(ctx)
	applied := r.project(ctx, sub)

	err = db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := SetProjectionApplied(ctx, tx, snap.ID, applied); err != nil {
			return err
		}
		id, guid, resourceID := identity.ID, identity.GUID, strconv.FormatInt(snap.ID, 10)
		_, err := r.recorder.Append(ctx, tx, audit.Entry{
			IdentityID:   &id,
			GUID:         &guid,
			Action:       audit.ActionInventorySynced,
			ResourceType: audit.ResourceInventory,
			ResourceID:   &resourceID,
			Details: map[string]any{
				"sync_type":                   string(sub.SyncType),
				"external_projection_applied": applied,
			},
			Origin: sub.Origin,
		})
		return err
	})
	if err != nil {
		return SyncResult{}, fmt.Errorf("record sync outcome for snapshot %d: %w", snap.ID, err)
	}

	r.publish(identity, snap, applied)

	return SyncResult{
		Found:             true,
		SnapshotID:        snap.ID,
		ProjectionApplied: applied,
		NextSync:          now.Add(r.deltaInterval),
	}, nil
}

func (r *Reconciler) project(ctx context.Context, sub Submission) bool {
	if r.projector == nil {
		return false
	}
	pctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.projector.Project(pctx, sub.GUID, sub.Payload)
}

func (r *Reconciler) publish(a *agents.Identity, snap *Snapshot, applied bool) {
	meta := map[string]string{
		"snapshot_id": strconv.FormatInt(snap.ID, 10),
		"sync_type":   string(snap.SyncType),
	}
	r.bus.Publish(events.Event{
		Type:      events.InventorySynced,
		Severity:  events.SeverityInfo,
		AgentGUID: a.GUID,
		Hostname:  a.Hostname,
		Message:   fmt.Sprintf("%s inventory received from %s", snap.SyncType, a.Hostname),
		Metadata:  meta,
	})
	if r.projector == nil {
		return
	}

	if applied {
		r.bus.Publish(events.Event{
			Type:      events.ProjectionApplied,
			Severity:  events.SeverityInfo,
			AgentGUID: a.GUID,
			Hostname:  a.Hostname,
			Message:   fmt.Sprintf("Asset record for %s updated", a.Hostname),
			Metadata:  meta,
		})
		return
	}

	log.Printf("[Inventory] Asset projection failed for %s (snapshot %d)", a.GUID, snap.ID)
	r.bus.Publish(events.Event{
		Type:      events.ProjectionFailed,
		Severity:  events.SeverityWarning,
		AgentGUID: a.GUID,
		Hostname:  a.Hostname,
		Message:   fmt.Sprintf("Asset record for %s could not be updated", a.Hostname),
		Metadata:  meta,
	})
}
