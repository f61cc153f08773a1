package inventory

import (
	"fmt"
	"time"

	"fleetd/internal/audit"
)

// SyncType distinguishes a delta submission from a full one. The
// reconciler treats both identically; completeness is the agent's concern.
type SyncType string

const (
	SyncDelta SyncType = "delta"
	SyncFull  SyncType = "full"
)

// ParseSyncType validates a caller-supplied sync type.
func ParseSyncType(s string) (SyncType, error) {
	switch SyncType(s) {
	case SyncDelta, SyncFull:
		return SyncType(s), nil
	default:
		return "", fmt.Errorf("sync_type must be %q or %q, got %q", SyncDelta, SyncFull, s)
	}
}

// Snapshot is one immutable inventory submission.
type Snapshot struct {
	ID                        int64          `json:"id"`
	IdentityID                int64          `json:"agent_id"`
	GUID                      string         `json:"agent_guid"`
	SyncType                  SyncType       `json:"sync_type"`
	Payload                   map[string]any `json:"inventory"`
	CollectedAt               time.Time      `json:"collected_at"`
	SyncedAt                  time.Time      `json:"synced_at"`
	ExternalProjectionApplied bool           `json:"snipeit_updated"`
	CreatedAt                 time.Time      `json:"created_at"`
}

// Submission is the input to Reconcile. SyncType must already be validated.
type Submission struct {
	GUID     string
	SyncType SyncType
	Payload  map[string]any
	LastSync *time.Time
	Origin   audit.Origin
}

// SyncResult is the outcome of Reconcile. Found is false when no identity
// exists for the GUID; nothing is written in that case.
type SyncResult struct {
	Found             bool
	SnapshotID        int64
	ProjectionApplied bool
	NextSync          time.Time
}
