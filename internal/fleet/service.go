// Package fleet implements the five agent-facing operations on top of the
// identity, heartbeat, inventory, audit and policy components.
package fleet

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/codeGROOVE-dev/retry"

	"fleetd/internal/agents"
	"fleetd/internal/audit"
	"fleetd/internal/db"
	"fleetd/internal/events"
	"fleetd/internal/inventory"
	"fleetd/internal/models"
	"fleetd/internal/policy"
)

const (
	statusSuccess = "success"
	statusError   = "error"

	msgAgentNotFound = "Agent not found"
)

const (
	registerAttempts = 3
	registerDelay    = 10 * time.Millisecond
	registerMaxDelay = 200 * time.Millisecond
)

// Service is the agent-facing API. It holds no mutable state of its own;
// every call is safe to run concurrently.
type Service struct {
	db         *sql.DB
	resolver   *agents.Resolver
	tracker    *agents.Tracker
	reconciler *inventory.Reconciler
	recorder   *audit.Recorder
	policy     *policy.Provider
	updates    *policy.UpdateChecker
	bus        *events.Bus
}

// Deps bundles the collaborators of a Service.
type Deps struct {
	DB         *sql.DB
	Resolver   *agents.Resolver
	Tracker    *agents.Tracker
	Reconciler *inventory.Reconciler
	Recorder   *audit.Recorder
	Policy     *policy.Provider
	Updates    *policy.UpdateChecker
	Bus        *events.Bus
}

// NewService wires a Service from d.
func NewService(d Deps) *Service {
	return &Service{
		db:         d.DB,
		resolver:   d.Resolver,
		tracker:    d.Tracker,
		reconciler: d.Reconciler,
		recorder:   d.Recorder,
		policy:     d.Policy,
		updates:    d.Updates,
		bus:        d.Bus,
	}
}

// New builds a Service and its components from cfg. projector may be nil
// when no asset system is configured.
func New(conn *sql.DB, cfg models.Config, projector inventory.Projector, bus *events.Bus) *Service {
	recorder := audit.NewRecorder()
	deltaInterval := time.Duration(cfg.Agent.DeltaSyncInterval) * time.Minute
	reconciler := inventory.NewReconciler(conn, projector, recorder, bus, deltaInterval)
	if cfg.SnipeIT.Timeout > 0 {
		reconciler.SetProjectionTimeout(cfg.SnipeIT.Timeout)
	}
	return NewService(Deps{
		DB:         conn,
		Resolver:   agents.NewResolver(),
		Tracker:    agents.NewTracker(conn),
		Reconciler: reconciler,
		Recorder:   recorder,
		Policy:     policy.NewProvider(cfg.Agent),
		Updates:    policy.NewUpdateChecker(cfg.Updates),
		Bus:        bus,
	})
}

type registration struct {
	identity *agents.Identity
	created  bool
}

// Register resolves or creates the identity for req and records the
// registration in the same transaction. A lost first-registration race
// is retried and lands as an update of the winner's row.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest, origin audit.Origin) (models.RegisterResponse, error) {
	reg := agents.Registration{
		GUID:     req.AgentGUID,
		Hostname: req.Hostname,
		Serial:   req.Serial,
		Domain:   req.Domain,
		SiteCode: req.SiteCode,
		Version:  req.Version,
	}

	out, err := retry.DoWithData(func() (registration, error) {
		var r registration
		err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			a, created, err := s.resolver.ResolveOrCreate(ctx, tx, reg)
			if err != nil {
				return err
			}
			id, guid, resourceID := a.ID, a.GUID, strconv.FormatInt(a.ID, 10)
			if _, err := s.recorder.Append(ctx, tx, audit.Entry{
				IdentityID:   &id,
				GUID:         &guid,
				Action:       audit.ActionAgentRegistered,
				ResourceType: audit.ResourceAgent,
				ResourceID:   &resourceID,
				Details: map[string]any{
					"created":   created,
					"hostname":  a.Hostname,
					"site_code": a.SiteCode,
					"version":   a.AgentVersion,
				},
				Origin: origin,
			}); err != nil {
				return err
			}
			r = registration{identity: a, created: created}
			return nil
		})
		return r, err
	},
		retry.Attempts(registerAttempts),
		retry.Delay(registerDelay),
		retry.MaxDelay(registerMaxDelay),
		retry.RetryIf(db.IsUniqueViolation),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		return models.RegisterResponse{}, fmt.Errorf("register agent %q: %w", req.AgentGUID, err)
	}

	a := out.identity
	if out.created {
		log.Printf("✅ Agent registered: %s (%s) site=%s", a.Hostname, a.GUID, a.SiteCode)
	} else {
		log.Printf("🔄 Agent re-registered: %s (%s)", a.Hostname, a.GUID)
	}
	s.bus.Publish(events.Event{
		Type:      events.AgentRegistered,
		Severity:  events.SeverityInfo,
		AgentGUID: a.GUID,
		Hostname:  a.Hostname,
		Message:   registrationMessage(a, out.created),
		Metadata: map[string]string{
			"site_code": a.SiteCode,
			"version":   a.AgentVersion,
			"created":   strconv.FormatBool(out.created),
		},
	})

	return models.RegisterResponse{
		DeviceToken: a.DeviceToken,
		Policy:      s.policy.GetConfig(a.GUID),
	}, nil
}

func registrationMessage(a *agents.Identity, created bool) string {
	if created {
		return fmt.Sprintf("New agent %q registered at site %s", a.Hostname, a.SiteCode)
	}
	return fmt.Sprintf("Agent %q re-registered", a.Hostname)
}

// Heartbeat records a liveness ping. An unknown GUID is answered with an
// error status rather than a Go error.
func (s *Service) Heartbeat(ctx context.Context, req models.HeartbeatRequest) (models.HeartbeatResponse, error) {
	res, err := s.tracker.RecordHeartbeat(ctx, agents.Heartbeat{
		GUID:     req.AgentGUID,
		Version:  req.Version,
		Status:   req.Status,
		LastSync: req.LastSync,
	})
	if err != nil {
		return models.HeartbeatResponse{}, fmt.Errorf("record heartbeat for %q: %w", req.AgentGUID, err)
	}
	if !res.Found {
		log.Printf("[Heartbeat] Unknown agent %s", req.AgentGUID)
		return models.HeartbeatResponse{Status: statusError, Message: msgAgentNotFound}, nil
	}

	s.bus.Publish(events.Event{
		Type:      events.AgentHeartbeat,
		Severity:  events.SeverityInfo,
		AgentGUID: res.Identity.GUID,
		Hostname:  res.Identity.Hostname,
		Message:   fmt.Sprintf("Heartbeat from %s (%s)", res.Identity.Hostname, req.Status),
		Metadata: map[string]string{
			"status":  req.Status,
			"version": req.Version,
		},
	})

	return models.HeartbeatResponse{
		Status:        statusSuccess,
		Message:       "Heartbeat received",
		ConfigUpdated: res.ConfigUpdated,
	}, nil
}

// SyncInventory stores a validated inventory submission and mirrors it to
// the asset system. syncType must already be checked against the route.
func (s *Service) SyncInventory(ctx context.Context, req models.InventorySyncRequest, syncType inventory.SyncType, origin audit.Origin) (models.InventorySyncResponse, error) {
	res, err := s.reconciler.Reconcile(ctx, inventory.Submission{
		GUID:     req.AgentGUID,
		SyncType: syncType,
		Payload:  req.Inventory,
		LastSync: req.LastSync,
		Origin:   origin,
	})
	if err != nil {
		return models.InventorySyncResponse{}, fmt.Errorf("sync inventory for %q: %w", req.AgentGUID, err)
	}
	if !res.Found {
		log.Printf("[Inventory] Unknown agent %s", req.AgentGUID)
		return models.InventorySyncResponse{Status: statusError, Message: msgAgentNotFound}, nil
	}

	log.Printf("[Inventory] %s sync stored for %s (snapshot %d, asset updated=%v)",
		syncType, req.AgentGUID, res.SnapshotID, res.ProjectionApplied)

	next := res.NextSync
	return models.InventorySyncResponse{
		Status:         statusSuccess,
		Message:        "Inventory synced successfully",
		SnipeITUpdated: res.ProjectionApplied,
		NextSync:       &next,
	}, nil
}

// CheckUpdate compares the agent's version with the published build.
func (s *Service) CheckUpdate(ctx context.Context, req models.UpdateCheckRequest) models.UpdateCheckResponse {
	return s.updates.Check(req.AgentGUID, req.CurrentVersion)
}

// GetConfig returns the policy for guid.
func (s *Service) GetConfig(ctx context.Context, guid string) models.Policy {
	return s.policy.GetConfig(guid)
}
