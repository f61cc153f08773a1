package agents

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"sync"
	"time"

	"fleetd/internal/audit"
	"fleetd/internal/db"
	"fleetd/internal/events"
)

// OfflineMonitor flips identities to offline once they miss a configured
// number of heartbeat intervals. The next heartbeat brings them back.
type OfflineMonitor struct {
	db       *sql.DB
	bus      *events.Bus
	recorder *audit.Recorder
	interval time.Duration
	missed   int
	now      func() time.Time

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

// NewOfflineMonitor creates a monitor. interval is the expected heartbeat
// period; missed is how many consecutive intervals without contact mark
// an identity offline (typically 3).
func NewOfflineMonitor(conn *sql.DB, bus *events.Bus, recorder *audit.Recorder, interval time.Duration, missed int) *OfflineMonitor {
	if missed <= 0 {
		missed = 3
	}
	return &OfflineMonitor{
		db:       conn,
		bus:      bus,
		recorder: recorder,
		interval: interval,
		missed:   missed,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the periodic sweep loop.
func (m *OfflineMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.stop = make(chan struct{})
	m.done = make(chan struct{})

	go m.loop(m.stop, m.done)
	log.Printf("[Offline] Monitor started (interval=%s, missed=%d)", m.interval, m.missed)
}

// Stop halts the monitor and waits for an in-flight sweep to finish.
func (m *OfflineMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	stop, done := m.stop, m.done
	m.mu.Unlock()

	close(stop)
	<-done
	log.Println("[Offline] Monitor stopped")
}

func (m *OfflineMonitor) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := m.Sweep(context.Background()); err != nil {
				log.Printf("[Offline] Sweep failed: %v", err)
			}
		}
	}
}

// Sweep marks every stale online identity offline and returns how many
// transitioned. Each transition commits with its own audit event.
func (m *OfflineMonitor) Sweep(ctx context.Context) (int, error) {
	now := m.now()
	cutoff := now.Add(-m.interval * time.Duration(m.missed))

	stale, err := ListStaleOnline(ctx, m.db, cutoff)
	if err != nil {
		return 0, err
	}

	marked := 0
	for _, a := range stale {
		changed := false
		err := db.WithTx(ctx, m.db, func(tx *sql.Tx) error {
			ok, err := MarkOffline(ctx, tx, a.ID, now)
			if err != nil || !ok {
				return err
			}
			changed = true

			lastSeen := a.CreatedAt
			if a.LastHeartbeatAt != nil {
				lastSeen = *a.LastHeartbeatAt
			}
			id, guid, resourceID := a.ID, a.GUID, strconv.FormatInt(a.ID, 10)
			_, err = m.recorder.Append(ctx, tx, audit.Entry{
				IdentityID:   &id,
				GUID:         &guid,
				Action:       audit.ActionAgentOffline,
				ResourceType: audit.ResourceAgent,
				ResourceID:   &resourceID,
				Details: map[string]any{
					"last_seen":     lastSeen.Format(time.RFC3339),
					"missed_checks": m.missed,
				},
			})
			return err
		})
		if err != nil {
			log.Printf("[Offline] Failed to mark agent %s offline: %v", a.GUID, err)
			continue
		}
		if !changed {
			continue
		}

		marked++
		log.Printf("[Offline] Agent %s (%s) marked offline", a.Hostname, a.GUID)
		m.bus.Publish(events.Event{
			Type:      events.AgentOffline,
			Severity:  events.SeverityWarning,
			AgentGUID: a.GUID,
			Hostname:  a.Hostname,
			Message:   fmt.Sprintf("Agent %q missed %d heartbeats", a.Hostname, m.missed),
			Metadata: map[string]string{
				"site_code": a.SiteCode,
			},
		})
	}
	return marked, nil
}
