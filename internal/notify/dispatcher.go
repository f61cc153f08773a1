// Package notify forwards selected fleet events to Shoutrrr destinations.
package notify

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/nicholas-fedor/shoutrrr"

	"fleetd/internal/events"
)

// DefaultCooldown suppresses repeats of the same event for the same agent.
const DefaultCooldown = 15 * time.Minute

// Sender abstracts message dispatch so the dispatcher can be tested
// without hitting real services.
type Sender interface {
	Send(shoutrrrURL, message string) error
}

// ShoutrrrSender dispatches via the Shoutrrr library.
type ShoutrrrSender struct{}

func (ShoutrrrSender) Send(url, message string) error {
	return shoutrrr.Send(url, message)
}

// notifiable lists the event types operators get pinged about.
var notifiable = map[events.EventType]bool{
	events.AgentRegistered:  true,
	events.AgentOffline:     true,
	events.ProjectionFailed: true,
}

// Dispatcher subscribes to the event bus and sends matching events to
// every configured URL. Delivery attempts are written to
// notification_history.
type Dispatcher struct {
	db       *sql.DB
	bus      *events.Bus
	sender   Sender
	urls     []string
	cooldown time.Duration
	now      func() time.Time

	mu        sync.Mutex
	cooldowns map[string]time.Time

	unsubscribe func()
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewDispatcher creates a dispatcher for urls. A nil sender uses Shoutrrr.
func NewDispatcher(conn *sql.DB, bus *events.Bus, sender Sender, urls []string) *Dispatcher {
	if sender == nil {
		sender = ShoutrrrSender{}
	}
	return &Dispatcher{
		db:        conn,
		bus:       bus,
		sender:    sender,
		urls:      urls,
		cooldown:  DefaultCooldown,
		now:       time.Now,
		cooldowns: make(map[string]time.Time),
		stopCh:    make(chan struct{}),
	}
}

// Start subscribes to the bus and begins dispatching in the background.
func (d *Dispatcher) Start() {
	ch := make(chan events.Event, 256)

	types := make([]events.EventType, 0, len(notifiable))
	for t := range notifiable {
		types = append(types, t)
	}
	d.unsubscribe = d.bus.Subscribe(func(e events.Event) {
		select {
		case ch <- e:
		default:
			log.Printf("notify: event queue full, dropping %s event", e.Type)
		}
	}, types...)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case e := <-ch:
				d.handle(e)
			case <-d.stopCh:
				// Drain remaining events
				for {
					select {
					case e := <-ch:
						d.handle(e)
					default:
						return
					}
				}
			}
		}
	}()
	log.Printf("🔔 Notifications enabled for %d destination(s)", len(d.urls))
}

// Stop unsubscribes, flushes queued events and waits for the worker.
func (d *Dispatcher) Stop() {
	if d.unsubscribe != nil {
		d.unsubscribe()
	}
	close(d.stopCh)
	d.wg.Wait()
}

func (d *Dispatcher) handle(e events.Event) {
	if !notifiable[e.Type] {
		return
	}
	// Re-registrations are routine; only first contact is worth a ping.
	if e.Type == events.AgentRegistered && e.Metadata["created"] != "true" {
		return
	}
	if !d.allow(e) {
		return
	}

	msg := formatMessage(e)
	for _, u := range d.urls {
		d.dispatch(u, e, msg)
	}
}

// allow enforces the per (event type, agent) cooldown.
func (d *Dispatcher) allow(e events.Event) bool {
	if d.cooldown <= 0 {
		return true
	}
	key := string(e.Type) + ":" + e.AgentGUID
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.cooldowns[key]; ok && now.Sub(last) < d.cooldown {
		return false
	}
	for k, last := range d.cooldowns {
		if now.Sub(last) >= d.cooldown {
			delete(d.cooldowns, k)
		}
	}
	d.cooldowns[key] = now
	return true
}

func (d *Dispatcher) dispatch(target string, e events.Event, msg string) {
	rec := &Record{
		Target:    Redact(target),
		EventType: string(e.Type),
		AgentGUID: e.AgentGUID,
		Hostname:  e.Hostname,
		Message:   msg,
		CreatedAt: d.now().UTC(),
	}

	if err := d.sender.Send(target, msg); err != nil {
		rec.Status = StatusFailed
		rec.ErrorMessage = err.Error()
		log.Printf("notify: send to %s failed: %v", rec.Target, err)
	} else {
		rec.Status = StatusSent
		rec.SentAt = d.now().UTC()
	}

	if d.db == nil {
		return
	}
	if _, err := RecordNotification(context.Background(), d.db, rec); err != nil {
		log.Printf("notify: record history: %v", err)
	}
}

// formatMessage builds a human-readable notification string.
func formatMessage(e events.Event) string {
	severity := e.Severity.String()
	if e.Hostname != "" {
		return fmt.Sprintf("[%s] [%s] %s", severity, e.Hostname, e.Message)
	}
	return fmt.Sprintf("[%s] %s", severity, e.Message)
}

// Redact keeps only the scheme and host of a Shoutrrr URL so tokens
// embedded in it never reach the database or logs.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return "invalid"
	}
	if u.Host == "" {
		return u.Scheme + "://"
	}
	return u.Scheme + "://" + u.Hostname()
}
