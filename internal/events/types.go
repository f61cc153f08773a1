package events

import "time"

// EventType identifies the kind of event being published.
type EventType string

const (
	// Agent lifecycle
	AgentRegistered EventType = "agent_registered"
	AgentHeartbeat  EventType = "agent_heartbeat"
	AgentOffline    EventType = "agent_offline"

	// Inventory
	InventorySynced   EventType = "inventory_synced"
	ProjectionFailed  EventType = "projection_failed"
	ProjectionApplied EventType = "projection_applied"
)

// Severity indicates the urgency of an event.
type Severity int

const (
	SeverityInfo     Severity = 0
	SeverityWarning  Severity = 1
	SeverityCritical Severity = 2
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// Event is the payload published through the bus.
type Event struct {
	Type      EventType         `json:"type"`
	Severity  Severity          `json:"severity"`
	AgentGUID string            `json:"agent_guid,omitempty"`
	Hostname  string            `json:"hostname,omitempty"`
	Message   string            `json:"message"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
