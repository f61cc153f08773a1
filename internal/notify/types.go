package notify

import "time"

// Record is one row of notification_history.
type Record struct {
	ID           int64     `json:"id"`
	Target       string    `json:"target"` // redacted destination, scheme and host only
	EventType    string    `json:"event_type"`
	AgentGUID    string    `json:"agent_guid,omitempty"`
	Hostname     string    `json:"hostname,omitempty"`
	Message      string    `json:"message"`
	Status       string    `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`
	SentAt       time.Time `json:"sent_at,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)
