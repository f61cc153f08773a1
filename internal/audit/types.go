package audit

import "time"

// Action names a state-changing operation.
type Action string

const (
	ActionAgentRegistered Action = "agent_registered"
	ActionInventorySynced Action = "inventory_synced"
	ActionAgentOffline    Action = "agent_offline"
)

// Resource types referenced by audit events.
const (
	ResourceAgent     = "agent"
	ResourceInventory = "inventory"
)

// Entry is the input to Append. IdentityID and GUID are optional so that
// identity-less failures can still be recorded.
type Entry struct {
	IdentityID   *int64
	GUID         *string
	Action       Action
	ResourceType string
	ResourceID   *string
	Details      map[string]any
	Origin       Origin
}

// Origin identifies the client a request came from.
type Origin struct {
	IPAddress string
	UserAgent string
}

// Event is one persisted audit row.
type Event struct {
	ID           int64          `json:"id"`
	IdentityID   *int64         `json:"agent_id,omitempty"`
	GUID         *string        `json:"agent_guid,omitempty"`
	Action       Action         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   *string        `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	GUID   string
	Action Action
	Limit  int
}
