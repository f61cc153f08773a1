package agents

import "time"

// StatusActive is the status a freshly registered identity starts with.
const StatusActive = "active"

// Identity is the durable record of one endpoint, keyed by its agent GUID.
type Identity struct {
	ID              int64      `json:"id"`
	GUID            string     `json:"agent_guid"`
	Hostname        string     `json:"hostname"`
	SerialNumber    string     `json:"serial_number"`
	Domain          string     `json:"domain,omitempty"`
	SiteCode        string     `json:"site_code"`
	DeviceToken     string     `json:"-"`
	AgentVersion    string     `json:"version"`
	Status          string     `json:"status"`
	IsOnline        bool       `json:"is_online"`
	LastHeartbeatAt *time.Time `json:"last_heartbeat,omitempty"`
	LastSyncAt      *time.Time `json:"last_sync,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Registration carries the agent-supplied fields of a register call.
type Registration struct {
	GUID     string
	Hostname string
	Serial   string
	Domain   string
	SiteCode string
	Version  string
}

// HeartbeatEvent is one persisted liveness ping.
type HeartbeatEvent struct {
	ID               int64      `json:"id"`
	IdentityID       int64      `json:"agent_id"`
	GUID             string     `json:"agent_guid"`
	ReportedStatus   string     `json:"status"`
	ReportedVersion  string     `json:"version"`
	ReportedLastSync *time.Time `json:"last_sync,omitempty"`
	ReceivedAt       time.Time  `json:"received_at"`
}

// Heartbeat is the input of RecordHeartbeat.
type Heartbeat struct {
	GUID     string
	Version  string
	Status   string
	LastSync *time.Time
}

// HeartbeatResult is the outcome of RecordHeartbeat. Found is false when
// no identity exists for the GUID; nothing is written in that case.
type HeartbeatResult struct {
	Found         bool
	Identity      *Identity
	ConfigUpdated bool
}
