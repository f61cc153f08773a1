package models

import "time"

// RegisterRequest is the body of POST /api/v1/agents/register
type RegisterRequest struct {
	AgentGUID string `json:"agent_guid"`
	Hostname  string `json:"hostname"`
	Serial    string `json:"serial"`
	Domain    string `json:"domain"`
	Version   string `json:"version"`
	SiteCode  string `json:"site_code"`
}

// RegisterResponse carries the device token and the agent's policy.
type RegisterResponse struct {
	DeviceToken string `json:"device_token"`
	Policy      Policy `json:"policy"`
}

// HeartbeatRequest is one liveness ping from an agent.
type HeartbeatRequest struct {
	AgentGUID string     `json:"agent_guid"`
	Version   string     `json:"version"`
	Status    string     `json:"status"`
	LastSync  *time.Time `json:"last_sync,omitempty"`
}

// HeartbeatResponse reports the heartbeat outcome.
type HeartbeatResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message,omitempty"`
	ConfigUpdated bool   `json:"config_updated"`
}

// InventorySyncRequest is a delta or full inventory submission.
type InventorySyncRequest struct {
	AgentGUID string         `json:"agent_guid"`
	SyncType  string         `json:"sync_type"`
	Inventory map[string]any `json:"inventory"`
	LastSync  *time.Time     `json:"last_sync,omitempty"`
}

// InventorySyncResponse reports the sync outcome.
type InventorySyncResponse struct {
	Status         string     `json:"status"`
	Message        string     `json:"message,omitempty"`
	SnipeITUpdated bool       `json:"snipeit_updated"`
	NextSync       *time.Time `json:"next_sync,omitempty"`
}

// UpdateCheckRequest asks whether a newer agent build exists.
type UpdateCheckRequest struct {
	AgentGUID      string `json:"agent_guid"`
	CurrentVersion string `json:"current_version"`
}

// UpdateCheckResponse answers an update check.
type UpdateCheckResponse struct {
	UpdateAvailable bool    `json:"update_available"`
	LatestVersion   *string `json:"latest_version"`
	DownloadURL     *string `json:"download_url"`
	ReleaseNotes    *string `json:"release_notes"`
	ForceUpdate     bool    `json:"force_update"`
}

// Policy is the set of operating parameters handed to an agent.
type Policy struct {
	HeartbeatInterval int    `json:"heartbeat_interval"`  // minutes
	DeltaSyncInterval int    `json:"delta_sync_interval"` // minutes
	FullSyncTime      string `json:"full_sync_time"`      // HH:MM local to the agent
	MaxRetryAttempts  int    `json:"max_retry_attempts"`
	RetryDelaySeconds int    `json:"retry_delay_seconds"`
}

// Config holds server configuration
type Config struct {
	Port        string `yaml:"port"`
	DBPath      string `yaml:"db_path"`
	AdminUser   string `yaml:"admin_user"`
	AdminPass   string `yaml:"admin_pass"`
	AuthEnabled bool   `yaml:"auth_enabled"`

	// bcrypt hash of the admin password; takes precedence over AdminPass.
	AdminPassHash string `yaml:"admin_pass_hash"`

	// Requests per minute per client IP on agent endpoints; 0 disables.
	RateLimit int `yaml:"rate_limit"`

	Agent   AgentConfig   `yaml:"agent"`
	SnipeIT SnipeITConfig `yaml:"snipeit"`
	Updates UpdateConfig  `yaml:"updates"`

	// Shoutrrr URLs notified on lifecycle events.
	NotifyURLs []string `yaml:"notify_urls"`
}

// AgentConfig is the global agent policy.
type AgentConfig struct {
	HeartbeatInterval int    `yaml:"heartbeat_interval"`
	DeltaSyncInterval int    `yaml:"delta_sync_interval"`
	FullSyncTime      string `yaml:"full_sync_time"`
	MaxRetryAttempts  int    `yaml:"max_retry_attempts"`
	RetryDelaySeconds int    `yaml:"retry_delay_seconds"`

	// Heartbeat intervals without contact before an agent is marked offline.
	OfflineAfterMissed int `yaml:"offline_after_missed"`
}

// SnipeITConfig configures the outbound asset-system client.
type SnipeITConfig struct {
	BaseURL           string        `yaml:"base_url"`
	APIToken          string        `yaml:"api_token"`
	Timeout           time.Duration `yaml:"timeout"`
	DefaultStatusID   int           `yaml:"default_status_id"`
	DefaultModelID    int           `yaml:"default_model_id"`
	DefaultCategoryID int           `yaml:"default_category_id"`
	ModelName         string        `yaml:"model_name"`
	CategoryName      string        `yaml:"category_name"`
	StatusName        string        `yaml:"status_name"`
}

// UpdateConfig describes the currently published agent build.
type UpdateConfig struct {
	Enabled       bool   `yaml:"enabled"`
	LatestVersion string `yaml:"latest_version"`
	DownloadURL   string `yaml:"download_url"`
	ReleaseNotes  string `yaml:"release_notes"`
}
