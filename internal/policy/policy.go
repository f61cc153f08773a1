// Package policy hands agents their operating parameters and answers
// update checks. Both are global today; the GUID argument is where
// per-site or per-agent policy would plug in.
package policy

import (
	"fleetd/internal/models"
)

// Provider returns the effective agent policy.
type Provider struct {
	cfg models.AgentConfig
}

// NewProvider creates a provider over the configured agent policy.
func NewProvider(cfg models.AgentConfig) *Provider {
	return &Provider{cfg: cfg}
}

// GetConfig returns the policy for guid.
func (p *Provider) GetConfig(guid string) models.Policy {
	return models.Policy{
		HeartbeatInterval: p.cfg.HeartbeatInterval,
		DeltaSyncInterval: p.cfg.DeltaSyncInterval,
		FullSyncTime:      p.cfg.FullSyncTime,
		MaxRetryAttempts:  p.cfg.MaxRetryAttempts,
		RetryDelaySeconds: p.cfg.RetryDelaySeconds,
	}
}

// UpdateChecker compares an agent's version with the published build.
type UpdateChecker struct {
	cfg models.UpdateConfig
}

// NewUpdateChecker creates a checker for the published build in cfg.
func NewUpdateChecker(cfg models.UpdateConfig) *UpdateChecker {
	return &UpdateChecker{cfg: cfg}
}

// Check reports an update whenever currentVersion differs from the
// published version. This is plain string inequality, so a newer agent
// than the published one is also told to "update".
func (u *UpdateChecker) Check(guid, currentVersion string) models.UpdateCheckResponse {
	if !u.cfg.Enabled || currentVersion == u.cfg.LatestVersion {
		return models.UpdateCheckResponse{}
	}
	return models.UpdateCheckResponse{
		UpdateAvailable: true,
		LatestVersion:   optional(u.cfg.LatestVersion),
		DownloadURL:     optional(u.cfg.DownloadURL),
		ReleaseNotes:    optional(u.cfg.ReleaseNotes),
		ForceUpdate:     false,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
