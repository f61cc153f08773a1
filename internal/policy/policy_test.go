package policy

import (
	"testing"

	"fleetd/internal/models"
)

func TestGetConfig_SameForEveryGUID(t *testing.T) {
	p := NewProvider(models.AgentConfig{
		HeartbeatInterval: 15,
		DeltaSyncInterval: 360,
		FullSyncTime:      "03:00",
		MaxRetryAttempts:  3,
		RetryDelaySeconds: 30,
	})

	want := models.Policy{
		HeartbeatInterval: 15,
		DeltaSyncInterval: 360,
		FullSyncTime:      "03:00",
		MaxRetryAttempts:  3,
		RetryDelaySeconds: 30,
	}
	for _, guid := range []string{"g1", "g2", ""} {
		if got := p.GetConfig(guid); got != want {
			t.Errorf("GetConfig(%q) = %+v, want %+v", guid, got, want)
		}
	}
}

func TestUpdateChecker(t *testing.T) {
	cfg := models.UpdateConfig{
		Enabled:       true,
		LatestVersion: "1.0.0",
		DownloadURL:   "https://downloads.example/agent",
		ReleaseNotes:  "Bug fixes and improvements",
	}

	tests := []struct {
		name      string
		cfg       models.UpdateConfig
		current   string
		available bool
	}{
		{"same version", cfg, "1.0.0", false},
		{"older version", cfg, "0.9.0", true},
		{"newer version is still different", cfg, "1.1.0", true},
		{"empty version", cfg, "", true},
		{"disabled", models.UpdateConfig{LatestVersion: "2.0.0"}, "1.0.0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewUpdateChecker(tt.cfg).Check("g1", tt.current)
			if got.UpdateAvailable != tt.available {
				t.Fatalf("UpdateAvailable = %v, want %v", got.UpdateAvailable, tt.available)
			}
			if got.ForceUpdate {
				t.Error("ForceUpdate should always be false")
			}
			if !tt.available {
				if got.LatestVersion != nil || got.DownloadURL != nil || got.ReleaseNotes != nil {
					t.Errorf("expected nil details when no update, got %+v", got)
				}
				return
			}
			if got.LatestVersion == nil || *got.LatestVersion != "1.0.0" {
				t.Errorf("LatestVersion = %v", got.LatestVersion)
			}
			if got.DownloadURL == nil || *got.DownloadURL != cfg.DownloadURL {
				t.Errorf("DownloadURL = %v", got.DownloadURL)
			}
			if got.ReleaseNotes == nil || *got.ReleaseNotes != cfg.ReleaseNotes {
				t.Errorf("ReleaseNotes = %v", got.ReleaseNotes)
			}
		})
	}
}
