package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"fleetd/internal/models"
)

// Defaults mirrors what a fresh install runs with when nothing is set.
func Defaults() models.Config {
	return models.Config{
		Port:        "8000",
		DBPath:      "fleetd.db",
		AdminUser:   "admin",
		AuthEnabled: true,
		RateLimit:   120,
		Agent: models.AgentConfig{
			HeartbeatInterval:  15,
			DeltaSyncInterval:  360,
			FullSyncTime:       "03:00",
			MaxRetryAttempts:   3,
			RetryDelaySeconds:  30,
			OfflineAfterMissed: 3,
		},
		SnipeIT: models.SnipeITConfig{
			Timeout:           30 * time.Second,
			DefaultStatusID:   1,
			DefaultModelID:    1,
			DefaultCategoryID: 1,
		},
		Updates: models.UpdateConfig{
			Enabled:       true,
			LatestVersion: "1.0.0",
			ReleaseNotes:  "Bug fixes and improvements",
		},
	}
}

// Load returns the server configuration. Defaults are overlaid by the YAML
// file named in FLEETD_CONFIG (if any), then by environment variables.
func Load() (models.Config, error) {
	return LoadFrom(os.Getenv("FLEETD_CONFIG"))
}

// LoadFrom is Load with an explicit YAML path; an empty path skips the file.
func LoadFrom(path string) (models.Config, error) {
	cfg := Defaults()

	if path != "" {
		if err := LoadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	applyEnv(&cfg)
	return cfg, Validate(cfg)
}

// LoadFile overlays the YAML document at path onto cfg.
func LoadFile(path string, cfg *models.Config) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *models.Config) {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DBPath = getEnv("DB_PATH", cfg.DBPath)
	cfg.AdminUser = getEnv("ADMIN_USER", cfg.AdminUser)
	cfg.AdminPass = getEnv("ADMIN_PASS", cfg.AdminPass)
	cfg.AdminPassHash = getEnv("ADMIN_PASS_HASH", cfg.AdminPassHash)
	cfg.AuthEnabled = getEnvBool("AUTH_ENABLED", cfg.AuthEnabled)
	cfg.RateLimit = getEnvInt("RATE_LIMIT", cfg.RateLimit)

	cfg.Agent.HeartbeatInterval = getEnvInt("AGENT_HEARTBEAT_INTERVAL", cfg.Agent.HeartbeatInterval)
	cfg.Agent.DeltaSyncInterval = getEnvInt("AGENT_DELTA_SYNC_INTERVAL", cfg.Agent.DeltaSyncInterval)
	cfg.Agent.FullSyncTime = getEnv("AGENT_FULL_SYNC_TIME", cfg.Agent.FullSyncTime)
	cfg.Agent.MaxRetryAttempts = getEnvInt("AGENT_MAX_RETRY_ATTEMPTS", cfg.Agent.MaxRetryAttempts)
	cfg.Agent.RetryDelaySeconds = getEnvInt("AGENT_RETRY_DELAY_SECONDS", cfg.Agent.RetryDelaySeconds)
	cfg.Agent.OfflineAfterMissed = getEnvInt("AGENT_OFFLINE_AFTER_MISSED", cfg.Agent.OfflineAfterMissed)

	cfg.SnipeIT.BaseURL = strings.TrimRight(getEnv("SNIPEIT_BASE_URL", cfg.SnipeIT.BaseURL), "/")
	cfg.SnipeIT.APIToken = getEnv("SNIPEIT_API_TOKEN", cfg.SnipeIT.APIToken)
	cfg.SnipeIT.Timeout = getEnvDuration("SNIPEIT_TIMEOUT", cfg.SnipeIT.Timeout)
	cfg.SnipeIT.DefaultStatusID = getEnvInt("SNIPEIT_DEFAULT_STATUS_ID", cfg.SnipeIT.DefaultStatusID)
	cfg.SnipeIT.DefaultModelID = getEnvInt("SNIPEIT_DEFAULT_MODEL_ID", cfg.SnipeIT.DefaultModelID)
	cfg.SnipeIT.DefaultCategoryID = getEnvInt("SNIPEIT_DEFAULT_CATEGORY_ID", cfg.SnipeIT.DefaultCategoryID)
	cfg.SnipeIT.ModelName = getEnv("SNIPEIT_MODEL_NAME", cfg.SnipeIT.ModelName)
	cfg.SnipeIT.CategoryName = getEnv("SNIPEIT_CATEGORY_NAME", cfg.SnipeIT.CategoryName)
	cfg.SnipeIT.StatusName = getEnv("SNIPEIT_STATUS_NAME", cfg.SnipeIT.StatusName)

	cfg.Updates.Enabled = getEnvBool("UPDATE_CHECK_ENABLED", cfg.Updates.Enabled)
	cfg.Updates.LatestVersion = getEnv("LATEST_VERSION", cfg.Updates.LatestVersion)
	cfg.Updates.DownloadURL = getEnv("UPDATE_DOWNLOAD_URL", cfg.Updates.DownloadURL)
	cfg.Updates.ReleaseNotes = getEnv("UPDATE_RELEASE_NOTES", cfg.Updates.ReleaseNotes)

	if v, ok := os.LookupEnv("NOTIFY_URLS"); ok {
		cfg.NotifyURLs = splitList(v)
	}
}

// Validate rejects configurations the server cannot run with.
func Validate(cfg models.Config) error {
	switch {
	case cfg.Port == "":
		return fmt.Errorf("port must not be empty")
	case cfg.DBPath == "":
		return fmt.Errorf("db path must not be empty")
	case cfg.Agent.HeartbeatInterval <= 0:
		return fmt.Errorf("agent heartbeat interval must be positive, got %d", cfg.Agent.HeartbeatInterval)
	case cfg.Agent.DeltaSyncInterval <= 0:
		return fmt.Errorf("agent delta sync interval must be positive, got %d", cfg.Agent.DeltaSyncInterval)
	case cfg.SnipeIT.Timeout <= 0:
		return fmt.Errorf("snipeit timeout must be positive, got %s", cfg.SnipeIT.Timeout)
	}
	if _, err := time.Parse("15:04", cfg.Agent.FullSyncTime); err != nil {
		return fmt.Errorf("agent full sync time %q is not HH:MM", cfg.Agent.FullSyncTime)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	// Bare numbers are seconds.
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
