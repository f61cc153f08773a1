package snipeit

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const (
	defaultName     = "Unknown"
	defaultSiteCode = "UNKNOWN"
	notesPrefix     = "Managed by fleetd agent"
)

// Defaults are the classification ids applied to every mapped asset.
type Defaults struct {
	StatusID   int
	ModelID    int
	CategoryID int
}

// Asset is the hardware record sent to Snipe-IT. AssetTag is omitted from
// the request body when empty.
type Asset struct {
	Name         string       `json:"name"`
	Serial       string       `json:"serial"`
	AssetTag     string       `json:"asset_tag,omitempty"`
	Notes        string       `json:"notes"`
	StatusID     int          `json:"status_id"`
	ModelID      int          `json:"model_id"`
	CategoryID   int          `json:"category_id"`
	CustomFields CustomFields `json:"custom_fields"`
}

// CustomFields carries the flattened inventory details.
type CustomFields struct {
	CPU          string  `json:"cpu"`
	RAM          string  `json:"ram"`
	Disk         string  `json:"disk"`
	OSBuild      string  `json:"os_build"`
	MACAddress   string  `json:"mac_address"`
	UptimeHours  float64 `json:"uptime_hours"`
	Location     string  `json:"location"`
	OU           string  `json:"ou"`
	LoggedInUser string  `json:"logged_in_user"`
	BIOSVersion  string  `json:"bios_version"`
	TPMEnabled   bool    `json:"tpm_enabled"`
	SecureBoot   bool    `json:"secure_boot"`
}

// MapInventory converts an agent inventory document into an Asset. Missing
// sections and fields of the wrong type fall back to empty values.
func MapInventory(payload map[string]any, d Defaults) Asset {
	identity := section(payload, "device_identity")
	hardware := section(payload, "hardware")
	software := section(payload, "software")
	network := section(payload, "network")
	bios := section(payload, "bios")
	usage := section(payload, "usage")
	tagging := section(payload, "tagging")

	name := str(identity, "hostname")
	if name == "" {
		name = defaultName
	}
	siteCode := str(tagging, "site_code")
	if siteCode == "" {
		siteCode = defaultSiteCode
	}

	return Asset{
		Name:       name,
		Serial:     str(identity, "serial_number"),
		AssetTag:   AssetTag(siteCode),
		Notes:      notes(payload),
		StatusID:   d.StatusID,
		ModelID:    d.ModelID,
		CategoryID: d.CategoryID,
		CustomFields: CustomFields{
			CPU:          str(section(hardware, "cpu"), "name"),
			RAM:          fmt.Sprintf("%.1f GB", num(section(hardware, "memory"), "total_gb")),
			Disk:         DiskSummary(list(hardware, "disks")),
			OSBuild:      strings.TrimSpace(str(software, "os_name") + " " + str(software, "os_version")),
			MACAddress:   PrimaryMAC(list(network, "adapters")),
			UptimeHours:  num(usage, "uptime_hours"),
			Location:     str(tagging, "location"),
			OU:           str(identity, "ou"),
			LoggedInUser: str(identity, "logged_in_user"),
			BIOSVersion:  str(bios, "version"),
			TPMEnabled:   boolean(bios, "tpm_enabled"),
			SecureBoot:   boolean(bios, "secure_boot"),
		},
	}
}

// AssetTag builds "<site>-XXXX" with a random uppercase suffix.
func AssetTag(siteCode string) string {
	return siteCode + "-" + strings.ToUpper(uuid.NewString()[:4])
}

// DiskSummary renders total capacity and the distinct disk types in the
// order first seen, e.g. "1500.0 GB (SSD, HDD)".
func DiskSummary(disks []map[string]any) string {
	if len(disks) == 0 {
		return "Unknown"
	}

	var total float64
	var types []string
	seen := make(map[string]bool)
	for _, disk := range disks {
		total += num(disk, "capacity_gb")
		t := str(disk, "type")
		if t == "" {
			t = "Unknown"
		}
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	return fmt.Sprintf("%.1f GB (%s)", total, strings.Join(types, ", "))
}

// PrimaryMAC returns the MAC of the first connected adapter, else of the
// first adapter, else "".
func PrimaryMAC(adapters []map[string]any) string {
	for _, a := range adapters {
		if boolean(a, "is_connected") {
			return str(a, "mac_address")
		}
	}
	if len(adapters) > 0 {
		return str(adapters[0], "mac_address")
	}
	return ""
}

func notes(payload map[string]any) string {
	collected := "Unknown"
	if v, ok := payload["collected_at"]; ok && v != nil {
		collected = fmt.Sprint(v)
	}
	return notesPrefix + "\nLast Sync: " + collected
}

// ─── Loose accessors over decoded JSON ───────────────────────────────────────

func section(m map[string]any, key string) map[string]any {
	if v, ok := m[key].(map[string]any); ok {
		return v
	}
	return nil
}

func list(m map[string]any, key string) []map[string]any {
	raw, ok := m[key].([]any)
	if !ok {
		if typed, ok := m[key].([]map[string]any); ok {
			return typed
		}
		return nil
	}
	out := make([]map[string]any, 0, len(raw))
	for _, item := range raw {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func str(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}

func num(m map[string]any, key string) float64 {
	switch v := m[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return 0
	}
}

func boolean(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}
