package snipeit

import (
	"encoding/json"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decode round-trips through JSON so tests see the same shapes an HTTP
// handler would hand the mapper.
func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

const sampleInventory = `{
	"collected_at": "2025-03-01T12:00:00Z",
	"device_identity": {
		"hostname": "TEST-PC",
		"serial_number": "ABC123456",
		"ou": "OU=Computers,DC=test,DC=local",
		"logged_in_user": "TEST\\jdoe"
	},
	"hardware": {
		"cpu": {"name": "Intel Core i7-11700"},
		"memory": {"total_gb": 16},
		"disks": [{"capacity_gb": 500.0, "type": "SSD"}]
	},
	"software": {"os_name": "Microsoft Windows 11 Pro", "os_version": "10.0.22621"},
	"network": {"adapters": [{"name": "Ethernet", "mac_address": "00:11:22:33:44:55", "is_connected": true}]},
	"bios": {"version": "1.0.0", "tpm_enabled": true, "secure_boot": true},
	"usage": {"uptime_hours": 72.5},
	"tagging": {"site_code": "TEST", "location": "Office Building A"}
}`

func TestMapInventory_FullPayload(t *testing.T) {
	asset := MapInventory(decode(t, sampleInventory), Defaults{StatusID: 2, ModelID: 3, CategoryID: 4})

	assert.Equal(t, "TEST-PC", asset.Name)
	assert.Equal(t, "ABC123456", asset.Serial)
	assert.Regexp(t, regexp.MustCompile(`^TEST-[0-9A-F]{4}$`), asset.AssetTag)
	assert.Equal(t, "Managed by fleetd agent\nLast Sync: 2025-03-01T12:00:00Z", asset.Notes)
	assert.Equal(t, 2, asset.StatusID)
	assert.Equal(t, 3, asset.ModelID)
	assert.Equal(t, 4, asset.CategoryID)

	cf := asset.CustomFields
	assert.Equal(t, "Intel Core i7-11700", cf.CPU)
	assert.Equal(t, "16.0 GB", cf.RAM)
	assert.Equal(t, "500.0 GB (SSD)", cf.Disk)
	assert.Equal(t, "Microsoft Windows 11 Pro 10.0.22621", cf.OSBuild)
	assert.Equal(t, "00:11:22:33:44:55", cf.MACAddress)
	assert.InDelta(t, 72.5, cf.UptimeHours, 0.001)
	assert.Equal(t, "Office Building A", cf.Location)
	assert.Equal(t, "OU=Computers,DC=test,DC=local", cf.OU)
	assert.Equal(t, `TEST\jdoe`, cf.LoggedInUser)
	assert.Equal(t, "1.0.0", cf.BIOSVersion)
	assert.True(t, cf.TPMEnabled)
	assert.True(t, cf.SecureBoot)
}

func TestMapInventory_EmptyPayload(t *testing.T) {
	asset := MapInventory(map[string]any{}, Defaults{StatusID: 1, ModelID: 1, CategoryID: 1})

	assert.Equal(t, "Unknown", asset.Name)
	assert.Empty(t, asset.Serial)
	assert.Regexp(t, regexp.MustCompile(`^UNKNOWN-[0-9A-F]{4}$`), asset.AssetTag)
	assert.Equal(t, "Managed by fleetd agent\nLast Sync: Unknown", asset.Notes)
	assert.Equal(t, "0.0 GB", asset.CustomFields.RAM)
	assert.Equal(t, "Unknown", asset.CustomFields.Disk)
	assert.Empty(t, asset.CustomFields.MACAddress)
	assert.Empty(t, asset.CustomFields.OSBuild)
	assert.False(t, asset.CustomFields.TPMEnabled)
}

func TestMapInventory_WrongTypesFallBack(t *testing.T) {
	payload := decode(t, `{
		"device_identity": "not-an-object",
		"hardware": {"cpu": 7, "memory": {"total_gb": "lots"}, "disks": "none"},
		"network": {"adapters": [1, "x", {"mac_address": "AA"}]},
		"bios": {"tpm_enabled": "yes"}
	}`)

	asset := MapInventory(payload, Defaults{})
	assert.Equal(t, "Unknown", asset.Name)
	assert.Empty(t, asset.CustomFields.CPU)
	assert.Equal(t, "0.0 GB", asset.CustomFields.RAM)
	assert.Equal(t, "Unknown", asset.CustomFields.Disk)
	assert.Equal(t, "AA", asset.CustomFields.MACAddress)
	assert.False(t, asset.CustomFields.TPMEnabled)
}

func TestMapInventory_AssetTagChangesEachCall(t *testing.T) {
	payload := decode(t, sampleInventory)
	seen := make(map[string]bool)
	for i := 0; i < 5; i++ {
		seen[MapInventory(payload, Defaults{}).AssetTag] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestDiskSummary(t *testing.T) {
	tests := []struct {
		name  string
		disks string
		want  string
	}{
		{"none", `[]`, "Unknown"},
		{"ssd and hdd", `[{"capacity_gb": 500, "type": "SSD"}, {"capacity_gb": 1000, "type": "HDD"}]`, "1500.0 GB (SSD, HDD)"},
		{"duplicate types keep first order", `[{"capacity_gb": 1, "type": "HDD"}, {"capacity_gb": 2, "type": "SSD"}, {"capacity_gb": 3, "type": "HDD"}]`, "6.0 GB (HDD, SSD)"},
		{"missing type", `[{"capacity_gb": 256.4}]`, "256.4 GB (Unknown)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := decode(t, `{"disks": `+tt.disks+`}`)
			assert.Equal(t, tt.want, DiskSummary(list(m, "disks")))
		})
	}
}

func TestPrimaryMAC(t *testing.T) {
	tests := []struct {
		name     string
		adapters string
		want     string
	}{
		{"connected wins", `[{"mac_address": "A", "is_connected": false}, {"mac_address": "B", "is_connected": true}]`, "B"},
		{"none connected picks first", `[{"mac_address": "A"}, {"mac_address": "B"}]`, "A"},
		{"empty", `[]`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := decode(t, `{"adapters": `+tt.adapters+`}`)
			assert.Equal(t, tt.want, PrimaryMAC(list(m, "adapters")))
		})
	}
}
