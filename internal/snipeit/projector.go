package snipeit

import (
	"context"
	"log"
	"strings"
)

// Projector mirrors agent inventory into Snipe-IT with search-then-upsert
// semantics. It performs no retries.
type Projector struct {
	client   *Client
	defaults Defaults
}

// NewProjector creates a projector using client and the given
// classification defaults.
func NewProjector(client *Client, defaults Defaults) *Projector {
	return &Projector{client: client, defaults: defaults}
}

// Project searches for an existing record by serial then hostname, and
// updates it or creates a new one. It returns true only when the write
// succeeded; every failure is logged and reported as false.
func (p *Projector) Project(ctx context.Context, guid string, payload map[string]any) (applied bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[SnipeIT] Projection for %s panicked: %v", guid, r)
			applied = false
		}
	}()

	identity := section(payload, "device_identity")
	serial := str(identity, "serial_number")
	hostname := str(identity, "hostname")

	existing, err := p.client.SearchByIdentity(ctx, serial, hostname)
	if err != nil {
		log.Printf("[SnipeIT] Search failed for %s: %v", guid, err)
		return false
	}

	asset := MapInventory(payload, p.defaults)

	if existing != nil {
		// Keep the tag the record was created with.
		asset.AssetTag = ""
		if err := p.client.UpdateHardware(ctx, existing.ID, asset); err != nil {
			log.Printf("[SnipeIT] Failed to update hardware %d for %s: %v", existing.ID, guid, err)
			return false
		}
		log.Printf("[SnipeIT] Updated hardware %d for %s", existing.ID, guid)
		return true
	}

	id, err := p.client.CreateHardware(ctx, asset)
	if err != nil {
		log.Printf("[SnipeIT] Failed to create hardware for %s: %v", guid, err)
		return false
	}
	log.Printf("[SnipeIT] Created hardware %d (%s) for %s", id, asset.AssetTag, guid)
	return true
}

// ResolveDefaults replaces fallback ids with the ids of the named model,
// category and status label when those names are set and found. Lookup
// failures are logged and leave the fallback in place.
func ResolveDefaults(ctx context.Context, c *Client, fallback Defaults, modelName, categoryName, statusName string) Defaults {
	d := fallback
	resolve := func(kind, name string, fetch func(context.Context) ([]Lookup, error), target *int) {
		if name == "" {
			return
		}
		rows, err := fetch(ctx)
		if err != nil {
			log.Printf("[SnipeIT] Could not list %s: %v", kind, err)
			return
		}
		for _, row := range rows {
			if strings.EqualFold(row.Name, name) {
				*target = row.ID
				log.Printf("[SnipeIT] Using %s %q (id %d)", kind, row.Name, row.ID)
				return
			}
		}
		log.Printf("[SnipeIT] No %s named %q, keeping id %d", kind, name, *target)
	}

	resolve("model", modelName, c.ListModels, &d.ModelID)
	resolve("category", categoryName, c.ListCategories, &d.CategoryID)
	resolve("status label", statusName, c.ListStatusLabels, &d.StatusID)
	return d
}
