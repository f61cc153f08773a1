package handlers

import (
	"fmt"
	"net/http"

	"fleetd/internal/fleet"
	"fleetd/internal/inventory"
	"fleetd/internal/models"
)

// SyncInventory accepts inventory submissions on the route for want. A
// body whose sync_type does not match the route is rejected before
// anything is stored.
// POST /api/v1/inventory/delta
// POST /api/v1/inventory/full
func SyncInventory(svc *fleet.Service, want inventory.SyncType) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.InventorySyncRequest
		if err := decodeJSON(w, r, &req, "agent_guid", "sync_type", "inventory"); err != nil {
			JSONError(w, err.Error(), http.StatusBadRequest)
			return
		}

		syncType, err := inventory.ParseSyncType(req.SyncType)
		if err != nil || syncType != want {
			JSONError(w, fmt.Sprintf("Sync type must be '%s'", want), http.StatusBadRequest)
			return
		}

		resp, err := svc.SyncInventory(r.Context(), req, syncType, originOf(r))
		if err != nil {
			internalError(w, r, err)
			return
		}
		JSONResponse(w, resp)
	}
}
