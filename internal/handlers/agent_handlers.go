package handlers

import (
	"net/http"

	"fleetd/internal/fleet"
	"fleetd/internal/models"
)

// RegisterAgent registers an agent or refreshes an existing registration.
// POST /api/v1/agents/register
func RegisterAgent(svc *fleet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.RegisterRequest
		if err := decodeJSON(w, r, &req,
			"agent_guid", "hostname", "serial", "domain", "version", "site_code"); err != nil {
			JSONError(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp, err := svc.Register(r.Context(), req, originOf(r))
		if err != nil {
			internalError(w, r, err)
			return
		}
		JSONResponse(w, resp)
	}
}

// Heartbeat records a liveness ping. Unknown agents get status "error"
// with HTTP 200 so they know to re-register.
// POST /api/v1/agents/heartbeat
func Heartbeat(svc *fleet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.HeartbeatRequest
		if err := decodeJSON(w, r, &req, "agent_guid", "version", "status"); err != nil {
			JSONError(w, err.Error(), http.StatusBadRequest)
			return
		}

		resp, err := svc.Heartbeat(r.Context(), req)
		if err != nil {
			internalError(w, r, err)
			return
		}
		JSONResponse(w, resp)
	}
}

// GetAgentConfig returns the agent's policy.
// GET /api/v1/agents/{guid}/config
func GetAgentConfig(svc *fleet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		JSONResponse(w, svc.GetConfig(r.Context(), r.PathValue("guid")))
	}
}

// CheckUpdate answers whether a newer agent build is published.
// POST /api/v1/update/check
func CheckUpdate(svc *fleet.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.UpdateCheckRequest
		if err := decodeJSON(w, r, &req, "agent_guid", "current_version"); err != nil {
			JSONError(w, err.Error(), http.StatusBadRequest)
			return
		}
		JSONResponse(w, svc.CheckUpdate(r.Context(), req))
	}
}
