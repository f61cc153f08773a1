package handlers

import (
	"database/sql"
	"net/http"

	"fleetd/internal/agents"
	"fleetd/internal/audit"
	"fleetd/internal/inventory"
	"fleetd/internal/notify"
)

// ─── Operator read APIs ──────────────────────────────────────────────────────

// ListAgents returns every known agent.
// GET /api/v1/admin/agents
func ListAgents(conn *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := agents.ListIdentities(r.Context(), conn)
		if err != nil {
			internalError(w, r, err)
			return
		}
		if list == nil {
			list = []agents.Identity{}
		}
		online := 0
		for _, a := range list {
			if a.IsOnline {
				online++
			}
		}
		JSONResponse(w, map[string]any{
			"agents": list,
			"total":  len(list),
			"online": online,
		})
	}
}

// GetAgent returns one agent with its recent heartbeats.
// GET /api/v1/admin/agents/{guid}
func GetAgent(conn *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		guid := r.PathValue("guid")
		a, err := agents.GetIdentityByGUID(r.Context(), conn, guid)
		if err != nil {
			internalError(w, r, err)
			return
		}
		if a == nil {
			JSONError(w, "Agent not found", http.StatusNotFound)
			return
		}
		hbs, err := agents.ListHeartbeats(r.Context(), conn, guid, queryInt(r, "heartbeats", 20))
		if err != nil {
			internalError(w, r, err)
			return
		}
		if hbs == nil {
			hbs = []agents.HeartbeatEvent{}
		}
		JSONResponse(w, map[string]any{
			"agent":      a,
			"heartbeats": hbs,
		})
	}
}

// ListAgentSnapshots returns the newest inventory snapshots for an agent.
// GET /api/v1/admin/agents/{guid}/snapshots?limit=N
func ListAgentSnapshots(conn *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snaps, err := inventory.ListSnapshots(r.Context(), conn, r.PathValue("guid"), queryInt(r, "limit", 10))
		if err != nil {
			internalError(w, r, err)
			return
		}
		if snaps == nil {
			snaps = []inventory.Snapshot{}
		}
		JSONResponse(w, snaps)
	}
}

// ListAudit returns audit events, newest first.
// GET /api/v1/admin/audit?guid=&action=&limit=
func ListAudit(conn *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		evs, err := audit.List(r.Context(), conn, audit.Filter{
			GUID:   q.Get("guid"),
			Action: audit.Action(q.Get("action")),
			Limit:  queryInt(r, "limit", 200),
		})
		if err != nil {
			internalError(w, r, err)
			return
		}
		if evs == nil {
			evs = []audit.Event{}
		}
		JSONResponse(w, evs)
	}
}

// ListNotifications returns recent notification delivery attempts.
// GET /api/v1/admin/notifications?limit=N
func ListNotifications(conn *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		recs, err := notify.RecentHistory(r.Context(), conn, queryInt(r, "limit", 50))
		if err != nil {
			internalError(w, r, err)
			return
		}
		if recs == nil {
			recs = []notify.Record{}
		}
		JSONResponse(w, recs)
	}
}
