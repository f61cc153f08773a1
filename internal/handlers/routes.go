package handlers

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"

	"fleetd/internal/fleet"
	"fleetd/internal/inventory"
	"fleetd/internal/middleware"
	"fleetd/internal/stream"
)

// ServiceName is reported by the health and root endpoints.
const ServiceName = "fleetd"

// Deps are the collaborators the HTTP layer needs.
type Deps struct {
	DB      *sql.DB
	Fleet   *fleet.Service
	Stream  *stream.Hub
	Auth    *middleware.AdminAuth
	Limiter *middleware.RateLimiter
	Version string
}

// NewRouter builds the complete HTTP handler, middleware included.
func NewRouter(d Deps) http.Handler {
	mux := http.NewServeMux()
	limit := d.Limiter.Limit
	admin := d.Auth.Require

	// Agent API
	mux.Handle("POST /api/v1/agents/register", limit(RegisterAgent(d.Fleet)))
	mux.Handle("POST /api/v1/agents/heartbeat", limit(Heartbeat(d.Fleet)))
	mux.Handle("GET /api/v1/agents/{guid}/config", limit(GetAgentConfig(d.Fleet)))
	mux.Handle("POST /api/v1/inventory/delta", limit(SyncInventory(d.Fleet, inventory.SyncDelta)))
	mux.Handle("POST /api/v1/inventory/full", limit(SyncInventory(d.Fleet, inventory.SyncFull)))
	mux.Handle("POST /api/v1/update/check", limit(CheckUpdate(d.Fleet)))

	// Operator API
	mux.Handle("GET /api/v1/admin/agents", admin(ListAgents(d.DB)))
	mux.Handle("GET /api/v1/admin/agents/{guid}", admin(GetAgent(d.DB)))
	mux.Handle("GET /api/v1/admin/agents/{guid}/snapshots", admin(ListAgentSnapshots(d.DB)))
	mux.Handle("GET /api/v1/admin/audit", admin(ListAudit(d.DB)))
	mux.Handle("GET /api/v1/admin/notifications", admin(ListNotifications(d.DB)))
	if d.Stream != nil {
		mux.Handle("GET /api/v1/admin/stream", admin(http.HandlerFunc(d.Stream.HandleConnection)))
	}

	mux.HandleFunc("GET /healthz", Health(d.DB))
	mux.HandleFunc("GET /{$}", Root(d.Version))

	return middleware.Logging(middleware.CORS(mux))
}

// Health reports liveness and database reachability.
// GET /healthz
func Health(conn *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := conn.PingContext(r.Context()); err != nil {
			log.Printf("⚠️  Health check failed: %v", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy", "service": ServiceName})
			return
		}
		JSONResponse(w, map[string]string{"status": "healthy", "service": ServiceName})
	}
}

// Root describes the service.
// GET /
func Root(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		JSONResponse(w, map[string]string{
			"message": "fleetd agent backend",
			"version": version,
		})
	}
}
