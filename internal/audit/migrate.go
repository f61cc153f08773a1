package audit

import (
	"context"
	"database/sql"

	"fleetd/internal/db"
)

// Migrate creates the audit_logs table. Run after agents.Migrate.
func Migrate(ctx context.Context, conn *sql.DB) error {
	return db.RunMigrations(ctx, conn, "audit trail", []db.Migration{
		{Label: "audit_logs", SQL: `
			CREATE TABLE IF NOT EXISTS audit_logs (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				agent_id      INTEGER,
				agent_guid    TEXT,
				action        TEXT    NOT NULL,
				resource_type TEXT    NOT NULL,
				resource_id   TEXT,
				details       TEXT,
				ip_address    TEXT,
				user_agent    TEXT,
				created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (agent_id) REFERENCES agents(id)
			);`},
		{Label: "audit_logs indexes", SQL: `
			CREATE INDEX IF NOT EXISTS idx_audit_agent   ON audit_logs(agent_id);
			CREATE INDEX IF NOT EXISTS idx_audit_guid    ON audit_logs(agent_guid);
			CREATE INDEX IF NOT EXISTS idx_audit_action  ON audit_logs(action);
			CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_logs(created_at);`},
	})
}
