package inventory

import (
	"context"
	"database/sql"

	"fleetd/internal/db"
)

// Migrate creates the inventories table. Run after agents.Migrate.
func Migrate(ctx context.Context, conn *sql.DB) error {
	return db.RunMigrations(ctx, conn, "inventory history", []db.Migration{
		{Label: "inventories", SQL: `
			CREATE TABLE IF NOT EXISTS inventories (
				id              INTEGER PRIMARY KEY AUTOINCREMENT,
				agent_id        INTEGER NOT NULL,
				agent_guid      TEXT    NOT NULL,
				sync_type       TEXT    NOT NULL CHECK (sync_type IN ('delta', 'full')),
				inventory_data  TEXT    NOT NULL,
				collected_at    DATETIME NOT NULL,
				synced_at       DATETIME NOT NULL,
				snipeit_updated INTEGER NOT NULL DEFAULT 0,
				created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (agent_id) REFERENCES agents(id)
			);`},
		{Label: "inventories indexes", SQL: `
			CREATE INDEX IF NOT EXISTS idx_inventories_agent ON inventories(agent_id);
			CREATE INDEX IF NOT EXISTS idx_inventories_guid  ON inventories(agent_guid);`},
	})
}
