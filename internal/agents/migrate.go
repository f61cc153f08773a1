package agents

import (
	"context"
	"database/sql"

	"fleetd/internal/db"
)

// Migrate creates the identity and heartbeat tables.
func Migrate(ctx context.Context, conn *sql.DB) error {
	return db.RunMigrations(ctx, conn, "agent identity schema", []db.Migration{
		{Label: "agents", SQL: `
			CREATE TABLE IF NOT EXISTS agents (
				id                INTEGER PRIMARY KEY AUTOINCREMENT,
				agent_guid        TEXT    NOT NULL UNIQUE,
				hostname          TEXT    NOT NULL,
				serial_number     TEXT    NOT NULL,
				domain            TEXT,
				site_code         TEXT    NOT NULL,
				device_token      TEXT    NOT NULL UNIQUE,
				version           TEXT    NOT NULL,
				status            TEXT    NOT NULL DEFAULT 'active',
				is_online         INTEGER NOT NULL DEFAULT 1,
				last_heartbeat    DATETIME,
				last_sync         DATETIME,
				created_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at        DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);`},
		{Label: "agents indexes", SQL: `
			CREATE INDEX IF NOT EXISTS idx_agents_serial   ON agents(serial_number);
			CREATE INDEX IF NOT EXISTS idx_agents_hostname ON agents(hostname);
			CREATE INDEX IF NOT EXISTS idx_agents_online   ON agents(is_online);`},

		{Label: "heartbeats", SQL: `
			CREATE TABLE IF NOT EXISTS heartbeats (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				agent_id    INTEGER NOT NULL,
				agent_guid  TEXT    NOT NULL,
				status      TEXT    NOT NULL,
				version     TEXT    NOT NULL,
				last_sync   DATETIME,
				received_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
				FOREIGN KEY (agent_id) REFERENCES agents(id)
			);`},
		{Label: "heartbeats indexes", SQL: `
			CREATE INDEX IF NOT EXISTS idx_heartbeats_agent ON heartbeats(agent_id);
			CREATE INDEX IF NOT EXISTS idx_heartbeats_guid  ON heartbeats(agent_guid);`},
	})
}
