package notify

import (
	"context"
	"database/sql"

	"fleetd/internal/db"
)

// Migrate creates the notification history table.
func Migrate(ctx context.Context, conn *sql.DB) error {
	return db.RunMigrations(ctx, conn, "notification history", []db.Migration{
		{Label: "notification_history", SQL: `
			CREATE TABLE IF NOT EXISTS notification_history (
				id            INTEGER PRIMARY KEY AUTOINCREMENT,
				target        TEXT    NOT NULL,
				event_type    TEXT    NOT NULL,
				agent_guid    TEXT,
				hostname      TEXT,
				message       TEXT    NOT NULL,
				status        TEXT    NOT NULL,
				error_message TEXT,
				sent_at       DATETIME,
				created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
			);`},
		{Label: "notification_history indexes", SQL: `
			CREATE INDEX IF NOT EXISTS idx_notif_history_created ON notification_history(created_at);`},
	})
}
