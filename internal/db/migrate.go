package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migrate applies every schema statement in order. Statements are written to
// be re-runnable; an ALTER that adds an existing column is skipped.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			if strings.Contains(err.Error(), "duplicate column name") {
				continue
			}
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	// The stored session. At most one row, pinned to id 1.
	`CREATE TABLE IF NOT EXISTS credentials (
		id                INTEGER PRIMARY KEY CHECK (id = 1),
		api_url           TEXT    NOT NULL,
		token             TEXT    NOT NULL,
		user_id           INTEGER NOT NULL,
		email             TEXT    NOT NULL,
		role              TEXT    NOT NULL CHECK (role IN ('Field Officer', 'Monitoring Officer', 'Project Manager')),
		active_project_id INTEGER,
		updated_at        TEXT    NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS notices (
		id          TEXT    PRIMARY KEY,
		project_id  INTEGER NOT NULL,
		message     TEXT    NOT NULL,
		received_at TEXT    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notices_project_received ON notices(project_id, received_at)`,

	// Added after the first release; older databases lack the column.
	`ALTER TABLE notices ADD COLUMN seen INTEGER NOT NULL DEFAULT 0`,
}
