package db

import (
	"database/sql"
	"fmt"
)

// SchemaSQL is the complete schema for fresh installs.
// This schema reflects the current state after all migrations.
//
// Tests use this schema via GetSchemaSQL() rather than declaring their own
// tables, so a repository referencing a column that does not exist here fails
// with "no such column" at test time.
//
// When adding new columns or tables:
//  1. Add a migration in migrations.go
//  2. Update SchemaSQL here
const SchemaSQL = `
-- User preferences (key/value, values stored as text)
CREATE TABLE IF NOT EXISTS preferences (
	key TEXT PRIMARY KEY CHECK(key IN ('suppressed_domains', 'logging_enabled')),
	value TEXT NOT NULL,
	updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Decision audit log
CREATE TABLE IF NOT EXISTS decisions (
	id TEXT PRIMARY KEY,
	tab_id TEXT NOT NULL DEFAULT '',
	request_id TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL,
	new_url TEXT NOT NULL DEFAULT '',
	upgraded INTEGER NOT NULL DEFAULT 0,
	reason TEXT NOT NULL,
	decided_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_tab ON decisions(tab_id);
CREATE INDEX IF NOT EXISTS idx_decisions_decided_at ON decisions(decided_at);
`

// InitSchema creates the database schema on a fresh database and runs any
// pending migrations on an existing one.
func InitSchema(db *sql.DB) error {
	var tableCount int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableCount)
	if err != nil {
		return err
	}

	if tableCount > 0 {
		return RunMigrations(db)
	}

	// Fresh install - create modern schema directly and mark every
	// migration as applied
	if _, err := db.Exec(SchemaSQL); err != nil {
		return err
	}
	if err := createVersionTable(db); err != nil {
		return err
	}
	for _, m := range migrations {
		if _, err := db.Exec("INSERT INTO schema_version (version) VALUES (?)", m.Version); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}
	}
	return nil
}

// GetSchemaSQL returns the authoritative schema SQL for use by tests.
// Tests should use this instead of hardcoding their own schema to prevent drift.
func GetSchemaSQL() string {
	return SchemaSQL
}
