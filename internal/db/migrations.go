package db

import (
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// migrations is the list of all migrations in order
var migrations = []Migration{
	{
		Version: 1,
		Name:    "create_preferences_and_decisions",
		Up:      migrationV1,
	},
	{
		Version: 2,
		Name:    "add_request_id_to_decisions",
		Up:      migrationV2,
	},
}

// RunMigrations applies every migration newer than the recorded schema version.
func RunMigrations(db *sql.DB) error {
	if err := createVersionTable(db); err != nil {
		return err
	}

	// Get current schema version
	var currentVersion int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get current schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func SchemaVersion(db *sql.DB) (int, error) {
	var v int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&v)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// LatestVersion returns the version a fully migrated database reports.
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

func createVersionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_version table: %w", err)
	}
	return nil
}

// migrationV1 creates the original tables, before decisions carried request ids.
func migrationV1(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS preferences (
			key TEXT PRIMARY KEY CHECK(key IN ('suppressed_domains', 'logging_enabled')),
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS decisions (
			id TEXT PRIMARY KEY,
			tab_id TEXT NOT NULL DEFAULT '',
			url TEXT NOT NULL,
			new_url TEXT NOT NULL DEFAULT '',
			upgraded INTEGER NOT NULL DEFAULT 0,
			reason TEXT NOT NULL,
			decided_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_decisions_tab ON decisions(tab_id);
	`)
	return err
}

// migrationV2 records the browser request id alongside each decision.
func migrationV2(tx *sql.Tx) error {
	var count int
	err := tx.QueryRow("SELECT COUNT(*) FROM pragma_table_info('decisions') WHERE name = 'request_id'").Scan(&count)
	if err != nil {
		return err
	}
	if count == 0 {
		if _, err := tx.Exec("ALTER TABLE decisions ADD COLUMN request_id TEXT NOT NULL DEFAULT ''"); err != nil {
			return err
		}
	}
	_, err = tx.Exec("CREATE INDEX IF NOT EXISTS idx_decisions_decided_at ON decisions(decided_at)")
	return err
}
