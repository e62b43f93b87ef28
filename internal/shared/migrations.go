package shared

import (
	"database/sql"
	"fmt"
	"strings"
)

// Migration represents a database migration with up and down SQL.
type Migration struct {
	Version int
	Up      string
	Down    string
}

// migrations holds the full schema history, ordered by version.
//
// The import tree is collection → playlist import → track → search → result.
// Deleting an import cascades through its owned records.
var migrations = []Migration{
	{
		Version: 0,
		Up: `
			CREATE TABLE import_collections (
				uuid TEXT PRIMARY KEY,
				created_at TIMESTAMP NOT NULL
			);

			CREATE TABLE playlist_imports (
				uuid TEXT PRIMARY KEY,
				collection_uuid TEXT NOT NULL REFERENCES import_collections(uuid) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				source_id TEXT NOT NULL,
				source_name TEXT NOT NULL,
				source_service TEXT NOT NULL,
				source_user_id TEXT,
				destination_id TEXT,
				destination_name TEXT,
				created_at TIMESTAMP NOT NULL
			);

			CREATE TABLE tracks (
				uuid TEXT PRIMARY KEY,
				import_uuid TEXT NOT NULL REFERENCES playlist_imports(uuid) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				service_id TEXT NOT NULL,
				name TEXT NOT NULL,
				artist TEXT NOT NULL,
				album TEXT NOT NULL,
				album_cover_url TEXT,
				duration INTEGER NOT NULL,
				service TEXT NOT NULL,
				status INTEGER NOT NULL DEFAULT 0,
				error_description TEXT,
				matched_service TEXT,
				matched_track_id TEXT,
				matched_track_name TEXT,
				matched_artist TEXT,
				matched_album TEXT,
				matched_cover_url TEXT,
				matched_duration INTEGER,
				matched_streamable INTEGER
			);

			CREATE TABLE searches (
				uuid TEXT PRIMARY KEY,
				track_uuid TEXT NOT NULL REFERENCES tracks(uuid) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				query TEXT NOT NULL,
				searched_at TIMESTAMP NOT NULL
			);

			CREATE TABLE search_results (
				uuid TEXT PRIMARY KEY,
				search_uuid TEXT NOT NULL REFERENCES searches(uuid) ON DELETE CASCADE,
				position INTEGER NOT NULL,
				service TEXT NOT NULL,
				track_id TEXT NOT NULL,
				track_name TEXT NOT NULL,
				artist TEXT NOT NULL,
				album TEXT NOT NULL,
				album_cover_url TEXT,
				duration INTEGER NOT NULL,
				is_streamable INTEGER NOT NULL
			);

			CREATE TABLE app_state (
				key TEXT PRIMARY KEY,
				value TEXT NOT NULL
			);

			CREATE INDEX idx_playlist_imports_collection ON playlist_imports(collection_uuid, position);
			CREATE INDEX idx_tracks_import ON tracks(import_uuid, position);
			CREATE INDEX idx_searches_track ON searches(track_uuid, position);
			CREATE INDEX idx_search_results_search ON search_results(search_uuid, position);
		`,
		Down: `
			DROP INDEX IF EXISTS idx_search_results_search;
			DROP INDEX IF EXISTS idx_searches_track;
			DROP INDEX IF EXISTS idx_tracks_import;
			DROP INDEX IF EXISTS idx_playlist_imports_collection;
			DROP TABLE IF EXISTS app_state;
			DROP TABLE IF EXISTS search_results;
			DROP TABLE IF EXISTS searches;
			DROP TABLE IF EXISTS tracks;
			DROP TABLE IF EXISTS playlist_imports;
			DROP TABLE IF EXISTS import_collections;
		`,
	},
}

// RunMigrations executes all pending migrations on the database.
// Creates a schema_migrations table to track applied migrations.
func RunMigrations(db *sql.DB) error {
	if err := createMigrationsTable(db); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	for _, migration := range migrations {
		var exists bool
		err := db.QueryRow("SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = ?)", migration.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check migration status: %w", err)
		}

		if !exists {
			if err := applyMigration(db, migration); err != nil {
				return fmt.Errorf("failed to apply migration %d: %w", migration.Version, err)
			}
		}
	}

	return nil
}

// RollbackMigration rolls back the most recent migration.
func RollbackMigration(db *sql.DB) error {
	var version sql.NullInt64
	err := db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return fmt.Errorf("failed to check migrations: %w", err)
	}

	if !version.Valid {
		return fmt.Errorf("no migrations to rollback")
	}

	for _, migration := range migrations {
		if migration.Version == int(version.Int64) {
			return rollbackMigration(db, migration)
		}
	}

	return fmt.Errorf("migration version %d not found", version.Int64)
}

func createMigrationsTable(db *sql.DB) error {
	query := `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := db.Exec(query)
	return err
}

// applyMigration executes a migration's up SQL and records it.
func applyMigration(db *sql.DB, migration Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := execStatements(tx, migration.Up); err != nil {
		return err
	}

	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", migration.Version); err != nil {
		return err
	}

	return tx.Commit()
}

// rollbackMigration executes a migration's down SQL and removes the record.
func rollbackMigration(db *sql.DB, migration Migration) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := execStatements(tx, migration.Down); err != nil {
		return err
	}

	if _, err := tx.Exec("DELETE FROM schema_migrations WHERE version = ?", migration.Version); err != nil {
		return err
	}

	return tx.Commit()
}

// execStatements runs each semicolon-separated statement in order.
func execStatements(tx *sql.Tx, script string) error {
	for _, stmt := range strings.Split(script, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w\nStatement: %s", err, stmt)
		}
	}
	return nil
}
