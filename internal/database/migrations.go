package database

import (
	"fmt"

	"github.com/rs/zerolog/log"
)

// migrate creates or updates the schema. Statements are idempotent so the
// whole set runs on every startup.
func (db *DB) migrate() error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vessels (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			operator TEXT,
			gross_tonnage INTEGER NOT NULL,
			propulsion_power REAL NOT NULL,
			cruising_speed REAL NOT NULL,
			max_speed REAL NOT NULL,
			length REAL NOT NULL,
			beam REAL NOT NULL,
			year_built INTEGER,
			passenger_capacity INTEGER,
			crew INTEGER,
			engine_type TEXT,
			builder TEXT,
			fuel_type_id INTEGER NOT NULL,
			fuel_curve TEXT,
			last_synced_at %s
		)`, db.timestampType()),

		`CREATE INDEX IF NOT EXISTS idx_vessels_name ON vessels(LOWER(name))`,

		`CREATE TABLE IF NOT EXISTS fuel_types (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL
		)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS import_history (
			id %s,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			imported INTEGER NOT NULL DEFAULT 0,
			updated INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			error_message TEXT,
			started_at %s NOT NULL,
			completed_at %s
		)`, db.autoIncrement(), db.timestampType(), db.timestampType()),

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS user_llm_config (
			id %s,
			provider TEXT NOT NULL,
			encrypted_api_key TEXT NOT NULL,
			model TEXT,
			updated_at %s NOT NULL
		)`, db.autoIncrement(), db.timestampType()),
	}

	for _, stmt := range stmts {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("migration failed: %w\nstatement: %s", err, stmt)
		}
	}

	log.Debug().Int("statements", len(stmts)).Msg("migrations applied")
	return nil
}
