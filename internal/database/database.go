// Package database is the local cache and audit store: the vessel catalog
// mirrored from the upstream API, fuel types, import history, and stored
// LLM credentials. SQLite by default, PostgreSQL when configured.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nauticalflow/vessel-manager/internal/config"
	"github.com/nauticalflow/vessel-manager/internal/models"
	"github.com/rs/zerolog/log"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// DB provides the data access layer
type DB struct {
	conn   *sql.DB
	driver string
}

// New creates a new database connection based on config
func New(cfg *config.Config) (*DB, error) {
	var conn *sql.DB
	var err error

	switch cfg.DBDriver {
	case "sqlite":
		// Ensure directory exists
		dir := filepath.Dir(cfg.DBPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
		conn, err = sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_foreign_keys=on")
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		conn.SetMaxOpenConns(1) // SQLite is single-writer
	case "postgres":
		if cfg.DBURL == "" {
			return nil, fmt.Errorf("DATABASE_URL required for postgres driver")
		}
		conn, err = sql.Open("pgx", cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("opening postgres: %w", err)
		}
		conn.SetMaxOpenConns(10)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.DBDriver)
	}

	if err := conn.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	db := &DB{conn: conn, driver: cfg.DBDriver}

	if err := db.migrate(); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	log.Info().Str("driver", cfg.DBDriver).Msg("database connected")
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// --- Vessel Cache ---

// UpsertVessel stores or refreshes one cached ship record. The curve is
// serialized to JSON; the upstream id is the primary key.
func (db *DB) UpsertVessel(ctx context.Context, ship *models.CruiseShip) error {
	curveJSON, err := json.Marshal(ship.FuelConsumptionCurve)
	if err != nil {
		return fmt.Errorf("serializing curve: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO vessels (id, name, operator, gross_tonnage, propulsion_power,
			cruising_speed, max_speed, length, beam, year_built, passenger_capacity,
			crew, engine_type, builder, fuel_type_id, fuel_curve, last_synced_at)
		VALUES (%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s)
		%s`,
		db.ph(1), db.ph(2), db.ph(3), db.ph(4), db.ph(5), db.ph(6), db.ph(7),
		db.ph(8), db.ph(9), db.ph(10), db.ph(11), db.ph(12), db.ph(13), db.ph(14),
		db.ph(15), db.ph(16), db.ph(17),
		db.onConflictUpdate("id", `
			name=excluded.name, operator=excluded.operator,
			gross_tonnage=excluded.gross_tonnage, propulsion_power=excluded.propulsion_power,
			cruising_speed=excluded.cruising_speed, max_speed=excluded.max_speed,
			length=excluded.length, beam=excluded.beam,
			year_built=excluded.year_built, passenger_capacity=excluded.passenger_capacity,
			crew=excluded.crew, engine_type=excluded.engine_type, builder=excluded.builder,
			fuel_type_id=excluded.fuel_type_id, fuel_curve=excluded.fuel_curve,
			last_synced_at=excluded.last_synced_at`))

	_, err = db.conn.ExecContext(ctx, query,
		ship.ID, ship.Name, ship.Operator, ship.GrossTonnage, ship.PropulsionPower,
		ship.CruisingSpeed, ship.MaxSpeed, ship.Length, ship.Beam,
		ship.YearBuilt, ship.PassengerCapacity, ship.Crew,
		ship.EngineType, ship.Builder, ship.FuelTypeID, string(curveJSON), time.Now().UTC())
	return err
}

// GetAllVessels returns the cached catalog with fuel type names joined.
func (db *DB) GetAllVessels(ctx context.Context) ([]models.CruiseShip, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT v.id, v.name, v.operator, v.gross_tonnage, v.propulsion_power,
			v.cruising_speed, v.max_speed, v.length, v.beam, v.year_built,
			v.passenger_capacity, v.crew, v.engine_type, v.builder,
			v.fuel_type_id, v.fuel_curve, v.last_synced_at,
			COALESCE(f.name, '')
		FROM vessels v
		LEFT JOIN fuel_types f ON f.id = v.fuel_type_id
		ORDER BY v.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ships []models.CruiseShip
	for rows.Next() {
		ship, err := scanVessel(rows)
		if err != nil {
			return nil, err
		}
		ships = append(ships, ship)
	}
	return ships, rows.Err()
}

// GetVesselByName fetches one cached ship, nil when absent. Name matching
// is case-insensitive, same as import duplicate detection.
func (db *DB) GetVesselByName(ctx context.Context, name string) (*models.CruiseShip, error) {
	row := db.conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT v.id, v.name, v.operator, v.gross_tonnage, v.propulsion_power,
			v.cruising_speed, v.max_speed, v.length, v.beam, v.year_built,
			v.passenger_capacity, v.crew, v.engine_type, v.builder,
			v.fuel_type_id, v.fuel_curve, v.last_synced_at,
			COALESCE(f.name, '')
		FROM vessels v
		LEFT JOIN fuel_types f ON f.id = v.fuel_type_id
		WHERE LOWER(v.name) = LOWER(%s)`, db.ph(1)), name)

	ship, err := scanVessel(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ship, nil
}

// GetVesselCount returns the number of cached ships.
func (db *DB) GetVesselCount(ctx context.Context) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM vessels").Scan(&count)
	return count, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVessel(r rowScanner) (models.CruiseShip, error) {
	var ship models.CruiseShip
	var operator, engineType, builder, curveJSON sql.NullString
	var yearBuilt, passengerCapacity, crew sql.NullInt64
	var lastSynced sql.NullTime

	err := r.Scan(&ship.ID, &ship.Name, &operator, &ship.GrossTonnage,
		&ship.PropulsionPower, &ship.CruisingSpeed, &ship.MaxSpeed,
		&ship.Length, &ship.Beam, &yearBuilt, &passengerCapacity, &crew,
		&engineType, &builder, &ship.FuelTypeID, &curveJSON, &lastSynced,
		&ship.FuelTypeName)
	if err != nil {
		return ship, err
	}

	ship.Operator = operator.String
	ship.EngineType = engineType.String
	ship.Builder = builder.String
	if yearBuilt.Valid {
		v := int(yearBuilt.Int64)
		ship.YearBuilt = &v
	}
	if passengerCapacity.Valid {
		v := int(passengerCapacity.Int64)
		ship.PassengerCapacity = &v
	}
	if crew.Valid {
		v := int(crew.Int64)
		ship.Crew = &v
	}
	if lastSynced.Valid {
		t := lastSynced.Time
		ship.LastSyncedAt = &t
	}
	if curveJSON.Valid && curveJSON.String != "" {
		if err := json.Unmarshal([]byte(curveJSON.String), &ship.FuelConsumptionCurve); err != nil {
			return ship, fmt.Errorf("parsing stored curve for %q: %w", ship.Name, err)
		}
	}
	return ship, nil
}

// --- Fuel Types ---

// ReplaceFuelTypes swaps the cached fuel type catalog for the given one.
func (db *DB) ReplaceFuelTypes(ctx context.Context, fuelTypes []models.FuelType) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM fuel_types"); err != nil {
		return err
	}
	for _, ft := range fuelTypes {
		query := fmt.Sprintf("INSERT INTO fuel_types (id, name) VALUES (%s, %s)", db.ph(1), db.ph(2))
		if _, err := tx.ExecContext(ctx, query, ft.ID, ft.Name); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (db *DB) GetAllFuelTypes(ctx context.Context) ([]models.FuelType, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT id, name FROM fuel_types ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fuelTypes []models.FuelType
	for rows.Next() {
		var ft models.FuelType
		if err := rows.Scan(&ft.ID, &ft.Name); err != nil {
			return nil, err
		}
		fuelTypes = append(fuelTypes, ft)
	}
	return fuelTypes, rows.Err()
}

// --- Import History ---

// InsertImportHistory opens an audit row and returns its id.
func (db *DB) InsertImportHistory(ctx context.Context, kind string) (int, error) {
	query := fmt.Sprintf(
		"INSERT INTO import_history (kind, status, started_at) VALUES (%s, %s, %s)",
		db.ph(1), db.ph(2), db.ph(3))

	if db.driver == "postgres" {
		var id int
		err := db.conn.QueryRowContext(ctx, query+" RETURNING id", kind, "running", time.Now().UTC()).Scan(&id)
		return id, err
	}

	res, err := db.conn.ExecContext(ctx, query, kind, "running", time.Now().UTC())
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	return int(id), err
}

// CompleteImportHistory closes an audit row with its final counters.
func (db *DB) CompleteImportHistory(ctx context.Context, id int, status string, summary models.ImportSummary, errorMessage string) error {
	query := fmt.Sprintf(`
		UPDATE import_history
		SET status=%s, imported=%s, updated=%s, skipped=%s, error_message=%s, completed_at=%s
		WHERE id=%s`,
		db.ph(1), db.ph(2), db.ph(3), db.ph(4), db.ph(5), db.ph(6), db.ph(7))
	_, err := db.conn.ExecContext(ctx, query,
		status, summary.Imported, summary.Updated, summary.Skipped, errorMessage,
		time.Now().UTC(), id)
	return err
}

// GetImportHistory returns the most recent audit rows, newest first.
func (db *DB) GetImportHistory(ctx context.Context, limit int) ([]models.ImportHistory, error) {
	query := fmt.Sprintf(`
		SELECT id, kind, status, imported, updated, skipped,
			COALESCE(error_message, ''), started_at, completed_at
		FROM import_history ORDER BY started_at DESC LIMIT %s`, db.ph(1))

	rows, err := db.conn.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []models.ImportHistory
	for rows.Next() {
		var h models.ImportHistory
		var completed sql.NullTime
		if err := rows.Scan(&h.ID, &h.Kind, &h.Status, &h.Imported, &h.Updated,
			&h.Skipped, &h.ErrorMessage, &h.StartedAt, &completed); err != nil {
			return nil, err
		}
		if completed.Valid {
			t := completed.Time
			h.CompletedAt = &t
		}
		history = append(history, h)
	}
	return history, rows.Err()
}

// --- LLM Config ---

// GetLLMConfig returns the stored provider configuration, nil when unset.
func (db *DB) GetLLMConfig(ctx context.Context) (*models.LLMConfig, error) {
	var cfg models.LLMConfig
	var model sql.NullString
	err := db.conn.QueryRowContext(ctx, `
		SELECT provider, encrypted_api_key, model, updated_at
		FROM user_llm_config ORDER BY id DESC LIMIT 1`).
		Scan(&cfg.Provider, &cfg.EncryptedAPIKey, &model, &cfg.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	cfg.Model = model.String
	return &cfg, nil
}

// SetLLMConfig replaces the stored provider configuration.
func (db *DB) SetLLMConfig(ctx context.Context, cfg *models.LLMConfig) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM user_llm_config"); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO user_llm_config (provider, encrypted_api_key, model, updated_at)
		VALUES (%s, %s, %s, %s)`,
		db.ph(1), db.ph(2), db.ph(3), db.ph(4))
	if _, err := tx.ExecContext(ctx, query,
		cfg.Provider, cfg.EncryptedAPIKey, cfg.Model, time.Now().UTC()); err != nil {
		return err
	}
	return tx.Commit()
}

// --- Driver helpers ---

// ph returns the correct placeholder syntax for the driver
func (db *DB) ph(n int) string {
	if db.driver == "postgres" {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// onConflictUpdate returns the correct upsert syntax
func (db *DB) onConflictUpdate(conflictCol, updateCols string) string {
	return fmt.Sprintf("ON CONFLICT(%s) DO UPDATE SET %s", conflictCol, updateCols)
}

// autoIncrement returns the correct auto-increment syntax
func (db *DB) autoIncrement() string {
	if db.driver == "postgres" {
		return "SERIAL PRIMARY KEY"
	}
	return "INTEGER PRIMARY KEY AUTOINCREMENT"
}

// timestampType returns the correct timestamp type
func (db *DB) timestampType() string {
	if db.driver == "postgres" {
		return "TIMESTAMPTZ"
	}
	return "DATETIME"
}
