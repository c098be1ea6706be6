package models

import "time"

// --- Fuel Curve Types ---

// ShipSpecs holds the scalar specifications the curve engine works from.
// Length and beam are carried for future hull-efficiency extensions but do
// not enter the canonical calculation.
type ShipSpecs struct {
	GrossTonnage    int     `json:"gross_tonnage"`
	PropulsionPower float64 `json:"propulsion_power"` // MW at MCR
	CruisingSpeed   float64 `json:"cruising_speed"`   // knots
	MaxSpeed        float64 `json:"max_speed"`        // knots
	Length          float64 `json:"length"`           // meters
	Beam            float64 `json:"beam"`             // meters
}

// CurvePoint is one sample of the speed→fuel table.
type CurvePoint struct {
	Speed       float64 `json:"speed"`       // knots, 1 decimal
	Consumption float64 `json:"consumption"` // tons/hour, 3 decimals
}

// Curve is strictly ascending in speed. The first point is always the
// hotel-only sample at speed 0; exact points at cruising and max speed are
// always present.
type Curve []CurvePoint

// --- Catalog Types ---

type FuelType struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// CruiseShip is a ship record as served by the upstream NauticalFlow API
// and cached locally.
type CruiseShip struct {
	ID                   int        `json:"id"`
	Name                 string     `json:"name"`
	Operator             string     `json:"operator,omitempty"`
	GrossTonnage         int        `json:"gross_tonnage"`
	PropulsionPower      float64    `json:"propulsion_power"`
	CruisingSpeed        float64    `json:"cruising_speed"`
	MaxSpeed             float64    `json:"max_speed"`
	Length               float64    `json:"length"`
	Beam                 float64    `json:"beam"`
	YearBuilt            *int       `json:"year_built,omitempty"`
	PassengerCapacity    *int       `json:"passenger_capacity,omitempty"`
	Crew                 *int       `json:"crew,omitempty"`
	EngineType           string     `json:"engine_type,omitempty"`
	Builder              string     `json:"builder,omitempty"`
	FuelTypeID           int        `json:"fuel_type_id"`
	FuelConsumptionCurve Curve      `json:"fuel_consumption_curve,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	LastSyncedAt         *time.Time `json:"last_synced_at,omitempty"`

	// Joined field (populated by queries, not stored)
	FuelTypeName string `json:"fuel_type_name,omitempty"`
}

// ShipPayload is the create/update body sent to the upstream API. The curve
// is attached by the ingest pipeline just before the call.
type ShipPayload struct {
	Name                 string  `json:"name"`
	Operator             *string `json:"operator,omitempty"`
	GrossTonnage         int     `json:"grossTonnage"`
	PropulsionPower      float64 `json:"propulsionPower"`
	CruisingSpeed        float64 `json:"cruisingSpeed"`
	MaxSpeed             float64 `json:"maxSpeed"`
	Length               float64 `json:"length"`
	Beam                 float64 `json:"beam"`
	YearBuilt            *int    `json:"yearBuilt,omitempty"`
	PassengerCapacity    *int    `json:"passengerCapacity,omitempty"`
	Crew                 *int    `json:"crew,omitempty"`
	EngineType           *string `json:"engineType,omitempty"`
	Builder              *string `json:"builder,omitempty"`
	FuelTypeID           int     `json:"fuelTypeId"`
	FuelConsumptionCurve Curve   `json:"fuelConsumptionCurve"`
}

// Specs extracts the curve-engine inputs from a payload.
func (p *ShipPayload) Specs() ShipSpecs {
	return ShipSpecs{
		GrossTonnage:    p.GrossTonnage,
		PropulsionPower: p.PropulsionPower,
		CruisingSpeed:   p.CruisingSpeed,
		MaxSpeed:        p.MaxSpeed,
		Length:          p.Length,
		Beam:            p.Beam,
	}
}

// --- Ingest Types ---

// CSVRow is one parsed data line: header name → trimmed cell text.
type CSVRow map[string]string

// PreparedShip is the outcome of validating one CSV row. Either Payload is
// set (Valid), or Errors explains why not.
type PreparedShip struct {
	Valid      bool         `json:"valid"`
	Payload    *ShipPayload `json:"payload,omitempty"`
	Errors     []string     `json:"errors,omitempty"`
	LineNumber int          `json:"line_number"`
	ShipName   string       `json:"ship_name"`
}

// DuplicateShip is a valid row whose name matches an existing ship. It
// carries the id of the record an update would overwrite.
type DuplicateShip struct {
	PreparedShip
	ExistingID int `json:"existing_id"`
}

// ClassifiedBatch holds the three disjoint row buckets, each preserving
// input row order.
type ClassifiedBatch struct {
	ValidShips     []PreparedShip  `json:"valid_ships"`
	DuplicateShips []DuplicateShip `json:"duplicate_ships"`
	InvalidShips   []PreparedShip  `json:"invalid_ships"`
}

// ImportSummary is the terminal record of a commit.
type ImportSummary struct {
	Imported int `json:"imported"`
	Updated  int `json:"updated"`
	Skipped  int `json:"skipped"`
}

// --- Audit ---

// ImportHistory is one audit row per ingest session or scheduled catalog
// refresh.
type ImportHistory struct {
	ID           int        `json:"id"`
	Kind         string     `json:"kind"` // "csv_import", "catalog_refresh"
	Status       string     `json:"status"`
	Imported     int        `json:"imported"`
	Updated      int        `json:"updated"`
	Skipped      int        `json:"skipped"`
	ErrorMessage string     `json:"error_message,omitempty"`
	StartedAt    time.Time  `json:"started_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// --- Analysis Types ---

type FleetFuelAnalysis struct {
	Overview         FleetOverview     `json:"overview"`
	SizeDistribution map[string]int    `json:"size_distribution"`
	EfficiencyTable  []EfficiencyEntry `json:"efficiency_table"`
	CurveWarnings    []string          `json:"curve_warnings,omitempty"`
}

type FleetOverview struct {
	TotalShips          int     `json:"total_ships"`
	TotalGrossTonnage   int     `json:"total_gross_tonnage"`
	TotalPropulsionMW   float64 `json:"total_propulsion_mw"`
	TotalHotelLoadMW    float64 `json:"total_hotel_load_mw"`
	FleetCruiseBurnTPH  float64 `json:"fleet_cruise_burn_tph"`
	AvgCruisingSpeedKts float64 `json:"avg_cruising_speed_kts"`
}

// EfficiencyEntry ranks a ship by fuel burned at cruising speed, normalized
// per 1,000 GT so small and large hulls compare fairly.
type EfficiencyEntry struct {
	ShipName        string  `json:"ship_name"`
	GrossTonnage    int     `json:"gross_tonnage"`
	CruisingSpeed   float64 `json:"cruising_speed"`
	CruiseBurnTPH   float64 `json:"cruise_burn_tph"`
	BurnPerKiloGT   float64 `json:"burn_per_kilo_gt"`
	HotelLoadMW     float64 `json:"hotel_load_mw"`
	PropulsionShare float64 `json:"propulsion_share"` // fraction of cruise power that is propulsion
}

// --- Congestion Types ---

// PortCall identifies a port for congestion lookups.
type PortCall struct {
	Name    string `json:"name"`
	Country string `json:"country"`
}

type PortCongestion struct {
	PortName        string  `json:"port_name"`
	Country         string  `json:"country"`
	CongestionHours float64 `json:"congestion_hours"`
	CongestionDays  float64 `json:"congestion_days"`
}

type RouteCongestion struct {
	TotalHours  float64          `json:"total_hours"`
	TotalDays   float64          `json:"total_days"`
	PortDetails []PortCongestion `json:"port_details"`
}

// --- Settings ---

type LLMConfig struct {
	Provider        string    `json:"provider"`
	EncryptedAPIKey string    `json:"-"`
	Model           string    `json:"model,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}
