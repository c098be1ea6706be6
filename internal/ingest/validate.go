package ingest

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/nauticalflow/vessel-manager/internal/models"
)

// ValidateRow is the single chokepoint where cell strings become typed
// values. It collects every problem on the row instead of stopping at the
// first, so the review screen can show a complete error list per ship.
func ValidateRow(row models.CSVRow, fuelTypes []models.FuelType, lineNumber int) models.PreparedShip {
	var errs []string

	name := row["Ship Name"]
	if name == "" {
		errs = append(errs, "Ship Name is required")
	}

	gt := requirePositive(row, "Gross Tonnage (GT)", &errs)
	power := requirePositive(row, "Propulsion Power (MW)", &errs)
	cruising := requirePositive(row, "Cruising Speed (knots)", &errs)
	maxSpeed := requirePositive(row, "Max Speed (knots)", &errs)
	length := requirePositive(row, "Length (meters)", &errs)
	beam := requirePositive(row, "Beam (meters)", &errs)

	// Cross-field check, only when both speeds parsed. The curve engine
	// rejects this too; catching it here gives the row a review message
	// instead of a silent skip at commit.
	if cruising > 0 && maxSpeed > 0 && maxSpeed < cruising {
		errs = append(errs, fmt.Sprintf("Max Speed (knots) must be at least Cruising Speed (knots), got %v < %v",
			maxSpeed, cruising))
	}

	fuelTypeID := 0
	fuelName := row["Fuel Type Name"]
	if fuelName == "" {
		errs = append(errs, "Fuel Type Name is required")
	} else {
		matched := false
		for _, ft := range fuelTypes {
			if strings.EqualFold(ft.Name, fuelName) {
				fuelTypeID = ft.ID
				matched = true
				break
			}
		}
		if !matched {
			available := make([]string, len(fuelTypes))
			for i, ft := range fuelTypes {
				available[i] = ft.Name
			}
			errs = append(errs, fmt.Sprintf("Unknown fuel type %q (available: %s)",
				fuelName, strings.Join(available, ", ")))
		}
	}

	if len(errs) > 0 {
		shipName := name
		if shipName == "" {
			shipName = "Unknown"
		}
		return models.PreparedShip{
			Valid:      false,
			Errors:     errs,
			LineNumber: lineNumber,
			ShipName:   shipName,
		}
	}

	return models.PreparedShip{
		Valid:      true,
		LineNumber: lineNumber,
		ShipName:   name,
		Payload: &models.ShipPayload{
			Name:              name,
			Operator:          optionalString(row["Operator"]),
			GrossTonnage:      int(gt),
			PropulsionPower:   power,
			CruisingSpeed:     cruising,
			MaxSpeed:          maxSpeed,
			Length:            length,
			Beam:              beam,
			YearBuilt:         optionalInt(row["Year Built"]),
			PassengerCapacity: optionalInt(row["Passenger Capacity"]),
			Crew:              optionalInt(row["Crew"]),
			EngineType:        optionalString(row["Engine Type"]),
			Builder:           optionalString(row["Builder"]),
			FuelTypeID:        fuelTypeID,
		},
	}
}

// requirePositive parses a required physical scalar. Missing, non-numeric,
// non-finite, and non-positive values all append an error and return 0.
func requirePositive(row models.CSVRow, field string, errs *[]string) float64 {
	raw := row[field]
	if raw == "" {
		*errs = append(*errs, field+" is required")
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		*errs = append(*errs, fmt.Sprintf("%s must be a number, got %q", field, raw))
		return 0
	}
	if v <= 0 {
		*errs = append(*errs, fmt.Sprintf("%s must be positive, got %v", field, v))
		return 0
	}
	return v
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// optionalInt parses descriptive numeric fields leniently, taking the
// leading integer prefix ("2022 (refit)" → 2022) and dropping anything
// unparsable. Empty means the field was not provided.
func optionalInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	end := 0
	if end < len(s) && (s[end] == '-' || s[end] == '+') {
		end++
	}
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	v, err := strconv.Atoi(s[:end])
	if err != nil {
		return nil
	}
	return &v
}
