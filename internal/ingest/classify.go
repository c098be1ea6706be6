package ingest

import (
	"strings"

	"github.com/nauticalflow/vessel-manager/internal/models"
)

// ProgressFunc receives staged progress while a session runs. Percent is in
// [0, 100]. The pipeline itself never touches the UI; callers decide what
// to do with the events.
type ProgressFunc func(stage string, percent float64)

// Classification progress milestones. Parsing, catalog fetches, and the
// start of validation land on fixed percentages; per-row validation then
// walks from 40 to 80.
const (
	progressParsed        = 10
	progressFuelTypes     = 20
	progressExisting      = 30
	progressValidateStart = 40
	progressValidateEnd   = 80
)

// Classify validates every row in input order and buckets the results:
// valid new ships, duplicates of existing ships (carrying the existing id),
// and invalid rows. Each bucket preserves input row order.
//
// Duplicate detection compares ship names case-insensitively against the
// existing catalog snapshot. Data lines start at line 2 of the CSV.
func Classify(rows []models.CSVRow, fuelTypes []models.FuelType, existing []models.CruiseShip, progress ProgressFunc) models.ClassifiedBatch {
	if progress == nil {
		progress = func(string, float64) {}
	}

	existingByName := make(map[string]int, len(existing))
	for _, ship := range existing {
		existingByName[strings.ToLower(ship.Name)] = ship.ID
	}

	progress("validate", progressValidateStart)

	var batch models.ClassifiedBatch
	for i, row := range rows {
		prepared := ValidateRow(row, fuelTypes, i+2)

		switch {
		case !prepared.Valid:
			batch.InvalidShips = append(batch.InvalidShips, prepared)
		default:
			if id, ok := existingByName[strings.ToLower(prepared.ShipName)]; ok {
				batch.DuplicateShips = append(batch.DuplicateShips, models.DuplicateShip{
					PreparedShip: prepared,
					ExistingID:   id,
				})
			} else {
				batch.ValidShips = append(batch.ValidShips, prepared)
			}
		}

		span := float64(progressValidateEnd - progressValidateStart)
		progress("validate", progressValidateStart+span*float64(i+1)/float64(len(rows)))
	}

	return batch
}
