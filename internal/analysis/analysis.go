// Package analysis builds deterministic fleet fuel reports from the cached
// catalog. All figures come from the curve engine, no network calls.
package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/nauticalflow/vessel-manager/internal/fuelcurve"
	"github.com/nauticalflow/vessel-manager/internal/models"
)

// AnalyzeFleet performs comprehensive fleet fuel analysis
func AnalyzeFleet(ships []models.CruiseShip) *models.FleetFuelAnalysis {
	analysis := &models.FleetFuelAnalysis{
		SizeDistribution: make(map[string]int),
	}

	analysis.Overview = buildOverview(ships)
	analysis.SizeDistribution = buildSizeDistribution(ships)
	analysis.EfficiencyTable, analysis.CurveWarnings = buildEfficiencyTable(ships)

	return analysis
}

func buildOverview(ships []models.CruiseShip) models.FleetOverview {
	overview := models.FleetOverview{
		TotalShips: len(ships),
	}

	var speedSum float64
	for i := range ships {
		ship := &ships[i]
		hotel := fuelcurve.HotelLoad(ship.GrossTonnage)

		overview.TotalGrossTonnage += ship.GrossTonnage
		overview.TotalPropulsionMW += ship.PropulsionPower
		overview.TotalHotelLoadMW += hotel
		speedSum += ship.CruisingSpeed

		if burn, ok := cruiseBurn(ship); ok {
			overview.FleetCruiseBurnTPH += burn
		}
	}

	if len(ships) > 0 {
		overview.AvgCruisingSpeedKts = round2(speedSum / float64(len(ships)))
	}
	overview.TotalPropulsionMW = round2(overview.TotalPropulsionMW)
	overview.TotalHotelLoadMW = round2(overview.TotalHotelLoadMW)
	overview.FleetCruiseBurnTPH = round3(overview.FleetCruiseBurnTPH)
	return overview
}

// Size bands follow the industry convention for cruise tonnage classes.
func buildSizeDistribution(ships []models.CruiseShip) map[string]int {
	dist := make(map[string]int)
	for i := range ships {
		gt := ships[i].GrossTonnage
		var band string
		switch {
		case gt < 30000:
			band = "Small (<30k GT)"
		case gt < 70000:
			band = "Midsize (30-70k GT)"
		case gt < 120000:
			band = "Large (70-120k GT)"
		case gt < 180000:
			band = "Mega (120-180k GT)"
		default:
			band = "Giga (>180k GT)"
		}
		dist[band]++
	}
	return dist
}

// buildEfficiencyTable ranks ships by cruise burn per 1,000 GT, most
// efficient first. Ships whose specs fail curve computation are reported
// as warnings instead of entries.
func buildEfficiencyTable(ships []models.CruiseShip) ([]models.EfficiencyEntry, []string) {
	var entries []models.EfficiencyEntry
	var warnings []string

	for i := range ships {
		ship := &ships[i]
		burn, ok := cruiseBurn(ship)
		if !ok || ship.GrossTonnage <= 0 {
			warnings = append(warnings, fmt.Sprintf("%s: cannot compute fuel curve from cached specs", ship.Name))
			continue
		}

		hotel := fuelcurve.HotelLoad(ship.GrossTonnage)
		share := 0.0
		if ship.PropulsionPower+hotel > 0 {
			share = round3(ship.PropulsionPower / (ship.PropulsionPower + hotel))
		}

		entries = append(entries, models.EfficiencyEntry{
			ShipName:        ship.Name,
			GrossTonnage:    ship.GrossTonnage,
			CruisingSpeed:   ship.CruisingSpeed,
			CruiseBurnTPH:   burn,
			BurnPerKiloGT:   round3(burn / (float64(ship.GrossTonnage) / 1000)),
			HotelLoadMW:     round2(fuelcurve.HotelLoad(ship.GrossTonnage)),
			PropulsionShare: share,
		})
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].BurnPerKiloGT < entries[b].BurnPerKiloGT
	})
	return entries, warnings
}

// cruiseBurn returns consumption at cruising speed from a freshly computed
// curve. The cruising-speed point is always an exact sample.
func cruiseBurn(ship *models.CruiseShip) (float64, bool) {
	specs := models.ShipSpecs{
		GrossTonnage:    ship.GrossTonnage,
		PropulsionPower: ship.PropulsionPower,
		CruisingSpeed:   ship.CruisingSpeed,
		MaxSpeed:        ship.MaxSpeed,
		Length:          ship.Length,
		Beam:            ship.Beam,
	}
	curve, err := fuelcurve.Compute(specs)
	if err != nil {
		return 0, false
	}

	target := math.Round(ship.CruisingSpeed*10) / 10
	for _, p := range curve {
		if p.Speed == target {
			return p.Consumption, true
		}
	}
	return 0, false
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
