// Package congestion estimates port waiting time from the UNCTAD port-calls
// dataset (median time in port per economy). Figures feed the route planner
// as a delay estimate, not a schedule.
package congestion

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/nauticalflow/vessel-manager/internal/models"
	"github.com/rs/zerolog/log"
)

// Dataset is median time in port (days) keyed by economy label, taken from
// the 2023 "All ships" rows of the source CSV. Economies are also kept in
// file order so fallback matching is stable across calls.
type Dataset struct {
	medianDays map[string]float64
	economies  []string
}

// Load reads the port-calls CSV from disk.
func Load(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening congestion data: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads the port-calls CSV, keeping only 2023 "All ships" rows. Rows
// with malformed numbers are skipped, not fatal.
func Parse(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("reading congestion header: %w", err)
	}
	col := map[string]int{}
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"Year", "Economy Label", "Median time in port (days)", "CommercialMarket Label"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("congestion data missing column %q", required)
		}
	}

	ds := &Dataset{medianDays: map[string]float64{}}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading congestion data: %w", err)
		}
		cell := func(name string) string {
			i := col[name]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		if cell("Year") != "2023" || cell("CommercialMarket Label") != "All ships" {
			continue
		}
		economy := cell("Economy Label")
		medianText := cell("Median time in port (days)")
		if economy == "" || medianText == "" {
			continue
		}
		days, err := strconv.ParseFloat(medianText, 64)
		if err != nil {
			continue
		}
		if _, seen := ds.medianDays[economy]; !seen {
			ds.economies = append(ds.economies, economy)
		}
		ds.medianDays[economy] = days
	}

	log.Info().Int("economies", len(ds.medianDays)).Msg("loaded port congestion data")
	return ds, nil
}

// Economies returns the number of economies with data.
func (ds *Dataset) Economies() int {
	return len(ds.medianDays)
}

// PortHours estimates congestion delay in hours for a port country.
// Lookup order: exact economy label, then case-insensitive substring match
// in either direction, then the "World" aggregate. Zero when no data exists.
func (ds *Dataset) PortHours(country string) float64 {
	if len(ds.medianDays) == 0 {
		return 0
	}

	days, ok := ds.medianDays[country]
	if !ok {
		// Walk economies in file order so the same query always resolves to
		// the same economy when several labels match.
		lower := strings.ToLower(country)
		for _, economy := range ds.economies {
			economyLower := strings.ToLower(economy)
			if strings.Contains(economyLower, lower) || strings.Contains(lower, economyLower) {
				days, ok = ds.medianDays[economy], true
				break
			}
		}
	}
	if !ok {
		days = ds.medianDays["World"]
	}
	return round2(days * 24)
}

// RouteImpact sums per-port delays over an itinerary.
func (ds *Dataset) RouteImpact(ports []models.PortCall) models.RouteCongestion {
	var total float64
	details := make([]models.PortCongestion, 0, len(ports))

	for _, port := range ports {
		hours := ds.PortHours(port.Country)
		total += hours
		details = append(details, models.PortCongestion{
			PortName:        port.Name,
			Country:         port.Country,
			CongestionHours: hours,
			CongestionDays:  round2(hours / 24),
		})
	}

	return models.RouteCongestion{
		TotalHours:  round2(total),
		TotalDays:   round2(total / 24),
		PortDetails: details,
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
