// Package ingest turns a user-supplied CSV blob into a confirmed set of
// upstream ship mutations: parse → validate → classify → review → commit.
// Rows are classified as new, duplicate-of-existing, or invalid; the commit
// phase is row-at-a-time and never transactional, so a failed row skips
// without aborting the batch.
package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nauticalflow/vessel-manager/internal/models"
)

// Header holds the exact column names of the ship import CSV, in emitted
// order.
var Header = []string{
	"Ship Name",
	"Operator",
	"Gross Tonnage (GT)",
	"Propulsion Power (MW)",
	"Cruising Speed (knots)",
	"Max Speed (knots)",
	"Length (meters)",
	"Beam (meters)",
	"Year Built",
	"Passenger Capacity",
	"Crew",
	"Engine Type",
	"Builder",
	"Fuel Type Name",
}

// ErrParse reports CSV text that is empty, header-only, or structurally
// unreadable. Nothing has been sent upstream when it is returned.
var ErrParse = errors.New("csv parse error")

// Parse splits CSV text into rows keyed by header name.
//
// Blank lines and lines starting with '#' (after trimming) are dropped.
// Cells are comma-split and trimmed; short data lines are right-padded with
// empty strings to the header length, long ones truncated to it. Quoted
// fields are not supported: a ship name containing a comma will split and
// fail validation downstream rather than being silently mis-imported.
func Parse(csvText string) ([]models.CSVRow, error) {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(csvText, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(strings.Trim(line, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}

	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: need a header line and at least one data line, got %d line(s)", ErrParse, len(lines))
	}

	header := splitCells(lines[0])

	rows := make([]models.CSVRow, 0, len(lines)-1)
	for _, line := range lines[1:] {
		cells := splitCells(line)
		row := make(models.CSVRow, len(header))
		for i, name := range header {
			if i < len(cells) {
				row[name] = cells[i]
			} else {
				row[name] = ""
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func splitCells(line string) []string {
	cells := strings.Split(line, ",")
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}
	return cells
}

// Marshal re-serializes rows under the canonical header. Used for template
// round-trips and session exports; comment and blank lines from the
// original input are not reproduced.
func Marshal(rows []models.CSVRow) string {
	var b strings.Builder
	b.WriteString(strings.Join(Header, ","))
	b.WriteByte('\n')
	for _, row := range rows {
		cells := make([]string, len(Header))
		for i, name := range Header {
			cells[i] = row[name]
		}
		b.WriteString(strings.Join(cells, ","))
		b.WriteByte('\n')
	}
	return b.String()
}

// Template returns the downloadable import template: header, one example
// data row, and a trailing comment of field notes.
func Template() string {
	return strings.Join(Header, ",") + "\n" +
		"Ocean Aurora,Aurora Cruises,168000,62,21.5,24,347,41,2022,5200,1600,Diesel-Electric,Meyer Werft,MGO\n" +
		"# Gross tonnage is unitless; propulsion power is the MCR rating in MW; speeds in knots; Fuel Type Name must match a catalog entry. Do not use commas inside values.\n"
}
