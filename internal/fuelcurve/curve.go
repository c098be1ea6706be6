// Package fuelcurve computes a cruise ship's speed→fuel consumption table
// from its scalar specifications, following the propulsion-power and
// specific-fuel-consumption model of Simonsen et al. 2018. The computation
// is a pure function: identical specs always produce an identical curve.
package fuelcurve

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/nauticalflow/vessel-manager/internal/models"
)

// Model constants (Simonsen et al. 2018).
const (
	// TauWeather inflates propulsion power for average weather resistance.
	TauWeather = 1.15
	// TauFouling inflates propulsion power for hull fouling between drydocks.
	TauFouling = 1.09
	// SFOCBase is the baseline specific fuel consumption (g/kWh) for
	// post-2001 marine engines.
	SFOCBase = 195.0

	// Load-polynomial coefficients: SFC = SFOCBase * (a0 + a1*L + a2*L²).
	a0 = 1.28
	a1 = -0.71
	a2 = 0.455

	// SFC is clamped to a physically plausible band (g/kWh).
	sfcMin = 100.0
	sfcMax = 350.0

	// Effective engine load is clamped at 2.0: short excursions above MCR
	// are allowed, unbounded extrapolation is not.
	loadMax = 2.0
)

// canonicalSpeeds are the fixed sample speeds every curve starts from,
// before unioning in the ship's cruising and max speed.
var canonicalSpeeds = []float64{0, 5, 10, 12, 14, 16, 18, 20}

// ErrInvalidSpecs reports ship specifications that violate the engine's
// input contract. Wrapped errors carry the specific violation.
var ErrInvalidSpecs = errors.New("invalid ship specs")

// Compute returns the fuel consumption curve for the given specs.
//
// The curve always contains a hotel-only point at speed 0, the canonical
// sample speeds up to the ship's max speed, and exact points at cruising
// and max speed. Speeds are rounded to 1 decimal, consumption to 3, and
// the result is strictly ascending in speed.
func Compute(specs models.ShipSpecs) (models.Curve, error) {
	if err := checkSpecs(specs); err != nil {
		return nil, err
	}

	hotel := HotelLoad(specs.GrossTonnage)

	speeds := sampleSpeeds(specs.CruisingSpeed, specs.MaxSpeed)
	curve := make(models.Curve, 0, len(speeds))
	for _, v := range speeds {
		curve = append(curve, models.CurvePoint{
			Speed:       round1(v),
			Consumption: round3(consumptionAt(v, specs, hotel)),
		})
	}
	return curve, nil
}

// HotelLoad estimates the non-propulsion electrical load (MW) from gross
// tonnage. Piecewise linear, continuous and monotonic; the last tier
// extrapolates without bound.
func HotelLoad(grossTonnage int) float64 {
	gt := float64(grossTonnage)
	switch {
	case gt < 50_000:
		return 3 + gt/50_000*2
	case gt < 100_000:
		return 5 + (gt-50_000)/50_000*5
	case gt < 200_000:
		return 10 + (gt-100_000)/100_000*5
	default:
		return 15 + (gt-200_000)/100_000*5
	}
}

// consumptionAt returns tons of fuel per hour at speed v (knots).
func consumptionAt(v float64, specs models.ShipSpecs, hotel float64) float64 {
	if v == 0 {
		// Hotel-only: auxiliaries burn at the baseline SFC.
		return hotel * SFOCBase / 1000
	}

	r := v / specs.CruisingSpeed
	pProp := specs.PropulsionPower * r * r * r * TauWeather * TauFouling

	// Load factor uses propulsion power only. Hotel load sits on a separate
	// auxiliary bus and must not inflate the main engines' SFC.
	load := clamp(pProp/specs.PropulsionPower, 0, loadMax)
	sfc := clamp(SFOCBase*(a0+a1*load+a2*load*load), sfcMin, sfcMax)

	return (pProp + hotel) * sfc / 1000
}

// sampleSpeeds builds the sorted, deduplicated speed set: canonical speeds
// plus cruising and max, dropping anything above max. Deduplication keys on
// the rounded (1-decimal) speed so the emitted curve stays strictly
// ascending; cruising and max overwrite canonical entries on collision so
// both exact points survive.
func sampleSpeeds(cruising, max float64) []float64 {
	byKey := make(map[float64]float64, len(canonicalSpeeds)+2)
	add := func(v float64) {
		if v > max {
			return
		}
		byKey[round1(v)] = v
	}
	for _, v := range canonicalSpeeds {
		add(v)
	}
	add(cruising)
	add(max)

	speeds := make([]float64, 0, len(byKey))
	for _, v := range byKey {
		speeds = append(speeds, v)
	}
	sort.Float64s(speeds)
	return speeds
}

func checkSpecs(specs models.ShipSpecs) error {
	for _, f := range []struct {
		name  string
		value float64
	}{
		{"gross tonnage", float64(specs.GrossTonnage)},
		{"propulsion power", specs.PropulsionPower},
		{"cruising speed", specs.CruisingSpeed},
		{"max speed", specs.MaxSpeed},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return fmt.Errorf("%w: %s is not finite", ErrInvalidSpecs, f.name)
		}
		if f.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidSpecs, f.name, f.value)
		}
	}
	if specs.MaxSpeed < specs.CruisingSpeed {
		return fmt.Errorf("%w: max speed %v below cruising speed %v",
			ErrInvalidSpecs, specs.MaxSpeed, specs.CruisingSpeed)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
