package fuelcurve

import (
	"math"
	"math/rand"
	"reflect"
	"testing"

	"github.com/nauticalflow/vessel-manager/internal/models"
)

func specsIcon() models.ShipSpecs {
	return models.ShipSpecs{GrossTonnage: 250800, PropulsionPower: 84, CruisingSpeed: 22, MaxSpeed: 25, Length: 365, Beam: 65}
}

func findPoint(t *testing.T, curve models.Curve, speed float64) models.CurvePoint {
	t.Helper()
	for _, p := range curve {
		if p.Speed == speed {
			return p
		}
	}
	t.Fatalf("curve has no point at speed %v: %v", speed, curve)
	return models.CurvePoint{}
}

func TestHotelLoad(t *testing.T) {
	tests := []struct {
		gt   int
		want float64
	}{
		{15690, 3.6276},  // small ship tier
		{91740, 9.174},   // mid tier
		{150000, 12.5},   // large tier
		{250800, 17.54},  // unbounded top tier
		{400000, 25},     // extrapolation beyond any built hull
	}
	for _, tt := range tests {
		got := HotelLoad(tt.gt)
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("HotelLoad(%d) = %v, want %v", tt.gt, got, tt.want)
		}
	}
}

// Tier boundaries must agree from both sides so the estimator is continuous.
func TestHotelLoadContinuity(t *testing.T) {
	for _, gt := range []int{50_000, 100_000, 200_000} {
		below := HotelLoad(gt - 1)
		at := HotelLoad(gt)
		if math.Abs(at-below) > 1e-3 {
			t.Errorf("HotelLoad discontinuous at GT=%d: %v vs %v", gt, below, at)
		}
	}
	if HotelLoad(50_000) != 5 || HotelLoad(100_000) != 10 || HotelLoad(200_000) != 15 {
		t.Errorf("tier boundary values wrong: %v %v %v",
			HotelLoad(50_000), HotelLoad(100_000), HotelLoad(200_000))
	}
}

func TestComputeIconClass(t *testing.T) {
	curve, err := Compute(specsIcon())
	if err != nil {
		t.Fatal(err)
	}

	// 0, 5, 10, 12, 14, 16, 18, 20, 22 (cruise), 25 (max)
	if len(curve) != 10 {
		t.Fatalf("expected 10 points, got %d: %v", len(curve), curve)
	}

	// Hotel-only point: H(250800) = 17.54 MW at baseline SFC.
	hotel := findPoint(t, curve, 0)
	if hotel.Consumption != 3.420 {
		t.Errorf("hotel-only consumption = %v, want 3.420", hotel.Consumption)
	}

	// At cruising speed r=1, so L = 1.15*1.09 = 1.2535 and
	// SFC = 195*(1.28 - 0.71*1.2535 + 0.455*1.2535²) ≈ 215.463 g/kWh.
	// P_prop = 84*1.2535 = 105.294 MW, plus 17.54 MW hotel.
	cruise := findPoint(t, curve, 22)
	if cruise.Consumption != 26.466 {
		t.Errorf("cruise consumption = %v, want 26.466", cruise.Consumption)
	}

	if _, err := Compute(specsIcon()); err != nil {
		t.Fatal(err)
	}
}

func TestComputeScenarios(t *testing.T) {
	tests := []struct {
		name      string
		specs     models.ShipSpecs
		hotelWant float64
	}{
		{
			name:      "mid-size diesel-electric",
			specs:     models.ShipSpecs{GrossTonnage: 91740, PropulsionPower: 30, CruisingSpeed: 21, MaxSpeed: 24, Length: 294, Beam: 32},
			hotelWant: 1.789, // 9.174 MW * 195 / 1000
		},
		{
			name:      "legacy small ship",
			specs:     models.ShipSpecs{GrossTonnage: 15690, PropulsionPower: 13.5, CruisingSpeed: 18, MaxSpeed: 20, Length: 138, Beam: 21.5},
			hotelWant: 0.707, // 3.6276 MW * 195 / 1000
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			curve, err := Compute(tt.specs)
			if err != nil {
				t.Fatal(err)
			}
			hotel := findPoint(t, curve, 0)
			if hotel.Consumption != tt.hotelWant {
				t.Errorf("hotel-only consumption = %v, want %v", hotel.Consumption, tt.hotelWant)
			}
			findPoint(t, curve, tt.specs.CruisingSpeed)
			findPoint(t, curve, tt.specs.MaxSpeed)
		})
	}
}

func TestComputeDeterministic(t *testing.T) {
	a, err := Compute(specsIcon())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Compute(specsIcon())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("identical specs produced different curves:\n%v\n%v", a, b)
	}
}

func TestComputeMaxEqualsCruising(t *testing.T) {
	specs := models.ShipSpecs{GrossTonnage: 91740, PropulsionPower: 30, CruisingSpeed: 21, MaxSpeed: 21, Length: 294, Beam: 32}
	curve, err := Compute(specs)
	if err != nil {
		t.Fatal(err)
	}
	last := curve[len(curve)-1]
	if last.Speed != 21 {
		t.Fatalf("last point speed = %v, want 21", last.Speed)
	}
	// r = 1 exactly: same value the cruise point would have.
	cruise := findPoint(t, curve, 21)
	if cruise != last {
		t.Errorf("cruise and max point differ: %v vs %v", cruise, last)
	}
}

func TestComputeInvalidSpecs(t *testing.T) {
	base := specsIcon()

	tests := []struct {
		name   string
		mutate func(*models.ShipSpecs)
	}{
		{"zero gross tonnage", func(s *models.ShipSpecs) { s.GrossTonnage = 0 }},
		{"negative power", func(s *models.ShipSpecs) { s.PropulsionPower = -1 }},
		{"zero cruising speed", func(s *models.ShipSpecs) { s.CruisingSpeed = 0 }},
		{"max below cruising", func(s *models.ShipSpecs) { s.MaxSpeed = s.CruisingSpeed - 1 }},
		{"NaN power", func(s *models.ShipSpecs) { s.PropulsionPower = math.NaN() }},
		{"infinite max speed", func(s *models.ShipSpecs) { s.MaxSpeed = math.Inf(1) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			specs := base
			tt.mutate(&specs)
			if _, err := Compute(specs); err == nil {
				t.Error("expected error, got none")
			}
		})
	}
}

// Invariants over randomized specs: hotel point plus exact cruise and max
// points, strictly ascending speeds, consumption monotonic above zero.
func TestComputeInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		cruising := 5 + rng.Float64()*20
		gt := 1000 + rng.Intn(300_000)
		specs := models.ShipSpecs{
			GrossTonnage: gt,
			// Real hulls install far more propulsion than hotel capacity;
			// keep the ratio in a plausible band.
			PropulsionPower: HotelLoad(gt) * (2 + rng.Float64()*8),
			CruisingSpeed:   cruising,
			MaxSpeed:        cruising + rng.Float64()*8,
			Length:          50 + rng.Float64()*350,
			Beam:            10 + rng.Float64()*60,
		}

		curve, err := Compute(specs)
		if err != nil {
			t.Fatalf("specs %+v: %v", specs, err)
		}

		if curve[0].Speed != 0 {
			t.Fatalf("specs %+v: first point speed = %v, want 0", specs, curve[0].Speed)
		}
		findPoint(t, curve, math.Round(specs.CruisingSpeed*10)/10)
		findPoint(t, curve, math.Round(specs.MaxSpeed*10)/10)

		for j := 1; j < len(curve); j++ {
			if curve[j].Speed <= curve[j-1].Speed {
				t.Fatalf("specs %+v: speeds not strictly ascending: %v", specs, curve)
			}
			if curve[j-1].Speed > 0 && curve[j].Consumption < curve[j-1].Consumption {
				t.Fatalf("specs %+v: consumption not monotonic above hotel point: %v", specs, curve)
			}
			if curve[j].Consumption < 0 {
				t.Fatalf("specs %+v: negative consumption: %v", specs, curve)
			}
		}
	}
}

func TestSFCWithinClamp(t *testing.T) {
	// At cruising speed L = 1.2535, so SFC must fall inside [100, 350].
	specs := specsIcon()
	hotel := HotelLoad(specs.GrossTonnage)
	cruise := consumptionAt(specs.CruisingSpeed, specs, hotel)
	pProp := specs.PropulsionPower * TauWeather * TauFouling
	impliedSFC := cruise / (pProp + hotel) * 1000
	if impliedSFC < 100 || impliedSFC > 350 {
		t.Errorf("implied SFC at cruise = %v, outside [100, 350]", impliedSFC)
	}
}
