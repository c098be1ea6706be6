package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nauticalflow/vessel-manager/internal/models"
)

// fakeTransport records calls and fails where scripted.
type fakeTransport struct {
	mu        sync.Mutex
	ships     []models.CruiseShip
	fuelTypes []models.FuelType

	created []string
	updated []int

	failCreateOn map[string]bool // ship name → fail
	blockCreate  chan struct{}   // when set, Create waits until closed
}

func newFakeTransport(existing ...string) *fakeTransport {
	ft := &fakeTransport{
		fuelTypes:    testFuelTypes(),
		failCreateOn: map[string]bool{},
	}
	for i, name := range existing {
		ft.ships = append(ft.ships, models.CruiseShip{ID: i + 1, Name: name})
	}
	return ft
}

func (f *fakeTransport) ListCruiseShips(ctx context.Context) ([]models.CruiseShip, error) {
	return f.ships, nil
}

func (f *fakeTransport) ListFuelTypes(ctx context.Context) ([]models.FuelType, error) {
	return f.fuelTypes, nil
}

func (f *fakeTransport) CreateCruiseShip(ctx context.Context, payload *models.ShipPayload) error {
	if f.blockCreate != nil {
		<-f.blockCreate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreateOn[payload.Name] {
		return errors.New("upstream rejected ship")
	}
	if len(payload.FuelConsumptionCurve) == 0 {
		return errors.New("payload missing fuel curve")
	}
	f.created = append(f.created, payload.Name)
	return nil
}

func (f *fakeTransport) UpdateCruiseShip(ctx context.Context, id int, payload *models.ShipPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(payload.FuelConsumptionCurve) == 0 {
		return errors.New("payload missing fuel curve")
	}
	f.updated = append(f.updated, id)
	return nil
}

func csvWithShips(names ...string) string {
	var b strings.Builder
	b.WriteString(strings.Join(Header, ","))
	b.WriteByte('\n')
	for _, name := range names {
		fmt.Fprintf(&b, "%s,,91740,30,21,24,294,32,,,,,,MGO\n", name)
	}
	return b.String()
}

func TestBeginClassifiesBatch(t *testing.T) {
	// One new ship, one duplicate of the existing catalog (case-insensitive),
	// one row with a missing fuel type.
	csv := strings.Join(Header, ",") + "\n" +
		"Baltic Star,,91740,30,21,24,294,32,,,,,,MGO\n" +
		"OCEAN AURORA,,91740,30,21,24,294,32,,,,,,MGO\n" +
		"Ghost Ship,,91740,30,21,24,294,32,,,,,,\n"

	tr := newFakeTransport("Ocean Aurora")
	coord := NewCoordinator(tr, nil)

	session, err := coord.Begin(context.Background(), csv)
	if err != nil {
		t.Fatal(err)
	}
	if session.State != StateReviewing {
		t.Errorf("state = %s, want REVIEWING", session.State)
	}

	b := session.Batch
	if len(b.ValidShips) != 1 || len(b.DuplicateShips) != 1 || len(b.InvalidShips) != 1 {
		t.Fatalf("classification = %d/%d/%d, want 1/1/1",
			len(b.ValidShips), len(b.DuplicateShips), len(b.InvalidShips))
	}
	if b.ValidShips[0].ShipName != "Baltic Star" {
		t.Errorf("valid ship = %q", b.ValidShips[0].ShipName)
	}
	if b.DuplicateShips[0].ExistingID != 1 {
		t.Errorf("duplicate existing id = %d, want 1", b.DuplicateShips[0].ExistingID)
	}
	if b.InvalidShips[0].ShipName != "Ghost Ship" {
		t.Errorf("invalid ship = %q", b.InvalidShips[0].ShipName)
	}
}

func TestCommitDuplicateUnchecked(t *testing.T) {
	csv := strings.Join(Header, ",") + "\n" +
		"Baltic Star,,91740,30,21,24,294,32,,,,,,MGO\n" +
		"Ocean Aurora,,91740,30,21,24,294,32,,,,,,MGO\n"

	tr := newFakeTransport("Ocean Aurora")
	coord := NewCoordinator(tr, nil)

	if _, err := coord.Begin(context.Background(), csv); err != nil {
		t.Fatal(err)
	}

	summary, err := coord.Commit(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := models.ImportSummary{Imported: 1, Updated: 0, Skipped: 1}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}
	if len(tr.updated) != 0 {
		t.Errorf("unchecked duplicate must not be updated: %v", tr.updated)
	}
}

func TestCommitDuplicateSelected(t *testing.T) {
	csv := csvWithShips("Ocean Aurora")
	tr := newFakeTransport("Ocean Aurora")
	coord := NewCoordinator(tr, nil)

	if _, err := coord.Begin(context.Background(), csv); err != nil {
		t.Fatal(err)
	}
	summary, err := coord.Commit(context.Background(), []int{0})
	if err != nil {
		t.Fatal(err)
	}
	want := models.ImportSummary{Imported: 0, Updated: 1, Skipped: 0}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}
	if len(tr.updated) != 1 || tr.updated[0] != 1 {
		t.Errorf("updated ids = %v, want [1]", tr.updated)
	}
}

func TestCommitTransportFailureContinues(t *testing.T) {
	csv := csvWithShips("Alpha", "Bravo", "Charlie")
	tr := newFakeTransport()
	tr.failCreateOn["Bravo"] = true
	coord := NewCoordinator(tr, nil)

	if _, err := coord.Begin(context.Background(), csv); err != nil {
		t.Fatal(err)
	}
	summary, err := coord.Commit(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	want := models.ImportSummary{Imported: 2, Updated: 0, Skipped: 1}
	if summary != want {
		t.Errorf("summary = %+v, want %+v", summary, want)
	}

	// Rows go upstream in input order, failure or not.
	if len(tr.created) != 2 || tr.created[0] != "Alpha" || tr.created[1] != "Charlie" {
		t.Errorf("created = %v, want [Alpha Charlie]", tr.created)
	}

	session, ok := coord.Current()
	if !ok || session.State != StateSummary {
		t.Errorf("session state = %v, want SUMMARY", session.State)
	}
}

func TestCommitEmptySelectionNoValid(t *testing.T) {
	csv := csvWithShips("Ocean Aurora") // duplicate only
	tr := newFakeTransport("Ocean Aurora")
	coord := NewCoordinator(tr, nil)

	if _, err := coord.Begin(context.Background(), csv); err != nil {
		t.Fatal(err)
	}

	// Nothing confirmed: no-op, still reviewing.
	summary, err := coord.Commit(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if summary != (models.ImportSummary{}) {
		t.Errorf("summary = %+v, want zero", summary)
	}
	session, ok := coord.Current()
	if !ok || session.State != StateReviewing {
		t.Errorf("state = %v, want REVIEWING", session.State)
	}
	if len(tr.created)+len(tr.updated) != 0 {
		t.Error("no-op commit must not call the transport")
	}
}

func TestCommitCancellation(t *testing.T) {
	csv := csvWithShips("Alpha", "Bravo", "Charlie", "Delta")
	tr := newFakeTransport()
	coord := NewCoordinator(tr, nil)

	if _, err := coord.Begin(context.Background(), csv); err != nil {
		t.Fatal(err)
	}

	// Cancel after the second row: remaining rows are skipped, the session
	// still lands in SUMMARY.
	ctx, cancel := context.WithCancel(context.Background())
	count := 0
	last := 0.0
	coord.progress = func(stage string, percent float64) {
		if stage == "commit" {
			count++
			last = percent
			if count == 2 {
				cancel()
			}
		}
	}

	summary, err := coord.Commit(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Imported != 2 || summary.Skipped != 2 {
		t.Errorf("summary = %+v, want imported 2 skipped 2", summary)
	}
	// Progress must still terminate at 100 even though half the rows were
	// skipped.
	if last != 100 {
		t.Errorf("final commit progress = %v, want 100", last)
	}
	session, _ := coord.Current()
	if session.State != StateSummary {
		t.Errorf("state = %v, want SUMMARY", session.State)
	}
}

func TestBeginWhileCommittingIsBusy(t *testing.T) {
	csv := csvWithShips("Alpha")
	tr := newFakeTransport()
	tr.blockCreate = make(chan struct{})
	coord := NewCoordinator(tr, nil)

	if _, err := coord.Begin(context.Background(), csv); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := coord.Commit(context.Background(), nil); err != nil {
			t.Errorf("commit failed: %v", err)
		}
	}()

	// Wait until the commit is holding its first transport call.
	for {
		if session, ok := coord.Current(); ok && session.State == StateCommitting {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := coord.Begin(context.Background(), csvWithShips("Bravo")); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}

	close(tr.blockCreate)
	<-done
}

func TestDismiss(t *testing.T) {
	csv := csvWithShips("Alpha")
	tr := newFakeTransport()
	coord := NewCoordinator(tr, nil)

	if _, err := coord.Begin(context.Background(), csv); err != nil {
		t.Fatal(err)
	}
	if err := coord.Dismiss(); err != nil {
		t.Fatal(err)
	}
	if _, ok := coord.Current(); ok {
		t.Error("dismissed session should be gone")
	}
	if len(tr.created) != 0 {
		t.Error("dismiss must have no side effects")
	}

	if err := coord.Dismiss(); !errors.Is(err, ErrNoSession) {
		t.Errorf("expected ErrNoSession, got %v", err)
	}
}

func TestProgressMilestones(t *testing.T) {
	csv := csvWithShips("Alpha", "Bravo")
	tr := newFakeTransport()

	var stages []string
	var percents []float64
	coord := NewCoordinator(tr, func(stage string, percent float64) {
		stages = append(stages, stage)
		percents = append(percents, percent)
	})

	if _, err := coord.Begin(context.Background(), csv); err != nil {
		t.Fatal(err)
	}

	// parse 10, fuel_types 20, existing 30, validate start 40, then one
	// step per row inside (40, 80].
	wantPrefix := []float64{10, 20, 30, 40, 60, 80}
	if len(percents) != len(wantPrefix) {
		t.Fatalf("progress events = %v %v", stages, percents)
	}
	for i, want := range wantPrefix {
		if percents[i] != want {
			t.Errorf("event %d (%s) = %v, want %v", i, stages[i], percents[i], want)
		}
	}

	stages, percents = nil, nil
	if _, err := coord.Commit(context.Background(), nil); err != nil {
		t.Fatal(err)
	}
	if len(percents) != 2 || percents[0] != 50 || percents[1] != 100 {
		t.Errorf("commit progress = %v, want [50 100]", percents)
	}
}

func TestClassifyOrderPreserving(t *testing.T) {
	csv := strings.Join(Header, ",") + "\n" +
		"Alpha,,91740,30,21,24,294,32,,,,,,MGO\n" +
		"Existing One,,91740,30,21,24,294,32,,,,,,MGO\n" +
		"Bravo,,91740,30,21,24,294,32,,,,,,MGO\n" +
		"Broken,,0,30,21,24,294,32,,,,,,MGO\n" +
		"Existing Two,,91740,30,21,24,294,32,,,,,,MGO\n" +
		"Charlie,,91740,30,21,24,294,32,,,,,,MGO\n"

	rows, err := Parse(csv)
	if err != nil {
		t.Fatal(err)
	}
	existing := []models.CruiseShip{{ID: 5, Name: "Existing One"}, {ID: 9, Name: "Existing Two"}}
	batch := Classify(rows, testFuelTypes(), existing, nil)

	var validNames []string
	for _, s := range batch.ValidShips {
		validNames = append(validNames, s.ShipName)
	}
	if strings.Join(validNames, " ") != "Alpha Bravo Charlie" {
		t.Errorf("valid order = %v", validNames)
	}

	if batch.DuplicateShips[0].ExistingID != 5 || batch.DuplicateShips[1].ExistingID != 9 {
		t.Errorf("duplicate order wrong: %+v", batch.DuplicateShips)
	}

	// Line numbers track the original CSV positions.
	if batch.InvalidShips[0].LineNumber != 5 {
		t.Errorf("invalid line number = %d, want 5", batch.InvalidShips[0].LineNumber)
	}
}
