package ingest

import (
	"context"
	"errors"
	"sync"

	"github.com/nauticalflow/vessel-manager/internal/fuelcurve"
	"github.com/nauticalflow/vessel-manager/internal/models"
	"github.com/rs/zerolog/log"
)

// State names the phases of an import session.
type State string

const (
	StateInit       State = "INIT"
	StateParsed     State = "PARSED"
	StateClassified State = "CLASSIFIED"
	StateReviewing  State = "REVIEWING"
	StateCommitting State = "COMMITTING"
	StateSummary    State = "SUMMARY"
	StateDismissed  State = "DISMISSED"
)

// ErrBusy reports an attempt to open a new session while one is committing.
var ErrBusy = errors.New("an import is already committing")

// ErrNoSession reports commit or dismiss without a reviewable session.
var ErrNoSession = errors.New("no import session under review")

// Transport is the upstream API surface the pipeline consumes. It is the
// only place mutations leave the process; the pipeline is indifferent to
// what sits behind it.
type Transport interface {
	ListCruiseShips(ctx context.Context) ([]models.CruiseShip, error)
	ListFuelTypes(ctx context.Context) ([]models.FuelType, error)
	CreateCruiseShip(ctx context.Context, payload *models.ShipPayload) error
	UpdateCruiseShip(ctx context.Context, id int, payload *models.ShipPayload) error
}

// Session is one CSV import from parse to summary. The coordinator owns it
// exclusively; snapshots handed to callers are copies.
type Session struct {
	State   State                  `json:"state"`
	Rows    int                    `json:"rows"`
	Batch   models.ClassifiedBatch `json:"batch"`
	Summary *models.ImportSummary  `json:"summary,omitempty"`
}

// Coordinator runs at most one import session at a time. Opening a new CSV
// replaces a session under review but is rejected while a commit is in
// flight.
type Coordinator struct {
	transport Transport
	progress  ProgressFunc

	mu      sync.Mutex
	session *Session
}

func NewCoordinator(transport Transport, progress ProgressFunc) *Coordinator {
	if progress == nil {
		progress = func(string, float64) {}
	}
	return &Coordinator{transport: transport, progress: progress}
}

// Begin parses and classifies CSV text, leaving the session in REVIEWING.
// No mutations are sent; the returned snapshot is what the user confirms
// against.
func (c *Coordinator) Begin(ctx context.Context, csvText string) (Session, error) {
	c.mu.Lock()
	if c.session != nil && c.session.State == StateCommitting {
		c.mu.Unlock()
		return Session{}, ErrBusy
	}
	c.mu.Unlock()

	session := &Session{State: StateInit}

	rows, err := Parse(csvText)
	if err != nil {
		return Session{}, err
	}
	session.State = StateParsed
	session.Rows = len(rows)
	c.progress("parse", progressParsed)

	fuelTypes, err := c.transport.ListFuelTypes(ctx)
	if err != nil {
		return Session{}, err
	}
	c.progress("fuel_types", progressFuelTypes)

	existing, err := c.transport.ListCruiseShips(ctx)
	if err != nil {
		return Session{}, err
	}
	c.progress("existing", progressExisting)

	session.Batch = Classify(rows, fuelTypes, existing, c.progress)
	session.State = StateClassified

	log.Info().
		Int("rows", len(rows)).
		Int("valid", len(session.Batch.ValidShips)).
		Int("duplicates", len(session.Batch.DuplicateShips)).
		Int("invalid", len(session.Batch.InvalidShips)).
		Msg("import batch classified")

	session.State = StateReviewing

	// Publish only a fully classified session. A session still under
	// review is replaced; a committing one was rejected above and is
	// re-checked here in case a commit started mid-classification.
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session != nil && c.session.State == StateCommitting {
		return Session{}, ErrBusy
	}
	c.session = session
	return *session, nil
}

// Commit pushes the confirmed subset upstream: every valid new ship, plus
// the duplicates whose indices appear in selection. Rows go one at a time
// in input order; a failed row is counted as skipped and the batch carries
// on. Cancelling ctx finishes the in-flight row, skips the rest, and still
// produces a summary.
func (c *Coordinator) Commit(ctx context.Context, selection []int) (models.ImportSummary, error) {
	c.mu.Lock()
	session := c.session
	if session == nil || session.State != StateReviewing {
		c.mu.Unlock()
		return models.ImportSummary{}, ErrNoSession
	}

	selected := make(map[int]bool, len(selection))
	for _, idx := range selection {
		if idx >= 0 && idx < len(session.Batch.DuplicateShips) {
			selected[idx] = true
		}
	}

	// Nothing confirmed: the commit control is disabled in this state, so
	// treat a stray call as a no-op and stay in review.
	if len(session.Batch.ValidShips) == 0 && len(selected) == 0 {
		c.mu.Unlock()
		return models.ImportSummary{}, nil
	}

	session.State = StateCommitting
	c.mu.Unlock()

	summary := c.commit(ctx, &session.Batch, selected)

	c.mu.Lock()
	session.Summary = &summary
	session.State = StateSummary
	c.mu.Unlock()

	return summary, nil
}

func (c *Coordinator) commit(ctx context.Context, batch *models.ClassifiedBatch, selected map[int]bool) models.ImportSummary {
	var summary models.ImportSummary

	total := len(batch.ValidShips) + len(selected)
	completed := 0
	cancelled := false

	// The in-flight transport call is never aborted: cancellation is only
	// observed between rows, and the call itself runs on a detached context.
	callCtx := context.WithoutCancel(ctx)

	for _, ship := range batch.ValidShips {
		if cancelled || ctx.Err() != nil {
			cancelled = true
			summary.Skipped++
			continue
		}
		if c.pushRow(callCtx, ship, 0) {
			summary.Imported++
		} else {
			summary.Skipped++
		}
		completed++
		c.progress("commit", 100*float64(completed)/float64(total))
	}

	for idx, dup := range batch.DuplicateShips {
		if !selected[idx] {
			summary.Skipped++
			continue
		}
		if cancelled || ctx.Err() != nil {
			cancelled = true
			summary.Skipped++
			continue
		}
		if c.pushRow(callCtx, dup.PreparedShip, dup.ExistingID) {
			summary.Updated++
		} else {
			summary.Skipped++
		}
		completed++
		c.progress("commit", 100*float64(completed)/float64(total))
	}

	// Skipped rows never advance completed, so a cancelled batch would end
	// short of 100 without a terminal event.
	if completed < total {
		c.progress("commit", 100)
	}

	log.Info().
		Int("imported", summary.Imported).
		Int("updated", summary.Updated).
		Int("skipped", summary.Skipped).
		Bool("cancelled", cancelled).
		Msg("import commit complete")

	return summary
}

// pushRow computes the ship's fuel curve and sends one create or update.
// Returns false when the row must be counted as skipped.
func (c *Coordinator) pushRow(ctx context.Context, ship models.PreparedShip, existingID int) bool {
	curve, err := fuelcurve.Compute(ship.Payload.Specs())
	if err != nil {
		log.Warn().Err(err).Str("ship", ship.ShipName).Int("line", ship.LineNumber).
			Msg("curve computation failed, skipping row")
		return false
	}

	payload := *ship.Payload
	payload.FuelConsumptionCurve = curve

	if existingID > 0 {
		err = c.transport.UpdateCruiseShip(ctx, existingID, &payload)
	} else {
		err = c.transport.CreateCruiseShip(ctx, &payload)
	}
	if err != nil {
		log.Warn().Err(err).Str("ship", ship.ShipName).Int("line", ship.LineNumber).
			Msg("upstream call failed, skipping row")
		return false
	}
	return true
}

// Dismiss abandons a session under review. No side effects have happened
// at that point.
func (c *Coordinator) Dismiss() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil || c.session.State != StateReviewing {
		return ErrNoSession
	}
	c.session.State = StateDismissed
	c.session = nil
	return nil
}

// Current returns a snapshot of the active session, if any.
func (c *Coordinator) Current() (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return Session{}, false
	}
	return *c.session, true
}
