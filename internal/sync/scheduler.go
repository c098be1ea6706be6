// Package sync keeps the local vessel cache current with the upstream API
// on a cron schedule.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/nauticalflow/vessel-manager/internal/config"
	"github.com/nauticalflow/vessel-manager/internal/database"
	"github.com/nauticalflow/vessel-manager/internal/models"
	"github.com/nauticalflow/vessel-manager/internal/transport"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

type Scheduler struct {
	db     *database.DB
	client *transport.Client
	cfg    *config.Config
	cron   *cron.Cron
}

func NewScheduler(db *database.DB, client *transport.Client, cfg *config.Config) *Scheduler {
	return &Scheduler{
		db:     db,
		client: client,
		cfg:    cfg,
		cron:   cron.New(),
	}
}

// Start begins the scheduled catalog refresh
func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.cfg.RefreshSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		log.Info().Msg("scheduled catalog refresh starting")
		if err := s.RefreshCatalog(ctx); err != nil {
			log.Error().Err(err).Msg("scheduled catalog refresh failed")
		}
	})
	if err != nil {
		return fmt.Errorf("adding cron job: %w", err)
	}

	s.cron.Start()
	log.Info().Str("schedule", s.cfg.RefreshSchedule).Msg("refresh scheduler started")

	// Run on startup if the cache is empty
	if s.cfg.RefreshOnStartup {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			defer cancel()

			count, _ := s.db.GetVesselCount(ctx)
			if count == 0 {
				log.Info().Msg("no vessels in cache, running startup refresh")
				if err := s.RefreshCatalog(ctx); err != nil {
					log.Error().Err(err).Msg("startup catalog refresh failed")
				}
			} else {
				log.Info().Int("count", count).Msg("vessels already cached, skipping startup refresh")
			}
		}()
	}

	return nil
}

// Stop gracefully stops the scheduler
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info().Msg("refresh scheduler stopped")
}

// RefreshCatalog pulls fuel types and the ship catalog from the upstream
// API into the local cache, recording an audit row either way.
func (s *Scheduler) RefreshCatalog(ctx context.Context) error {
	historyID, _ := s.db.InsertImportHistory(ctx, "catalog_refresh")

	fuelTypes, err := s.client.ListFuelTypes(ctx)
	if err != nil {
		s.db.CompleteImportHistory(ctx, historyID, "error", models.ImportSummary{}, err.Error())
		return fmt.Errorf("fetching fuel types: %w", err)
	}
	if err := s.db.ReplaceFuelTypes(ctx, fuelTypes); err != nil {
		s.db.CompleteImportHistory(ctx, historyID, "error", models.ImportSummary{}, err.Error())
		return fmt.Errorf("caching fuel types: %w", err)
	}

	ships, err := s.client.ListCruiseShips(ctx)
	if err != nil {
		s.db.CompleteImportHistory(ctx, historyID, "error", models.ImportSummary{}, err.Error())
		return fmt.Errorf("fetching cruise ships: %w", err)
	}

	count := 0
	for i := range ships {
		if err := s.db.UpsertVessel(ctx, &ships[i]); err != nil {
			log.Warn().Err(err).Str("name", ships[i].Name).Msg("failed to cache vessel")
			continue
		}
		count++
	}

	s.db.CompleteImportHistory(ctx, historyID, "success",
		models.ImportSummary{Imported: count, Skipped: len(ships) - count}, "")
	log.Info().Int("vessels", count).Int("fuel_types", len(fuelTypes)).Msg("catalog refresh complete")
	return nil
}
