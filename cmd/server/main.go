package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nauticalflow/vessel-manager/internal/api"
	"github.com/nauticalflow/vessel-manager/internal/config"
	"github.com/nauticalflow/vessel-manager/internal/congestion"
	"github.com/nauticalflow/vessel-manager/internal/crypto"
	"github.com/nauticalflow/vessel-manager/internal/database"
	"github.com/nauticalflow/vessel-manager/internal/ingest"
	syncsvc "github.com/nauticalflow/vessel-manager/internal/sync"
	"github.com/nauticalflow/vessel-manager/internal/transport"
	"github.com/nauticalflow/vessel-manager/pkg/metrics"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})

	log.Info().Msg("Vessel Manager starting up")

	// Load config
	cfg := config.Load()

	// Connect database
	db, err := database.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	collector := metrics.NewCollector("vessel_manager")

	// Upstream API client
	client := transport.NewClient(cfg.APIBaseURL, cfg.APIToken)
	client.OnRequest(func(method string, elapsed time.Duration) {
		collector.UpstreamRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	})

	// Catalog refresh scheduler
	scheduler := syncsvc.NewScheduler(db, client, cfg)
	if err := scheduler.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start scheduler")
	}
	defer scheduler.Stop()

	// Import pipeline
	progress := api.NewProgressTracker()
	coordinator := ingest.NewCoordinator(client, progress.Record)

	// Port congestion dataset; the service runs fine without it
	congestionData, err := congestion.Load(cfg.CongestionCSV)
	if err != nil {
		log.Warn().Err(err).Str("path", cfg.CongestionCSV).Msg("congestion data unavailable")
		congestionData = nil
	}

	// Credential keyring
	keyring, err := crypto.NewKeyring(cfg.EncryptionKey)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize keyring")
	}

	// API server
	srv := api.NewServer(api.Deps{
		DB:          db,
		Cfg:         cfg,
		Scheduler:   scheduler,
		Coordinator: coordinator,
		Progress:    progress,
		Congestion:  congestionData,
		Keyring:     keyring,
		Metrics:     collector,
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server
	go func() {
		log.Info().Str("port", cfg.Port).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}

	log.Info().Msg("Vessel Manager stopped")
}
