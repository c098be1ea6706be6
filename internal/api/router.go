package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/nauticalflow/vessel-manager/internal/analysis"
	"github.com/nauticalflow/vessel-manager/internal/config"
	"github.com/nauticalflow/vessel-manager/internal/congestion"
	"github.com/nauticalflow/vessel-manager/internal/crypto"
	"github.com/nauticalflow/vessel-manager/internal/database"
	"github.com/nauticalflow/vessel-manager/internal/fuelcurve"
	"github.com/nauticalflow/vessel-manager/internal/ingest"
	"github.com/nauticalflow/vessel-manager/internal/llm"
	"github.com/nauticalflow/vessel-manager/internal/models"
	syncsvc "github.com/nauticalflow/vessel-manager/internal/sync"
	"github.com/nauticalflow/vessel-manager/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// Deps bundles everything the HTTP surface needs.
type Deps struct {
	DB          *database.DB
	Cfg         *config.Config
	Scheduler   *syncsvc.Scheduler
	Coordinator *ingest.Coordinator
	Progress    *ProgressTracker
	Congestion  *congestion.Dataset
	Keyring     *crypto.Keyring
	Metrics     *metrics.Collector
}

type Server struct {
	deps           Deps
	llmRateLimiter *rate.Limiter
}

func NewServer(deps Deps) *Server {
	return &Server{
		deps:           deps,
		llmRateLimiter: rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(5 * time.Minute))
	r.Use(s.recordMetrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{s.deps.Cfg.BaseURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.healthCheck)
		r.Get("/status", s.getStatus)

		// Cached vessel catalog
		r.Route("/vessels", func(r chi.Router) {
			r.Get("/", s.listVessels)
			r.Get("/{name}", s.getVessel)
		})
		r.Get("/fuel-types", s.listFuelTypes)

		// Curve engine
		r.Post("/curve/preview", s.previewCurve)

		// CSV import sessions
		r.Route("/import", func(r chi.Router) {
			r.Post("/csv", s.beginImport)
			r.Post("/commit", s.commitImport)
			r.Post("/dismiss", s.dismissImport)
			r.Get("/session", s.getImportSession)
			r.Get("/progress", s.getImportProgress)
			r.Get("/template", s.getImportTemplate)
			r.Get("/history", s.getImportHistory)
		})

		// Catalog refresh
		r.Route("/refresh", func(r chi.Router) {
			r.Post("/", s.triggerRefresh)
		})

		// Fleet fuel analysis
		r.Get("/analysis", s.getAnalysis)

		// Port congestion
		r.Route("/congestion", func(r chi.Router) {
			r.Get("/port", s.getPortCongestion)
			r.Post("/route", s.getRouteCongestion)
		})

		// Settings
		r.Route("/settings", func(r chi.Router) {
			r.Get("/llm-config", s.getLLMConfig)
			r.Put("/llm-config", s.setLLMConfig)
		})

		// LLM operations
		r.Route("/llm", func(r chi.Router) {
			r.With(s.rateLimitLLM).Post("/test-connection", s.testLLMConnection)
			r.With(s.rateLimitLLM).Post("/generate-report", s.generateFuelReport)
		})
	})

	return r
}

// --- Middleware ---

func (s *Server) rateLimitLLM(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.llmRateLimiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "Rate limit exceeded - please wait before making another LLM request")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) recordMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.Metrics == nil {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		endpoint := chi.RouteContext(r.Context()).RoutePattern()
		if endpoint == "" {
			endpoint = r.URL.Path
		}
		s.deps.Metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(ww.Status()))
		s.deps.Metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	})
}

// --- Health & Status ---

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vesselCount, _ := s.deps.DB.GetVesselCount(ctx)
	history, _ := s.deps.DB.GetImportHistory(ctx, 1)

	var lastRun *models.ImportHistory
	if len(history) > 0 {
		lastRun = &history[0]
	}

	sessionState := ""
	if session, ok := s.deps.Coordinator.Current(); ok {
		sessionState = string(session.State)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vessels":        vesselCount,
		"import_session": sessionState,
		"last_run":       lastRun,
		"config": map[string]interface{}{
			"refresh_schedule": s.deps.Cfg.RefreshSchedule,
			"db_driver":        s.deps.Cfg.DBDriver,
		},
	})
}

// --- Vessel Catalog ---

func (s *Server) listVessels(w http.ResponseWriter, r *http.Request) {
	vessels, err := s.deps.DB.GetAllVessels(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch vessels: "+err.Error())
		return
	}
	if vessels == nil {
		vessels = []models.CruiseShip{}
	}
	writeJSON(w, http.StatusOK, vessels)
}

func (s *Server) getVessel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	vessel, err := s.deps.DB.GetVesselByName(r.Context(), name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if vessel == nil {
		writeError(w, http.StatusNotFound, "Vessel not found")
		return
	}
	writeJSON(w, http.StatusOK, vessel)
}

func (s *Server) listFuelTypes(w http.ResponseWriter, r *http.Request) {
	fuelTypes, err := s.deps.DB.GetAllFuelTypes(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if fuelTypes == nil {
		fuelTypes = []models.FuelType{}
	}
	writeJSON(w, http.StatusOK, fuelTypes)
}

// --- Curve Engine ---

func (s *Server) previewCurve(w http.ResponseWriter, r *http.Request) {
	var specs models.ShipSpecs
	if err := json.NewDecoder(r.Body).Decode(&specs); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}

	curve, err := fuelcurve.Compute(specs)
	if s.deps.Metrics != nil {
		s.deps.Metrics.CurveComputationsTotal.Inc()
		if err != nil {
			s.deps.Metrics.CurveComputationsFailed.Inc()
		}
	}
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"hotel_load_mw": fuelcurve.HotelLoad(specs.GrossTonnage),
		"curve":         curve,
	})
}

// --- CSV Import ---

func (s *Server) beginImport(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 10<<20)) // 10MB limit
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body")
		return
	}

	session, err := s.deps.Coordinator.Begin(r.Context(), string(body))
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrBusy):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, ingest.ErrParse):
			writeError(w, http.StatusUnprocessableEntity, err.Error())
		default:
			writeError(w, http.StatusBadGateway, err.Error())
		}
		return
	}

	if s.deps.Metrics != nil {
		s.deps.Metrics.ImportBatchSize.Observe(float64(session.Rows))
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) commitImport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConfirmedDuplicates []int `json:"confirmed_duplicates"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	ctx := r.Context()
	session, ok := s.deps.Coordinator.Current()

	// A commit with nothing confirmed is a no-op that stays in review; it
	// must not leave an audit row claiming an import ran.
	willCommit := ok && len(session.Batch.ValidShips) > 0
	if ok && !willCommit {
		for _, idx := range req.ConfirmedDuplicates {
			if idx >= 0 && idx < len(session.Batch.DuplicateShips) {
				willCommit = true
				break
			}
		}
	}

	historyID := 0
	if willCommit {
		historyID, _ = s.deps.DB.InsertImportHistory(ctx, "csv_import")
	}

	start := time.Now()
	summary, err := s.deps.Coordinator.Commit(ctx, req.ConfirmedDuplicates)
	if err != nil {
		if willCommit {
			s.deps.DB.CompleteImportHistory(ctx, historyID, "error", models.ImportSummary{}, err.Error())
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if !willCommit {
		writeJSON(w, http.StatusOK, summary)
		return
	}

	// History rows must land even when the client went away mid-commit.
	auditCtx := context.WithoutCancel(ctx)
	s.deps.DB.CompleteImportHistory(auditCtx, historyID, "success", summary, "")

	if s.deps.Metrics != nil {
		s.deps.Metrics.ImportDuration.Observe(time.Since(start).Seconds())
		s.deps.Metrics.RecordImportSummary(summary.Imported, summary.Updated, summary.Skipped,
			len(session.Batch.InvalidShips))
		s.deps.Metrics.ImportSessionsTotal.WithLabelValues("committed").Inc()
	}

	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) dismissImport(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Coordinator.Dismiss(); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if s.deps.Metrics != nil {
		s.deps.Metrics.ImportSessionsTotal.WithLabelValues("dismissed").Inc()
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Import dismissed"})
}

func (s *Server) getImportSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.deps.Coordinator.Current()
	if !ok {
		writeError(w, http.StatusNotFound, "No active import session")
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (s *Server) getImportProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Progress.Snapshot())
}

func (s *Server) getImportTemplate(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="vessel-import-template.csv"`)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(ingest.Template()))
}

func (s *Server) getImportHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.deps.DB.GetImportHistory(r.Context(), 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if history == nil {
		history = []models.ImportHistory{}
	}
	writeJSON(w, http.StatusOK, history)
}

// --- Catalog Refresh ---

func (s *Server) triggerRefresh(w http.ResponseWriter, r *http.Request) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		err := s.deps.Scheduler.RefreshCatalog(ctx)
		if s.deps.Metrics != nil {
			result := "success"
			if err != nil {
				result = "error"
			}
			s.deps.Metrics.CatalogRefreshTotal.WithLabelValues(result).Inc()
		}
		if err != nil {
			log.Error().Err(err).Msg("manual catalog refresh failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Catalog refresh started",
	})
}

// --- Analysis ---

func (s *Server) getAnalysis(w http.ResponseWriter, r *http.Request) {
	vessels, err := s.deps.DB.GetAllVessels(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result := analysis.AnalyzeFleet(vessels)
	writeJSON(w, http.StatusOK, result)
}

// --- Congestion ---

func (s *Server) getPortCongestion(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	if country == "" {
		writeError(w, http.StatusBadRequest, "country query parameter is required")
		return
	}
	if s.deps.Congestion == nil {
		writeError(w, http.StatusServiceUnavailable, "Congestion data not loaded")
		return
	}

	hours := s.deps.Congestion.PortHours(country)
	writeJSON(w, http.StatusOK, models.PortCongestion{
		Country:         country,
		CongestionHours: hours,
		CongestionDays:  math.Round(hours/24*100) / 100,
	})
}

func (s *Server) getRouteCongestion(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Ports []models.PortCall `json:"ports"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON: "+err.Error())
		return
	}
	if s.deps.Congestion == nil {
		writeError(w, http.StatusServiceUnavailable, "Congestion data not loaded")
		return
	}

	writeJSON(w, http.StatusOK, s.deps.Congestion.RouteImpact(req.Ports))
}

// --- LLM Configuration ---

func (s *Server) getLLMConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.deps.DB.GetLLMConfig(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch LLM config")
		return
	}

	provider := ""
	maskedKey := ""
	model := ""
	apiKeySet := false

	if cfg != nil {
		provider = cfg.Provider
		model = cfg.Model
		if cfg.EncryptedAPIKey != "" {
			apiKeySet = true
			if decrypted, err := s.deps.Keyring.Open(cfg.EncryptedAPIKey); err == nil {
				maskedKey = crypto.MaskAPIKey(decrypted)
			}
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"provider":     provider,
		"api_key_set":  apiKeySet,
		"api_key_mask": maskedKey,
		"model":        model,
	})
}

func (s *Server) setLLMConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
		APIKey   string `json:"api_key"`
		Model    string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	validProviders := map[string]bool{
		llm.ProviderOpenAI:    true,
		llm.ProviderAnthropic: true,
		llm.ProviderGoogle:    true,
	}
	if !validProviders[req.Provider] {
		writeError(w, http.StatusBadRequest, "Invalid provider")
		return
	}

	encryptedKey, err := s.deps.Keyring.Seal(req.APIKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encrypt API key")
		return
	}

	if err := s.deps.DB.SetLLMConfig(r.Context(), &models.LLMConfig{
		Provider:        req.Provider,
		EncryptedAPIKey: encryptedKey,
		Model:           req.Model,
	}); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save LLM config")
		return
	}

	log.Info().Str("provider", req.Provider).Msg("LLM configuration updated")
	writeJSON(w, http.StatusOK, map[string]string{"message": "LLM configuration saved"})
}

func (s *Server) testLLMConnection(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider string `json:"provider"`
		APIKey   string `json:"api_key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Provider == "" || req.APIKey == "" {
		writeError(w, http.StatusBadRequest, "Provider and API key are required")
		return
	}

	client, err := llm.NewClient(req.Provider, req.APIKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()
	if err := client.TestConnection(ctx); err != nil {
		writeError(w, http.StatusUnauthorized, "API key is invalid: "+err.Error())
		return
	}

	availableModels, err := client.ListModels(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch models: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"models":  availableModels,
	})
}

func (s *Server) generateFuelReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	llmConfig, err := s.deps.DB.GetLLMConfig(ctx)
	if err != nil || llmConfig == nil || llmConfig.EncryptedAPIKey == "" {
		writeError(w, http.StatusBadRequest, "LLM not configured")
		return
	}

	apiKey, err := s.deps.Keyring.Open(llmConfig.EncryptedAPIKey)
	if err != nil {
		log.Error().Err(err).Msg("failed to decrypt API key")
		writeError(w, http.StatusInternalServerError, "Failed to decrypt API key")
		return
	}

	client, err := llm.NewClient(llmConfig.Provider, apiKey)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	vessels, err := s.deps.DB.GetAllVessels(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to fetch vessels")
		return
	}

	fleetAnalysis := analysis.AnalyzeFleet(vessels)

	log.Info().
		Int("vessel_count", len(vessels)).
		Str("provider", llmConfig.Provider).
		Str("model", llmConfig.Model).
		Msg("generating fuel efficiency report")

	report, err := client.GenerateFuelReport(ctx, llmConfig.Model, fleetAnalysis)
	if err != nil {
		log.Error().Err(err).Str("provider", llmConfig.Provider).Msg("report generation failed")
		writeError(w, http.StatusInternalServerError, "Report generation failed: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"report":   report,
		"provider": llmConfig.Provider,
		"model":    llmConfig.Model,
	})
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Warn().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
