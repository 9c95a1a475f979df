package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"sync"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gustakei/lave/config"
	"github.com/gustakei/lave/models"
	"github.com/gustakei/lave/scraper/portal"
	"github.com/gustakei/lave/storage"
	"github.com/gustakei/lave/utils"
)

const version = "1.0.0"

// maxUploadBytes bounds session-state uploads.
const maxUploadBytes = 10 << 20

type server struct {
	cfg     *config.Config
	logger  *utils.Logger
	scraper *portal.Scraper
	orch    *portal.Orchestrator
	pg      *storage.PostgresWriter

	// Canonical credentials for batches that do not carry their own.
	credsMu  sync.Mutex
	username string
	password string
}

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	logger.Info("=== Lave backend v%s starting ===", version)
	logger.Info("Config: concurrency: %d | retries: %d | nav timeout: %ds | delay: %dms",
		cfg.MaxConcurrency, cfg.MaxRetries, cfg.NavTimeoutSec, cfg.NavDelayMs)

	metrics := portal.NewMetrics()

	scraper := portal.New(cfg, logger, metrics)
	if err := scraper.Start(context.Background()); err != nil {
		logger.Error("Failed to start browser: %v", err)
		os.Exit(1)
	}
	defer scraper.Close()

	pg, err := storage.NewPostgresWriter(cfg.DSN())
	if err != nil {
		logger.Warn("PostgreSQL unavailable, report persistence disabled: %v", err)
		pg = nil
	} else {
		defer pg.Close()
	}

	srv := &server{
		cfg:      cfg,
		logger:   logger,
		scraper:  scraper,
		orch:     portal.NewOrchestrator(scraper, cfg, logger, metrics),
		pg:       pg,
		username: cfg.LoginUsername,
		password: cfg.LoginPassword,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/api/scrape", srv.withToken(srv.handleScrape))
	mux.HandleFunc("/api/discover_units", srv.withToken(srv.handleDiscover))
	mux.HandleFunc("/api/login", srv.withToken(srv.handleLogin))
	mux.HandleFunc("/api/upload-storage", srv.withToken(srv.handleUploadStorage))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/dashboard", srv.handleDashboard)

	logger.Info("Listening on :%s", cfg.Port)
	if err := http.ListenAndServe(":"+cfg.Port, mux); err != nil {
		logger.Error("Server failed: %v", err)
		os.Exit(1)
	}
}

// withToken rejects requests without the configured API token.
func (s *server) withToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Token") != s.cfg.APIToken {
			writeError(w, http.StatusUnauthorized, "invalid API token")
			return
		}
		next(w, r)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{Status: "ok", Version: version})
}

func (s *server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	var req models.ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Units) == 0 {
		writeError(w, http.StatusBadRequest, "units must not be empty")
		return
	}

	username, password := s.credentials(req.Username, req.Password)

	report := s.orch.ScrapeUnits(r.Context(), portal.BatchRequest{
		Units:        req.Units,
		StartDate:    req.StartDate,
		EndDate:      req.EndDate,
		Username:     username,
		Password:     password,
		DateSelector: req.DateSelector,
		KgSelector:   req.KgSelector,
	})

	if s.pg != nil {
		if err := s.pg.WriteReport(report.Results); err != nil {
			s.logger.Error("Report persistence failed: %v", err)
		}
	}

	writeJSON(w, http.StatusOK, report)
}

func (s *server) handleDiscover(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	// Credentials in the body are optional; stored ones are the fallback.
	var creds models.LoginCredentials
	_ = json.NewDecoder(r.Body).Decode(&creds)
	username, password := s.credentials(creds.Username, creds.Password)

	units := s.scraper.DiscoverUnits(r.Context(), username, password)
	if units == nil {
		units = []models.UnitInfo{}
	}

	writeJSON(w, http.StatusOK, models.DiscoverResponse{Units: units, Total: len(units)})
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var creds models.LoginCredentials
		if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if creds.Username == "" || creds.Password == "" {
			writeError(w, http.StatusBadRequest, "username and password are required")
			return
		}

		s.credsMu.Lock()
		s.username = creds.Username
		s.password = creds.Password
		s.credsMu.Unlock()

		s.logger.Info("Portal credentials updated")
		writeJSON(w, http.StatusOK, map[string]string{"message": "credentials updated"})

	case http.MethodGet:
		s.credsMu.Lock()
		configured := s.username != "" && s.password != ""
		username := s.username
		s.credsMu.Unlock()

		resp := map[string]any{"has_credentials": configured}
		if configured {
			resp["username"] = username
		}
		writeJSON(w, http.StatusOK, resp)

	default:
		writeError(w, http.StatusMethodNotAllowed, "GET or POST required")
	}
}

func (s *server) handleUploadStorage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	blob, err := io.ReadAll(io.LimitReader(r.Body, maxUploadBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read body")
		return
	}
	if err := storage.SaveSessionState(s.cfg.StorageStatePath, blob); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Info("Session state uploaded to %s", s.cfg.StorageStatePath)
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "session state saved",
		"path":    s.cfg.StorageStatePath,
	})
}

// handleDashboard renders kg-per-unit charts from the latest stored report.
func (s *server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	if s.pg == nil {
		writeError(w, http.StatusServiceUnavailable, "report storage is not configured")
		return
	}

	totals, err := s.pg.FetchUnitTotals()
	if err != nil {
		s.logger.Error("Dashboard fetch failed: %v", err)
		writeError(w, http.StatusInternalServerError, "could not load report data")
		return
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{
		Title:    "Kg por unidade",
		Subtitle: "último relatório",
	}))

	var x []string
	var kgSeries, daySeries []opts.BarData
	for _, t := range totals {
		label := t.UnitID
		if t.Error != "" {
			label += " (erro)"
		}
		x = append(x, label)
		kgSeries = append(kgSeries, opts.BarData{Value: t.Total})
		daySeries = append(daySeries, opts.BarData{Value: t.RowDays})
	}
	bar.SetXAxis(x).
		AddSeries("kg", kgSeries).
		AddSeries("dias", daySeries)

	if err := bar.Render(w); err != nil {
		s.logger.Error("Dashboard render failed: %v", err)
	}
}

// credentials resolves per-request credentials against the stored ones.
func (s *server) credentials(username, password string) (string, string) {
	if username != "" && password != "" {
		return username, password
	}
	s.credsMu.Lock()
	defer s.credsMu.Unlock()
	return s.username, s.password
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"detail": message})
}
