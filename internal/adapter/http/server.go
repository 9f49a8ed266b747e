// Package http exposes the monitor's operational endpoints (health,
// readiness, Prometheus metrics) and the record-stream endpoints the
// external dashboard renderer consumes.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fabianodin23-lab/senapred-monitor/internal/domain"
	"github.com/fabianodin23-lab/senapred-monitor/internal/pipeline"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// AlertSource provides the snapshot published by the most recent cycle.
type AlertSource interface {
	Snapshot() pipeline.Snapshot
}

// Server exposes health, readiness, metrics, and alert data endpoints.
type Server struct {
	httpServer *http.Server
	source     AlertSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics, and
// the /api/alerts, /api/changes, /api/summary data routes.
func NewServer(addr string, ready ReadinessChecker, source AlertSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		source: source,
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /api/alerts", s.handleAlerts)
	mux.HandleFunc("GET /api/changes", s.handleChanges)
	mux.HandleFunc("GET /api/summary", s.handleSummary)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

// handleAlerts returns the active alerts, most urgent category first,
// then by region name.
func (s *Server) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	snap := s.source.Snapshot()

	active := make([]domain.Alert, 0, len(snap.Alerts))
	for _, alert := range snap.Alerts {
		if alert.Status == domain.StatusActive {
			active = append(active, alert)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		if active[i].Category.Rank() != active[j].Category.Rank() {
			return active[i].Category.Rank() < active[j].Category.Rank()
		}
		return active[i].Region < active[j].Region
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"alerts":     active,
		"updated_at": snap.UpdatedAt,
	})
}

// handleChanges returns the retained change history, newest first.
func (s *Server) handleChanges(w http.ResponseWriter, _ *http.Request) {
	snap := s.source.Snapshot()

	changes := make([]domain.ChangeEvent, len(snap.Changes))
	for i, ev := range snap.Changes {
		changes[len(snap.Changes)-1-i] = ev
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"changes":    changes,
		"updated_at": snap.UpdatedAt,
	})
}

type regionStatus struct {
	Status string `json:"status"`
	High   int    `json:"high"`
	Medium int    `json:"medium"`
	Early  int    `json:"early_warning"`
}

// handleSummary returns the rollup the dashboard header renders: totals
// per category, per-region state with dominant category, and counts per
// hazard label.
func (s *Server) handleSummary(w http.ResponseWriter, _ *http.Request) {
	snap := s.source.Snapshot()

	var high, medium, early int
	regions := make(map[string]regionStatus, len(domain.Regions))
	for _, region := range domain.Regions {
		regions[region] = regionStatus{Status: "none"}
	}
	hazards := make(map[string]int)

	for _, alert := range snap.Alerts {
		if alert.Status != domain.StatusActive {
			continue
		}
		switch alert.Category {
		case domain.CategoryHigh:
			high++
		case domain.CategoryMedium:
			medium++
		case domain.CategoryEarly:
			early++
		}
		hazards[alert.Hazard]++

		rs := regions[alert.Region]
		switch alert.Category {
		case domain.CategoryHigh:
			rs.High++
		case domain.CategoryMedium:
			rs.Medium++
		case domain.CategoryEarly:
			rs.Early++
		}
		rs.Status = dominantStatus(rs)
		regions[alert.Region] = rs
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"total":         high + medium + early,
		"high":          high,
		"medium":        medium,
		"early_warning": early,
		"regions":       regions,
		"hazards":       hazards,
		"updated_at":    snap.UpdatedAt,
	})
}

func dominantStatus(rs regionStatus) string {
	switch {
	case rs.High > 0:
		return string(domain.CategoryHigh)
	case rs.Medium > 0:
		return string(domain.CategoryMedium)
	case rs.Early > 0:
		return string(domain.CategoryEarly)
	default:
		return "none"
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
