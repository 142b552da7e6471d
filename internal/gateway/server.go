// Package gateway exposes the medstock inventory over HTTP: record CRUD
// with search and pagination, quick dispensing, dashboard and analytics
// aggregates, alert management, and CSV report downloads.
package gateway

import (
	"net/http"

	"github.com/NYTimes/gziphandler"
	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/medstock-labs/medstock/internal/alerts"
	"github.com/medstock-labs/medstock/internal/auth"
	"github.com/medstock-labs/medstock/internal/observability"
	"github.com/medstock-labs/medstock/internal/reports"
	"github.com/medstock-labs/medstock/internal/storage"
)

// defaultPageSize matches the record list page size of the web UI this API
// replaced.
const defaultPageSize = 25

// maxPageSize bounds client-requested page sizes.
const maxPageSize = 500

// Options configure a Server.
type Options struct {
	Store         storage.Store
	Authenticator auth.Authenticator
	Logger        *zap.Logger
	Metrics       *observability.Metrics
	Registry      *prometheus.Registry
	Checker       *alerts.Checker
	Reports       *reports.Generator
	Clock         clock.Clock

	// ExpiryWindowDays is the expiring-soon horizon for list filters and
	// dashboard counts.
	ExpiryWindowDays int

	// Version is reported by the health endpoint.
	Version string
}

// Server is the medstock HTTP API.
type Server struct {
	store      storage.Store
	auth       auth.Authenticator
	logger     *zap.Logger
	metrics    *observability.Metrics
	registry   *prometheus.Registry
	checker    *alerts.Checker
	reports    *reports.Generator
	clock      clock.Clock
	windowDays int
	version    string
}

// NewServer builds the API server. Metrics and Registry may be nil.
func NewServer(opts Options) *Server {
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	windowDays := opts.ExpiryWindowDays
	if windowDays <= 0 {
		windowDays = alerts.DefaultExpiryWindowDays
	}
	return &Server{
		store:      opts.Store,
		auth:       opts.Authenticator,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		registry:   opts.Registry,
		checker:    opts.Checker,
		reports:    opts.Reports,
		clock:      clk,
		windowDays: windowDays,
		version:    opts.Version,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.logging)

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	if s.registry != nil {
		r.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/records", s.handleListRecords)
		r.With(s.requireWrite).Post("/records", s.handleCreateRecord)
		r.Get("/records/{id}", s.handleGetRecord)
		r.With(s.requireWrite).Put("/records/{id}", s.handleUpdateRecord)
		r.With(s.requireWrite).Delete("/records/{id}", s.handleDeleteRecord)

		r.With(s.requireWrite).Post("/dispense", s.handleQuickDispense)
		r.Get("/dispense", s.handleDispenseHistory)

		r.Get("/dashboard", s.handleDashboard)
		r.Get("/analytics", s.handleAnalytics)

		r.Get("/alerts", s.handleListAlerts)
		r.With(s.requireWrite).Post("/alerts/check", s.handleCheckAlerts)
		r.With(s.requireWrite).Post("/alerts/{id}/acknowledge", s.handleAcknowledgeAlert)

		r.Get("/medicines", s.handleListMedicines)
		r.Get("/suppliers", s.handleListSuppliers)

		r.Method(http.MethodGet, "/reports",
			gziphandler.GzipHandler(http.HandlerFunc(s.handleReports)))
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if err := s.store.CheckConnectivity(r.Context()); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}
