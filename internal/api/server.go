package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"clinsight/adapters/render"
	"clinsight/app"
	"clinsight/internal/privacy"
	"clinsight/ports"
)

// Server is the JSON API for report composition, retrieval, and privacy
// budget management. It owns the process-wide privacy engine: the epsilon
// budget spans requests, and only the reset endpoint opens a new epoch.
type Server struct {
	router   *chi.Mux
	composer *app.OutcomeComposer
	engine   *privacy.Engine
	reports  ports.ReportRepository
	renderer *render.MarkdownRenderer
	logger   *zap.Logger
}

// NewServer wires the API routes around the given dependencies
func NewServer(
	composer *app.OutcomeComposer,
	engine *privacy.Engine,
	reports ports.ReportRepository,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		router:   chi.NewRouter(),
		composer: composer,
		engine:   engine,
		reports:  reports,
		renderer: render.NewMarkdownRenderer(),
		logger:   logger,
	}

	s.setupMiddleware()
	s.setupRoutes()
	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))
}

func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/reports", s.handleComposeReport)
		r.Get("/reports", s.handleListReports)
		r.Get("/reports/{id}", s.handleGetReport)
		r.Get("/reports/{id}/markdown", s.handleReportMarkdown)
		r.Get("/reports/{id}/html", s.handleReportHTML)

		r.Get("/privacy/budget", s.handleBudgetStatus)
		r.Get("/privacy/audit", s.handleAuditLog)
		r.Post("/privacy/reset", s.handlePrivacyReset)

		r.Get("/instruments", s.handleInstruments)
	})
}

// Handler exposes the routed handler, primarily for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start blocks serving HTTP on the given port
func (s *Server) Start(port string) error {
	addr := ":" + port
	s.logger.Info("starting API server", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.router)
}
