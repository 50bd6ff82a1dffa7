package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dgallion1/docnav/internal/collab"
	"github.com/dgallion1/docnav/internal/config"
	"github.com/dgallion1/docnav/internal/ingest"
	"github.com/dgallion1/docnav/internal/service"
)

// Server is the HTTP API server for docnav.
type Server struct {
	router       chi.Router
	nav          *service.Navigator
	orchestrator *ingest.Orchestrator
	docs         collab.IdentifierLister
	registry     *prometheus.Registry
	httpMetrics  *httpMetrics
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server. HTTP metrics are
// registered in reg and /metrics serves it; a nil reg gets a private one.
func NewServer(nav *service.Navigator, orch *ingest.Orchestrator, docs collab.IdentifierLister, reg *prometheus.Registry, log *slog.Logger, cfg config.Config) *Server {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	s := &Server{
		nav:          nav,
		orchestrator: orch,
		docs:         docs,
		registry:     reg,
		httpMetrics:  newHTTPMetrics(reg),
		log:          log,
		cfg:          cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log, s.httpMetrics))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Get("/api/documents", s.handleListDocuments)
		r.Get("/api/documents/{docID}/outline", s.handleOutline)
		r.Get("/api/documents/{docID}/chunks/{index}", s.handleChunk)
		r.Get("/api/documents/{docID}/range", s.handleRange)
		r.Post("/api/documents/{docID}/edits", s.handleEdits)

		r.Post("/api/import", s.handleImport)
		r.Get("/api/import/{jobID}/status", s.handleImportStatus)

		r.Get("/api/stats/edits", s.handleEditStats)
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
