package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"

	"lazycashier/internal/handlers"
	"lazycashier/internal/observability"
	"lazycashier/internal/services"
)

type Server struct {
	provider    services.AnalyticsProvider
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

// Options carries the collaborators that are optional for a Server. A nil
// Metrics leaves /metrics unregistered and a nil Clock means wall time.
type Options struct {
	Metrics        *observability.Metrics
	Clock          clockwork.Clock
	StreamInterval time.Duration
	Version        string
	Templates      *TemplateHandlers
}

func NewServer(provider services.AnalyticsProvider, logger *slog.Logger, opts Options) *Server {
	if opts.StreamInterval <= 0 {
		opts.StreamInterval = 2 * time.Second
	}

	s := &Server{
		provider:    provider,
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(provider, logger, opts.Version),
		sseHandlers: handlers.NewSSEHandlers(provider, logger, opts.Clock, opts.StreamInterval),
	}
	s.setupRoutes(opts)
	return s
}

func (s *Server) setupRoutes(opts Options) {
	// REST API, the surface the POS frontend talks to
	s.mux.HandleFunc("GET /{$}", s.apiHandlers.HandleRoot)
	s.mux.HandleFunc("GET /api/analytics", s.apiHandlers.HandleAnalytics)
	s.mux.HandleFunc("POST /api/analytics/expenses", s.apiHandlers.HandleUpdateExpenses)
	s.mux.HandleFunc("GET /api/analytics/profit", s.apiHandlers.HandleProfit)

	// Operations
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)
	if opts.Metrics != nil {
		s.mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	// Dashboard and datastar SSE endpoints
	if opts.Templates != nil && opts.Templates.Dashboard != nil {
		s.mux.HandleFunc("GET /dashboard", opts.Templates.Dashboard)
	}
	s.mux.HandleFunc("GET /sse/analytics", s.sseHandlers.HandleAnalytics)
	s.mux.HandleFunc("GET /sse/profit", s.sseHandlers.HandleProfit)
	s.mux.HandleFunc("GET /sse/live", s.sseHandlers.HandleLive)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
