package server

import (
	"net/http"

	"mcpstudio/internal/aggregator"
	"mcpstudio/internal/reconciler"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultUserHeader carries the id of the already authenticated user.
const DefaultUserHeader = "X-User-Id"

// Options configures the HTTP surface.
type Options struct {
	Manager     *aggregator.ConnectionManager
	Coordinator *reconciler.Coordinator

	// UserHeader names the trusted identity header. Defaults to
	// DefaultUserHeader.
	UserHeader string

	// Gatherer backs /metrics. Defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// Server routes HTTP requests to the connection manager.
type Server struct {
	manager *aggregator.ConnectionManager
	coord   *reconciler.Coordinator
	router  chi.Router
}

// New builds the router.
func New(opts Options) *Server {
	if opts.UserHeader == "" {
		opts.UserHeader = DefaultUserHeader
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		manager: opts.Manager,
		coord:   opts.Coordinator,
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{
		ErrorLog: promErrorLog{},
	}))

	r.Route("/api/mcp", func(r chi.Router) {
		r.Use(identity(opts.UserHeader))
		r.Use(s.ensureConnections)

		r.Get("/servers", s.listServers)
		r.Get("/tools", s.listTools)
		r.Get("/resources", s.listResources)
		r.Post("/tools/call", s.callTool)
		r.Post("/resources/read", s.readResource)
	})

	s.router = r
	return s
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
