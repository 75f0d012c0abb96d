package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/brojonat/blinks/service/actions"
	"github.com/brojonat/blinks/service/metrics"
	natspkg "github.com/brojonat/blinks/service/nats"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	// actionVersion is the Solana Actions protocol version advertised to clients.
	actionVersion = "2.4"

	// blockchainID is the CAIP-2 id of Solana mainnet.
	blockchainID = "solana:5eykt4UsFv8P8NJdTREpY1vzqKqZKvdp"
)

// HealthChecker reports whether the server's upstream dependencies are reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Server represents the HTTP server for the actions service.
type Server struct {
	addr      string
	svc       *actions.Service
	health    HealthChecker
	publisher natspkg.Publisher
	events    *eventSink
	metrics   *metrics.Metrics
	logger    *slog.Logger
	server    *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The health checker is optional - if nil, /health only reports that the process is up.
// The publisher is optional - if nil, no action events are published.
// The metrics is optional - if nil, the metrics endpoint won't be available.
func New(addr string, svc *actions.Service, health HealthChecker, publisher natspkg.Publisher, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:      addr,
		svc:       svc,
		health:    health,
		publisher: publisher,
		events:    newEventSink(publisher, logger),
		metrics:   m,
		logger:    logger,
	}
}

// Handler builds the routed handler. Action routes are only registered for enabled
// adapters.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	route := func(pattern string, h http.Handler) {
		mux.Handle(pattern, metrics.HTTPMetricsMiddleware(s.metrics, pattern)(h))
	}

	route("GET /actions.json", handleActionsJSON())

	if s.svc.Donate != nil {
		build := handleBuild(s.svc, actions.KindDonate, s.events, s.logger)
		route("GET /api/donate", handleDonateMenu(s.svc.Donate))
		route("GET /api/donate/{amount}", handleDonateAmount(s.svc.Donate, s.logger))
		route("POST /api/donate", build)
		route("POST /api/donate/{amount}", build)
	}

	if s.svc.Buy != nil {
		build := handleBuild(s.svc, actions.KindBuy, s.events, s.logger)
		route("GET /api/buy/{target}", handleBuyMenu(s.svc.Buy, s.logger))
		route("POST /api/buy/{target}", build)
		route("POST /api/buy/{target}/{amount}", build)
	}

	if s.svc.Swap != nil {
		build := handleBuild(s.svc, actions.KindSwap, s.events, s.logger)
		route("GET /api/swap/{target}", handleSwapMenu(s.svc.Swap, s.logger))
		route("POST /api/swap/{target}", build)
		route("POST /api/swap/{target}/{amount}", build)
	}

	mux.Handle("GET /health", handleHealth(s.health, s.logger))

	if s.metrics != nil {
		mux.Handle("GET /metrics", promhttp.Handler())
	}

	return corsMiddleware(mux)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	if s.metrics != nil {
		s.logger.Info("Prometheus metrics endpoint enabled")
	}
	if s.publisher == nil {
		s.logger.Warn("NATS publisher not configured, action events disabled")
	}

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("starting HTTP server", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the HTTP server, then waits for in-flight action events.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return err
		}
	}
	if err := s.events.wait(ctx); err != nil {
		return fmt.Errorf("waiting for action events: %w", err)
	}
	return nil
}

// corsMiddleware adds the CORS and action headers wallets expect on every response and
// handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Content-Encoding, Accept-Encoding, X-Action-Version, X-Blockchain-Ids")
		w.Header().Set("Access-Control-Expose-Headers", "X-Action-Version, X-Blockchain-Ids")
		w.Header().Set("Access-Control-Max-Age", "3600")
		w.Header().Set("X-Action-Version", actionVersion)
		w.Header().Set("X-Blockchain-Ids", blockchainID)

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
