package main

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/blinks/service/actions"
	"github.com/brojonat/blinks/service/config"
	"github.com/brojonat/blinks/service/metrics"
	natspkg "github.com/brojonat/blinks/service/nats"
	"github.com/brojonat/blinks/service/quote"
	"github.com/brojonat/blinks/service/server"
	"github.com/brojonat/blinks/service/solana"
	"github.com/brojonat/blinks/service/txbuilder"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	m := metrics.NewMetrics(prometheus.DefaultRegisterer)

	// Initialize Solana RPC client
	// Note: For premium RPC endpoints, include API key in the URL
	endpoint, err := solana.SelectRandomEndpoint(solana.ParseEndpoints(cfg.SolanaRPCURL))
	if err != nil {
		logger.Error("failed to select solana RPC endpoint", "error", err)
		os.Exit(1)
	}
	solanaClient := solana.NewClient(
		solana.NewRPCClient(endpoint),
		cfg.BlockhashCommitment,
		endpointLabel(endpoint),
		m,
		logger,
	)
	logger.Info("initialized solana RPC client",
		"endpoint", endpointLabel(endpoint),
		"commitment", cfg.BlockhashCommitment,
	)

	// Quote providers share one HTTP client bounded by QUOTE_TIMEOUT
	quoteHTTP := &http.Client{Timeout: cfg.QuoteTimeout}
	pumpportal := quote.NewPumpPortal(cfg.PumpPortalURL, quoteHTTP, m, logger)
	jupiter := quote.NewJupiter(cfg.JupiterURL, quoteHTTP, m, logger)

	// Action adapters
	asm := txbuilder.NewAssembler(solanaClient, logger)
	svc := actions.NewService(
		actions.NewDonate(cfg.Donate, asm, logger),
		actions.NewBuy(cfg.Buy, pumpportal, solanaClient, asm, logger),
		actions.NewSwap(cfg.Swap, jupiter, solanaClient, asm, logger),
		m,
	)

	// Optional NATS publisher for action events
	var publisher natspkg.Publisher
	if cfg.NATSURL != "" {
		p, err := natspkg.NewPublisher(cfg.NATSURL, m, logger)
		if err != nil {
			logger.Error("failed to initialize NATS publisher", "error", err)
			os.Exit(1)
		}
		defer p.Close()
		publisher = p
	}

	// Initialize HTTP server
	httpServer := server.New(cfg.ServerAddr, svc, solanaClient, publisher, m, logger)

	logger.Info("server initialized, all dependencies ready",
		"pumpportal_url", cfg.PumpPortalURL,
		"jupiter_url", cfg.JupiterURL,
		"nats_enabled", publisher != nil,
		"public_base_url", cfg.PublicBaseURL,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}

// endpointLabel reduces an RPC URL to its host so API keys in paths or query strings
// never reach logs or metric labels.
func endpointLabel(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "unknown"
	}
	return u.Host
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
