/*
main.go - HTTP server entry point

PURPOSE:
  Initializes and starts the synthetic dataset API server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (file, .env, SYNTHGEN_* environment)
  2. Initialize logger
  3. Initialize SQLite store (and the in-memory run store if configured)
  4. Create API handler, register stored custom specs
  5. Load the startup persona and start the refresh scheduler
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -config  Optional YAML config file
  -port    HTTP server port (overrides config)
  -db      SQLite database path (overrides config)
           Use ":memory:" for in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the persona refresher
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  ./server -db="./data/synth.db"
  SYNTHGEN_RUN_STORE=memory ./server
  SYNTHGEN_PERSONA=givehope SYNTHGEN_REFRESH_INTERVAL=1h ./server

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Settings and environment variables
*/
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/warp/synth-engine/api"
	"github.com/warp/synth-engine/config"
	"github.com/warp/synth-engine/generic"
	memstore "github.com/warp/synth-engine/generic/store"
	"github.com/warp/synth-engine/logger"
	"github.com/warp/synth-engine/store/sqlite"

	_ "github.com/warp/synth-engine/ecommerce"
	_ "github.com/warp/synth-engine/marketplace"
	_ "github.com/warp/synth-engine/nonprofit"
	_ "github.com/warp/synth-engine/rideshare"
	_ "github.com/warp/synth-engine/saas"
)

func main() {
	// Flags
	configPath := flag.String("config", "", "YAML config file")
	port := flag.String("port", "", "HTTP server port")
	dbPath := flag.String("db", "", "SQLite database path")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.L.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)

	// Initialize store
	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.L.Error("failed to initialize database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Runs go to sqlite unless configured to stay in memory
	var runs generic.DatasetStore
	if cfg.RunStore == "memory" {
		runs = memstore.NewMemory()
	}

	// Initialize handler
	handler := api.NewHandler(store, api.Options{
		Seed:      cfg.Seed,
		CacheTTL:  cfg.CacheTTL,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		Runs:      runs,
	})
	if err := handler.LoadSpecs(context.Background()); err != nil {
		logger.L.Warn("failed to load stored specs", "error", err)
	}

	if cfg.Persona != "" {
		if _, err := handler.LoadPersonaByID(context.Background(), cfg.Persona); err != nil {
			logger.L.Warn("failed to load startup persona", "persona", cfg.Persona, "error", err)
		}
	}
	refresher := api.NewPersonaRefresher(handler, cfg.RefreshInterval)
	refresher.Start()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(handler, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * time.Minute, // generation runs inside the request
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.L.Info("server starting", "addr", "http://localhost:"+cfg.Port, "db", cfg.DBPath, "run_store", cfg.RunStore)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.L.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.L.Info("shutting down server")
	refresher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.L.Error("server forced to shutdown", "error", err)
	}

	logger.L.Info("server stopped")
}
