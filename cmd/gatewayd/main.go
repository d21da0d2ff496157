package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chatwire/gateway/internal/auth"
	"github.com/chatwire/gateway/internal/config"
	"github.com/chatwire/gateway/internal/health"
	"github.com/chatwire/gateway/internal/journal"
	"github.com/chatwire/gateway/internal/model"
	"github.com/chatwire/gateway/internal/router"
	"github.com/chatwire/gateway/internal/transport"
	"github.com/chatwire/gateway/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/gatewayd.local.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting gatewayd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	creds, err := auth.LoadCredentials(cfg.Account.ID, cfg.Account.DeviceID, cfg.Account.Password)
	if err != nil {
		logger.Error("failed to load credentials", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"account", creds.AccountID,
		"device_id", creds.DeviceID,
		"identified_url", cfg.Service.IdentifiedURL,
		"unidentified_url", cfg.Service.UnidentifiedURL,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Optional event journal
	var (
		events *router.Buffer[model.ChannelEvent]
		writer *journal.Writer
		pool   *pgxpool.Pool
	)
	if cfg.Journal.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Journal.Database.Host,
			"port", cfg.Journal.Database.Port,
			"database", cfg.Journal.Database.Name,
		)

		pool, err = journal.Connect(ctx, cfg.Journal.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		events = router.NewBuffer[model.ChannelEvent](cfg.Journal.BufferSize)
		writer = journal.NewWriter(journal.WriterConfig{
			BatchSize:     cfg.Journal.BatchSize,
			FlushInterval: cfg.Journal.FlushInterval,
		}, events, pool, logger)

		if err := writer.Start(ctx); err != nil {
			logger.Error("failed to start journal writer", "error", err)
			os.Exit(1)
		}

		logger.Info("journal enabled")
	}

	// Transport pair
	pairCfg := transport.PairConfig{
		IdentifiedURL:   cfg.Service.IdentifiedURL,
		UnidentifiedURL: cfg.Service.UnidentifiedURL,
		Authorization:   creds.BasicAuth(),
		WriteTimeout:    cfg.Transport.WriteTimeout,
		BufferSize:      cfg.Transport.BufferSize,
		StateBufferSize: cfg.Transport.StateBufferSize,
		RedialBaseWait:  cfg.Transport.RedialBaseWait,
		RedialMaxWait:   cfg.Transport.RedialMaxWait,
	}
	pair := transport.NewPair(pairCfg, logger)

	// Dispatcher sits between the pair and the monitor, journaling every
	// liveness signal and command that crosses it.
	dispatcher := router.NewDispatcher(creds.AccountID, events, logger)

	monitor := health.NewMonitor(creds.AccountID, dispatcher,
		health.WithLogger(logger),
		health.WithCadence(cfg.Health.KeepAliveCadence),
		health.WithStateListener(dispatcher.OnChannelState),
	)

	dispatcher.Bind(monitor, pair)
	pair.SetHealthSink(dispatcher)

	// Metrics and diagnostics server
	metricsServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: createHealthHandler(cfg.Metrics.Path, monitor, pool, writer),
	}

	go func() {
		logger.Info("starting metrics server", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
		if err := metricsServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()

	// Start the transport, then attach the monitor to its state streams.
	if err := pair.Run(ctx); err != nil {
		logger.Error("failed to start transport", "error", err)
		os.Exit(1)
	}

	if err := monitor.Attach(pair.IdentifiedStates(), pair.UnidentifiedStates()); err != nil {
		logger.Error("failed to attach health monitor", "error", err)
		os.Exit(1)
	}

	go dispatcher.Run(ctx, pair.Messages())

	logger.Info("gatewayd running",
		"account", creds.AccountID,
		"cadence", cfg.Health.KeepAliveCadence,
		"health_url", fmt.Sprintf("http://localhost:%d/healthz", cfg.Metrics.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// Transport first so the state streams close, then the monitor's
	// watchers drain, then the journal flushes what the teardown produced.
	pair.Stop(shutdownCtx)
	monitor.Stop()
	if writer != nil {
		writer.Stop(shutdownCtx)
	}
	metricsServer.Shutdown(shutdownCtx)

	logger.Info("gatewayd stopped")
}

// createHealthHandler serves Prometheus metrics plus a JSON health check.
// pool and writer are nil when the journal is disabled.
func createHealthHandler(metricsPath string, monitor *health.Monitor, pool *pgxpool.Pool, writer *journal.Writer) http.Handler {
	mux := http.NewServeMux()

	mux.Handle(metricsPath, promhttp.Handler())

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		snap := monitor.Snapshot()

		resp := struct {
			Status     string                 `json:"status"`
			Components map[string]interface{} `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]interface{}),
		}

		resp.Components["health_monitor"] = map[string]interface{}{
			"identified_connected":   snap.IdentifiedNeedsKeepAlive,
			"unidentified_connected": snap.UnidentifiedNeedsKeepAlive,
			"identified_last_ack":    snap.IdentifiedLastAck,
			"unidentified_last_ack":  snap.UnidentifiedLastAck,
			"sender_running":         snap.SenderRunning,
		}
		if !snap.IdentifiedNeedsKeepAlive && !snap.UnidentifiedNeedsKeepAlive {
			resp.Status = "degraded"
		}

		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				resp.Status = "unhealthy"
				resp.Components["postgres"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				resp.Components["postgres"] = "connected"
			}
		}

		if writer != nil {
			stats := writer.Stats()
			resp.Components["journal"] = map[string]interface{}{
				"events_written":  stats.EventsWritten,
				"batches_written": stats.BatchesWritten,
				"write_errors":    stats.WriteErrors,
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(resp)
	})

	return mux
}
