package cmd

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"

	"github.com/eventscout/eventscout/internal/config"
	"github.com/eventscout/eventscout/internal/logging"
	"github.com/eventscout/eventscout/internal/preflight"
	"github.com/eventscout/eventscout/internal/resilience"
	"github.com/eventscout/eventscout/internal/server"
	"github.com/eventscout/eventscout/internal/telemetry"
	"github.com/eventscout/eventscout/pkg/version"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	var port int
	var skipCheck bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the search pipeline over HTTP",
		Long: `Run the EventScout HTTP API.

Endpoints:
  POST /v1/search            Run an orchestrated search
  GET  /v1/cache/stats       Cache tier statistics
  POST /v1/cache/invalidate  Invalidate cached results by provider
  GET  /v1/metrics           Search funnel and breaker health
  GET  /healthz              Liveness and version

The server runs pre-flight checks on first start and degrades rather
than refuses: missing provider keys, an unreachable cache backend, or
an absent ranking key all leave a reduced but working pipeline.`,
		Example: `  # Serve on the default port
  eventscout serve

  # Serve on a custom port
  eventscout serve --port 9000`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, port, skipCheck)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().BoolVar(&skipCheck, "skip-check", false, "Skip pre-flight system checks")

	return cmd
}

func runServe(cmd *cobra.Command, port int, skipCheck bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, secrets, err := loadConfig()
	if err != nil {
		return err
	}

	// --debug already configured logging in the root hook.
	if !debugMode {
		logCfg := logging.Config{
			Level:         cfg.Logging.Level,
			FilePath:      serverLogPath(cfg),
			MaxSizeMB:     cfg.Logging.MaxSizeMB,
			MaxFiles:      cfg.Logging.MaxBackups,
			WriteToStderr: cfg.Logging.WriteToStderr,
			Format:        "json",
		}
		logger, cleanup, err := logging.Setup(logCfg)
		if err != nil {
			return fmt.Errorf("failed to setup logging: %w", err)
		}
		defer cleanup()
		slog.SetDefault(logger)
	}

	// First start on a machine gets a silent system check; afterwards the
	// marker skips it. 'eventscout doctor' shows the full report.
	if !skipCheck && preflight.NeedsCheck(config.StateDir(), version.Version) {
		checker := preflight.New(preflight.WithOutput(io.Discard))
		results := checker.RunAll(ctx, cfg, secrets)
		if checker.HasCriticalFailures(results) {
			slog.Error("System check failed - run 'eventscout doctor' for diagnostics")
			return fmt.Errorf("system check failed")
		}
		if err := preflight.MarkPassed(config.StateDir(), version.Version); err != nil {
			slog.Debug("Failed to mark preflight as passed", slog.String("error", err.Error()))
		}
	}

	sentryFlush, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:         secrets.Sentry(cfg),
		Environment: cfg.Telemetry.Environment,
		SampleRate:  cfg.Telemetry.SampleRate,
	})
	if err != nil {
		slog.Warn("error reporting unavailable", slog.String("error", err.Error()))
	}
	defer sentryFlush()

	metrics, metricsCleanup := buildMetrics(cfg)
	defer metricsCleanup()

	st, err := buildStack(ctx, cfg, secrets, stackOptions{
		metrics:      metrics,
		watchCatalog: true,
	})
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	// The tick keeps breaker state honest while traffic is idle: an OPEN
	// breaker moves to HALF_OPEN on schedule instead of on the next request.
	if iv := cfg.Resilience.HealthTick(); iv > 0 {
		health := resilience.NewHealthTicker(st.orchestrator.Breakers(), iv)
		go func() { _ = health.Start(ctx) }()
		defer health.Stop()
	}

	var cacheHandler *server.CacheHandler
	if st.store != nil {
		cacheHandler = server.NewCacheHandler(st.store)
	}

	router := server.NewRouter(server.RouterConfig{
		Search:  server.NewSearchHandler(st.orchestrator),
		Cache:   cacheHandler,
		Metrics: server.NewMetricsHandler(metrics, st.orchestrator.Breakers()),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("eventscout listening",
			slog.Int("port", port),
			slog.String("version", version.Short()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

func serverLogPath(cfg *config.Config) string {
	if cfg.Logging.File != "" {
		return cfg.Logging.File
	}
	return logging.DefaultLogPath()
}

// buildMetrics opens the funnel persistence database. Persistence failures
// fall back to in-memory counters; the /v1/metrics endpoint stays live
// either way.
func buildMetrics(cfg *config.Config) (*telemetry.SearchMetrics, func()) {
	path := cfg.Telemetry.ResolveMetricsPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return memoryOnlyMetrics(path, err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL")
	if err == nil {
		err = telemetry.InitTelemetrySchema(db)
	}
	if err != nil {
		if db != nil {
			_ = db.Close()
		}
		return memoryOnlyMetrics(path, err)
	}

	store, err := telemetry.NewSQLiteMetricsStore(db)
	if err != nil {
		_ = db.Close()
		return memoryOnlyMetrics(path, err)
	}

	m := telemetry.NewSearchMetricsWithConfig(store, telemetry.SearchMetricsConfig{
		FlushInterval: cfg.Telemetry.FlushInterval(),
	})
	return m, func() {
		_ = m.Close()
		_ = store.Close()
		_ = db.Close()
	}
}

func memoryOnlyMetrics(path string, err error) (*telemetry.SearchMetrics, func()) {
	slog.Warn("metrics persistence unavailable, counters stay in memory",
		slog.String("path", path),
		slog.String("error", err.Error()))
	m := telemetry.NewSearchMetricsWithConfig(nil, telemetry.SearchMetricsConfig{})
	return m, func() { _ = m.Close() }
}
