package telemetry

import (
	"context"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

const sentryServiceName = "eventscout"

// SentryConfig holds the configuration for Sentry initialization.
type SentryConfig struct {
	DSN         string
	Environment string
	SampleRate  float64
	Debug       bool
}

// InitSentry initializes error reporting. Returns a shutdown function that
// flushes pending events. An empty DSN or a failed init returns a no-op
// shutdown; the pipeline runs identically without Sentry.
func InitSentry(cfg SentryConfig) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}

	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		SampleRate:  cfg.SampleRate,
		Debug:       cfg.Debug,
		ServerName:  sentryServiceName,
	})
	if err != nil {
		slog.Warn("sentry init failed, continuing without error reporting",
			"error", err)
		return func() {}, nil
	}

	shutdown := func() {
		sentry.Flush(5 * time.Second)
	}

	slog.Info("sentry error reporting initialized",
		"environment", cfg.Environment,
		"sample_rate", cfg.SampleRate)
	return shutdown, nil
}

// CaptureError reports an error to Sentry. Safe to call when Sentry was
// never initialized.
func CaptureError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}
