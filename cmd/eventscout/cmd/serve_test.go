package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventscout/eventscout/internal/config"
	"github.com/eventscout/eventscout/internal/logging"
)

func TestServeCmd_Flags(t *testing.T) {
	// Given the serve command
	cmd := newServeCmd()

	// Then the port defaults to 8080 and the check can be skipped
	port := cmd.Flags().Lookup("port")
	require.NotNil(t, port)
	assert.Equal(t, "8080", port.DefValue)
	assert.NotNil(t, cmd.Flags().Lookup("skip-check"))
}

func TestServerLogPath(t *testing.T) {
	// Given no explicit log file
	cfg := config.NewConfig()
	cfg.Logging.File = ""

	// Then the default location applies
	assert.Equal(t, logging.DefaultLogPath(), serverLogPath(cfg))

	// Given an explicit log file
	cfg.Logging.File = "/var/log/eventscout.log"

	// Then it wins
	assert.Equal(t, "/var/log/eventscout.log", serverLogPath(cfg))
}

func TestBuildMetrics_PersistsToStateDir(t *testing.T) {
	isolateHome(t)

	// Given the default configuration under a fresh home
	cfg := config.NewConfig()

	// When building the metrics collector
	metrics, cleanup := buildMetrics(cfg)
	require.NotNil(t, metrics)
	require.NotNil(t, cleanup)

	// Then the persistence database exists in the state directory
	_, err := os.Stat(cfg.Telemetry.ResolveMetricsPath())
	assert.NoError(t, err)

	cleanup()
}

func TestBuildMetrics_ExplicitPath(t *testing.T) {
	isolateHome(t)

	// Given an explicit metrics path in a directory that does not exist yet
	cfg := config.NewConfig()
	cfg.Telemetry.MetricsPath = filepath.Join(t.TempDir(), "deep", "metrics.db")

	// When building the metrics collector
	metrics, cleanup := buildMetrics(cfg)
	require.NotNil(t, metrics)
	defer cleanup()

	// Then the directory is created on the way
	_, err := os.Stat(cfg.Telemetry.MetricsPath)
	assert.NoError(t, err)
}
