// Package cmd provides the CLI commands for EventScout.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/eventscout/eventscout/internal/logging"
	"github.com/eventscout/eventscout/internal/profiling"
	"github.com/eventscout/eventscout/pkg/version"
)

// Profiling flags
var (
	profileCPU   string
	profileMem   string
	profileTrace string
	profSession  *profiling.Session
)

// Debug logging flag
var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the eventscout CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eventscout",
		Short: "Resilient discovery of event pages across search providers",
		Long: `EventScout finds web pages for real conferences and summits in a
country and date window. Queries fan out over Firecrawl, Serper, and a
curated catalog through escalating query tiers; candidates pass a
quality gate and an AI ranker with a deterministic fallback.

Run 'eventscout search "legal tech" --country DE' for a one-shot search,
or 'eventscout serve' to expose the pipeline over HTTP.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Set version template
	cmd.SetVersionTemplate("eventscout version {{.Version}}\n")

	// Profiling flags
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")

	// Debug logging flag
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.eventscout/logs/")

	// Setup profiling and logging hooks
	cmd.PersistentPreRunE = startProfilingAndLogging
	cmd.PersistentPostRunE = stopProfilingAndLogging

	// Add subcommands
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newCacheCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startProfilingAndLogging starts debug logging and the requested
// profile captures before any subcommand runs.
func startProfilingAndLogging(_ *cobra.Command, _ []string) error {
	// Start debug logging if enabled
	if debugMode {
		logger, cleanup, err := logging.Setup(logging.DebugConfig())
		if err != nil {
			return fmt.Errorf("failed to setup debug logging: %w", err)
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Info("Debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()))
	}

	opts := profiling.Options{
		CPUPath:   profileCPU,
		HeapPath:  profileMem,
		TracePath: profileTrace,
	}
	if opts.Enabled() {
		session, err := profiling.Start(opts)
		if err != nil {
			return fmt.Errorf("failed to start profiling: %w", err)
		}
		profSession = session
	}

	return nil
}

// stopProfilingAndLogging flushes the profile captures and closes the
// debug log after the subcommand finishes.
func stopProfilingAndLogging(_ *cobra.Command, _ []string) error {
	if profSession != nil {
		if err := profSession.Stop(); err != nil {
			return fmt.Errorf("failed to stop profiling: %w", err)
		}
		profSession = nil
	}

	// Stop debug logging
	if loggingCleanup != nil {
		slog.Info("Debug logging stopped")
		loggingCleanup()
		loggingCleanup = nil
	}

	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
