package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eventscout/eventscout/internal/cache"
	"github.com/eventscout/eventscout/internal/event"
	"github.com/eventscout/eventscout/internal/output"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the result cache",
		Long: `Inspect and maintain the layered result cache.

The fast tier is in-process memory and dies with each process; the
shared tier (sqlite or postgres) persists across runs and is shared
with a running server. Maintenance commands act on the shared tier.`,
		Example: `  # Tier sizes and effectiveness
  eventscout cache stats

  # Drop cached results that came from one provider
  eventscout cache invalidate serper

  # Drop everything
  eventscout cache clear

  # Purge expired entries from the shared tier
  eventscout cache sweep`,
	}

	cmd.AddCommand(newCacheStatsCmd())
	cmd.AddCommand(newCacheInvalidateCmd())
	cmd.AddCommand(newCacheClearCmd())
	cmd.AddCommand(newCacheSweepCmd())

	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show cache tier sizes and hit counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheStats(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func newCacheInvalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate [provider]",
		Short: "Drop cached results containing items from a provider",
		Long: `Drop every cached result set that contains at least one item from
the named provider. Use this after a provider starts returning bad
data; the next searches repopulate the cache.`,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"firecrawl", "serper", "local"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCacheInvalidate(cmd, args[0])
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every cached result set",
		Long: `Drop every cached result set from both tiers.

Every cached set names the providers that produced it, so clearing
walks the provider list and invalidates each. The next searches
repopulate the cache.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheClear(cmd)
		},
	}
}

func newCacheSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Purge expired entries from the shared tier",
		Long: `Purge expired entries from the shared cache tier.

A running server sweeps on its own schedule; this command forces one
now. Concurrent sweeps coordinate through a file lock, so running it
next to a live server is safe.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCacheSweep(cmd)
		},
	}
}

func runCacheStats(cmd *cobra.Command, jsonOutput bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := output.New(cmd.OutOrStdout())

	cfg, secrets, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Cache.Enabled {
		out.Warning("Cache is disabled in configuration")
		return nil
	}

	store, err := buildCache(ctx, cfg, secrets)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	stats, err := store.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cache stats: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}

	out.Section("Cache")
	out.KV("Memory entries", stats.FastLen)
	if stats.HasShared {
		out.KV("Shared backend", cfg.Cache.SharedBackend)
		out.KV("Shared entries", stats.SharedLen)
	} else {
		out.KV("Shared backend", "none")
	}
	out.KV("Hit rate", fmt.Sprintf("%.0f%%", stats.HitRate()*100))
	out.Newline()
	out.Status("💡", "Counters are per process; a running server reports live ones at /v1/cache/stats")

	return nil
}

func runCacheInvalidate(cmd *cobra.Command, providerName string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := output.New(cmd.OutOrStdout())

	switch providerName {
	case "firecrawl", "serper", "local":
	default:
		return fmt.Errorf("unknown provider %q (use: firecrawl, serper, local)", providerName)
	}

	cfg, secrets, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Cache.Enabled {
		out.Warning("Cache is disabled in configuration")
		return nil
	}

	store, err := buildCache(ctx, cfg, secrets)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	dep := cache.DependencyForProvider(event.ProviderName(providerName))
	removed, err := store.InvalidateDependency(ctx, dep)
	if err != nil {
		return fmt.Errorf("failed to invalidate: %w", err)
	}

	out.Successf("Invalidated %d cached result set(s) containing %s items", removed, providerName)
	return nil
}

func runCacheClear(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := output.New(cmd.OutOrStdout())

	cfg, secrets, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Cache.Enabled {
		out.Warning("Cache is disabled in configuration")
		return nil
	}

	store, err := buildCache(ctx, cfg, secrets)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	providers := []event.ProviderName{event.ProviderFirecrawl, event.ProviderSerper, event.ProviderLocal}
	removed := 0
	for _, name := range providers {
		n, err := store.InvalidateDependency(ctx, cache.DependencyForProvider(name))
		if err != nil {
			return fmt.Errorf("failed to clear: %w", err)
		}
		removed += n
	}

	out.Successf("Cleared %d cached result set(s)", removed)
	return nil
}

func runCacheSweep(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	out := output.New(cmd.OutOrStdout())

	cfg, secrets, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Cache.Enabled {
		out.Warning("Cache is disabled in configuration")
		return nil
	}

	shared := buildSharedTier(ctx, cfg, secrets)
	if shared == nil {
		out.Warning("No shared cache tier configured, nothing to sweep")
		return nil
	}
	defer func() { _ = shared.Close() }()

	sweeper, ok := shared.(cache.Sweeper)
	if !ok {
		out.Warning("Shared tier does not support sweeping")
		return nil
	}

	removed, err := sweeper.Sweep(ctx)
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}

	out.Successf("Removed %d expired entries", removed)
	return nil
}
