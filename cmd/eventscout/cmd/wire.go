package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/eventscout/eventscout/internal/cache"
	"github.com/eventscout/eventscout/internal/config"
	"github.com/eventscout/eventscout/internal/event"
	"github.com/eventscout/eventscout/internal/provider"
	"github.com/eventscout/eventscout/internal/quality"
	"github.com/eventscout/eventscout/internal/rank"
	"github.com/eventscout/eventscout/internal/resilience"
	"github.com/eventscout/eventscout/internal/search"
	"github.com/eventscout/eventscout/internal/telemetry"
)

// loadConfig resolves the project root and layers the configuration, then
// reads secrets from the environment.
func loadConfig() (*config.Config, *config.Secrets, error) {
	root, err := config.FindProjectRoot(".")
	if err != nil {
		root, _ = os.Getwd()
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	secrets, err := config.LoadSecrets()
	if err != nil {
		return nil, nil, err
	}

	return cfg, secrets, nil
}

// stack bundles the wired pipeline for one process. Close releases the
// cache tiers and stops the catalog watcher; the metrics collector is
// owned by the caller that supplied it.
type stack struct {
	orchestrator *search.Orchestrator
	store        *cache.MultiTier
	stopWatch    func()
}

type stackOptions struct {
	metrics      *telemetry.SearchMetrics
	watchCatalog bool
}

// buildStack assembles providers, ranking, quality gate, cache tiers, and
// resilience registries into a ready orchestrator.
func buildStack(ctx context.Context, cfg *config.Config, secrets *config.Secrets, opts stackOptions) (*stack, error) {
	providers, local, err := buildProviders(cfg, secrets)
	if err != nil {
		return nil, err
	}

	scorer, err := quality.NewScorer(
		quality.WithWeights(cfg.Quality.Weights),
		quality.WithMinQuality(cfg.Quality.MinQualityToExtract),
		quality.WithMinSpeakers(cfg.Quality.MinSpeakers),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build quality scorer: %w", err)
	}

	ranker := buildRanker(cfg, secrets)
	breakers, limiters := buildRegistries(cfg, providers)

	searchOpts := []search.Option{
		search.WithBreakers(breakers),
		search.WithLimiters(limiters),
	}

	store, err := buildCache(ctx, cfg, secrets)
	if err != nil {
		return nil, err
	}
	if store != nil {
		searchOpts = append(searchOpts, search.WithCache(store))
	}
	if opts.metrics != nil {
		searchOpts = append(searchOpts, search.WithMetrics(opts.metrics))
	}

	orchestrator, err := search.NewOrchestrator(providers, ranker, scorer, searchConfig(cfg), searchOpts...)
	if err != nil {
		if store != nil {
			_ = store.Close()
		}
		return nil, fmt.Errorf("failed to build orchestrator: %w", err)
	}

	s := &stack{orchestrator: orchestrator, store: store}

	if opts.watchCatalog && cfg.Providers.Local.CatalogPath != "" {
		stop, err := provider.WatchCatalog(ctx, cfg.Providers.Local.CatalogPath, local)
		if err != nil {
			slog.Warn("catalog watch unavailable, edits need a restart",
				slog.String("path", cfg.Providers.Local.CatalogPath),
				slog.String("error", err.Error()))
		} else {
			s.stopWatch = stop
		}
	}

	return s, nil
}

// Close stops the catalog watcher and drains the cache tiers.
func (s *stack) Close() error {
	if s.stopWatch != nil {
		s.stopWatch()
		s.stopWatch = nil
	}
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// buildProviders wires every provider that has credentials. The curated
// catalog provider always runs, so a keyless setup still answers.
func buildProviders(cfg *config.Config, secrets *config.Secrets) ([]provider.Provider, *provider.Local, error) {
	var providers []provider.Provider

	if key := secrets.Firecrawl(cfg); key != "" {
		providers = append(providers, provider.NewFirecrawl(provider.FirecrawlConfig{
			Endpoint: cfg.Providers.Firecrawl.Endpoint,
			APIKey:   key,
			Limit:    cfg.Providers.Firecrawl.MaxResults,
		}))
	} else {
		slog.Debug("firecrawl provider disabled, no API key")
	}

	if key := secrets.Serper(cfg); key != "" {
		providers = append(providers, provider.NewSerper(provider.SerperConfig{
			Endpoint: cfg.Providers.Serper.Endpoint,
			APIKey:   key,
			Limit:    cfg.Providers.Serper.MaxResults,
		}))
	} else {
		slog.Debug("serper provider disabled, no API key")
	}

	catalog, err := loadCatalog(cfg)
	if err != nil {
		return nil, nil, err
	}
	local, err := provider.NewLocal(catalog)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build local provider: %w", err)
	}
	providers = append(providers, local)

	return providers, local, nil
}

// loadCatalog reads the configured catalog file, or the embedded one when
// no path is set.
func loadCatalog(cfg *config.Config) (*provider.Catalog, error) {
	path := cfg.Providers.Local.CatalogPath
	if path == "" {
		return provider.DefaultCatalog()
	}
	return provider.LoadCatalog(path)
}

// buildRanker composes the AI branch over the deterministic heuristic.
// Without a key or with ranking disabled the heuristic runs alone.
func buildRanker(cfg *config.Config, secrets *config.Secrets) rank.Ranker {
	heuristic := rank.NewHeuristicRanker(
		rank.WithTopN(cfg.Rank.TopN),
		rank.WithTrustedDomains(trustedDomains(cfg)),
	)

	var ai rank.Ranker
	if cfg.Rank.Enabled {
		if key := secrets.Rank(cfg); key != "" {
			ai = rank.NewAIRanker(cfg.Rank.Endpoint, key, cfg.Rank.Model,
				rank.WithAITimeout(cfg.Rank.Timeout()))
		} else {
			slog.Debug("AI ranking disabled, no API key")
		}
	}

	return rank.NewFallbackRanker(ai, heuristic, cfg.Rank.Bypass)
}

// trustedDomains maps the config convention onto the pipeline one: an
// absent list means the built-in curated set, an explicit empty list
// disables the site-restricted tier.
func trustedDomains(cfg *config.Config) []string {
	if cfg.Search.TrustedDomains == nil {
		return search.DefaultTrustedDomains()
	}
	return cfg.Search.TrustedDomains
}

// searchConfig translates the file-based configuration into the
// orchestrator's tuning block.
func searchConfig(cfg *config.Config) search.Config {
	sc := search.Config{
		DefaultLimit:           cfg.Search.DefaultLimit,
		MaxLimit:               cfg.Search.MaxLimit,
		TierTargetResults:      cfg.Search.TierTargetResults,
		MinNonAggregatorURLs:   cfg.Search.MinNonAggregatorURLs,
		MaxBackstopAggregators: cfg.Search.MaxBackstopAggregators,
		TotalBudget:            cfg.Search.TotalBudget(),
		ProviderTimeouts: map[event.ProviderName]time.Duration{
			event.ProviderFirecrawl: cfg.Providers.Firecrawl.Timeout(),
			event.ProviderSerper:    cfg.Providers.Serper.Timeout(),
			event.ProviderLocal:     cfg.Providers.Local.Timeout(),
		},
		Retry:          retryConfig(cfg.Resilience.Defaults.Retry),
		CacheTTL:       cfg.Cache.MemoryTTL(),
		TrustedDomains: trustedDomains(cfg),
	}
	return sc.WithDefaults()
}

func retryConfig(r config.RetrySettings) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxRetries:   r.MaxRetries,
		InitialDelay: r.InitialDelay(),
		MaxDelay:     r.MaxDelay(),
		Multiplier:   r.Multiplier,
		Jitter:       r.Jitter(),
	}
}

// buildRegistries pre-seeds a breaker and a rate limiter per provider from
// the resilience policy. The orchestrator looks them up by name at call
// time; seeding here is what applies per-dependency overrides.
func buildRegistries(cfg *config.Config, providers []provider.Provider) (*resilience.BreakerRegistry, *resilience.LimiterRegistry) {
	breakers := resilience.NewBreakerRegistry()
	limiters := resilience.NewLimiterRegistry()

	for _, p := range providers {
		name := string(p.Name())
		policy := cfg.Resilience.ForDependency(name)

		breakers.GetOrCreate(name,
			resilience.WithFailureThreshold(policy.Circuit.FailureThreshold),
			resilience.WithErrorRateThreshold(policy.Circuit.ErrorRateThreshold),
			resilience.WithVolumeThreshold(policy.Circuit.VolumeThreshold),
			resilience.WithSlowCallThreshold(policy.Circuit.SlowCall()),
			resilience.WithSlowCallRatioThreshold(policy.Circuit.SlowCallRatio),
			resilience.WithRecoveryTimeout(policy.Circuit.RecoveryTimeout()),
			resilience.WithSuccessThreshold(policy.Circuit.SuccessThreshold),
			resilience.WithHalfOpenMaxCalls(policy.Circuit.HalfOpenMaxCalls),
		)
		limiters.GetOrCreate(name,
			resilience.WithRequestsPerWindow(policy.RateLimit.RequestsPerWindow, policy.RateLimit.Window()),
			resilience.WithBurst(policy.RateLimit.Burst),
		)
	}

	return breakers, limiters
}

// buildCache assembles the memory tier and, when configured, a shared
// sqlite or postgres tier behind it. A shared tier that fails to open
// degrades to memory-only with a warning rather than blocking startup.
func buildCache(ctx context.Context, cfg *config.Config, secrets *config.Secrets) (*cache.MultiTier, error) {
	if !cfg.Cache.Enabled {
		return nil, nil
	}

	fast, err := cache.NewMemoryStore(cfg.Cache.MemorySize,
		cache.WithSweepInterval(cfg.Cache.SweepInterval()))
	if err != nil {
		return nil, fmt.Errorf("failed to build memory cache: %w", err)
	}

	var tierOpts []cache.MultiTierOption
	if shared := buildSharedTier(ctx, cfg, secrets); shared != nil {
		tierOpts = append(tierOpts, cache.WithSharedTier(shared))
	}

	store := cache.NewMultiTier(fast, tierOpts...)
	store.Start()
	return store, nil
}

func buildSharedTier(ctx context.Context, cfg *config.Config, secrets *config.Secrets) cache.Store {
	switch strings.ToLower(cfg.Cache.SharedBackend) {
	case "sqlite":
		path := cfg.Cache.ResolveSQLitePath()
		shared, err := cache.NewSQLiteStore(path)
		if err != nil {
			slog.Warn("sqlite cache tier unavailable, running memory-only",
				slog.String("path", path),
				slog.String("error", err.Error()))
			return nil
		}
		return shared
	case "postgres":
		dsn := secrets.Postgres(cfg)
		if dsn == "" {
			slog.Warn("postgres cache tier selected but no DSN is set, running memory-only")
			return nil
		}
		shared, err := cache.NewPostgresStore(ctx, dsn)
		if err != nil {
			slog.Warn("postgres cache tier unavailable, running memory-only",
				slog.String("error", err.Error()))
			return nil
		}
		return shared
	case "none", "":
		return nil
	default:
		slog.Warn("unknown cache backend, running memory-only",
			slog.String("backend", cfg.Cache.SharedBackend))
		return nil
	}
}
