package search

import (
	"time"

	"github.com/eventscout/eventscout/internal/event"
	"github.com/eventscout/eventscout/internal/resilience"
)

// Defaults for Config fields left zero.
const (
	// DefaultLimit is the result cap when the request does not set one.
	DefaultLimit = 10

	// DefaultMaxLimit is the hard ceiling on requested limits.
	DefaultMaxLimit = 50

	// DefaultProviderResults is how many items each provider is asked for
	// per tier.
	DefaultProviderResults = 10

	// DefaultTierTargetResults is the accumulated-unique-URL count at
	// which the tier ladder stops escalating.
	DefaultTierTargetResults = 6

	// DefaultMinNonAggregatorURLs is the official-page floor below which
	// the aggregator backstop kicks in.
	DefaultMinNonAggregatorURLs = 3

	// DefaultMaxBackstopAggregators caps how many gate-failing
	// aggregators the backstop may re-admit.
	DefaultMaxBackstopAggregators = 2

	// DefaultTotalBudget bounds one whole orchestration call.
	DefaultTotalBudget = 45 * time.Second

	// DefaultCacheTTL is how long a result set stays fresh.
	DefaultCacheTTL = 15 * time.Minute
)

// DefaultProviderTimeouts returns the per-attempt timeout for each provider.
// The scraper gets the longest leash, the catalog the shortest.
func DefaultProviderTimeouts() map[event.ProviderName]time.Duration {
	return map[event.ProviderName]time.Duration{
		event.ProviderFirecrawl: 20 * time.Second,
		event.ProviderSerper:    10 * time.Second,
		event.ProviderLocal:     2 * time.Second,
	}
}

// DefaultTrustedDomains returns the curated organizer domains used by the
// site-restricted tier.
func DefaultTrustedDomains() []string {
	return []string{
		"beck-akademie.de",
		"bitkom.org",
		"euroforum.de",
		"handelsblatt.com",
	}
}

// Config tunes one Orchestrator. The zero value is usable after
// WithDefaults.
type Config struct {
	// DefaultLimit is applied when the request limit is zero.
	DefaultLimit int

	// MaxLimit clamps the request limit.
	MaxLimit int

	// ProviderResults is the per-provider, per-tier ask.
	ProviderResults int

	// TierTargetResults stops the tier ladder once this many unique URLs
	// have accumulated.
	TierTargetResults int

	// MinNonAggregatorURLs is the quality-gate survivor floor that
	// triggers the aggregator backstop.
	MinNonAggregatorURLs int

	// MaxBackstopAggregators caps backstop re-admissions.
	MaxBackstopAggregators int

	// TotalBudget bounds the whole call. On expiry the orchestrator
	// returns whatever it has, it never errors.
	TotalBudget time.Duration

	// ProviderTimeouts is the per-attempt timeout by provider name.
	// Providers without an entry run under the remaining total budget.
	ProviderTimeouts map[event.ProviderName]time.Duration

	// Retry is the per-provider retry policy. The retry loop sits inside
	// the circuit breaker and re-arms the per-attempt timeout.
	Retry resilience.RetryConfig

	// CacheTTL is the freshness window for cached result sets.
	CacheTTL time.Duration

	// TrustedDomains feeds the site-restricted tier. Empty disables
	// that tier.
	TrustedDomains []string
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		DefaultLimit:           DefaultLimit,
		MaxLimit:               DefaultMaxLimit,
		ProviderResults:        DefaultProviderResults,
		TierTargetResults:      DefaultTierTargetResults,
		MinNonAggregatorURLs:   DefaultMinNonAggregatorURLs,
		MaxBackstopAggregators: DefaultMaxBackstopAggregators,
		TotalBudget:            DefaultTotalBudget,
		ProviderTimeouts:       DefaultProviderTimeouts(),
		Retry:                  resilience.DefaultRetryConfig(),
		CacheTTL:               DefaultCacheTTL,
		TrustedDomains:         DefaultTrustedDomains(),
	}
}

// WithDefaults fills zero fields from DefaultConfig. Explicit values,
// including an empty TrustedDomains slice that is non-nil, are preserved.
func (c Config) WithDefaults() Config {
	d := DefaultConfig()
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = d.DefaultLimit
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = d.MaxLimit
	}
	if c.ProviderResults <= 0 {
		c.ProviderResults = d.ProviderResults
	}
	if c.TierTargetResults <= 0 {
		c.TierTargetResults = d.TierTargetResults
	}
	if c.MinNonAggregatorURLs <= 0 {
		c.MinNonAggregatorURLs = d.MinNonAggregatorURLs
	}
	if c.MaxBackstopAggregators < 0 {
		c.MaxBackstopAggregators = d.MaxBackstopAggregators
	}
	if c.TotalBudget <= 0 {
		c.TotalBudget = d.TotalBudget
	}
	if c.ProviderTimeouts == nil {
		c.ProviderTimeouts = d.ProviderTimeouts
	}
	if retryUnset(c.Retry) {
		c.Retry = d.Retry
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = d.CacheTTL
	}
	if c.TrustedDomains == nil {
		c.TrustedDomains = d.TrustedDomains
	}
	return c
}

// retryUnset reports whether every Retry field is zero. A config wanting a
// single attempt with no backoff sets a nonzero InitialDelay alongside
// MaxRetries zero to keep WithDefaults from overriding it.
func retryUnset(r resilience.RetryConfig) bool {
	return r.MaxRetries == 0 &&
		r.InitialDelay == 0 &&
		r.MaxDelay == 0 &&
		r.Multiplier == 0 &&
		r.Jitter == 0 &&
		r.RetryIf == nil
}
