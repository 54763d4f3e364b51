// Package search orchestrates the discovery pipeline: tiered query
// expansion, a resilient provider fan-out, URL dedupe, quality gating with
// an aggregator backstop, ranking, and result caching. One Search call is
// one funnel; its trace records what every stage did. Provider failures
// degrade the result set, they never fail the call.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/eventscout/eventscout/internal/cache"
	"github.com/eventscout/eventscout/internal/event"
	"github.com/eventscout/eventscout/internal/provider"
	"github.com/eventscout/eventscout/internal/quality"
	"github.com/eventscout/eventscout/internal/rank"
	"github.com/eventscout/eventscout/internal/resilience"
	"github.com/eventscout/eventscout/internal/telemetry"
)

// ErrNilDependency indicates a required dependency was not provided.
var ErrNilDependency = errors.New("nil dependency")

// Orchestrator runs the pipeline. Construct with NewOrchestrator; the zero
// value is not usable.
type Orchestrator struct {
	network []provider.Provider
	local   provider.Provider

	cache    cache.Store
	breakers *resilience.BreakerRegistry
	limiters *resilience.LimiterRegistry
	ranker   rank.Ranker
	scorer   *quality.Scorer
	metrics  *telemetry.SearchMetrics
	config   Config

	flights singleflight.Group
}

// Option configures optional orchestrator dependencies.
type Option func(*Orchestrator)

// WithCache enables the result cache. Without it every call goes to the
// providers.
func WithCache(s cache.Store) Option {
	return func(o *Orchestrator) {
		o.cache = s
	}
}

// WithMetrics enables the telemetry funnel.
func WithMetrics(m *telemetry.SearchMetrics) Option {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithBreakers substitutes a preconfigured breaker registry. Useful for
// setting per-provider thresholds before the first call.
func WithBreakers(r *resilience.BreakerRegistry) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.breakers = r
		}
	}
}

// WithLimiters substitutes a preconfigured limiter registry.
func WithLimiters(r *resilience.LimiterRegistry) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.limiters = r
		}
	}
}

// NewOrchestrator wires the pipeline. Providers named local become the
// catalog fallback; everything else joins the network fan-out.
func NewOrchestrator(providers []provider.Provider, ranker rank.Ranker, scorer *quality.Scorer, cfg Config, opts ...Option) (*Orchestrator, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: at least one provider is required", ErrNilDependency)
	}
	if ranker == nil {
		return nil, fmt.Errorf("%w: ranker is required", ErrNilDependency)
	}
	if scorer == nil {
		return nil, fmt.Errorf("%w: scorer is required", ErrNilDependency)
	}

	o := &Orchestrator{
		breakers: resilience.NewBreakerRegistry(),
		limiters: resilience.NewLimiterRegistry(),
		ranker:   ranker,
		scorer:   scorer,
		config:   cfg.WithDefaults(),
	}

	for _, p := range providers {
		if p == nil {
			return nil, fmt.Errorf("%w: provider list contains nil", ErrNilDependency)
		}
		if p.Name() == event.ProviderLocal {
			o.local = p
			continue
		}
		o.network = append(o.network, p)
	}

	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Breakers exposes the circuit breaker registry for health reporting.
func (o *Orchestrator) Breakers() *resilience.BreakerRegistry {
	return o.breakers
}

// Limiters exposes the rate limiter registry for health reporting.
func (o *Orchestrator) Limiters() *resilience.LimiterRegistry {
	return o.limiters
}

// Search runs one orchestrated query. The only hard failure is request
// validation; provider and cache trouble degrade to a smaller or empty
// result set with the reasons on the trace. Identical concurrent calls are
// coalesced into one pipeline execution.
func (o *Orchestrator) Search(ctx context.Context, q event.SearchQuery) (*Result, error) {
	q = q.Normalized()
	if err := q.Validate(); err != nil {
		return nil, err
	}
	q.Limit = o.resolveLimit(q.Limit)

	key := cache.QueryKey(q, q.Limit)

	if q.UseCache && o.cache != nil {
		if res, ok := o.fromCache(ctx, q, key); ok {
			return res, nil
		}
	}

	v, err, _ := o.flights.Do(key, func() (any, error) {
		defer o.flights.Forget(key)
		return o.execute(ctx, q, key)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (o *Orchestrator) resolveLimit(limit int) int {
	if limit <= 0 {
		return o.config.DefaultLimit
	}
	if limit > o.config.MaxLimit {
		return o.config.MaxLimit
	}
	return limit
}

// fromCache serves the fast path. Read trouble is logged and degrades to a
// live search, a corrupt entry must not take the pipeline down.
func (o *Orchestrator) fromCache(ctx context.Context, q event.SearchQuery, key string) (*Result, bool) {
	items, ok, err := cache.GetAs[[]Item](ctx, o.cache, key)
	if err != nil {
		slog.Warn("search cache read failed, degrading to live search",
			"key", key,
			"error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	trace := event.NewSearchTrace()
	trace.CacheHit = true
	trace.RankedCount = len(items)
	trace.Finalize()

	o.logSummary(q, trace, len(items))
	o.recordMetrics(q, trace, len(items))
	return &Result{Items: items, Trace: trace, FromCache: true}, true
}

// execute runs the full pipeline under the total budget. Budget expiry
// returns whatever accumulated so far, never an error.
func (o *Orchestrator) execute(ctx context.Context, q event.SearchQuery, key string) (*Result, error) {
	trace := event.NewSearchTrace()

	ctx, cancel := context.WithTimeout(ctx, o.config.TotalBudget)
	defer cancel()

	providersStart := time.Now()
	acc := newAccumulator()
	for _, tier := range BuildTiers(q, o.config.TrustedDomains) {
		if acc.Len() >= o.config.TierTargetResults {
			break
		}
		if ctx.Err() != nil {
			break
		}

		text := TierText(tier)
		trace.AddQuery(tier.ID, text)

		outcomes := o.fanOut(ctx, trace, tier.ID, text, q)
		for _, out := range outcomes {
			trace.URLsSeen += len(out.items)
		}
		acc.Merge(outcomes)
	}
	if ctx.Err() != nil {
		trace.Note("overall_timeout")
	}
	trace.KeptAfterDedupe = acc.Len()
	trace.Stage("providers", time.Since(providersStart))

	qualityStart := time.Now()
	items, backstopKept := o.applyQuality(acc.items, q.Country, q.Window())
	trace.KeptAfterQuality = len(items) - backstopKept
	trace.BackstopKept = backstopKept
	trace.Stage("quality", time.Since(qualityStart))

	rankStart := time.Now()
	items = o.rankItems(ctx, trace, q, items)
	trace.RankedCount = len(items)
	trace.Stage("rank", time.Since(rankStart))

	if len(items) > q.Limit {
		items = items[:q.Limit]
	}

	// Empty sets are never written so a provider outage cannot pin
	// emptiness for a whole TTL.
	if q.UseCache && o.cache != nil && len(items) > 0 {
		if err := cache.SetAs(ctx, o.cache, key, items, o.config.CacheTTL, dependenciesOf(items)); err != nil {
			trace.Note("cache_write_failed: " + err.Error())
		}
	}

	trace.Finalize()
	o.logSummary(q, trace, len(items))
	o.recordMetrics(q, trace, len(items))

	return &Result{Items: items, Trace: trace}, nil
}

// fanOut queries the network providers in parallel and settles every call
// into an outcome. The catalog is consulted only when the network produced
// nothing usable.
func (o *Orchestrator) fanOut(ctx context.Context, trace *event.SearchTrace, tier event.TierID, text string, q event.SearchQuery) []providerOutcome {
	pq := provider.ProviderQuery{
		Text:    text,
		Country: q.Country,
		Window:  q.Window(),
		Limit:   o.config.ProviderResults,
	}

	outcomes := make([]providerOutcome, len(o.network))
	g, gctx := errgroup.WithContext(ctx)
	for i, p := range o.network {
		g.Go(func() error {
			outcomes[i] = o.settle(gctx, trace, tier, p, pq)
			return nil
		})
	}
	_ = g.Wait()

	usable := 0
	for _, out := range outcomes {
		usable += len(out.items)
	}
	if usable == 0 && o.local != nil {
		outcomes = append(outcomes, o.settle(ctx, trace, tier, o.local, pq))
	}
	return outcomes
}

// settle runs one guarded provider call and records its trace row. Failures
// become empty outcomes.
func (o *Orchestrator) settle(ctx context.Context, trace *event.SearchTrace, tier event.TierID, p provider.Provider, pq provider.ProviderQuery) providerOutcome {
	name := p.Name()
	start := time.Now()

	resp, err := o.callProvider(ctx, p, pq)

	pt := event.ProviderTrace{
		Provider:   name,
		Tier:       tier,
		RawCount:   resp.RawCount,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		pt.Err = err.Error()
		trace.RecordProvider(pt)
		slog.Warn("provider failed, continuing with partial results",
			"provider", string(name),
			"tier", string(tier),
			"error", err)
		return providerOutcome{provider: name}
	}

	trace.RecordProvider(pt)
	return providerOutcome{provider: name, items: resp.Items}
}

// callProvider applies the guard chain: the limiter gates admission once,
// the breaker observes the final post-retry outcome, and the retry loop
// re-arms the per-attempt timeout.
func (o *Orchestrator) callProvider(ctx context.Context, p provider.Provider, pq provider.ProviderQuery) (provider.Response, error) {
	name := string(p.Name())

	limiter := o.limiters.GetOrCreate(name)
	if err := limiter.Wait(ctx); err != nil {
		return provider.Response{}, err
	}

	breaker := o.breakers.GetOrCreate(name)
	timeout := o.config.ProviderTimeouts[p.Name()]

	return resilience.CircuitExecuteWithResult(breaker, func() (provider.Response, error) {
		return resilience.RetryWithResult(ctx, o.config.Retry, func() (provider.Response, error) {
			return o.attempt(ctx, p, pq, timeout)
		})
	}, nil)
}

func (o *Orchestrator) attempt(ctx context.Context, p provider.Provider, pq provider.ProviderQuery, timeout time.Duration) (provider.Response, error) {
	if timeout <= 0 {
		return p.Search(ctx, pq)
	}
	return resilience.WithTimeout(ctx, timeout, func(tctx context.Context) (provider.Response, error) {
		return p.Search(tctx, pq)
	})
}

// applyQuality scores every candidate and keeps the gate survivors. When
// fewer than MinNonAggregatorURLs official pages survive, the best
// gate-failing aggregators are re-admitted as backstops, capped at
// MaxBackstopAggregators. Returns the kept items and the backstop count.
func (o *Orchestrator) applyQuality(candidates []event.CandidateResult, country string, window event.DateWindow) ([]Item, int) {
	var kept []Item
	var pool []Item
	nonAggregator := 0

	for _, c := range candidates {
		meta := quality.DeriveMeta(c)
		res := o.scorer.Score(meta, country, window)
		item := Item{Candidate: c, Meta: meta, Quality: res}

		if res.OK {
			kept = append(kept, item)
			if !quality.IsAggregatorDomain(meta.RegistrableDomain) {
				nonAggregator++
			}
			continue
		}
		if quality.IsAggregatorDomain(meta.RegistrableDomain) {
			pool = append(pool, item)
		}
	}

	if nonAggregator >= o.config.MinNonAggregatorURLs || len(pool) == 0 {
		return kept, 0
	}

	sort.SliceStable(pool, func(i, j int) bool {
		return pool[i].Quality.Quality > pool[j].Quality.Quality
	})
	n := o.config.MaxBackstopAggregators
	if n > len(pool) {
		n = len(pool)
	}
	for i := 0; i < n; i++ {
		item := pool[i]
		item.Backstop = true
		kept = append(kept, item)
	}
	return kept, n
}

// rankItems orders the gate survivors. A ranker error keeps the input
// order; the error goes on the trace, never to the caller.
func (o *Orchestrator) rankItems(ctx context.Context, trace *event.SearchTrace, q event.SearchQuery, items []Item) []Item {
	if len(items) == 0 {
		return items
	}

	candidates := make([]event.CandidateResult, 0, len(items))
	for _, it := range items {
		candidates = append(candidates, it.Candidate)
	}

	decision, err := o.ranker.Rank(ctx, rank.Request{Query: q, Candidates: candidates})
	if err != nil || decision == nil {
		errText := ""
		if err != nil {
			errText = err.Error()
		}
		trace.SetRank(event.RankBranchHeuristic, false, false, errText)
		return items
	}

	trace.SetRank(decision.Branch, decision.RepairUsed, decision.Bypassed, decision.Err)

	byURL := make(map[string]Item, len(items))
	for _, it := range items {
		byURL[it.Candidate.URL] = it
	}
	ranked := make([]Item, 0, len(decision.URLs))
	for _, u := range decision.URLs {
		it, ok := byURL[u]
		if !ok {
			continue
		}
		ranked = append(ranked, it)
		delete(byURL, u)
	}
	return ranked
}

// dependenciesOf tags the cache entry with every contributing provider so
// an invalidation of one provider drops exactly its result sets.
func dependenciesOf(items []Item) []string {
	seen := make(map[string]struct{})
	var deps []string
	for _, it := range items {
		dep := cache.DependencyForProvider(it.Candidate.Provider)
		if _, ok := seen[dep]; ok {
			continue
		}
		seen[dep] = struct{}{}
		deps = append(deps, dep)
	}
	sort.Strings(deps)
	return deps
}

func (o *Orchestrator) logSummary(q event.SearchQuery, trace *event.SearchTrace, results int) {
	slog.Info("search_complete",
		"trace_id", trace.TraceID,
		"query", q.Text,
		"country", q.Country,
		"cache_hit", trace.CacheHit,
		"urls_seen", trace.URLsSeen,
		"kept_after_dedupe", trace.KeptAfterDedupe,
		"kept_after_quality", trace.KeptAfterQuality,
		"backstop_kept", trace.BackstopKept,
		"rank_branch", trace.RankBranch,
		"results", results,
		"provider_errors", len(trace.ProviderErrors()),
		"total_ms", trace.TotalMs)
}

func (o *Orchestrator) recordMetrics(q event.SearchQuery, trace *event.SearchTrace, results int) {
	if o.metrics == nil {
		return
	}
	o.metrics.Record(telemetry.SearchEvent{
		Query:          q.Text,
		Country:        q.Country,
		CacheHit:       trace.CacheHit,
		RankBranch:     trace.RankBranch,
		ResultCount:    results,
		URLsSeen:       trace.URLsSeen,
		BackstopKept:   trace.BackstopKept,
		ProviderErrors: len(trace.ProviderErrors()),
		Latency:        time.Duration(trace.TotalMs) * time.Millisecond,
		Timestamp:      time.Now(),
	})
}
