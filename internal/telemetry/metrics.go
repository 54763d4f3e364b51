// Package telemetry collects the local search funnel: per-country volume,
// cache effectiveness, rank branch usage, zero-result queries and latency
// distribution. Funnel data stays on disk next to the cache; the optional
// Sentry hook reports errors only, never query content.
package telemetry

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// =============================================================================
// Latency Buckets
// =============================================================================

// LatencyBucket represents a latency histogram bucket. A search spans three
// orders of magnitude: cache hits answer in milliseconds, full provider
// fan-outs in tens of seconds.
type LatencyBucket string

const (
	BucketP100   LatencyBucket = "p100"   // <100ms, cache fast path
	BucketP1000  LatencyBucket = "p1000"  // 100ms-1s
	BucketP5000  LatencyBucket = "p5000"  // 1-5s
	BucketP15000 LatencyBucket = "p15000" // 5-15s
	BucketP45000 LatencyBucket = "p45000" // >=15s, up against the budget
)

// LatencyToBucket converts a duration to its histogram bucket.
func LatencyToBucket(d time.Duration) LatencyBucket {
	ms := d.Milliseconds()
	switch {
	case ms < 100:
		return BucketP100
	case ms < 1000:
		return BucketP1000
	case ms < 5000:
		return BucketP5000
	case ms < 15000:
		return BucketP15000
	default:
		return BucketP45000
	}
}

// =============================================================================
// Search Event
// =============================================================================

// SearchEvent represents a single orchestrated search for funnel recording.
type SearchEvent struct {
	Query          string
	Country        string
	CacheHit       bool
	RankBranch     string
	ResultCount    int
	URLsSeen       int
	BackstopKept   int
	ProviderErrors int
	Latency        time.Duration
	Timestamp      time.Time
}

// IsZeroResult returns true if this search produced no results.
func (e SearchEvent) IsZeroResult() bool {
	return e.ResultCount == 0
}

// =============================================================================
// Funnel Metric Keys
// =============================================================================

// Fixed funnel counter names as persisted. Rank branch counters use the
// dynamic key "rank_" + branch.
const (
	FunnelSearches       = "searches"
	FunnelCacheHits      = "cache_hits"
	FunnelZeroResults    = "zero_results"
	FunnelBackstopKept   = "backstop_kept"
	FunnelProviderErrors = "provider_errors"
)

// =============================================================================
// Circular Buffer
// =============================================================================

// CircularBuffer is a fixed-capacity FIFO buffer.
type CircularBuffer[T any] struct {
	items    []T
	head     int // Next write position
	size     int // Current number of items
	capacity int
	mu       sync.RWMutex
}

// NewCircularBuffer creates a new circular buffer with the given capacity.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity <= 0 {
		capacity = 100
	}
	return &CircularBuffer[T]{
		items:    make([]T, capacity),
		capacity: capacity,
	}
}

// Add adds an item to the buffer. If full, the oldest item is evicted.
func (b *CircularBuffer[T]) Add(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.head] = item
	b.head = (b.head + 1) % b.capacity

	if b.size < b.capacity {
		b.size++
	}
}

// Items returns all items in the buffer in FIFO order (oldest first).
func (b *CircularBuffer[T]) Items() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.size == 0 {
		return []T{}
	}

	result := make([]T, b.size)
	if b.size < b.capacity {
		copy(result, b.items[:b.size])
	} else {
		// Buffer full, oldest item is at head
		copy(result, b.items[b.head:])
		copy(result[b.capacity-b.head:], b.items[:b.head])
	}
	return result
}

// Size returns the current number of items in the buffer.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Clear removes all items from the buffer.
func (b *CircularBuffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.head = 0
	b.size = 0
}

// =============================================================================
// Term Extraction
// =============================================================================

// termStopwords are connectives that would otherwise dominate the top-term
// list. Event queries mix English and German.
var termStopwords = map[string]struct{}{
	"and": {}, "the": {}, "for": {}, "und": {}, "oder": {},
	"der": {}, "die": {}, "das": {}, "von": {}, "mit": {}, "für": {},
}

// ExtractTerms extracts countable terms from a query string.
// Terms are lowercased, filtered to minimum length 3, and stopwords drop.
func ExtractTerms(query string) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	words := strings.Fields(query)
	var terms []string
	for _, w := range words {
		if len(w) < 3 {
			continue
		}
		if _, stop := termStopwords[w]; stop {
			continue
		}
		terms = append(terms, w)
	}

	if len(terms) == 0 {
		return nil
	}
	return terms
}

// =============================================================================
// Term Count
// =============================================================================

// TermCount represents a term and its frequency count.
type TermCount struct {
	Term  string `json:"term"`
	Count int64  `json:"count"`
}

// =============================================================================
// Search Metrics Snapshot
// =============================================================================

// SearchMetricsSnapshot is an immutable snapshot of the in-memory funnel.
type SearchMetricsSnapshot struct {
	CountryCounts       map[string]int64        `json:"country_counts"`
	RankBranchCounts    map[string]int64        `json:"rank_branch_counts"`
	TopTerms            []TermCount             `json:"top_terms"`
	ZeroResultQueries   []string                `json:"zero_result_queries"`
	LatencyDistribution map[LatencyBucket]int64 `json:"latency_distribution"`
	TotalSearches       int64                   `json:"total_searches"`
	CacheHits           int64                   `json:"cache_hits"`
	ZeroResultCount     int64                   `json:"zero_result_count"`
	BackstopKept        int64                   `json:"backstop_kept"`
	ProviderErrors      int64                   `json:"provider_errors"`
	Since               time.Time               `json:"since"`

	// Repetition metrics. A high exact-repeat rate means the cache TTL
	// is doing real work.
	ExactRepeatCount int64   `json:"exact_repeat_count"`
	ExactRepeatRate  float64 `json:"exact_repeat_rate"`
	UniqueQueryCount int64   `json:"unique_query_count"`
}

// ZeroResultPercentage returns the percentage of zero-result searches.
func (s *SearchMetricsSnapshot) ZeroResultPercentage() float64 {
	if s.TotalSearches == 0 {
		return 0
	}
	return float64(s.ZeroResultCount) / float64(s.TotalSearches) * 100
}

// CacheHitPercentage returns the percentage of searches served from cache.
func (s *SearchMetricsSnapshot) CacheHitPercentage() float64 {
	if s.TotalSearches == 0 {
		return 0
	}
	return float64(s.CacheHits) / float64(s.TotalSearches) * 100
}

// =============================================================================
// Search Metrics Store (Interface)
// =============================================================================

// SearchMetricsStore defines persistence operations for funnel metrics.
type SearchMetricsStore interface {
	// SaveCountryCounts upserts daily per-country search counts.
	SaveCountryCounts(date string, counts map[string]int64) error

	// GetCountryCounts retrieves country counts for a date range.
	GetCountryCounts(from, to string) (map[string]int64, error)

	// SaveFunnelCounts upserts daily funnel counters.
	SaveFunnelCounts(date string, counts map[string]int64) error

	// GetFunnelCounts retrieves funnel counters for a date range.
	GetFunnelCounts(from, to string) (map[string]int64, error)

	// UpsertTermCounts updates term frequency counts.
	UpsertTermCounts(terms map[string]int64) error

	// GetTopTerms retrieves the top N terms by frequency.
	GetTopTerms(limit int) ([]TermCount, error)

	// AddZeroResultQuery appends a zero-result query, trimming the oldest.
	AddZeroResultQuery(query string, timestamp time.Time) error

	// GetZeroResultQueries retrieves recent zero-result queries.
	GetZeroResultQueries(limit int) ([]string, error)

	// SaveLatencyCounts upserts daily latency histogram counts.
	SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error

	// GetLatencyCounts retrieves latency distribution for a date range.
	GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error)

	// Close releases resources.
	Close() error
}

// =============================================================================
// Search Metrics Configuration
// =============================================================================

// SearchMetricsConfig configures the funnel collector.
type SearchMetricsConfig struct {
	TopTermsCapacity    int           // Max terms to track (default: 100)
	ZeroResultsCapacity int           // Max zero-result queries to track (default: 100)
	FlushInterval       time.Duration // How often to flush to store (default: 60s, 0 = no auto-flush)

	// RecentQueriesCapacity bounds the repeat-detection LRU (default: 500).
	RecentQueriesCapacity int
}

// DefaultSearchMetricsConfig returns sensible defaults.
func DefaultSearchMetricsConfig() SearchMetricsConfig {
	return SearchMetricsConfig{
		TopTermsCapacity:      100,
		ZeroResultsCapacity:   100,
		FlushInterval:         60 * time.Second,
		RecentQueriesCapacity: 500,
	}
}

// =============================================================================
// Search Metrics
// =============================================================================

type zeroQuery struct {
	query string
	at    time.Time
}

// SearchMetrics collects the search funnel. Thread-safe for concurrent
// access. Cumulative aggregates back Snapshot; pending delta maps back
// Flush so repeated flushes never double-count.
type SearchMetrics struct {
	mu sync.RWMutex

	// In-memory aggregates since start.
	countries       map[string]int64
	rankBranches    map[string]int64
	topTerms        *lru.Cache[string, int64]
	zeroResults     *CircularBuffer[string]
	latencies       map[LatencyBucket]int64
	totalSearches   int64
	cacheHits       int64
	zeroResultCount int64
	backstopKept    int64
	providerErrors  int64
	startTime       time.Time

	// Repeat detection over an LRU of query hashes.
	recentQueries    *lru.Cache[string, struct{}]
	exactRepeatCount int64

	// Deltas since the last successful flush. A failed flush drops its
	// batch.
	pendingCountries map[string]int64
	pendingFunnel    map[string]int64
	pendingLatencies map[LatencyBucket]int64
	pendingTerms     map[string]int64
	pendingZero      []zeroQuery

	// Persistence
	store       SearchMetricsStore
	config      SearchMetricsConfig
	flushTicker *time.Ticker
	stopCh      chan struct{}
	closed      bool
}

// NewSearchMetrics creates a funnel collector with default configuration.
// If store is nil, metrics are only kept in memory.
func NewSearchMetrics(store SearchMetricsStore) *SearchMetrics {
	return NewSearchMetricsWithConfig(store, DefaultSearchMetricsConfig())
}

// NewSearchMetricsWithConfig creates a funnel collector with custom configuration.
func NewSearchMetricsWithConfig(store SearchMetricsStore, cfg SearchMetricsConfig) *SearchMetrics {
	if cfg.TopTermsCapacity <= 0 {
		cfg.TopTermsCapacity = 100
	}
	if cfg.ZeroResultsCapacity <= 0 {
		cfg.ZeroResultsCapacity = 100
	}
	if cfg.RecentQueriesCapacity <= 0 {
		cfg.RecentQueriesCapacity = 500
	}

	topTerms, _ := lru.New[string, int64](cfg.TopTermsCapacity)
	recentQueries, _ := lru.New[string, struct{}](cfg.RecentQueriesCapacity)

	m := &SearchMetrics{
		countries:        make(map[string]int64),
		rankBranches:     make(map[string]int64),
		topTerms:         topTerms,
		zeroResults:      NewCircularBuffer[string](cfg.ZeroResultsCapacity),
		latencies:        make(map[LatencyBucket]int64),
		startTime:        time.Now(),
		recentQueries:    recentQueries,
		pendingCountries: make(map[string]int64),
		pendingFunnel:    make(map[string]int64),
		pendingLatencies: make(map[LatencyBucket]int64),
		pendingTerms:     make(map[string]int64),
		store:            store,
		config:           cfg,
		stopCh:           make(chan struct{}),
	}

	if cfg.FlushInterval > 0 && store != nil {
		m.flushTicker = time.NewTicker(cfg.FlushInterval)
		go m.flushLoop()
	}

	return m
}

// flushLoop periodically flushes metrics to storage.
func (m *SearchMetrics) flushLoop() {
	for {
		select {
		case <-m.flushTicker.C:
			if err := m.Flush(); err != nil {
				slog.Warn("telemetry flush failed", "error", err)
			}
		case <-m.stopCh:
			return
		}
	}
}

// Record captures the funnel of one search. Thread-safe and non-blocking.
func (m *SearchMetrics) Record(event SearchEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	m.totalSearches++
	m.pendingFunnel[FunnelSearches]++

	if event.Country != "" {
		m.countries[event.Country]++
		m.pendingCountries[event.Country]++
	}

	if event.CacheHit {
		m.cacheHits++
		m.pendingFunnel[FunnelCacheHits]++
	}

	if event.RankBranch != "" {
		m.rankBranches[event.RankBranch]++
		m.pendingFunnel["rank_"+event.RankBranch]++
	}

	for _, term := range ExtractTerms(event.Query) {
		count, _ := m.topTerms.Get(term)
		m.topTerms.Add(term, count+1)
		m.pendingTerms[term]++
	}

	if event.IsZeroResult() {
		m.zeroResults.Add(event.Query)
		m.zeroResultCount++
		m.pendingFunnel[FunnelZeroResults]++

		at := event.Timestamp
		if at.IsZero() {
			at = time.Now()
		}
		m.pendingZero = append(m.pendingZero, zeroQuery{query: event.Query, at: at})
	}

	if event.BackstopKept > 0 {
		m.backstopKept += int64(event.BackstopKept)
		m.pendingFunnel[FunnelBackstopKept] += int64(event.BackstopKept)
	}
	if event.ProviderErrors > 0 {
		m.providerErrors += int64(event.ProviderErrors)
		m.pendingFunnel[FunnelProviderErrors] += int64(event.ProviderErrors)
	}

	bucket := LatencyToBucket(event.Latency)
	m.latencies[bucket]++
	m.pendingLatencies[bucket]++

	queryHash := hashQuery(event.Query)
	if _, exists := m.recentQueries.Get(queryHash); exists {
		m.exactRepeatCount++
	}
	m.recentQueries.Add(queryHash, struct{}{})
}

// hashQuery creates a normalized hash of the query for repeat detection.
func hashQuery(query string) string {
	normalized := strings.ToLower(strings.TrimSpace(query))
	hash := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(hash[:16])
}

// Snapshot returns current metrics for reporting.
func (m *SearchMetrics) Snapshot() *SearchMetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	countries := make(map[string]int64, len(m.countries))
	for k, v := range m.countries {
		countries[k] = v
	}

	branches := make(map[string]int64, len(m.rankBranches))
	for k, v := range m.rankBranches {
		branches[k] = v
	}

	var topTerms []TermCount
	for _, key := range m.topTerms.Keys() {
		if count, ok := m.topTerms.Peek(key); ok {
			topTerms = append(topTerms, TermCount{Term: key, Count: count})
		}
	}
	sort.Slice(topTerms, func(i, j int) bool {
		if topTerms[i].Count != topTerms[j].Count {
			return topTerms[i].Count > topTerms[j].Count
		}
		return topTerms[i].Term < topTerms[j].Term
	})

	latencies := make(map[LatencyBucket]int64, len(m.latencies))
	for k, v := range m.latencies {
		latencies[k] = v
	}

	var exactRepeatRate float64
	if m.totalSearches > 0 {
		exactRepeatRate = float64(m.exactRepeatCount) / float64(m.totalSearches)
	}

	return &SearchMetricsSnapshot{
		CountryCounts:       countries,
		RankBranchCounts:    branches,
		TopTerms:            topTerms,
		ZeroResultQueries:   m.zeroResults.Items(),
		LatencyDistribution: latencies,
		TotalSearches:       m.totalSearches,
		CacheHits:           m.cacheHits,
		ZeroResultCount:     m.zeroResultCount,
		BackstopKept:        m.backstopKept,
		ProviderErrors:      m.providerErrors,
		Since:               m.startTime,
		ExactRepeatCount:    m.exactRepeatCount,
		ExactRepeatRate:     exactRepeatRate,
		UniqueQueryCount:    int64(m.recentQueries.Len()),
	}
}

// Flush persists the deltas accumulated since the last flush. Safe to call
// with no store configured. A write failure drops that batch.
func (m *SearchMetrics) Flush() error {
	if m.store == nil {
		return nil
	}

	m.mu.Lock()
	countries := m.pendingCountries
	funnel := m.pendingFunnel
	latencies := m.pendingLatencies
	terms := m.pendingTerms
	zero := m.pendingZero
	m.pendingCountries = make(map[string]int64)
	m.pendingFunnel = make(map[string]int64)
	m.pendingLatencies = make(map[LatencyBucket]int64)
	m.pendingTerms = make(map[string]int64)
	m.pendingZero = nil
	m.mu.Unlock()

	today := time.Now().Format("2006-01-02")

	if len(countries) > 0 {
		if err := m.store.SaveCountryCounts(today, countries); err != nil {
			return err
		}
	}
	if len(funnel) > 0 {
		if err := m.store.SaveFunnelCounts(today, funnel); err != nil {
			return err
		}
	}
	if err := m.store.UpsertTermCounts(terms); err != nil {
		return err
	}
	if len(latencies) > 0 {
		if err := m.store.SaveLatencyCounts(today, latencies); err != nil {
			return err
		}
	}
	for _, z := range zero {
		if err := m.store.AddZeroResultQuery(z.query, z.at); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes and releases resources.
func (m *SearchMetrics) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if m.flushTicker != nil {
		m.flushTicker.Stop()
		close(m.stopCh)
	}

	return m.Flush()
}
