package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// CircularBuffer Tests
// =============================================================================

func TestCircularBuffer_Add_SingleItem(t *testing.T) {
	buf := NewCircularBuffer[string](10)

	buf.Add("query1")

	items := buf.Items()
	assert.Equal(t, 1, len(items))
	assert.Equal(t, "query1", items[0])
}

func TestCircularBuffer_MaintainsCapacity(t *testing.T) {
	buf := NewCircularBuffer[string](3)

	buf.Add("query1")
	buf.Add("query2")
	buf.Add("query3")
	buf.Add("query4") // Should evict query1
	buf.Add("query5") // Should evict query2

	items := buf.Items()
	assert.Equal(t, 3, len(items))
	assert.Equal(t, []string{"query3", "query4", "query5"}, items)
}

func TestCircularBuffer_Size(t *testing.T) {
	buf := NewCircularBuffer[string](5)

	assert.Equal(t, 0, buf.Size())

	buf.Add("a")
	assert.Equal(t, 1, buf.Size())

	buf.Add("b")
	buf.Add("c")
	buf.Add("d")
	buf.Add("e")
	buf.Add("f") // Evicts "a"
	assert.Equal(t, 5, buf.Size())
}

func TestCircularBuffer_EmptyItems(t *testing.T) {
	buf := NewCircularBuffer[string](10)

	items := buf.Items()
	assert.Equal(t, 0, len(items))
	assert.NotNil(t, items)
}

func TestCircularBuffer_Clear(t *testing.T) {
	buf := NewCircularBuffer[string](10)

	buf.Add("query1")
	buf.Add("query2")
	buf.Clear()

	assert.Equal(t, 0, buf.Size())
	assert.Equal(t, 0, len(buf.Items()))
}

// =============================================================================
// LatencyBucket Tests
// =============================================================================

func TestLatencyToBucket(t *testing.T) {
	tests := []struct {
		latency  time.Duration
		expected LatencyBucket
	}{
		{5 * time.Millisecond, BucketP100},
		{99 * time.Millisecond, BucketP100},
		{100 * time.Millisecond, BucketP1000},
		{750 * time.Millisecond, BucketP1000},
		{1 * time.Second, BucketP5000},
		{4 * time.Second, BucketP5000},
		{5 * time.Second, BucketP15000},
		{12 * time.Second, BucketP15000},
		{15 * time.Second, BucketP45000},
		{44 * time.Second, BucketP45000},
	}

	for _, tt := range tests {
		t.Run(tt.latency.String(), func(t *testing.T) {
			got := LatencyToBucket(tt.latency)
			assert.Equal(t, tt.expected, got)
		})
	}
}

// =============================================================================
// SearchMetrics Tests
// =============================================================================

func TestSearchMetrics_Record_IncrementsCounts(t *testing.T) {
	m := NewSearchMetrics(nil) // nil store = in-memory only
	defer m.Close()

	m.Record(SearchEvent{
		Query:       "legal tech konferenz berlin",
		Country:     "DE",
		RankBranch:  "ai",
		ResultCount: 5,
		Latency:     8 * time.Second,
		Timestamp:   time.Now(),
	})

	m.Record(SearchEvent{
		Query:       "fintech summit wien",
		Country:     "AT",
		RankBranch:  "heuristic",
		ResultCount: 3,
		Latency:     6 * time.Second,
		Timestamp:   time.Now(),
	})

	m.Record(SearchEvent{
		Query:       "compliance kongress",
		Country:     "DE",
		CacheHit:    true,
		ResultCount: 8,
		Latency:     12 * time.Millisecond,
		Timestamp:   time.Now(),
	})

	snapshot := m.Snapshot()
	assert.Equal(t, int64(3), snapshot.TotalSearches)
	assert.Equal(t, int64(2), snapshot.CountryCounts["DE"])
	assert.Equal(t, int64(1), snapshot.CountryCounts["AT"])
	assert.Equal(t, int64(1), snapshot.RankBranchCounts["ai"])
	assert.Equal(t, int64(1), snapshot.RankBranchCounts["heuristic"])
	assert.Equal(t, int64(1), snapshot.CacheHits)
}

func TestSearchMetrics_Record_TracksTopTerms(t *testing.T) {
	m := NewSearchMetrics(nil)
	defer m.Close()

	m.Record(SearchEvent{Query: "konferenz berlin", ResultCount: 5, Latency: time.Second})
	m.Record(SearchEvent{Query: "konferenz münchen", ResultCount: 3, Latency: time.Second})
	m.Record(SearchEvent{Query: "konferenz hamburg", ResultCount: 2, Latency: time.Second})
	m.Record(SearchEvent{Query: "summit hamburg", ResultCount: 1, Latency: time.Second})

	snapshot := m.Snapshot()

	// "konferenz" appears 3 times, should be the top term
	require.NotEmpty(t, snapshot.TopTerms)
	assert.Equal(t, "konferenz", snapshot.TopTerms[0].Term)
	assert.Equal(t, int64(3), snapshot.TopTerms[0].Count)
}

func TestSearchMetrics_Record_CapturesZeroResults(t *testing.T) {
	m := NewSearchMetrics(nil)
	defer m.Close()

	m.Record(SearchEvent{Query: "unterwasserkorbflechten kongress", ResultCount: 0, Latency: 9 * time.Second})
	m.Record(SearchEvent{Query: "legal tech konferenz", ResultCount: 5, Latency: 7 * time.Second})
	m.Record(SearchEvent{Query: "blockchain symposium andorra", ResultCount: 0, Latency: 11 * time.Second})

	snapshot := m.Snapshot()
	assert.Equal(t, 2, len(snapshot.ZeroResultQueries))
	assert.Contains(t, snapshot.ZeroResultQueries, "unterwasserkorbflechten kongress")
	assert.Contains(t, snapshot.ZeroResultQueries, "blockchain symposium andorra")
	assert.Equal(t, int64(2), snapshot.ZeroResultCount)
}

func TestSearchMetrics_Record_BucketsLatency(t *testing.T) {
	m := NewSearchMetrics(nil)
	defer m.Close()

	m.Record(SearchEvent{Query: "cached", CacheHit: true, ResultCount: 1, Latency: 5 * time.Millisecond})
	m.Record(SearchEvent{Query: "quick one", ResultCount: 1, Latency: 400 * time.Millisecond})
	m.Record(SearchEvent{Query: "quick two", ResultCount: 1, Latency: 900 * time.Millisecond})
	m.Record(SearchEvent{Query: "slow", ResultCount: 1, Latency: 8 * time.Second})
	m.Record(SearchEvent{Query: "very slow", ResultCount: 1, Latency: 30 * time.Second})

	snapshot := m.Snapshot()
	assert.Equal(t, int64(1), snapshot.LatencyDistribution[BucketP100])
	assert.Equal(t, int64(2), snapshot.LatencyDistribution[BucketP1000])
	assert.Equal(t, int64(1), snapshot.LatencyDistribution[BucketP15000])
	assert.Equal(t, int64(1), snapshot.LatencyDistribution[BucketP45000])
}

func TestSearchMetrics_Record_AccumulatesFunnelCounters(t *testing.T) {
	m := NewSearchMetrics(nil)
	defer m.Close()

	m.Record(SearchEvent{Query: "one", ResultCount: 4, BackstopKept: 2, ProviderErrors: 1, Latency: time.Second})
	m.Record(SearchEvent{Query: "two", ResultCount: 3, BackstopKept: 1, ProviderErrors: 2, Latency: time.Second})

	snapshot := m.Snapshot()
	assert.Equal(t, int64(3), snapshot.BackstopKept)
	assert.Equal(t, int64(3), snapshot.ProviderErrors)
}

func TestSearchMetrics_Concurrent_ThreadSafe(t *testing.T) {
	m := NewSearchMetrics(nil)
	defer m.Close()

	var wg sync.WaitGroup
	numGoroutines := 100
	eventsPerGoroutine := 100

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < eventsPerGoroutine; j++ {
				m.Record(SearchEvent{
					Query:       "legal tech konferenz",
					Country:     "DE",
					ResultCount: 5,
					Latency:     2 * time.Second,
					Timestamp:   time.Now(),
				})
			}
		}()
	}

	wg.Wait()

	snapshot := m.Snapshot()
	expected := int64(numGoroutines * eventsPerGoroutine)
	assert.Equal(t, expected, snapshot.TotalSearches)
	assert.Equal(t, expected, snapshot.CountryCounts["DE"])
}

func TestSearchMetrics_ZeroResultBuffer_MaintainsCapacity(t *testing.T) {
	m := NewSearchMetricsWithConfig(nil, SearchMetricsConfig{
		TopTermsCapacity:    100,
		ZeroResultsCapacity: 5, // Small capacity for testing
		FlushInterval:       0, // Disable auto-flush
	})
	defer m.Close()

	for i := 0; i < 10; i++ {
		m.Record(SearchEvent{
			Query:       "miss" + string(rune('A'+i)),
			ResultCount: 0,
			Latency:     time.Second,
		})
	}

	snapshot := m.Snapshot()
	assert.Equal(t, 5, len(snapshot.ZeroResultQueries))
	assert.Contains(t, snapshot.ZeroResultQueries, "missF")
	assert.Contains(t, snapshot.ZeroResultQueries, "missJ")
	assert.NotContains(t, snapshot.ZeroResultQueries, "missA")
}

// =============================================================================
// Term Extraction Tests
// =============================================================================

func TestExtractTerms(t *testing.T) {
	tests := []struct {
		query    string
		expected []string
	}{
		{"legal tech", []string{"legal", "tech"}},
		{"Konferenz Berlin", []string{"konferenz", "berlin"}},
		{"  spaces  around  ", []string{"spaces", "around"}},
		{"", nil},
		{"ab", nil},                                 // Too short
		{"recht und compliance", []string{"recht", "compliance"}}, // Stopword dropped
		{"summit for fintech", []string{"summit", "fintech"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got := ExtractTerms(tt.query)
			assert.Equal(t, tt.expected, got)
		})
	}
}

// =============================================================================
// SearchEvent Tests
// =============================================================================

func TestSearchEvent_IsZeroResult(t *testing.T) {
	zeroResult := SearchEvent{Query: "missing", ResultCount: 0}
	hasResults := SearchEvent{Query: "found", ResultCount: 5}

	assert.True(t, zeroResult.IsZeroResult())
	assert.False(t, hasResults.IsZeroResult())
}

// =============================================================================
// Snapshot Tests
// =============================================================================

func TestSearchMetricsSnapshot_ZeroResultPercentage(t *testing.T) {
	m := NewSearchMetrics(nil)
	defer m.Close()

	// 2 zero-results out of 10 total = 20%
	for i := 0; i < 8; i++ {
		m.Record(SearchEvent{Query: "found", ResultCount: 5, Latency: time.Second})
	}
	for i := 0; i < 2; i++ {
		m.Record(SearchEvent{Query: "missed", ResultCount: 0, Latency: time.Second})
	}

	snapshot := m.Snapshot()
	assert.InDelta(t, 20.0, snapshot.ZeroResultPercentage(), 0.01)
}

func TestSearchMetricsSnapshot_CacheHitPercentage(t *testing.T) {
	m := NewSearchMetrics(nil)
	defer m.Close()

	for i := 0; i < 3; i++ {
		m.Record(SearchEvent{Query: "warm", CacheHit: true, ResultCount: 5, Latency: 10 * time.Millisecond})
	}
	m.Record(SearchEvent{Query: "cold", ResultCount: 5, Latency: 9 * time.Second})

	snapshot := m.Snapshot()
	assert.InDelta(t, 75.0, snapshot.CacheHitPercentage(), 0.01)
}

func TestSearchMetricsSnapshot_EmptyPercentages(t *testing.T) {
	m := NewSearchMetrics(nil)
	defer m.Close()

	snapshot := m.Snapshot()
	assert.Equal(t, 0.0, snapshot.ZeroResultPercentage())
	assert.Equal(t, 0.0, snapshot.CacheHitPercentage())
}

// =============================================================================
// Repeat Detection Tests
// =============================================================================

func TestSearchMetrics_ExactRepeat_DetectsRepeats(t *testing.T) {
	m := NewSearchMetrics(nil)
	defer m.Close()

	m.Record(SearchEvent{Query: "legal tech konferenz", ResultCount: 5, Latency: time.Second})
	m.Record(SearchEvent{Query: "another query", ResultCount: 3, Latency: time.Second})
	m.Record(SearchEvent{Query: "legal tech konferenz", ResultCount: 5, Latency: time.Second}) // Repeat
	m.Record(SearchEvent{Query: "legal tech konferenz", ResultCount: 5, Latency: time.Second}) // Repeat again

	snapshot := m.Snapshot()
	assert.Equal(t, int64(4), snapshot.TotalSearches)
	assert.Equal(t, int64(2), snapshot.ExactRepeatCount)
	assert.InDelta(t, 0.5, snapshot.ExactRepeatRate, 0.01)
}

func TestSearchMetrics_ExactRepeat_CaseAndWhitespaceInsensitive(t *testing.T) {
	m := NewSearchMetrics(nil)
	defer m.Close()

	m.Record(SearchEvent{Query: "Legal Tech Konferenz", ResultCount: 5, Latency: time.Second})
	m.Record(SearchEvent{Query: "legal tech konferenz", ResultCount: 5, Latency: time.Second})
	m.Record(SearchEvent{Query: "  legal tech konferenz  ", ResultCount: 5, Latency: time.Second})

	snapshot := m.Snapshot()
	assert.Equal(t, int64(3), snapshot.TotalSearches)
	assert.Equal(t, int64(2), snapshot.ExactRepeatCount)
}

func TestSearchMetrics_ExactRepeat_UniqueQueryCount(t *testing.T) {
	m := NewSearchMetrics(nil)
	defer m.Close()

	m.Record(SearchEvent{Query: "query a", ResultCount: 5, Latency: time.Second})
	m.Record(SearchEvent{Query: "query b", ResultCount: 5, Latency: time.Second})
	m.Record(SearchEvent{Query: "query c", ResultCount: 5, Latency: time.Second})
	m.Record(SearchEvent{Query: "query a", ResultCount: 5, Latency: time.Second}) // Repeat
	m.Record(SearchEvent{Query: "query b", ResultCount: 5, Latency: time.Second}) // Repeat

	snapshot := m.Snapshot()
	assert.Equal(t, int64(5), snapshot.TotalSearches)
	assert.Equal(t, int64(3), snapshot.UniqueQueryCount)
}

// =============================================================================
// Flush Tests
// =============================================================================

// recordingStore captures flushed batches for assertions.
type recordingStore struct {
	mu             sync.Mutex
	countryBatches []map[string]int64
	funnelBatches  []map[string]int64
	termBatches    []map[string]int64
	latencyBatches []map[LatencyBucket]int64
	zeroQueries    []string
}

func (r *recordingStore) SaveCountryCounts(date string, counts map[string]int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.countryBatches = append(r.countryBatches, counts)
	return nil
}

func (r *recordingStore) GetCountryCounts(from, to string) (map[string]int64, error) {
	return nil, nil
}

func (r *recordingStore) SaveFunnelCounts(date string, counts map[string]int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funnelBatches = append(r.funnelBatches, counts)
	return nil
}

func (r *recordingStore) GetFunnelCounts(from, to string) (map[string]int64, error) {
	return nil, nil
}

func (r *recordingStore) UpsertTermCounts(terms map[string]int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(terms) > 0 {
		r.termBatches = append(r.termBatches, terms)
	}
	return nil
}

func (r *recordingStore) GetTopTerms(limit int) ([]TermCount, error) { return nil, nil }

func (r *recordingStore) AddZeroResultQuery(query string, timestamp time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.zeroQueries = append(r.zeroQueries, query)
	return nil
}

func (r *recordingStore) GetZeroResultQueries(limit int) ([]string, error) { return nil, nil }

func (r *recordingStore) SaveLatencyCounts(date string, counts map[LatencyBucket]int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.latencyBatches = append(r.latencyBatches, counts)
	return nil
}

func (r *recordingStore) GetLatencyCounts(from, to string) (map[LatencyBucket]int64, error) {
	return nil, nil
}

func (r *recordingStore) Close() error { return nil }

func TestSearchMetrics_Flush_WritesDeltasOnce(t *testing.T) {
	store := &recordingStore{}
	m := NewSearchMetricsWithConfig(store, SearchMetricsConfig{
		FlushInterval: 0, // Manual flush only
	})
	defer m.Close()

	m.Record(SearchEvent{Query: "legal tech konferenz", Country: "DE", ResultCount: 5, Latency: time.Second})
	m.Record(SearchEvent{Query: "fintech summit", Country: "DE", ResultCount: 0, Latency: time.Second})

	require.NoError(t, m.Flush())

	// Second flush with nothing new must not re-send the first batch.
	require.NoError(t, m.Flush())

	require.Len(t, store.countryBatches, 1)
	assert.Equal(t, int64(2), store.countryBatches[0]["DE"])

	require.Len(t, store.funnelBatches, 1)
	assert.Equal(t, int64(2), store.funnelBatches[0][FunnelSearches])
	assert.Equal(t, int64(1), store.funnelBatches[0][FunnelZeroResults])

	require.Len(t, store.termBatches, 1)
	assert.Equal(t, int64(1), store.termBatches[0]["konferenz"])

	assert.Equal(t, []string{"fintech summit"}, store.zeroQueries)
}

func TestSearchMetrics_Flush_SnapshotKeepsCumulativeTotals(t *testing.T) {
	store := &recordingStore{}
	m := NewSearchMetricsWithConfig(store, SearchMetricsConfig{FlushInterval: 0})
	defer m.Close()

	m.Record(SearchEvent{Query: "first", Country: "DE", ResultCount: 1, Latency: time.Second})
	require.NoError(t, m.Flush())
	m.Record(SearchEvent{Query: "second", Country: "DE", ResultCount: 1, Latency: time.Second})

	snapshot := m.Snapshot()
	assert.Equal(t, int64(2), snapshot.TotalSearches)
	assert.Equal(t, int64(2), snapshot.CountryCounts["DE"])
}

func TestSearchMetrics_Flush_NoStore(t *testing.T) {
	m := NewSearchMetrics(nil)
	defer m.Close()

	m.Record(SearchEvent{Query: "anything", ResultCount: 1, Latency: time.Second})
	assert.NoError(t, m.Flush())
}

// =============================================================================
// Lifecycle Tests
// =============================================================================

func TestSearchMetrics_FullLifecycle(t *testing.T) {
	m := NewSearchMetrics(nil)

	m.Record(SearchEvent{Query: "legal tech konferenz berlin", Country: "DE", RankBranch: "ai", ResultCount: 10, Latency: 9 * time.Second})
	m.Record(SearchEvent{Query: "compliance kongress", Country: "DE", CacheHit: true, ResultCount: 3, Latency: 8 * time.Millisecond})
	m.Record(SearchEvent{Query: "missing event", ResultCount: 0, Latency: 14 * time.Second})

	snapshot := m.Snapshot()
	require.NotNil(t, snapshot)
	assert.Equal(t, int64(3), snapshot.TotalSearches)
	assert.Equal(t, 1, len(snapshot.ZeroResultQueries))

	err := m.Close()
	require.NoError(t, err)

	// After close, Record should be a no-op (not panic)
	m.Record(SearchEvent{Query: "after close", ResultCount: 1, Latency: time.Second})
	assert.Equal(t, int64(3), m.Snapshot().TotalSearches)
}
