package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Rank branches recorded in the trace.
const (
	RankBranchAI        = "ai"
	RankBranchHeuristic = "heuristic"
)

// TierQuery records one query issued on one tier.
type TierQuery struct {
	Tier  TierID `json:"tier"`
	Query string `json:"query"`
}

// ProviderTrace records one provider's contribution to a tier fan-out.
type ProviderTrace struct {
	Provider   ProviderName `json:"provider"`
	Tier       TierID       `json:"tier"`
	RawCount   int          `json:"raw_count"`
	Err        string       `json:"err,omitempty"`
	DurationMs int64        `json:"duration_ms"`
}

// SearchTrace accumulates the funnel counters of one orchestration call.
// Created at call start, finalized and logged at call end, never persisted
// beyond the call. Methods are safe for the concurrent provider fan-out.
type SearchTrace struct {
	mu sync.Mutex

	TraceID   string    `json:"trace_id"`
	StartedAt time.Time `json:"started_at"`

	CacheHit bool `json:"cache_hit"`

	QueriesIssued []TierQuery     `json:"queries_issued,omitempty"`
	Providers     []ProviderTrace `json:"providers,omitempty"`

	URLsSeen         int `json:"urls_seen"`
	KeptAfterDedupe  int `json:"kept_after_dedupe"`
	KeptAfterQuality int `json:"kept_after_quality"`
	BackstopKept     int `json:"backstop_kept"`
	RankedCount      int `json:"ranked_count"`

	RankBranch string `json:"rank_branch,omitempty"`
	RepairUsed bool   `json:"repair_used,omitempty"`
	Bypassed   bool   `json:"bypassed,omitempty"`
	RankErr    string `json:"rank_err,omitempty"`

	StageMs map[string]int64 `json:"stage_ms,omitempty"`
	Notes   []string         `json:"notes,omitempty"`

	TotalMs int64 `json:"total_ms"`
}

// NewSearchTrace starts a trace for one call.
func NewSearchTrace() *SearchTrace {
	return &SearchTrace{
		TraceID:   uuid.NewString(),
		StartedAt: time.Now(),
		StageMs:   make(map[string]int64),
	}
}

// AddQuery records a query issued on a tier.
func (t *SearchTrace) AddQuery(tier TierID, query string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.QueriesIssued = append(t.QueriesIssued, TierQuery{Tier: tier, Query: query})
}

// RecordProvider records one provider call outcome. Called concurrently from
// the fan-out goroutines.
func (t *SearchTrace) RecordProvider(pt ProviderTrace) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Providers = append(t.Providers, pt)
}

// Note appends a free-form diagnostic reason.
func (t *SearchTrace) Note(note string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.Notes = append(t.Notes, note)
}

// Stage records the latency of one pipeline stage.
func (t *SearchTrace) Stage(name string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.StageMs[name] = d.Milliseconds()
}

// SetRank records which prioritizer branch fired and how.
func (t *SearchTrace) SetRank(branch string, repairUsed, bypassed bool, errText string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.RankBranch = branch
	t.RepairUsed = repairUsed
	t.Bypassed = bypassed
	t.RankErr = errText
}

// ProviderErrors returns the recorded provider error strings, in record order.
func (t *SearchTrace) ProviderErrors() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	var errs []string
	for _, pt := range t.Providers {
		if pt.Err != "" {
			errs = append(errs, pt.Err)
		}
	}
	return errs
}

// Finalize stamps the total duration. Call once, after all stages are done.
func (t *SearchTrace) Finalize() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TotalMs = time.Since(t.StartedAt).Milliseconds()
}
