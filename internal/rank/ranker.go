// Package rank orders the surviving candidates. The AI ranker asks an
// OpenAI-compatible endpoint for a prioritized URL list and survives
// malformed replies through one bounded repair pass; the heuristic ranker
// is the deterministic fallback used on any AI failure or when ranking is
// bypassed outright.
package rank

import (
	"context"

	"github.com/eventscout/eventscout/internal/event"
)

// Request carries the candidates to order plus their query context.
type Request struct {
	Query      event.SearchQuery
	Candidates []event.CandidateResult
}

// Decision is the outcome of one ranking pass.
type Decision struct {
	// URLs is the prioritized order, best first.
	URLs []string `json:"urls"`

	// Branch names which ranker produced the order ("ai" or "heuristic").
	Branch string `json:"branch"`

	// RepairUsed is set when the AI reply only parsed after repair.
	RepairUsed bool `json:"repair_used,omitempty"`

	// Bypassed is set when the AI branch was skipped by configuration.
	Bypassed bool `json:"bypassed,omitempty"`

	// Err carries the AI failure text when the heuristic stood in.
	Err string `json:"err,omitempty"`
}

// Ranker orders candidates, best first.
type Ranker interface {
	Rank(ctx context.Context, req Request) (*Decision, error)
}

// FallbackRanker tries the AI branch first and falls back to the
// deterministic heuristic on any AI error, parse failure, or bypass.
type FallbackRanker struct {
	ai        Ranker
	heuristic Ranker
	bypass    bool
}

var _ Ranker = (*FallbackRanker)(nil)

// NewFallbackRanker composes the two branches. A nil ai ranker means the
// heuristic always runs.
func NewFallbackRanker(ai, heuristic Ranker, bypass bool) *FallbackRanker {
	return &FallbackRanker{
		ai:        ai,
		heuristic: heuristic,
		bypass:    bypass,
	}
}

// Rank never returns an error from the AI branch; AI failures degrade to
// the heuristic order with the failure recorded on the decision.
func (f *FallbackRanker) Rank(ctx context.Context, req Request) (*Decision, error) {
	if f.bypass || f.ai == nil {
		decision, err := f.heuristic.Rank(ctx, req)
		if err != nil {
			return nil, err
		}
		decision.Bypassed = f.bypass
		return decision, nil
	}

	decision, err := f.ai.Rank(ctx, req)
	if err == nil {
		return decision, nil
	}

	fallback, ferr := f.heuristic.Rank(ctx, req)
	if ferr != nil {
		return nil, ferr
	}
	fallback.Err = err.Error()
	return fallback, nil
}
