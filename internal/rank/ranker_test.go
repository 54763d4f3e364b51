package rank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eserrors "github.com/eventscout/eventscout/internal/errors"
	"github.com/eventscout/eventscout/internal/event"
)

type stubRanker struct {
	decision *Decision
	err      error
	calls    int
}

func (s *stubRanker) Rank(_ context.Context, _ Request) (*Decision, error) {
	s.calls++
	return s.decision, s.err
}

// TS20: a successful AI decision passes through untouched.
func TestFallbackRanker_AISuccess(t *testing.T) {
	ai := &stubRanker{decision: &Decision{
		URLs:   []string{"https://a.example"},
		Branch: event.RankBranchAI,
	}}
	heuristic := &stubRanker{decision: &Decision{Branch: event.RankBranchHeuristic}}
	ranker := NewFallbackRanker(ai, heuristic, false)

	decision, err := ranker.Rank(context.Background(), Request{})

	require.NoError(t, err)
	assert.Equal(t, event.RankBranchAI, decision.Branch)
	assert.Equal(t, []string{"https://a.example"}, decision.URLs)
	assert.Empty(t, decision.Err)
	assert.Zero(t, heuristic.calls)
}

// TS21: an AI failure degrades to the heuristic order and records why.
func TestFallbackRanker_AIFailureFallsBack(t *testing.T) {
	ai := &stubRanker{err: eserrors.RankError(
		eserrors.ErrCodeRankParse, "ranking reply is not valid JSON", nil)}
	heuristic := &stubRanker{decision: &Decision{
		URLs:   []string{"https://a.example"},
		Branch: event.RankBranchHeuristic,
	}}
	ranker := NewFallbackRanker(ai, heuristic, false)

	decision, err := ranker.Rank(context.Background(), Request{})

	// Then the caller sees a usable order, never the AI error.
	require.NoError(t, err)
	assert.Equal(t, event.RankBranchHeuristic, decision.Branch)
	assert.Equal(t, []string{"https://a.example"}, decision.URLs)
	assert.Contains(t, decision.Err, "ERR_602_RANK_PARSE")
	assert.False(t, decision.Bypassed)
	assert.Equal(t, 1, ai.calls)
	assert.Equal(t, 1, heuristic.calls)
}

// TS22: bypass skips the AI branch entirely and marks the decision.
func TestFallbackRanker_Bypass(t *testing.T) {
	ai := &stubRanker{decision: &Decision{Branch: event.RankBranchAI}}
	heuristic := &stubRanker{decision: &Decision{Branch: event.RankBranchHeuristic}}
	ranker := NewFallbackRanker(ai, heuristic, true)

	decision, err := ranker.Rank(context.Background(), Request{})

	require.NoError(t, err)
	assert.Equal(t, event.RankBranchHeuristic, decision.Branch)
	assert.True(t, decision.Bypassed)
	assert.Empty(t, decision.Err)
	assert.Zero(t, ai.calls)
}

// TS23: a nil AI ranker means heuristic-only, without the bypass mark.
func TestFallbackRanker_NilAI(t *testing.T) {
	heuristic := &stubRanker{decision: &Decision{Branch: event.RankBranchHeuristic}}
	ranker := NewFallbackRanker(nil, heuristic, false)

	decision, err := ranker.Rank(context.Background(), Request{})

	require.NoError(t, err)
	assert.Equal(t, event.RankBranchHeuristic, decision.Branch)
	assert.False(t, decision.Bypassed)
}

// TS24: a heuristic failure is the only error the composite surfaces.
func TestFallbackRanker_HeuristicFailurePropagates(t *testing.T) {
	ai := &stubRanker{err: eserrors.RankError(
		eserrors.ErrCodeRankCall, "ranking call failed", nil)}
	heuristic := &stubRanker{err: eserrors.New(
		eserrors.ErrCodeInternal, "ranker broke", nil)}
	ranker := NewFallbackRanker(ai, heuristic, false)

	decision, err := ranker.Rank(context.Background(), Request{})

	require.Error(t, err)
	assert.Nil(t, decision)
	assert.Equal(t, eserrors.ErrCodeInternal, eserrors.GetCode(err))
}

// TS25: end to end, the real heuristic stands in for a real parse failure.
func TestFallbackRanker_RealBranches(t *testing.T) {
	// Given an AI ranker whose endpoint talks nonsense.
	fake := &fakeCompletionAPI{resp: chatReply("no json here")}
	ranker := NewFallbackRanker(
		newTestAIRanker(fake),
		NewHeuristicRanker(),
		false,
	)

	decision, err := ranker.Rank(context.Background(),
		rankRequest("https://a.example/konferenz", "https://b.example/summit"))

	require.NoError(t, err)
	assert.Equal(t, event.RankBranchHeuristic, decision.Branch)
	assert.Len(t, decision.URLs, 2)
	assert.NotEmpty(t, decision.Err)
}
