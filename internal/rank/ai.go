package rank

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	eserrors "github.com/eventscout/eventscout/internal/errors"
	"github.com/eventscout/eventscout/internal/event"
)

// DefaultAITimeout bounds one ranking call.
const DefaultAITimeout = 20 * time.Second

const rankSystemPrompt = `You rank candidate web pages for a user searching ` +
	`for real-world events (conferences, summits) in a given country and date ` +
	`window. Prefer official event pages over aggregator listings and blog ` +
	`posts. Respond with only a JSON object of the form ` +
	`{"prioritizedUrls": ["..."]} listing every candidate URL, best first.`

// completionAPI is the slice of the OpenAI client the ranker needs; tests
// substitute a fake.
type completionAPI interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// AIRanker asks an OpenAI-compatible endpoint to order the candidates.
type AIRanker struct {
	api     completionAPI
	model   string
	timeout time.Duration
}

var _ Ranker = (*AIRanker)(nil)

// AIOption configures an AIRanker.
type AIOption func(*AIRanker)

// WithAITimeout bounds the ranking call.
func WithAITimeout(d time.Duration) AIOption {
	return func(r *AIRanker) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithCompletionAPI substitutes the OpenAI client, for tests.
func WithCompletionAPI(api completionAPI) AIOption {
	return func(r *AIRanker) {
		r.api = api
	}
}

// NewAIRanker builds the ranker against endpoint (empty means the public
// OpenAI API) with the given model.
func NewAIRanker(endpoint, apiKey, model string, opts ...AIOption) *AIRanker {
	cfg := openai.DefaultConfig(apiKey)
	if endpoint != "" {
		cfg.BaseURL = endpoint
	}

	r := &AIRanker{
		api:     openai.NewClientWithConfig(cfg),
		model:   model,
		timeout: DefaultAITimeout,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank submits the candidates and parses the prioritized URL list out of
// the reply, attempting one repair pass on malformed JSON. Unknown URLs in
// the reply are dropped; candidates the reply missed are appended in input
// order, so the decision always covers every candidate exactly once.
func (r *AIRanker) Rank(ctx context.Context, req Request) (*Decision, error) {
	if len(req.Candidates) == 0 {
		return &Decision{Branch: event.RankBranchAI}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       r.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: rankSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildRankPrompt(req)},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, eserrors.RankError(eserrors.ErrCodeRankCall, "ranking call timed out", err)
		}
		return nil, eserrors.RankError(eserrors.ErrCodeRankCall, "ranking call failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, eserrors.RankError(eserrors.ErrCodeRankShape, "ranking reply has no choices", nil)
	}

	urls, repaired, err := parsePrioritized(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	return &Decision{
		URLs:       reconcile(urls, req.Candidates),
		Branch:     event.RankBranchAI,
		RepairUsed: repaired,
	}, nil
}

func buildRankPrompt(req Request) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Query: %s\n", req.Query.Text)
	if req.Query.Country != "" {
		fmt.Fprintf(&sb, "Country: %s\n", req.Query.Country)
	}
	if window := req.Query.Window(); !window.IsZero() {
		fmt.Fprintf(&sb, "Date window: %s to %s\n",
			windowEdge(window.From), windowEdge(window.To))
	}

	sb.WriteString("Candidates:\n")
	for i, c := range req.Candidates {
		fmt.Fprintf(&sb, "%d. %s", i+1, c.URL)
		if c.Title != "" {
			fmt.Fprintf(&sb, " | %s", c.Title)
		}
		if c.Snippet != "" {
			fmt.Fprintf(&sb, " | %s", c.Snippet)
		}
		sb.WriteByte('\n')
	}

	return sb.String()
}

func windowEdge(t time.Time) string {
	if t.IsZero() {
		return "any"
	}
	return t.UTC().Format("2006-01-02")
}

// parsePrioritized decodes the URL list, repairing once on failure.
func parsePrioritized(text string) (urls []string, repaired bool, err error) {
	urls, err = decodePayload(text)
	if err == nil {
		return urls, false, nil
	}

	urls, err = decodePayload(repairJSON(text))
	if err != nil {
		return nil, false, err
	}
	return urls, true, nil
}

func decodePayload(text string) ([]string, error) {
	body, ok := extractJSONObject(text)
	if !ok {
		return nil, eserrors.RankError(eserrors.ErrCodeRankParse,
			"ranking reply contains no JSON object", nil)
	}

	var payload struct {
		PrioritizedURLs []string `json:"prioritizedUrls"`
	}
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return nil, eserrors.RankError(eserrors.ErrCodeRankParse,
			"ranking reply is not valid JSON", err)
	}
	if payload.PrioritizedURLs == nil {
		return nil, eserrors.RankError(eserrors.ErrCodeRankShape,
			"ranking reply lacks a prioritizedUrls array", nil)
	}
	return payload.PrioritizedURLs, nil
}

// reconcile maps the model's ordering back onto the candidates: unknown
// URLs are dropped, duplicates collapse to their first mention, and every
// candidate the model skipped is appended in input order. URL matching is
// tolerant of www/trailing-slash respellings.
func reconcile(ranked []string, candidates []event.CandidateResult) []string {
	canonical := make(map[string]string, len(candidates))
	order := make([]string, 0, len(candidates))
	for _, c := range candidates {
		key := rankKey(c.URL)
		if _, ok := canonical[key]; !ok {
			canonical[key] = c.URL
			order = append(order, key)
		}
	}

	used := make(map[string]bool, len(candidates))
	out := make([]string, 0, len(candidates))
	for _, u := range ranked {
		key := rankKey(u)
		if original, ok := canonical[key]; ok && !used[key] {
			out = append(out, original)
			used[key] = true
		}
	}
	for _, key := range order {
		if !used[key] {
			out = append(out, canonical[key])
			used[key] = true
		}
	}
	return out
}

func rankKey(rawURL string) string {
	normalized, err := event.NormalizeURL(rawURL)
	if err != nil {
		return rawURL
	}
	return normalized
}
