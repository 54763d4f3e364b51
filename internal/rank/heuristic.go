package rank

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/eventscout/eventscout/internal/event"
	"github.com/eventscout/eventscout/internal/quality"
)

// DefaultTopN bounds the heuristic output length.
const DefaultTopN = 10

// Point values per signal. Tuned by hand; policy, not validated truth.
const (
	pointsEventWord   = 3
	pointsTopicalWord = 2
	pointsTrustedHost = 4
	pointsPathHint    = 2
	pointsDatePath    = 2
	penaltySpam       = 4
	penaltyAggregator = 3
)

// eventWords mark page text as describing an in-person event.
var eventWords = []string{
	"conference",
	"congress",
	"convention",
	"expo",
	"fachtagung",
	"forum",
	"konferenz",
	"kongress",
	"messe",
	"summit",
	"symposium",
	"tagung",
}

// defaultTopicalWords cover the legal/compliance event domain.
var defaultTopicalWords = []string{
	"audit",
	"compliance",
	"datenschutz",
	"governance",
	"legal",
	"legal tech",
	"recht",
	"regtech",
	"regulatory",
}

// defaultTrustedDomains are organizers whose pages rank above unknowns.
var defaultTrustedDomains = []string{
	"beck-akademie.de",
	"bitkom.org",
	"euroforum.de",
	"handelsblatt.com",
}

// pathHints mark URL paths that usually belong to an event site.
var pathHints = []string{
	"/agenda",
	"/event",
	"/events",
	"/konferenz",
	"/kongress",
	"/program",
	"/programm",
	"/referenten",
	"/speakers",
	"/tickets",
	"/veranstaltung",
}

// spamMarkers in title/snippet text cost points.
var spamMarkers = []string{
	"betting",
	"casino",
	"cheap tickets",
	"discount code",
	"free tickets",
	"giveaway",
}

var datePathRe = regexp.MustCompile(`/20\d{2}([/-]|$)`)

// HeuristicRanker is the deterministic fallback: fixed integer points per
// signal, stable sort, top N kept. Same input, same order, every time.
type HeuristicRanker struct {
	topN    int
	topical []string
	trusted map[string]struct{}
}

var _ Ranker = (*HeuristicRanker)(nil)

// HeuristicOption configures a HeuristicRanker.
type HeuristicOption func(*HeuristicRanker)

// WithTopN bounds the output length. Zero or negative keeps everything.
func WithTopN(n int) HeuristicOption {
	return func(r *HeuristicRanker) {
		r.topN = n
	}
}

// WithTopicalWords replaces the topical keyword list.
func WithTopicalWords(words []string) HeuristicOption {
	return func(r *HeuristicRanker) {
		r.topical = words
	}
}

// WithTrustedDomains replaces the trusted organizer domain list.
func WithTrustedDomains(domains []string) HeuristicOption {
	return func(r *HeuristicRanker) {
		r.trusted = make(map[string]struct{}, len(domains))
		for _, d := range domains {
			r.trusted[strings.ToLower(d)] = struct{}{}
		}
	}
}

// NewHeuristicRanker builds the fallback ranker with the tuned defaults.
func NewHeuristicRanker(opts ...HeuristicOption) *HeuristicRanker {
	r := &HeuristicRanker{
		topN:    DefaultTopN,
		topical: defaultTopicalWords,
	}
	WithTrustedDomains(defaultTrustedDomains)(r)

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rank scores every candidate and returns the top N URLs, best first.
// Ties keep input order.
func (r *HeuristicRanker) Rank(_ context.Context, req Request) (*Decision, error) {
	type scored struct {
		url    string
		points int
	}

	items := make([]scored, 0, len(req.Candidates))
	for _, c := range req.Candidates {
		items = append(items, scored{url: c.URL, points: r.score(c)})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].points > items[j].points
	})

	n := len(items)
	if r.topN > 0 && r.topN < n {
		n = r.topN
	}

	urls := make([]string, 0, n)
	for _, item := range items[:n] {
		urls = append(urls, item.url)
	}

	return &Decision{URLs: urls, Branch: event.RankBranchHeuristic}, nil
}

func (r *HeuristicRanker) score(c event.CandidateResult) int {
	text := strings.ToLower(c.Title + " " + c.Snippet)
	lowerURL := strings.ToLower(c.URL)
	registrable := event.RegistrableDomain(event.HostOf(c.URL))

	points := 0
	for _, word := range eventWords {
		if strings.Contains(text, word) || strings.Contains(lowerURL, word) {
			points += pointsEventWord
		}
	}
	for _, word := range r.topical {
		if strings.Contains(text, word) || strings.Contains(lowerURL, word) {
			points += pointsTopicalWord
		}
	}
	if _, ok := r.trusted[registrable]; ok {
		points += pointsTrustedHost
	}
	for _, hint := range pathHints {
		if strings.Contains(lowerURL, hint) {
			points += pointsPathHint
			break
		}
	}
	if datePathRe.MatchString(lowerURL) {
		points += pointsDatePath
	}

	for _, marker := range spamMarkers {
		if strings.Contains(text, marker) {
			points -= penaltySpam
			break
		}
	}
	if quality.IsAggregatorDomain(registrable) {
		points -= penaltyAggregator
	}
	if quality.HasBlogMarkers(c.URL, text) {
		points -= penaltySpam
	}

	return points
}
