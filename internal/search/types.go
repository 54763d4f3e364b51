package search

import "github.com/eventscout/eventscout/internal/event"

// Item is one ranked result: the candidate as a provider returned it plus
// everything the pipeline derived about it.
type Item struct {
	Candidate event.CandidateResult `json:"candidate"`
	Meta      event.CandidateMeta   `json:"meta"`
	Quality   event.QualityResult   `json:"quality"`

	// Backstop marks an aggregator kept only because too few official
	// pages survived the quality gate.
	Backstop bool `json:"backstop,omitempty"`
}

// Result is the outcome of one orchestrated search.
type Result struct {
	// Items are the surviving candidates in final rank order, capped at
	// the request limit.
	Items []Item `json:"items"`

	// Trace is the funnel diagnostic for this call. Always fresh, never
	// served from cache.
	Trace *event.SearchTrace `json:"trace,omitempty"`

	// FromCache is set when Items came from the cache fast path.
	FromCache bool `json:"from_cache,omitempty"`
}

// URLs returns the item URLs in rank order.
func (r *Result) URLs() []string {
	urls := make([]string, 0, len(r.Items))
	for _, it := range r.Items {
		urls = append(urls, it.Candidate.URL)
	}
	return urls
}
