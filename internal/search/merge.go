package search

import (
	"sort"

	"github.com/eventscout/eventscout/internal/event"
)

// providerOutcome is one provider's settled contribution to a tier. A
// failed provider settles as an empty outcome.
type providerOutcome struct {
	provider event.ProviderName
	items    []event.CandidateResult
}

// accumulator dedupes candidates across tiers and providers by normalized
// URL. The first accepted copy wins and keeps its original URL text: within
// a tier that is the higher-priority provider, across tiers the earlier
// tier.
type accumulator struct {
	seen  map[string]struct{}
	items []event.CandidateResult
}

func newAccumulator() *accumulator {
	return &accumulator{seen: make(map[string]struct{})}
}

// Merge folds one tier's outcomes in provider-priority order and returns
// how many new URLs were accepted. Candidates whose URL does not normalize
// are dropped.
func (a *accumulator) Merge(outcomes []providerOutcome) int {
	sort.SliceStable(outcomes, func(i, j int) bool {
		return outcomes[i].provider.Priority() < outcomes[j].provider.Priority()
	})

	added := 0
	for _, out := range outcomes {
		for _, c := range out.items {
			norm, err := event.NormalizeURL(c.URL)
			if err != nil {
				continue
			}
			if _, dup := a.seen[norm]; dup {
				continue
			}
			a.seen[norm] = struct{}{}
			a.items = append(a.items, c)
			added++
		}
	}
	return added
}

// Len is the number of unique candidates accumulated so far.
func (a *accumulator) Len() int { return len(a.items) }
