// Package event holds the domain types shared across the search pipeline:
// queries, query tiers, candidate results with their inferred signals, and
// the per-call trace.
package event

import (
	"strings"
	"time"

	eserrors "github.com/eventscout/eventscout/internal/errors"
)

// ProviderName identifies one of the result sources.
type ProviderName string

const (
	// ProviderFirecrawl is the scrape-oriented search API.
	ProviderFirecrawl ProviderName = "firecrawl"

	// ProviderSerper is the general web search API.
	ProviderSerper ProviderName = "serper"

	// ProviderLocal is the curated local catalog fallback.
	ProviderLocal ProviderName = "local"
)

// Priority returns the merge priority of the provider; lower wins on
// duplicate URLs. Firecrawl carries the richest metadata, so its copy of a
// page beats serper's, which beats the local catalog's.
func (p ProviderName) Priority() int {
	switch p {
	case ProviderFirecrawl:
		return 0
	case ProviderSerper:
		return 1
	case ProviderLocal:
		return 2
	default:
		return 99
	}
}

// TierID labels a query reformulation tier.
type TierID string

const (
	// TierA is the full query as given.
	TierA TierID = "A"

	// TierB is the query with boolean/parenthetical structure stripped.
	TierB TierID = "B"

	// TierC is the site-restricted curated variant.
	TierC TierID = "C"
)

// QueryTier is one rung of the progressive-relaxation ladder. Later tiers
// are only consulted while earlier tiers under-deliver.
type QueryTier struct {
	ID           TierID `json:"id"`
	Query        string `json:"query"`
	SiteRestrict string `json:"site_restrict,omitempty"`
}

// SearchQuery is one orchestration request. Immutable per call.
type SearchQuery struct {
	// Text is the free-text query. Required.
	Text string `json:"text"`

	// Country is an optional ISO-3166 alpha-2 code, upper-cased.
	Country string `json:"country,omitempty"`

	// DateFrom and DateTo bound the event window. Zero values leave the
	// corresponding side open.
	DateFrom time.Time `json:"date_from"`
	DateTo   time.Time `json:"date_to"`

	// Limit caps the number of returned items. Zero means the configured
	// default.
	Limit int `json:"limit,omitempty"`

	// UseCache controls whether the cache is consulted and written.
	UseCache bool `json:"use_cache"`
}

// Validate checks the request. Validation failures are the only error class
// that reaches a caller as a hard failure.
func (q SearchQuery) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return eserrors.ValidationError(eserrors.ErrCodeQueryEmpty, "query text cannot be empty")
	}
	if !q.DateFrom.IsZero() && !q.DateTo.IsZero() && q.DateFrom.After(q.DateTo) {
		return eserrors.ValidationError(eserrors.ErrCodeWindowInvalid, "date window invalid: from is after to")
	}
	if q.Limit < 0 {
		return eserrors.ValidationError(eserrors.ErrCodeLimitInvalid, "limit cannot be negative")
	}
	if c := strings.TrimSpace(q.Country); c != "" && !validCountryCode(c) {
		return eserrors.ValidationError(eserrors.ErrCodeCountryInvalid, "country must be a two-letter ISO code")
	}
	return nil
}

func validCountryCode(c string) bool {
	if len(c) != 2 {
		return false
	}
	for _, r := range c {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}

// Normalized returns a copy with trimmed text and an upper-cased country.
func (q SearchQuery) Normalized() SearchQuery {
	q.Text = strings.TrimSpace(q.Text)
	q.Country = strings.ToUpper(strings.TrimSpace(q.Country))
	return q
}

// Window returns the query's date window.
func (q SearchQuery) Window() DateWindow {
	return DateWindow{From: q.DateFrom, To: q.DateTo}
}

// DateWindow is a date range. Zero sides are unbounded.
type DateWindow struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// IsZero reports whether both sides are unset.
func (w DateWindow) IsZero() bool {
	return w.From.IsZero() && w.To.IsZero()
}

// Contains reports whether t falls inside the window, bounds inclusive.
func (w DateWindow) Contains(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	if !w.From.IsZero() && t.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && t.After(w.To) {
		return false
	}
	return true
}

// CandidateResult is a raw, pre-quality-filter search hit.
// Identity key is the normalized URL (NormalizeURL).
type CandidateResult struct {
	URL      string       `json:"url"`
	Title    string       `json:"title,omitempty"`
	Snippet  string       `json:"snippet,omitempty"`
	Provider ProviderName `json:"provider"`
}

// CandidateMeta carries the signals inferred for one candidate from its
// URL/title/snippet text. Derived once, never mutated after scoring.
type CandidateMeta struct {
	Host              string `json:"host"`
	RegistrableDomain string `json:"registrable_domain"`
	Country           string `json:"country,omitempty"`
	DateISO           string `json:"date_iso,omitempty"`
	Venue             string `json:"venue,omitempty"`
	City              string `json:"city,omitempty"`
	SpeakersCount     int    `json:"speakers_count,omitempty"`
	HasSpeakerPage    bool   `json:"has_speaker_page,omitempty"`
	IsOfficialDomain  bool   `json:"is_official_domain,omitempty"`
}

// QualityResult is the output of scoring one candidate.
type QualityResult struct {
	// Quality is the additive weighted score in [0,1].
	Quality float64 `json:"quality"`

	// OK reports whether the candidate passed the minimum-quality gate.
	OK bool `json:"ok"`

	// Reasons lists each failed gate as a distinct human-readable string.
	Reasons []string `json:"reasons,omitempty"`
}
