package search

import (
	"strings"

	"github.com/eventscout/eventscout/internal/event"
)

// BuildTiers expands one query into the progressive-relaxation ladder.
// Tier A is the query as given. Tier B strips boolean structure and only
// exists when that changes the text. Tier C restricts the query to the
// trusted organizer domains and only exists when some are configured.
func BuildTiers(q event.SearchQuery, trusted []string) []event.QueryTier {
	full := strings.TrimSpace(q.Text)

	tiers := []event.QueryTier{{ID: event.TierA, Query: full}}

	stripped := StripBooleanStructure(full)
	if stripped != "" && stripped != full {
		tiers = append(tiers, event.QueryTier{ID: event.TierB, Query: stripped})
	}

	if restrict := siteRestriction(trusted); restrict != "" {
		base := stripped
		if base == "" {
			base = full
		}
		tiers = append(tiers, event.QueryTier{
			ID:           event.TierC,
			Query:        base,
			SiteRestrict: restrict,
		})
	}

	return tiers
}

// TierText is the query string actually sent to providers for a tier.
func TierText(t event.QueryTier) string {
	if t.SiteRestrict == "" {
		return t.Query
	}
	return t.Query + " " + t.SiteRestrict
}

// StripBooleanStructure removes operator syntax from a query: parentheses,
// quotes, and the uppercase AND/OR/NOT connectives search APIs choke on.
// Natural-language lowercase "and" survives, it is part of the phrasing.
func StripBooleanStructure(text string) string {
	replaced := strings.NewReplacer(
		"(", " ",
		")", " ",
		`"`, " ",
		"“", " ",
		"”", " ",
		"„", " ",
	).Replace(text)

	fields := strings.Fields(replaced)
	kept := fields[:0]
	for _, f := range fields {
		switch f {
		case "AND", "OR", "NOT", "&&", "||":
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// siteRestriction renders the trusted domains as a search-engine site
// filter, e.g. "(site:a.de OR site:b.org)".
func siteRestriction(domains []string) string {
	var parts []string
	for _, d := range domains {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		parts = append(parts, "site:"+d)
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}
