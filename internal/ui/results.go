package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/eventscout/eventscout/internal/event"
	"github.com/eventscout/eventscout/internal/search"
)

// ResultsRenderer writes search outcomes to a terminal.
type ResultsRenderer struct {
	out    io.Writer
	styles Styles
}

// NewResultsRenderer creates a renderer. noColor selects plain output.
func NewResultsRenderer(out io.Writer, noColor bool) *ResultsRenderer {
	return &ResultsRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render writes the query scope, the ranked items, and a one-line summary.
// Write errors are ignored; this is console output.
func (r *ResultsRenderer) Render(q event.SearchQuery, res *search.Result) error {
	r.renderScope(q)

	if len(res.Items) == 0 {
		_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Warning.Render("No results."))
		if hint := zeroResultHint(res.Trace); hint != "" {
			_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Dim.Render(hint))
		}
		return nil
	}

	_, _ = fmt.Fprintln(r.out)
	for i, item := range res.Items {
		r.renderItem(i+1, item)
	}
	_, _ = fmt.Fprintln(r.out)
	_, _ = fmt.Fprintf(r.out, "%s\n", r.summaryLine(res))

	return nil
}

// RenderJSON writes the full result as indented JSON.
func (r *ResultsRenderer) RenderJSON(res *search.Result) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func (r *ResultsRenderer) renderScope(q event.SearchQuery) {
	_, _ = fmt.Fprintf(r.out, "%s %s\n",
		r.styles.Header.Render("Search:"),
		r.styles.Title.Render(q.Text))

	var parts []string
	if q.Country != "" {
		parts = append(parts, q.Country)
	}
	if w := formatWindow(q.Window()); w != "" {
		parts = append(parts, w)
	}
	if len(parts) > 0 {
		_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Label.Render(strings.Join(parts, " • ")))
	}
}

func (r *ResultsRenderer) renderItem(rank int, item search.Item) {
	title := item.Candidate.Title
	if title == "" {
		title = item.Meta.Host
	}
	if title == "" {
		title = item.Candidate.URL
	}

	badges := r.styles.Badge.Render("[" + string(item.Candidate.Provider) + "]")
	if item.Backstop {
		badges += " " + r.styles.Warning.Render("[backstop]")
	}

	_, _ = fmt.Fprintf(r.out, "%s %s  %s\n",
		r.styles.Dim.Render(fmt.Sprintf("%2d.", rank)),
		r.styles.Title.Render(truncate(title, 70)),
		badges)
	_, _ = fmt.Fprintf(r.out, "    %s\n", r.styles.URL.Render(item.Candidate.URL))
	_, _ = fmt.Fprintf(r.out, "    %s\n", r.signalLine(item))
}

// signalLine joins the extracted signals for one item: date, place, the
// quality bar, and speaker evidence.
func (r *ResultsRenderer) signalLine(item search.Item) string {
	var parts []string

	if item.Meta.DateISO != "" {
		parts = append(parts, item.Meta.DateISO)
	} else {
		parts = append(parts, r.styles.Dim.Render("no date"))
	}

	if item.Meta.City != "" {
		parts = append(parts, item.Meta.City)
	} else if item.Meta.Venue != "" {
		parts = append(parts, item.Meta.Venue)
	}

	parts = append(parts, fmt.Sprintf("%s %.2f",
		r.styles.Score.Render(ScoreBar(item.Quality.Quality, 10)),
		item.Quality.Quality))

	if item.Meta.SpeakersCount > 0 {
		parts = append(parts, fmt.Sprintf("%d speakers", item.Meta.SpeakersCount))
	}
	if item.Meta.IsOfficialDomain {
		parts = append(parts, r.styles.Success.Render("official"))
	}

	return strings.Join(parts, r.styles.Dim.Render(" • "))
}

func (r *ResultsRenderer) summaryLine(res *search.Result) string {
	parts := []string{fmt.Sprintf("%d results", len(res.Items))}

	if t := res.Trace; t != nil {
		parts = append(parts, fmt.Sprintf("%d urls seen", t.URLsSeen))
		if t.RankBranch != "" {
			parts = append(parts, "rank: "+t.RankBranch)
		}
		parts = append(parts, fmt.Sprintf("%dms", t.TotalMs))
	}
	if res.FromCache {
		parts = append(parts, "cached")
	}

	return r.styles.Label.Render(strings.Join(parts, " • "))
}

// RenderTrace writes the funnel diagnostic of one call: queries per tier,
// provider outcomes, the survival funnel, and the stage breakdown.
func (r *ResultsRenderer) RenderTrace(t *event.SearchTrace) error {
	if t == nil {
		return nil
	}

	_, _ = fmt.Fprintf(r.out, "%s %s %s\n",
		r.styles.Header.Render("Trace"),
		shortID(t.TraceID),
		r.styles.Label.Render(fmt.Sprintf("• %dms total", t.TotalMs)))

	if len(t.QueriesIssued) > 0 {
		_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Label.Render("Queries:"))
		for _, q := range t.QueriesIssued {
			_, _ = fmt.Fprintf(r.out, "  %s  %s\n",
				r.styles.Accent.Render(string(q.Tier)), q.Query)
		}
	}

	if len(t.Providers) > 0 {
		_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Label.Render("Providers:"))
		for _, pt := range t.Providers {
			line := fmt.Sprintf("  %-9s %s  %2d urls  %5dms",
				pt.Provider, pt.Tier, pt.RawCount, pt.DurationMs)
			if pt.Err != "" {
				line += "  " + r.styles.Error.Render(pt.Err)
			}
			_, _ = fmt.Fprintln(r.out, line)
		}
	}

	_, _ = fmt.Fprintf(r.out, "%s %s\n",
		r.styles.Label.Render("Funnel:"),
		fmt.Sprintf("%d seen → %d after dedupe → %d after quality → +%d backstop → %d ranked",
			t.URLsSeen, t.KeptAfterDedupe, t.KeptAfterQuality, t.BackstopKept, t.RankedCount))

	if len(t.StageMs) > 0 {
		_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Label.Render("Stages:"))
		for _, line := range Bars(stageEntries(t.StageMs), 20) {
			_, _ = fmt.Fprintf(r.out, "  %s\n", r.styles.Score.Render(line))
		}
	}

	if t.RankBranch != "" {
		line := "Rank: " + t.RankBranch
		if t.Bypassed {
			line += " (bypassed)"
		}
		if t.RepairUsed {
			line += " (repair used)"
		}
		_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Label.Render(line))
		if t.RankErr != "" {
			_, _ = fmt.Fprintf(r.out, "  %s\n", r.styles.Error.Render(t.RankErr))
		}
	}

	if len(t.Notes) > 0 {
		_, _ = fmt.Fprintf(r.out, "%s\n", r.styles.Label.Render("Notes:"))
		for _, n := range t.Notes {
			_, _ = fmt.Fprintf(r.out, "  - %s\n", n)
		}
	}

	return nil
}

// stageEntries orders the recorded stages pipeline-first, unknown names
// appended alphabetically.
func stageEntries(stageMs map[string]int64) []BarEntry {
	order := []string{"providers", "quality", "rank"}
	seen := make(map[string]bool, len(order))

	var entries []BarEntry
	for _, name := range order {
		if ms, ok := stageMs[name]; ok {
			entries = append(entries, BarEntry{Label: name, Value: float64(ms), Text: fmt.Sprintf("%dms", ms)})
			seen[name] = true
		}
	}

	var rest []string
	for name := range stageMs {
		if !seen[name] {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		ms := stageMs[name]
		entries = append(entries, BarEntry{Label: name, Value: float64(ms), Text: fmt.Sprintf("%dms", ms)})
	}
	return entries
}

func zeroResultHint(t *event.SearchTrace) string {
	if t == nil {
		return ""
	}
	if t.URLsSeen == 0 {
		return "providers returned nothing"
	}
	if t.KeptAfterQuality == 0 {
		return fmt.Sprintf("%d urls seen, none passed the quality gate", t.URLsSeen)
	}
	return ""
}

func formatWindow(w event.DateWindow) string {
	const layout = "2006-01-02"
	switch {
	case w.IsZero():
		return ""
	case w.From.IsZero():
		return "until " + w.To.Format(layout)
	case w.To.IsZero():
		return "from " + w.From.Format(layout)
	default:
		return w.From.Format(layout) + " → " + w.To.Format(layout)
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, max int) string {
	if max <= 3 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
