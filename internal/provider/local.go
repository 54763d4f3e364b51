package provider

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"

	eserrors "github.com/eventscout/eventscout/internal/errors"
	"github.com/eventscout/eventscout/internal/event"
)

// DefaultLocalLimit caps local results when the query carries no limit.
// Small on purpose: the catalog is a fallback, not a result source to
// compete with the network providers.
const DefaultLocalLimit = 5

// localDoc is the indexed shape of one catalog entry.
type localDoc struct {
	Text string `json:"text"`
}

// Local serves the curated catalog through an in-memory bleve index.
// The orchestrator consults it only when both network providers came back
// empty. Reload swaps the whole index atomically, which is what the
// catalog file watcher calls on change.
type Local struct {
	mu      sync.RWMutex
	index   bleve.Index
	entries map[string]CatalogEntry
	closed  bool
}

var _ Provider = (*Local)(nil)

// NewLocal builds the provider from a catalog.
func NewLocal(catalog *Catalog) (*Local, error) {
	l := &Local{}
	if err := l.Reload(catalog); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *Local) Name() event.ProviderName {
	return event.ProviderLocal
}

// Reload replaces the index with one built from the given catalog. Safe
// under concurrent Search calls; in-flight searches finish on the old
// index before it is closed.
func (l *Local) Reload(catalog *Catalog) error {
	idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return eserrors.InternalError("create catalog index", err)
	}

	entries := make(map[string]CatalogEntry, len(catalog.Entries))
	batch := idx.NewBatch()
	for _, e := range catalog.Entries {
		text := strings.Join([]string{
			e.Title, e.Description, e.City, strings.Join(e.Tags, " "),
		}, " ")
		if err := batch.Index(e.URL, localDoc{Text: text}); err != nil {
			idx.Close()
			return eserrors.InternalError("index catalog entry "+e.URL, err)
		}
		entries[e.URL] = e
	}
	if err := idx.Batch(batch); err != nil {
		idx.Close()
		return eserrors.InternalError("build catalog index", err)
	}

	l.mu.Lock()
	old := l.index
	l.index = idx
	l.entries = entries
	l.mu.Unlock()

	if old != nil {
		old.Close()
	}

	slog.Info("local_catalog_loaded", slog.Int("entries", len(entries)))
	return nil
}

// Search keyword-matches the catalog, then filters by the query's country
// and window. Entries without a parseable date survive the window filter;
// the quality gate downstream judges those.
func (l *Local) Search(ctx context.Context, q ProviderQuery) (Response, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.closed {
		return Response{}, eserrors.InternalError("local provider is closed", nil)
	}
	if strings.TrimSpace(q.Text) == "" {
		return Response{}, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLocalLimit
	}

	match := bleve.NewMatchQuery(q.Text)
	match.SetField("text")
	req := bleve.NewSearchRequest(match)
	// Over-fetch so country/window filtering cannot starve the limit.
	req.Size = len(l.entries)

	result, err := l.index.SearchInContext(ctx, req)
	if err != nil {
		return Response{}, eserrors.InternalError("catalog search failed", err)
	}

	items := make([]event.CandidateResult, 0, limit)
	for _, hit := range result.Hits {
		entry, ok := l.entries[hit.ID]
		if !ok {
			continue
		}
		if !entryMatches(entry, q) {
			continue
		}
		items = append(items, event.CandidateResult{
			URL:      entry.URL,
			Title:    entry.Title,
			Snippet:  entrySnippet(entry),
			Provider: event.ProviderLocal,
		})
		if len(items) >= limit {
			break
		}
	}

	return Response{Items: items, RawCount: len(result.Hits)}, nil
}

// entrySnippet folds the structured catalog fields into the snippet text,
// so the extraction that reads provider snippets sees the curated city and
// date too.
func entrySnippet(entry CatalogEntry) string {
	parts := make([]string, 0, 3)
	if entry.Description != "" {
		parts = append(parts, entry.Description)
	}
	if entry.City != "" {
		parts = append(parts, entry.City)
	}
	if entry.Date != "" {
		parts = append(parts, entry.Date)
	}
	return strings.Join(parts, ", ")
}

func entryMatches(entry CatalogEntry, q ProviderQuery) bool {
	if q.Country != "" && entry.Country != "" &&
		!strings.EqualFold(entry.Country, q.Country) {
		return false
	}
	if q.Window.IsZero() || entry.Date == "" {
		return true
	}
	date, err := time.Parse("2006-01-02", entry.Date)
	if err != nil {
		return true
	}
	return q.Window.Contains(date)
}

// Len reports the number of catalog entries currently indexed.
func (l *Local) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Close releases the index. Search calls after Close fail.
func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.index != nil {
		return l.index.Close()
	}
	return nil
}
