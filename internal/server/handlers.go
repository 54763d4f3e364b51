package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/eventscout/eventscout/internal/cache"
	eserrors "github.com/eventscout/eventscout/internal/errors"
	"github.com/eventscout/eventscout/internal/event"
	"github.com/eventscout/eventscout/internal/resilience"
	"github.com/eventscout/eventscout/internal/search"
	"github.com/eventscout/eventscout/internal/telemetry"
)

// Searcher runs one orchestrated search.
type Searcher interface {
	Search(ctx context.Context, q event.SearchQuery) (*search.Result, error)
}

// SearchRequest is the POST /v1/search body.
type SearchRequest struct {
	Query    string `json:"query"`
	Country  string `json:"country,omitempty"`
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	NoCache  bool   `json:"no_cache,omitempty"`
	Debug    bool   `json:"debug,omitempty"`
}

// SearchResultItem is one result on the wire.
type SearchResultItem struct {
	URL       string  `json:"url"`
	Title     string  `json:"title,omitempty"`
	Snippet   string  `json:"snippet,omitempty"`
	Provider  string  `json:"provider"`
	Quality   float64 `json:"quality"`
	Backstop  bool    `json:"backstop,omitempty"`
	EventDate string  `json:"event_date,omitempty"`
	Country   string  `json:"country,omitempty"`
	City      string  `json:"city,omitempty"`
}

// SearchResponse is the POST /v1/search payload. Trace is only included
// when the request asked for debug output.
type SearchResponse struct {
	Results   []SearchResultItem `json:"results"`
	Count     int                `json:"count"`
	FromCache bool               `json:"from_cache"`
	TraceID   string             `json:"trace_id,omitempty"`
	Trace     *event.SearchTrace `json:"trace,omitempty"`
}

// SearchHandler serves the search endpoint.
type SearchHandler struct {
	svc Searcher
}

func NewSearchHandler(svc Searcher) *SearchHandler {
	return &SearchHandler{svc: svc}
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	q := event.SearchQuery{
		Text:     req.Query,
		Country:  req.Country,
		Limit:    req.Limit,
		UseCache: !req.NoCache,
	}

	if req.DateFrom != "" {
		t, err := time.Parse("2006-01-02", req.DateFrom)
		if err != nil {
			Error(w, http.StatusBadRequest, "date_from must be YYYY-MM-DD")
			return
		}
		q.DateFrom = t
	}
	if req.DateTo != "" {
		t, err := time.Parse("2006-01-02", req.DateTo)
		if err != nil {
			Error(w, http.StatusBadRequest, "date_to must be YYYY-MM-DD")
			return
		}
		q.DateTo = t
	}

	res, err := h.svc.Search(r.Context(), q)
	if err != nil {
		if !eserrors.IsValidation(err) {
			telemetry.CaptureError(r.Context(), err)
		}
		HandleError(w, err)
		return
	}

	resp := SearchResponse{
		Results:   make([]SearchResultItem, 0, len(res.Items)),
		Count:     len(res.Items),
		FromCache: res.FromCache,
	}
	for _, it := range res.Items {
		resp.Results = append(resp.Results, SearchResultItem{
			URL:       it.Candidate.URL,
			Title:     it.Candidate.Title,
			Snippet:   it.Candidate.Snippet,
			Provider:  string(it.Candidate.Provider),
			Quality:   it.Quality.Quality,
			Backstop:  it.Backstop,
			EventDate: it.Meta.DateISO,
			Country:   it.Meta.Country,
			City:      it.Meta.City,
		})
	}
	if res.Trace != nil {
		resp.TraceID = res.Trace.TraceID
		if req.Debug {
			resp.Trace = res.Trace
		}
	}

	Success(w, http.StatusOK, resp)
}

// InvalidateRequest names what to drop: a provider's result sets, a raw
// dependency tag, or a single key. Exactly one must be set.
type InvalidateRequest struct {
	Provider   string `json:"provider,omitempty"`
	Dependency string `json:"dependency,omitempty"`
	Key        string `json:"key,omitempty"`
}

// InvalidateResponse reports how many entries were dropped.
type InvalidateResponse struct {
	Invalidated int `json:"invalidated"`
}

// CacheHandler serves the cache admin endpoints.
type CacheHandler struct {
	store cache.Store
}

func NewCacheHandler(store cache.Store) *CacheHandler {
	return &CacheHandler{store: store}
}

func (h *CacheHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		Error(w, http.StatusServiceUnavailable, "cache is not configured")
		return
	}

	var req InvalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch {
	case req.Provider != "":
		dep := cache.DependencyForProvider(event.ProviderName(req.Provider))
		n, err := h.store.InvalidateDependency(r.Context(), dep)
		if err != nil {
			HandleError(w, err)
			return
		}
		Success(w, http.StatusOK, InvalidateResponse{Invalidated: n})
	case req.Dependency != "":
		n, err := h.store.InvalidateDependency(r.Context(), req.Dependency)
		if err != nil {
			HandleError(w, err)
			return
		}
		Success(w, http.StatusOK, InvalidateResponse{Invalidated: n})
	case req.Key != "":
		if err := h.store.Delete(r.Context(), req.Key); err != nil {
			HandleError(w, err)
			return
		}
		Success(w, http.StatusOK, InvalidateResponse{Invalidated: 1})
	default:
		Error(w, http.StatusBadRequest, "one of provider, dependency, or key is required")
	}
}

// tierStats is the optional capability of the multi-tier store.
type tierStats interface {
	Stats(ctx context.Context) (cache.Stats, error)
}

func (h *CacheHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		Error(w, http.StatusServiceUnavailable, "cache is not configured")
		return
	}

	if ts, ok := h.store.(tierStats); ok {
		stats, err := ts.Stats(r.Context())
		if err != nil {
			HandleError(w, err)
			return
		}
		Success(w, http.StatusOK, stats)
		return
	}

	n, err := h.store.Len(r.Context())
	if err != nil {
		HandleError(w, err)
		return
	}
	Success(w, http.StatusOK, map[string]int{"len": n})
}

// MetricsResponse is the GET /v1/metrics payload.
type MetricsResponse struct {
	Funnel   *telemetry.SearchMetricsSnapshot `json:"funnel,omitempty"`
	Breakers []resilience.Stats               `json:"breakers,omitempty"`
}

// MetricsHandler exposes the search funnel and breaker health.
type MetricsHandler struct {
	metrics  *telemetry.SearchMetrics
	breakers *resilience.BreakerRegistry
}

func NewMetricsHandler(metrics *telemetry.SearchMetrics, breakers *resilience.BreakerRegistry) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, breakers: breakers}
}

func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	var resp MetricsResponse
	if h.metrics != nil {
		resp.Funnel = h.metrics.Snapshot()
	}
	if h.breakers != nil {
		for _, cb := range h.breakers.All() {
			resp.Breakers = append(resp.Breakers, cb.Stats())
		}
	}
	Success(w, http.StatusOK, resp)
}
