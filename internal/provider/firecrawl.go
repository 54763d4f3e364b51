package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	eserrors "github.com/eventscout/eventscout/internal/errors"
	"github.com/eventscout/eventscout/internal/event"
)

// Firecrawl configuration defaults.
const (
	DefaultFirecrawlEndpoint = "https://api.firecrawl.dev"
	DefaultFirecrawlLimit    = 10

	firecrawlSearchPath = "/v1/search"
)

// FirecrawlConfig holds configuration for the Firecrawl adapter.
type FirecrawlConfig struct {
	// Endpoint is the API base URL (default: https://api.firecrawl.dev).
	Endpoint string

	// APIKey authenticates via Bearer token. Required.
	APIKey string

	// Limit is the default item cap when a query carries none.
	Limit int
}

// Firecrawl adapts the Firecrawl search API. Scrape-oriented, so its
// snippets tend to carry the richest page text of the three sources.
type Firecrawl struct {
	client   *http.Client
	endpoint string
	apiKey   string
	limit    int
}

var _ Provider = (*Firecrawl)(nil)

// NewFirecrawl creates the adapter. The API key is validated lazily, on
// first search, so construction never needs the network.
func NewFirecrawl(cfg FirecrawlConfig) *Firecrawl {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultFirecrawlEndpoint
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultFirecrawlLimit
	}

	return &Firecrawl{
		client:   newHTTPClient(),
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		limit:    cfg.Limit,
	}
}

func (f *Firecrawl) Name() event.ProviderName {
	return event.ProviderFirecrawl
}

// firecrawlRequest is the JSON request to /v1/search.
type firecrawlRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
	// Country biases results, lower-cased alpha-2.
	Country string `json:"country,omitempty"`
}

// firecrawlResponse is the JSON response from /v1/search.
type firecrawlResponse struct {
	Success bool   `json:"success"`
	Warning string `json:"warning,omitempty"`
	Data    []struct {
		URL         string `json:"url"`
		Title       string `json:"title"`
		Description string `json:"description"`
	} `json:"data"`
}

// Search issues one search call. The context carries the deadline; the
// adapter adds none of its own.
func (f *Firecrawl) Search(ctx context.Context, q ProviderQuery) (Response, error) {
	if f.apiKey == "" {
		return Response{}, eserrors.PermanentError(eserrors.ErrCodeProviderAuth,
			"firecrawl API key is not configured", nil).
			WithSuggestion("set providers.firecrawl.api_key or EVENTSCOUT_FIRECRAWL_API_KEY")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = f.limit
	}

	body, err := json.Marshal(firecrawlRequest{
		Query:   q.Text,
		Limit:   limit,
		Country: strings.ToLower(q.Country),
	})
	if err != nil {
		return Response{}, eserrors.InternalError("marshal firecrawl request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		f.endpoint+firecrawlSearchPath, bytes.NewReader(body))
	if err != nil {
		return Response{}, eserrors.InternalError("build firecrawl request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+f.apiKey)

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return Response{}, classifyTransport(event.ProviderFirecrawl, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Response{}, classifyStatus(event.ProviderFirecrawl, resp.StatusCode, string(raw))
	}

	var decoded firecrawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Response{}, eserrors.PermanentError(eserrors.ErrCodeProviderResponse,
			"firecrawl response is not valid JSON", err)
	}
	if !decoded.Success {
		return Response{}, eserrors.PermanentError(eserrors.ErrCodeProviderResponse,
			"firecrawl reported failure", nil).WithDetail("warning", decoded.Warning)
	}

	items := make([]event.CandidateResult, 0, len(decoded.Data))
	for _, d := range decoded.Data {
		if strings.TrimSpace(d.URL) == "" {
			continue
		}
		items = append(items, event.CandidateResult{
			URL:      d.URL,
			Title:    d.Title,
			Snippet:  d.Description,
			Provider: event.ProviderFirecrawl,
		})
	}

	slog.Debug("provider_search",
		slog.String("provider", "firecrawl"),
		slog.Int("raw", len(decoded.Data)),
		slog.Int("kept", len(items)),
		slog.Duration("took", time.Since(start)))

	return Response{Items: items, RawCount: len(decoded.Data)}, nil
}
