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

// Serper configuration defaults.
const (
	DefaultSerperEndpoint = "https://google.serper.dev"
	DefaultSerperLimit    = 10

	serperSearchPath = "/search"
)

// SerperConfig holds configuration for the Serper adapter.
type SerperConfig struct {
	// Endpoint is the API base URL (default: https://google.serper.dev).
	Endpoint string

	// APIKey is sent as X-API-KEY. Required.
	APIKey string

	// Limit is the default item cap when a query carries none.
	Limit int
}

// Serper adapts the Serper web search API.
type Serper struct {
	client   *http.Client
	endpoint string
	apiKey   string
	limit    int
}

var _ Provider = (*Serper)(nil)

// NewSerper creates the adapter.
func NewSerper(cfg SerperConfig) *Serper {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultSerperEndpoint
	}
	if cfg.Limit <= 0 {
		cfg.Limit = DefaultSerperLimit
	}

	return &Serper{
		client:   newHTTPClient(),
		endpoint: strings.TrimSuffix(cfg.Endpoint, "/"),
		apiKey:   cfg.APIKey,
		limit:    cfg.Limit,
	}
}

func (s *Serper) Name() event.ProviderName {
	return event.ProviderSerper
}

// serperRequest is the JSON request to /search.
type serperRequest struct {
	Q string `json:"q"`
	// GL restricts results to a country, lower-cased alpha-2.
	GL  string `json:"gl,omitempty"`
	Num int    `json:"num,omitempty"`
}

// serperResponse is the JSON response from /search.
type serperResponse struct {
	Organic []struct {
		Link    string `json:"link"`
		Title   string `json:"title"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
}

func (s *Serper) Search(ctx context.Context, q ProviderQuery) (Response, error) {
	if s.apiKey == "" {
		return Response{}, eserrors.PermanentError(eserrors.ErrCodeProviderAuth,
			"serper API key is not configured", nil).
			WithSuggestion("set providers.serper.api_key or EVENTSCOUT_SERPER_API_KEY")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = s.limit
	}

	body, err := json.Marshal(serperRequest{
		Q:   q.Text,
		GL:  strings.ToLower(q.Country),
		Num: limit,
	})
	if err != nil {
		return Response{}, eserrors.InternalError("marshal serper request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.endpoint+serperSearchPath, bytes.NewReader(body))
	if err != nil {
		return Response{}, eserrors.InternalError("build serper request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", s.apiKey)

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return Response{}, classifyTransport(event.ProviderSerper, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Response{}, classifyStatus(event.ProviderSerper, resp.StatusCode, string(raw))
	}

	var decoded serperResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return Response{}, eserrors.PermanentError(eserrors.ErrCodeProviderResponse,
			"serper response is not valid JSON", err)
	}

	items := make([]event.CandidateResult, 0, len(decoded.Organic))
	for _, o := range decoded.Organic {
		if strings.TrimSpace(o.Link) == "" {
			continue
		}
		items = append(items, event.CandidateResult{
			URL:      o.Link,
			Title:    o.Title,
			Snippet:  o.Snippet,
			Provider: event.ProviderSerper,
		})
	}

	slog.Debug("provider_search",
		slog.String("provider", "serper"),
		slog.Int("raw", len(decoded.Organic)),
		slog.Int("kept", len(items)),
		slog.Duration("took", time.Since(start)))

	return Response{Items: items, RawCount: len(decoded.Organic)}, nil
}
