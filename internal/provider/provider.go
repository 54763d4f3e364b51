// Package provider implements the three result sources: Firecrawl
// (scrape-oriented search API), Serper (general web search API), and the
// curated local catalog. All three sit behind the Provider interface so the
// orchestrator can fan out without knowing which is which. Adapters return
// classified errors and never panic; turning a failure into an empty
// contribution is the orchestrator's job.
package provider

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	eserrors "github.com/eventscout/eventscout/internal/errors"
	"github.com/eventscout/eventscout/internal/event"
)

// ProviderQuery is one tier-specific search request.
type ProviderQuery struct {
	// Text is the query for this tier, already reformulated.
	Text string

	// Country is an optional ISO-3166 alpha-2 restriction.
	Country string

	// Window bounds the event dates of interest. Informational for
	// providers that cannot filter by date.
	Window event.DateWindow

	// Limit caps the number of items requested from the provider.
	Limit int
}

// Response is one provider's contribution to a tier.
type Response struct {
	// Items are the usable candidates, in provider order.
	Items []event.CandidateResult

	// RawCount is the number of hits before empty/broken entries were
	// dropped. Feeds the trace funnel.
	RawCount int
}

// Provider is a single result source.
type Provider interface {
	Name() event.ProviderName
	Search(ctx context.Context, q ProviderQuery) (Response, error)
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			MaxIdleConns:        10,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     30 * time.Second,
		},
	}
}

// classifyTransport maps a failed HTTP round trip to a provider error.
// Context cancellation passes through untouched so callers can tell a dead
// provider from a caller that went away.
func classifyTransport(name event.ProviderName, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return eserrors.TransientError(eserrors.ErrCodeProviderTimeout,
			string(name)+" request timed out", err)
	}
	return eserrors.TransientError(eserrors.ErrCodeProviderUnavailable,
		string(name)+" is unreachable", err)
}

// classifyStatus maps a non-2xx upstream status to a provider error.
func classifyStatus(name event.ProviderName, status int, body string) error {
	code := eserrors.CodeForHTTPStatus(status)
	msg := string(name) + " returned HTTP " + strconv.Itoa(status)

	var serr *eserrors.ScoutError
	switch code {
	case eserrors.ErrCodeProviderRateLimited, eserrors.ErrCodeProviderServer:
		serr = eserrors.TransientError(code, msg, nil)
	default:
		serr = eserrors.PermanentError(code, msg, nil)
	}

	if body != "" {
		serr = serr.WithDetail("body", truncate(body, 200))
	}
	return serr
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
