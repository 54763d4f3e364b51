package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eserrors "github.com/eventscout/eventscout/internal/errors"
	"github.com/eventscout/eventscout/internal/event"
)

func mockServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	return httptest.NewServer(handler)
}

func novemberQuery() ProviderQuery {
	return ProviderQuery{
		Text:    "legal tech konferenz",
		Country: "DE",
		Window: event.DateWindow{
			From: time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2025, 11, 30, 0, 0, 0, 0, time.UTC),
		},
		Limit: 5,
	}
}

// TS01: a successful call sends the documented request shape and maps the
// data array onto candidates.
func TestFirecrawl_Search(t *testing.T) {
	// Given a server that records the request and answers with two hits
	// plus one broken entry.
	var gotPath, gotAuth string
	var gotBody firecrawlRequest
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"success": true,
			"data": [
				{"url": "https://legaltechkonferenz.de/2025", "title": "Legal Tech Konferenz", "description": "Die Fachkonferenz"},
				{"url": "", "title": "broken entry"},
				{"url": "https://www.datenschutzkongress.de/2026", "title": "Datenschutzkongress"}
			]
		}`))
	})
	defer server.Close()

	fc := NewFirecrawl(FirecrawlConfig{Endpoint: server.URL, APIKey: "fc-key"})

	// When
	resp, err := fc.Search(context.Background(), novemberQuery())

	// Then the request matched the API contract.
	require.NoError(t, err)
	assert.Equal(t, "/v1/search", gotPath)
	assert.Equal(t, "Bearer fc-key", gotAuth)
	assert.Equal(t, "legal tech konferenz", gotBody.Query)
	assert.Equal(t, "de", gotBody.Country)
	assert.Equal(t, 5, gotBody.Limit)

	// And the broken entry was dropped but still counted.
	assert.Equal(t, 3, resp.RawCount)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "https://legaltechkonferenz.de/2025", resp.Items[0].URL)
	assert.Equal(t, "Legal Tech Konferenz", resp.Items[0].Title)
	assert.Equal(t, "Die Fachkonferenz", resp.Items[0].Snippet)
	assert.Equal(t, event.ProviderFirecrawl, resp.Items[0].Provider)
}

// TS02: upstream statuses classify into transient or permanent codes.
func TestFirecrawl_StatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		wantCode  string
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, eserrors.ErrCodeProviderRateLimited, true},
		{"server error", http.StatusBadGateway, eserrors.ErrCodeProviderServer, true},
		{"bad auth", http.StatusUnauthorized, eserrors.ErrCodeProviderAuth, false},
		{"rejected", http.StatusBadRequest, eserrors.ErrCodeProviderRejected, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := mockServer(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error": "nope"}`))
			})
			defer server.Close()

			fc := NewFirecrawl(FirecrawlConfig{Endpoint: server.URL, APIKey: "fc-key"})
			_, err := fc.Search(context.Background(), novemberQuery())

			require.Error(t, err)
			assert.Equal(t, tt.wantCode, eserrors.GetCode(err))
			assert.Equal(t, tt.transient, eserrors.IsTransient(err))
		})
	}
}

// TS03: a 200 with success=false or broken JSON is a response error.
func TestFirecrawl_BadResponseBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"reported failure", `{"success": false, "warning": "quota exceeded"}`},
		{"broken json", `{"success": true, "data": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := mockServer(t, func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			})
			defer server.Close()

			fc := NewFirecrawl(FirecrawlConfig{Endpoint: server.URL, APIKey: "fc-key"})
			_, err := fc.Search(context.Background(), novemberQuery())

			require.Error(t, err)
			assert.Equal(t, eserrors.ErrCodeProviderResponse, eserrors.GetCode(err))
			assert.False(t, eserrors.IsTransient(err))
		})
	}
}

// TS04: a missing API key fails fast without touching the network.
func TestFirecrawl_MissingAPIKey(t *testing.T) {
	called := false
	server := mockServer(t, func(http.ResponseWriter, *http.Request) {
		called = true
	})
	defer server.Close()

	fc := NewFirecrawl(FirecrawlConfig{Endpoint: server.URL})
	_, err := fc.Search(context.Background(), novemberQuery())

	require.Error(t, err)
	assert.Equal(t, eserrors.ErrCodeProviderAuth, eserrors.GetCode(err))
	assert.False(t, called)
}

// TS05: a deadline that fires mid-call surfaces as a provider timeout.
func TestFirecrawl_ContextDeadline(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	defer server.Close()

	fc := NewFirecrawl(FirecrawlConfig{Endpoint: server.URL, APIKey: "fc-key"})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := fc.Search(ctx, novemberQuery())

	require.Error(t, err)
	assert.Equal(t, eserrors.ErrCodeProviderTimeout, eserrors.GetCode(err))
	assert.True(t, eserrors.IsTransient(err))
}

// TS06: an unreachable endpoint is a transient unavailable error.
func TestFirecrawl_Unreachable(t *testing.T) {
	fc := NewFirecrawl(FirecrawlConfig{Endpoint: "http://localhost:1", APIKey: "fc-key"})

	_, err := fc.Search(context.Background(), novemberQuery())

	require.Error(t, err)
	assert.Equal(t, eserrors.ErrCodeProviderUnavailable, eserrors.GetCode(err))
	assert.True(t, eserrors.IsTransient(err))
}
