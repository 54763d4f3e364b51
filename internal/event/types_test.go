package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	eserrors "github.com/eventscout/eventscout/internal/errors"
)

func TestSearchQuery_Validate(t *testing.T) {
	tests := []struct {
		name     string
		query    SearchQuery
		wantCode string
	}{
		{
			name:     "empty text",
			query:    SearchQuery{Text: ""},
			wantCode: eserrors.ErrCodeQueryEmpty,
		},
		{
			name:     "whitespace text",
			query:    SearchQuery{Text: "   \t "},
			wantCode: eserrors.ErrCodeQueryEmpty,
		},
		{
			name: "from after to",
			query: SearchQuery{
				Text:     "ai summit",
				DateFrom: time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC),
				DateTo:   time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
			},
			wantCode: eserrors.ErrCodeWindowInvalid,
		},
		{
			name:     "negative limit",
			query:    SearchQuery{Text: "ai summit", Limit: -1},
			wantCode: eserrors.ErrCodeLimitInvalid,
		},
		{
			name:     "three letter country",
			query:    SearchQuery{Text: "ai summit", Country: "DEU"},
			wantCode: eserrors.ErrCodeCountryInvalid,
		},
		{
			name:     "digit in country",
			query:    SearchQuery{Text: "ai summit", Country: "D1"},
			wantCode: eserrors.ErrCodeCountryInvalid,
		},
		{
			name:  "valid minimal",
			query: SearchQuery{Text: "ai summit"},
		},
		{
			name: "valid full",
			query: SearchQuery{
				Text:     "developer conference",
				Country:  "de",
				DateFrom: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC),
				DateTo:   time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC),
				Limit:    10,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantCode == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, eserrors.GetCode(err))
			assert.True(t, eserrors.IsValidation(err))
		})
	}
}

func TestSearchQuery_Normalized(t *testing.T) {
	q := SearchQuery{Text: "  ai summit  ", Country: "de"}

	n := q.Normalized()

	assert.Equal(t, "ai summit", n.Text)
	assert.Equal(t, "DE", n.Country)
	// Original is untouched
	assert.Equal(t, "  ai summit  ", q.Text)
}

func TestDateWindow_Contains(t *testing.T) {
	from := time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC)
	w := DateWindow{From: from, To: to}

	assert.True(t, w.Contains(time.Date(2026, 11, 15, 0, 0, 0, 0, time.UTC)))
	assert.True(t, w.Contains(from), "lower bound is inclusive")
	assert.True(t, w.Contains(to), "upper bound is inclusive")
	assert.False(t, w.Contains(time.Date(2026, 10, 31, 0, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, w.Contains(time.Time{}), "zero time never matches")
}

func TestDateWindow_OpenSides(t *testing.T) {
	openEnd := DateWindow{From: time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC)}
	assert.True(t, openEnd.Contains(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, openEnd.Contains(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))

	openStart := DateWindow{To: time.Date(2026, 11, 30, 0, 0, 0, 0, time.UTC)}
	assert.True(t, openStart.Contains(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, openStart.Contains(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestDateWindow_IsZero(t *testing.T) {
	assert.True(t, DateWindow{}.IsZero())
	assert.False(t, DateWindow{From: time.Now()}.IsZero())
}

func TestProviderName_Priority(t *testing.T) {
	// Firecrawl wins duplicates, local loses to both network providers
	assert.Less(t, ProviderFirecrawl.Priority(), ProviderSerper.Priority())
	assert.Less(t, ProviderSerper.Priority(), ProviderLocal.Priority())
	assert.Greater(t, ProviderName("unknown").Priority(), ProviderLocal.Priority())
}
