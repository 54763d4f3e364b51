package quality

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TS01: Aggregator and Blog Detection
func TestIsAggregatorDomain(t *testing.T) {
	tests := []struct {
		name       string
		domain     string
		aggregator bool
	}{
		{"known portal", "eventbrite.com", true},
		{"case insensitive", "Eventbrite.COM", true},
		{"german portal", "messen.de", true},
		{"official event domain", "legaltechkonferenz.de", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.aggregator, IsAggregatorDomain(tt.domain))
		})
	}
}

func TestHasBlogMarkers(t *testing.T) {
	tests := []struct {
		name   string
		url    string
		text   string
		marked bool
	}{
		{"blog path", "https://example.com/blog/conference-recap", "Conference recap", true},
		{"german article path", "https://example.de/artikel/messen-2025", "", true},
		{"listicle title", "https://example.com/events", "Top 10 legal conferences to attend", true},
		{"roundup phrase", "https://example.com/events", "Our annual roundup of compliance events", true},
		{"official page", "https://summit.example.de/2025", "Legal Summit 2025, Messe Berlin", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.marked, HasBlogMarkers(tt.url, tt.text))
		})
	}
}

func TestCountryFromHost(t *testing.T) {
	tests := []struct {
		host    string
		country string
	}{
		{"konferenz.berlin.de", "DE"},
		{"events.example.co.uk", "GB"},
		{"summit.example.fr", "FR"},
		{"example.com", ""},
		{"localhost", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			assert.Equal(t, tt.country, CountryFromHost(tt.host))
		})
	}
}

func TestCityIn(t *testing.T) {
	// Known city resolves with its country.
	city, country, ok := CityIn("Legal Tech Summit in Berlin this fall")
	assert.True(t, ok)
	assert.Equal(t, "berlin", city)
	assert.Equal(t, "DE", country)

	// Diacritic and ASCII spellings both match.
	_, country, ok = CityIn("Konferenz in München")
	assert.True(t, ok)
	assert.Equal(t, "DE", country)
	_, country, ok = CityIn("Konferenz in Muenchen")
	assert.True(t, ok)
	assert.Equal(t, "DE", country)

	// Cities embedded in hosts still count.
	city, _, ok = CityIn("https://konferenz.berlin.de/2025")
	assert.True(t, ok)
	assert.Equal(t, "berlin", city)

	// Multi-city text resolves deterministically (scan order is sorted).
	city, _, ok = CityIn("From Munich to Berlin")
	assert.True(t, ok)
	assert.Equal(t, "berlin", city)

	_, _, ok = CityIn("an online-only webinar")
	assert.False(t, ok)
}

func TestVenueIn(t *testing.T) {
	assert.Equal(t, "messe", VenueIn("Taking place at Messe Berlin"))
	assert.Equal(t, "kongresszentrum", VenueIn("im Kongresszentrum Mitte"))
	assert.Equal(t, "", VenueIn("a fully remote event"))
}
