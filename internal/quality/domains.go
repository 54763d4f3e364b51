// Package quality scores candidate pages against the requested date and
// country window and flags aggregator listings so the orchestrator can
// prefer official event pages.
package quality

import (
	"sort"
	"strings"
)

// aggregatorDomains lists registrable domains of event listing portals.
// Pages on these domains describe many events at once; an official event
// page almost never lives here.
var aggregatorDomains = map[string]struct{}{
	"10times.com":              {},
	"allconferencealert.net":   {},
	"allconferences.com":       {},
	"allevents.in":             {},
	"bizzabo.com":              {},
	"conferencealerts.com":     {},
	"conferenceindex.org":      {},
	"conferencelists.org":      {},
	"eventbrite.com":           {},
	"eventbrite.de":            {},
	"eventbrite.co.uk":         {},
	"eventseye.com":            {},
	"eventful.com":             {},
	"expodatabase.de":          {},
	"f6s.com":                  {},
	"hopin.com":                {},
	"meetup.com":               {},
	"messen.de":                {},
	"tradefairdates.com":       {},
	"worldconferencealerts.com": {},
}

// blogPathKeywords mark editorial content by URL path segment.
var blogPathKeywords = []string{
	"/blog/",
	"/news/",
	"/article/",
	"/articles/",
	"/artikel/",
	"/magazin/",
	"/magazine/",
	"/press/",
	"/presse/",
	"/post/",
	"/posts/",
	"/stories/",
}

// blogPhrases mark roundup and listicle content by title/snippet wording.
var blogPhrases = []string{
	"top 10",
	"top 20",
	"top 25",
	"best conferences",
	"best events",
	"ultimate guide",
	"complete guide",
	"roundup",
	"list of",
	"events you should",
	"conferences to attend",
	"unsere tipps",
	"die besten",
}

// ccTLDCountry maps country-code TLDs to ISO 3166-1 alpha-2 codes.
var ccTLDCountry = map[string]string{
	"at": "AT",
	"au": "AU",
	"be": "BE",
	"ca": "CA",
	"ch": "CH",
	"cz": "CZ",
	"de": "DE",
	"dk": "DK",
	"es": "ES",
	"fi": "FI",
	"fr": "FR",
	"ie": "IE",
	"it": "IT",
	"nl": "NL",
	"no": "NO",
	"pl": "PL",
	"pt": "PT",
	"se": "SE",
	"uk": "GB",
	"us": "US",
}

// cityCountry maps lowercase city keywords to their country. Keys with
// diacritics carry an ASCII twin so both spellings match.
var cityCountry = map[string]string{
	"amsterdam":  "NL",
	"barcelona":  "ES",
	"berlin":     "DE",
	"bern":       "CH",
	"brussels":   "BE",
	"cologne":    "DE",
	"copenhagen": "DK",
	"dresden":    "DE",
	"dublin":     "IE",
	"düsseldorf": "DE",
	"dusseldorf": "DE",
	"frankfurt":  "DE",
	"geneva":     "CH",
	"hamburg":    "DE",
	"hannover":   "DE",
	"köln":       "DE",
	"koeln":      "DE",
	"leipzig":    "DE",
	"lisbon":     "PT",
	"lissabon":   "PT",
	"london":     "GB",
	"madrid":     "ES",
	"milan":      "IT",
	"munich":     "DE",
	"münchen":    "DE",
	"muenchen":   "DE",
	"nuremberg":  "DE",
	"nürnberg":   "DE",
	"paris":      "FR",
	"porto":      "PT",
	"prague":     "CZ",
	"rotterdam":  "NL",
	"stockholm":  "SE",
	"stuttgart":  "DE",
	"vienna":     "AT",
	"wien":       "AT",
	"zurich":     "CH",
	"zürich":     "CH",
}

// cityNames is the sorted scan order so multi-city text resolves the same
// way on every run.
var cityNames = func() []string {
	names := make([]string, 0, len(cityCountry))
	for name := range cityCountry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}()

// venueKeywords mark venue mentions in title/snippet text.
var venueKeywords = []string{
	"arena",
	"congress center",
	"congress centre",
	"convention center",
	"convention centre",
	"exhibition centre",
	"expo",
	"forum",
	"kongresshalle",
	"kongresszentrum",
	"messe",
	"stadthalle",
}

// IsAggregatorDomain reports whether the registrable domain is a known
// event listing portal.
func IsAggregatorDomain(registrable string) bool {
	_, ok := aggregatorDomains[strings.ToLower(registrable)]
	return ok
}

// HasBlogMarkers reports whether the URL path or the title/snippet text
// carries editorial content markers.
func HasBlogMarkers(rawURL, text string) bool {
	lowerURL := strings.ToLower(rawURL)
	for _, kw := range blogPathKeywords {
		if strings.Contains(lowerURL, kw) {
			return true
		}
	}

	lowerText := strings.ToLower(text)
	for _, phrase := range blogPhrases {
		if strings.Contains(lowerText, phrase) {
			return true
		}
	}
	return false
}

// CountryFromHost resolves a host's country by its ccTLD, empty when the
// TLD carries no country signal.
func CountryFromHost(host string) string {
	idx := strings.LastIndexByte(host, '.')
	if idx < 0 || idx == len(host)-1 {
		return ""
	}
	return ccTLDCountry[host[idx+1:]]
}

// CityIn scans text for a known city keyword and returns the city with its
// country. Matching is word-boundary-free by intent: city names embedded in
// hosts ("konferenz.berlin.de") still count.
func CityIn(text string) (city, country string, ok bool) {
	lower := strings.ToLower(text)
	for _, name := range cityNames {
		if strings.Contains(lower, name) {
			return name, cityCountry[name], true
		}
	}
	return "", "", false
}

// VenueIn scans text for a venue keyword, empty when none is present.
func VenueIn(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range venueKeywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}
