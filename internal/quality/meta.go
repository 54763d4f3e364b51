package quality

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/eventscout/eventscout/internal/event"
)

// monthNum resolves English and German month names.
var monthNum = map[string]time.Month{
	"january": time.January, "januar": time.January,
	"february": time.February, "februar": time.February,
	"march": time.March, "märz": time.March, "maerz": time.March,
	"april": time.April,
	"may": time.May, "mai": time.May,
	"june": time.June, "juni": time.June,
	"july": time.July, "juli": time.July,
	"august":    time.August,
	"september": time.September,
	"october":   time.October, "oktober": time.October,
	"november": time.November,
	"december": time.December, "dezember": time.December,
}

// monthAlt joins the month names longest-first; Go alternation is
// leftmost-first, so "january" must be tried before "januar".
var monthAlt = func() string {
	names := make([]string, 0, len(monthNum))
	for name := range monthNum {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	return strings.Join(names, "|")
}()

var (
	isoDateRe    = regexp.MustCompile(`\b(20\d{2})-(\d{1,2})-(\d{1,2})\b`)
	dottedDateRe = regexp.MustCompile(`\b(\d{1,2})\.(\d{1,2})\.(20\d{2})\b`)
	dayMonthRe   = regexp.MustCompile(`(?i)\b(\d{1,2})\.?(?:\s*[-–]\s*\d{1,2}\.?)?\s+(` + monthAlt + `)\s+(20\d{2})\b`)
	monthDayRe   = regexp.MustCompile(`(?i)\b(` + monthAlt + `)\s+(\d{1,2})(?:\s*[-–]\s*\d{1,2})?,?\s+(20\d{2})\b`)
	monthYearRe  = regexp.MustCompile(`(?i)\b(` + monthAlt + `)\s+(20\d{2})\b`)
	pathDateRe   = regexp.MustCompile(`/(20\d{2})/(\d{1,2})(?:/(\d{1,2}))?(?:/|$)`)
	speakersRe   = regexp.MustCompile(`(?i)\b(\d{1,4})\+?\s*(?:keynote\s+)?(?:speakers?|referenten|sprecher)\b`)
)

// speakerPageMarkers in title/snippet text.
var speakerPageMarkers = []string{
	"confirmed speakers",
	"meet the speakers",
	"our speakers",
	"speaker lineup",
	"speaker line-up",
	"speakers announced",
	"unsere referenten",
	"unsere speaker",
}

// DeriveMeta infers the scoring signals for one candidate from its URL,
// title, and snippet. Pure per candidate; the result is never mutated
// after scoring.
func DeriveMeta(c event.CandidateResult) event.CandidateMeta {
	text := strings.TrimSpace(c.Title + " " + c.Snippet)
	host := event.HostOf(c.URL)

	meta := event.CandidateMeta{
		Host:              host,
		RegistrableDomain: event.RegistrableDomain(host),
	}

	meta.Country = CountryFromHost(host)
	if city, cc, ok := CityIn(c.URL + " " + text); ok {
		meta.City = city
		if meta.Country == "" {
			meta.Country = cc
		}
	}

	meta.DateISO = extractDateISO(text)
	if meta.DateISO == "" {
		meta.DateISO = extractDateISO(c.URL)
	}

	meta.Venue = VenueIn(text)
	meta.SpeakersCount = extractSpeakersCount(text)
	meta.HasSpeakerPage = hasSpeakerPage(c.URL, text)
	meta.IsOfficialDomain = !IsAggregatorDomain(meta.RegistrableDomain) &&
		!HasBlogMarkers(c.URL, text)

	return meta
}

// extractDateISO pulls the first parseable event start date out of text.
// Recognized shapes: 2025-11-12, 12.11.2025, "12.-14. November 2025",
// "November 12-14, 2025", "November 2025" (first of month), and /2025/11/
// URL path segments. Returns "" when nothing parses.
func extractDateISO(text string) string {
	for _, m := range isoDateRe.FindAllStringSubmatch(text, -1) {
		if iso, ok := makeISO(m[1], m[2], m[3]); ok {
			return iso
		}
	}
	for _, m := range dottedDateRe.FindAllStringSubmatch(text, -1) {
		if iso, ok := makeISO(m[3], m[2], m[1]); ok {
			return iso
		}
	}
	if m := dayMonthRe.FindStringSubmatch(text); m != nil {
		month := monthNum[strings.ToLower(m[2])]
		if iso, ok := makeISO(m[3], strconv.Itoa(int(month)), m[1]); ok {
			return iso
		}
	}
	if m := monthDayRe.FindStringSubmatch(text); m != nil {
		month := monthNum[strings.ToLower(m[1])]
		if iso, ok := makeISO(m[3], strconv.Itoa(int(month)), m[2]); ok {
			return iso
		}
	}
	if m := pathDateRe.FindStringSubmatch(text); m != nil {
		day := m[3]
		if day == "" {
			day = "1"
		}
		if iso, ok := makeISO(m[1], m[2], day); ok {
			return iso
		}
	}
	if m := monthYearRe.FindStringSubmatch(text); m != nil {
		month := monthNum[strings.ToLower(m[1])]
		if iso, ok := makeISO(m[2], strconv.Itoa(int(month)), "1"); ok {
			return iso
		}
	}
	return ""
}

// makeISO validates the components by round-tripping through time.Date.
func makeISO(year, month, day string) (string, bool) {
	y, _ := strconv.Atoi(year)
	m, _ := strconv.Atoi(month)
	d, _ := strconv.Atoi(day)
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return "", false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || t.Month() != time.Month(m) || t.Day() != d {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", y, m, d), true
}

func extractSpeakersCount(text string) int {
	m := speakersRe.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

func hasSpeakerPage(rawURL, text string) bool {
	lowerURL := strings.ToLower(rawURL)
	if strings.Contains(lowerURL, "/speaker") ||
		strings.Contains(lowerURL, "/referenten") ||
		strings.Contains(lowerURL, "/sprecher") {
		return true
	}

	lowerText := strings.ToLower(text)
	for _, marker := range speakerPageMarkers {
		if strings.Contains(lowerText, marker) {
			return true
		}
	}
	return false
}
