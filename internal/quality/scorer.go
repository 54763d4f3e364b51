package quality

import (
	"fmt"
	"math"
	"strings"
	"time"

	eserrors "github.com/eventscout/eventscout/internal/errors"
	"github.com/eventscout/eventscout/internal/event"
)

const (
	// DefaultMinQuality is the minimum score a candidate needs to pass
	// the quality gate.
	DefaultMinQuality = 0.5

	// DefaultMinSpeakers is the speaker count that counts as a signal.
	DefaultMinSpeakers = 5

	// weightEpsilon is the tolerance on the weight sum.
	weightEpsilon = 0.01
)

// Weights are the additive signal weights. They must sum to 1.0 within a
// small epsilon so the score stays in [0,1].
type Weights struct {
	DateInWindow   float64 `json:"date_in_window" yaml:"date_in_window"`
	CountryMatch   float64 `json:"country_match" yaml:"country_match"`
	VenueOrCity    float64 `json:"venue_or_city" yaml:"venue_or_city"`
	SpeakerPage    float64 `json:"speaker_page" yaml:"speaker_page"`
	SpeakerCount   float64 `json:"speaker_count" yaml:"speaker_count"`
	OfficialDomain float64 `json:"official_domain" yaml:"official_domain"`
}

// DefaultWeights returns the tuned weight set.
func DefaultWeights() Weights {
	return Weights{
		DateInWindow:   0.25,
		CountryMatch:   0.20,
		VenueOrCity:    0.15,
		SpeakerPage:    0.15,
		SpeakerCount:   0.10,
		OfficialDomain: 0.15,
	}
}

// Sum returns the total of all weights.
func (w Weights) Sum() float64 {
	return w.DateInWindow + w.CountryMatch + w.VenueOrCity +
		w.SpeakerPage + w.SpeakerCount + w.OfficialDomain
}

// Validate checks that every weight is non-negative and the sum is 1.0
// within epsilon.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{
		"date_in_window":  w.DateInWindow,
		"country_match":   w.CountryMatch,
		"venue_or_city":   w.VenueOrCity,
		"speaker_page":    w.SpeakerPage,
		"speaker_count":   w.SpeakerCount,
		"official_domain": w.OfficialDomain,
	} {
		if v < 0 {
			return eserrors.ConfigError(
				fmt.Sprintf("quality weight %s is negative: %v", name, v), nil)
		}
	}
	if sum := w.Sum(); math.Abs(sum-1.0) > weightEpsilon {
		return eserrors.ConfigError(
			fmt.Sprintf("quality weights must sum to 1.0, got %.3f", sum), nil).
			WithSuggestion("adjust the quality.weights section so the six weights total 1.0")
	}
	return nil
}

// Scorer scores candidates against a query's country and date window.
type Scorer struct {
	weights     Weights
	minQuality  float64
	minSpeakers int
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithWeights overrides the signal weights.
func WithWeights(w Weights) Option {
	return func(s *Scorer) {
		s.weights = w
	}
}

// WithMinQuality sets the minimum-quality gate.
func WithMinQuality(q float64) Option {
	return func(s *Scorer) {
		s.minQuality = q
	}
}

// WithMinSpeakers sets the speaker count threshold.
func WithMinSpeakers(n int) Option {
	return func(s *Scorer) {
		s.minSpeakers = n
	}
}

// NewScorer builds a Scorer, validating the configured weights and gates.
func NewScorer(opts ...Option) (*Scorer, error) {
	s := &Scorer{
		weights:     DefaultWeights(),
		minQuality:  DefaultMinQuality,
		minSpeakers: DefaultMinSpeakers,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.weights.Validate(); err != nil {
		return nil, err
	}
	if s.minQuality < 0 || s.minQuality > 1 {
		return nil, eserrors.ConfigError(
			fmt.Sprintf("min quality must be in [0,1], got %v", s.minQuality), nil)
	}
	if s.minSpeakers < 0 {
		return nil, eserrors.ConfigError(
			fmt.Sprintf("min speakers must not be negative, got %d", s.minSpeakers), nil)
	}
	return s, nil
}

// Score computes the additive weighted quality of one candidate against the
// requested country and date window. Pure: same inputs, same result.
func (s *Scorer) Score(meta event.CandidateMeta, country string, window event.DateWindow) event.QualityResult {
	var score float64

	if dateInWindow(meta.DateISO, window) {
		score += s.weights.DateInWindow
	}
	if countryMatches(meta, country) {
		score += s.weights.CountryMatch
	}
	if meta.Venue != "" || meta.City != "" {
		score += s.weights.VenueOrCity
	}
	if meta.HasSpeakerPage {
		score += s.weights.SpeakerPage
	}
	if meta.SpeakersCount > 0 && meta.SpeakersCount >= s.minSpeakers {
		score += s.weights.SpeakerCount
	}
	if meta.IsOfficialDomain {
		score += s.weights.OfficialDomain
	}

	result := event.QualityResult{
		Quality: score,
		OK:      score >= s.minQuality,
	}
	if !result.OK {
		result.Reasons = []string{qualityReason(score, s.minQuality)}
	}
	return result
}

// IsSolidHit applies the four independent gates on top of the score:
// minimum quality, date and location presence, country match, and a
// speaker signal. Every failed gate contributes its own reason.
func (s *Scorer) IsSolidHit(meta event.CandidateMeta, country string, window event.DateWindow) (bool, []string) {
	var reasons []string

	if q := s.Score(meta, country, window); q.Quality < s.minQuality {
		reasons = append(reasons, qualityReason(q.Quality, s.minQuality))
	}
	if meta.DateISO == "" {
		reasons = append(reasons, "no event date found")
	}
	if meta.Venue == "" && meta.City == "" {
		reasons = append(reasons, "no venue or city found")
	}
	if !countryMatches(meta, country) {
		reasons = append(reasons, "country mismatch: want "+strings.ToUpper(country))
	}
	if meta.SpeakersCount < s.minSpeakers && !meta.HasSpeakerPage {
		reasons = append(reasons,
			fmt.Sprintf("no speaker signal (need %d+ speakers or a speaker page)", s.minSpeakers))
	}

	return len(reasons) == 0, reasons
}

func qualityReason(got, min float64) string {
	return fmt.Sprintf("quality %.2f below minimum %.2f", got, min)
}

func countryMatches(meta event.CandidateMeta, country string) bool {
	if country == "" {
		return true
	}
	return strings.EqualFold(meta.Country, country)
}

func dateInWindow(dateISO string, window event.DateWindow) bool {
	if dateISO == "" {
		return false
	}
	t, err := time.Parse("2006-01-02", dateISO)
	if err != nil {
		return false
	}
	if window.IsZero() {
		return true
	}
	return window.Contains(t)
}
