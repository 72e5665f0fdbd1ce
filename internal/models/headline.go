// Package models defines the core domain entities for the canarywatch learning
// engine: incoming headlines and economic snapshots on the read side, and the
// learned state (patterns, keyword weights, source reliability) plus the
// feedback and prediction records on the write side.
//
// All models include built-in validation to ensure data integrity throughout
// the engine. Learned entities are owned exclusively by their tracker; nothing
// outside the feedback path mutates them.
package models

import (
	"errors"
	"time"
)

// Headline is a single incoming news/economic signal to be scored.
// It arrives from the collector; the engine never fetches anything itself.
type Headline struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url,omitempty"`
	ContentType string    `json:"content_type"` // e.g. "news", "market", "social"
	PublishedAt time.Time `json:"published_at"`
}

// Validate checks that all headline fields are valid.
func (h *Headline) Validate() error {
	if h.Title == "" {
		return errors.New("headline title must not be empty")
	}
	if h.Source == "" {
		return errors.New("headline source must not be empty")
	}
	if h.ContentType == "" {
		return errors.New("headline content type must not be empty")
	}
	return nil
}

// EconomicSnapshot carries the normalized market indicators accompanying a
// prediction request. Missing indicators stay at zero, which contributes
// nothing to the score rather than failing the prediction.
type EconomicSnapshot struct {
	VIX           float64 `json:"vix"`
	GoldDelta     float64 `json:"gold_delta"`
	USDIndexDelta float64 `json:"usd_index_delta"`
	BTCTrend      float64 `json:"btc_trend"`
}

// ConcernScore converts the raw indicators into a 0-4 additive urgency
// contribution. Thresholds follow the monitor's concern bands: VIX above 30
// is high fear, above 20 elevated; a gold move past 5% is a strong flight to
// safety, past 2% moderate. Dollar and BTC swings past 3% each add one.
func (e EconomicSnapshot) ConcernScore() float64 {
	score := 0.0

	switch {
	case e.VIX > 30:
		score += 2
	case e.VIX > 20:
		score += 1
	}

	abs := func(v float64) float64 {
		if v < 0 {
			return -v
		}
		return v
	}

	switch {
	case e.GoldDelta > 5:
		score += 2
	case e.GoldDelta > 2:
		score += 1
	}

	if abs(e.USDIndexDelta) > 3 {
		score++
	}
	if abs(e.BTCTrend) > 3 {
		score++
	}

	return score
}

// UrgencyLevel is the coarse label shown to users alongside a numeric score.
type UrgencyLevel string

const (
	UrgencyHigh   UrgencyLevel = "HIGH"
	UrgencyMedium UrgencyLevel = "MEDIUM"
	UrgencyLow    UrgencyLevel = "LOW"
)

// LevelForScore maps a 0-10 urgency score to its level. The cuts (7 and 4)
// are fixed; they are a reporting convention, not a tunable.
func LevelForScore(score float64) UrgencyLevel {
	switch {
	case score >= 7:
		return UrgencyHigh
	case score >= 4:
		return UrgencyMedium
	default:
		return UrgencyLow
	}
}
