package models

import (
	"errors"
	"time"
)

// Pattern is a learned structural fingerprint of a headline correlated with
// an urgency outcome. The signature is a normalized token-shape, never raw
// text, so distinct headlines with the same structure share a pattern.
//
// UrgencySum and SampleCount are fractional because feedback samples carry a
// weight multiplier (2 for article-level feedback, 1 for digest-level).
type Pattern struct {
	Signature   string    `json:"signature"`
	UrgencySum  float64   `json:"sample_urgency_sum"`
	SampleCount float64   `json:"sample_count"`
	Confidence  float64   `json:"confidence"`
	LastUpdated time.Time `json:"last_updated"`
}

// DerivedUrgency returns the pattern's learned urgency, UrgencySum/SampleCount
// clamped to [0,10]. Returns 0 for an empty pattern.
func (p *Pattern) DerivedUrgency() float64 {
	if p.SampleCount <= 0 {
		return 0
	}
	u := p.UrgencySum / p.SampleCount
	if u < 0 {
		return 0
	}
	if u > 10 {
		return 10
	}
	return u
}

// Validate checks that all pattern fields are internally consistent.
// A pattern failing validation on load is quarantined, not trusted or deleted.
func (p *Pattern) Validate() error {
	if p.Signature == "" {
		return errors.New("pattern signature must not be empty")
	}
	if p.SampleCount < 0 {
		return errors.New("pattern sample count must not be negative")
	}
	if p.SampleCount == 0 && p.UrgencySum != 0 {
		return errors.New("pattern urgency sum must be zero when sample count is zero")
	}
	if p.UrgencySum < 0 {
		return errors.New("pattern urgency sum must not be negative")
	}
	if p.SampleCount > 0 && p.UrgencySum/p.SampleCount > 10.0+1e-9 {
		return errors.New("pattern mean urgency must not exceed 10")
	}
	if p.Confidence < 0.0 || p.Confidence > 1.0 {
		return errors.New("pattern confidence must be between 0.0 and 1.0")
	}
	return nil
}
