package models

import (
	"errors"
	"time"
)

// KeywordWeight is the learned urgency weight of a single normalized term.
// Weight is an exponential moving average of observed urgency, bounded [0,10].
// SampleCount is fractional because samples carry a feedback weight multiplier.
type KeywordWeight struct {
	Term        string    `json:"term"`
	Weight      float64   `json:"weight"`
	SampleCount float64   `json:"sample_count"`
	LastUpdated time.Time `json:"last_updated"`
}

// Validate checks that all keyword weight fields are valid.
func (k *KeywordWeight) Validate() error {
	if k.Term == "" {
		return errors.New("keyword term must not be empty")
	}
	if k.Weight < 0.0 || k.Weight > 10.0 {
		return errors.New("keyword weight must be between 0.0 and 10.0")
	}
	if k.SampleCount < 0 {
		return errors.New("keyword sample count must not be negative")
	}
	if k.SampleCount == 0 && k.Weight != 0 {
		return errors.New("keyword weight must be zero when sample count is zero")
	}
	return nil
}
