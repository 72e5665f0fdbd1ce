package models

import (
	"errors"
	"time"
)

// SourceReliability tracks how well a (source, content type) pair's signals
// have historically matched realized urgency. Reliability lives in [0,1] with
// 0.5 meaning neutral; staleness decays the stored value back toward neutral
// when it is read, so a long-silent source cannot keep an outdated score.
type SourceReliability struct {
	Source      string    `json:"source"`
	ContentType string    `json:"content_type"`
	Reliability float64   `json:"reliability"`
	SampleCount int       `json:"sample_count"`
	LastUpdated time.Time `json:"last_updated"`
}

// Validate checks that all source reliability fields are valid.
func (s *SourceReliability) Validate() error {
	if s.Source == "" {
		return errors.New("source must not be empty")
	}
	if s.ContentType == "" {
		return errors.New("source content type must not be empty")
	}
	if s.Reliability < 0.0 || s.Reliability > 1.0 {
		return errors.New("source reliability must be between 0.0 and 1.0")
	}
	if s.SampleCount < 0 {
		return errors.New("source sample count must not be negative")
	}
	if s.SampleCount == 0 && s.Reliability != 0.5 {
		return errors.New("source reliability must be neutral (0.5) when sample count is zero")
	}
	return nil
}
