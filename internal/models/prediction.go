package models

import (
	"errors"
	"time"
)

// Explanation is the structured breakdown returned with every prediction.
// It records which signals fired and what each contributed so a reader can
// tell a confident internal score apart from a fallback.
type Explanation struct {
	PatternMatched     bool    `json:"pattern_matched"`
	PatternSignature   string  `json:"pattern_signature,omitempty"`
	PatternScore       float64 `json:"pattern_score"`
	PatternConfidence  float64 `json:"pattern_confidence"`
	KeywordMatched     bool    `json:"keyword_matched"`
	KeywordScore       float64 `json:"keyword_score"`
	TrustFactor        float64 `json:"trust_factor"`
	FallbackUsed       bool    `json:"fallback_used"`
	FallbackScore      float64 `json:"fallback_score"`
	InternalWeight     float64 `json:"internal_weight"`  // combined pattern+keyword weight actually applied
	EconomicConcern    float64 `json:"economic_concern"` // contribution folded into the fallback heuristic
	InsufficientData   bool    `json:"insufficient_data"`
	QuarantinedPattern bool    `json:"quarantined_pattern"` // a matching pattern existed but was corrupt
}

// PredictionRecord is the stored snapshot of one prediction. RealizedScore
// and AbsError stay nil until matching feedback arrives, never before.
type PredictionRecord struct {
	ID             string           `json:"prediction_id"`
	Headline       string           `json:"headline"`
	Source         string           `json:"source"`
	ContentType    string           `json:"content_type"`
	Economic       EconomicSnapshot `json:"economic"`
	PredictedScore float64          `json:"predicted_score"`
	PredictedAt    time.Time        `json:"predicted_at"`
	Explanation    Explanation      `json:"explanation"`
	RealizedScore  *float64         `json:"realized_score,omitempty"`
	AbsError       *float64         `json:"error,omitempty"`
}

// Validate checks that all prediction record fields are valid.
func (p *PredictionRecord) Validate() error {
	if p.ID == "" {
		return errors.New("prediction ID must not be empty")
	}
	if p.Headline == "" {
		return errors.New("prediction headline must not be empty")
	}
	if p.Source == "" {
		return errors.New("prediction source must not be empty")
	}
	if p.PredictedScore < 0.0 || p.PredictedScore > 10.0 {
		return errors.New("predicted score must be between 0.0 and 10.0")
	}
	if p.RealizedScore != nil && (*p.RealizedScore < 0.0 || *p.RealizedScore > 10.0) {
		return errors.New("realized score must be between 0.0 and 10.0")
	}
	if p.AbsError != nil && p.RealizedScore == nil {
		return errors.New("prediction error must not be set before a realized score")
	}
	return nil
}
