package learn

import (
	"context"
	"errors"
	"time"

	"canarywatch/internal/config"
	"canarywatch/internal/models"
	"canarywatch/internal/store"
)

// defaultKeywordWeight is the neutral starting point for a never-seen term,
// the midpoint of the 0-10 urgency scale. First observations move off it by
// the same exponential step as every later one.
const defaultKeywordWeight = 5.0

// KeywordTracker maintains an exponential moving average of observed urgency
// per term. Terms only ever enter through feedback; scoring never writes.
type KeywordTracker struct {
	st  *store.Store
	cfg config.LearningConfig
	now func() time.Time
}

// NewKeywordTracker creates a keyword tracker backed by st.
func NewKeywordTracker(st *store.Store, cfg config.LearningConfig) *KeywordTracker {
	return &KeywordTracker{st: st, cfg: cfg, now: time.Now}
}

// Update folds an observed urgency into the weight of every given term.
// The feedback-kind multiplier scales the learning rate, so article feedback
// (2x) moves a weight exactly twice as far toward the observation as digest
// feedback (1x) would from the same starting point:
//
//	w' = w*(1-rate) + urgency*rate,  rate = min(1, alpha*multiplier)
//
// Weights stay in [0, 10] because both w and urgency do.
func (kt *KeywordTracker) Update(ctx context.Context, q store.Querier, terms []string, urgency, multiplier float64) error {
	rate := kt.cfg.Alpha * multiplier
	if rate > 1 {
		rate = 1
	}

	for _, term := range terms {
		kw, err := kt.st.GetKeyword(ctx, q, term)
		switch {
		case errors.Is(err, store.ErrNotFound):
			kw = &models.KeywordWeight{Term: term, Weight: defaultKeywordWeight}
		case errors.Is(err, store.ErrCorruptRecord):
			// A corrupt row is rebuilt from neutral rather than compounded.
			kw = &models.KeywordWeight{Term: term, Weight: defaultKeywordWeight}
		case err != nil:
			return err
		}

		kw.Weight = kw.Weight*(1-rate) + urgency*rate
		kw.SampleCount += multiplier
		kw.LastUpdated = kt.now().UTC()

		if err := kt.st.PutKeyword(ctx, q, kw); err != nil {
			return err
		}
	}
	return nil
}

// KeywordScore is the aggregate signal of a headline's terms.
type KeywordScore struct {
	Matched bool
	Score   float64 // sample-weighted mean of term weights, 0-10
	Samples float64 // total observations behind the score
}

// Score aggregates the learned weights of the given terms into one urgency
// estimate. Terms with fewer than minSamples observations are ignored; when
// no term clears the bar the signal reports unmatched and the engine falls
// back. Heavily-observed terms dominate the mean.
func (kt *KeywordTracker) Score(ctx context.Context, q store.Querier, terms []string, minSamples float64) (KeywordScore, error) {
	var res KeywordScore
	if len(terms) == 0 {
		return res, nil
	}

	known, err := kt.st.GetKeywords(ctx, q, terms)
	if err != nil {
		return res, err
	}

	var weighted, total float64
	for _, term := range terms {
		kw, ok := known[term]
		if !ok || kw.SampleCount < minSamples {
			continue
		}
		weighted += kw.Weight * kw.SampleCount
		total += kw.SampleCount
	}

	if total == 0 {
		return res, nil
	}
	res.Matched = true
	res.Score = weighted / total
	res.Samples = total
	return res, nil
}
