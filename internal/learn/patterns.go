package learn

import (
	"context"
	"errors"
	"time"

	"canarywatch/internal/config"
	"canarywatch/internal/models"
	"canarywatch/internal/store"
)

// PatternStore tracks structural headline patterns and the urgency users have
// historically assigned them. Writes happen only through Observe, on the
// feedback path; Match is read-only.
type PatternStore struct {
	st  *store.Store
	cfg config.PatternConfig
	now func() time.Time
}

// NewPatternStore creates a pattern store backed by st.
func NewPatternStore(st *store.Store, cfg config.PatternConfig) *PatternStore {
	return &PatternStore{st: st, cfg: cfg, now: time.Now}
}

// Observe folds one feedback observation into the pattern for signature.
// The observation is weighted: article feedback counts double digest
// feedback, and weight flows into both the urgency sum and the sample count
// so the derived mean stays a true weighted mean.
//
// Confidence is derived, never stored independently of its inputs:
//
//	confidence = min(ceiling, count / (count + halfSat))
//
// It rises monotonically with samples and saturates below 1.
func (ps *PatternStore) Observe(ctx context.Context, q store.Querier, signature string, urgency, weight float64) error {
	p, err := ps.st.GetPattern(ctx, q, signature)
	switch {
	case errors.Is(err, store.ErrNotFound):
		p = &models.Pattern{Signature: signature}
	case errors.Is(err, store.ErrCorruptRecord):
		// A corrupt row is rebuilt from scratch rather than compounded.
		p = &models.Pattern{Signature: signature}
	case err != nil:
		return err
	}

	p.UrgencySum += urgency * weight
	p.SampleCount += weight
	p.Confidence = ps.confidence(p.SampleCount)
	p.LastUpdated = ps.now().UTC()

	return ps.st.PutPattern(ctx, q, p)
}

// MatchResult is the outcome of a pattern lookup.
type MatchResult struct {
	Matched     bool
	Signature   string
	Urgency     float64 // weighted mean urgency, 0-10
	Confidence  float64
	Quarantined bool // a row existed but failed validation
}

// Match looks up the pattern for a headline title. Patterns below the
// configured minimum sample count do not match; corrupt rows are skipped and
// flagged so the caller can surface the quarantine.
func (ps *PatternStore) Match(ctx context.Context, q store.Querier, title string) (MatchResult, error) {
	sig := Signature(title)
	res := MatchResult{Signature: sig}

	p, err := ps.st.GetPattern(ctx, q, sig)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return res, nil
	case errors.Is(err, store.ErrCorruptRecord):
		res.Quarantined = true
		return res, nil
	case err != nil:
		return res, err
	}

	if p.SampleCount < ps.cfg.MinSamples {
		return res, nil
	}

	res.Matched = true
	res.Urgency = p.DerivedUrgency()
	res.Confidence = p.Confidence
	return res, nil
}

// Decay reduces the confidence of every pattern untouched for longer than
// the configured window, flooring at the configured minimum. Patterns are
// never deleted; confidence recovers on the next observation.
func (ps *PatternStore) Decay(ctx context.Context) (int64, error) {
	cutoff := ps.now().UTC().Add(-ps.cfg.DecayWindow)
	return ps.st.DecayStalePatterns(ctx, ps.st.Base(), cutoff, ps.cfg.DecayFactor, ps.cfg.ConfidenceFloor)
}

func (ps *PatternStore) confidence(count float64) float64 {
	c := count / (count + ps.cfg.ConfidenceHalfSat)
	if c > ps.cfg.ConfidenceCeiling {
		return ps.cfg.ConfidenceCeiling
	}
	return c
}
