package learn

import (
	"context"
	"errors"
	"math"
	"time"

	"canarywatch/internal/config"
	"canarywatch/internal/models"
	"canarywatch/internal/store"
)

// neutralReliability is the trust assigned to a source the engine knows
// nothing about. Unseen and under-sampled sources neither boost nor damp a
// prediction.
const neutralReliability = 0.5

// SourceTracker maintains per-source, per-content-type reliability: an
// exponential moving average of how close predictions for that source landed
// to realized urgency. Reads apply staleness decay without persisting it, so
// a long-quiet source drifts back toward neutral trust.
type SourceTracker struct {
	st  *store.Store
	cfg config.SourceConfig
	now func() time.Time
}

// NewSourceTracker creates a source tracker backed by st.
func NewSourceTracker(st *store.Store, cfg config.SourceConfig) *SourceTracker {
	return &SourceTracker{st: st, cfg: cfg, now: time.Now}
}

// RecordOutcome folds one prediction-vs-realized pair into the source's
// reliability. Accuracy is the complement of normalized absolute error:
//
//	accuracy = 1 - |predicted - realized| / 10
//	reliability' = reliability*(1-beta) + accuracy*beta
func (tr *SourceTracker) RecordOutcome(ctx context.Context, q store.Querier, source, contentType string, predicted, realized float64) error {
	accuracy := 1 - math.Abs(predicted-realized)/10
	if accuracy < 0 {
		accuracy = 0
	}

	sr, err := tr.st.GetSource(ctx, q, source, contentType)
	switch {
	case errors.Is(err, store.ErrNotFound):
		sr = &models.SourceReliability{
			Source:      source,
			ContentType: contentType,
			Reliability: neutralReliability,
		}
	case errors.Is(err, store.ErrCorruptRecord):
		// A corrupt row is rebuilt from neutral rather than compounded.
		sr = &models.SourceReliability{
			Source:      source,
			ContentType: contentType,
			Reliability: neutralReliability,
		}
	case err != nil:
		return err
	}

	sr.Reliability = sr.Reliability*(1-tr.cfg.Beta) + accuracy*tr.cfg.Beta
	sr.SampleCount++
	sr.LastUpdated = tr.now().UTC()

	return tr.st.PutSource(ctx, q, sr)
}

// Reliability returns the current trust in a source for a content type,
// with staleness decay applied at read time. A source below the minimum
// sample count, one never seen, or one whose row was quarantined reports
// neutral trust.
//
// Decay pulls reliability toward neutral by a fixed fraction per elapsed
// decay window, and never below the configured floor:
//
//	decayed = 0.5 + (r - 0.5) * (1-rate)^(age/window)
//
// The decayed value is not written back; the stored EMA stays intact and
// the penalty grows only with further silence.
func (tr *SourceTracker) Reliability(ctx context.Context, q store.Querier, source, contentType string) (float64, error) {
	sr, err := tr.st.GetSource(ctx, q, source, contentType)
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, store.ErrCorruptRecord) {
		return neutralReliability, nil
	}
	if err != nil {
		return 0, err
	}
	if sr.SampleCount < tr.cfg.MinSamples {
		return neutralReliability, nil
	}

	age := tr.now().UTC().Sub(sr.LastUpdated)
	units := age.Hours() / tr.cfg.DecayEvery.Hours()
	if units < 0 {
		units = 0
	}

	decayed := neutralReliability + (sr.Reliability-neutralReliability)*math.Pow(1-tr.cfg.DecayRate, units)
	if decayed < tr.cfg.Floor {
		decayed = tr.cfg.Floor
	}
	return decayed, nil
}
