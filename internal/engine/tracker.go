package engine

import (
	"context"
	"time"

	"canarywatch/internal/models"
	"canarywatch/internal/store"
)

// Tracker persists predictions and reports on their accuracy once outcomes
// arrive through feedback.
type Tracker struct {
	st  *store.Store
	now func() time.Time
}

// NewTracker creates a prediction tracker backed by st.
func NewTracker(st *store.Store) *Tracker {
	return &Tracker{st: st, now: time.Now}
}

// Record stores a prediction so a later feedback event can settle it.
func (t *Tracker) Record(ctx context.Context, rec *models.PredictionRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	return t.st.InsertPrediction(ctx, t.st.Base(), rec)
}

// AccuracyReport summarizes settled predictions over a window.
type AccuracyReport struct {
	Since    time.Time
	Total    int // predictions made, all time
	Scored   int // predictions with a realized outcome, all time
	Overall  store.AccuracyStat
	ByBand   []store.AccuracyStat
	BySource []store.AccuracyStat
}

// Accuracy builds the accuracy report for predictions made since the cutoff.
// Read-only; running it twice changes nothing.
func (t *Tracker) Accuracy(ctx context.Context, since time.Time) (*AccuracyReport, error) {
	q := t.st.Base()

	total, scored, err := t.st.PredictionCounts(ctx, q)
	if err != nil {
		return nil, err
	}
	overall, err := t.st.OverallAccuracy(ctx, q, since)
	if err != nil {
		return nil, err
	}
	byBand, err := t.st.AccuracyByBand(ctx, q, since)
	if err != nil {
		return nil, err
	}
	bySource, err := t.st.AccuracyBySource(ctx, q, since)
	if err != nil {
		return nil, err
	}

	return &AccuracyReport{
		Since:    since,
		Total:    total,
		Scored:   scored,
		Overall:  overall,
		ByBand:   byBand,
		BySource: bySource,
	}, nil
}
