package alerts

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"canarywatch/internal/models"
	"canarywatch/internal/store"
)

func mustStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func insertScores(t *testing.T, s *store.Store, source string, at time.Time, scores ...float64) {
	t.Helper()
	ctx := context.Background()
	for i, score := range scores {
		rec := &models.PredictionRecord{
			ID:             fmt.Sprintf("%s-%d-%d", source, at.Unix(), i),
			Headline:       fmt.Sprintf("headline %d", i),
			Source:         source,
			ContentType:    "news",
			PredictedScore: score,
			PredictedAt:    at.Add(time.Duration(i) * time.Minute),
		}
		if err := s.InsertPrediction(ctx, s.Base(), rec); err != nil {
			t.Fatalf("InsertPrediction: %v", err)
		}
	}
}

func TestDetectFindsEscalation(t *testing.T) {
	s := mustStore(t)
	d := NewDetector(s)
	now := time.Now().UTC()
	d.now = func() time.Time { return now }

	// A calm baseline followed by a spike.
	insertScores(t, s, "reuters", now.Add(-5*24*time.Hour), 3, 3.5, 3, 3.2)
	insertScores(t, s, "reuters", now.Add(-2*time.Hour), 7, 7.5, 8)

	// A flat source must not alert.
	insertScores(t, s, "bloomberg", now.Add(-5*24*time.Hour), 4, 4, 4)
	insertScores(t, s, "bloomberg", now.Add(-2*time.Hour), 4, 4, 4)

	escalations, err := d.Detect(context.Background(), 24*time.Hour, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(escalations) != 1 {
		t.Fatalf("got %d escalations, want 1: %+v", len(escalations), escalations)
	}

	e := escalations[0]
	if e.Source != "reuters" {
		t.Errorf("source = %s, want reuters", e.Source)
	}
	wantShift := 7.5 - 3.175
	if math.Abs(e.Shift-wantShift) > 1e-9 {
		t.Errorf("shift = %v, want %v", e.Shift, wantShift)
	}
	if e.Score <= 0 {
		t.Errorf("composite score = %v, want > 0", e.Score)
	}
}

func TestDetectIgnoresOneSidedHistory(t *testing.T) {
	s := mustStore(t)
	d := NewDetector(s)
	now := time.Now().UTC()
	d.now = func() time.Time { return now }

	// Recent scores only: nothing to measure a shift against.
	insertScores(t, s, "new-feed", now.Add(-time.Hour), 9, 9, 9)

	escalations, err := d.Detect(context.Background(), 24*time.Hour, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(escalations) != 0 {
		t.Errorf("source without a baseline alerted: %+v", escalations)
	}
}

func TestScoreAndRank(t *testing.T) {
	in := []Escalation{
		{Source: "c", Score: 2.0},
		{Source: "a", Score: 5.0},
		{Source: "b", Score: 5.0},
		{Source: "d", Score: 0.2},
	}

	got := ScoreAndRank(in, 1.0, 2)
	if len(got) != 2 {
		t.Fatalf("got %d escalations, want 2", len(got))
	}
	// Tie on 5.0 broken by source name.
	if got[0].Source != "a" || got[1].Source != "b" {
		t.Errorf("order = %s, %s; want a, b", got[0].Source, got[1].Source)
	}

	empty := ScoreAndRank(nil, 1.0, 5)
	if empty == nil || len(empty) != 0 {
		t.Errorf("want empty non-nil slice, got %v", empty)
	}
}

func TestBaselineSNR(t *testing.T) {
	tests := []struct {
		name     string
		baseline []float64
		shift    float64
		want     float64
	}{
		{"too few points", []float64{5}, 3, 1.0},
		{"flat baseline", []float64{4, 4, 4}, 3, 1.0},
		{"clamped high", []float64{4, 4.1, 3.9, 4}, 5, 5.0},
		{"clamped low", []float64{1, 9, 2, 8}, 0.1, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BaselineSNR(tt.baseline, tt.shift); got != tt.want {
				t.Errorf("BaselineSNR() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConsistency(t *testing.T) {
	tests := []struct {
		name   string
		recent []float64
		want   float64
	}{
		{"single point", []float64{5}, 1.0},
		{"clean climb", []float64{3, 5, 7}, 1.0},
		{"full oscillation", []float64{5, 7, 5}, 0.0},
		{"mixed", []float64{3, 6, 5}, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Consistency(tt.recent); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Consistency() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSampleWeight(t *testing.T) {
	if w := SampleWeight(3, 3); math.Abs(w-1.0) > 1e-9 {
		t.Errorf("weight at reference count = %v, want 1.0", w)
	}
	if w := SampleWeight(0, 3); w != 0.1 {
		t.Errorf("weight at zero samples = %v, want floor 0.1", w)
	}
	if w := SampleWeight(12, 3); w <= 2 {
		t.Errorf("weight at 4x reference = %v, want > 2", w)
	}
}
