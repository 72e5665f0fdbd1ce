// Package alerts provides urgency escalation detection over the prediction
// history.
//
// A shift is detected when a source's recent mean urgency moves away from its
// trailing baseline. Each shift is then scored using a four-factor composite:
//
//	composite = |shift| × sample weight × baseline SNR × consistency
//
// Sample weight scales by how much recent evidence backs the shift (more
// predictions = more credible). Baseline SNR measures how unusual the move is
// relative to the source's own noise floor. Consistency rewards a clean
// directional climb over oscillating scores.
//
// Use ScoreAndRank to apply quality filtering and return the top-K
// highest-signal escalations.
package alerts

import (
	"context"
	"math"
	"sort"
	"time"

	"canarywatch/internal/store"
)

// minShift is the hardcoded floor for shift detection. Suppresses
// floating-point noise; all shifts >= 0.1 points are returned for scoring.
const minShift = 0.1

// Escalation is a detected urgency shift for one source.
type Escalation struct {
	Source       string
	BaselineMean float64
	RecentMean   float64
	Shift        float64 // RecentMean - BaselineMean, signed
	RecentCount  int
	Score        float64 // composite signal quality, set by ScoreAndRank
}

// Detector finds urgency escalations in recorded predictions.
type Detector struct {
	st  *store.Store
	now func() time.Time
}

// NewDetector creates a detector over st.
func NewDetector(st *store.Store) *Detector {
	return &Detector{st: st, now: time.Now}
}

// Detect splits each source's prediction history at now-recent: everything
// older (back to now-baseline) is that source's baseline, the rest is the
// recent window. Sources with an empty side contribute nothing; there is no
// shift to measure against. Returns every shift exceeding the minimum floor,
// unscored. ScoreAndRank is responsible for quality filtering.
func (d *Detector) Detect(ctx context.Context, recent, baseline time.Duration) ([]Escalation, error) {
	now := d.now().UTC()
	series, err := d.st.PredictionSeries(ctx, d.st.Base(), now.Add(-baseline))
	if err != nil {
		return nil, err
	}
	cut := now.Add(-recent)

	var out []Escalation
	for source, points := range series {
		var base, rec []float64
		for _, pt := range points {
			if pt.At.Before(cut) {
				base = append(base, pt.Score)
			} else {
				rec = append(rec, pt.Score)
			}
		}
		if len(base) == 0 || len(rec) == 0 {
			continue
		}

		shift := mean(rec) - mean(base)
		if math.Abs(shift) < minShift {
			continue
		}
		out = append(out, Escalation{
			Source:       source,
			BaselineMean: mean(base),
			RecentMean:   mean(rec),
			Shift:        shift,
			RecentCount:  len(rec),
			Score:        rawComposite(shift, base, rec),
		})
	}
	return out, nil
}

// ScoreAndRank filters escalations below minScore and returns at most k,
// sorted by composite score descending. Ties are broken by source name
// ascending for determinism. Returns an empty (non-nil) slice when nothing
// clears the quality bar.
func ScoreAndRank(escalations []Escalation, minScore float64, k int) []Escalation {
	ranked := make([]Escalation, 0, len(escalations))
	for _, e := range escalations {
		if e.Score >= minScore {
			ranked = append(ranked, e)
		}
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Source < ranked[j].Source
	})

	if k > 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

// SampleWeight returns log2(1 + n/refN), floored at 0.1. At refN recent
// predictions the weight is 1.0; at 4x refN it is ~2.32. When refN <= 0 it
// is treated as 1 to avoid division by zero.
func SampleWeight(n int, refN float64) float64 {
	if refN <= 0 {
		refN = 1
	}
	w := math.Log2(1 + float64(n)/refN)
	if w < 0.1 {
		return 0.1
	}
	return w
}

// BaselineSNR computes the signal-to-noise ratio of shift relative to the
// baseline's volatility. Sigma is the sample std dev of the baseline scores
// (Bessel correction, divide by n-1). Returns clamp(|shift|/sigma, 0.5, 5.0).
// Falls back to 1.0 when fewer than 2 baseline points exist or sigma < 1e-4.
func BaselineSNR(baseline []float64, shift float64) float64 {
	if len(baseline) < 2 {
		return 1.0
	}

	m := mean(baseline)
	var ss float64
	for _, v := range baseline {
		d := v - m
		ss += d * d
	}
	sigma := math.Sqrt(ss / float64(len(baseline)-1))
	if sigma < 1e-4 {
		return 1.0
	}

	snr := math.Abs(shift) / sigma
	if snr < 0.5 {
		return 0.5
	}
	if snr > 5.0 {
		return 5.0
	}
	return snr
}

// Consistency returns |sum of deltas| / sum of |deltas| across consecutive
// recent scores. A value of 1.0 means perfectly directional; 0.0 means fully
// oscillating. Falls back to 1.0 when the window has <= 1 consecutive pair.
func Consistency(recent []float64) float64 {
	if len(recent) < 2 {
		return 1.0
	}

	var net, gross float64
	for i := 1; i < len(recent); i++ {
		d := recent[i] - recent[i-1]
		net += d
		gross += math.Abs(d)
	}
	if gross == 0 {
		return 1.0
	}
	return math.Abs(net) / gross
}

// CompositeScore multiplies the factors into a single signal quality scalar.
func CompositeScore(shift, weight, snr, consistency float64) float64 {
	return math.Abs(shift) * weight * snr * consistency
}

// refRecentCount is the recent-window size at which sample weight is 1.0.
const refRecentCount = 3.0

func rawComposite(shift float64, baseline, recent []float64) float64 {
	return CompositeScore(shift,
		SampleWeight(len(recent), refRecentCount),
		BaselineSNR(baseline, shift),
		Consistency(recent))
}

func mean(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}
