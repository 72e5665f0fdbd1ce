package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"canarywatch/internal/models"
	"canarywatch/internal/store"
)

// IntelligenceReport is a read-only snapshot of everything the engine has
// learned. Generating it twice in a row yields the same content.
type IntelligenceReport struct {
	GeneratedAt         time.Time
	HealthyPatterns     int
	QuarantinedPatterns int
	KeywordCount        int
	TopKeywords         []models.KeywordWeight
	Sources             []models.SourceReliability
	FeedbackCount       int
	FeedbackSummary     []store.SourceFeedbackStat
	Accuracy            *AccuracyReport
}

// Reporter assembles intelligence reports from the store.
type Reporter struct {
	st      *store.Store
	tracker *Tracker
	now     func() time.Time
}

// NewReporter creates a reporter over st.
func NewReporter(st *store.Store, tracker *Tracker) *Reporter {
	return &Reporter{st: st, tracker: tracker, now: time.Now}
}

// Build assembles the report. window bounds the feedback summary and the
// accuracy section; topN caps the keyword listing.
func (r *Reporter) Build(ctx context.Context, window time.Duration, topN int) (*IntelligenceReport, error) {
	q := r.st.Base()
	since := r.now().UTC().Add(-window)

	healthy, quarantined, err := r.st.PatternCounts(ctx, q)
	if err != nil {
		return nil, err
	}
	keywordCount, err := r.st.KeywordCount(ctx, q)
	if err != nil {
		return nil, err
	}
	topKeywords, err := r.st.TopKeywords(ctx, q, topN, 1)
	if err != nil {
		return nil, err
	}
	sources, err := r.st.AllSources(ctx, q)
	if err != nil {
		return nil, err
	}
	feedbackCount, err := r.st.FeedbackCount(ctx, q)
	if err != nil {
		return nil, err
	}
	summary, err := r.st.FeedbackSummary(ctx, q, since)
	if err != nil {
		return nil, err
	}
	accuracy, err := r.tracker.Accuracy(ctx, since)
	if err != nil {
		return nil, err
	}

	return &IntelligenceReport{
		GeneratedAt:         r.now().UTC(),
		HealthyPatterns:     healthy,
		QuarantinedPatterns: quarantined,
		KeywordCount:        keywordCount,
		TopKeywords:         topKeywords,
		Sources:             sources,
		FeedbackCount:       feedbackCount,
		FeedbackSummary:     summary,
		Accuracy:            accuracy,
	}, nil
}

// String renders the report for terminal display. Every section is ordered
// deterministically by its underlying query.
func (rep *IntelligenceReport) String() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Intelligence Report (%s)\n", rep.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "\nPatterns: %d learned, %d quarantined\n", rep.HealthyPatterns, rep.QuarantinedPatterns)

	fmt.Fprintf(&b, "\nKeywords: %d tracked\n", rep.KeywordCount)
	for _, kw := range rep.TopKeywords {
		fmt.Fprintf(&b, "  %-24s weight=%.2f samples=%.0f\n", kw.Term, kw.Weight, kw.SampleCount)
	}

	fmt.Fprintf(&b, "\nSources: %d tracked\n", len(rep.Sources))
	for _, s := range rep.Sources {
		fmt.Fprintf(&b, "  %-24s %-8s reliability=%.2f samples=%d\n", s.Source, s.ContentType, s.Reliability, s.SampleCount)
	}

	fmt.Fprintf(&b, "\nFeedback: %d recorded\n", rep.FeedbackCount)
	for _, st := range rep.FeedbackSummary {
		fmt.Fprintf(&b, "  %-24s %-8s count=%d avg_rating=%.1f irrelevant=%d\n",
			st.Source, st.ContentType, st.Count, st.AvgRating, st.IrrelevantCount)
	}

	if rep.Accuracy != nil {
		a := rep.Accuracy
		fmt.Fprintf(&b, "\nPredictions: %d made, %d settled\n", a.Total, a.Scored)
		fmt.Fprintf(&b, "  overall: n=%d mae=%.2f\n", a.Overall.Count, a.Overall.MeanError)
		for _, st := range a.ByBand {
			fmt.Fprintf(&b, "  band %-7s n=%d mae=%.2f\n", st.Key, st.Count, st.MeanError)
		}
		for _, st := range a.BySource {
			fmt.Fprintf(&b, "  source %-17s n=%d mae=%.2f\n", st.Key, st.Count, st.MeanError)
		}
	}

	return b.String()
}
