package engine

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"canarywatch/internal/config"
	"canarywatch/internal/learn"
	"canarywatch/internal/models"
	"canarywatch/internal/store"
)

type harness struct {
	st       *store.Store
	patterns *learn.PatternStore
	keywords *learn.KeywordTracker
	sources  *learn.SourceTracker
	ingester *learn.Ingester
	engine   *Engine
	tracker  *Tracker
}

func newHarness(t *testing.T, path string) *harness {
	t.Helper()
	s, err := store.Open(path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	cfg := config.Default()
	h := &harness{st: s}
	h.patterns = learn.NewPatternStore(s, cfg.Patterns)
	h.keywords = learn.NewKeywordTracker(s, cfg.Learning)
	h.sources = learn.NewSourceTracker(s, cfg.Sources)
	h.ingester = learn.NewIngester(s, h.patterns, h.keywords, h.sources, cfg.Learning, cfg.Engine.OutcomeMatchWindow)
	h.engine = New(s, h.patterns, h.keywords, h.sources, cfg.Engine, cfg.Learning.MinKeywordLength)
	h.tracker = NewTracker(s)
	return h
}

func TestPredictFallsBackWithEmptyState(t *testing.T) {
	h := newHarness(t, ":memory:")
	ctx := context.Background()

	headline := models.Headline{
		Title:       "Martial law declared after coup attempt",
		Source:      "unknown-wire",
		ContentType: "news",
		PublishedAt: time.Now(),
	}
	rec, err := h.engine.Predict(ctx, headline, models.EconomicSnapshot{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	if !rec.Explanation.InsufficientData {
		t.Error("empty state not flagged as insufficient data")
	}
	if !rec.Explanation.FallbackUsed {
		t.Error("fallback not flagged")
	}
	if rec.PredictedScore != rec.Explanation.FallbackScore {
		t.Errorf("score %v diverges from fallback %v with no learned signals",
			rec.PredictedScore, rec.Explanation.FallbackScore)
	}
	// Two high-urgency term hits: base 2 + 3 + 1.
	if rec.PredictedScore != 6 {
		t.Errorf("fallback score = %v, want 6", rec.PredictedScore)
	}
}

func TestPredictWithExternalFallback(t *testing.T) {
	h := newHarness(t, ":memory:")
	ctx := context.Background()

	headline := models.Headline{Title: "Unrecognized niche industry update", Source: "wire", ContentType: "news"}
	rec, err := h.engine.PredictWithFallback(ctx, headline, models.EconomicSnapshot{}, 7.5)
	if err != nil {
		t.Fatalf("PredictWithFallback: %v", err)
	}

	// No learned signals: the external estimate carries the whole score.
	if rec.PredictedScore != 7.5 {
		t.Errorf("score = %v, want external fallback 7.5", rec.PredictedScore)
	}
	if !rec.Explanation.InsufficientData || !rec.Explanation.FallbackUsed {
		t.Errorf("fallback conditions not traced: %+v", rec.Explanation)
	}
}

func TestPredictEconomicConcernRaisesFallback(t *testing.T) {
	h := newHarness(t, ":memory:")
	ctx := context.Background()

	headline := models.Headline{Title: "Quiet session ahead of holiday weekend", Source: "wire", ContentType: "market"}

	calm, err := h.engine.Predict(ctx, headline, models.EconomicSnapshot{VIX: 12})
	if err != nil {
		t.Fatalf("Predict calm: %v", err)
	}
	stressed, err := h.engine.Predict(ctx, headline, models.EconomicSnapshot{VIX: 35, GoldDelta: 6})
	if err != nil {
		t.Fatalf("Predict stressed: %v", err)
	}

	if stressed.PredictedScore <= calm.PredictedScore {
		t.Errorf("economic stress did not raise score: calm %v, stressed %v",
			calm.PredictedScore, stressed.PredictedScore)
	}
	if stressed.Explanation.EconomicConcern != 4 {
		t.Errorf("economic concern = %v, want 4", stressed.Explanation.EconomicConcern)
	}
}

func TestPredictUsesLearnedPattern(t *testing.T) {
	h := newHarness(t, ":memory:")
	ctx := context.Background()
	headline := "BREAKING: Pipeline rupture forces mass evacuation"

	// Enough high-rated article feedback to push pattern confidence past
	// the default 0.6 threshold (needs > 4.5 weighted samples).
	for i, id := range []string{"a1", "a2", "a3"} {
		fb := &models.ArticleFeedback{ArticleID: id, Headline: headline, Source: "reuters", ContentType: "news", Rating: 9}
		if _, err := h.ingester.IngestArticle(ctx, fb); err != nil {
			t.Fatalf("ingest #%d: %v", i, err)
		}
	}

	rec, err := h.engine.Predict(ctx, models.Headline{Title: headline, Source: "reuters", ContentType: "news"}, models.EconomicSnapshot{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if !rec.Explanation.PatternMatched {
		t.Fatalf("trained pattern did not fire: %+v", rec.Explanation)
	}
	if rec.Explanation.PatternScore != 9 {
		t.Errorf("pattern score = %v, want 9", rec.Explanation.PatternScore)
	}
	if rec.Explanation.InsufficientData {
		t.Error("insufficient data flagged despite trained pattern")
	}
	if rec.PredictedScore <= rec.Explanation.FallbackScore {
		t.Errorf("learned urgency %v did not lift score above fallback %v",
			rec.PredictedScore, rec.Explanation.FallbackScore)
	}
}

func TestPredictNeutralSourcePassesThrough(t *testing.T) {
	h := newHarness(t, ":memory:")
	ctx := context.Background()
	headline := "BREAKING: Dam failure floods river valley towns"

	for _, id := range []string{"a1", "a2", "a3"} {
		fb := &models.ArticleFeedback{ArticleID: id, Headline: headline, Source: "reuters", ContentType: "news", Rating: 9}
		if _, err := h.ingester.IngestArticle(ctx, fb); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	// The headline's source has no reliability history at all: neutral
	// trust must neither damp nor boost the learned score.
	rec, err := h.engine.Predict(ctx, models.Headline{Title: headline, Source: "never-seen", ContentType: "news"}, models.EconomicSnapshot{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if rec.Explanation.TrustFactor != 1 {
		t.Errorf("trust factor = %v, want 1 for unseen source", rec.Explanation.TrustFactor)
	}
}

func TestPredictKeywordTermsRespectMinimumLength(t *testing.T) {
	h := newHarness(t, ":memory:")
	ctx := context.Background()

	// A heavily-learned short term that only a too-permissive extraction
	// would feed into scoring.
	kw := &models.KeywordWeight{Term: "war", Weight: 9, SampleCount: 5, LastUpdated: time.Now().UTC()}
	if err := h.st.PutKeyword(ctx, h.st.Base(), kw); err != nil {
		t.Fatalf("PutKeyword: %v", err)
	}

	cfg := config.Default()
	eng := New(h.st, h.patterns, h.keywords, h.sources, cfg.Engine, 4)

	headline := models.Headline{
		Title:       "Fears of war weigh on markets",
		Source:      "reuters",
		ContentType: "news",
		PublishedAt: time.Now(),
	}
	rec, err := eng.Predict(ctx, headline, models.EconomicSnapshot{})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if rec.Explanation.KeywordMatched {
		t.Errorf("keyword signal fired on a term below the minimum length: %+v", rec.Explanation)
	}
}

func TestPersistedStateSurvivesReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "canarywatch.db")
	ctx := context.Background()
	headline := "BREAKING: Currency peg abandoned overnight"
	query := models.Headline{Title: headline, Source: "reuters", ContentType: "news"}

	h1 := newHarness(t, path)
	for _, id := range []string{"a1", "a2", "a3"} {
		fb := &models.ArticleFeedback{ArticleID: id, Headline: headline, Source: "reuters", ContentType: "news", Rating: 9}
		if _, err := h1.ingester.IngestArticle(ctx, fb); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}
	before, err := h1.engine.Predict(ctx, query, models.EconomicSnapshot{})
	if err != nil {
		t.Fatalf("Predict before reload: %v", err)
	}
	if err := h1.st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	h2 := newHarness(t, path)
	after, err := h2.engine.Predict(ctx, query, models.EconomicSnapshot{})
	if err != nil {
		t.Fatalf("Predict after reload: %v", err)
	}

	if math.Abs(after.PredictedScore-before.PredictedScore) > 1e-9 {
		t.Errorf("score changed across reload: %v vs %v", before.PredictedScore, after.PredictedScore)
	}
	if after.Explanation.PatternMatched != before.Explanation.PatternMatched {
		t.Error("pattern match state lost across reload")
	}

	// Duplicate detection must survive the reload too.
	dup := &models.ArticleFeedback{ArticleID: "a1", Headline: headline, Source: "reuters", ContentType: "news", Rating: 1}
	res, _ := h2.ingester.IngestArticle(ctx, dup)
	if res.Status != learn.StatusRejectedDuplicate {
		t.Errorf("duplicate across reload: status = %s", res.Status)
	}

	_ = os.Remove(path)
}

func TestReportIsIdempotent(t *testing.T) {
	h := newHarness(t, ":memory:")
	ctx := context.Background()

	for i, title := range []string{
		"BREAKING: Grid operator orders rolling blackouts",
		"Wheat futures spike on export ban rumors",
	} {
		fb := &models.ArticleFeedback{
			ArticleID: string(rune('a' + i)), Headline: title,
			Source: "reuters", ContentType: "news", Rating: 7,
		}
		if _, err := h.ingester.IngestArticle(ctx, fb); err != nil {
			t.Fatalf("ingest: %v", err)
		}
	}

	reporter := NewReporter(h.st, h.tracker)
	fixed := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	reporter.now = func() time.Time { return fixed }

	first, err := reporter.Build(ctx, 7*24*time.Hour, 10)
	if err != nil {
		t.Fatalf("first Build: %v", err)
	}
	second, err := reporter.Build(ctx, 7*24*time.Hour, 10)
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}

	if first.String() != second.String() {
		t.Errorf("report generation mutated state:\n--- first ---\n%s\n--- second ---\n%s", first, second)
	}
	if first.FeedbackCount != 2 {
		t.Errorf("feedback count = %d, want 2", first.FeedbackCount)
	}
}

func TestTrackerAccuracyReport(t *testing.T) {
	h := newHarness(t, ":memory:")
	ctx := context.Background()
	now := time.Now().UTC()

	rec := &models.PredictionRecord{
		ID: "p1", Headline: "h", Source: "reuters", ContentType: "news",
		PredictedScore: 8, PredictedAt: now,
	}
	if err := h.tracker.Record(ctx, rec); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := h.st.AttachOutcome(ctx, h.st.Base(), "p1", 6, 2); err != nil {
		t.Fatalf("AttachOutcome: %v", err)
	}

	rep, err := h.tracker.Accuracy(ctx, now.Add(-time.Hour))
	if err != nil {
		t.Fatalf("Accuracy: %v", err)
	}
	if rep.Total != 1 || rep.Scored != 1 {
		t.Errorf("counts = %d/%d, want 1/1", rep.Total, rep.Scored)
	}
	if rep.Overall.MeanError != 2 {
		t.Errorf("mae = %v, want 2", rep.Overall.MeanError)
	}
	if len(rep.ByBand) != 1 || rep.ByBand[0].Key != "high" {
		t.Errorf("bands = %+v, want one high band", rep.ByBand)
	}
}
