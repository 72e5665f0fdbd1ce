package models

import (
	"testing"
	"time"
)

func TestHeadlineValidate(t *testing.T) {
	tests := []struct {
		name     string
		headline Headline
		wantErr  bool
	}{
		{
			name: "valid headline",
			headline: Headline{
				Title:       "Markets slide amid rate fears",
				Source:      "reuters",
				ContentType: "news",
				PublishedAt: time.Now(),
			},
			wantErr: false,
		},
		{
			name:     "missing title",
			headline: Headline{Source: "reuters", ContentType: "news"},
			wantErr:  true,
		},
		{
			name:     "missing source",
			headline: Headline{Title: "x", ContentType: "news"},
			wantErr:  true,
		},
		{
			name:     "missing content type",
			headline: Headline{Title: "x", Source: "reuters"},
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.headline.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEconomicConcernScore(t *testing.T) {
	tests := []struct {
		name string
		snap EconomicSnapshot
		want float64
	}{
		{"all calm", EconomicSnapshot{VIX: 15}, 0},
		{"elevated vix", EconomicSnapshot{VIX: 25}, 1},
		{"high vix", EconomicSnapshot{VIX: 35}, 2},
		{"gold flight", EconomicSnapshot{GoldDelta: 6}, 2},
		{"moderate gold", EconomicSnapshot{GoldDelta: 3}, 1},
		{"dollar swing", EconomicSnapshot{USDIndexDelta: -4}, 1},
		{"btc swing", EconomicSnapshot{BTCTrend: 5}, 1},
		{
			"everything on fire",
			EconomicSnapshot{VIX: 40, GoldDelta: 8, USDIndexDelta: 5, BTCTrend: -6},
			6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.snap.ConcernScore(); got != tt.want {
				t.Errorf("ConcernScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLevelForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  UrgencyLevel
	}{
		{9.5, UrgencyHigh},
		{7.0, UrgencyHigh},
		{6.99, UrgencyMedium},
		{4.0, UrgencyMedium},
		{3.99, UrgencyLow},
		{0, UrgencyLow},
	}

	for _, tt := range tests {
		if got := LevelForScore(tt.score); got != tt.want {
			t.Errorf("LevelForScore(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestPatternDerivedUrgency(t *testing.T) {
	p := Pattern{Signature: "s", UrgencySum: 24, SampleCount: 3}
	if got := p.DerivedUrgency(); got != 8 {
		t.Errorf("DerivedUrgency() = %v, want 8", got)
	}

	empty := Pattern{Signature: "s"}
	if got := empty.DerivedUrgency(); got != 0 {
		t.Errorf("DerivedUrgency() on empty pattern = %v, want 0", got)
	}
}

func TestPatternValidateCatchesCorruption(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		pattern Pattern
		wantErr bool
	}{
		{"healthy", Pattern{Signature: "s", UrgencySum: 16, SampleCount: 2, Confidence: 0.4, LastUpdated: now}, false},
		{"sum without samples", Pattern{Signature: "s", UrgencySum: 5, Confidence: 0.1, LastUpdated: now}, true},
		{"negative count", Pattern{Signature: "s", UrgencySum: 1, SampleCount: -1, LastUpdated: now}, true},
		{"mean above scale", Pattern{Signature: "s", UrgencySum: 50, SampleCount: 2, Confidence: 0.4, LastUpdated: now}, true},
		{"confidence out of range", Pattern{Signature: "s", UrgencySum: 8, SampleCount: 2, Confidence: 1.5, LastUpdated: now}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pattern.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestArticleFeedbackValidate(t *testing.T) {
	base := ArticleFeedback{
		ArticleID:   "a1",
		Headline:    "BREAKING: markets halt trading",
		Source:      "reuters",
		ContentType: "news",
		Rating:      8,
	}

	if err := base.Validate(); err != nil {
		t.Fatalf("valid feedback rejected: %v", err)
	}

	over := base
	over.Rating = 11
	if err := over.Validate(); err == nil {
		t.Error("rating 11 accepted")
	}

	// An irrelevant flag makes the rating meaningless, so range checks
	// must not apply.
	irrelevant := base
	irrelevant.Rating = -1
	irrelevant.Irrelevant = true
	if err := irrelevant.Validate(); err != nil {
		t.Errorf("irrelevant feedback rejected over rating: %v", err)
	}

	missing := base
	missing.ArticleID = ""
	if err := missing.Validate(); err == nil {
		t.Error("missing article ID accepted")
	}
}

func TestClassifyFeedback(t *testing.T) {
	tests := []struct {
		name      string
		rating    int
		predicted float64
		want      FeedbackClass
	}{
		{"engine overshot", 2, 8, ClassOverrated},
		{"engine missed it", 9, 2, ClassUnderrated},
		{"close enough", 6, 7.5, ClassMatch},
		{"exact", 7, 7, ClassMatch},
		{"off but not extreme", 5, 9, ClassDivergent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyFeedback(tt.rating, tt.predicted); got != tt.want {
				t.Errorf("ClassifyFeedback(%d, %v) = %v, want %v", tt.rating, tt.predicted, got, tt.want)
			}
		})
	}
}

func TestFeedbackClassStoredValues(t *testing.T) {
	// These strings land in the feedback_records table; renaming a
	// constant must not silently change the stored vocabulary.
	want := map[FeedbackClass]string{
		ClassOverrated:  "ai_overrated",
		ClassUnderrated: "ai_underrated",
		ClassMatch:      "reasonable_match",
		ClassDivergent:  "significant_difference",
	}
	for class, s := range want {
		if string(class) != s {
			t.Errorf("stored class value = %q, want %q", string(class), s)
		}
	}
}

func TestSourceReliabilityValidate(t *testing.T) {
	good := SourceReliability{Source: "reuters", ContentType: "news", Reliability: 0.7, SampleCount: 4, LastUpdated: time.Now()}
	if err := good.Validate(); err != nil {
		t.Fatalf("valid reliability rejected: %v", err)
	}

	unseen := SourceReliability{Source: "new-feed", ContentType: "news", Reliability: 0.5}
	if err := unseen.Validate(); err != nil {
		t.Fatalf("neutral unseen source rejected: %v", err)
	}

	skewed := SourceReliability{Source: "new-feed", ContentType: "news", Reliability: 0.9}
	if err := skewed.Validate(); err == nil {
		t.Error("zero-sample source with non-neutral reliability accepted")
	}
}
