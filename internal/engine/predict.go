// Package engine combines the learned trackers into urgency predictions,
// tracks prediction accuracy, and renders the intelligence report.
package engine

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"canarywatch/internal/config"
	"canarywatch/internal/learn"
	"canarywatch/internal/logger"
	"canarywatch/internal/models"
	"canarywatch/internal/store"
)

// Engine scores headlines on the 0-10 urgency scale. Predict is read-only
// over learned state; recording the prediction for later accuracy tracking
// is the Tracker's job.
type Engine struct {
	st         *store.Store
	patterns   *learn.PatternStore
	keywords   *learn.KeywordTracker
	sources    *learn.SourceTracker
	cfg        config.EngineConfig
	minTermLen int
	now        func() time.Time
	newID      func() string
}

// New creates a prediction engine over the given trackers. minKeywordLength
// must match the length the feedback path extracts terms with, or scoring
// would look up terms that were never trained.
func New(st *store.Store, patterns *learn.PatternStore, keywords *learn.KeywordTracker, sources *learn.SourceTracker, cfg config.EngineConfig, minKeywordLength int) *Engine {
	return &Engine{
		st:         st,
		patterns:   patterns,
		keywords:   keywords,
		sources:    sources,
		cfg:        cfg,
		minTermLen: minKeywordLength,
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// Predict scores a headline. The score blends three signals:
//
//   - the pattern tracker's urgency for the headline's structural signature,
//     counted only when its confidence clears the configured threshold
//   - the keyword tracker's sample-weighted term urgency, counted only when
//     enough observations back it
//   - a static heuristic fallback from built-in term lists plus the economic
//     concern score, which always produces a value
//
// Signals that do not fire surrender their weight to the fallback rather
// than dragging the blend toward zero. The learned portion is damped toward
// the scale midpoint when the source's reliability is poor. Every decision
// is recorded in the returned explanation so a score is auditable after the
// fact.
func (e *Engine) Predict(ctx context.Context, h models.Headline, econ models.EconomicSnapshot) (*models.PredictionRecord, error) {
	return e.predict(ctx, h, econ, nil)
}

// PredictWithFallback is Predict with an externally supplied fallback score
// (0-10) replacing the built-in heuristic. A digest generator with its own
// urgency estimate passes it here so low-confidence predictions degrade to
// the collaborator's number instead of the static term lists.
func (e *Engine) PredictWithFallback(ctx context.Context, h models.Headline, econ models.EconomicSnapshot, fallback float64) (*models.PredictionRecord, error) {
	return e.predict(ctx, h, econ, &fallback)
}

func (e *Engine) predict(ctx context.Context, h models.Headline, econ models.EconomicSnapshot, external *float64) (*models.PredictionRecord, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	q := e.st.Base()
	var expl models.Explanation

	pat, err := e.patterns.Match(ctx, q, h.Title)
	if err != nil {
		return nil, err
	}
	expl.PatternSignature = pat.Signature
	expl.QuarantinedPattern = pat.Quarantined
	if pat.Matched && pat.Confidence >= e.cfg.ConfidenceThreshold {
		expl.PatternMatched = true
		expl.PatternScore = pat.Urgency
		expl.PatternConfidence = pat.Confidence
	}

	terms := learn.ExtractKeywords(h.Title, e.minTermLen)
	kw, err := e.keywords.Score(ctx, q, terms, e.cfg.MinKeywordSamples)
	if err != nil {
		return nil, err
	}
	if kw.Matched {
		expl.KeywordMatched = true
		expl.KeywordScore = kw.Score
	}

	reliability, err := e.sources.Reliability(ctx, q, h.Source, h.ContentType)
	if err != nil {
		return nil, err
	}

	expl.EconomicConcern = econ.ConcernScore()
	if external != nil {
		expl.FallbackScore = clampScore(*external)
	} else {
		expl.FallbackScore = heuristicScore(h.Title, econ)
	}

	patternWeight := 0.0
	if expl.PatternMatched {
		patternWeight = e.cfg.PatternWeight
	}
	keywordWeight := 0.0
	if expl.KeywordMatched {
		keywordWeight = e.cfg.KeywordWeight
	}
	learnedWeight := patternWeight + keywordWeight
	expl.InternalWeight = learnedWeight
	expl.InsufficientData = learnedWeight == 0
	expl.FallbackUsed = learnedWeight < 1

	score := expl.FallbackScore
	if learnedWeight > 0 {
		internal := (patternWeight*expl.PatternScore + keywordWeight*expl.KeywordScore) / learnedWeight

		// Reliability 0.5 is neutral trust: the internal score passes
		// through untouched. Below neutral the score is pulled toward the
		// midpoint; above neutral it is never amplified past itself.
		trust := math.Min(1, 2*reliability)
		expl.TrustFactor = trust
		damped := 5 + trust*(internal-5)

		score = learnedWeight*damped + (1-learnedWeight)*expl.FallbackScore
	}

	score = clampScore(score)

	logger.Debug("predicted %.2f for %q (pattern=%t keyword=%t fallback=%.2f)",
		score, h.Title, expl.PatternMatched, expl.KeywordMatched, expl.FallbackScore)

	return &models.PredictionRecord{
		ID:             e.newID(),
		Headline:       h.Title,
		Source:         h.Source,
		ContentType:    h.ContentType,
		Economic:       econ,
		PredictedScore: score,
		PredictedAt:    e.now().UTC(),
		Explanation:    expl,
	}, nil
}

// highUrgencyTerms and mediumUrgencyTerms drive the static fallback. They
// are deliberately not learned: the fallback must keep producing sane scores
// when the trackers are empty or quarantined.
var highUrgencyTerms = []string{
	"martial law", "nuclear", "invasion", "coup", "collapse",
	"state of emergency", "war declared", "bank run", "default",
}

var mediumUrgencyTerms = []string{
	"crisis", "emergency", "crash", "unrest", "protest",
	"sanctions", "inflation", "recession", "shortage", "outbreak",
	"layoffs", "breaking",
}

// heuristicScore is the always-available fallback: a base of 2, plus 3 for
// the first high-urgency term and 1 for each further term hit, plus the
// economic concern score, clamped to the 0-10 scale.
func heuristicScore(title string, econ models.EconomicSnapshot) float64 {
	lower := strings.ToLower(title)

	score := 2.0
	hits := 0
	for _, term := range highUrgencyTerms {
		if strings.Contains(lower, term) {
			if hits == 0 {
				score += 3
			} else {
				score++
			}
			hits++
		}
	}
	for _, term := range mediumUrgencyTerms {
		if strings.Contains(lower, term) {
			if hits == 0 {
				score += 1.5
			} else {
				score++
			}
			hits++
		}
	}

	return clampScore(score + econ.ConcernScore())
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 10 {
		return 10
	}
	return s
}
