package learn

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"canarywatch/internal/config"
	"canarywatch/internal/logger"
	"canarywatch/internal/models"
	"canarywatch/internal/store"
)

// Status reports what happened to a submitted feedback event.
type Status string

const (
	StatusApplied           Status = "applied"
	StatusRejectedDuplicate Status = "rejected_duplicate"
	StatusRejectedInvalid   Status = "rejected_invalid"
)

// ValidationError wraps a model validation failure on submitted feedback.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string { return "invalid feedback: " + e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

// Result describes the outcome of one feedback submission.
type Result struct {
	Status             Status
	Reason             string               // set on rejection
	Class              models.FeedbackClass // set when a prediction was matched
	PredictionID       string               // matched prediction, if any
	PatternsTrained    int
	KeywordsTrained    int
	PredictionsSettled int
}

// Ingester applies digest and article feedback to all trackers in one
// transaction. Either every tracker sees an event or none does; a rejected
// or failed submission leaves learned state byte-identical.
type Ingester struct {
	st          *store.Store
	patterns    *PatternStore
	keywords    *KeywordTracker
	sources     *SourceTracker
	cfg         config.LearningConfig
	matchWindow time.Duration
	now         func() time.Time
	newID       func() string
}

// NewIngester wires the three trackers behind one feedback entry point.
// matchWindow bounds how far back an article feedback event may claim an
// open prediction as its outcome.
func NewIngester(st *store.Store, patterns *PatternStore, keywords *KeywordTracker, sources *SourceTracker, cfg config.LearningConfig, matchWindow time.Duration) *Ingester {
	return &Ingester{
		st:          st,
		patterns:    patterns,
		keywords:    keywords,
		sources:     sources,
		cfg:         cfg,
		matchWindow: matchWindow,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// IngestDigest applies one digest-level rating across every headline the
// digest contained, at 1x weight: patterns and keywords train on the rating,
// and any open prediction for a digest headline is settled against it, which
// feeds the source's reliability. Resubmitting the same digest ID is rejected
// without touching any tracker.
func (in *Ingester) IngestDigest(ctx context.Context, fb *models.DigestFeedback, headlines []models.Headline) (*Result, error) {
	if err := fb.Validate(); err != nil {
		return &Result{Status: StatusRejectedInvalid, Reason: err.Error()}, &ValidationError{Err: err}
	}
	if len(headlines) == 0 {
		err := errors.New("digest feedback requires at least one headline")
		return &Result{Status: StatusRejectedInvalid, Reason: err.Error()}, &ValidationError{Err: err}
	}

	res := &Result{Status: StatusApplied}
	urgency := float64(fb.Rating)

	err := in.st.WithTx(ctx, func(q store.Querier) error {
		dup, err := in.st.HasDigestFeedback(ctx, q, fb.DigestID)
		if err != nil {
			return err
		}
		if dup {
			return fmt.Errorf("digest %s: %w", fb.DigestID, store.ErrDuplicateFeedback)
		}

		cutoff := in.now().UTC().Add(-in.matchWindow)
		for _, h := range headlines {
			if err := h.Validate(); err != nil {
				return &ValidationError{Err: err}
			}
			if err := in.patterns.Observe(ctx, q, Signature(h.Title), urgency, in.cfg.DigestWeight); err != nil {
				return err
			}
			res.PatternsTrained++

			terms := ExtractKeywords(h.Title, in.cfg.MinKeywordLength)
			if err := in.keywords.Update(ctx, q, terms, urgency, in.cfg.DigestWeight); err != nil {
				return err
			}
			res.KeywordsTrained += len(terms)

			pred, err := in.settleOpenPrediction(ctx, q, h.Title, h.Source, h.ContentType, urgency, cutoff)
			if err != nil {
				return err
			}
			if pred != nil {
				res.PredictionsSettled++
			}
		}

		return in.st.InsertFeedback(ctx, q, &store.FeedbackRecord{
			ID:        in.newID(),
			Kind:      models.FeedbackDigest,
			DigestID:  fb.DigestID,
			Rating:    fb.Rating,
			Comment:   fb.Comment,
			CreatedAt: in.createdAt(fb.CreatedAt),
		})
	})
	if err != nil {
		return in.rejected(err, "digest", fb.DigestID)
	}

	logger.Info("digest feedback %s applied: rating=%d headlines=%d", fb.DigestID, fb.Rating, len(headlines))
	return res, nil
}

// IngestArticle applies one per-article rating at 2x weight. An article
// flagged irrelevant trains as observed urgency zero regardless of rating,
// pushing its patterns and keywords down. When an open prediction exists for
// the same headline and source within the match window, the realized outcome
// is attached to it and the source's reliability is updated.
func (in *Ingester) IngestArticle(ctx context.Context, fb *models.ArticleFeedback) (*Result, error) {
	if err := fb.Validate(); err != nil {
		return &Result{Status: StatusRejectedInvalid, Reason: err.Error()}, &ValidationError{Err: err}
	}

	res := &Result{Status: StatusApplied}
	observed := float64(fb.Rating)
	if fb.Irrelevant {
		observed = 0
	}

	err := in.st.WithTx(ctx, func(q store.Querier) error {
		dup, err := in.st.HasArticleFeedback(ctx, q, fb.ArticleID)
		if err != nil {
			return err
		}
		if dup {
			return fmt.Errorf("article %s: %w", fb.ArticleID, store.ErrDuplicateFeedback)
		}

		if err := in.patterns.Observe(ctx, q, Signature(fb.Headline), observed, in.cfg.ArticleWeight); err != nil {
			return err
		}
		res.PatternsTrained = 1

		terms := ExtractKeywords(fb.Headline, in.cfg.MinKeywordLength)
		if err := in.keywords.Update(ctx, q, terms, observed, in.cfg.ArticleWeight); err != nil {
			return err
		}
		res.KeywordsTrained = len(terms)

		cutoff := in.now().UTC().Add(-in.matchWindow)
		pred, err := in.settleOpenPrediction(ctx, q, fb.Headline, fb.Source, fb.ContentType, observed, cutoff)
		if err != nil {
			return err
		}
		if pred != nil {
			res.PredictionsSettled = 1
			res.PredictionID = pred.ID
			res.Class = models.ClassifyFeedback(int(observed), pred.PredictedScore)
		}

		return in.st.InsertFeedback(ctx, q, &store.FeedbackRecord{
			ID:          in.newID(),
			Kind:        models.FeedbackArticle,
			ArticleID:   fb.ArticleID,
			Headline:    fb.Headline,
			Source:      fb.Source,
			ContentType: fb.ContentType,
			Rating:      fb.Rating,
			Irrelevant:  fb.Irrelevant,
			Class:       res.Class,
			Comment:     fb.Comment,
			CreatedAt:   in.createdAt(fb.CreatedAt),
		})
	})
	if err != nil {
		return in.rejected(err, "article", fb.ArticleID)
	}

	logger.Info("article feedback %s applied: rating=%d irrelevant=%t class=%s", fb.ArticleID, fb.Rating, fb.Irrelevant, res.Class)
	return res, nil
}

// settleOpenPrediction looks for an unsettled prediction matching the
// headline and source within the match window, attaches the realized score
// to it, and feeds the outcome into the source reliability tracker. It
// returns nil when no open prediction matched.
func (in *Ingester) settleOpenPrediction(ctx context.Context, q store.Querier, headline, source, contentType string, realized float64, cutoff time.Time) (*models.PredictionRecord, error) {
	pred, err := in.st.FindOpenPrediction(ctx, q, headline, source, cutoff)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	absErr := math.Abs(pred.PredictedScore - realized)
	if err := in.st.AttachOutcome(ctx, q, pred.ID, realized, absErr); err != nil {
		return nil, err
	}
	if err := in.sources.RecordOutcome(ctx, q, source, contentType, pred.PredictedScore, realized); err != nil {
		return nil, err
	}
	return pred, nil
}

// rejected maps transaction errors to rejection results. Duplicates and
// validation failures are normal outcomes; everything else is a storage
// error passed through untouched.
func (in *Ingester) rejected(err error, kind, id string) (*Result, error) {
	var verr *ValidationError
	switch {
	case errors.Is(err, store.ErrDuplicateFeedback):
		logger.Warn("%s feedback %s rejected: duplicate", kind, id)
		return &Result{Status: StatusRejectedDuplicate, Reason: "feedback already recorded"}, err
	case errors.As(err, &verr):
		logger.Warn("%s feedback %s rejected: %v", kind, id, verr)
		return &Result{Status: StatusRejectedInvalid, Reason: verr.Err.Error()}, err
	default:
		return nil, err
	}
}

func (in *Ingester) createdAt(t time.Time) time.Time {
	if t.IsZero() {
		return in.now().UTC()
	}
	return t.UTC()
}
