package models

import (
	"errors"
	"fmt"
	"time"
)

// FeedbackKind tags a feedback record as digest-level or article-level.
type FeedbackKind string

const (
	FeedbackDigest  FeedbackKind = "digest"
	FeedbackArticle FeedbackKind = "article"
)

// DigestFeedback is a single rating for an entire batch of headlines.
// It trains the trackers at 1x weight.
type DigestFeedback struct {
	DigestID  string    `json:"digest_id"`
	Rating    int       `json:"rating"` // 0-10
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks that all digest feedback fields are valid.
func (f *DigestFeedback) Validate() error {
	if f.DigestID == "" {
		return errors.New("digest ID must not be empty")
	}
	if f.Rating < 0 || f.Rating > 10 {
		return fmt.Errorf("digest rating %d out of range [0,10]", f.Rating)
	}
	return nil
}

// ArticleFeedback is a per-headline rating. It trains the trackers at 2x
// weight. When Irrelevant is set the rating is ignored and the record acts as
// an explicit negative training signal: the article's matched patterns and
// keywords are nudged toward lower urgency.
type ArticleFeedback struct {
	ArticleID   string    `json:"article_id"`
	Headline    string    `json:"headline"`
	Source      string    `json:"source"`
	ContentType string    `json:"content_type"`
	Rating      int       `json:"rating"` // 0-10, meaningless when Irrelevant
	Irrelevant  bool      `json:"irrelevant"`
	Comment     string    `json:"comment,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Validate checks that all article feedback fields are valid.
func (f *ArticleFeedback) Validate() error {
	if f.ArticleID == "" {
		return errors.New("article ID must not be empty")
	}
	if f.Headline == "" {
		return errors.New("article headline must not be empty")
	}
	if f.Source == "" {
		return errors.New("article source must not be empty")
	}
	if f.ContentType == "" {
		return errors.New("article content type must not be empty")
	}
	if !f.Irrelevant && (f.Rating < 0 || f.Rating > 10) {
		return fmt.Errorf("article rating %d out of range [0,10]", f.Rating)
	}
	return nil
}

// FeedbackClass describes how a user rating relates to the engine's own
// prediction. Stored on the feedback record for later analysis.
type FeedbackClass string

const (
	ClassOverrated  FeedbackClass = "ai_overrated"           // engine saw urgency the user did not
	ClassUnderrated FeedbackClass = "ai_underrated"          // user saw urgency the engine missed
	ClassMatch      FeedbackClass = "reasonable_match"       // within 2 points
	ClassDivergent  FeedbackClass = "significant_difference" // off by more than 2, neither extreme
)

// ClassifyFeedback compares a user rating against the engine's prediction.
func ClassifyFeedback(userRating int, predicted float64) FeedbackClass {
	switch {
	case float64(userRating) <= 3 && predicted >= 7:
		return ClassOverrated
	case float64(userRating) >= 7 && predicted <= 3:
		return ClassUnderrated
	case predicted-float64(userRating) <= 2 && float64(userRating)-predicted <= 2:
		return ClassMatch
	default:
		return ClassDivergent
	}
}
