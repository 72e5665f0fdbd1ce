package store

import (
	"context"
	"fmt"
	"time"

	"canarywatch/internal/models"
)

// FeedbackRecord is a stored, applied feedback event. Digest and article
// feedback share one table keyed by a generated id; the kind column tells
// them apart.
type FeedbackRecord struct {
	ID          string
	Kind        models.FeedbackKind
	DigestID    string
	ArticleID   string
	Headline    string
	Source      string
	ContentType string
	Rating      int
	Irrelevant  bool
	Class       models.FeedbackClass
	Comment     string
	CreatedAt   time.Time
}

// HasDigestFeedback reports whether feedback for the digest has already been
// recorded. Callers run this inside the same transaction as the insert so
// the check-and-apply is atomic.
func (s *Store) HasDigestFeedback(ctx context.Context, q Querier, digestID string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM feedback_records WHERE digest_id = ?)
	`, digestID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check digest feedback: %w", err)
	}
	return exists, nil
}

// HasArticleFeedback reports whether feedback for the article has already
// been recorded.
func (s *Store) HasArticleFeedback(ctx context.Context, q Querier, articleID string) (bool, error) {
	var exists bool
	err := q.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM feedback_records WHERE article_id = ?)
	`, articleID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check article feedback: %w", err)
	}
	return exists, nil
}

// InsertFeedback stores an applied feedback record.
func (s *Store) InsertFeedback(ctx context.Context, q Querier, r *FeedbackRecord) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO feedback_records
			(id, kind, digest_id, article_id, headline, source, content_type,
			 rating, irrelevant, class, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, string(r.Kind), nullIfEmpty(r.DigestID), nullIfEmpty(r.ArticleID),
		r.Headline, r.Source, r.ContentType,
		r.Rating, boolToInt(r.Irrelevant), string(r.Class), r.Comment, encodeTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	return nil
}

// SourceFeedbackStat aggregates applied article feedback for one source.
type SourceFeedbackStat struct {
	Source          string
	ContentType     string
	Count           int
	AvgRating       float64
	IrrelevantCount int
}

// FeedbackSummary aggregates article feedback recorded since the cutoff,
// grouped by source and content type. Irrelevant flags are counted but
// excluded from the rating average.
func (s *Store) FeedbackSummary(ctx context.Context, q Querier, since time.Time) ([]SourceFeedbackStat, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT source, content_type, COUNT(*),
			COALESCE(AVG(CASE WHEN irrelevant = 0 THEN rating END), 0),
			SUM(irrelevant)
		FROM feedback_records
		WHERE kind = ? AND created_at >= ?
		GROUP BY source, content_type
		ORDER BY COUNT(*) DESC, source ASC
	`, string(models.FeedbackArticle), encodeTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to summarize feedback: %w", err)
	}
	defer rows.Close()

	var out []SourceFeedbackStat
	for rows.Next() {
		var st SourceFeedbackStat
		if err := rows.Scan(&st.Source, &st.ContentType, &st.Count, &st.AvgRating, &st.IrrelevantCount); err != nil {
			return nil, fmt.Errorf("failed to scan feedback stat: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback stats: %w", err)
	}
	return out, nil
}

// FeedbackCount returns the total number of applied feedback records.
func (s *Store) FeedbackCount(ctx context.Context, q Querier) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback_records`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count feedback: %w", err)
	}
	return n, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
