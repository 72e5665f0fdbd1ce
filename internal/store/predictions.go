package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"canarywatch/internal/models"
)

// InsertPrediction stores a new prediction record. The economic snapshot and
// the explanation trace are serialized as JSON columns.
func (s *Store) InsertPrediction(ctx context.Context, q Querier, r *models.PredictionRecord) error {
	econ, err := json.Marshal(r.Economic)
	if err != nil {
		return fmt.Errorf("failed to encode economic snapshot: %w", err)
	}
	expl, err := json.Marshal(r.Explanation)
	if err != nil {
		return fmt.Errorf("failed to encode explanation: %w", err)
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO prediction_tracking
			(id, headline, source, content_type, economic, predicted_score,
			 predicted_at, explanation, realized_score, abs_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Headline, r.Source, r.ContentType, string(econ),
		r.PredictedScore, encodeTime(r.PredictedAt), string(expl),
		r.RealizedScore, r.AbsError)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}
	return nil
}

// AttachOutcome records the realized urgency and absolute error against an
// existing prediction. It returns ErrNotFound when the id is unknown.
func (s *Store) AttachOutcome(ctx context.Context, q Querier, id string, realized, absError float64) error {
	res, err := q.ExecContext(ctx, `
		UPDATE prediction_tracking
		SET realized_score = ?, abs_error = ?
		WHERE id = ?
	`, realized, absError, id)
	if err != nil {
		return fmt.Errorf("failed to attach outcome: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to confirm outcome update: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FindOpenPrediction locates the most recent prediction for the given
// headline and source that has no realized outcome yet and was made after
// the cutoff. Returns ErrNotFound when nothing matches.
func (s *Store) FindOpenPrediction(ctx context.Context, q Querier, headline, source string, cutoff time.Time) (*models.PredictionRecord, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, headline, source, content_type, economic, predicted_score,
			predicted_at, explanation, realized_score, abs_error
		FROM prediction_tracking
		WHERE headline = ? AND source = ? AND realized_score IS NULL
			AND predicted_at >= ?
		ORDER BY predicted_at DESC
		LIMIT 1
	`, headline, source, encodeTime(cutoff))

	r, err := scanPrediction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// AccuracyStat summarizes scored predictions for one grouping key.
type AccuracyStat struct {
	Key       string
	Count     int
	MeanError float64
}

// OverallAccuracy returns the count and mean absolute error of all scored
// predictions made since the cutoff.
func (s *Store) OverallAccuracy(ctx context.Context, q Querier, since time.Time) (AccuracyStat, error) {
	var st AccuracyStat
	st.Key = "overall"
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(AVG(abs_error), 0)
		FROM prediction_tracking
		WHERE realized_score IS NOT NULL AND predicted_at >= ?
	`, encodeTime(since)).Scan(&st.Count, &st.MeanError)
	if err != nil {
		return st, fmt.Errorf("failed to compute overall accuracy: %w", err)
	}
	return st, nil
}

// AccuracyByBand groups scored predictions by the urgency band of the
// predicted score (cuts at 7 and 4) and reports per-band mean absolute
// error. Ordering is fixed high, medium, low.
func (s *Store) AccuracyByBand(ctx context.Context, q Querier, since time.Time) ([]AccuracyStat, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT
			CASE WHEN predicted_score >= 7 THEN 'high'
			     WHEN predicted_score >= 4 THEN 'medium'
			     ELSE 'low' END AS band,
			COUNT(*), COALESCE(AVG(abs_error), 0)
		FROM prediction_tracking
		WHERE realized_score IS NOT NULL AND predicted_at >= ?
		GROUP BY band
		ORDER BY CASE band WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END
	`, encodeTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to compute accuracy by band: %w", err)
	}
	defer rows.Close()
	return collectAccuracy(rows)
}

// AccuracyBySource groups scored predictions by source, worst mean error
// first so problem feeds surface at the top of reports.
func (s *Store) AccuracyBySource(ctx context.Context, q Querier, since time.Time) ([]AccuracyStat, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT source, COUNT(*), COALESCE(AVG(abs_error), 0)
		FROM prediction_tracking
		WHERE realized_score IS NOT NULL AND predicted_at >= ?
		GROUP BY source
		ORDER BY AVG(abs_error) DESC, source ASC
	`, encodeTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to compute accuracy by source: %w", err)
	}
	defer rows.Close()
	return collectAccuracy(rows)
}

// ScorePoint is one predicted score in a source's time series.
type ScorePoint struct {
	At    time.Time
	Score float64
}

// PredictionSeries returns every prediction made since the cutoff, grouped
// by source, each series ordered oldest first.
func (s *Store) PredictionSeries(ctx context.Context, q Querier, since time.Time) (map[string][]ScorePoint, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT source, predicted_at, predicted_score
		FROM prediction_tracking
		WHERE predicted_at >= ?
		ORDER BY source ASC, predicted_at ASC
	`, encodeTime(since))
	if err != nil {
		return nil, fmt.Errorf("failed to query prediction series: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]ScorePoint)
	for rows.Next() {
		var source, at string
		var pt ScorePoint
		if err := rows.Scan(&source, &at, &pt.Score); err != nil {
			return nil, fmt.Errorf("failed to scan score point: %w", err)
		}
		t, err := decodeTime(at)
		if err != nil {
			return nil, err
		}
		pt.At = t
		out[source] = append(out[source], pt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate prediction series: %w", err)
	}
	return out, nil
}

// PredictionCounts returns how many predictions exist in total and how many
// have a realized outcome.
func (s *Store) PredictionCounts(ctx context.Context, q Querier) (total, scored int, err error) {
	err = q.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(realized_score) FROM prediction_tracking
	`).Scan(&total, &scored)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count predictions: %w", err)
	}
	return total, scored, nil
}

func collectAccuracy(rows *sql.Rows) ([]AccuracyStat, error) {
	var out []AccuracyStat
	for rows.Next() {
		var st AccuracyStat
		if err := rows.Scan(&st.Key, &st.Count, &st.MeanError); err != nil {
			return nil, fmt.Errorf("failed to scan accuracy stat: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accuracy stats: %w", err)
	}
	return out, nil
}

func scanPrediction(scan func(dest ...any) error) (*models.PredictionRecord, error) {
	var r models.PredictionRecord
	var econ, expl, predictedAt string
	var realized, absErr sql.NullFloat64
	if err := scan(&r.ID, &r.Headline, &r.Source, &r.ContentType, &econ,
		&r.PredictedScore, &predictedAt, &expl, &realized, &absErr); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(econ), &r.Economic); err != nil {
		return nil, fmt.Errorf("failed to decode economic snapshot: %w", err)
	}
	if err := json.Unmarshal([]byte(expl), &r.Explanation); err != nil {
		return nil, fmt.Errorf("failed to decode explanation: %w", err)
	}
	t, err := decodeTime(predictedAt)
	if err != nil {
		return nil, err
	}
	r.PredictedAt = t
	if realized.Valid {
		v := realized.Float64
		r.RealizedScore = &v
	}
	if absErr.Valid {
		v := absErr.Float64
		r.AbsError = &v
	}
	return &r, nil
}
