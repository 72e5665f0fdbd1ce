package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"canarywatch/internal/logger"
	"canarywatch/internal/models"
)

// GetPattern returns the pattern with the given signature, ErrNotFound when
// absent, or ErrCorruptRecord when the stored row fails validation.
func (s *Store) GetPattern(ctx context.Context, q Querier, signature string) (*models.Pattern, error) {
	row := q.QueryRowContext(ctx, `
		SELECT signature, urgency_sum, sample_count, confidence, last_updated
		FROM patterns
		WHERE signature = ?
	`, signature)

	p, err := scanPattern(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := p.Validate(); err != nil {
		logger.Warn("quarantined pattern %s: %v", signature, err)
		return nil, fmt.Errorf("pattern %s: %w", signature, ErrCorruptRecord)
	}
	return p, nil
}

// PutPattern inserts or replaces the pattern row.
func (s *Store) PutPattern(ctx context.Context, q Querier, p *models.Pattern) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO patterns (signature, urgency_sum, sample_count, confidence, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(signature) DO UPDATE SET
			urgency_sum = excluded.urgency_sum,
			sample_count = excluded.sample_count,
			confidence = excluded.confidence,
			last_updated = excluded.last_updated
	`, p.Signature, p.UrgencySum, p.SampleCount, p.Confidence, encodeTime(p.LastUpdated))
	if err != nil {
		return fmt.Errorf("failed to put pattern: %w", err)
	}
	return nil
}

// DecayStalePatterns multiplies the confidence of every pattern not updated
// since cutoff by factor, never dropping below floor, and returns how many
// rows were touched. Patterns are never deleted. A single UPDATE keeps the
// pass atomic.
func (s *Store) DecayStalePatterns(ctx context.Context, q Querier, cutoff time.Time, factor, floor float64) (int64, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE patterns
		SET confidence = MAX(?, confidence * ?)
		WHERE last_updated < ? AND confidence > ?
	`, floor, factor, encodeTime(cutoff), floor)
	if err != nil {
		return 0, fmt.Errorf("failed to decay patterns: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count decayed patterns: %w", err)
	}
	return n, nil
}

// PatternCounts returns the number of healthy and quarantined pattern rows.
// Corrupt rows are counted, never deleted.
func (s *Store) PatternCounts(ctx context.Context, q Querier) (healthy, quarantined int, err error) {
	rows, err := q.QueryContext(ctx, `
		SELECT signature, urgency_sum, sample_count, confidence, last_updated
		FROM patterns
	`)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list patterns: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanPattern(rows.Scan)
		if err != nil {
			quarantined++
			continue
		}
		if p.Validate() != nil {
			quarantined++
			continue
		}
		healthy++
	}
	if err := rows.Err(); err != nil {
		return 0, 0, fmt.Errorf("failed to iterate patterns: %w", err)
	}
	return healthy, quarantined, nil
}

func scanPattern(scan func(dest ...any) error) (*models.Pattern, error) {
	var p models.Pattern
	var updated string
	if err := scan(&p.Signature, &p.UrgencySum, &p.SampleCount, &p.Confidence, &updated); err != nil {
		return nil, err
	}
	t, err := decodeTime(updated)
	if err != nil {
		return nil, err
	}
	p.LastUpdated = t
	return &p, nil
}
