package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"canarywatch/internal/logger"
	"canarywatch/internal/models"
)

// GetKeyword returns the weight row for a single term, ErrNotFound when
// absent, or ErrCorruptRecord when the stored row fails validation.
func (s *Store) GetKeyword(ctx context.Context, q Querier, term string) (*models.KeywordWeight, error) {
	row := q.QueryRowContext(ctx, `
		SELECT term, weight, sample_count, last_updated
		FROM keyword_weights
		WHERE term = ?
	`, term)

	kw, err := scanKeyword(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := kw.Validate(); err != nil {
		logger.Warn("quarantined keyword %q: %v", term, err)
		return nil, fmt.Errorf("keyword %q: %w", term, ErrCorruptRecord)
	}
	return kw, nil
}

// GetKeywords fetches weight rows for a batch of terms in one query. Terms
// without a row are simply absent from the result; rows that fail validation
// are quarantined and left out the same way.
func (s *Store) GetKeywords(ctx context.Context, q Querier, terms []string) (map[string]*models.KeywordWeight, error) {
	out := make(map[string]*models.KeywordWeight, len(terms))
	if len(terms) == 0 {
		return out, nil
	}

	placeholders := strings.Repeat("?,", len(terms))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(terms))
	for i, t := range terms {
		args[i] = t
	}

	rows, err := q.QueryContext(ctx, fmt.Sprintf(`
		SELECT term, weight, sample_count, last_updated
		FROM keyword_weights
		WHERE term IN (%s)
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query keywords: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		kw, err := scanKeyword(rows.Scan)
		if err != nil {
			return nil, err
		}
		if err := kw.Validate(); err != nil {
			logger.Warn("quarantined keyword %q: %v", kw.Term, err)
			continue
		}
		out[kw.Term] = kw
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate keywords: %w", err)
	}
	return out, nil
}

// PutKeyword inserts or replaces a keyword weight row.
func (s *Store) PutKeyword(ctx context.Context, q Querier, kw *models.KeywordWeight) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO keyword_weights (term, weight, sample_count, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(term) DO UPDATE SET
			weight = excluded.weight,
			sample_count = excluded.sample_count,
			last_updated = excluded.last_updated
	`, kw.Term, kw.Weight, kw.SampleCount, encodeTime(kw.LastUpdated))
	if err != nil {
		return fmt.Errorf("failed to put keyword %q: %w", kw.Term, err)
	}
	return nil
}

// TopKeywords returns the n heaviest learned terms with at least minSamples
// observations, ordered by weight descending then term ascending so reports
// are deterministic.
func (s *Store) TopKeywords(ctx context.Context, q Querier, n int, minSamples float64) ([]models.KeywordWeight, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT term, weight, sample_count, last_updated
		FROM keyword_weights
		WHERE sample_count >= ?
		ORDER BY weight DESC, term ASC
		LIMIT ?
	`, minSamples, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query top keywords: %w", err)
	}
	defer rows.Close()

	var out []models.KeywordWeight
	for rows.Next() {
		kw, err := scanKeyword(rows.Scan)
		if err != nil {
			return nil, err
		}
		if err := kw.Validate(); err != nil {
			logger.Warn("quarantined keyword %q: %v", kw.Term, err)
			continue
		}
		out = append(out, *kw)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate top keywords: %w", err)
	}
	return out, nil
}

// KeywordCount returns the number of tracked terms.
func (s *Store) KeywordCount(ctx context.Context, q Querier) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM keyword_weights`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count keywords: %w", err)
	}
	return n, nil
}

func scanKeyword(scan func(dest ...any) error) (*models.KeywordWeight, error) {
	var kw models.KeywordWeight
	var updated string
	if err := scan(&kw.Term, &kw.Weight, &kw.SampleCount, &updated); err != nil {
		return nil, err
	}
	t, err := decodeTime(updated)
	if err != nil {
		return nil, err
	}
	kw.LastUpdated = t
	return &kw, nil
}
