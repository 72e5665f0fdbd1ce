package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"canarywatch/internal/logger"
	"canarywatch/internal/models"
)

// GetSource returns the reliability row for a source and content type,
// ErrNotFound when the source has never been observed, or ErrCorruptRecord
// when the stored row fails validation.
func (s *Store) GetSource(ctx context.Context, q Querier, source, contentType string) (*models.SourceReliability, error) {
	row := q.QueryRowContext(ctx, `
		SELECT source, content_type, reliability, sample_count, last_updated
		FROM source_reliability
		WHERE source = ? AND content_type = ?
	`, source, contentType)

	sr, err := scanSource(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := sr.Validate(); err != nil {
		logger.Warn("quarantined source %s/%s: %v", source, contentType, err)
		return nil, fmt.Errorf("source %s/%s: %w", source, contentType, ErrCorruptRecord)
	}
	return sr, nil
}

// PutSource inserts or replaces a source reliability row.
func (s *Store) PutSource(ctx context.Context, q Querier, sr *models.SourceReliability) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO source_reliability (source, content_type, reliability, sample_count, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(source, content_type) DO UPDATE SET
			reliability = excluded.reliability,
			sample_count = excluded.sample_count,
			last_updated = excluded.last_updated
	`, sr.Source, sr.ContentType, sr.Reliability, sr.SampleCount, encodeTime(sr.LastUpdated))
	if err != nil {
		return fmt.Errorf("failed to put source %s/%s: %w", sr.Source, sr.ContentType, err)
	}
	return nil
}

// AllSources returns every tracked source ordered by reliability descending
// then source name, for reporting. Rows that fail validation are quarantined
// and left out.
func (s *Store) AllSources(ctx context.Context, q Querier) ([]models.SourceReliability, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT source, content_type, reliability, sample_count, last_updated
		FROM source_reliability
		ORDER BY reliability DESC, source ASC, content_type ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var out []models.SourceReliability
	for rows.Next() {
		sr, err := scanSource(rows.Scan)
		if err != nil {
			return nil, err
		}
		if err := sr.Validate(); err != nil {
			logger.Warn("quarantined source %s/%s: %v", sr.Source, sr.ContentType, err)
			continue
		}
		out = append(out, *sr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}
	return out, nil
}

func scanSource(scan func(dest ...any) error) (*models.SourceReliability, error) {
	var sr models.SourceReliability
	var updated string
	if err := scan(&sr.Source, &sr.ContentType, &sr.Reliability, &sr.SampleCount, &updated); err != nil {
		return nil, err
	}
	t, err := decodeTime(updated)
	if err != nil {
		return nil, err
	}
	sr.LastUpdated = t
	return &sr, nil
}
