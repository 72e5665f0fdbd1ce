package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"canarywatch/internal/logger"
)

// ErrJobRunning is returned when a job lock is already held by a live owner.
var ErrJobRunning = errors.New("job already running")

// Job lock names used by the command layer.
const (
	JobDailyCollection = "daily_collection"
	JobWeeklyDigest    = "weekly_digest"
	JobFeedbackSession = "feedback_session"
)

// AcquireJobLock takes the named advisory lock for owner, failing fast with
// ErrJobRunning when another owner holds it within the lease window. A lock
// older than the lease is treated as abandoned and stolen. The whole
// check-and-take runs in one immediate transaction so two contenders cannot
// both win.
func (s *Store) AcquireJobLock(ctx context.Context, job, owner string, lease time.Duration) error {
	return s.WithTx(ctx, func(q Querier) error {
		var curOwner, acquiredAt string
		err := q.QueryRowContext(ctx, `
			SELECT owner, acquired_at FROM job_locks WHERE job = ?
		`, job).Scan(&curOwner, &acquiredAt)
		switch {
		case err == nil:
			at, derr := decodeTime(acquiredAt)
			if derr != nil {
				return derr
			}
			if time.Since(at) < lease {
				return fmt.Errorf("job %s held by %s: %w", job, curOwner, ErrJobRunning)
			}
			logger.Warn("stealing stale lock for job %s from %s (held since %s)", job, curOwner, acquiredAt)
			_, err = q.ExecContext(ctx, `
				UPDATE job_locks SET owner = ?, acquired_at = ? WHERE job = ?
			`, owner, encodeTime(time.Now().UTC()), job)
			if err != nil {
				return fmt.Errorf("failed to steal lock %s: %w", job, err)
			}
			return nil
		case errors.Is(err, sql.ErrNoRows):
			_, err = q.ExecContext(ctx, `
				INSERT INTO job_locks (job, owner, acquired_at) VALUES (?, ?, ?)
			`, job, owner, encodeTime(time.Now().UTC()))
			if err != nil {
				return fmt.Errorf("failed to take lock %s: %w", job, err)
			}
			return nil
		default:
			return fmt.Errorf("failed to inspect lock %s: %w", job, err)
		}
	})
}

// ReleaseJobLock drops the named lock if owner still holds it. Releasing a
// lock someone else stole is a no-op so a slow job cannot clobber its
// successor.
func (s *Store) ReleaseJobLock(ctx context.Context, job, owner string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM job_locks WHERE job = ? AND owner = ?
	`, job, owner)
	if err != nil {
		return fmt.Errorf("failed to release lock %s: %w", job, err)
	}
	return nil
}
