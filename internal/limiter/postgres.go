package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PG is a PostgreSQL-backed limiter. Registration limits are read from
// registration_attempts, submission limits from published submissions.
type PG struct {
	pool      pgxQuerier
	regWindow time.Duration
	subWindow time.Duration
	now       func() time.Time
}

type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed limiter.
func NewPG(pool *pgxpool.Pool, regWindow, subWindow time.Duration) *PG {
	return NewPGWithQuerier(pool, regWindow, subWindow)
}

// NewPGWithQuerier constructs a PostgreSQL-backed limiter over any querier.
func NewPGWithQuerier(q pgxQuerier, regWindow, subWindow time.Duration) *PG {
	return &PG{pool: q, regWindow: regWindow, subWindow: subWindow, now: time.Now}
}

// AllowRegistration allows one registration per origin per window.
func (l *PG) AllowRegistration(ctx context.Context, origin string) (bool, time.Duration, error) {
	if origin == "" || origin == UnknownOrigin {
		return true, 0, nil
	}
	const q = `
SELECT created_at FROM registration_attempts
WHERE origin=$1 AND created_at > $2
ORDER BY created_at DESC LIMIT 1`
	return l.latest(ctx, q, l.regWindow, origin)
}

// RecordRegistration stores an accepted registration.
func (l *PG) RecordRegistration(ctx context.Context, origin string) error {
	const q = `INSERT INTO registration_attempts (origin, created_at) VALUES ($1, $2)`
	_, err := l.pool.Exec(ctx, q, origin, l.now().UTC())
	return err
}

// AllowSubmission allows one published submission per bot per window.
func (l *PG) AllowSubmission(ctx context.Context, botID uuid.UUID) (bool, time.Duration, error) {
	const q = `
SELECT created_at FROM submissions
WHERE bot_id=$1 AND status='published' AND created_at > $2
ORDER BY created_at DESC LIMIT 1`
	return l.latest(ctx, q, l.subWindow, botID)
}

func (l *PG) latest(ctx context.Context, q string, window time.Duration, key any) (bool, time.Duration, error) {
	now := l.now()
	var last time.Time
	err := l.pool.QueryRow(ctx, q, key, now.Add(-window).UTC()).Scan(&last)
	switch {
	case err == nil:
		retry := last.Add(window).Sub(now)
		if retry <= 0 {
			return true, 0, nil
		}
		return false, retry, nil
	case errors.Is(err, pgx.ErrNoRows):
		return true, 0, nil
	default:
		return false, 0, err
	}
}
