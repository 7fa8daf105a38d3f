package pgstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/careauth/otp"
)

const challengeColumns = `subject_id, target_email, purpose, code, expires_at,
attempts_remaining, locked_until, verified, reset_confirmed, created_at, updated_at`

// ChallengeStore implements otp.Store on PostgreSQL. Mutate runs the
// read-modify-write inside a transaction holding a row lock on the
// (subject_id, purpose) record, so concurrent mutations of the same
// challenge serialize instead of losing writes.
type ChallengeStore struct {
	db *pgxpool.Pool
}

func NewChallengeStore(db *pgxpool.Pool) *ChallengeStore {
	return &ChallengeStore{db: db}
}

func scanChallenge(row pgx.Row) (*otp.Challenge, error) {
	var ch otp.Challenge
	var expires, locked *time.Time
	err := row.Scan(&ch.SubjectID, &ch.TargetEmail, &ch.Purpose, &ch.Code, &expires,
		&ch.AttemptsRemaining, &locked, &ch.Verified, &ch.ResetConfirmed,
		&ch.CreatedAt, &ch.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if expires != nil {
		ch.ExpiresAt = *expires
	}
	if locked != nil {
		ch.LockedUntil = *locked
	}
	return &ch, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (s *ChallengeStore) Get(ctx context.Context, subjectID string, purpose otp.Purpose) (*otp.Challenge, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE subject_id = $1 AND purpose = $2`,
		subjectID, purpose)
	ch, err := scanChallenge(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, otp.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", otp.ErrStoreUnavailable, err)
	}
	return ch, nil
}

func (s *ChallengeStore) Mutate(ctx context.Context, subjectID string, purpose otp.Purpose, fn func(cur *otp.Challenge) (*otp.Challenge, error)) (*otp.Challenge, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", otp.ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+challengeColumns+` FROM challenges WHERE subject_id = $1 AND purpose = $2 FOR UPDATE`,
		subjectID, purpose)
	cur, err := scanChallenge(row)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %v", otp.ErrStoreUnavailable, err)
		}
		cur = nil
	}

	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if next == nil {
		return nil, fmt.Errorf("%w: mutate returned nil record", otp.ErrStoreUnavailable)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO challenges (subject_id, target_email, purpose, code, expires_at,
    attempts_remaining, locked_until, verified, reset_confirmed, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (subject_id, purpose) DO UPDATE
SET target_email = EXCLUDED.target_email, code = EXCLUDED.code,
    expires_at = EXCLUDED.expires_at, attempts_remaining = EXCLUDED.attempts_remaining,
    locked_until = EXCLUDED.locked_until, verified = EXCLUDED.verified,
    reset_confirmed = EXCLUDED.reset_confirmed, created_at = EXCLUDED.created_at,
    updated_at = EXCLUDED.updated_at`,
		next.SubjectID, next.TargetEmail, next.Purpose, next.Code, nullableTime(next.ExpiresAt),
		next.AttemptsRemaining, nullableTime(next.LockedUntil), next.Verified, next.ResetConfirmed,
		next.CreatedAt, next.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", otp.ErrStoreUnavailable, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", otp.ErrStoreUnavailable, err)
	}
	return next, nil
}
