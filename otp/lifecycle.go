package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"math/big"
	"strconv"
	"time"
)

// Config carries the generation and lockout parameters. Zero values fall
// back to the deployed service's behavior: 4-digit codes valid for 2
// minutes, 3 generations before a 3 minute lockout.
type Config struct {
	CodeTTL     time.Duration
	MaxAttempts int
	Lockout     time.Duration
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.CodeTTL <= 0 {
		cfg.CodeTTL = 2 * time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.Lockout <= 0 {
		cfg.Lockout = 3 * time.Minute
	}
	return cfg
}

// Lifecycle creates, rate-limits, and verifies challenges against a Store.
// It holds no per-subject state of its own; all state lives in the store
// and lockout expiry is evaluated lazily on the next access.
type Lifecycle struct {
	store Store
	cfg   Config
	now   func() time.Time
}

func NewLifecycle(store Store, cfg Config, now func() time.Time) (*Lifecycle, error) {
	if store == nil {
		return nil, errors.New("otp: nil store")
	}
	if now == nil {
		now = time.Now
	}
	return &Lifecycle{store: store, cfg: cfg.withDefaults(), now: now}, nil
}

// Request issues a fresh code for (subjectID, purpose), superseding any
// pending one. The attempt counter behaves as a modular countdown:
// each permitted call decrements it, reaching zero starts the lockout, and
// the first call after the lockout elapses resets it to MaxAttempts without
// decrementing. A call during the lockout fails with a LockedError carrying
// the expiry. The caller is responsible for dispatching the returned code.
func (l *Lifecycle) Request(ctx context.Context, subjectID, targetEmail string, purpose Purpose) (*Challenge, error) {
	if subjectID == "" || targetEmail == "" {
		return nil, errors.New("otp: empty subject or target email")
	}
	if !purpose.valid() {
		return nil, errors.New("otp: unknown purpose")
	}

	now := l.now()
	return l.store.Mutate(ctx, subjectID, purpose, func(cur *Challenge) (*Challenge, error) {
		ch := cur
		if ch == nil {
			ch = &Challenge{
				SubjectID:         subjectID,
				Purpose:           purpose,
				AttemptsRemaining: l.cfg.MaxAttempts,
			}
		}

		reset := false
		if ch.AttemptsRemaining <= 0 {
			if now.Before(ch.LockedUntil) {
				return nil, &LockedError{Until: ch.LockedUntil}
			}
			// lockout elapsed: wrap the counter back to full
			ch.AttemptsRemaining = l.cfg.MaxAttempts
			ch.LockedUntil = time.Time{}
			reset = true
		}

		code, err := newCode()
		if err != nil {
			return nil, err
		}

		ch.TargetEmail = targetEmail
		ch.Code = code
		ch.ExpiresAt = now.Add(l.cfg.CodeTTL)
		ch.Verified = false
		ch.ResetConfirmed = false
		ch.CreatedAt = now
		ch.UpdatedAt = now

		if !reset {
			ch.AttemptsRemaining--
			if ch.AttemptsRemaining <= 0 {
				ch.AttemptsRemaining = 0
				ch.LockedUntil = now.Add(l.cfg.Lockout)
			}
		}

		return ch, nil
	})
}

// Verify checks a submitted code for (subjectID, purpose). On success the
// challenge becomes terminal: the code is cleared, the attempt counter and
// lockout are reset, and Verified is recorded. Failure order matches the
// deployed service: missing record, then code mismatch, then expiry.
func (l *Lifecycle) Verify(ctx context.Context, subjectID string, purpose Purpose, submitted string) (*Challenge, error) {
	if !purpose.valid() {
		return nil, errors.New("otp: unknown purpose")
	}

	now := l.now()
	ch, err := l.store.Mutate(ctx, subjectID, purpose, func(cur *Challenge) (*Challenge, error) {
		if cur == nil {
			return nil, ErrNoChallenge
		}
		if cur.Code == "" || subtle.ConstantTimeCompare([]byte(submitted), []byte(cur.Code)) != 1 {
			return nil, ErrWrongCode
		}
		if !now.Before(cur.ExpiresAt) {
			return nil, ErrExpired
		}

		cur.Verified = true
		cur.Code = ""
		cur.ExpiresAt = time.Time{}
		cur.AttemptsRemaining = l.cfg.MaxAttempts
		cur.LockedUntil = time.Time{}
		cur.UpdatedAt = now
		return cur, nil
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNoChallenge
		}
		return nil, err
	}
	return ch, nil
}

// MarkResetConfirmed records that the password-reset code was confirmed,
// gating the subsequent password write. It does not touch the password.
func (l *Lifecycle) MarkResetConfirmed(ctx context.Context, subjectID string) error {
	now := l.now()
	_, err := l.store.Mutate(ctx, subjectID, PurposePasswordReset, func(cur *Challenge) (*Challenge, error) {
		if cur == nil {
			return nil, ErrNoChallenge
		}
		if !cur.Verified {
			return nil, ErrNotConfirmed
		}
		cur.ResetConfirmed = true
		cur.UpdatedAt = now
		return cur, nil
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNoChallenge
	}
	return err
}

// ConsumeResetConfirmation spends the confirmed reset challenge. It fails
// with ErrNotConfirmed unless MarkResetConfirmed succeeded for the most
// recent reset challenge, and clears the flag so the confirmation cannot
// authorize a second password write.
func (l *Lifecycle) ConsumeResetConfirmation(ctx context.Context, subjectID string) error {
	now := l.now()
	_, err := l.store.Mutate(ctx, subjectID, PurposePasswordReset, func(cur *Challenge) (*Challenge, error) {
		if cur == nil {
			return nil, ErrNoChallenge
		}
		if !cur.ResetConfirmed {
			return nil, ErrNotConfirmed
		}
		cur.ResetConfirmed = false
		cur.UpdatedAt = now
		return cur, nil
	})
	if errors.Is(err, ErrNotFound) {
		return ErrNoChallenge
	}
	return err
}

// newCode draws a uniformly random 4-digit code in [1000, 9999].
func newCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+1000, 10), nil
}
