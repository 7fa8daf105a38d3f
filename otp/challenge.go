// Package otp manages emailed one-time-code challenges: generation with
// attempt counting and lockout, and verification against the stored record.
// One challenge record exists per (subject, purpose); requesting a new code
// supersedes the previous pending one.
package otp

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Purpose tags what a challenge proves. Purposes never share state: a code
// issued for a password reset cannot confirm an email change.
type Purpose string

const (
	PurposeEmailVerification Purpose = "email_verification"
	PurposeEmailChange       Purpose = "email_change"
	PurposePasswordReset     Purpose = "password_reset"
)

func (p Purpose) valid() bool {
	switch p {
	case PurposeEmailVerification, PurposeEmailChange, PurposePasswordReset:
		return true
	}
	return false
}

// Challenge is the persisted record of an outstanding verification attempt.
// Code is present only while a code is pending; it is cleared on successful
// verification. Records are mutated in place and never deleted by this
// package; retention is the store owner's concern.
type Challenge struct {
	SubjectID   string    `json:"subject_id"`
	TargetEmail string    `json:"target_email"`
	Purpose     Purpose   `json:"purpose"`

	Code      string    `json:"code,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`

	AttemptsRemaining int       `json:"attempts_remaining"`
	LockedUntil       time.Time `json:"locked_until,omitzero"`

	Verified bool `json:"verified"`
	// ResetConfirmed gates the subsequent password write in the reset flow.
	// It is distinct from Verified and only meaningful for
	// PurposePasswordReset.
	ResetConfirmed bool `json:"reset_confirmed"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

var (
	// ErrNotFound is returned by stores when no challenge record exists
	// for the (subject, purpose) pair.
	ErrNotFound = errors.New("otp: challenge not found")
	// ErrStoreUnavailable wraps persistence backend failures. Callers may
	// re-invoke the whole operation; this package never retries.
	ErrStoreUnavailable = errors.New("otp: challenge store unavailable")
)

// Store persists challenge records keyed by (subject, purpose).
//
// Mutate performs a single read-modify-write: it loads the current record
// (cur is nil when none exists), applies fn, and persists the result under
// an optimistic-concurrency guard so concurrent mutations of the same
// record do not lose writes. Implementations must not serialize mutations
// across different subjects. An error from fn aborts the write and is
// returned unchanged.
type Store interface {
	Get(ctx context.Context, subjectID string, purpose Purpose) (*Challenge, error)
	Mutate(ctx context.Context, subjectID string, purpose Purpose, fn func(cur *Challenge) (*Challenge, error)) (*Challenge, error)
}

// LockedError reports an active generation lockout. Until tells the caller
// when requesting a code becomes possible again.
type LockedError struct {
	Until time.Time
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("otp: challenge locked until %s", e.Until.UTC().Format(time.RFC3339))
}

func (e *LockedError) Is(target error) bool { return target == ErrLocked }

var (
	// ErrLocked matches LockedError via errors.Is.
	ErrLocked = errors.New("otp: challenge locked")
	// ErrNoChallenge is returned by Verify when the subject has no
	// challenge record for the purpose.
	ErrNoChallenge = errors.New("otp: no challenge")
	// ErrWrongCode is returned when the submitted code does not match.
	// The stored code never leaks through this path.
	ErrWrongCode = errors.New("otp: wrong code")
	// ErrExpired is returned when the code matched but its window has
	// closed.
	ErrExpired = errors.New("otp: code expired")
	// ErrNotConfirmed is returned by RequireResetConfirmed before the
	// reset code has been confirmed.
	ErrNotConfirmed = errors.New("otp: reset not confirmed")
)
