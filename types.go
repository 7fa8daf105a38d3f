package careauth

import (
	"context"
	"time"
)

// Role classifies an account within the clinic.
type Role string

const (
	RolePatient      Role = "patient"
	RolePractitioner Role = "practitioner"
	RoleAdmin        Role = "admin"
)

func (r Role) valid() bool {
	switch r {
	case RolePatient, RolePractitioner, RoleAdmin:
		return true
	}
	return false
}

// Subject is the engine's view of an account. The engine owns the
// verification and credential fields; everything else is carried through
// untouched.
type Subject struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         Role
	Active       bool
	Verified     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TokenPair is one issued access/refresh pair. The refresh token outlives
// the access token so a client can renew without re-authenticating.
type TokenPair struct {
	Access  string
	Refresh string
}

// UserRepository is the account persistence the host application provides.
// Lookups return ErrSubjectNotFound when no account matches.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*Subject, error)
	FindByEmail(ctx context.Context, email string) (*Subject, error)
	Create(ctx context.Context, s *Subject) error
	Update(ctx context.Context, s *Subject) error
}

// Messenger delivers a one-time code to its target address. The engine
// treats delivery failure as fatal for the request that triggered it.
type Messenger interface {
	Send(ctx context.Context, to, subject, body string) error
}

// PasswordPolicy validates a plaintext password before it is accepted.
type PasswordPolicy interface {
	Validate(plaintext string) error
}

// Clock supplies the engine's notion of now. Production uses the wall
// clock; tests inject a fixed one.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }
