// Package scheduling manages clinic session bookings: session types with
// pricing, prepaid session packages, and individual sessions moving through
// booked, completed, and cancelled states.
package scheduling

import (
	"context"
	"errors"
	"time"
)

type SessionStatus string

const (
	SessionBooked    SessionStatus = "booked"
	SessionCompleted SessionStatus = "completed"
	SessionCancelled SessionStatus = "cancelled"
)

type PackageStatus string

const (
	PackageActive    PackageStatus = "active"
	PackageCompleted PackageStatus = "completed"
	PackageCancelled PackageStatus = "cancelled"
)

// SessionType is a bookable service with a fixed price.
type SessionType struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	PriceCents int64     `json:"price_cents"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SessionPackage is a prepaid block of sessions of one type between a
// patient and a practitioner. Completed counts only sessions marked
// completed; cancelled sessions do not consume capacity.
type SessionPackage struct {
	ID             string        `json:"id"`
	PatientID      string        `json:"patient_id"`
	PractitionerID string        `json:"practitioner_id"`
	TypeID         string        `json:"type_id"`
	Total          int           `json:"total"`
	Completed      int           `json:"completed"`
	Status         PackageStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Session is one scheduled appointment. PackageID is empty for standalone
// bookings.
type Session struct {
	ID             string        `json:"id"`
	PatientID      string        `json:"patient_id"`
	PractitionerID string        `json:"practitioner_id"`
	PackageID      string        `json:"package_id,omitempty"`
	TypeID         string        `json:"type_id"`
	StartsAt       time.Time     `json:"starts_at"`
	EndsAt         time.Time     `json:"ends_at"`
	PriceCents     int64         `json:"price_cents"`
	Status         SessionStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

var (
	ErrNotFound        = errors.New("scheduling: not found")
	ErrInvalidInput    = errors.New("scheduling: invalid input")
	ErrInvalidInterval = errors.New("scheduling: session must end after it starts")
	// ErrPackageMismatch is returned when the booked session does not match
	// the package's patient, practitioner, or type.
	ErrPackageMismatch = errors.New("scheduling: session does not match package")
	// ErrPackageExhausted is returned when the package has no remaining
	// capacity or is no longer active.
	ErrPackageExhausted = errors.New("scheduling: package exhausted")
	// ErrSessionClosed is returned when a state change targets a session
	// already in a terminal state that conflicts with the request.
	ErrSessionClosed = errors.New("scheduling: session already closed")
	ErrUnavailable   = errors.New("scheduling: repository unavailable")
)

// Repository persists scheduling records. Lookups return ErrNotFound when
// no record exists; backend failures are wrapped in ErrUnavailable.
type Repository interface {
	CreateSessionType(ctx context.Context, st *SessionType) error
	UpdateSessionType(ctx context.Context, st *SessionType) error
	DeleteSessionType(ctx context.Context, id string) error
	GetSessionType(ctx context.Context, id string) (*SessionType, error)
	ListSessionTypes(ctx context.Context) ([]SessionType, error)

	CreatePackage(ctx context.Context, p *SessionPackage) error
	UpdatePackage(ctx context.Context, p *SessionPackage) error
	GetPackage(ctx context.Context, id string) (*SessionPackage, error)

	CreateSession(ctx context.Context, s *Session) error
	UpdateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	ListSessionsByPatient(ctx context.Context, patientID string) ([]Session, error)
}
