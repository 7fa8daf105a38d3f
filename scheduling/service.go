package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service applies booking rules on top of a Repository. It owns no
// goroutines; concurrency control is the repository's concern.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a Service. now may be nil; time.Now is used then.
func NewService(repo Repository, now func() time.Time) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("%w: nil repository", ErrInvalidInput)
	}
	if now == nil {
		now = time.Now
	}
	return &Service{repo: repo, now: now}, nil
}

func (s *Service) CreateSessionType(ctx context.Context, name string, priceCents int64) (*SessionType, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty session type name", ErrInvalidInput)
	}
	if priceCents < 0 {
		return nil, fmt.Errorf("%w: negative price", ErrInvalidInput)
	}
	now := s.now().UTC()
	st := &SessionType{
		ID:         uuid.NewString(),
		Name:       name,
		PriceCents: priceCents,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateSessionType(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) UpdateSessionType(ctx context.Context, id, name string, priceCents int64) (*SessionType, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: empty session type name", ErrInvalidInput)
	}
	if priceCents < 0 {
		return nil, fmt.Errorf("%w: negative price", ErrInvalidInput)
	}
	st, err := s.repo.GetSessionType(ctx, id)
	if err != nil {
		return nil, err
	}
	st.Name = name
	st.PriceCents = priceCents
	st.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateSessionType(ctx, st); err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Service) DeleteSessionType(ctx context.Context, id string) error {
	return s.repo.DeleteSessionType(ctx, id)
}

func (s *Service) GetSessionType(ctx context.Context, id string) (*SessionType, error) {
	return s.repo.GetSessionType(ctx, id)
}

func (s *Service) ListSessionTypes(ctx context.Context) ([]SessionType, error) {
	return s.repo.ListSessionTypes(ctx)
}

func (s *Service) CreatePackage(ctx context.Context, patientID, practitionerID, typeID string, total int) (*SessionPackage, error) {
	if patientID == "" || practitionerID == "" {
		return nil, fmt.Errorf("%w: missing participant", ErrInvalidInput)
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: package size must be positive", ErrInvalidInput)
	}
	if _, err := s.repo.GetSessionType(ctx, typeID); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	p := &SessionPackage{
		ID:             uuid.NewString(),
		PatientID:      patientID,
		PractitionerID: practitionerID,
		TypeID:         typeID,
		Total:          total,
		Status:         PackageActive,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreatePackage(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// BookParams describes a booking request. PackageID is optional; when set,
// the session is drawn from the package and must match its participants
// and type.
type BookParams struct {
	PatientID      string
	PractitionerID string
	TypeID         string
	PackageID      string
	StartsAt       time.Time
	EndsAt         time.Time
}

func (s *Service) Book(ctx context.Context, p BookParams) (*Session, error) {
	if p.PatientID == "" || p.PractitionerID == "" {
		return nil, fmt.Errorf("%w: missing participant", ErrInvalidInput)
	}
	if !p.EndsAt.After(p.StartsAt) {
		return nil, ErrInvalidInterval
	}

	st, err := s.repo.GetSessionType(ctx, p.TypeID)
	if err != nil {
		return nil, err
	}

	if p.PackageID != "" {
		pkg, err := s.repo.GetPackage(ctx, p.PackageID)
		if err != nil {
			return nil, err
		}
		if pkg.PatientID != p.PatientID || pkg.PractitionerID != p.PractitionerID || pkg.TypeID != p.TypeID {
			return nil, ErrPackageMismatch
		}
		if pkg.Status != PackageActive || pkg.Completed >= pkg.Total {
			return nil, ErrPackageExhausted
		}
	}

	now := s.now().UTC()
	session := &Session{
		ID:             uuid.NewString(),
		PatientID:      p.PatientID,
		PractitionerID: p.PractitionerID,
		PackageID:      p.PackageID,
		TypeID:         p.TypeID,
		StartsAt:       p.StartsAt,
		EndsAt:         p.EndsAt,
		PriceCents:     st.PriceCents,
		Status:         SessionBooked,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Cancel marks a session cancelled. Cancelling an already cancelled
// session is a no-op; a completed session cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, sessionID string) error {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	switch session.Status {
	case SessionCancelled:
		return nil
	case SessionCompleted:
		return ErrSessionClosed
	}
	session.Status = SessionCancelled
	session.UpdatedAt = s.now().UTC()
	return s.repo.UpdateSession(ctx, session)
}

// Complete marks a session completed and advances its package, completing
// the package when the last session is used. Completing twice is a no-op;
// a cancelled session cannot be completed.
func (s *Service) Complete(ctx context.Context, sessionID string) error {
	session, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	switch session.Status {
	case SessionCompleted:
		return nil
	case SessionCancelled:
		return ErrSessionClosed
	}

	session.Status = SessionCompleted
	session.UpdatedAt = s.now().UTC()
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return err
	}

	if session.PackageID == "" {
		return nil
	}
	pkg, err := s.repo.GetPackage(ctx, session.PackageID)
	if err != nil {
		return err
	}
	if pkg.Completed < pkg.Total {
		pkg.Completed++
	}
	if pkg.Completed >= pkg.Total {
		pkg.Status = PackageCompleted
	}
	pkg.UpdatedAt = s.now().UTC()
	return s.repo.UpdatePackage(ctx, pkg)
}

func (s *Service) GetSession(ctx context.Context, id string) (*Session, error) {
	return s.repo.GetSession(ctx, id)
}

func (s *Service) ListSessionsByPatient(ctx context.Context, patientID string) ([]Session, error) {
	return s.repo.ListSessionsByPatient(ctx, patientID)
}
