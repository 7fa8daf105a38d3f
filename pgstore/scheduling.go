package pgstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinicore/careauth/scheduling"
)

// SchedulingRepository implements scheduling.Repository on a pgx pool.
type SchedulingRepository struct {
	db *pgxpool.Pool
}

func NewSchedulingRepository(db *pgxpool.Pool) *SchedulingRepository {
	return &SchedulingRepository{db: db}
}

func wrapSchedErr(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return scheduling.ErrNotFound
	}
	return fmt.Errorf("%w: %s: %v", scheduling.ErrUnavailable, op, err)
}

func (r *SchedulingRepository) CreateSessionType(ctx context.Context, st *scheduling.SessionType) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO session_types (id, name, price_cents, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)`,
		st.ID, st.Name, st.PriceCents, st.CreatedAt, st.UpdatedAt)
	if err != nil {
		return wrapSchedErr("insert session type", err)
	}
	return nil
}

func (r *SchedulingRepository) UpdateSessionType(ctx context.Context, st *scheduling.SessionType) error {
	tag, err := r.db.Exec(ctx, `
UPDATE session_types SET name = $2, price_cents = $3, updated_at = $4 WHERE id = $1`,
		st.ID, st.Name, st.PriceCents, st.UpdatedAt)
	if err != nil {
		return wrapSchedErr("update session type", err)
	}
	if tag.RowsAffected() == 0 {
		return scheduling.ErrNotFound
	}
	return nil
}

func (r *SchedulingRepository) DeleteSessionType(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM session_types WHERE id = $1`, id)
	if err != nil {
		return wrapSchedErr("delete session type", err)
	}
	if tag.RowsAffected() == 0 {
		return scheduling.ErrNotFound
	}
	return nil
}

func (r *SchedulingRepository) GetSessionType(ctx context.Context, id string) (*scheduling.SessionType, error) {
	var st scheduling.SessionType
	err := r.db.QueryRow(ctx, `
SELECT id, name, price_cents, created_at, updated_at FROM session_types WHERE id = $1`, id).
		Scan(&st.ID, &st.Name, &st.PriceCents, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, wrapSchedErr("get session type", err)
	}
	return &st, nil
}

func (r *SchedulingRepository) ListSessionTypes(ctx context.Context) ([]scheduling.SessionType, error) {
	rows, err := r.db.Query(ctx, `
SELECT id, name, price_cents, created_at, updated_at FROM session_types ORDER BY name`)
	if err != nil {
		return nil, wrapSchedErr("list session types", err)
	}
	defer rows.Close()

	var out []scheduling.SessionType
	for rows.Next() {
		var st scheduling.SessionType
		if err := rows.Scan(&st.ID, &st.Name, &st.PriceCents, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, wrapSchedErr("scan session type", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapSchedErr("list session types", err)
	}
	return out, nil
}

func (r *SchedulingRepository) CreatePackage(ctx context.Context, p *scheduling.SessionPackage) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO session_packages (id, patient_id, practitioner_id, type_id, total, completed, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		p.ID, p.PatientID, p.PractitionerID, p.TypeID, p.Total, p.Completed, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return wrapSchedErr("insert package", err)
	}
	return nil
}

func (r *SchedulingRepository) UpdatePackage(ctx context.Context, p *scheduling.SessionPackage) error {
	tag, err := r.db.Exec(ctx, `
UPDATE session_packages SET completed = $2, status = $3, updated_at = $4 WHERE id = $1`,
		p.ID, p.Completed, p.Status, p.UpdatedAt)
	if err != nil {
		return wrapSchedErr("update package", err)
	}
	if tag.RowsAffected() == 0 {
		return scheduling.ErrNotFound
	}
	return nil
}

func (r *SchedulingRepository) GetPackage(ctx context.Context, id string) (*scheduling.SessionPackage, error) {
	var p scheduling.SessionPackage
	err := r.db.QueryRow(ctx, `
SELECT id, patient_id, practitioner_id, type_id, total, completed, status, created_at, updated_at
FROM session_packages WHERE id = $1`, id).
		Scan(&p.ID, &p.PatientID, &p.PractitionerID, &p.TypeID, &p.Total, &p.Completed, &p.Status, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, wrapSchedErr("get package", err)
	}
	return &p, nil
}

const sessionColumns = `id, patient_id, practitioner_id, COALESCE(package_id, ''), type_id,
starts_at, ends_at, price_cents, status, created_at, updated_at`

func scanSession(row pgx.Row) (*scheduling.Session, error) {
	var s scheduling.Session
	err := row.Scan(&s.ID, &s.PatientID, &s.PractitionerID, &s.PackageID, &s.TypeID,
		&s.StartsAt, &s.EndsAt, &s.PriceCents, &s.Status, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func nullableString(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func (r *SchedulingRepository) CreateSession(ctx context.Context, s *scheduling.Session) error {
	_, err := r.db.Exec(ctx, `
INSERT INTO sessions (id, patient_id, practitioner_id, package_id, type_id, starts_at, ends_at, price_cents, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.PatientID, s.PractitionerID, nullableString(s.PackageID), s.TypeID,
		s.StartsAt, s.EndsAt, s.PriceCents, s.Status, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return wrapSchedErr("insert session", err)
	}
	return nil
}

func (r *SchedulingRepository) UpdateSession(ctx context.Context, s *scheduling.Session) error {
	tag, err := r.db.Exec(ctx, `
UPDATE sessions SET starts_at = $2, ends_at = $3, status = $4, updated_at = $5 WHERE id = $1`,
		s.ID, s.StartsAt, s.EndsAt, s.Status, s.UpdatedAt)
	if err != nil {
		return wrapSchedErr("update session", err)
	}
	if tag.RowsAffected() == 0 {
		return scheduling.ErrNotFound
	}
	return nil
}

func (r *SchedulingRepository) GetSession(ctx context.Context, id string) (*scheduling.Session, error) {
	s, err := scanSession(r.db.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id))
	if err != nil {
		return nil, wrapSchedErr("get session", err)
	}
	return s, nil
}

func (r *SchedulingRepository) ListSessionsByPatient(ctx context.Context, patientID string) ([]scheduling.Session, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE patient_id = $1 ORDER BY starts_at`, patientID)
	if err != nil {
		return nil, wrapSchedErr("list sessions", err)
	}
	defer rows.Close()

	var out []scheduling.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, wrapSchedErr("scan session", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapSchedErr("list sessions", err)
	}
	return out, nil
}
