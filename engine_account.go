package careauth

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"
)

// RegisterParams carries the fields accepted at account creation.
type RegisterParams struct {
	Email    string
	Password string
	Name     string
	Role     Role
}

// Register creates an inactive-verification account and dispatches the
// first verification code. The account can log in before verifying; hosts
// that require verification gate on Subject.Verified.
func (e *Engine) Register(ctx context.Context, p RegisterParams) (*Subject, error) {
	if e == nil || e.users == nil {
		return nil, ErrEngineNotReady
	}

	p.Email = strings.TrimSpace(strings.ToLower(p.Email))
	if p.Email == "" || !strings.Contains(p.Email, "@") {
		return nil, ErrInvalidCredentials
	}
	if p.Role == "" {
		p.Role = RolePatient
	}
	if !p.Role.valid() {
		return nil, ErrInvalidCredentials
	}
	if err := e.policy.Validate(p.Password); err != nil {
		return nil, ErrPasswordPolicy
	}

	if _, err := e.users.FindByEmail(ctx, p.Email); err == nil {
		e.metricInc(MetricRegisterDuplicate)
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", p.Email, ErrEmailExists, nil)
		return nil, ErrEmailExists
	} else if !errors.Is(err, ErrSubjectNotFound) {
		return nil, mapRepoError(err)
	}

	hash, err := e.hasher.Hash(p.Password)
	if err != nil {
		return nil, err
	}

	now := e.now()
	user := &Subject{
		ID:           uuid.NewString(),
		Email:        p.Email,
		PasswordHash: hash,
		Name:         p.Name,
		Role:         p.Role,
		Active:       true,
		Verified:     false,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.users.Create(ctx, user); err != nil {
		e.emitAudit(ctx, auditEventRegisterFailure, false, "", p.Email, err, nil)
		return nil, mapRepoError(err)
	}

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(ctx, auditEventRegisterSuccess, true, user.ID, user.Email, nil, nil)

	// first code is best effort; the account exists either way and can
	// re-request verification
	if err := e.RequestEmailVerification(ctx, user.ID); err != nil {
		log.Print("careauth: initial verification code dispatch failed")
	}

	return user, nil
}

// Login authenticates by email and password and issues a token pair.
// Wrong email and wrong password are indistinguishable to the caller.
func (e *Engine) Login(ctx context.Context, email, passwd string) (TokenPair, error) {
	if e == nil || e.users == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || passwd == "" {
		e.metricInc(MetricLoginFailure)
		return TokenPair{}, ErrInvalidCredentials
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrSubjectNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, "", email, ErrInvalidCredentials, nil)
			return TokenPair{}, ErrInvalidCredentials
		}
		return TokenPair{}, mapRepoError(err)
	}

	ok, err := e.hasher.Verify(passwd, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, user.Email, ErrInvalidCredentials, nil)
		return TokenPair{}, ErrInvalidCredentials
	}
	if !user.Active {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, user.ID, user.Email, ErrAccountInactive, nil)
		return TokenPair{}, ErrAccountInactive
	}

	// rehash on login when cost parameters moved; never blocks the login
	if needs, err := e.hasher.NeedsRehash(user.PasswordHash); err == nil && needs {
		if upgraded, err := e.hasher.Hash(passwd); err == nil {
			user.PasswordHash = upgraded
			user.UpdatedAt = e.now()
			if err := e.users.Update(ctx, user); err != nil {
				log.Print("careauth: password rehash update failed")
			}
		}
	}

	pair, err := e.IssuePair(ctx, user.ID)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return TokenPair{}, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, user.ID, user.Email, nil, nil)
	return pair, nil
}

// CheckPassword reports whether the password matches the subject's current
// credential without issuing anything.
func (e *Engine) CheckPassword(ctx context.Context, subjectID, passwd string) (bool, error) {
	if e == nil || e.users == nil {
		return false, ErrEngineNotReady
	}

	user, err := e.users.FindByID(ctx, subjectID)
	if err != nil {
		return false, mapRepoError(err)
	}
	ok, err := e.hasher.Verify(passwd, user.PasswordHash)
	if err != nil {
		return false, nil
	}
	return ok, nil
}

// ChangePassword replaces the credential after re-checking the old one.
func (e *Engine) ChangePassword(ctx context.Context, subjectID, oldPassword, newPassword string) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.FindByID(ctx, subjectID)
	if err != nil {
		return mapRepoError(err)
	}

	ok, err := e.hasher.Verify(oldPassword, user.PasswordHash)
	if err != nil || !ok {
		e.metricInc(MetricPasswordChangeInvalidOld)
		e.emitAudit(ctx, auditEventPasswordChange, false, user.ID, user.Email, ErrInvalidCredentials, nil)
		return ErrInvalidCredentials
	}
	if err := e.policy.Validate(newPassword); err != nil {
		e.emitAudit(ctx, auditEventPasswordChange, false, user.ID, user.Email, ErrPasswordPolicy, nil)
		return ErrPasswordPolicy
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = e.now()
	if err := e.users.Update(ctx, user); err != nil {
		return mapRepoError(err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChange, true, user.ID, user.Email, nil, nil)
	return nil
}

// DeactivateAccount soft-deletes the account. The record stays in place
// and a later ReactivateAccount restores it.
func (e *Engine) DeactivateAccount(ctx context.Context, subjectID string) error {
	return e.setActive(ctx, subjectID, false)
}

// ReactivateAccount restores a soft-deleted account.
func (e *Engine) ReactivateAccount(ctx context.Context, subjectID string) error {
	return e.setActive(ctx, subjectID, true)
}

func (e *Engine) setActive(ctx context.Context, subjectID string, active bool) error {
	if e == nil || e.users == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.FindByID(ctx, subjectID)
	if err != nil {
		return mapRepoError(err)
	}
	if user.Active == active {
		return nil
	}

	user.Active = active
	user.UpdatedAt = e.now()
	if err := e.users.Update(ctx, user); err != nil {
		return mapRepoError(err)
	}

	if active {
		e.metricInc(MetricAccountReactivated)
		e.emitAudit(ctx, auditEventAccountReactivated, true, user.ID, user.Email, nil, nil)
	} else {
		e.metricInc(MetricAccountDeactivated)
		e.emitAudit(ctx, auditEventAccountDeactivated, true, user.ID, user.Email, nil, nil)
	}
	return nil
}
