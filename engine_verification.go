package careauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/clinicore/careauth/otp"
)

// RequestEmailVerification generates a code for the subject's current
// email address and dispatches it. The attempt counter decrements on
// generation, not on submission; delivery failure does not refund it.
func (e *Engine) RequestEmailVerification(ctx context.Context, subjectID string) error {
	if e == nil || e.challenges == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.FindByID(ctx, subjectID)
	if err != nil {
		return mapRepoError(err)
	}

	ch, err := e.challenges.Request(ctx, user.ID, user.Email, otp.PurposeEmailVerification)
	if err != nil {
		mapped := mapChallengeError(err)
		if errors.Is(mapped, ErrChallengeLocked) {
			e.metricInc(MetricVerificationLocked)
		}
		e.emitAudit(ctx, auditEventVerificationRequest, false, user.ID, user.Email, mapped, nil)
		return mapped
	}

	if err := e.sendCode(ctx, user.Email, "Verify your email", ch.Code); err != nil {
		e.emitAudit(ctx, auditEventVerificationRequest, false, user.ID, user.Email, err, nil)
		return err
	}

	e.metricInc(MetricVerificationRequest)
	e.emitAudit(ctx, auditEventVerificationRequest, true, user.ID, user.Email, nil, nil)
	return nil
}

// ConfirmEmailVerification checks the submitted code and marks the account
// verified. Failure order is fixed: no challenge, then wrong code, then
// expired.
func (e *Engine) ConfirmEmailVerification(ctx context.Context, subjectID, code string) error {
	if e == nil || e.challenges == nil {
		return ErrEngineNotReady
	}

	if _, err := e.challenges.Verify(ctx, subjectID, otp.PurposeEmailVerification, code); err != nil {
		mapped := mapChallengeError(err)
		e.metricInc(MetricVerificationFailure)
		e.emitAudit(ctx, auditEventVerificationConfirm, false, subjectID, "", mapped, nil)
		return mapped
	}

	user, err := e.users.FindByID(ctx, subjectID)
	if err != nil {
		return mapRepoError(err)
	}
	if !user.Verified {
		user.Verified = true
		user.UpdatedAt = e.now()
		if err := e.users.Update(ctx, user); err != nil {
			return mapRepoError(err)
		}
	}

	e.metricInc(MetricVerificationSuccess)
	e.emitAudit(ctx, auditEventVerificationConfirm, true, user.ID, user.Email, nil, nil)
	return nil
}

// RequestEmailChange generates a code addressed to the new email. The code
// is delivered to the new address; the change only lands on confirmation.
// The address is normalized the same way registration normalizes it.
func (e *Engine) RequestEmailChange(ctx context.Context, subjectID, newEmail string) error {
	if e == nil || e.challenges == nil {
		return ErrEngineNotReady
	}
	newEmail = strings.TrimSpace(strings.ToLower(newEmail))
	if newEmail == "" || !strings.Contains(newEmail, "@") {
		return ErrInvalidCredentials
	}

	user, err := e.users.FindByID(ctx, subjectID)
	if err != nil {
		return mapRepoError(err)
	}

	if existing, err := e.users.FindByEmail(ctx, newEmail); err == nil && existing.ID != user.ID {
		e.emitAudit(ctx, auditEventEmailChangeRequest, false, user.ID, newEmail, ErrEmailTaken, nil)
		return ErrEmailTaken
	} else if err != nil && !errors.Is(err, ErrSubjectNotFound) {
		return mapRepoError(err)
	}

	ch, err := e.challenges.Request(ctx, user.ID, newEmail, otp.PurposeEmailChange)
	if err != nil {
		mapped := mapChallengeError(err)
		e.emitAudit(ctx, auditEventEmailChangeRequest, false, user.ID, newEmail, mapped, nil)
		return mapped
	}

	if err := e.sendCode(ctx, newEmail, "Confirm your new email", ch.Code); err != nil {
		e.emitAudit(ctx, auditEventEmailChangeRequest, false, user.ID, newEmail, err, nil)
		return err
	}

	e.metricInc(MetricEmailChangeRequest)
	e.emitAudit(ctx, auditEventEmailChangeRequest, true, user.ID, newEmail, nil, nil)
	return nil
}

// ConfirmEmailChange checks the code sent to the pending address and moves
// the account to it. The new address counts as verified.
func (e *Engine) ConfirmEmailChange(ctx context.Context, subjectID, code string) error {
	if e == nil || e.challenges == nil {
		return ErrEngineNotReady
	}

	ch, err := e.challenges.Verify(ctx, subjectID, otp.PurposeEmailChange, code)
	if err != nil {
		mapped := mapChallengeError(err)
		e.emitAudit(ctx, auditEventEmailChangeConfirm, false, subjectID, "", mapped, nil)
		return mapped
	}

	user, err := e.users.FindByID(ctx, subjectID)
	if err != nil {
		return mapRepoError(err)
	}

	old := user.Email
	user.Email = ch.TargetEmail
	user.Verified = true
	user.UpdatedAt = e.now()
	if err := e.users.Update(ctx, user); err != nil {
		return mapRepoError(err)
	}

	e.metricInc(MetricEmailChangeSuccess)
	e.emitAudit(ctx, auditEventEmailChangeConfirm, true, user.ID, user.Email, nil, func() map[string]string {
		return map[string]string{"previous_email": old}
	})
	return nil
}

func (e *Engine) sendCode(ctx context.Context, to, subject, code string) error {
	body := fmt.Sprintf("Your verification code is %s. It expires in %d minutes.",
		code, int(e.config.OTP.CodeTTL.Minutes()))
	if err := e.messenger.Send(ctx, to, subject, body); err != nil {
		return fmt.Errorf("%w: %v", ErrDeliveryUnavailable, err)
	}
	return nil
}

func mapChallengeError(err error) error {
	var locked *otp.LockedError
	switch {
	case errors.As(err, &locked):
		return fmt.Errorf("%w: %w", ErrChallengeLocked, locked)
	case errors.Is(err, otp.ErrNoChallenge):
		return ErrNoChallenge
	case errors.Is(err, otp.ErrWrongCode):
		return ErrWrongCode
	case errors.Is(err, otp.ErrExpired):
		return ErrChallengeExpired
	case errors.Is(err, otp.ErrNotConfirmed):
		return ErrResetNotConfirmed
	case errors.Is(err, otp.ErrStoreUnavailable), errors.Is(err, otp.ErrNotFound):
		return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
	default:
		return err
	}
}

func mapRepoError(err error) error {
	if errors.Is(err, ErrSubjectNotFound) {
		return ErrSubjectNotFound
	}
	return fmt.Errorf("%w: %v", ErrPersistenceUnavailable, err)
}
