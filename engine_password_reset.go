package careauth

import (
	"context"
	"errors"
	"log"

	"github.com/clinicore/careauth/otp"
)

// RequestPasswordReset looks an account up by email and dispatches a reset
// code to it. The reset challenge shares nothing with the verification
// challenges; its counter and lockout run independently.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) error {
	if e == nil || e.challenges == nil {
		return ErrEngineNotReady
	}

	user, err := e.users.FindByEmail(ctx, email)
	if err != nil {
		return mapRepoError(err)
	}

	ch, err := e.challenges.Request(ctx, user.ID, user.Email, otp.PurposePasswordReset)
	if err != nil {
		mapped := mapChallengeError(err)
		e.emitAudit(ctx, auditEventResetRequest, false, user.ID, user.Email, mapped, nil)
		return mapped
	}

	if err := e.sendCode(ctx, user.Email, "Reset your password", ch.Code); err != nil {
		e.emitAudit(ctx, auditEventResetRequest, false, user.ID, user.Email, err, nil)
		return err
	}

	e.metricInc(MetricResetRequest)
	e.emitAudit(ctx, auditEventResetRequest, true, user.ID, user.Email, nil, nil)
	return nil
}

// ConfirmPasswordReset checks the submitted reset code and records the
// confirmation that authorizes exactly one subsequent ResetPassword call.
func (e *Engine) ConfirmPasswordReset(ctx context.Context, subjectID, code string) error {
	if e == nil || e.challenges == nil {
		return ErrEngineNotReady
	}

	if _, err := e.challenges.Verify(ctx, subjectID, otp.PurposePasswordReset, code); err != nil {
		mapped := mapChallengeError(err)
		e.metricInc(MetricResetConfirmFailure)
		e.emitAudit(ctx, auditEventResetConfirm, false, subjectID, "", mapped, nil)
		return mapped
	}
	if err := e.challenges.MarkResetConfirmed(ctx, subjectID); err != nil {
		return mapChallengeError(err)
	}

	e.metricInc(MetricResetConfirmSuccess)
	e.emitAudit(ctx, auditEventResetConfirm, true, subjectID, "", nil, nil)
	return nil
}

// ResetPassword writes a new password for a subject whose reset code was
// confirmed. The confirmation authorizes exactly one successful write; a
// failed store write hands it back so the caller can retry without
// repeating the code exchange.
func (e *Engine) ResetPassword(ctx context.Context, subjectID, newPassword string) error {
	if e == nil || e.challenges == nil {
		return ErrEngineNotReady
	}

	if err := e.policy.Validate(newPassword); err != nil {
		e.emitAudit(ctx, auditEventResetCompleted, false, subjectID, "", ErrPasswordPolicy, func() map[string]string {
			return map[string]string{"reason": err.Error()}
		})
		return ErrPasswordPolicy
	}

	user, err := e.users.FindByID(ctx, subjectID)
	if err != nil {
		return mapRepoError(err)
	}

	if err := e.challenges.ConsumeResetConfirmation(ctx, subjectID); err != nil {
		mapped := mapChallengeError(err)
		// a subject with no reset challenge at all is equally unconfirmed
		if errors.Is(mapped, ErrNoChallenge) {
			mapped = ErrResetNotConfirmed
		}
		e.emitAudit(ctx, auditEventResetCompleted, false, user.ID, user.Email, mapped, nil)
		return mapped
	}

	hash, err := e.hasher.Hash(newPassword)
	if err != nil {
		e.restoreResetConfirmation(ctx, subjectID)
		return err
	}
	user.PasswordHash = hash
	user.UpdatedAt = e.now()
	if err := e.users.Update(ctx, user); err != nil {
		e.restoreResetConfirmation(ctx, subjectID)
		return mapRepoError(err)
	}

	e.metricInc(MetricResetCompleted)
	e.emitAudit(ctx, auditEventResetCompleted, true, user.ID, user.Email, nil, nil)
	return nil
}

// restoreResetConfirmation re-arms a confirmation spent by a write that
// never landed. Best effort: a restore failure leaves the user re-running
// the code exchange, not holding a half-applied reset.
func (e *Engine) restoreResetConfirmation(ctx context.Context, subjectID string) {
	if err := e.challenges.MarkResetConfirmed(ctx, subjectID); err != nil {
		log.Print("careauth: reset confirmation restore failed")
	}
}
