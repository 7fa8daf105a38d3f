package careauth

import (
	"context"
	"errors"
	"io"

	"github.com/clinicore/careauth/internal/audit"
	"github.com/clinicore/careauth/otp"
)

// Audit types are defined in internal/audit and re-exported here so host
// applications only import the root package.
type (
	AuditEvent = audit.Event
	AuditSink  = audit.Sink
	NoOpSink   = audit.NoOpSink
)

func NewChannelSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *audit.JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

const (
	auditEventLoginSuccess        = "login_success"
	auditEventLoginFailure        = "login_failure"
	auditEventTokenRenewed        = "token_renewed"
	auditEventTokenRenewFailure   = "token_renew_failure"
	auditEventRegisterSuccess     = "register_success"
	auditEventRegisterFailure     = "register_failure"
	auditEventVerificationRequest = "verification_request"
	auditEventVerificationConfirm = "verification_confirm"
	auditEventEmailChangeRequest  = "email_change_request"
	auditEventEmailChangeConfirm  = "email_change_confirm"
	auditEventResetRequest        = "password_reset_request"
	auditEventResetConfirm        = "password_reset_confirm"
	auditEventResetCompleted      = "password_reset_completed"
	auditEventPasswordChange      = "password_change"
	auditEventAccountDeactivated  = "account_deactivated"
	auditEventAccountReactivated  = "account_reactivated"
)

type auditErrorCode string

const (
	auditErrUnauthenticated    auditErrorCode = "unauthenticated"
	auditErrInvalidCredentials auditErrorCode = "invalid_credentials"
	auditErrInvalidToken       auditErrorCode = "invalid_token"
	auditErrSubjectNotFound    auditErrorCode = "subject_not_found"
	auditErrAccountInactive    auditErrorCode = "account_inactive"
	auditErrDuplicate          auditErrorCode = "duplicate"
	auditErrChallengeLocked    auditErrorCode = "challenge_locked"
	auditErrChallengeInvalid   auditErrorCode = "challenge_invalid"
	auditErrNotConfirmed       auditErrorCode = "reset_not_confirmed"
	auditErrPasswordPolicy     auditErrorCode = "password_policy"
	auditErrUnavailable        auditErrorCode = "backend_unavailable"
	auditErrInternal           auditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	subjectID string,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: e.now().UTC(),
		EventType: eventType,
		SubjectID: subjectID,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := classifyAuditError(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func classifyAuditError(err error) auditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrUnauthenticated):
		return auditErrUnauthenticated
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenMalformed),
		errors.Is(err, ErrWrongTokenKind):
		return auditErrInvalidToken
	case errors.Is(err, ErrSubjectNotFound):
		return auditErrSubjectNotFound
	case errors.Is(err, ErrAccountInactive):
		return auditErrAccountInactive
	case errors.Is(err, ErrEmailExists), errors.Is(err, ErrEmailTaken):
		return auditErrDuplicate
	case errors.Is(err, ErrChallengeLocked), errors.Is(err, otp.ErrLocked):
		return auditErrChallengeLocked
	case errors.Is(err, ErrNoChallenge),
		errors.Is(err, ErrWrongCode),
		errors.Is(err, ErrChallengeExpired):
		return auditErrChallengeInvalid
	case errors.Is(err, ErrResetNotConfirmed):
		return auditErrNotConfirmed
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrDeliveryUnavailable),
		errors.Is(err, ErrPersistenceUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
