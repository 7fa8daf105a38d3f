package careauth

import (
	"context"
	"errors"

	"github.com/clinicore/careauth/token"
)

// IssuePair mints a fresh access/refresh pair for subjectID. It does not
// consult the user repository; callers authenticate first.
func (e *Engine) IssuePair(ctx context.Context, subjectID string) (TokenPair, error) {
	if e == nil || e.tokens == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	if subjectID == "" {
		return TokenPair{}, ErrSubjectNotFound
	}

	now := e.now()
	access, err := e.tokens.Issue(subjectID, false, now)
	if err != nil {
		e.metricInc(MetricTokenIssueFailure)
		return TokenPair{}, err
	}
	refresh, err := e.tokens.Issue(subjectID, true, now)
	if err != nil {
		e.metricInc(MetricTokenIssueFailure)
		return TokenPair{}, err
	}

	e.metricInc(MetricTokenIssueSuccess)
	return TokenPair{Access: access, Refresh: refresh}, nil
}

// ValidateAccess checks an access token and returns the subject id it was
// issued to. A refresh token presented here fails with ErrWrongTokenKind.
func (e *Engine) ValidateAccess(ctx context.Context, raw string) (string, error) {
	if e == nil || e.tokens == nil {
		return "", ErrEngineNotReady
	}

	if e.metrics.LatencyEnabled() {
		start := e.now()
		defer func() { e.metrics.Observe(MetricValidateLatency, e.now().Sub(start)) }()
	}

	claims, err := e.tokens.Decode(raw, e.now())
	if err != nil {
		e.metricInc(MetricTokenValidateFailure)
		return "", mapTokenError(err)
	}
	if claims.Refresh {
		e.metricInc(MetricTokenValidateFailure)
		return "", ErrWrongTokenKind
	}

	e.metricInc(MetricTokenValidateSuccess)
	return claims.SubjectID, nil
}

// Renew exchanges a valid refresh token for a fresh pair. The subject must
// still exist in the repository; a token for a deleted account stops
// renewing even inside its validity window. The presented refresh token is
// not revoked and stays usable until its own expiry.
func (e *Engine) Renew(ctx context.Context, refreshToken string) (TokenPair, error) {
	if e == nil || e.tokens == nil || e.users == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	now := e.now()
	claims, err := e.tokens.Decode(refreshToken, now)
	if err != nil {
		mapped := mapTokenError(err)
		e.metricInc(MetricTokenRenewFailure)
		e.emitAudit(ctx, auditEventTokenRenewFailure, false, "", "", mapped, nil)
		return TokenPair{}, mapped
	}
	if !claims.Refresh {
		e.metricInc(MetricTokenRenewFailure)
		e.emitAudit(ctx, auditEventTokenRenewFailure, false, claims.SubjectID, "", ErrWrongTokenKind, nil)
		return TokenPair{}, ErrWrongTokenKind
	}

	if _, err := e.users.FindByID(ctx, claims.SubjectID); err != nil {
		mapped := mapRepoError(err)
		e.metricInc(MetricTokenRenewFailure)
		e.emitAudit(ctx, auditEventTokenRenewFailure, false, claims.SubjectID, "", mapped, nil)
		return TokenPair{}, mapped
	}

	access, err := e.tokens.Issue(claims.SubjectID, false, now)
	if err != nil {
		e.metricInc(MetricTokenRenewFailure)
		return TokenPair{}, err
	}
	refresh, err := e.tokens.Issue(claims.SubjectID, true, now)
	if err != nil {
		e.metricInc(MetricTokenRenewFailure)
		return TokenPair{}, err
	}

	e.metricInc(MetricTokenRenewSuccess)
	e.emitAudit(ctx, auditEventTokenRenewed, true, claims.SubjectID, "", nil, nil)
	return TokenPair{Access: access, Refresh: refresh}, nil
}

func mapTokenError(err error) error {
	switch {
	case errors.Is(err, token.ErrExpired):
		return ErrTokenExpired
	case errors.Is(err, token.ErrMalformed):
		return ErrTokenMalformed
	default:
		return err
	}
}
