package careauth

import "errors"

var (
	// ErrUnauthenticated is returned when a request carries no usable
	// credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrTokenExpired is returned for a well-formed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed is returned for tokens that fail to parse or
	// verify.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrWrongTokenKind is returned when an access token is presented
	// where a refresh token is required, or the reverse.
	ErrWrongTokenKind = errors.New("wrong token kind")
	// ErrInvalidCredentials is returned on email or password mismatch at
	// login. The two cases are indistinguishable to the caller.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrEmailExists is returned when registration hits an existing
	// account.
	ErrEmailExists = errors.New("email already registered")
	// ErrEmailTaken is returned when an email change targets an address
	// already owned by another account.
	ErrEmailTaken = errors.New("email already in use")
	// ErrSubjectNotFound is returned when no account matches the given id
	// or email.
	ErrSubjectNotFound = errors.New("subject not found")
	// ErrAccountInactive is returned when the account was deactivated.
	ErrAccountInactive = errors.New("account inactive")
	// ErrChallengeLocked is returned while code generation is locked out.
	// Use errors.As with *otp.LockedError to read the expiry.
	ErrChallengeLocked = errors.New("challenge locked")
	// ErrNoChallenge is returned when a code is submitted but none was
	// requested.
	ErrNoChallenge = errors.New("no pending challenge")
	// ErrWrongCode is returned when the submitted code does not match.
	ErrWrongCode = errors.New("wrong code")
	// ErrChallengeExpired is returned when the code matched but its
	// validity window has closed.
	ErrChallengeExpired = errors.New("code expired")
	// ErrResetNotConfirmed is returned by ResetPassword before the reset
	// code has been confirmed.
	ErrResetNotConfirmed = errors.New("password reset not confirmed")
	// ErrPasswordPolicy is returned when a new password fails validation.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrDeliveryUnavailable wraps messenger failures.
	ErrDeliveryUnavailable = errors.New("code delivery unavailable")
	// ErrPersistenceUnavailable wraps storage backend failures.
	ErrPersistenceUnavailable = errors.New("persistence backend unavailable")
	// ErrEngineNotReady is returned when the engine is missing a required
	// dependency.
	ErrEngineNotReady = errors.New("engine not initialized")
)
