// Package middleware provides the HTTP enforcement layer: the Guard that
// authenticates requests against the engine, and a per-client rate limit
// for the unauthenticated endpoints.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	careauth "github.com/clinicore/careauth"
)

type subjectContextKey struct{}

// SubjectFromContext returns the authenticated subject id bound by Guard.
func SubjectFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(subjectContextKey{}).(string)
	return id, ok
}

// TokenValidator is the slice of the engine the Guard needs.
type TokenValidator interface {
	ValidateAccess(ctx context.Context, raw string) (string, error)
}

// Options configures the Guard.
type Options struct {
	// OpenPaths are request path prefixes that bypass authentication
	// entirely. The check runs before any token is read, so requests to
	// open paths never fail on a stale cookie.
	OpenPaths []string
	// CookieName is the fallback token source when no Authorization
	// header is present. Empty disables the cookie fallback.
	CookieName string
}

// Guard authenticates every request not matching an open path prefix and
// binds the subject id to the request context. Failures answer 401 with a
// reason string distinguishing missing, expired, malformed, and
// wrong-kind credentials.
func Guard(validator TokenValidator, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range opts.OpenPaths {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}

			if validator == nil {
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}

			raw, ok := requestToken(r, opts.CookieName)
			if !ok {
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}

			subjectID, err := validator.ValidateAccess(r.Context(), raw)
			if err != nil {
				http.Error(w, rejectionReason(err), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), subjectContextKey{}, subjectID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestToken reads the bearer token, falling back to the named cookie.
func requestToken(r *http.Request, cookieName string) (string, bool) {
	if token, ok := bearerToken(r.Header.Get("Authorization")); ok {
		return token, true
	}
	if cookieName == "" {
		return "", false
	}
	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	token := value[len(bearer):]
	if token == "" {
		return "", false
	}
	return token, true
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, careauth.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, careauth.ErrTokenMalformed):
		return "token malformed"
	case errors.Is(err, careauth.ErrWrongTokenKind):
		return "wrong token kind"
	default:
		return "unauthenticated"
	}
}
