package careauth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestIssueAndValidate(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()

	pair, err := env.engine.IssuePair(ctx, "subject-1")
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}
	if pair.Access == "" || pair.Refresh == "" || pair.Access == pair.Refresh {
		t.Fatalf("bad pair: %+v", pair)
	}

	got, err := env.engine.ValidateAccess(ctx, pair.Access)
	if err != nil {
		t.Fatalf("ValidateAccess failed: %v", err)
	}
	if got != "subject-1" {
		t.Fatalf("expected subject-1, got %q", got)
	}
}

func TestValidateRejectsRefreshToken(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()

	pair, err := env.engine.IssuePair(ctx, "subject-1")
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}

	if _, err := env.engine.ValidateAccess(ctx, pair.Refresh); !errors.Is(err, ErrWrongTokenKind) {
		t.Fatalf("expected ErrWrongTokenKind, got %v", err)
	}
}

func TestValidateExpiredAccess(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()

	pair, err := env.engine.IssuePair(ctx, "subject-1")
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}

	env.clock.Advance(61*time.Minute + time.Second)
	if _, err := env.engine.ValidateAccess(ctx, pair.Access); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestValidateMalformed(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()

	for _, raw := range []string{"", "garbage", "a.b.c"} {
		if _, err := env.engine.ValidateAccess(ctx, raw); !errors.Is(err, ErrTokenMalformed) {
			t.Fatalf("input %q: expected ErrTokenMalformed, got %v", raw, err)
		}
	}
}

func TestRenewAfterAccessExpiry(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	env.registerSubject(t, "subject-1", "pat@clinic.test", "initial-pass1")

	pair, err := env.engine.IssuePair(ctx, "subject-1")
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}

	// past access expiry but inside the refresh window
	env.clock.Advance(65 * time.Minute)

	if _, err := env.engine.ValidateAccess(ctx, pair.Access); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected expired access, got %v", err)
	}

	fresh, err := env.engine.Renew(ctx, pair.Refresh)
	if err != nil {
		t.Fatalf("Renew failed: %v", err)
	}
	got, err := env.engine.ValidateAccess(ctx, fresh.Access)
	if err != nil {
		t.Fatalf("renewed access invalid: %v", err)
	}
	if got != "subject-1" {
		t.Fatalf("expected subject-1, got %q", got)
	}
}

func TestRenewRejectsAccessToken(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()

	pair, err := env.engine.IssuePair(ctx, "subject-1")
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}

	if _, err := env.engine.Renew(ctx, pair.Access); !errors.Is(err, ErrWrongTokenKind) {
		t.Fatalf("expected ErrWrongTokenKind, got %v", err)
	}
}

func TestRenewDoesNotRevokeOldRefresh(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()
	env.registerSubject(t, "subject-1", "pat@clinic.test", "initial-pass1")

	pair, err := env.engine.IssuePair(ctx, "subject-1")
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}

	if _, err := env.engine.Renew(ctx, pair.Refresh); err != nil {
		t.Fatalf("first Renew failed: %v", err)
	}
	// the spent refresh token is still accepted until its own expiry
	if _, err := env.engine.Renew(ctx, pair.Refresh); err != nil {
		t.Fatalf("second Renew with same token failed: %v", err)
	}
}

func TestRenewUnknownSubject(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()

	// issuance does not consult the repository, renewal does
	pair, err := env.engine.IssuePair(ctx, "ghost")
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}

	if _, err := env.engine.Renew(ctx, pair.Refresh); !errors.Is(err, ErrSubjectNotFound) {
		t.Fatalf("expected ErrSubjectNotFound, got %v", err)
	}
}

func TestRenewExpiredRefresh(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()

	pair, err := env.engine.IssuePair(ctx, "subject-1")
	if err != nil {
		t.Fatalf("IssuePair failed: %v", err)
	}

	env.clock.Advance(70*time.Minute + time.Second)
	if _, err := env.engine.Renew(ctx, pair.Refresh); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestTokenMetrics(t *testing.T) {
	env := newTestEngine(t)
	ctx := context.Background()

	pair, _ := env.engine.IssuePair(ctx, "subject-1")
	_, _ = env.engine.ValidateAccess(ctx, pair.Access)
	_, _ = env.engine.ValidateAccess(ctx, "garbage")

	snap := env.engine.MetricsSnapshot()
	if snap.Counters[MetricTokenIssueSuccess] != 1 {
		t.Fatalf("expected 1 issue, got %d", snap.Counters[MetricTokenIssueSuccess])
	}
	if snap.Counters[MetricTokenValidateSuccess] != 1 || snap.Counters[MetricTokenValidateFailure] != 1 {
		t.Fatalf("unexpected validate counters: %+v", snap.Counters)
	}
}
