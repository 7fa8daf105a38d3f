package otp

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// memStore is a map-backed Store for lifecycle tests. The mutex stands in
// for the optimistic guard of the real backends.
type memStore struct {
	mu      sync.Mutex
	records map[string]*Challenge
}

func newMemStore() *memStore {
	return &memStore{records: make(map[string]*Challenge)}
}

func (s *memStore) key(subjectID string, purpose Purpose) string {
	return string(purpose) + ":" + subjectID
}

func (s *memStore) Get(_ context.Context, subjectID string, purpose Purpose) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch, ok := s.records[s.key(subjectID, purpose)]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ch
	return &cp, nil
}

func (s *memStore) Mutate(_ context.Context, subjectID string, purpose Purpose, fn func(cur *Challenge) (*Challenge, error)) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var cur *Challenge
	if existing, ok := s.records[s.key(subjectID, purpose)]; ok {
		cp := *existing
		cur = &cp
	}

	next, err := fn(cur)
	if err != nil {
		return nil, err
	}

	s.records[s.key(subjectID, purpose)] = next
	cp := *next
	return &cp, nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time        { return c.now }
func (c *fakeClock) Set(t time.Time)       { c.now = t }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestLifecycle(t *testing.T) (*Lifecycle, *memStore, *fakeClock) {
	t.Helper()

	store := newMemStore()
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	lc, err := NewLifecycle(store, Config{}, clock.Now)
	if err != nil {
		t.Fatalf("NewLifecycle failed: %v", err)
	}
	return lc, store, clock
}

func TestRequestIssuesFourDigitCode(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)
	ctx := context.Background()

	ch, err := lc.Request(ctx, "1", "a@x.com", PurposeEmailVerification)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	if len(ch.Code) != 4 {
		t.Fatalf("expected 4-digit code, got %q", ch.Code)
	}
	for _, r := range ch.Code {
		if r < '0' || r > '9' {
			t.Fatalf("non-digit in code %q", ch.Code)
		}
	}
	if ch.Code[0] == '0' {
		t.Fatalf("code %q outside 1000-9999", ch.Code)
	}
	if ch.AttemptsRemaining != 2 {
		t.Fatalf("expected 2 attempts remaining after first request, got %d", ch.AttemptsRemaining)
	}
	if got, want := ch.ExpiresAt, ch.CreatedAt.Add(2*time.Minute); !got.Equal(want) {
		t.Fatalf("expected expiry %v, got %v", want, got)
	}
}

func TestVerifySuccessClearsCode(t *testing.T) {
	lc, store, clock := newTestLifecycle(t)
	ctx := context.Background()

	ch, err := lc.Request(ctx, "1", "a@x.com", PurposeEmailVerification)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	clock.Advance(time.Minute)
	verified, err := lc.Verify(ctx, "1", PurposeEmailVerification, ch.Code)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !verified.Verified {
		t.Fatal("expected Verified=true")
	}
	if verified.Code != "" || !verified.ExpiresAt.IsZero() {
		t.Fatal("expected code and expiry cleared")
	}
	if verified.AttemptsRemaining != 3 {
		t.Fatalf("expected attempts reset to 3, got %d", verified.AttemptsRemaining)
	}

	stored, err := store.Get(ctx, "1", PurposeEmailVerification)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Code != "" {
		t.Fatal("code still present after verification")
	}
}

func TestVerifyNoChallenge(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)

	_, err := lc.Verify(context.Background(), "absent", PurposeEmailVerification, "1234")
	if !errors.Is(err, ErrNoChallenge) {
		t.Fatalf("expected ErrNoChallenge, got %v", err)
	}
}

func TestVerifyWrongCode(t *testing.T) {
	lc, store, _ := newTestLifecycle(t)
	ctx := context.Background()

	ch, err := lc.Request(ctx, "1", "a@x.com", PurposeEmailVerification)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	wrong := "0000"
	if wrong == ch.Code {
		wrong = "0001"
	}
	_, err = lc.Verify(ctx, "1", PurposeEmailVerification, wrong)
	if !errors.Is(err, ErrWrongCode) {
		t.Fatalf("expected ErrWrongCode, got %v", err)
	}

	// the stored code survives a failed attempt and never leaks
	stored, err := store.Get(ctx, "1", PurposeEmailVerification)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Code != ch.Code {
		t.Fatal("stored code changed on failed verify")
	}
}

func TestVerifyExpiredCode(t *testing.T) {
	lc, _, clock := newTestLifecycle(t)
	ctx := context.Background()

	ch, err := lc.Request(ctx, "1", "a@x.com", PurposeEmailVerification)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	// correct code, one second past the 2 minute window
	clock.Advance(2*time.Minute + time.Second)
	_, err = lc.Verify(ctx, "1", PurposeEmailVerification, ch.Code)
	if !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
}

func TestLockoutCycle(t *testing.T) {
	lc, _, clock := newTestLifecycle(t)
	ctx := context.Background()
	start := clock.Now()

	// three requests at t=0,1,2 exhaust the counter
	for i := 0; i < 3; i++ {
		clock.Set(start.Add(time.Duration(i) * time.Second))
		ch, err := lc.Request(ctx, "1", "a@x.com", PurposePasswordReset)
		if err != nil {
			t.Fatalf("request %d failed: %v", i+1, err)
		}
		if i == 2 {
			if ch.AttemptsRemaining != 0 {
				t.Fatalf("expected 0 attempts after third request, got %d", ch.AttemptsRemaining)
			}
			if want := start.Add(2*time.Second + 3*time.Minute); !ch.LockedUntil.Equal(want) {
				t.Fatalf("expected locked_until %v, got %v", want, ch.LockedUntil)
			}
		}
	}

	// t=100: inside the lockout window
	clock.Set(start.Add(100 * time.Second))
	_, err := lc.Request(ctx, "1", "a@x.com", PurposePasswordReset)
	if !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	var locked *LockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected LockedError, got %T", err)
	}
	if want := start.Add(182 * time.Second); !locked.Until.Equal(want) {
		t.Fatalf("expected lockout expiry %v, got %v", want, locked.Until)
	}

	// t=183: lockout elapsed, counter wraps back to full
	clock.Set(start.Add(183 * time.Second))
	ch, err := lc.Request(ctx, "1", "a@x.com", PurposePasswordReset)
	if err != nil {
		t.Fatalf("request after lockout failed: %v", err)
	}
	if ch.AttemptsRemaining != 3 {
		t.Fatalf("expected attempts reset to 3 after lockout, got %d", ch.AttemptsRemaining)
	}
	if !ch.LockedUntil.IsZero() {
		t.Fatalf("expected lockout cleared, got %v", ch.LockedUntil)
	}
}

func TestRequestSupersedesPendingCode(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)
	ctx := context.Background()

	first, err := lc.Request(ctx, "1", "a@x.com", PurposeEmailVerification)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}
	second, err := lc.Request(ctx, "1", "a@x.com", PurposeEmailVerification)
	if err != nil {
		t.Fatalf("second Request failed: %v", err)
	}

	if first.Code == second.Code {
		t.Skip("codes collided; 1-in-9000 chance, rerun")
	}
	if _, err := lc.Verify(ctx, "1", PurposeEmailVerification, first.Code); !errors.Is(err, ErrWrongCode) {
		t.Fatalf("superseded code should fail WrongCode, got %v", err)
	}
	if _, err := lc.Verify(ctx, "1", PurposeEmailVerification, second.Code); err != nil {
		t.Fatalf("latest code should verify: %v", err)
	}
}

func TestPurposesDoNotShareState(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)
	ctx := context.Background()

	reset, err := lc.Request(ctx, "1", "a@x.com", PurposePasswordReset)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	// a reset code must not confirm an email change
	_, err = lc.Verify(ctx, "1", PurposeEmailChange, reset.Code)
	if !errors.Is(err, ErrNoChallenge) {
		t.Fatalf("expected ErrNoChallenge for foreign purpose, got %v", err)
	}
}

func TestResetConfirmationGate(t *testing.T) {
	lc, _, _ := newTestLifecycle(t)
	ctx := context.Background()

	if err := lc.ConsumeResetConfirmation(ctx, "1"); !errors.Is(err, ErrNoChallenge) {
		t.Fatalf("expected ErrNoChallenge, got %v", err)
	}

	ch, err := lc.Request(ctx, "1", "a@x.com", PurposePasswordReset)
	if err != nil {
		t.Fatalf("Request failed: %v", err)
	}

	// not yet verified
	if err := lc.MarkResetConfirmed(ctx, "1"); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed before verify, got %v", err)
	}
	if err := lc.ConsumeResetConfirmation(ctx, "1"); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed, got %v", err)
	}

	if _, err := lc.Verify(ctx, "1", PurposePasswordReset, ch.Code); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if err := lc.MarkResetConfirmed(ctx, "1"); err != nil {
		t.Fatalf("MarkResetConfirmed failed: %v", err)
	}
	if err := lc.ConsumeResetConfirmation(ctx, "1"); err != nil {
		t.Fatalf("ConsumeResetConfirmation failed: %v", err)
	}

	// spent: a second consume must fail
	if err := lc.ConsumeResetConfirmation(ctx, "1"); !errors.Is(err, ErrNotConfirmed) {
		t.Fatalf("expected ErrNotConfirmed after consume, got %v", err)
	}
}
