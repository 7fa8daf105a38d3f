package otp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, ""), mr
}

func TestRedisStoreGetMissing(t *testing.T) {
	store, _ := newTestRedisStore(t)

	_, err := store.Get(context.Background(), "1", PurposeEmailVerification)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRedisStoreMutateCreatesAndReads(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	created, err := store.Mutate(ctx, "1", PurposeEmailVerification, func(cur *Challenge) (*Challenge, error) {
		if cur != nil {
			t.Fatalf("expected nil cur on first mutate, got %+v", cur)
		}
		return &Challenge{
			SubjectID:         "1",
			TargetEmail:       "a@x.com",
			Purpose:           PurposeEmailVerification,
			Code:              "4821",
			ExpiresAt:         now.Add(2 * time.Minute),
			AttemptsRemaining: 2,
			CreatedAt:         now,
			UpdatedAt:         now,
		}, nil
	})
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}
	if created.Code != "4821" {
		t.Fatalf("unexpected code %q", created.Code)
	}

	got, err := store.Get(ctx, "1", PurposeEmailVerification)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Code != "4821" || got.TargetEmail != "a@x.com" || got.AttemptsRemaining != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if !got.ExpiresAt.Equal(now.Add(2 * time.Minute)) {
		t.Fatalf("expiry did not survive round trip: %v", got.ExpiresAt)
	}
}

func TestRedisStoreMutateSeesCurrent(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, err := store.Mutate(ctx, "1", PurposePasswordReset, func(cur *Challenge) (*Challenge, error) {
		return &Challenge{SubjectID: "1", Purpose: PurposePasswordReset, AttemptsRemaining: 3}, nil
	})
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}

	updated, err := store.Mutate(ctx, "1", PurposePasswordReset, func(cur *Challenge) (*Challenge, error) {
		if cur == nil {
			t.Fatal("expected existing record")
		}
		cur.AttemptsRemaining--
		return cur, nil
	})
	if err != nil {
		t.Fatalf("second Mutate failed: %v", err)
	}
	if updated.AttemptsRemaining != 2 {
		t.Fatalf("expected 2 attempts, got %d", updated.AttemptsRemaining)
	}
}

func TestRedisStoreMutateAbortsOnCallbackError(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	boom := errors.New("boom")
	_, err := store.Mutate(ctx, "1", PurposeEmailChange, func(cur *Challenge) (*Challenge, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error unchanged, got %v", err)
	}

	// aborted mutation must not leave a record behind
	if _, err := store.Get(ctx, "1", PurposeEmailChange); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after aborted mutate, got %v", err)
	}
}

func TestRedisStorePurposeKeysAreDisjoint(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	for _, p := range []Purpose{PurposeEmailVerification, PurposeEmailChange, PurposePasswordReset} {
		_, err := store.Mutate(ctx, "1", p, func(cur *Challenge) (*Challenge, error) {
			return &Challenge{SubjectID: "1", Purpose: p, Code: string(p)[:4]}, nil
		})
		if err != nil {
			t.Fatalf("Mutate(%s) failed: %v", p, err)
		}
	}

	for _, p := range []Purpose{PurposeEmailVerification, PurposeEmailChange, PurposePasswordReset} {
		got, err := store.Get(ctx, "1", p)
		if err != nil {
			t.Fatalf("Get(%s) failed: %v", p, err)
		}
		if got.Purpose != p {
			t.Fatalf("purpose mismatch: want %s, got %s", p, got.Purpose)
		}
	}
}

func TestRedisStoreCorruptRecord(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	mr.Set("cav:email_verification:1", "{not json")

	if _, err := store.Get(ctx, "1", PurposeEmailVerification); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newTestRedisStore(t)
	mr.Close()

	if _, err := store.Get(context.Background(), "1", PurposeEmailVerification); !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("expected ErrStoreUnavailable, got %v", err)
	}
	_, err := store.Mutate(context.Background(), "1", PurposeEmailVerification, func(cur *Challenge) (*Challenge, error) {
		return &Challenge{SubjectID: "1"}, nil
	})
	if err == nil {
		t.Fatal("expected error against closed redis")
	}
}
