package token

import (
	"errors"
	"testing"
	"time"
)

// Decode handles arbitrary input: every failure must be a typed error,
// never a panic.
func FuzzDecode(f *testing.F) {
	m, err := NewManager(Config{
		Secret:     []byte("fuzz-secret-material"),
		AccessTTL:  61 * time.Minute,
		RefreshTTL: 70 * time.Minute,
	})
	if err != nil {
		f.Fatalf("NewManager failed: %v", err)
	}

	valid, err := m.Issue("fuzz-subject", false, time.Now())
	if err != nil {
		f.Fatalf("Issue failed: %v", err)
	}

	f.Add(valid)
	f.Add("")
	f.Add("a.b.c")
	f.Add("eyJhbGciOiJub25lIn0.e30.")

	f.Fuzz(func(t *testing.T, raw string) {
		claims, err := m.Decode(raw, time.Now())
		if err != nil {
			if !errors.Is(err, ErrMalformed) && !errors.Is(err, ErrExpired) {
				t.Fatalf("untyped decode error: %v", err)
			}
			return
		}
		if claims.SubjectID == "" {
			t.Fatal("accepted token without subject id")
		}
	})
}
