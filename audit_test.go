package careauth

import (
	"context"
	"testing"
	"time"
)

func TestAuditTrailEmitsLoginEvents(t *testing.T) {
	repo := newMockRepo()
	messenger := &mockMessenger{}
	store := newMemChallengeStore()
	sink := NewChannelSink(16)

	cfg := DefaultConfig()
	cfg.Token.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Argon.Memory = 8 * 1024
	cfg.Password.Argon.Time = 1
	cfg.Password.Argon.Parallelism = 1

	engine, err := New(cfg, Deps{
		Users:      repo,
		Messenger:  messenger,
		Challenges: store,
		AuditSink:  sink,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer engine.Close()

	ctx := WithClientIP(context.Background(), "203.0.113.7")
	if _, err := engine.Login(ctx, "ghost@clinic.test", "whatever-pass"); err == nil {
		t.Fatal("expected login failure")
	}

	select {
	case event := <-sink.Events():
		if event.EventType != auditEventLoginFailure {
			t.Fatalf("expected login_failure, got %q", event.EventType)
		}
		if event.Success {
			t.Fatal("expected Success=false")
		}
		if event.IP != "203.0.113.7" {
			t.Fatalf("expected client ip on event, got %q", event.IP)
		}
		if event.Error == "" {
			t.Fatal("expected error code on event")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no audit event emitted")
	}
}

func TestAuditDisabledDropsNothing(t *testing.T) {
	env := newTestEngine(t) // audit disabled in the fixture

	if env.engine.AuditDropped() != 0 {
		t.Fatal("expected zero dropped on disabled dispatcher")
	}
}
