package careauth

import (
	"time"

	"github.com/clinicore/careauth/internal/audit"
	"github.com/clinicore/careauth/otp"
	"github.com/clinicore/careauth/password"
	"github.com/clinicore/careauth/token"
)

// Engine drives the account verification and token lifecycle for the
// clinic backend. It is safe for concurrent use once constructed; all
// mutable state lives in the injected stores.
type Engine struct {
	config     Config
	tokens     *token.Manager
	challenges *otp.Lifecycle
	users      UserRepository
	messenger  Messenger
	policy     PasswordPolicy
	hasher     *password.Hasher
	audit      *audit.Dispatcher
	metrics    *Metrics
	clock      Clock
}

// Deps are the collaborators the host application supplies. Users,
// Messenger, and Challenges are required; the rest default sensibly.
type Deps struct {
	Users      UserRepository
	Messenger  Messenger
	Challenges otp.Store
	AuditSink  AuditSink
	Policy     PasswordPolicy
	Clock      Clock
}

func New(cfg Config, deps Deps) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if deps.Users == nil || deps.Messenger == nil || deps.Challenges == nil {
		return nil, ErrEngineNotReady
	}

	clock := deps.Clock
	if clock == nil {
		clock = ClockFunc(time.Now)
	}

	tokens, err := token.NewManager(token.Config{
		Secret:     cfg.Token.Secret,
		AccessTTL:  cfg.Token.AccessTTL,
		RefreshTTL: cfg.Token.RefreshTTL,
		Issuer:     cfg.Token.Issuer,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewHasher(cfg.Password.Argon)
	if err != nil {
		return nil, err
	}

	policy := deps.Policy
	if policy == nil {
		policy = password.LengthPolicy{MinLength: cfg.Password.MinLength}
	}

	lifecycle, err := otp.NewLifecycle(deps.Challenges, otp.Config{
		CodeTTL:     cfg.OTP.CodeTTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
		Lockout:     cfg.OTP.Lockout,
	}, clock.Now)
	if err != nil {
		return nil, err
	}

	return &Engine{
		config:     cfg,
		tokens:     tokens,
		challenges: lifecycle,
		users:      deps.Users,
		messenger:  deps.Messenger,
		policy:     policy,
		hasher:     hasher,
		audit: audit.NewDispatcher(audit.Config{
			Enabled:    cfg.Audit.Enabled,
			BufferSize: cfg.Audit.BufferSize,
			DropIfFull: cfg.Audit.DropIfFull,
		}, deps.AuditSink),
		metrics: NewMetrics(cfg.Metrics),
		clock:   clock,
	}, nil
}

// Close flushes and stops the audit dispatcher. The engine must not be
// used after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

func (e *Engine) now() time.Time {
	if e == nil || e.clock == nil {
		return time.Now()
	}
	return e.clock.Now()
}

// MetricsSnapshot returns a point-in-time copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports audit events discarded under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}
