package careauth

import (
	"errors"
	"time"

	"github.com/clinicore/careauth/password"
)

// Config carries all engine tunables. DefaultConfig returns the values the
// deployed service runs with; zero-value sub-configs fall back to the same
// defaults during New.
type Config struct {
	Token    TokenConfig
	OTP      OTPConfig
	Password PasswordConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

// TokenConfig governs JWT issuance. The refresh TTL exceeds the access TTL
// so a client holding an expired access token can still renew.
type TokenConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
}

// OTPConfig governs one-time-code challenges.
type OTPConfig struct {
	CodeTTL     time.Duration
	MaxAttempts int
	Lockout     time.Duration
	// RedisPrefix namespaces challenge keys when the redis store is used.
	RedisPrefix string
}

// PasswordConfig governs credential hashing and the plaintext policy.
type PasswordConfig struct {
	Argon     password.Config
	MinLength int
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the engine counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults: 61 minute access tokens,
// 70 minute refresh tokens, 4-digit codes valid 2 minutes with 3 attempts
// before a 3 minute lockout. The caller must still set Token.Secret.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  61 * time.Minute,
			RefreshTTL: 70 * time.Minute,
		},
		OTP: OTPConfig{
			CodeTTL:     2 * time.Minute,
			MaxAttempts: 3,
			Lockout:     3 * time.Minute,
		},
		Password: PasswordConfig{
			Argon:     password.DefaultConfig(),
			MinLength: 8,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func (c *Config) withDefaults() Config {
	cfg := *c
	def := DefaultConfig()

	if cfg.Token.AccessTTL <= 0 {
		cfg.Token.AccessTTL = def.Token.AccessTTL
	}
	if cfg.Token.RefreshTTL <= 0 {
		cfg.Token.RefreshTTL = def.Token.RefreshTTL
	}
	if cfg.OTP.CodeTTL <= 0 {
		cfg.OTP.CodeTTL = def.OTP.CodeTTL
	}
	if cfg.OTP.MaxAttempts <= 0 {
		cfg.OTP.MaxAttempts = def.OTP.MaxAttempts
	}
	if cfg.OTP.Lockout <= 0 {
		cfg.OTP.Lockout = def.OTP.Lockout
	}
	if cfg.Password.Argon == (password.Config{}) {
		cfg.Password.Argon = def.Password.Argon
	}
	if cfg.Password.MinLength <= 0 {
		cfg.Password.MinLength = def.Password.MinLength
	}
	if cfg.Audit.Enabled && cfg.Audit.BufferSize <= 0 {
		cfg.Audit.BufferSize = def.Audit.BufferSize
	}
	return cfg
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if len(c.Token.Secret) < 32 {
		return errors.New("careauth: token secret must be at least 32 bytes")
	}
	if c.Token.AccessTTL <= 0 || c.Token.RefreshTTL <= 0 {
		return errors.New("careauth: token TTLs must be positive")
	}
	if c.Token.RefreshTTL <= c.Token.AccessTTL {
		return errors.New("careauth: refresh TTL must exceed access TTL")
	}
	if c.OTP.CodeTTL <= 0 || c.OTP.Lockout <= 0 || c.OTP.MaxAttempts <= 0 {
		return errors.New("careauth: otp parameters must be positive")
	}
	return nil
}
