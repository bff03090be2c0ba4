package portalauth

import (
	"errors"
	"time"
)

// Config defines a public type used by portalauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Lockout  LockoutConfig
	Password PasswordConfig
	OTP      OTPConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig defines a public type used by portalauth APIs.
//
// JWTConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type JWTConfig struct {
	Secret     []byte
	SessionTTL time.Duration
	SignupTTL  time.Duration
	Issuer     string
	Leeway     time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig defines a public type used by portalauth APIs.
//
// SessionConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type SessionConfig struct {
	RedisPrefix       string
	MaxActiveSessions int
	MaxBlacklisted    int
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig defines a public type used by portalauth APIs.
//
// LockoutConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LockoutConfig struct {
	MaxFailedAttempts int
	LockDuration      time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by portalauth APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	HistoryLimit int
	SaltBytes    int
}

/*
====================================
OTP CONFIG
====================================
*/

// OTPConfig defines a public type used by portalauth APIs.
//
// OTPConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type OTPConfig struct {
	Digits int
	// Enforce controls whether VerifyOTP compares the submitted code against
	// the stored one. Always leave this on outside of migration tooling.
	Enforce bool
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig defines a public type used by portalauth APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig defines a public type used by portalauth APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig describes the defaultconfig operation and its observable behavior.
//
// DefaultConfig returns a Config with every section populated; callers only
// need to supply JWT.Secret before Build.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			SessionTTL: 24 * time.Hour,
			SignupTTL:  720 * time.Hour,
			Issuer:     "portal-auth",
			Leeway:     30 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix:       "acct",
			MaxActiveSessions: 5,
			MaxBlacklisted:    10,
		},
		Lockout: LockoutConfig{
			MaxFailedAttempts: 10,
			LockDuration:      30 * time.Minute,
		},
		Password: PasswordConfig{
			HistoryLimit: 5,
			SaltBytes:    16,
		},
		OTP: OTPConfig{
			Digits:  6,
			Enforce: true,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.Secret = cloneBytes(cfg.JWT.Secret)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when input validation, dependency calls, or security checks fail.
// Validate does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.Secret) == 0 {
		return errors.New("JWT Secret must be set")
	}
	if c.JWT.SessionTTL <= 0 {
		return errors.New("JWT SessionTTL must be > 0")
	}
	if c.JWT.SignupTTL <= 0 {
		return errors.New("JWT SignupTTL must be > 0")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}

	// Session
	if c.Session.RedisPrefix == "" {
		return errors.New("Session RedisPrefix must be set")
	}
	if c.Session.MaxActiveSessions <= 0 {
		return errors.New("Session MaxActiveSessions must be > 0")
	}
	if c.Session.MaxBlacklisted <= 0 {
		return errors.New("Session MaxBlacklisted must be > 0")
	}

	// Lockout
	if c.Lockout.MaxFailedAttempts <= 0 {
		return errors.New("Lockout MaxFailedAttempts must be > 0")
	}
	if c.Lockout.LockDuration <= 0 {
		return errors.New("Lockout LockDuration must be > 0")
	}

	// Password
	if c.Password.HistoryLimit <= 0 {
		return errors.New("Password HistoryLimit must be > 0")
	}
	if c.Password.SaltBytes < 16 {
		return errors.New("Password SaltBytes must be >= 16")
	}

	// OTP
	if c.OTP.Digits < 6 || c.OTP.Digits > 10 {
		return errors.New("OTP Digits must be between 6 and 10")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when Audit is enabled")
	}

	return nil
}
