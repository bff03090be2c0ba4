package portalauth

import (
	"testing"
	"time"
)

func validTestConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("secret")
	return cfg
}

func TestDefaultConfigValidatesWithSecret(t *testing.T) {
	cfg := validTestConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.JWT.Secret = nil }},
		{"zero session ttl", func(c *Config) { c.JWT.SessionTTL = 0 }},
		{"zero signup ttl", func(c *Config) { c.JWT.SignupTTL = 0 }},
		{"negative leeway", func(c *Config) { c.JWT.Leeway = -time.Second }},
		{"empty prefix", func(c *Config) { c.Session.RedisPrefix = "" }},
		{"zero session cap", func(c *Config) { c.Session.MaxActiveSessions = 0 }},
		{"zero blacklist cap", func(c *Config) { c.Session.MaxBlacklisted = 0 }},
		{"zero lockout threshold", func(c *Config) { c.Lockout.MaxFailedAttempts = 0 }},
		{"zero lock duration", func(c *Config) { c.Lockout.LockDuration = 0 }},
		{"zero history limit", func(c *Config) { c.Password.HistoryLimit = 0 }},
		{"short salt", func(c *Config) { c.Password.SaltBytes = 8 }},
		{"otp too short", func(c *Config) { c.OTP.Digits = 4 }},
		{"otp too long", func(c *Config) { c.OTP.Digits = 12 }},
		{"audit without buffer", func(c *Config) { c.Audit.Enabled = true; c.Audit.BufferSize = 0 }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validTestConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestBuilderRequiresRedis(t *testing.T) {
	if _, err := New().WithConfig(validTestConfig()).Build(); err == nil {
		t.Fatal("expected error without redis client")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	_, rdb := newTestRedis(t)

	b := New().WithConfig(validTestConfig()).WithRedis(rdb)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	if _, err := b.Build(); err == nil {
		t.Fatal("expected error reusing builder")
	}
}
