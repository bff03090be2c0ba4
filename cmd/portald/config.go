package main

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/msscweb/portal-auth/notify"
)

// config contains the daemon's process configuration, loaded from the
// environment.
type config struct {
	LogLevel string      `env:"LOG_LEVEL" envDefault:"info"`
	HTTP     httpConfig  `envPrefix:"HTTP_"`
	Redis    redisConfig `envPrefix:"REDIS_"`
	JWT      jwtConfig   `envPrefix:"JWT_"`
	OTP      otpConfig   `envPrefix:"OTP_"`
	Audit    auditConfig `envPrefix:"AUDIT_"`
	Mail     notify.MailerConfig
	SMS      notify.SMSConfig
}

// httpConfig contains HTTP listener parameters.
type httpConfig struct {
	Host            string        `env:"HOST" envDefault:"0.0.0.0"`
	Port            int           `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`
	CORSOrigins     []string      `env:"CORS_ORIGINS" envDefault:"*"`
	LoginRateLimit  int           `env:"LOGIN_RATE_LIMIT" envDefault:"30"`
}

// redisConfig contains Redis connection parameters.
type redisConfig struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// jwtConfig contains token signing parameters. The secret has no default;
// the daemon refuses to start without one.
type jwtConfig struct {
	Secret     string        `env:"SECRET,required"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	SignupTTL  time.Duration `env:"SIGNUP_TTL" envDefault:"720h"`
	Issuer     string        `env:"ISSUER" envDefault:"portal-auth"`
}

// otpConfig controls one-time code issuance and delivery.
type otpConfig struct {
	Digits  int  `env:"DIGITS" envDefault:"6"`
	Enforce bool `env:"ENFORCE" envDefault:"true"`
	// MailEnabled and SMSEnabled switch the respective delivery channels on;
	// with both off, codes are only recorded in the account store.
	MailEnabled bool `env:"MAIL_ENABLED" envDefault:"false"`
	SMSEnabled  bool `env:"SMS_ENABLED" envDefault:"false"`
}

// auditConfig controls the audit event stream.
type auditConfig struct {
	Enabled    bool `env:"ENABLED" envDefault:"false"`
	BufferSize int  `env:"BUFFER_SIZE" envDefault:"1024"`
}

// loadConfig loads configuration from environment variables.
func loadConfig() (*config, error) {
	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
