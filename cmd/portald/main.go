// Command portald runs the portal authentication service: the Redis-backed
// auth engine behind the HTTP endpoint contract the portal frontend uses.
package main

import (
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	portalauth "github.com/msscweb/portal-auth"
	"github.com/msscweb/portal-auth/httpapi"
	"github.com/msscweb/portal-auth/notify"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := loadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	engineCfg := portalauth.DefaultConfig()
	engineCfg.JWT.Secret = []byte(cfg.JWT.Secret)
	engineCfg.JWT.SessionTTL = cfg.JWT.SessionTTL
	engineCfg.JWT.SignupTTL = cfg.JWT.SignupTTL
	engineCfg.JWT.Issuer = cfg.JWT.Issuer
	engineCfg.OTP.Digits = cfg.OTP.Digits
	engineCfg.OTP.Enforce = cfg.OTP.Enforce
	engineCfg.Audit.Enabled = cfg.Audit.Enabled
	engineCfg.Audit.BufferSize = cfg.Audit.BufferSize
	engineCfg.Metrics.Enabled = true

	builder := portalauth.New().
		WithConfig(engineCfg).
		WithRedis(rdb)

	if cfg.Audit.Enabled {
		builder = builder.WithAuditSink(portalauth.NewJSONWriterSink(os.Stdout))
	}

	if cfg.OTP.MailEnabled {
		mailer, err := notify.NewMailer(cfg.Mail)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure mail sender")
		}
		builder = builder.WithMailSender(mailer)
	}

	if cfg.OTP.SMSEnabled {
		sms, err := notify.NewSMSSender(cfg.SMS, nil)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure sms sender")
		}
		builder = builder.WithSMSSender(sms)
	}

	engine, err := builder.Build()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build auth engine")
	}

	srv := httpapi.New(httpapi.Config{
		Host:            cfg.HTTP.Host,
		Port:            cfg.HTTP.Port,
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout,
		CORSOrigins:     cfg.HTTP.CORSOrigins,
		LoginRateLimit:  cfg.HTTP.LoginRateLimit,
	}, engine, logger)

	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("server exited with error")
	}
}
