package portalauth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/msscweb/portal-auth/account"
	"github.com/msscweb/portal-auth/internal"
	"github.com/msscweb/portal-auth/jwt"
	"github.com/msscweb/portal-auth/notify"
)

// Engine defines a public type used by portalauth APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config     Config
	accounts   *account.Store
	jwtManager *jwt.Manager
	mailSender notify.Sender
	smsSender  notify.Sender
	audit      *auditDispatcher
	metrics    *Metrics
}

// Close describes the close operation and its observable behavior.
//
// Close does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Ping checks connectivity to the account store.
func (e *Engine) Ping(ctx context.Context) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	if err := e.accounts.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Salt returns a fresh random salt for the client-side rehash step of the
// login exchange. The salt is not persisted; it only blinds the stored
// digest for one request.
func (e *Engine) Salt(ctx context.Context) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	return internal.NewSalt(e.config.Password.SaltBytes)
}

// Login runs the credential check. digest must be the hex SHA-256 of the
// stored credential concatenated with salt, computed client side. On
// success a one-time code is issued, stored as the account's single live
// code, and handed to the mail sender; the session token is only minted
// once VerifyOTP consumes that code.
//
// Failed attempts increment the account's failure counter atomically; when
// the counter reaches the configured maximum the account locks for the
// configured duration and the counter resets.
func (e *Engine) Login(ctx context.Context, email, digest, salt string) (*LoginResult, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" || digest == "" || salt == "" {
		return nil, ErrInvalidInput
	}

	acct, err := e.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			e.metricInc(MetricLoginFailure)
			e.emitAudit(ctx, auditEventLoginFailure, false, email, ErrAccountNotFound, nil)
			return nil, ErrAccountNotFound
		}
		return nil, e.storeErr(err)
	}

	now := time.Now()
	if acct.Locked(now) {
		e.metricInc(MetricLoginWhileLocked)
		e.emitAudit(ctx, auditEventLoginLocked, false, email, ErrAccountLocked, func() map[string]string {
			return map[string]string{
				"lock_until": strconv.FormatInt(acct.LockUntil.Unix(), 10),
			}
		})
		return nil, ErrAccountLocked
	}

	if !verifyDigest(acct.Credential, salt, digest) {
		locked, attempts, ferr := e.accounts.RecordLoginFailure(
			ctx, email, e.config.Lockout.MaxFailedAttempts, now.Add(e.config.Lockout.LockDuration))
		if ferr != nil && !errors.Is(ferr, account.ErrNotFound) {
			return nil, e.storeErr(ferr)
		}

		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, email, ErrInvalidCredential, func() map[string]string {
			return map[string]string{
				"attempts": strconv.Itoa(attempts),
			}
		})
		if locked {
			e.metricInc(MetricAccountLockout)
			e.emitAudit(ctx, auditEventAccountLockout, false, email, ErrAccountLocked, nil)
		}
		return nil, ErrInvalidCredential
	}

	code, err := internal.NewOTP(e.config.OTP.Digits)
	if err != nil {
		return nil, err
	}

	if err := e.accounts.RecordLoginSuccess(ctx, email, code); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, e.storeErr(err)
	}

	if err := e.mailSender.Send(ctx, email, code); err != nil {
		e.metricInc(MetricOTPDeliveryFailure)
		e.emitAudit(ctx, auditEventOTPIssued, false, email, ErrOTPDelivery, nil)
		return nil, fmt.Errorf("%w: %v", ErrOTPDelivery, err)
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricOTPIssued)
	e.emitAudit(ctx, auditEventLoginSuccess, true, email, nil, nil)
	e.emitAudit(ctx, auditEventOTPIssued, true, email, nil, nil)

	return &LoginResult{
		OTPSent:   true,
		Recipient: maskEmail(email),
	}, nil
}

// VerifyOTP consumes the account's live one-time code and completes the
// login: it mints a session token bound to the current password epoch and
// records it in the account's active session list, evicting the oldest
// session beyond the cap.
func (e *Engine) VerifyOTP(ctx context.Context, email, code, deviceInfo string) (*OTPResult, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" || code == "" {
		return nil, ErrInvalidInput
	}
	if deviceInfo == "" {
		deviceInfo = deviceInfoFromContext(ctx)
	}

	acct, err := e.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, e.storeErr(err)
	}

	ok, err := e.accounts.ConsumeOTP(ctx, email, code, e.config.OTP.Enforce)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, e.storeErr(err)
	}
	if !ok {
		e.metricInc(MetricOTPInvalid)
		e.emitAudit(ctx, auditEventOTPInvalid, false, email, ErrOTPInvalid, nil)
		return nil, ErrOTPInvalid
	}

	token, err := e.jwtManager.CreateSession(email, acct.PasswordChangedAt)
	if err != nil {
		return nil, err
	}

	evicted, err := e.accounts.AppendSession(ctx, email, account.SessionRecord{
		Token:      token,
		DeviceInfo: deviceInfo,
		CreatedAt:  time.Now().Unix(),
	}, e.config.Session.MaxActiveSessions)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, e.storeErr(err)
	}
	if evicted {
		e.metricInc(MetricSessionEvicted)
	}

	e.metricInc(MetricSessionCreated)
	e.emitAudit(ctx, auditEventSessionCreated, true, email, nil, func() map[string]string {
		return map[string]string{
			"device": deviceInfo,
		}
	})

	return &OTPResult{
		Token:     token,
		Role:      acct.Role,
		StationID: acct.StationID,
	}, nil
}

// Logout moves the token from the account's active session list onto its
// blacklist, so the token is rejected even before its expiry.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	if token == "" {
		return ErrTokenNotProvided
	}

	claims, err := e.jwtManager.Parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return ErrTokenExpired
		}
		return ErrTokenInvalid
	}

	if _, err := e.accounts.BlacklistToken(ctx, claims.Email, token, e.config.Session.MaxBlacklisted); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return ErrAccountNotFound
		}
		return e.storeErr(err)
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, claims.Email, nil, nil)

	return nil
}

func (e *Engine) storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func verifyDigest(storedCredential, salt, digest string) bool {
	sum := sha256.Sum256([]byte(storedCredential + salt))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(digest))) == 1
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func maskEmail(email string) string {
	at := strings.IndexByte(email, '@')
	if at <= 1 {
		return email
	}
	return email[:1] + strings.Repeat("*", at-1) + email[at:]
}
