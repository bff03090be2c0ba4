package portalauth

import (
	"context"
	"errors"
	"time"
)

const (
	auditEventLoginSuccess          = "login_success"
	auditEventLoginFailure          = "login_failure"
	auditEventLoginLocked           = "login_locked"
	auditEventAccountLockout        = "account_lockout"
	auditEventOTPIssued             = "otp_issued"
	auditEventOTPInvalid            = "otp_invalid"
	auditEventSessionCreated        = "session_created"
	auditEventTokenVerified         = "token_verified"
	auditEventTokenRejected         = "token_rejected"
	auditEventLogout                = "logout"
	auditEventPasswordChangeSuccess = "password_change_success"
	auditEventPasswordChangeFailure = "password_change_failure"
	auditEventPasswordResetRequest  = "password_reset_request"
	auditEventPasswordResetSuccess  = "password_reset_success"
	auditEventPasswordResetFailure  = "password_reset_failure"
	auditEventAccountCreated        = "account_created"
	auditEventAccountCreateFailure  = "account_create_failure"
	auditEventAccountDeleted        = "account_deleted"
)

// AuditErrorCode defines a public type used by portalauth APIs.
//
// AuditErrorCode instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditErrorCode string

const (
	auditErrInvalidCredentials AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked      AuditErrorCode = "account_locked"
	auditErrAccountNotFound    AuditErrorCode = "account_not_found"
	auditErrAccountExists      AuditErrorCode = "duplicate"
	auditErrOTPInvalid         AuditErrorCode = "otp_invalid"
	auditErrOTPDelivery        AuditErrorCode = "otp_delivery_failed"
	auditErrTokenMissing       AuditErrorCode = "token_missing"
	auditErrTokenExpired       AuditErrorCode = "token_expired"
	auditErrTokenInvalid       AuditErrorCode = "token_invalid"
	auditErrSessionNotFound    AuditErrorCode = "session_not_found"
	auditErrTokenInvalidated   AuditErrorCode = "token_invalidated"
	auditErrStalePassword      AuditErrorCode = "stale_password"
	auditErrPasswordReuse      AuditErrorCode = "password_reuse"
	auditErrWrongOldPassword   AuditErrorCode = "wrong_old_password"
	auditErrInvalidInput       AuditErrorCode = "invalid_input"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	email string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Email:     email,
		IP:        clientIPFromContext(ctx),
		Device:    deviceInfoFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredential):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrAccountNotFound):
		return auditErrAccountNotFound
	case errors.Is(err, ErrAccountExists):
		return auditErrAccountExists
	case errors.Is(err, ErrOTPInvalid):
		return auditErrOTPInvalid
	case errors.Is(err, ErrOTPDelivery):
		return auditErrOTPDelivery
	case errors.Is(err, ErrTokenNotProvided):
		return auditErrTokenMissing
	case errors.Is(err, ErrTokenExpired):
		return auditErrTokenExpired
	case errors.Is(err, ErrTokenInvalid):
		return auditErrTokenInvalid
	case errors.Is(err, ErrSessionNotFound):
		return auditErrSessionNotFound
	case errors.Is(err, ErrTokenInvalidated):
		return auditErrTokenInvalidated
	case errors.Is(err, ErrStalePassword):
		return auditErrStalePassword
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrWrongOldPassword):
		return auditErrWrongOldPassword
	case errors.Is(err, ErrInvalidInput):
		return auditErrInvalidInput
	case errors.Is(err, ErrStoreUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
