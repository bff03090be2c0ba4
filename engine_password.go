package portalauth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/msscweb/portal-auth/account"
	"github.com/msscweb/portal-auth/internal"
)

// ChangePassword rotates the account's credential after verifying the old
// one. The retiring credential is pushed onto the bounded history list and
// the new one is rejected when it matches the current credential or any
// history entry. Rotation bumps the password epoch, so every outstanding
// session token goes stale; a fresh token bound to the new epoch is minted,
// recorded as an active session, and returned so the calling device stays
// signed in.
func (e *Engine) ChangePassword(ctx context.Context, email, oldDigest, newDigest string) (*PasswordChangeResult, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" || oldDigest == "" || newDigest == "" {
		return nil, ErrInvalidInput
	}

	changedAt := time.Now()
	err := e.accounts.RotatePassword(ctx, email, true, oldDigest, newDigest, e.config.Password.HistoryLimit, changedAt)
	if err != nil {
		mapped := e.rotateErr(err)
		switch {
		case errors.Is(mapped, ErrWrongOldPassword):
			e.metricInc(MetricPasswordChangeInvalidOld)
		case errors.Is(mapped, ErrPasswordReuse):
			e.metricInc(MetricPasswordChangeReuseRejected)
		}
		e.emitAudit(ctx, auditEventPasswordChangeFailure, false, email, mapped, nil)
		return nil, mapped
	}

	token, err := e.jwtManager.CreateSession(email, changedAt)
	if err != nil {
		return nil, err
	}

	if _, err := e.accounts.AppendSession(ctx, email, account.SessionRecord{
		Token:      token,
		DeviceInfo: deviceInfoFromContext(ctx),
		CreatedAt:  changedAt.Unix(),
	}, e.config.Session.MaxActiveSessions); err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, e.storeErr(err)
	}

	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, auditEventPasswordChangeSuccess, true, email, nil, nil)

	return &PasswordChangeResult{Token: token}, nil
}

// ForgotPassword starts a reset for the account owning the mobile number:
// it issues a one-time code, stores it as the single live code, and hands
// it to the SMS sender. The hex SHA-256 of the code is returned so the
// frontend can precheck user input without ever seeing the code itself.
func (e *Engine) ForgotPassword(ctx context.Context, mobile string) (*ForgotPasswordResult, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}
	if mobile == "" {
		return nil, ErrInvalidInput
	}

	acct, err := e.accounts.GetByMobile(ctx, mobile)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, e.storeErr(err)
	}

	code, err := internal.NewOTP(e.config.OTP.Digits)
	if err != nil {
		return nil, err
	}

	if err := e.accounts.SetOTP(ctx, acct.Email, code); err != nil {
		return nil, e.storeErr(err)
	}

	if err := e.smsSender.Send(ctx, mobile, code); err != nil {
		e.metricInc(MetricOTPDeliveryFailure)
		e.emitAudit(ctx, auditEventPasswordResetRequest, false, acct.Email, ErrOTPDelivery, nil)
		return nil, fmt.Errorf("%w: %v", ErrOTPDelivery, err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.metricInc(MetricOTPIssued)
	e.emitAudit(ctx, auditEventPasswordResetRequest, true, acct.Email, nil, nil)

	return &ForgotPasswordResult{CodeDigest: internal.HashHex(code)}, nil
}

// ResetPasswordWithOTP completes a reset: it consumes the live one-time
// code for the account owning the mobile number and rotates the credential
// under the same reuse rules as [Engine.ChangePassword], without requiring
// the old credential.
func (e *Engine) ResetPasswordWithOTP(ctx context.Context, mobile, code, newDigest string) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}
	if mobile == "" || code == "" || newDigest == "" {
		return ErrInvalidInput
	}

	acct, err := e.accounts.GetByMobile(ctx, mobile)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return ErrAccountNotFound
		}
		return e.storeErr(err)
	}

	ok, err := e.accounts.ConsumeOTP(ctx, acct.Email, code, e.config.OTP.Enforce)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return ErrAccountNotFound
		}
		return e.storeErr(err)
	}
	if !ok {
		e.metricInc(MetricOTPInvalid)
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetFailure, false, acct.Email, ErrOTPInvalid, nil)
		return ErrOTPInvalid
	}

	if err := e.accounts.RotatePassword(ctx, acct.Email, false, "", newDigest, e.config.Password.HistoryLimit, time.Now()); err != nil {
		mapped := e.rotateErr(err)
		e.metricInc(MetricPasswordResetFailure)
		e.emitAudit(ctx, auditEventPasswordResetFailure, false, acct.Email, mapped, nil)
		return mapped
	}

	e.metricInc(MetricPasswordResetSuccess)
	e.emitAudit(ctx, auditEventPasswordResetSuccess, true, acct.Email, nil, nil)

	return nil
}

func (e *Engine) rotateErr(err error) error {
	switch {
	case errors.Is(err, account.ErrNotFound):
		return ErrAccountNotFound
	case errors.Is(err, account.ErrWrongOldPassword):
		return ErrWrongOldPassword
	case errors.Is(err, account.ErrPasswordReuse):
		return ErrPasswordReuse
	default:
		return e.storeErr(err)
	}
}
