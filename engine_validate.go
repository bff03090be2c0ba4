package portalauth

import (
	"context"
	"errors"
	"time"

	"github.com/msscweb/portal-auth/account"
	"github.com/msscweb/portal-auth/jwt"
)

// VerifyToken runs the ordered validation chain over a session token and
// returns the authenticated identity. The checks run strictly in this
// order, and the first failure is terminal:
//
//  1. token missing            -> ErrTokenNotProvided
//  2. signature/expiry         -> ErrTokenInvalid / ErrTokenExpired
//  3. account gone             -> ErrAccountNotFound
//  4. not in active sessions   -> ErrSessionNotFound
//  5. blacklisted              -> ErrTokenInvalidated
//  6. issued before epoch bump -> ErrStalePassword
//
// Session membership is checked before the blacklist: a token that was
// evicted from the session list reports the session-expired outcome even
// when it also sits on the blacklist. Use [ShouldLogout] to decide whether
// a failure must force the client to sign in again.
func (e *Engine) VerifyToken(ctx context.Context, token string) (*VerifyResult, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	res, err := e.verifyToken(ctx, token)
	if e.metrics != nil {
		e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	}

	if err != nil {
		e.metricInc(MetricTokenRejected)
		email := ""
		if res != nil {
			email = res.Email
		}
		e.emitAudit(ctx, auditEventTokenRejected, false, email, err, nil)
		return nil, err
	}

	e.metricInc(MetricTokenVerified)
	e.emitAudit(ctx, auditEventTokenVerified, true, res.Email, nil, nil)
	return res, nil
}

func (e *Engine) verifyToken(ctx context.Context, token string) (*VerifyResult, error) {
	if token == "" {
		return nil, ErrTokenNotProvided
	}

	claims, err := e.jwtManager.Parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}

	partial := &VerifyResult{Email: claims.Email}

	acct, err := e.accounts.GetByEmail(ctx, claims.Email)
	if err != nil {
		if errors.Is(err, account.ErrNotFound) {
			return partial, ErrAccountNotFound
		}
		return partial, e.storeErr(err)
	}

	inSession, err := e.accounts.HasSession(ctx, claims.Email, token)
	if err != nil {
		return partial, e.storeErr(err)
	}
	if !inSession {
		return partial, ErrSessionNotFound
	}

	blacklisted, err := e.accounts.IsBlacklisted(ctx, claims.Email, token)
	if err != nil {
		return partial, e.storeErr(err)
	}
	if blacklisted {
		return partial, ErrTokenInvalidated
	}

	if claims.PasswordChangedAt < acct.PasswordChangedAt.Unix() {
		return partial, ErrStalePassword
	}

	return &VerifyResult{
		Email:     acct.Email,
		Role:      acct.Role,
		StationID: acct.StationID,
	}, nil
}
