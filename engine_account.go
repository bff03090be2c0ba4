package portalauth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/msscweb/portal-auth/account"
)

// CreateAccount provisions a portal account and returns a long-lived signup
// token for first-login bootstrap. The email must be free.
func (e *Engine) CreateAccount(ctx context.Context, req CreateAccountRequest) (*CreateAccountResult, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	email := normalizeEmail(req.Email)
	if email == "" || !strings.Contains(email, "@") || req.Credential == "" {
		return nil, ErrInvalidInput
	}

	now := time.Now()
	err := e.accounts.Create(ctx, &account.Account{
		Email:             email,
		Credential:        req.Credential,
		MobileNo:          req.MobileNo,
		Role:              req.Role,
		StationID:         req.StationID,
		PasswordChangedAt: now,
		CreatedAt:         now,
	})
	if err != nil {
		if errors.Is(err, account.ErrExists) {
			e.metricInc(MetricAccountCreationDuplicate)
			e.emitAudit(ctx, auditEventAccountCreateFailure, false, email, ErrAccountExists, nil)
			return nil, ErrAccountExists
		}
		return nil, e.storeErr(err)
	}

	token, err := e.jwtManager.CreateSignup(email)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricAccountCreationSuccess)
	e.emitAudit(ctx, auditEventAccountCreated, true, email, nil, func() map[string]string {
		return map[string]string{
			"role":    req.Role,
			"station": req.StationID,
		}
	})

	return &CreateAccountResult{Token: token}, nil
}

// Accounts returns the roster of portal accounts without credential
// material.
func (e *Engine) Accounts(ctx context.Context) ([]AccountSummary, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	accts, err := e.accounts.List(ctx)
	if err != nil {
		return nil, e.storeErr(err)
	}

	now := time.Now()
	out := make([]AccountSummary, 0, len(accts))
	for _, a := range accts {
		out = append(out, AccountSummary{
			Email:     a.Email,
			MobileNo:  a.MobileNo,
			Role:      a.Role,
			StationID: a.StationID,
			CreatedAt: a.CreatedAt,
			Locked:    a.Locked(now),
		})
	}
	return out, nil
}

// DeleteAccount removes an account, its sessions, its blacklist, and its
// password history.
func (e *Engine) DeleteAccount(ctx context.Context, email string) error {
	if e == nil || e.accounts == nil {
		return ErrEngineNotReady
	}

	email = normalizeEmail(email)
	if email == "" {
		return ErrInvalidInput
	}

	existed, err := e.accounts.Delete(ctx, email)
	if err != nil {
		return e.storeErr(err)
	}
	if !existed {
		return ErrAccountNotFound
	}

	e.metricInc(MetricAccountDeleted)
	e.emitAudit(ctx, auditEventAccountDeleted, true, email, nil, nil)

	return nil
}
