// Package account persists portal account documents in Redis and provides
// the atomic mutations the authentication engine depends on. Every
// read-modify-write on a single account runs as one Lua script, so two
// concurrent requests against the same account never lose updates.
package account

import (
	"strconv"
	"time"
)

// Account defines a public type used by portalauth APIs.
// It mirrors the persisted account document. Credential is the stored
// client-side digest, never a plaintext password.
type Account struct {
	Email             string
	Credential        string
	MobileNo          string
	Role              string
	StationID         string
	OTP               string
	FailedAttempts    int
	LockUntil         time.Time
	PasswordChangedAt time.Time
	CreatedAt         time.Time
}

// Locked reports whether the account is locked out at the given instant.
func (a *Account) Locked(now time.Time) bool {
	return !a.LockUntil.IsZero() && now.Before(a.LockUntil)
}

// SessionRecord defines a public type used by portalauth APIs.
// One active device session: the issued token plus the device description
// captured at issue time.
type SessionRecord struct {
	Token      string
	DeviceInfo string
	CreatedAt  int64
}

const (
	fieldEmail             = "email"
	fieldCredential        = "credential"
	fieldMobileNo          = "mobile_no"
	fieldRole              = "role"
	fieldStationID         = "station_id"
	fieldOTP               = "otp"
	fieldFailedAttempts    = "failed_attempts"
	fieldLockUntil         = "lock_until"
	fieldPasswordChangedAt = "password_changed_at"
	fieldCreatedAt         = "created_at"
)

func accountFromHash(h map[string]string) *Account {
	a := &Account{
		Email:      h[fieldEmail],
		Credential: h[fieldCredential],
		MobileNo:   h[fieldMobileNo],
		Role:       h[fieldRole],
		StationID:  h[fieldStationID],
		OTP:        h[fieldOTP],
	}
	a.FailedAttempts = parseInt(h[fieldFailedAttempts])
	a.LockUntil = parseUnix(h[fieldLockUntil])
	a.PasswordChangedAt = parseUnix(h[fieldPasswordChangedAt])
	a.CreatedAt = parseUnix(h[fieldCreatedAt])
	return a
}

func parseInt(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func parseUnix(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n == 0 {
		return time.Time{}
	}
	return time.Unix(n, 0).UTC()
}
