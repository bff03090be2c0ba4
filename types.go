package portalauth

import "time"

// LoginResult defines a public type used by portalauth APIs.
// It is returned by a successful credential check; the session token itself
// is only minted after the one-time code round trip.
type LoginResult struct {
	// OTPSent reports whether a one-time code was handed to a delivery sender.
	OTPSent bool
	// Recipient is the masked destination the code was sent to, for display.
	Recipient string
}

// OTPResult defines a public type used by portalauth APIs.
// It carries the freshly minted session token and the account attributes the
// portal frontend needs to route the user.
type OTPResult struct {
	Token     string
	Role      string
	StationID string
}

// VerifyResult defines a public type used by portalauth APIs.
type VerifyResult struct {
	Email     string
	Role      string
	StationID string
}

// PasswordChangeResult defines a public type used by portalauth APIs.
// Token is a fresh session token issued after rotation so the caller's
// current device stays signed in.
type PasswordChangeResult struct {
	Token string
}

// ForgotPasswordResult defines a public type used by portalauth APIs.
// CodeDigest is the hex SHA-256 of the issued code; the code itself only
// travels over the delivery channel.
type ForgotPasswordResult struct {
	CodeDigest string
}

// CreateAccountRequest defines a public type used by portalauth APIs.
type CreateAccountRequest struct {
	Email      string
	Credential string
	MobileNo   string
	StationID  string
	Role       string
}

// CreateAccountResult defines a public type used by portalauth APIs.
// Token is a long-lived signup token for first-login bootstrap.
type CreateAccountResult struct {
	Token string
}

// AccountSummary defines a public type used by portalauth APIs.
// It is the roster view of an account, with no credential material.
type AccountSummary struct {
	Email     string
	MobileNo  string
	Role      string
	StationID string
	CreatedAt time.Time
	Locked    bool
}
