package portalauth

import "errors"

var (
	// ErrInvalidInput is an exported constant or variable used by the authentication engine.
	ErrInvalidInput = errors.New("invalid input")
	// ErrAccountNotFound is an exported constant or variable used by the authentication engine.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountLocked is an exported constant or variable used by the authentication engine.
	ErrAccountLocked = errors.New("account locked")
	// ErrInvalidCredential is an exported constant or variable used by the authentication engine.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrAccountExists is an exported constant or variable used by the authentication engine.
	ErrAccountExists = errors.New("account already exists")
	// ErrOTPInvalid is an exported constant or variable used by the authentication engine.
	ErrOTPInvalid = errors.New("invalid one-time code")
	// ErrOTPDelivery is an exported constant or variable used by the authentication engine.
	ErrOTPDelivery = errors.New("one-time code delivery failed")
	// ErrPasswordReuse is an exported constant or variable used by the authentication engine.
	ErrPasswordReuse = errors.New("password was already used")
	// ErrWrongOldPassword is an exported constant or variable used by the authentication engine.
	ErrWrongOldPassword = errors.New("old password is wrong")
	// ErrTokenNotProvided is an exported constant or variable used by the authentication engine.
	ErrTokenNotProvided = errors.New("token not provided")
	// ErrTokenExpired is an exported constant or variable used by the authentication engine.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrSessionNotFound is an exported constant or variable used by the authentication engine.
	ErrSessionNotFound = errors.New("session not found or expired")
	// ErrTokenInvalidated is an exported constant or variable used by the authentication engine.
	ErrTokenInvalidated = errors.New("token has been invalidated")
	// ErrStalePassword is an exported constant or variable used by the authentication engine.
	ErrStalePassword = errors.New("password changed after token was issued")
	// ErrStoreUnavailable is an exported constant or variable used by the authentication engine.
	ErrStoreUnavailable = errors.New("account store unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// ShouldLogout reports whether a token-validation failure must force the
// client back to the login screen, as opposed to a transient failure the
// client may retry. Every terminal rejection of the validator state machine
// carries this advisory so clients never have to parse message text.
func ShouldLogout(err error) bool {
	switch {
	case errors.Is(err, ErrTokenNotProvided),
		errors.Is(err, ErrTokenExpired),
		errors.Is(err, ErrTokenInvalid),
		errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrSessionNotFound),
		errors.Is(err, ErrTokenInvalidated),
		errors.Is(err, ErrStalePassword):
		return true
	default:
		return false
	}
}
