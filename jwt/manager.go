// Package jwt wraps github.com/golang-jwt/jwt/v5 behind a small manager that
// mints and parses the portal's HS256 tokens.
package jwt

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrExpired is returned when a token's exp claim has passed.
var ErrExpired = errors.New("token expired")

// ErrInvalid is returned for any other parse or signature failure.
var ErrInvalid = errors.New("token invalid")

// Config defines a public type used by portalauth APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	Secret     []byte
	SessionTTL time.Duration
	SignupTTL  time.Duration
	Issuer     string
	Leeway     time.Duration
}

// Manager defines a public type used by portalauth APIs.
//
// Manager instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Manager struct {
	config Config
}

// Claims defines a public type used by portalauth APIs.
// PasswordChangedAt carries the unix seconds of the account's last
// credential rotation; the validator compares it against the stored epoch.
type Claims struct {
	Email             string `json:"email"`
	PasswordChangedAt int64  `json:"passwordChangedAt,omitempty"`
	jwt.RegisteredClaims
}

// NewManager describes the newmanager operation and its observable behavior.
//
// NewManager may return an error when input validation, dependency calls, or security checks fail.
// NewManager does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("hs256 requires a secret")
	}
	if cfg.SessionTTL <= 0 || cfg.SignupTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}

	return &Manager{config: cfg}, nil
}

// CreateSession mints a session token bound to the account's current
// password epoch.
func (j *Manager) CreateSession(email string, passwordChangedAt time.Time) (string, error) {
	return j.create(email, passwordChangedAt.Unix(), j.config.SessionTTL)
}

// CreateSignup mints a long-lived bootstrap token for a freshly created
// account.
func (j *Manager) CreateSignup(email string) (string, error) {
	return j.create(email, 0, j.config.SignupTTL)
}

func (j *Manager) create(email string, passwordChangedAt int64, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := Claims{
		Email:             email,
		PasswordChangedAt: passwordChangedAt,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(j.config.Secret)
}

// Parse verifies the signature and registered claims and returns the parsed
// [Claims]. Expired tokens map to [ErrExpired]; every other failure maps to
// [ErrInvalid].
func (j *Manager) Parse(tokenStr string) (*Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return j.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpired
		}
		return nil, ErrInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalid
	}
	if claims.Email == "" {
		return nil, ErrInvalid
	}

	return claims, nil
}
