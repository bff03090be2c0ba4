// Package middleware provides net/http middleware that protects routes with
// the portalauth token validator.
package middleware

import (
	"context"
	"net/http"
	"strings"

	portalauth "github.com/msscweb/portal-auth"
)

type verifyResultContextKey struct{}

// VerifyResultFromContext returns the authenticated identity stored by
// [Guard], if any.
func VerifyResultFromContext(ctx context.Context) (*portalauth.VerifyResult, bool) {
	res, ok := ctx.Value(verifyResultContextKey{}).(*portalauth.VerifyResult)
	return res, ok
}

// Guard wraps a handler with the full token validation chain. The token is
// read from the Authorization bearer header; rejected requests get a 401
// without reaching the inner handler.
func Guard(engine *portalauth.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := engine.VerifyToken(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), verifyResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
