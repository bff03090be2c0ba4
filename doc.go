// Package portalauth implements the authentication and session-management
// core of the citizen-services portal backend: salt-and-rehash credential
// verification with automatic account lockout, one-time-code issuance after a
// successful credential check, signed session tokens carrying a
// password-change epoch, a bounded per-account multi-session store with a
// token blacklist, and password rotation with reuse-history enforcement.
//
// Account state lives in Redis; every read-modify-write on a single account
// document executes as one Lua script so that concurrent requests for the
// same account never lose updates.
//
// Build an [Engine] with [New]:
//
//	engine, err := portalauth.New().
//		WithConfig(portalauth.DefaultConfig()).
//		WithRedis(rdb).
//		Build()
package portalauth
