package portalauth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/msscweb/portal-auth/account"
)

type captureSender struct {
	mu         sync.Mutex
	recipients []string
	codes      []string
	err        error
}

func (c *captureSender) Send(_ context.Context, recipient, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}
	c.recipients = append(c.recipients, recipient)
	c.codes = append(c.codes, code)
	return nil
}

func (c *captureSender) lastCode(t *testing.T) string {
	t.Helper()

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.codes) == 0 {
		t.Fatal("no code was delivered")
	}
	return c.codes[len(c.codes)-1]
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("test-secret")
	cfg.JWT.Leeway = 0
	return cfg
}

func newTestEngine(t *testing.T, rdb *redis.Client, cfg Config, sender *captureSender) *Engine {
	t.Helper()

	b := New().WithConfig(cfg).WithRedis(rdb)
	if sender != nil {
		b = b.WithMailSender(sender).WithSMSSender(sender)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func seedEngineAccount(t *testing.T, engine *Engine, email, credential, mobile string) {
	t.Helper()

	_, err := engine.CreateAccount(context.Background(), CreateAccountRequest{
		Email:      email,
		Credential: credential,
		MobileNo:   mobile,
		StationID:  "PS-7",
		Role:       "admin",
	})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
}

func loginDigest(credential, salt string) string {
	sum := sha256.Sum256([]byte(credential + salt))
	return hex.EncodeToString(sum[:])
}

func TestLoginIssuesOTP(t *testing.T) {
	_, rdb := newTestRedis(t)
	sender := &captureSender{}
	engine := newTestEngine(t, rdb, testConfig(), sender)
	ctx := context.Background()

	seedEngineAccount(t, engine, "alice@dept.gov", "stored-digest", "")

	salt, err := engine.Salt(ctx)
	if err != nil {
		t.Fatalf("Salt failed: %v", err)
	}
	if len(salt) != 32 {
		t.Fatalf("expected 16-byte hex salt, got %q", salt)
	}

	res, err := engine.Login(ctx, "alice@dept.gov", loginDigest("stored-digest", salt), salt)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !res.OTPSent {
		t.Fatal("expected OTP to be sent")
	}
	if res.Recipient == "alice@dept.gov" {
		t.Fatalf("recipient not masked: %q", res.Recipient)
	}

	code := sender.lastCode(t)
	if len(code) != 6 {
		t.Fatalf("expected 6-digit code, got %q", code)
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("non-numeric code %q", code)
		}
	}
}

func TestLoginWrongDigestFails(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine := newTestEngine(t, rdb, testConfig(), &captureSender{})
	ctx := context.Background()

	seedEngineAccount(t, engine, "alice@dept.gov", "stored-digest", "")

	salt, _ := engine.Salt(ctx)
	_, err := engine.Login(ctx, "alice@dept.gov", loginDigest("wrong-digest", salt), salt)
	if !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("expected ErrInvalidCredential, got %v", err)
	}

	store := account.NewStore(rdb, "acct")
	a, err := store.GetByEmail(ctx, "alice@dept.gov")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if a.FailedAttempts != 1 {
		t.Fatalf("failure not counted: %d", a.FailedAttempts)
	}
}

func TestLoginUnknownAccount(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine := newTestEngine(t, rdb, testConfig(), &captureSender{})

	salt, _ := engine.Salt(context.Background())
	_, err := engine.Login(context.Background(), "ghost@dept.gov", loginDigest("x", salt), salt)
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestLoginMissingInput(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine := newTestEngine(t, rdb, testConfig(), &captureSender{})

	if _, err := engine.Login(context.Background(), "alice@dept.gov", "digest", ""); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing salt, got %v", err)
	}
	if _, err := engine.Login(context.Background(), "", "digest", "salt"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing email, got %v", err)
	}
}

func TestLoginLockoutEngagesAndBlocksCorrectCredential(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testConfig()
	cfg.Lockout.MaxFailedAttempts = 3
	engine := newTestEngine(t, rdb, cfg, &captureSender{})
	ctx := context.Background()

	seedEngineAccount(t, engine, "alice@dept.gov", "stored-digest", "")

	salt, _ := engine.Salt(ctx)
	for i := 0; i < 3; i++ {
		_, err := engine.Login(ctx, "alice@dept.gov", loginDigest("wrong", salt), salt)
		if !errors.Is(err, ErrInvalidCredential) {
			t.Fatalf("attempt %d: expected ErrInvalidCredential, got %v", i, err)
		}
	}

	// even the right credential is rejected while the lock holds
	_, err := engine.Login(ctx, "alice@dept.gov", loginDigest("stored-digest", salt), salt)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
}

func TestLoginSuccessResetsFailureCounter(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine := newTestEngine(t, rdb, testConfig(), &captureSender{})
	ctx := context.Background()

	seedEngineAccount(t, engine, "alice@dept.gov", "stored-digest", "")

	salt, _ := engine.Salt(ctx)
	_, _ = engine.Login(ctx, "alice@dept.gov", loginDigest("wrong", salt), salt)
	_, _ = engine.Login(ctx, "alice@dept.gov", loginDigest("wrong", salt), salt)

	if _, err := engine.Login(ctx, "alice@dept.gov", loginDigest("stored-digest", salt), salt); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	store := account.NewStore(rdb, "acct")
	a, _ := store.GetByEmail(ctx, "alice@dept.gov")
	if a.FailedAttempts != 0 {
		t.Fatalf("counter not reset on success: %d", a.FailedAttempts)
	}
}

func TestLoginDeliveryFailure(t *testing.T) {
	_, rdb := newTestRedis(t)
	sender := &captureSender{err: errors.New("smtp down")}
	engine := newTestEngine(t, rdb, testConfig(), sender)
	ctx := context.Background()

	seedEngineAccount(t, engine, "alice@dept.gov", "stored-digest", "")

	salt, _ := engine.Salt(ctx)
	_, err := engine.Login(ctx, "alice@dept.gov", loginDigest("stored-digest", salt), salt)
	if !errors.Is(err, ErrOTPDelivery) {
		t.Fatalf("expected ErrOTPDelivery, got %v", err)
	}
}

func TestVerifyOTPMintsSessionToken(t *testing.T) {
	_, rdb := newTestRedis(t)
	sender := &captureSender{}
	engine := newTestEngine(t, rdb, testConfig(), sender)
	ctx := context.Background()

	seedEngineAccount(t, engine, "alice@dept.gov", "stored-digest", "")

	salt, _ := engine.Salt(ctx)
	if _, err := engine.Login(ctx, "alice@dept.gov", loginDigest("stored-digest", salt), salt); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	res, err := engine.VerifyOTP(ctx, "alice@dept.gov", sender.lastCode(t), "Firefox on Linux")
	if err != nil {
		t.Fatalf("VerifyOTP failed: %v", err)
	}
	if res.Token == "" || res.Role != "admin" || res.StationID != "PS-7" {
		t.Fatalf("unexpected result: %+v", res)
	}

	verified, err := engine.VerifyToken(ctx, res.Token)
	if err != nil {
		t.Fatalf("VerifyToken rejected fresh token: %v", err)
	}
	if verified.Email != "alice@dept.gov" {
		t.Fatalf("wrong identity: %+v", verified)
	}
}

func TestVerifyOTPWrongCode(t *testing.T) {
	_, rdb := newTestRedis(t)
	sender := &captureSender{}
	engine := newTestEngine(t, rdb, testConfig(), sender)
	ctx := context.Background()

	seedEngineAccount(t, engine, "alice@dept.gov", "stored-digest", "")

	salt, _ := engine.Salt(ctx)
	_, _ = engine.Login(ctx, "alice@dept.gov", loginDigest("stored-digest", salt), salt)

	if _, err := engine.VerifyOTP(ctx, "alice@dept.gov", "000000", ""); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("expected ErrOTPInvalid, got %v", err)
	}

	// the live code survives the mismatch and still works
	if _, err := engine.VerifyOTP(ctx, "alice@dept.gov", sender.lastCode(t), ""); err != nil {
		t.Fatalf("live code rejected after mismatch: %v", err)
	}
}

func TestVerifyOTPSingleUse(t *testing.T) {
	_, rdb := newTestRedis(t)
	sender := &captureSender{}
	engine := newTestEngine(t, rdb, testConfig(), sender)
	ctx := context.Background()

	seedEngineAccount(t, engine, "alice@dept.gov", "stored-digest", "")

	salt, _ := engine.Salt(ctx)
	_, _ = engine.Login(ctx, "alice@dept.gov", loginDigest("stored-digest", salt), salt)
	code := sender.lastCode(t)

	if _, err := engine.VerifyOTP(ctx, "alice@dept.gov", code, ""); err != nil {
		t.Fatalf("first VerifyOTP failed: %v", err)
	}
	if _, err := engine.VerifyOTP(ctx, "alice@dept.gov", code, ""); !errors.Is(err, ErrOTPInvalid) {
		t.Fatalf("code accepted twice: %v", err)
	}
}

func TestVerifyOTPUnenforcedMode(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testConfig()
	cfg.OTP.Enforce = false
	sender := &captureSender{}
	engine := newTestEngine(t, rdb, cfg, sender)
	ctx := context.Background()

	seedEngineAccount(t, engine, "alice@dept.gov", "stored-digest", "")

	salt, _ := engine.Salt(ctx)
	_, _ = engine.Login(ctx, "alice@dept.gov", loginDigest("stored-digest", salt), salt)

	if _, err := engine.VerifyOTP(ctx, "alice@dept.gov", "000000", ""); err != nil {
		t.Fatalf("unenforced mode rejected code: %v", err)
	}
}

func TestSessionListCapEvictsOldestToken(t *testing.T) {
	_, rdb := newTestRedis(t)
	sender := &captureSender{}
	engine := newTestEngine(t, rdb, testConfig(), sender)
	ctx := context.Background()

	seedEngineAccount(t, engine, "alice@dept.gov", "stored-digest", "")

	tokens := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		salt, _ := engine.Salt(ctx)
		if _, err := engine.Login(ctx, "alice@dept.gov", loginDigest("stored-digest", salt), salt); err != nil {
			t.Fatalf("Login %d failed: %v", i, err)
		}
		res, err := engine.VerifyOTP(ctx, "alice@dept.gov", sender.lastCode(t), "")
		if err != nil {
			t.Fatalf("VerifyOTP %d failed: %v", i, err)
		}
		tokens = append(tokens, res.Token)
	}

	if _, err := engine.VerifyToken(ctx, tokens[0]); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("evicted token should report session expiry, got %v", err)
	}
	for _, tok := range tokens[1:] {
		if _, err := engine.VerifyToken(ctx, tok); err != nil {
			t.Fatalf("active token rejected: %v", err)
		}
	}
}

func TestLogoutInvalidatesToken(t *testing.T) {
	_, rdb := newTestRedis(t)
	sender := &captureSender{}
	engine := newTestEngine(t, rdb, testConfig(), sender)
	ctx := context.Background()

	seedEngineAccount(t, engine, "alice@dept.gov", "stored-digest", "")

	salt, _ := engine.Salt(ctx)
	_, _ = engine.Login(ctx, "alice@dept.gov", loginDigest("stored-digest", salt), salt)
	res, err := engine.VerifyOTP(ctx, "alice@dept.gov", sender.lastCode(t), "")
	if err != nil {
		t.Fatalf("VerifyOTP failed: %v", err)
	}

	if err := engine.Logout(ctx, res.Token); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}

	// the token left the session list, so the session check fires first
	_, err = engine.VerifyToken(ctx, res.Token)
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after logout, got %v", err)
	}
	if !ShouldLogout(err) {
		t.Fatal("logout advisory should be set")
	}
}

func TestLogoutRequiresToken(t *testing.T) {
	_, rdb := newTestRedis(t)
	engine := newTestEngine(t, rdb, testConfig(), nil)

	if err := engine.Logout(context.Background(), ""); !errors.Is(err, ErrTokenNotProvided) {
		t.Fatalf("expected ErrTokenNotProvided, got %v", err)
	}
	if err := engine.Logout(context.Background(), "not-a-jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestAuditEventsEmitted(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testConfig()
	cfg.Audit.Enabled = true
	sink := NewChannelSink(16)

	sender := &captureSender{}
	b := New().WithConfig(cfg).WithRedis(rdb).WithMailSender(sender).WithAuditSink(sink)
	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)

	ctx := context.Background()
	seedEngineAccount(t, engine, "alice@dept.gov", "stored-digest", "")

	salt, _ := engine.Salt(ctx)
	if _, err := engine.Login(ctx, "alice@dept.gov", loginDigest("stored-digest", salt), salt); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	seen := map[string]bool{}
	for !seen[auditEventLoginSuccess] {
		select {
		case evt := <-sink.Events():
			seen[evt.EventType] = true
		case <-deadline:
			t.Fatalf("login_success audit event not observed, saw %v", seen)
		}
	}
}

func TestMetricsCounters(t *testing.T) {
	_, rdb := newTestRedis(t)
	cfg := testConfig()
	cfg.Metrics.Enabled = true
	sender := &captureSender{}
	engine := newTestEngine(t, rdb, cfg, sender)
	ctx := context.Background()

	seedEngineAccount(t, engine, "alice@dept.gov", "stored-digest", "")

	salt, _ := engine.Salt(ctx)
	_, _ = engine.Login(ctx, "alice@dept.gov", loginDigest("wrong", salt), salt)
	_, _ = engine.Login(ctx, "alice@dept.gov", loginDigest("stored-digest", salt), salt)
	_, _ = engine.VerifyOTP(ctx, "alice@dept.gov", sender.lastCode(t), "")

	snap := engine.MetricsSnapshot()
	if snap.Counters[MetricLoginFailure] != 1 {
		t.Fatalf("login failures = %d", snap.Counters[MetricLoginFailure])
	}
	if snap.Counters[MetricLoginSuccess] != 1 {
		t.Fatalf("login successes = %d", snap.Counters[MetricLoginSuccess])
	}
	if snap.Counters[MetricSessionCreated] != 1 {
		t.Fatalf("sessions created = %d", snap.Counters[MetricSessionCreated])
	}
}
