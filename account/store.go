package account

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable is an exported constant or variable used by the authentication engine.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrNotFound is returned when the target account document does not exist.
var ErrNotFound = errors.New("account not found")

// ErrExists is returned when creating an account whose email is already taken.
var ErrExists = errors.New("account already exists")

// ErrWrongOldPassword is returned when rotation is asked to verify the old
// credential and it does not match.
var ErrWrongOldPassword = errors.New("old credential mismatch")

// ErrPasswordReuse is returned when the new credential matches the current
// one or any entry in the history list.
var ErrPasswordReuse = errors.New("credential reuse")

const (
	rotateStatusNotFound int64 = -1
	rotateStatusWrongOld int64 = 0
	rotateStatusReuse    int64 = 1
	rotateStatusRotated  int64 = 2
)

const createAccountScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "email", ARGV[1],
  "credential", ARGV[2],
  "mobile_no", ARGV[3],
  "role", ARGV[4],
  "station_id", ARGV[5],
  "failed_attempts", "0",
  "password_changed_at", ARGV[6],
  "created_at", ARGV[7])
if ARGV[3] ~= "" then
  redis.call("SET", KEYS[2], ARGV[1])
end
redis.call("SADD", KEYS[3], ARGV[1])
return 1
`

var createAccountLua = redis.NewScript(createAccountScript)

const loginFailureScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return {-1, 0}
end
local attempts = redis.call("HINCRBY", KEYS[1], "failed_attempts", 1)
if attempts >= tonumber(ARGV[1]) then
  redis.call("HSET", KEYS[1], "lock_until", ARGV[2], "failed_attempts", "0")
  return {1, attempts}
end
return {0, attempts}
`

var loginFailureLua = redis.NewScript(loginFailureScript)

const loginSuccessScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
redis.call("HSET", KEYS[1], "failed_attempts", "0", "otp", ARGV[1])
redis.call("HDEL", KEYS[1], "lock_until")
return 1
`

var loginSuccessLua = redis.NewScript(loginSuccessScript)

const consumeOTPScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
if ARGV[2] == "1" then
  local stored = redis.call("HGET", KEYS[1], "otp")
  if not stored or stored == "" or stored ~= ARGV[1] then
    return 0
  end
end
redis.call("HDEL", KEYS[1], "otp")
return 1
`

var consumeOTPLua = redis.NewScript(consumeOTPScript)

const appendSessionScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
redis.call("RPUSH", KEYS[2], ARGV[1])
local len = redis.call("LLEN", KEYS[2])
local cap = tonumber(ARGV[2])
redis.call("LTRIM", KEYS[2], -cap, -1)
if len > cap then
  return 1
end
return 0
`

var appendSessionLua = redis.NewScript(appendSessionScript)

const blacklistTokenScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local removed = 0
local entries = redis.call("LRANGE", KEYS[2], 0, -1)
for i = 1, #entries do
  local data = entries[i]
  local b1 = string.byte(data, 2)
  local b2 = string.byte(data, 3)
  if b1 and b2 then
    local token_len = b1 * 256 + b2
    local token = string.sub(data, 4, 3 + token_len)
    if token == ARGV[1] then
      removed = removed + redis.call("LREM", KEYS[2], 1, data)
    end
  end
end
redis.call("LREM", KEYS[3], 0, ARGV[1])
redis.call("RPUSH", KEYS[3], ARGV[1])
redis.call("LTRIM", KEYS[3], -tonumber(ARGV[2]), -1)
return removed
`

var blacklistTokenLua = redis.NewScript(blacklistTokenScript)

const rotatePasswordScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then
  return -1
end
local current = redis.call("HGET", KEYS[1], "credential")
if ARGV[1] == "1" and current ~= ARGV[2] then
  return 0
end
if ARGV[3] == current then
  return 1
end
local hist = redis.call("LRANGE", KEYS[2], 0, -1)
for i = 1, #hist do
  if hist[i] == ARGV[3] then
    return 1
  end
end
redis.call("RPUSH", KEYS[2], current)
redis.call("LTRIM", KEYS[2], -tonumber(ARGV[4]), -1)
redis.call("HSET", KEYS[1], "credential", ARGV[3], "password_changed_at", ARGV[5])
return 2
`

var rotatePasswordLua = redis.NewScript(rotatePasswordScript)

const deleteAccountScript = `
local existed = redis.call("EXISTS", KEYS[1])
if existed == 1 then
  local mobile = redis.call("HGET", KEYS[1], "mobile_no")
  if mobile and mobile ~= "" then
    redis.call("DEL", ARGV[2] .. mobile)
  end
end
redis.call("DEL", KEYS[1], KEYS[2], KEYS[3], KEYS[4])
redis.call("SREM", KEYS[5], ARGV[1])
return existed
`

var deleteAccountLua = redis.NewScript(deleteAccountScript)

// Store is a Redis-backed account store. All counters, bounded lists, and
// credential rotation run inside Lua scripts so concurrent mutations of the
// same account serialize on the server.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates an account [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(redis redis.UniversalClient, prefix string) *Store {
	return &Store{
		redis:  redis,
		prefix: prefix,
	}
}

func (s *Store) key(email string) string {
	return s.prefix + ":" + email
}

func (s *Store) historyKey(email string) string {
	return s.prefix + ":" + email + ":history"
}

func (s *Store) sessionsKey(email string) string {
	return s.prefix + ":" + email + ":sessions"
}

func (s *Store) blacklistKey(email string) string {
	return s.prefix + ":" + email + ":blacklist"
}

func (s *Store) mobilePrefix() string {
	return s.prefix + ":m:"
}

func (s *Store) mobileKey(mobile string) string {
	return s.mobilePrefix() + mobile
}

func (s *Store) rosterKey() string {
	return s.prefix + ":all"
}

// Create persists a new account document. The email must be free; the
// mobile-number index and roster set are updated in the same script.
func (s *Store) Create(ctx context.Context, a *Account) error {
	keys := []string{s.key(a.Email), s.mobileKey(a.MobileNo), s.rosterKey()}
	argv := []interface{}{
		a.Email,
		a.Credential,
		a.MobileNo,
		a.Role,
		a.StationID,
		strconv.FormatInt(a.PasswordChangedAt.Unix(), 10),
		strconv.FormatInt(a.CreatedAt.Unix(), 10),
	}

	created, err := createAccountLua.Run(ctx, s.redis, keys, argv...).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if created == 0 {
		return ErrExists
	}
	return nil
}

// GetByEmail loads an account document by email.
func (s *Store) GetByEmail(ctx context.Context, email string) (*Account, error) {
	h, err := s.redis.HGetAll(ctx, s.key(email)).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(h) == 0 {
		return nil, ErrNotFound
	}
	return accountFromHash(h), nil
}

// GetByMobile resolves a mobile number through the index and loads the
// owning account.
func (s *Store) GetByMobile(ctx context.Context, mobile string) (*Account, error) {
	email, err := s.redis.Get(ctx, s.mobileKey(mobile)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return s.GetByEmail(ctx, email)
}

// RecordLoginFailure increments the failure counter and flips the account
// into the locked state once the counter reaches maxAttempts. The counter
// resets when the lock engages. Returns whether the lock engaged and the
// counter value after the increment.
func (s *Store) RecordLoginFailure(ctx context.Context, email string, maxAttempts int, lockUntil time.Time) (bool, int, error) {
	keys := []string{s.key(email)}
	argv := []interface{}{maxAttempts, strconv.FormatInt(lockUntil.Unix(), 10)}

	res, err := loginFailureLua.Run(ctx, s.redis, keys, argv...).Int64Slice()
	if err != nil {
		return false, 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(res) != 2 {
		return false, 0, fmt.Errorf("%w: unexpected script reply", ErrRedisUnavailable)
	}
	if res[0] == -1 {
		return false, 0, ErrNotFound
	}
	return res[0] == 1, int(res[1]), nil
}

// RecordLoginSuccess resets the failure counter, clears any lock, and
// stores the freshly issued one-time code, replacing a prior live code.
func (s *Store) RecordLoginSuccess(ctx context.Context, email, otp string) error {
	status, err := loginSuccessLua.Run(ctx, s.redis, []string{s.key(email)}, otp).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if status == -1 {
		return ErrNotFound
	}
	return nil
}

// SetOTP stores a one-time code on the account, replacing any live code.
func (s *Store) SetOTP(ctx context.Context, email, otp string) error {
	if err := s.redis.HSet(ctx, s.key(email), fieldOTP, otp).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// ConsumeOTP compares code against the live one-time code and clears it in
// the same script. When enforce is false the comparison is skipped and the
// code is cleared unconditionally. Returns false on mismatch or when no
// code is live; a mismatched code is not consumed.
func (s *Store) ConsumeOTP(ctx context.Context, email, code string, enforce bool) (bool, error) {
	flag := "0"
	if enforce {
		flag = "1"
	}

	status, err := consumeOTPLua.Run(ctx, s.redis, []string{s.key(email)}, code, flag).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	switch status {
	case -1:
		return false, ErrNotFound
	case 0:
		return false, nil
	default:
		return true, nil
	}
}

// AppendSession appends a session record and trims the list to cap,
// evicting the oldest entries first. Returns whether an eviction happened.
func (s *Store) AppendSession(ctx context.Context, email string, rec SessionRecord, cap int) (bool, error) {
	data, err := EncodeRecord(rec)
	if err != nil {
		return false, err
	}

	keys := []string{s.key(email), s.sessionsKey(email)}
	status, err := appendSessionLua.Run(ctx, s.redis, keys, data, cap).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if status == -1 {
		return false, ErrNotFound
	}
	return status == 1, nil
}

// Sessions returns the account's active session records, oldest first.
func (s *Store) Sessions(ctx context.Context, email string) ([]SessionRecord, error) {
	raw, err := s.redis.LRange(ctx, s.sessionsKey(email), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]SessionRecord, 0, len(raw))
	for _, data := range raw {
		rec, err := DecodeRecord([]byte(data))
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// HasSession reports whether token is among the account's active sessions.
func (s *Store) HasSession(ctx context.Context, email, token string) (bool, error) {
	recs, err := s.Sessions(ctx, email)
	if err != nil {
		return false, err
	}
	for _, rec := range recs {
		if rec.Token == token {
			return true, nil
		}
	}
	return false, nil
}

// BlacklistToken moves token out of the active session list and onto the
// blacklist, deduplicating and trimming the blacklist to cap. Returns the
// number of session entries removed.
func (s *Store) BlacklistToken(ctx context.Context, email, token string, cap int) (int, error) {
	keys := []string{s.key(email), s.sessionsKey(email), s.blacklistKey(email)}
	removed, err := blacklistTokenLua.Run(ctx, s.redis, keys, token, cap).Int64()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if removed == -1 {
		return 0, ErrNotFound
	}
	return int(removed), nil
}

// IsBlacklisted reports whether token is on the account's blacklist.
func (s *Store) IsBlacklisted(ctx context.Context, email, token string) (bool, error) {
	entries, err := s.redis.LRange(ctx, s.blacklistKey(email), 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	for _, t := range entries {
		if t == token {
			return true, nil
		}
	}
	return false, nil
}

// RotatePassword replaces the stored credential after checking reuse
// against the current credential and the history list, then pushes the old
// credential onto the history and trims it to historyLimit. With checkOld
// set, the rotation only proceeds when oldCredential matches the stored
// one.
func (s *Store) RotatePassword(ctx context.Context, email string, checkOld bool, oldCredential, newCredential string, historyLimit int, changedAt time.Time) error {
	flag := "0"
	if checkOld {
		flag = "1"
	}

	keys := []string{s.key(email), s.historyKey(email)}
	argv := []interface{}{
		flag,
		oldCredential,
		newCredential,
		historyLimit,
		strconv.FormatInt(changedAt.Unix(), 10),
	}

	status, err := rotatePasswordLua.Run(ctx, s.redis, keys, argv...).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	switch status {
	case rotateStatusNotFound:
		return ErrNotFound
	case rotateStatusWrongOld:
		return ErrWrongOldPassword
	case rotateStatusReuse:
		return ErrPasswordReuse
	case rotateStatusRotated:
		return nil
	default:
		return fmt.Errorf("%w: unexpected script reply %d", ErrRedisUnavailable, status)
	}
}

// PasswordHistory returns the retired credentials, oldest first.
func (s *Store) PasswordHistory(ctx context.Context, email string) ([]string, error) {
	hist, err := s.redis.LRange(ctx, s.historyKey(email), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return hist, nil
}

// List loads every account on the roster.
func (s *Store) List(ctx context.Context) ([]*Account, error) {
	emails, err := s.redis.SMembers(ctx, s.rosterKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]*Account, 0, len(emails))
	for _, email := range emails {
		a, err := s.GetByEmail(ctx, email)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// Delete removes the account document, its lists, its mobile index entry,
// and its roster membership. Reports whether the account existed.
func (s *Store) Delete(ctx context.Context, email string) (bool, error) {
	keys := []string{
		s.key(email),
		s.historyKey(email),
		s.sessionsKey(email),
		s.blacklistKey(email),
		s.rosterKey(),
	}

	existed, err := deleteAccountLua.Run(ctx, s.redis, keys, email, s.mobilePrefix()).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return existed == 1, nil
}

// Ping checks store connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}
