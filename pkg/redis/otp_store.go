package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"walletcore.backend/pkg/crypto"
)

const (
	DefaultOTPTTL       = 300 * time.Second
	DefaultOTPDigits    = 6
	DefaultOTPAttempts  = 5
	otpIndexKey         = "otp:index"
	otpKeyDerivationTag = "walletcore/otp-store/v1"
)

var ErrOTPKeySize = errors.New("otp encryption key must be 32 bytes")

// OTPEntry is the plaintext stored (encrypted) under otp:<user_id>:<purpose>.
type OTPEntry struct {
	Code      string `json:"code"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at"`
	Attempts  int    `json:"attempts"`
}

// OTPStore keeps single-use numeric codes encrypted at rest with AES-GCM.
type OTPStore struct {
	client      goredis.Cmdable
	sealer      *crypto.Sealer
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
}

// OTPOption customizes an OTPStore.
type OTPOption func(*OTPStore)

// WithOTPClock replaces the wall clock used for created/expires stamps.
func WithOTPClock(now func() time.Time) OTPOption {
	return func(s *OTPStore) { s.now = now }
}

// WithOTPTTL overrides the default five minute lifetime.
func WithOTPTTL(ttl time.Duration) OTPOption {
	return func(s *OTPStore) { s.ttl = ttl }
}

var generateOTPCode = func() (string, error) {
	return crypto.GenerateNumericCode(DefaultOTPDigits)
}

// NewOTPStore derives a 32-byte key from secret and binds the store to client.
func NewOTPStore(client goredis.Cmdable, secret string, opts ...OTPOption) (*OTPStore, error) {
	key, err := crypto.DeriveKey(secret, otpKeyDerivationTag, 32)
	if err != nil {
		return nil, err
	}
	return newOTPStoreWithKey(client, key, opts...)
}

func newOTPStoreWithKey(client goredis.Cmdable, key []byte, opts ...OTPOption) (*OTPStore, error) {
	if len(key) != 32 {
		return nil, ErrOTPKeySize
	}
	sealer, err := crypto.NewSealerWithKey(key)
	if err != nil {
		return nil, err
	}
	s := &OTPStore{
		client:      client,
		sealer:      sealer,
		ttl:         DefaultOTPTTL,
		maxAttempts: DefaultOTPAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// OTPKey returns the storage key for a user and purpose.
func OTPKey(userID, purpose string) string {
	return fmt.Sprintf("otp:%s:%s", userID, purpose)
}

// TTL is the lifetime applied to new codes.
func (s *OTPStore) TTL() time.Duration {
	return s.ttl
}

// Generate creates a fresh code, replacing any outstanding one for the same purpose.
func (s *OTPStore) Generate(ctx context.Context, userID, purpose string) (string, error) {
	code, err := generateOTPCode()
	if err != nil {
		return "", err
	}

	now := s.now()
	entry := OTPEntry{
		Code:      code,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(s.ttl).Unix(),
	}
	if err := s.write(ctx, OTPKey(userID, purpose), &entry, s.ttl); err != nil {
		return "", err
	}
	if err := s.client.ZAdd(ctx, otpIndexKey, goredis.Z{
		Score:  float64(entry.ExpiresAt),
		Member: OTPKey(userID, purpose),
	}).Err(); err != nil {
		return "", fmt.Errorf("index otp: %w", err)
	}
	return code, nil
}

// otpSwapScript replaces the entry only if it still holds the ciphertext the
// caller read, carrying the remaining TTL over. An entry without a TTL is
// dropped rather than rewritten.
var otpSwapScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
local ttl = redis.call("PTTL", KEYS[1])
if ttl <= 0 then
	redis.call("DEL", KEYS[1])
	return -1
end
redis.call("SET", KEYS[1], ARGV[2], "PX", ttl)
return 1
`)

// otpConsumeScript deletes the entry only if it still holds the ciphertext
// the caller read.
var otpConsumeScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) ~= ARGV[1] then
	return 0
end
redis.call("DEL", KEYS[1])
redis.call("ZREM", KEYS[2], KEYS[1])
return 1
`)

// Verify reports whether code matches. A match deletes the key so the code
// cannot be replayed; a miss counts an attempt and burns the code after
// maxAttempts misses. Both are compare-and-swap on the ciphertext that was
// read, so a concurrent verify can never resurrect a consumed entry.
// Store errors are returned alongside false.
func (s *OTPStore) Verify(ctx context.Context, userID, purpose, code string) (bool, error) {
	key := OTPKey(userID, purpose)
	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if IsNil(err) {
			return false, nil
		}
		return false, err
	}

	entry, err := s.read(raw)
	if err != nil {
		// undecryptable entries are useless to everyone
		_, _ = otpConsumeScript.Run(ctx, s.client, []string{key, otpIndexKey}, raw).Result()
		return false, nil
	}
	if s.now().Unix() > entry.ExpiresAt {
		_, _ = otpConsumeScript.Run(ctx, s.client, []string{key, otpIndexKey}, raw).Result()
		return false, nil
	}

	if !crypto.ConstantTimeEqual(entry.Code, code) {
		entry.Attempts++
		if entry.Attempts >= s.maxAttempts {
			_, err := otpConsumeScript.Run(ctx, s.client, []string{key, otpIndexKey}, raw).Result()
			return false, err
		}
		next, err := s.seal(entry)
		if err != nil {
			return false, err
		}
		_, err = otpSwapScript.Run(ctx, s.client, []string{key}, raw, next).Result()
		return false, err
	}

	// only the caller whose swap removed the key wins
	n, err := otpConsumeScript.Run(ctx, s.client, []string{key, otpIndexKey}, raw).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Invalidate drops any outstanding code for the purpose.
func (s *OTPStore) Invalidate(ctx context.Context, userID, purpose string) error {
	key := OTPKey(userID, purpose)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return err
	}
	return s.client.ZRem(ctx, otpIndexKey, key).Err()
}

// CleanupExpired removes index entries (and keys) whose expiry has passed.
// Redis TTL normally reclaims the keys first; this keeps the index bounded.
func (s *OTPStore) CleanupExpired(ctx context.Context, batch int64) (int, error) {
	keys, err := s.client.ZRangeByScore(ctx, otpIndexKey, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", s.now().Unix()),
		Count: batch,
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}

	members := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		members = append(members, k)
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return 0, err
	}
	if err := s.client.ZRem(ctx, otpIndexKey, members...).Err(); err != nil {
		return 0, err
	}
	return len(keys), nil
}

func (s *OTPStore) write(ctx context.Context, key string, entry *OTPEntry, ttl time.Duration) error {
	encrypted, err := s.seal(entry)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, encrypted, ttl).Err()
}

func (s *OTPStore) seal(entry *OTPEntry) (string, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return "", err
	}
	return s.sealer.Seal(payload)
}

func (s *OTPStore) read(raw string) (*OTPEntry, error) {
	plaintext, err := s.sealer.Open(raw)
	if err != nil {
		return nil, err
	}
	var entry OTPEntry
	if err := json.Unmarshal(plaintext, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}
