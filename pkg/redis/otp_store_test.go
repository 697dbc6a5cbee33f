package redis

import (
	"context"
	"encoding/hex"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestNewOTPStoreValidation(t *testing.T) {
	_, err := NewOTPStore(nil, "")
	assert.Error(t, err)

	_, err = newOTPStoreWithKey(nil, []byte("short"))
	assert.ErrorIs(t, err, ErrOTPKeySize)

	store, err := NewOTPStore(nil, "process-secret")
	require.NoError(t, err)
	assert.Equal(t, DefaultOTPTTL, store.TTL())
}

func TestOTPStore_EncryptsAtRest(t *testing.T) {
	srv, cli := startMiniRedis(t)
	store, err := NewOTPStore(cli, "process-secret")
	require.NoError(t, err)

	code, err := store.Generate(context.Background(), "user-1", "login")
	require.NoError(t, err)
	require.Len(t, code, 6)

	raw, err := srv.Get(OTPKey("user-1", "login"))
	require.NoError(t, err)
	_, err = hex.DecodeString(raw)
	require.NoError(t, err, "stored value is hex ciphertext")
	entry, err := store.read(raw)
	require.NoError(t, err)
	assert.Equal(t, code, entry.Code)
}

func TestOTPStore_SingleUse(t *testing.T) {
	_, cli := startMiniRedis(t)
	store, err := NewOTPStore(cli, "process-secret")
	require.NoError(t, err)
	ctx := context.Background()

	code, err := store.Generate(ctx, "user-1", "activation")
	require.NoError(t, err)

	ok, err := store.Verify(ctx, "user-1", "activation", code)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Verify(ctx, "user-1", "activation", code)
	require.NoError(t, err)
	assert.False(t, ok, "a verified code must not be replayable")
}

func TestOTPStore_PurposesAreIsolated(t *testing.T) {
	_, cli := startMiniRedis(t)
	store, err := NewOTPStore(cli, "process-secret")
	require.NoError(t, err)
	ctx := context.Background()

	code, err := store.Generate(ctx, "user-1", "login")
	require.NoError(t, err)

	ok, err := store.Verify(ctx, "user-1", "password_reset", code)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = store.Verify(ctx, "user-2", "login", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOTPStore_TTLBoundary(t *testing.T) {
	srv, cli := startMiniRedis(t)
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store, err := NewOTPStore(cli, "process-secret", WithOTPClock(clock.Now))
	require.NoError(t, err)
	ctx := context.Background()

	code, err := store.Generate(ctx, "user-1", "login")
	require.NoError(t, err)
	srv.FastForward(299 * time.Second)
	clock.Advance(299 * time.Second)
	ok, err := store.Verify(ctx, "user-1", "login", code)
	require.NoError(t, err)
	assert.True(t, ok, "code must be accepted at created+299s")

	code, err = store.Generate(ctx, "user-1", "login")
	require.NoError(t, err)
	srv.FastForward(301 * time.Second)
	clock.Advance(301 * time.Second)
	ok, err = store.Verify(ctx, "user-1", "login", code)
	require.NoError(t, err)
	assert.False(t, ok, "code must be rejected at created+301s")
}

func TestOTPStore_WrongCodeBurnsAfterMaxAttempts(t *testing.T) {
	srv, cli := startMiniRedis(t)
	store, err := NewOTPStore(cli, "process-secret")
	require.NoError(t, err)
	ctx := context.Background()

	code, err := store.Generate(ctx, "user-1", "login")
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	for i := 0; i < DefaultOTPAttempts-1; i++ {
		ok, err := store.Verify(ctx, "user-1", "login", wrong)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.True(t, srv.Exists(OTPKey("user-1", "login")))
	assert.Greater(t, srv.TTL(OTPKey("user-1", "login")), time.Duration(0), "ttl must survive attempt updates")

	ok, err := store.Verify(ctx, "user-1", "login", wrong)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, srv.Exists(OTPKey("user-1", "login")))

	ok, err = store.Verify(ctx, "user-1", "login", code)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOTPStore_TamperedCiphertextIsRejected(t *testing.T) {
	srv, cli := startMiniRedis(t)
	store, err := NewOTPStore(cli, "process-secret")
	require.NoError(t, err)
	ctx := context.Background()

	code, err := store.Generate(ctx, "user-1", "login")
	require.NoError(t, err)
	require.NoError(t, srv.Set(OTPKey("user-1", "login"), "deadbeef"))

	ok, err := store.Verify(ctx, "user-1", "login", code)
	require.NoError(t, err)
	assert.False(t, ok)

	other, err := NewOTPStore(cli, "another-secret")
	require.NoError(t, err)
	code, err = store.Generate(ctx, "user-1", "login")
	require.NoError(t, err)
	ok, err = other.Verify(ctx, "user-1", "login", code)
	require.NoError(t, err)
	assert.False(t, ok, "a different key must not decrypt the entry")
}

func TestOTPStore_ConcurrentVerifySucceedsOnce(t *testing.T) {
	_, cli := startMiniRedis(t)
	store, err := NewOTPStore(cli, "process-secret")
	require.NoError(t, err)
	ctx := context.Background()

	code, err := store.Generate(ctx, "user-1", "login")
	require.NoError(t, err)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.Verify(ctx, "user-1", "login", code); ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

// interleaveHook runs fn once, right after the first GET of key returns.
type interleaveHook struct {
	key  string
	once sync.Once
	fn   func()
}

func (h *interleaveHook) DialHook(next goredis.DialHook) goredis.DialHook { return next }

func (h *interleaveHook) ProcessHook(next goredis.ProcessHook) goredis.ProcessHook {
	return func(ctx context.Context, cmd goredis.Cmder) error {
		err := next(ctx, cmd)
		args := cmd.Args()
		if cmd.Name() == "get" && len(args) == 2 && args[1] == h.key {
			h.once.Do(h.fn)
		}
		return err
	}
}

func (h *interleaveHook) ProcessPipelineHook(next goredis.ProcessPipelineHook) goredis.ProcessPipelineHook {
	return next
}

func TestOTPStore_MissRacingHitCannotResurrectCode(t *testing.T) {
	srv, cli := startMiniRedis(t)
	store, err := NewOTPStore(cli, "process-secret")
	require.NoError(t, err)
	ctx := context.Background()
	key := OTPKey("user-1", "login")

	code, err := store.Generate(ctx, "user-1", "login")
	require.NoError(t, err)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	var hitOK bool
	var hitErr error
	slow := goredis.NewClient(&goredis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = slow.Close() })
	slow.AddHook(&interleaveHook{key: key, fn: func() {
		hitOK, hitErr = store.Verify(ctx, "user-1", "login", code)
	}})
	slowStore, err := NewOTPStore(slow, "process-secret")
	require.NoError(t, err)

	ok, err := slowStore.Verify(ctx, "user-1", "login", wrong)
	require.NoError(t, err)
	assert.False(t, ok)
	require.NoError(t, hitErr)
	assert.True(t, hitOK, "the correct code verifies while the miss is in flight")

	assert.False(t, srv.Exists(key), "the miss must not rewrite a consumed entry")
	ok, err = store.Verify(ctx, "user-1", "login", code)
	require.NoError(t, err)
	assert.False(t, ok, "a consumed code must not verify again")
}

func TestOTPStore_MissKeepsRemainingTTL(t *testing.T) {
	srv, cli := startMiniRedis(t)
	store, err := NewOTPStore(cli, "process-secret")
	require.NoError(t, err)
	ctx := context.Background()
	key := OTPKey("user-1", "login")

	code, err := store.Generate(ctx, "user-1", "login")
	require.NoError(t, err)
	srv.FastForward(100 * time.Second)
	wrong := "000000"
	if code == wrong {
		wrong = "111111"
	}

	ok, err := store.Verify(ctx, "user-1", "login", wrong)
	require.NoError(t, err)
	assert.False(t, ok)
	ttl := srv.TTL(key)
	assert.Greater(t, ttl, time.Duration(0))
	assert.LessOrEqual(t, ttl, DefaultOTPTTL-100*time.Second, "a miss must not extend the lifetime")

	raw, err := srv.Get(key)
	require.NoError(t, err)
	entry, err := store.read(raw)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.Attempts)

	// an entry stripped of its TTL is dropped, never persisted
	require.NoError(t, cli.Persist(ctx, key).Err())
	ok, err = store.Verify(ctx, "user-1", "login", wrong)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, srv.Exists(key))
}

func TestOTPStore_CleanupExpired(t *testing.T) {
	srv, cli := startMiniRedis(t)
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	store, err := NewOTPStore(cli, "process-secret", WithOTPClock(clock.Now))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Generate(ctx, "user-1", "login")
	require.NoError(t, err)
	_, err = store.Generate(ctx, "user-2", "login")
	require.NoError(t, err)

	n, err := store.CleanupExpired(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	clock.Advance(10 * time.Minute)
	n, err = store.CleanupExpired(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, srv.Exists(OTPKey("user-1", "login")))

	n, err = store.CleanupExpired(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "cleanup is idempotent")
}

func TestOTPStore_GenerateErrors(t *testing.T) {
	_, cli := startMiniRedis(t)
	store, err := NewOTPStore(cli, "process-secret")
	require.NoError(t, err)

	orig := generateOTPCode
	t.Cleanup(func() { generateOTPCode = orig })
	generateOTPCode = func() (string, error) { return "", errors.New("entropy exhausted") }

	_, err = store.Generate(context.Background(), "user-1", "login")
	assert.Error(t, err)
}

func TestOTPStore_Invalidate(t *testing.T) {
	srv, cli := startMiniRedis(t)
	store, err := NewOTPStore(cli, "process-secret")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = store.Generate(ctx, "user-1", "login")
	require.NoError(t, err)
	require.NoError(t, store.Invalidate(ctx, "user-1", "login"))
	assert.False(t, srv.Exists(OTPKey("user-1", "login")))
}
