package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttemptLimiter_BansAfterMaxFailures(t *testing.T) {
	srv, cli := startMiniRedis(t)
	l := NewAttemptLimiter(cli, "login", 5, 900*time.Second)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		n, err := l.RecordFailure(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.Equal(t, int64(i), n)
		blocked, _, err := l.Blocked(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.False(t, blocked)
	}

	_, err := l.RecordFailure(ctx, "10.0.0.1")
	require.NoError(t, err)
	blocked, retry, err := l.Blocked(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, blocked)
	assert.Greater(t, retry, time.Duration(0))

	other, _, err := l.Blocked(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.False(t, other)

	srv.FastForward(901 * time.Second)
	blocked, _, err = l.Blocked(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, blocked, "ban lifts when the window expires")
}

func TestAttemptLimiter_ResetClearsCounter(t *testing.T) {
	_, cli := startMiniRedis(t)
	l := NewAttemptLimiter(cli, "login", 5, 900*time.Second)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		_, err := l.RecordFailure(ctx, "ip")
		require.NoError(t, err)
	}
	require.NoError(t, l.Reset(ctx, "ip"))

	n, err := l.RecordFailure(ctx, "ip")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
