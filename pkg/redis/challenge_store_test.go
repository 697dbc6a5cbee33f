package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeStore_SingleUse(t *testing.T) {
	srv, cli := startMiniRedis(t)
	store := NewChallengeStore(cli, 0)
	assert.Equal(t, DefaultChallengeTTL, store.TTL())
	ctx := context.Background()

	c1, err := store.Issue(ctx, "u1", "phone")
	require.NoError(t, err)
	require.NotEmpty(t, c1)

	c2, err := store.Issue(ctx, "u1", "phone")
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2, "reissue replaces the outstanding challenge")

	got, err := store.Consume(ctx, "u1", "phone")
	require.NoError(t, err)
	assert.Equal(t, c2, got)

	got, err = store.Consume(ctx, "u1", "phone")
	require.NoError(t, err)
	assert.Empty(t, got, "second consume finds nothing")

	_, err = store.Issue(ctx, "u1", "tablet")
	require.NoError(t, err)
	srv.FastForward(3 * time.Minute)
	got, err = store.Consume(ctx, "u1", "tablet")
	require.NoError(t, err)
	assert.Empty(t, got, "expired challenge is gone")
}
