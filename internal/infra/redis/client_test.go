package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewFromRedis(rdb, time.Hour), mr
}

func TestSeenSignatures(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	seen, err := c.SeenSignatures(ctx, 1, []string{"a", "b"})
	require.NoError(t, err)
	assert.Empty(t, seen)

	require.NoError(t, c.MarkSeen(ctx, 1, []string{"a", "c"}))

	seen, err = c.SeenSignatures(ctx, 1, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, seen)

	// other wallets have their own set
	seen, err = c.SeenSignatures(ctx, 2, []string{"a"})
	require.NoError(t, err)
	assert.Empty(t, seen)
}

func TestMarkSeenExpires(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.MarkSeen(ctx, 7, []string{"sig"}))
	assert.Equal(t, time.Hour, mr.TTL(seenKey(7)))

	mr.FastForward(2 * time.Hour)

	seen, err := c.SeenSignatures(ctx, 7, []string{"sig"})
	require.NoError(t, err)
	assert.Empty(t, seen)
}

func TestForget(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.MarkSeen(ctx, 3, []string{"x"}))
	require.NoError(t, c.Forget(ctx, 3))

	seen, err := c.SeenSignatures(ctx, 3, []string{"x"})
	require.NoError(t, err)
	assert.Empty(t, seen)
}
