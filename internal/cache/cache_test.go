package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return mr, client
}

func TestMatchCache_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	c := NewMatchCache(client, "")

	_, ok, err := c.Get(ctx, "player:p1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "player:p1", "B", time.Minute))
	assert.True(t, mr.Exists("matchmaking:player:p1"))
	assert.Equal(t, time.Minute, mr.TTL("matchmaking:player:p1"))

	value, ok, err := c.Get(ctx, "player:p1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "B", value)

	require.NoError(t, c.Delete(ctx, "player:p1", "room:A"))
	_, ok, err = c.Get(ctx, "player:p1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Delete(ctx))
}

func TestMatchCache_EntriesExpire(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	c := NewMatchCache(client, "test:")

	require.NoError(t, c.Set(ctx, "room:A", "B", 30*time.Second))
	mr.FastForward(31 * time.Second)

	_, ok, err := c.Get(ctx, "room:A")
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := c.ExpireSweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestMatchCache_ReportsUnavailableServer(t *testing.T) {
	ctx := context.Background()
	mr, client := newRedis(t)
	c := NewMatchCache(client, "")

	require.NoError(t, c.Ping(ctx))
	mr.Close()

	_, _, err := c.Get(ctx, "player:p1")
	assert.Error(t, err)
	assert.Error(t, c.Ping(ctx))
}

func TestWaitQueue_FIFOAndRemoveAll(t *testing.T) {
	ctx := context.Background()
	_, client := newRedis(t)
	q := NewWaitQueue(client, "")

	for _, name := range []string{"A", "B", "A", "C"} {
		require.NoError(t, q.PushBack(ctx, name))
	}
	require.NoError(t, q.PushBack(ctx, ""))

	names, err := q.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "A", "C"}, names)

	require.NoError(t, q.RemoveAll(ctx, "A"))
	require.NoError(t, q.RemoveAll(ctx, "missing"))

	names, err = q.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "C"}, names)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
