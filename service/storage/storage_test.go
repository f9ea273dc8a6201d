package storage

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linkhub/module/realtime"
	"linkhub/tools/ids"
)

var (
	_ realtime.Presence = (*Presence)(nil)
	_ realtime.Deduper  = (*Deduper)(nil)
)

func testRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("LINKHUB_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("LINKHUB_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return rdb
}

func TestPresence(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	user := "u-" + ids.GenerateString()
	gw1 := NewPresence(rdb, "gw-1", time.Minute)
	gw2 := NewPresence(rdb, "gw-2", time.Minute)

	_, online, err := gw1.Lookup(ctx, user)
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, gw1.Online(ctx, user))
	require.NoError(t, gw2.Online(ctx, user))

	// gw-1 going away must not clear gw-2's claim
	require.NoError(t, gw1.Offline(ctx, user))
	gw, online, err := gw1.Lookup(ctx, user)
	require.NoError(t, err)
	assert.True(t, online)
	assert.Equal(t, "gw-2", gw)

	require.NoError(t, gw2.Offline(ctx, user))
	_, online, err = gw2.Lookup(ctx, user)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestDeduper(t *testing.T) {
	rdb := testRedis(t)
	ctx := context.Background()
	d := NewDeduper(rdb, time.Minute)
	id := "ev-" + ids.GenerateString()

	seen, err := d.Seen(ctx, id)
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.Mark(ctx, id))
	seen, err = d.Seen(ctx, id)
	require.NoError(t, err)
	assert.True(t, seen)
}
