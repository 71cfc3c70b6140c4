package rstore

import (
	"context"
	"testing"

	"github.com/ValentinKolb/objectis/lib/store"
	storetesting "github.com/ValentinKolb/objectis/lib/store/testing"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, size int) (*miniredis.Miniredis, *poolImpl) {
	srv := miniredis.RunT(t)
	pool := NewRedisPool(&redis.Options{Addr: srv.Addr(), PoolSize: size})
	return srv, pool.(*poolImpl)
}

func TestRedisPool(t *testing.T) {
	storetesting.RunStoreTests(t, "RedisPool", func(t *testing.T) store.IPool {
		_, pool := newTestPool(t, 4)
		return pool
	})
}

func TestPing(t *testing.T) {
	srv, pool := newTestPool(t, 2)
	defer pool.Close()

	require.NoError(t, Ping(context.Background(), pool))

	srv.Close()
	assert.Error(t, Ping(context.Background(), pool))
}

func TestKeysAreVisibleOnServer(t *testing.T) {
	srv, pool := newTestPool(t, 2)
	defer pool.Close()

	ctx := context.Background()
	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer pool.Release(conn)

	require.NoError(t, conn.Set(ctx, "person/p1", []byte("payload")))
	_, err = conn.SAdd(ctx, "person", "p1")
	require.NoError(t, err)

	got, err := srv.Get("person/p1")
	require.NoError(t, err)
	assert.Equal(t, "payload", got)

	members, err := srv.Members("person")
	require.NoError(t, err)
	assert.Equal(t, []string{"p1"}, members)

	info, err := pool.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, info.Keys)
}

func TestReleasedConnectionIsUnusable(t *testing.T) {
	_, pool := newTestPool(t, 1)
	defer pool.Close()

	ctx := context.Background()
	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Release(conn)

	assert.Error(t, conn.Set(ctx, "k", []byte("v")))

	// double release must not free a second slot
	pool.Release(conn)
	assert.Equal(t, 0, pool.Stats().InUse)
}

func TestParseInfo(t *testing.T) {
	meta := parseInfo("# Memory\r\nused_memory:1024\r\nused_memory_human:1K\r\n\r\n")
	assert.Equal(t, "1024", meta["used_memory"])
	assert.Equal(t, "1K", meta["used_memory_human"])
	assert.Len(t, meta, 2)
}
