package lstore

import (
	"context"
	"testing"

	"github.com/ValentinKolb/objectis/lib/db"
	"github.com/ValentinKolb/objectis/lib/db/engines/maple"
	"github.com/ValentinKolb/objectis/lib/store"
	storetesting "github.com/ValentinKolb/objectis/lib/store/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mapleFactory() db.KVDB {
	return maple.NewMapleDB(nil)
}

func TestLocalPool(t *testing.T) {
	storetesting.RunStoreTests(t, "LocalPool", func(t *testing.T) store.IPool {
		return NewLocalPool(mapleFactory, 4)
	})
}

func TestDefaultSize(t *testing.T) {
	pool := NewLocalPool(mapleFactory, 0)
	defer pool.Close()
	assert.Positive(t, pool.Stats().Size)
	assert.Equal(t, "memory", pool.Stats().Backend)
}

func TestConnectionsShareTheDatabase(t *testing.T) {
	pool := NewLocalPool(mapleFactory, 2)
	defer pool.Close()

	ctx := context.Background()
	a, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer pool.Release(a)
	b, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer pool.Release(b)

	require.NoError(t, a.Set(ctx, "k", []byte("v")))
	got, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	info, err := pool.Info(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Keys)
	assert.Equal(t, db.ImplMaple, info.DbType)
}

func TestReleasedConnectionIsUnusable(t *testing.T) {
	pool := NewLocalPool(mapleFactory, 1)
	defer pool.Close()

	ctx := context.Background()
	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	pool.Release(conn)

	err = conn.Set(ctx, "k", []byte("v"))
	var storeErr *store.Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, store.RetCInvalidOperation, storeErr.Code)

	// a double release does not free a second slot
	pool.Release(conn)
	assert.Equal(t, 0, pool.Stats().InUse)
}

func TestCanceledContext(t *testing.T) {
	pool := NewLocalPool(mapleFactory, 1)
	defer pool.Close()

	ctx, cancel := context.WithCancel(context.Background())
	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer pool.Release(conn)

	cancel()
	assert.ErrorIs(t, conn.Set(ctx, "k", []byte("v")), context.Canceled)
}
