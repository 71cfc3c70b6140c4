package lstore

import (
	"context"
	"errors"
	"runtime"
	"sync/atomic"

	"github.com/ValentinKolb/objectis/lib/db"
	"github.com/ValentinKolb/objectis/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/semaphore"
)

var Logger = logger.GetLogger("store")

// --------------------------------------------------------------------------
// Pool
// --------------------------------------------------------------------------

type poolImpl struct {
	db       db.KVDB
	index    atomic.Uint64 // write index handed to the db
	sem      *semaphore.Weighted
	size     int
	inUse    atomic.Int64
	acquires atomic.Uint64
	closed   atomic.Bool
}

// NewLocalPool creates an in-process pool over the db created by factory.
// At most size connections are handed out at once (size <= 0 uses runtime.NumCPU()*2).
// All connections share the same database.
func NewLocalPool(factory store.DBFactory, size int) store.IPool {
	if size <= 0 {
		size = runtime.NumCPU() * 2
	}
	return &poolImpl{
		db:   factory(),
		sem:  semaphore.NewWeighted(int64(size)),
		size: size,
	}
}

// incAndGetIndex increments the index and returns the new value.
// It is used to ensure that each write operation has a unique index.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (p *poolImpl) incAndGetIndex() uint64 {
	return p.index.Add(1)
}

func (p *poolImpl) Acquire(ctx context.Context) (store.IConn, error) {
	if p.closed.Load() {
		return nil, store.ErrPoolClosed
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	// the pool may have been closed while waiting
	if p.closed.Load() {
		p.sem.Release(1)
		return nil, store.ErrPoolClosed
	}
	p.inUse.Add(1)
	p.acquires.Add(1)
	return &connImpl{pool: p}, nil
}

func (p *poolImpl) Release(conn store.IConn) {
	c, ok := conn.(*connImpl)
	if !ok || c == nil || c.pool != p {
		return
	}
	if !c.released.CompareAndSwap(false, true) {
		Logger.Warningf("connection released twice")
		return
	}
	p.inUse.Add(-1)
	p.sem.Release(1)
}

func (p *poolImpl) Stats() store.PoolStats {
	return store.PoolStats{
		Backend:  "memory",
		Size:     p.size,
		InUse:    int(p.inUse.Load()),
		Acquires: p.acquires.Load(),
	}
}

func (p *poolImpl) Info(context.Context) (db.DatabaseInfo, error) {
	return p.db.GetInfo(), nil
}

func (p *poolImpl) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return p.db.Close()
}

// --------------------------------------------------------------------------
// Connection (docu see store/interface.go)
// --------------------------------------------------------------------------

type connImpl struct {
	pool     *poolImpl
	released atomic.Bool
}

// check fails if the connection is no longer usable or the db lacks a feature
func (c *connImpl) check(ctx context.Context, feature db.Feature, op string) error {
	if c.released.Load() {
		return store.NewError(store.RetCInvalidOperation, op+" on a released connection")
	}
	if c.pool.closed.Load() {
		return store.ErrPoolClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.pool.db.SupportsFeature(feature) {
		return store.NewError(store.RetCUnsupportedOperation, op+" operation is not supported")
	}
	return nil
}

// convert maps db errors to store errors
func convert(err error) error {
	if errors.Is(err, db.ErrWrongType) {
		return store.ErrWrongType
	}
	return err
}

func (c *connImpl) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := c.check(ctx, db.FeatureGet, "Get"); err != nil {
		return nil, false, err
	}
	val, ok, err := c.pool.db.Get(key)
	return val, ok, convert(err)
}

func (c *connImpl) Set(ctx context.Context, key string, value []byte) error {
	if err := c.check(ctx, db.FeatureSet, "Set"); err != nil {
		return err
	}
	c.pool.db.Set(key, value, c.pool.incAndGetIndex())
	return nil
}

func (c *connImpl) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if err := c.check(ctx, db.FeatureGet, "MGet"); err != nil {
		return nil, err
	}
	values := make([][]byte, len(keys))
	for i, key := range keys {
		// like redis, MGET yields nil for keys holding a set
		val, ok, err := c.pool.db.Get(key)
		if err != nil || !ok {
			continue
		}
		if val == nil {
			val = []byte{}
		}
		values[i] = val
	}
	return values, nil
}

func (c *connImpl) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	if err := c.check(ctx, db.FeatureSets, "SAdd"); err != nil {
		return 0, err
	}
	added, err := c.pool.db.SAdd(key, members, c.pool.incAndGetIndex())
	return int64(added), convert(err)
}

func (c *connImpl) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	if err := c.check(ctx, db.FeatureSets, "SRem"); err != nil {
		return 0, err
	}
	removed, err := c.pool.db.SRem(key, members, c.pool.incAndGetIndex())
	return int64(removed), convert(err)
}

func (c *connImpl) SIsMember(ctx context.Context, key string, member string) (bool, error) {
	if err := c.check(ctx, db.FeatureSets, "SIsMember"); err != nil {
		return false, err
	}
	ok, err := c.pool.db.SIsMember(key, member)
	return ok, convert(err)
}

func (c *connImpl) SMembers(ctx context.Context, key string) ([]string, error) {
	if err := c.check(ctx, db.FeatureSets, "SMembers"); err != nil {
		return nil, err
	}
	members, err := c.pool.db.SMembers(key)
	return members, convert(err)
}

func (c *connImpl) Del(ctx context.Context, keys ...string) (int64, error) {
	if err := c.check(ctx, db.FeatureDelete, "Del"); err != nil {
		return 0, err
	}
	var deleted int64
	for _, key := range keys {
		if c.pool.db.Delete(key, c.pool.incAndGetIndex()) {
			deleted++
		}
	}
	return deleted, nil
}

func (c *connImpl) FlushDB(ctx context.Context) error {
	if err := c.check(ctx, db.FeatureFlush, "FlushDB"); err != nil {
		return err
	}
	c.pool.db.Flush(c.pool.incAndGetIndex())
	return nil
}
