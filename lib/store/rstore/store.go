package rstore

import (
	"context"
	"runtime"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/ValentinKolb/objectis/lib/db"
	"github.com/ValentinKolb/objectis/lib/store"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"
)

var Logger = logger.GetLogger("store")

// --------------------------------------------------------------------------
// Pool
// --------------------------------------------------------------------------

type poolImpl struct {
	rdb      *redis.Client
	addr     string
	sem      *semaphore.Weighted
	size     int
	inUse    atomic.Int64
	acquires atomic.Uint64
	closed   atomic.Bool
}

// NewRedisPool creates a pool of dedicated connections to the redis server
// described by opts. opts.PoolSize bounds the number of connections handed out
// at once (0 uses runtime.NumCPU()*2). The server is not contacted until the
// first command, use Ping to verify the connection.
func NewRedisPool(opts *redis.Options) store.IPool {
	o := *opts
	if o.PoolSize <= 0 {
		o.PoolSize = runtime.NumCPU() * 2
	}
	return &poolImpl{
		rdb:  redis.NewClient(&o),
		addr: o.Addr,
		sem:  semaphore.NewWeighted(int64(o.PoolSize)),
		size: o.PoolSize,
	}
}

// Ping verifies that the server is reachable.
func Ping(ctx context.Context, pool store.IPool) error {
	p, ok := pool.(*poolImpl)
	if !ok {
		return store.NewError(store.RetCInvalidOperation, "not a redis pool")
	}
	return errors.Wrapf(p.rdb.Ping(ctx).Err(), "ping %s", p.addr)
}

func (p *poolImpl) Acquire(ctx context.Context) (store.IConn, error) {
	if p.closed.Load() {
		return nil, store.ErrPoolClosed
	}
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	if p.closed.Load() {
		p.sem.Release(1)
		return nil, store.ErrPoolClosed
	}
	p.inUse.Add(1)
	p.acquires.Add(1)
	return &connImpl{pool: p, conn: p.rdb.Conn()}, nil
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
	if err := c.conn.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		Logger.Warningf("closing redis connection: %v", err)
	}
	p.inUse.Add(-1)
	p.sem.Release(1)
}

func (p *poolImpl) Stats() store.PoolStats {
	return store.PoolStats{
		Backend:  "redis",
		Size:     p.size,
		InUse:    int(p.inUse.Load()),
		Acquires: p.acquires.Load(),
	}
}

// Info reports the key count of the selected database and the server memory usage.
func (p *poolImpl) Info(ctx context.Context) (db.DatabaseInfo, error) {
	keys, err := p.rdb.DBSize(ctx).Result()
	if err != nil {
		return db.DatabaseInfo{}, errors.Wrap(err, "redis DBSIZE")
	}

	info := db.DatabaseInfo{
		Keys:   int(keys),
		DbType: "redis",
	}

	// memory section is best effort, test servers may not implement INFO
	if raw, err := p.rdb.Info(ctx, "memory").Result(); err == nil {
		meta := parseInfo(raw)
		if used, err := strconv.Atoi(meta["used_memory"]); err == nil {
			info.SizeBytes = used
		}
		info.Metadata = meta
	}
	return info, nil
}

func (p *poolImpl) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	return errors.Wrap(p.rdb.Close(), "closing redis client")
}

// parseInfo parses the "key:value" lines of an INFO reply
func parseInfo(raw string) map[string]string {
	out := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if k, v, ok := strings.Cut(line, ":"); ok {
			out[k] = v
		}
	}
	return out
}

// --------------------------------------------------------------------------
// Connection (docu see store/interface.go)
// --------------------------------------------------------------------------

type connImpl struct {
	pool     *poolImpl
	conn     *redis.Conn
	released atomic.Bool
}

// wrap converts redis errors, WRONGTYPE replies become store.ErrWrongType
func wrap(err error, cmd string) error {
	if err == nil {
		return nil
	}
	if strings.HasPrefix(err.Error(), "WRONGTYPE") {
		return store.ErrWrongType
	}
	return errors.Wrapf(err, "redis %s", cmd)
}

func toArgs(members []string) []interface{} {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return args
}

func (c *connImpl) usable() error {
	if c.released.Load() {
		return store.NewError(store.RetCInvalidOperation, "command on a released connection")
	}
	return nil
}

func (c *connImpl) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := c.usable(); err != nil {
		return nil, false, err
	}
	val, err := c.conn.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, wrap(err, "GET")
	}
	return val, true, nil
}

func (c *connImpl) Set(ctx context.Context, key string, value []byte) error {
	if err := c.usable(); err != nil {
		return err
	}
	return wrap(c.conn.Set(ctx, key, value, 0).Err(), "SET")
}

func (c *connImpl) MGet(ctx context.Context, keys ...string) ([][]byte, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return [][]byte{}, nil
	}
	raw, err := c.conn.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, wrap(err, "MGET")
	}
	values := make([][]byte, len(raw))
	for i, v := range raw {
		switch v := v.(type) {
		case nil:
		case string:
			values[i] = []byte(v)
		case []byte:
			values[i] = v
		default:
			return nil, errors.Errorf("redis MGET: unexpected reply type %T", v)
		}
	}
	return values, nil
}

func (c *connImpl) SAdd(ctx context.Context, key string, members ...string) (int64, error) {
	if err := c.usable(); err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}
	n, err := c.conn.SAdd(ctx, key, toArgs(members)...).Result()
	return n, wrap(err, "SADD")
}

func (c *connImpl) SRem(ctx context.Context, key string, members ...string) (int64, error) {
	if err := c.usable(); err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}
	n, err := c.conn.SRem(ctx, key, toArgs(members)...).Result()
	return n, wrap(err, "SREM")
}

func (c *connImpl) SIsMember(ctx context.Context, key string, member string) (bool, error) {
	if err := c.usable(); err != nil {
		return false, err
	}
	ok, err := c.conn.SIsMember(ctx, key, member).Result()
	return ok, wrap(err, "SISMEMBER")
}

func (c *connImpl) SMembers(ctx context.Context, key string) ([]string, error) {
	if err := c.usable(); err != nil {
		return nil, err
	}
	members, err := c.conn.SMembers(ctx, key).Result()
	if err != nil {
		return nil, wrap(err, "SMEMBERS")
	}
	if members == nil {
		members = []string{}
	}
	return members, nil
}

func (c *connImpl) Del(ctx context.Context, keys ...string) (int64, error) {
	if err := c.usable(); err != nil {
		return 0, err
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.conn.Del(ctx, keys...).Result()
	return n, wrap(err, "DEL")
}

func (c *connImpl) FlushDB(ctx context.Context) error {
	if err := c.usable(); err != nil {
		return err
	}
	return wrap(c.conn.FlushDB(ctx).Err(), "FLUSHDB")
}
