// Package rstore implements the store.IPool interface on top of a Redis
// server using github.com/redis/go-redis/v9.
//
// Every acquired store.IConn wraps a dedicated *redis.Conn taken from the
// go-redis client pool and closed again on Release, so commands of one
// connection never interleave with those of another. A weighted semaphore
// bounds the number of connections handed out at once to Options.PoolSize.
//
// Errors returned by go-redis are wrapped with github.com/pkg/errors and
// carry the failed command name. WRONGTYPE replies map to store.ErrWrongType
// and missing keys are reported as absent values, never as redis.Nil.
//
// Usage Example:
//
//	pool := rstore.NewRedisPool(&redis.Options{Addr: "localhost:6379", PoolSize: 16})
//	defer pool.Close()
//	if err := rstore.Ping(ctx, pool); err != nil {
//		return err
//	}
package rstore
