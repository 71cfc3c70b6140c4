// Package store defines the backend boundary of objectis: the narrow command
// surface of a key-value backend (IConn) and the pool that hands out
// connections (IPool), plus a coded error type shared by all backends.
//
// The command surface mirrors the Redis commands objectis issues:
// GET, SET, MGET, SADD, SREM, SISMEMBER, SMEMBERS, DEL and FLUSHDB. Every
// command takes a context.Context and is a blocking call on its connection.
//
// Key Components:
//
//   - IConn: One connection, used by one goroutine at a time. The batch
//     executor acquires a private connection per worker.
//
//   - IPool: Scoped acquisition. Acquire blocks until a connection is free,
//     Release returns it. Callers release on every exit path.
//
//   - Error System: A structured error reporting mechanism using typed error codes
//     (RetCode) and descriptive messages. ErrWrongType and ErrPoolClosed are
//     sentinels for errors.Is checks.
//
// Implementations:
//
//   - Local Store (lstore): An in-process backend on top of a db.KVDB engine
//     (maple by default). It manages write index progression with an atomic
//     counter and bounds concurrent connections with a weighted semaphore.
//     Available in the "github.com/ValentinKolb/objectis/lib/store/lstore" package.
//
//   - Redis Store (rstore): A backend on top of go-redis. Every acquired
//     connection is a dedicated connection of the go-redis pool.
//     Available in the "github.com/ValentinKolb/objectis/lib/store/rstore" package.
//
// The testing package ("github.com/ValentinKolb/objectis/lib/store/testing")
// provides RunStoreTests, a conformance suite both implementations pass.
package store
