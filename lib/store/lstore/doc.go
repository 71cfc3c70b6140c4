// Package lstore implements a local, in-memory backend based on the
// store.IPool interface. It is a thin wrapper around any db.KVDB
// implementation with automatic write index management. Data is stored entirely
// in memory and is not persisted between process restarts.
//
// Implementation Details:
//
//   - Write Index Management: The pool maintains an atomic counter that
//     increments with each write command. This provides the monotonically
//     increasing logical timestamp the db.KVDB contract asks for.
//
//   - Connections: All connections share one database. A connection is a cheap
//     handle whose only job is to account for the pool bound, which is enforced
//     with a weighted semaphore from golang.org/x/sync. Commands on a released
//     connection fail with RetCInvalidOperation.
//
//   - Feature Detection: Before executing a command, the connection checks if the
//     underlying db.KVDB supports it. Unsupported commands return
//     RetCUnsupportedOperation.
//
//   - Redis Parity: Commands behave like their Redis counterparts where objectis
//     depends on it. MGET yields nil for missing keys and for keys holding a set,
//     string commands against sets (and vice versa) fail with store.ErrWrongType.
//
// Usage Example:
//
//	pool := lstore.NewLocalPool(func() db.KVDB { return maple.NewMapleDB(nil) }, 16)
//	defer pool.Close()
//
//	conn, err := pool.Acquire(ctx)
//	if err != nil {
//		return err
//	}
//	defer pool.Release(conn)
//	err = conn.Set(ctx, "person/p1", payload)
//
// Thread Safety:
//
//	The pool is thread-safe. Connections follow the store.IConn contract and
//	are meant to be used by one goroutine at a time, even though the shared
//	database would tolerate more.
package lstore
