package store

import (
	"context"
	"fmt"

	"github.com/ValentinKolb/objectis/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// IConn is one connection to a key-value backend. It exposes the narrow
// command surface objectis relies on. A connection must not be used by two
// goroutines at the same time, acquire one connection per goroutine instead.
//
// Missing keys are not errors: Get reports loaded=false, MGet yields nil at the
// position of a missing key and SMembers returns an empty slice.
type IConn interface {
	// Get returns the value stored at key (GET).
	Get(ctx context.Context, key string) (value []byte, loaded bool, err error)
	// Set stores value at key, replacing whatever was stored before (SET).
	Set(ctx context.Context, key string, value []byte) (err error)
	// MGet returns the values of all keys in order, nil for missing keys (MGET).
	MGet(ctx context.Context, keys ...string) (values [][]byte, err error)
	// SAdd adds members to the set at key (SADD) and returns the number of new members.
	SAdd(ctx context.Context, key string, members ...string) (added int64, err error)
	// SRem removes members from the set at key (SREM) and returns the number of removed members.
	SRem(ctx context.Context, key string, members ...string) (removed int64, err error)
	// SIsMember reports whether member is part of the set at key (SISMEMBER).
	SIsMember(ctx context.Context, key string, member string) (ok bool, err error)
	// SMembers returns all members of the set at key in no particular order (SMEMBERS).
	SMembers(ctx context.Context, key string) (members []string, err error)
	// Del removes keys of any kind (DEL) and returns the number of removed keys.
	Del(ctx context.Context, keys ...string) (deleted int64, err error)
	// FlushDB removes every key of the backend database (FLUSHDB).
	FlushDB(ctx context.Context) (err error)
}

// IPool hands out connections. Every acquired connection must be released,
// on error paths as well.
//
// Thread-safety: All methods of a pool can be called concurrently.
type IPool interface {
	// Acquire returns a connection for exclusive use. It blocks until a
	// connection is available or ctx is done.
	Acquire(ctx context.Context) (conn IConn, err error)
	// Release returns a connection to the pool. Releasing nil is a no-op.
	Release(conn IConn)
	// Stats returns the current pool statistics.
	Stats() PoolStats
	// Info returns backend metadata (key count, size, implementation details).
	Info(ctx context.Context) (info db.DatabaseInfo, err error)
	// Close closes the pool. Acquire fails with RetCPoolClosed afterwards.
	Close() (err error)
}

// PoolStats describes the usage of a pool
type PoolStats struct {
	Backend  string `json:"backend"`
	Size     int    `json:"size"`     // Maximum number of connections handed out at once
	InUse    int    `json:"in_use"`   // Connections currently acquired
	Acquires uint64 `json:"acquires"` // Total number of successful Acquire calls
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode)
// and an error message.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("StoreError (code %s): %s", e.Code, e.Msg)
}

// Is reports whether target is a store error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess              RetCode = iota // 0: Command executed successfully.
	RetCInternalError                       // 1: Command failed due to an internal error.
	RetCUnsupportedOperation                // 2: Operation is not supported by underlying database.
	RetCInvalidOperation                    // 3: Invalid operation.
	RetCWrongType                           // 4: Command against a key holding the wrong kind of value.
	RetCPoolClosed                          // 5: The pool has been closed.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCUnsupportedOperation:
		return "UnsupportedOperation"
	case RetCInvalidOperation:
		return "InvalidOperation"
	case RetCWrongType:
		return "WrongType"
	case RetCPoolClosed:
		return "PoolClosed"
	default:
		return "Unknown"
	}
}

// Sentinels for errors.Is checks
var (
	ErrWrongType  = NewError(RetCWrongType, "operation against a key holding the wrong kind of value")
	ErrPoolClosed = NewError(RetCPoolClosed, "pool is closed")
)
