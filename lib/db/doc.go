// Package db provides a standardized interface for the embedded key-value
// databases that back the in-memory store of objectis.
//
// The package focuses on:
//   - A unified interface for string and set operations
//   - Feature discovery through capability flags
//   - Comprehensive metadata reporting
//
// Key Components:
//
//   - KVDB Interface: The core interface that all database implementations must satisfy.
//     It provides string operations (Set, Get, Has, Delete), set operations
//     (SAdd, SRem, SIsMember, SMembers), Flush and metadata retrieval (GetInfo).
//     A key holds either a string or a set. Commands that hit the other kind
//     fail with ErrWrongType, mirroring the behaviour of Redis.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method.
//
//   - Database Information: The DatabaseInfo structure reports the key count,
//     an estimated size and implementation-specific metadata.
//
// Note on Write Indices:
//   - All write operations require a write-index parameter that serves as a
//     logical timestamp. Writes are never rejected for their index, concurrent
//     writers may pass indices out of order.
//   - Read operations do not accept an index, they always observe the latest state.
//   - The write index only increases monotonically. SetWriteIdx advances it
//     without a write, lower values are ignored.
//
// Related Packages:
//
// The engines/maple package provides a sharded implementation of KVDB based on
// xsync maps. The util package provides the size statistics used by the
// implementations. The testing package provides RunKVDBTests and
// RunKVDBBenchmarks to validate and compare implementations.
package db
