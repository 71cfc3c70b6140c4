// Package maple implements a sharded in-memory key-value database (KVDB)
// holding string entries and member sets. It provides a complete
// implementation of the db.KVDB interface with a focus on thread safety
// and low contention.
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.KVDB. It manages
//     shards and provides the public API. The mapleImpl does not generate write
//     indices itself, the caller passes them in (lstore uses an atomic counter).
//
//   - Shard: A partition of the database that manages a subset of the key space.
//     Each shard owns an xsync.MapOf keyed by the key string.
//
//   - Entry: Either a string entry (byte value) or a set entry (internal.Set)
//     plus the write index of the last modification. A string command on a set
//     entry (and vice versa) fails with db.ErrWrongType.
//
// Internal Mechanisms:
//
//   - Sharding Strategy: The xxhash of a key selects its shard. Keys whose
//     hashes collide land in the same shard and stay distinct entries.
//
//   - Atomic Updates: Every operation, reads included, runs inside
//     MapOf.Compute so that the bucket of a key is locked for the duration of
//     the operation. Set members are mutated in place under that lock.
//
//   - Write Order: Writes to one key are applied in the order they acquire
//     the bucket lock. The write index is recorded per entry and never
//     decreases, it does not reject writes.
//
//   - Empty Sets: SRem removes a set entry once its last member is gone, and
//     SAdd without members never creates one. SMembers of a missing key is an
//     empty slice.
//
// Thread-safety: All methods of the database can be called concurrently.
// Flush clears shard by shard, writes racing with a flush may survive it.
package maple
