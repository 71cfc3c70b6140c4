package testing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/objectis/lib/store"
)

// PoolFactory creates a new, empty pool for one test
type PoolFactory func(t *testing.T) store.IPool

// RunStoreTests runs the conformance suite for an IPool implementation.
// Every subtest gets its own pool from factory.
func RunStoreTests(t *testing.T, name string, factory PoolFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			withConn(t, factory, testSetGet)
		})

		t.Run("MGet", func(t *testing.T) {
			withConn(t, factory, testMGet)
		})

		t.Run("Sets", func(t *testing.T) {
			withConn(t, factory, testSets)
		})

		t.Run("Del", func(t *testing.T) {
			withConn(t, factory, testDel)
		})

		t.Run("WrongType", func(t *testing.T) {
			withConn(t, factory, testWrongType)
		})

		t.Run("FlushDB", func(t *testing.T) {
			withConn(t, factory, testFlushDB)
		})

		t.Run("PoolBound", func(t *testing.T) {
			testPoolBound(t, factory(t))
		})

		t.Run("ConcurrentConnections", func(t *testing.T) {
			testConcurrentConnections(t, factory(t))
		})

		t.Run("ConcurrentSetWrites", func(t *testing.T) {
			testConcurrentSetWrites(t, factory(t))
		})

		t.Run("Close", func(t *testing.T) {
			testClose(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func withConn(t *testing.T, factory PoolFactory, fn func(t *testing.T, ctx context.Context, conn store.IConn)) {
	pool := factory(t)
	defer pool.Close()

	ctx := context.Background()
	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer pool.Release(conn)

	fn(t, ctx, conn)
}

func sorted(members []string) []string {
	out := append([]string(nil), members...)
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testSetGet(t *testing.T, ctx context.Context, conn store.IConn) {
	if err := conn.Set(ctx, "person/p1", []byte("v1")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	value, ok, err := conn.Get(ctx, "person/p1")
	if err != nil || !ok || !bytes.Equal(value, []byte("v1")) {
		t.Errorf("Expected v1, got %q (ok=%v, err=%v)", value, ok, err)
	}

	if err := conn.Set(ctx, "person/p1", []byte("v2")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	value, _, _ = conn.Get(ctx, "person/p1")
	if !bytes.Equal(value, []byte("v2")) {
		t.Errorf("Expected overwrite to v2, got %q", value)
	}

	_, ok, err = conn.Get(ctx, "person/missing")
	if err != nil || ok {
		t.Errorf("Expected missing key to be absent without error, got ok=%v err=%v", ok, err)
	}

	// binary values survive unchanged
	binary := []byte{0, 1, 2, 255, 0}
	if err := conn.Set(ctx, "binary", binary); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if value, _, _ := conn.Get(ctx, "binary"); !bytes.Equal(value, binary) {
		t.Errorf("Binary value mismatch: %v", value)
	}
}

func testMGet(t *testing.T, ctx context.Context, conn store.IConn) {
	for i := 0; i < 5; i++ {
		if err := conn.Set(ctx, fmt.Sprintf("k%d", i), []byte(fmt.Sprintf("v%d", i))); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}

	values, err := conn.MGet(ctx, "k3", "missing", "k0", "k4")
	if err != nil {
		t.Fatalf("MGet failed: %v", err)
	}
	if len(values) != 4 {
		t.Fatalf("Expected 4 positional values, got %d", len(values))
	}

	expected := [][]byte{[]byte("v3"), nil, []byte("v0"), []byte("v4")}
	for i := range expected {
		if expected[i] == nil {
			if values[i] != nil {
				t.Errorf("Expected nil at position %d, got %q", i, values[i])
			}
			continue
		}
		if !bytes.Equal(values[i], expected[i]) {
			t.Errorf("Position %d: expected %q, got %q", i, expected[i], values[i])
		}
	}

	// sets are not strings, MGET reports them as missing
	if _, err := conn.SAdd(ctx, "a-set", "m"); err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}
	values, err = conn.MGet(ctx, "a-set")
	if err != nil || len(values) != 1 || values[0] != nil {
		t.Errorf("Expected nil for a set in MGet, got %v (err=%v)", values, err)
	}
}

func testSets(t *testing.T, ctx context.Context, conn store.IConn) {
	members, err := conn.SMembers(ctx, "person")
	if err != nil || len(members) != 0 {
		t.Errorf("Expected missing set to be empty, got %v (err=%v)", members, err)
	}

	added, err := conn.SAdd(ctx, "person", "p2", "p1", "p3")
	if err != nil || added != 3 {
		t.Errorf("Expected 3 added, got %d (err=%v)", added, err)
	}
	added, err = conn.SAdd(ctx, "person", "p1")
	if err != nil || added != 0 {
		t.Errorf("Expected 0 added for a duplicate, got %d (err=%v)", added, err)
	}

	members, err = conn.SMembers(ctx, "person")
	if err != nil || !equalStrings(sorted(members), []string{"p1", "p2", "p3"}) {
		t.Errorf("Unexpected members %v (err=%v)", members, err)
	}

	if ok, err := conn.SIsMember(ctx, "person", "p2"); err != nil || !ok {
		t.Errorf("Expected p2 to be a member (err=%v)", err)
	}
	if ok, err := conn.SIsMember(ctx, "person", "p9"); err != nil || ok {
		t.Errorf("Expected p9 not to be a member (err=%v)", err)
	}
	if ok, err := conn.SIsMember(ctx, "nothing", "p1"); err != nil || ok {
		t.Errorf("Expected membership in a missing set to be false (err=%v)", err)
	}

	removed, err := conn.SRem(ctx, "person", "p2", "p9")
	if err != nil || removed != 1 {
		t.Errorf("Expected 1 removed, got %d (err=%v)", removed, err)
	}
	members, _ = conn.SMembers(ctx, "person")
	if !equalStrings(sorted(members), []string{"p1", "p3"}) {
		t.Errorf("Unexpected members after SRem %v", members)
	}

	// removing the last members deletes the set
	if _, err := conn.SRem(ctx, "person", "p1", "p3"); err != nil {
		t.Fatalf("SRem failed: %v", err)
	}
	if deleted, err := conn.Del(ctx, "person"); err != nil || deleted != 0 {
		t.Errorf("Expected the empty set to be gone, Del removed %d (err=%v)", deleted, err)
	}
}

func testDel(t *testing.T, ctx context.Context, conn store.IConn) {
	_ = conn.Set(ctx, "a", []byte("1"))
	_ = conn.Set(ctx, "b", []byte("2"))
	_, _ = conn.SAdd(ctx, "c", "x")

	deleted, err := conn.Del(ctx, "a", "c", "missing")
	if err != nil || deleted != 2 {
		t.Errorf("Expected 2 deleted, got %d (err=%v)", deleted, err)
	}

	if _, ok, _ := conn.Get(ctx, "a"); ok {
		t.Errorf("Expected a to be deleted")
	}
	if _, ok, _ := conn.Get(ctx, "b"); !ok {
		t.Errorf("Expected b to survive")
	}

	// deleting a missing key is not an error
	if deleted, err := conn.Del(ctx, "missing"); err != nil || deleted != 0 {
		t.Errorf("Expected no-op delete, got %d (err=%v)", deleted, err)
	}
}

func testWrongType(t *testing.T, ctx context.Context, conn store.IConn) {
	_ = conn.Set(ctx, "str", []byte("v"))
	_, _ = conn.SAdd(ctx, "set", "m")

	if _, err := conn.SAdd(ctx, "str", "m"); !errors.Is(err, store.ErrWrongType) {
		t.Errorf("Expected ErrWrongType for SAdd on a string, got %v", err)
	}
	if _, err := conn.SMembers(ctx, "str"); !errors.Is(err, store.ErrWrongType) {
		t.Errorf("Expected ErrWrongType for SMembers on a string, got %v", err)
	}
	if _, _, err := conn.Get(ctx, "set"); !errors.Is(err, store.ErrWrongType) {
		t.Errorf("Expected ErrWrongType for Get on a set, got %v", err)
	}

	// SET replaces any kind
	if err := conn.Set(ctx, "set", []byte("now a string")); err != nil {
		t.Errorf("Expected Set to replace a set, got %v", err)
	}
}

func testFlushDB(t *testing.T, ctx context.Context, conn store.IConn) {
	_ = conn.Set(ctx, "a", []byte("1"))
	_, _ = conn.SAdd(ctx, "s", "x")

	if err := conn.FlushDB(ctx); err != nil {
		t.Fatalf("FlushDB failed: %v", err)
	}

	if _, ok, _ := conn.Get(ctx, "a"); ok {
		t.Errorf("Expected a to be gone after FlushDB")
	}
	if members, _ := conn.SMembers(ctx, "s"); len(members) != 0 {
		t.Errorf("Expected s to be empty after FlushDB, got %v", members)
	}
}

func testPoolBound(t *testing.T, pool store.IPool) {
	defer pool.Close()

	size := pool.Stats().Size
	if size <= 0 {
		t.Fatalf("Expected a positive pool size, got %d", size)
	}

	ctx := context.Background()
	conns := make([]store.IConn, 0, size)
	for i := 0; i < size; i++ {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire %d failed: %v", i, err)
		}
		conns = append(conns, conn)
	}

	if inUse := pool.Stats().InUse; inUse != size {
		t.Errorf("Expected %d connections in use, got %d", size, inUse)
	}

	// the pool is exhausted, acquiring blocks until the deadline
	timeoutCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if conn, err := pool.Acquire(timeoutCtx); err == nil {
		pool.Release(conn)
		t.Errorf("Expected Acquire on an exhausted pool to fail")
	}

	for _, conn := range conns {
		pool.Release(conn)
	}
	if inUse := pool.Stats().InUse; inUse != 0 {
		t.Errorf("Expected 0 connections in use after release, got %d", inUse)
	}

	// releasing nil is a no-op
	pool.Release(nil)
}

func testConcurrentConnections(t *testing.T, pool store.IPool) {
	defer pool.Close()

	ctx := context.Background()
	numWorkers := 8
	perWorker := 50

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func(worker int) {
			defer wg.Done()

			conn, err := pool.Acquire(ctx)
			if err != nil {
				t.Errorf("Acquire failed: %v", err)
				return
			}
			defer pool.Release(conn)

			for i := 0; i < perWorker; i++ {
				id := fmt.Sprintf("w%d-%d", worker, i)
				if err := conn.Set(ctx, "obj/"+id, []byte(id)); err != nil {
					t.Errorf("Set failed: %v", err)
					return
				}
				if _, err := conn.SAdd(ctx, "obj", id); err != nil {
					t.Errorf("SAdd failed: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	conn, err := pool.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	defer pool.Release(conn)

	members, err := conn.SMembers(ctx, "obj")
	if err != nil || len(members) != numWorkers*perWorker {
		t.Errorf("Expected %d members, got %d (err=%v)", numWorkers*perWorker, len(members), err)
	}

	if stats := pool.Stats(); stats.Acquires < uint64(numWorkers+1) {
		t.Errorf("Expected at least %d acquires, got %d", numWorkers+1, stats.Acquires)
	}
}

// testConcurrentSetWrites hammers one set key from many goroutines. Every
// member is added, removed and added again by the same goroutine, so each one
// must be present at the end no matter how the writers interleave.
func testConcurrentSetWrites(t *testing.T, pool store.IPool) {
	defer pool.Close()
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(8))

	ctx := context.Background()
	numWorkers := 16
	perWorker := 100
	rounds := 10

	for round := 0; round < rounds; round++ {
		key := fmt.Sprintf("set-writes-%d", round)

		var wg sync.WaitGroup
		wg.Add(numWorkers)
		for w := 0; w < numWorkers; w++ {
			go func(worker int) {
				defer wg.Done()

				conn, err := pool.Acquire(ctx)
				if err != nil {
					t.Errorf("Acquire failed: %v", err)
					return
				}
				defer pool.Release(conn)

				for i := 0; i < perWorker; i++ {
					member := fmt.Sprintf("w%d-%d", worker, i)
					if _, err := conn.SAdd(ctx, key, member); err != nil {
						t.Errorf("SAdd failed: %v", err)
						return
					}
					if i%3 != 0 {
						continue
					}
					if _, err := conn.SRem(ctx, key, member); err != nil {
						t.Errorf("SRem failed: %v", err)
						return
					}
					if _, err := conn.SAdd(ctx, key, member); err != nil {
						t.Errorf("SAdd failed: %v", err)
						return
					}
				}
			}(w)
		}
		wg.Wait()

		conn, err := pool.Acquire(ctx)
		if err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
		members, err := conn.SMembers(ctx, key)
		pool.Release(conn)
		if err != nil {
			t.Fatalf("SMembers failed: %v", err)
		}
		if len(members) != numWorkers*perWorker {
			t.Fatalf("Round %d: expected %d members, got %d", round, numWorkers*perWorker, len(members))
		}
	}
}

func testClose(t *testing.T, pool store.IPool) {
	if _, err := pool.Info(context.Background()); err != nil {
		t.Errorf("Info failed: %v", err)
	}

	if err := pool.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := pool.Acquire(context.Background()); err == nil {
		t.Errorf("Expected Acquire on a closed pool to fail")
	}
	// closing twice is harmless
	_ = pool.Close()
}
