package testing

import (
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/objectis/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Set", func(b *testing.B) {
		benchmarkSet(b, factory())
	})

	b.Run("SetExisting", func(b *testing.B) {
		benchmarkSetExisting(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("Delete", func(b *testing.B) {
		benchmarkDelete(b, factory())
	})

	b.Run("SAdd", func(b *testing.B) {
		benchmarkSAdd(b, factory())
	})

	b.Run("SIsMember", func(b *testing.B) {
		benchmarkSIsMember(b, factory())
	})

	b.Run("SMembers(1k)", func(b *testing.B) {
		benchmarkSMembers(b, factory(), 1_000)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// index hands out monotonically increasing write indices across goroutines
var index atomic.Uint64

// Benchmark for Set operation
func benchmarkSet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			database.Set(key, value, index.Add(1))
			counter++
		}
	})
}

// Benchmark for Set operation with existing keys
func benchmarkSetExisting(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet)

	// Prepare data
	numKeys := 10_000
	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("test-key-%d", i)
		value := []byte(fmt.Sprintf("test-value-%d", i))
		database.Set(key, value, index.Add(1))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := fmt.Sprintf("test-key-%d", counter%numKeys)
			value := []byte(fmt.Sprintf("test-value-%d", counter))
			database.Set(key, value, index.Add(1))
			counter++
		}
	})
}

// Benchmark for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureGet)

	numKeys := 10_000
	for i := 0; i < numKeys; i++ {
		database.Set(fmt.Sprintf("test-key-%d", i), []byte("test-value"), index.Add(1))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			_, _, _ = database.Get(fmt.Sprintf("test-key-%d", rnd.Intn(numKeys)))
		}
	})
}

// Benchmark for Delete operation
func benchmarkDelete(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureDelete)

	numKeys := 10_000
	for i := 0; i < numKeys; i++ {
		database.Set(fmt.Sprintf("test-key-%d", i), []byte("test-value"), index.Add(1))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Delete(fmt.Sprintf("test-key-%d", counter%numKeys), index.Add(1))
			counter++
		}
	})
}

// Benchmark for adding members to a single hot set (type index pattern)
func benchmarkSAdd(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSets)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			member := fmt.Sprintf("member-%d", rnd.Int63())
			_, _ = database.SAdd("bench-set", []string{member}, index.Add(1))
		}
	})
}

// Benchmark for membership tests
func benchmarkSIsMember(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSets)

	numMembers := 10_000
	members := make([]string, numMembers)
	for i := range members {
		members[i] = fmt.Sprintf("member-%d", i)
	}
	_, _ = database.SAdd("bench-set", members, index.Add(1))

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			_, _ = database.SIsMember("bench-set", members[rnd.Intn(numMembers)])
		}
	})
}

// Benchmark for reading a whole set
func benchmarkSMembers(b *testing.B, database db.KVDB, size int) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSets)

	members := make([]string, size)
	for i := range members {
		members[i] = fmt.Sprintf("member-%d", i)
	}
	_, _ = database.SAdd("bench-set", members, index.Add(1))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = database.SMembers("bench-set")
	}
}

// Benchmark mixing object writes (Set + SAdd), reads and deletes
func benchmarkMixedUsage(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete|db.FeatureSets)

	numKeys := 10_000

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		rnd := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			id := fmt.Sprintf("%d", rnd.Intn(numKeys))
			key := "bench/" + id

			switch op := rnd.Intn(10); {
			case op < 3:
				database.Set(key, []byte("test-value"), index.Add(1))
				_, _ = database.SAdd("bench", []string{id}, index.Add(1))
			case op < 9:
				_, _, _ = database.Get(key)
			default:
				database.Delete(key, index.Add(1))
				_, _ = database.SRem("bench", []string{id}, index.Add(1))
			}
		}
	})
}
