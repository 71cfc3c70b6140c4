package testing

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/objectis/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Set&Get", func(t *testing.T) {
			testSetGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Has", func(t *testing.T) {
			testHas(t, factory())
		})

		t.Run("Sets", func(t *testing.T) {
			testSets(t, factory())
		})

		t.Run("WrongType", func(t *testing.T) {
			testWrongType(t, factory())
		})

		t.Run("WriteIndex", func(t *testing.T) {
			testWriteIndex(t, factory())
		})

		t.Run("OutOfOrderIndices", func(t *testing.T) {
			testOutOfOrderIndices(t, factory())
		})

		t.Run("Flush", func(t *testing.T) {
			testFlush(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("CollisionHandling", func(t *testing.T) {
			testCollisionHandling(t, factory())
		})

		t.Run("ConcurrentSetMembers", func(t *testing.T) {
			testConcurrentSetMembers(t, factory())
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.KVDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

func mustGet(t *testing.T, database db.KVDB, key string) ([]byte, bool) {
	t.Helper()
	value, ok, err := database.Get(key)
	if err != nil {
		t.Fatalf("Get(%q) returned unexpected error: %v", key, err)
	}
	return value, ok
}

func mustMembers(t *testing.T, database db.KVDB, key string) []string {
	t.Helper()
	members, err := database.SMembers(key)
	if err != nil {
		t.Fatalf("SMembers(%q) returned unexpected error: %v", key, err)
	}
	sort.Strings(members)
	return members
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

func testSetGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	testKey := "test-key"
	testValue1 := []byte("test-value1")
	testValue2 := []byte("test-value2")

	database.Set(testKey, testValue1, 1)

	result, exists := mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue1) {
		t.Errorf("Expected value %s, got %s", testValue1, result)
	}

	database.Set(testKey, testValue2, 2)

	result, exists = mustGet(t, database, testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Set", testKey)
	}
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Expected value %s, got %s", testValue2, result)
	}

	_, exists = mustGet(t, database, "nonexistent-key")
	if exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}

	// returned values must be copies
	retrievedValue, _ := mustGet(t, database, testKey)
	retrievedValue[0] = 'X'
	result, _ = mustGet(t, database, testKey)
	if !bytes.Equal(result, testValue2) {
		t.Errorf("Modifying a returned value changed the stored value: %s", result)
	}

	// so must be stored values
	input := []byte("mutable")
	database.Set("mutable-key", input, 3)
	input[0] = 'X'
	result, _ = mustGet(t, database, "mutable-key")
	if !bytes.Equal(result, []byte("mutable")) {
		t.Errorf("Modifying the input slice changed the stored value: %s", result)
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	database.Set("delete-key", []byte("value"), 1)

	if deleted := database.Delete("delete-key", 2); !deleted {
		t.Errorf("Expected Delete to report an existing key")
	}
	if _, exists := mustGet(t, database, "delete-key"); exists {
		t.Errorf("Expected key to be gone after Delete")
	}
	if deleted := database.Delete("delete-key", 3); deleted {
		t.Errorf("Expected second Delete to report a missing key")
	}

	// deleting a set removes it entirely
	if _, err := database.SAdd("delete-set", []string{"a", "b"}, 4); err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}
	if deleted := database.Delete("delete-set", 5); !deleted {
		t.Errorf("Expected Delete to report an existing set")
	}
	if members := mustMembers(t, database, "delete-set"); len(members) != 0 {
		t.Errorf("Expected deleted set to be empty, got %v", members)
	}
}

func testHas(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureHas|db.FeatureSets)

	if database.Has("has-key") {
		t.Errorf("Expected Has to return false before Set")
	}

	database.Set("has-key", []byte("value"), 1)
	if !database.Has("has-key") {
		t.Errorf("Expected Has to return true after Set")
	}

	if _, err := database.SAdd("has-set", []string{"m"}, 2); err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}
	if !database.Has("has-set") {
		t.Errorf("Expected Has to return true for a set")
	}

	database.Delete("has-key", 3)
	if database.Has("has-key") {
		t.Errorf("Expected Has to return false after Delete")
	}
}

func testSets(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSets)

	key := "set-key"

	if members := mustMembers(t, database, key); len(members) != 0 {
		t.Errorf("Expected missing set to be empty, got %v", members)
	}

	added, err := database.SAdd(key, []string{"b", "a", "c"}, 1)
	if err != nil || added != 3 {
		t.Errorf("Expected 3 new members, got %d (err=%v)", added, err)
	}

	added, err = database.SAdd(key, []string{"a", "d"}, 2)
	if err != nil || added != 1 {
		t.Errorf("Expected 1 new member, got %d (err=%v)", added, err)
	}

	if members := mustMembers(t, database, key); !equalStrings(members, []string{"a", "b", "c", "d"}) {
		t.Errorf("Unexpected members %v", members)
	}

	for member, want := range map[string]bool{"a": true, "d": true, "x": false} {
		got, err := database.SIsMember(key, member)
		if err != nil {
			t.Errorf("SIsMember(%q) returned unexpected error: %v", member, err)
		}
		if got != want {
			t.Errorf("SIsMember(%q) = %v, want %v", member, got, want)
		}
	}

	if ok, err := database.SIsMember("missing-set", "a"); ok || err != nil {
		t.Errorf("Expected SIsMember on a missing set to be false, got %v (err=%v)", ok, err)
	}

	removed, err := database.SRem(key, []string{"a", "x"}, 3)
	if err != nil || removed != 1 {
		t.Errorf("Expected 1 removed member, got %d (err=%v)", removed, err)
	}

	removed, err = database.SRem(key, []string{"b", "c", "d"}, 4)
	if err != nil || removed != 3 {
		t.Errorf("Expected 3 removed members, got %d (err=%v)", removed, err)
	}

	// empty sets disappear
	if database.SupportsFeature(db.FeatureHas) && database.Has(key) {
		t.Errorf("Expected empty set to be removed")
	}

	if removed, err := database.SRem("missing-set", []string{"a"}, 5); removed != 0 || err != nil {
		t.Errorf("Expected SRem on a missing set to remove nothing, got %d (err=%v)", removed, err)
	}
}

func testWrongType(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureSets)

	database.Set("string-key", []byte("value"), 1)
	if _, err := database.SAdd("set-key", []string{"a"}, 2); err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}

	if _, err := database.SAdd("string-key", []string{"a"}, 3); !errors.Is(err, db.ErrWrongType) {
		t.Errorf("Expected ErrWrongType for SAdd on a string, got %v", err)
	}
	if _, err := database.SRem("string-key", []string{"a"}, 3); !errors.Is(err, db.ErrWrongType) {
		t.Errorf("Expected ErrWrongType for SRem on a string, got %v", err)
	}
	if _, err := database.SMembers("string-key"); !errors.Is(err, db.ErrWrongType) {
		t.Errorf("Expected ErrWrongType for SMembers on a string, got %v", err)
	}
	if _, err := database.SIsMember("string-key", "a"); !errors.Is(err, db.ErrWrongType) {
		t.Errorf("Expected ErrWrongType for SIsMember on a string, got %v", err)
	}
	if _, _, err := database.Get("set-key"); !errors.Is(err, db.ErrWrongType) {
		t.Errorf("Expected ErrWrongType for Get on a set, got %v", err)
	}

	// Set replaces a set
	database.Set("set-key", []byte("now a string"), 4)
	if value, ok := mustGet(t, database, "set-key"); !ok || string(value) != "now a string" {
		t.Errorf("Expected Set to replace the set, got %q (ok=%v)", value, ok)
	}

	// the string value survived the failed set commands
	if value, ok := mustGet(t, database, "string-key"); !ok || string(value) != "value" {
		t.Errorf("Expected string to survive, got %q (ok=%v)", value, ok)
	}
}

func testWriteIndex(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet)

	database.Set("index-key", []byte("first"), 10)
	database.Set("index-key", []byte("second"), 5)

	// a lower index does not reject the write
	if value, _ := mustGet(t, database, "index-key"); string(value) != "second" {
		t.Errorf("Expected the last write to win, got %s", value)
	}

	if idx := database.WriteIdx(); idx != 10 {
		t.Errorf("Expected write index 10, got %d", idx)
	}

	database.SetWriteIdx(3)
	if idx := database.WriteIdx(); idx != 10 {
		t.Errorf("Expected write index to stay at 10, got %d", idx)
	}

	database.SetWriteIdx(12)
	if idx := database.WriteIdx(); idx != 12 {
		t.Errorf("Expected write index 12, got %d", idx)
	}
}

// testOutOfOrderIndices takes indices from a shared counter before each
// write, the way a pool does, so writers regularly apply them out of order.
func testOutOfOrderIndices(t *testing.T, database db.KVDB) {
	defer database.Close()
	defer runtime.GOMAXPROCS(runtime.GOMAXPROCS(8))

	requireFeature(t, database, db.FeatureSets)

	numWorkers := 16
	perWorker := 200
	var index atomic.Uint64

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				member := fmt.Sprintf("m-%d-%d", worker, i)
				if _, err := database.SAdd("ooo-set", []string{member}, index.Add(1)); err != nil {
					t.Errorf("SAdd failed: %v", err)
					return
				}
				database.Set(member, []byte(member), index.Add(1))
			}
		}(w)
	}
	wg.Wait()

	if members := mustMembers(t, database, "ooo-set"); len(members) != numWorkers*perWorker {
		t.Errorf("Expected %d members, got %d", numWorkers*perWorker, len(members))
	}
	if idx := database.WriteIdx(); idx != index.Load() {
		t.Errorf("Expected write index %d, got %d", index.Load(), idx)
	}
}

func testFlush(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureSets|db.FeatureFlush)

	for i := 0; i < 100; i++ {
		database.Set(fmt.Sprintf("flush-%d", i), []byte("v"), uint64(i+1))
	}
	if _, err := database.SAdd("flush-set", []string{"a", "b"}, 101); err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}

	database.Flush(102)

	for i := 0; i < 100; i++ {
		if _, ok := mustGet(t, database, fmt.Sprintf("flush-%d", i)); ok {
			t.Errorf("Expected flush-%d to be gone after Flush", i)
		}
	}
	if members := mustMembers(t, database, "flush-set"); len(members) != 0 {
		t.Errorf("Expected set to be empty after Flush, got %v", members)
	}
	if info := database.GetInfo(); info.Keys != 0 {
		t.Errorf("Expected 0 keys after Flush, got %d", info.Keys)
	}

	// the database stays usable
	database.Set("after-flush", []byte("v"), 103)
	if _, ok := mustGet(t, database, "after-flush"); !ok {
		t.Errorf("Expected writes after Flush to succeed")
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureSets)

	emptyKey := ""
	emptyKeyValue := []byte("value for empty key")

	database.Set(emptyKey, emptyKeyValue, 1)

	result, exists := mustGet(t, database, emptyKey)
	if !exists {
		t.Errorf("Empty key not found after Set")
	} else if !bytes.Equal(result, emptyKeyValue) {
		t.Errorf("Value mismatch for empty key")
	}

	nilValueKey := "nil-value-key"
	database.Set(nilValueKey, nil, 2)

	result, exists = mustGet(t, database, nilValueKey)
	if !exists {
		t.Errorf("Key for nil value not found after Set")
	} else if len(result) != 0 {
		t.Errorf("Nil value resulted in non-empty value: %v", result)
	}

	// SAdd without members does not create a set
	if added, err := database.SAdd("no-members", nil, 3); added != 0 || err != nil {
		t.Errorf("Expected SAdd without members to add nothing, got %d (err=%v)", added, err)
	}
	if database.SupportsFeature(db.FeatureHas) && database.Has("no-members") {
		t.Errorf("Expected SAdd without members not to create a key")
	}

	// empty members are valid members
	if _, err := database.SAdd("empty-member", []string{""}, 4); err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}
	if ok, _ := database.SIsMember("empty-member", ""); !ok {
		t.Errorf("Expected empty string to be a member")
	}

	largeKey := string(make([]byte, 1000))
	database.Set(largeKey, []byte("value for large key"), 5)
	if result, exists = mustGet(t, database, largeKey); !exists || string(result) != "value for large key" {
		t.Errorf("Large key not found after Set")
	}
}

func testCollisionHandling(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureGet|db.FeatureDelete)

	prefix := "collision-test-"
	numKeys := 1000

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		value := []byte(fmt.Sprintf("value-%d", i))
		database.Set(key, value, 1)
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		expectedValue := []byte(fmt.Sprintf("value-%d", i))

		actualValue, exists := mustGet(t, database, key)
		if !exists {
			t.Errorf("Key %s not found", key)
			continue
		}
		if !bytes.Equal(actualValue, expectedValue) {
			t.Errorf("Value for key %s does not match: expected %s, got %s",
				key, expectedValue, actualValue)
		}
	}

	for i := 0; i < numKeys; i += 2 {
		database.Delete(fmt.Sprintf("%s%d", prefix, i), 10)
	}

	for i := 0; i < numKeys; i++ {
		key := fmt.Sprintf("%s%d", prefix, i)
		_, exists := mustGet(t, database, key)

		if i%2 == 0 && exists {
			t.Errorf("Key %s should be deleted", key)
		}
		if i%2 == 1 && !exists {
			t.Errorf("Key %s should still exist", key)
		}
	}
}

func testConcurrentSetMembers(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSets)

	numWorkers := 8
	perWorker := 250

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				member := fmt.Sprintf("m-%d-%d", worker, i)
				if _, err := database.SAdd("concurrent-set", []string{member}, 1); err != nil {
					t.Errorf("SAdd failed: %v", err)
					return
				}
				// remove every other member again
				if i%2 == 0 {
					if _, err := database.SRem("concurrent-set", []string{member}, 1); err != nil {
						t.Errorf("SRem failed: %v", err)
						return
					}
				}
			}
		}(w)
	}
	wg.Wait()

	members := mustMembers(t, database, "concurrent-set")
	if want := numWorkers * perWorker / 2; len(members) != want {
		t.Errorf("Expected %d members, got %d", want, len(members))
	}
}

func testInfo(t *testing.T, database db.KVDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureSet|db.FeatureSets)

	for i := 0; i < 10; i++ {
		database.Set(fmt.Sprintf("info-%d", i), []byte("value"), uint64(i+1))
	}
	if _, err := database.SAdd("info-set", []string{"a"}, 11); err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}

	info := database.GetInfo()
	if info.Keys != 11 {
		t.Errorf("Expected 11 keys, got %d", info.Keys)
	}
	if info.SizeBytes <= 0 {
		t.Errorf("Expected a positive size estimate, got %d", info.SizeBytes)
	}
	if len(info.SupportedFeatures) == 0 {
		t.Errorf("Expected supported features to be reported")
	}
}
