package maple

import (
	"fmt"
	"testing"
)

// Keys whose hashes collide share a shard but must stay separate entries.
func TestCollidingHashesKeepKeysApart(t *testing.T) {
	database := newMapleDB(&DBOptions{NumShards: 4}, func(string) uint64 { return 42 })
	defer database.Close()

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("Person/p%03d", i)
		database.Set(key, []byte(key), uint64(i+1))
	}
	if _, err := database.SAdd("Person", []string{"p000", "p001"}, 101); err != nil {
		t.Fatalf("SAdd failed: %v", err)
	}

	for i := 0; i < 100; i++ {
		key := fmt.Sprintf("Person/p%03d", i)
		value, ok, err := database.Get(key)
		if err != nil || !ok || string(value) != key {
			t.Fatalf("Expected %s to hold its own value, got %q (ok=%v, err=%v)", key, value, ok, err)
		}
	}
	if members, err := database.SMembers("Person"); err != nil || len(members) != 2 {
		t.Errorf("Expected the set to keep 2 members, got %v (err=%v)", members, err)
	}
	if info := database.GetInfo(); info.Keys != 101 {
		t.Errorf("Expected 101 keys, got %d", info.Keys)
	}

	database.Delete("Person/p000", 102)
	if _, ok, _ := database.Get("Person/p001"); !ok {
		t.Errorf("Expected Delete to leave the other colliding keys alone")
	}
}
