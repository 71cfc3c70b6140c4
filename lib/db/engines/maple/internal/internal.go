package internal

import (
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Entry Kinds
// --------------------------------------------------------------------------

type EntryKind uint8

const (
	KindString EntryKind = iota + 1
	KindSet
)

func (k EntryKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindSet:
		return "set"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Member Set
// --------------------------------------------------------------------------

// Set is the member collection of a set entry.
// Writers mutate it while holding the shard bucket lock, the own mutex
// only protects readers that bypass that lock (statistics).
type Set struct {
	mu      sync.RWMutex
	members map[string]struct{}
	bytes   int
}

func NewSet() *Set {
	return &Set{members: make(map[string]struct{})}
}

// Add inserts members and returns how many were new.
func (s *Set) Add(members ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, m := range members {
		if _, ok := s.members[m]; ok {
			continue
		}
		s.members[m] = struct{}{}
		s.bytes += len(m)
		added++
	}
	return added
}

// Remove deletes members and returns how many were present.
func (s *Set) Remove(members ...string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for _, m := range members {
		if _, ok := s.members[m]; !ok {
			continue
		}
		delete(s.members, m)
		s.bytes -= len(m)
		removed++
	}
	return removed
}

func (s *Set) Has(member string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.members[member]
	return ok
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.members)
}

// Members returns a sorted copy of all members.
func (s *Set) Members() []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.members))
	for m := range s.members {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

func (s *Set) Bytes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bytes
}

// --------------------------------------------------------------------------
// Entry Type (key with a string or set payload)
// --------------------------------------------------------------------------

// Entry stores either a string value or a member set with metadata
type Entry struct {
	Kind  EntryKind
	Value []byte // payload of string entries
	Set   *Set   // payload of set entries
	Index uint64 // write index when this entry was created/updated
}

// Size estimates the payload size of the entry in bytes
func (e Entry) Size() int {
	if e.Kind == KindSet && e.Set != nil {
		return e.Set.Bytes()
	}
	return len(e.Value)
}

// --------------------------------------------------------------------------
// Shard Type (partition of the database)
// --------------------------------------------------------------------------

// Shard represents a partition of the database
// Each shard has its own independent map keyed by the full key string
type Shard struct {
	Data *xsync.MapOf[string, Entry] // Map of active entries
}

func NewShard() *Shard {
	return &Shard{
		Data: xsync.NewMapOf[string, Entry](),
	}
}

// GetShard returns the shard for a key hash
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func GetShard[T any](hash uint64, shards []*T) *T {
	return shards[hash%uint64(len(shards))]
}
