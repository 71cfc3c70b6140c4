package maple

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/objectis/lib/db"
	"github.com/ValentinKolb/objectis/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/objectis/lib/db/util"
	"github.com/cespare/xxhash/v2"
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements a high-performance database with sharded data
type mapleImpl struct {
	numShards int                     // Number of shards
	hash      func(key string) uint64 // Picks the shard of a key
	shards    []*internal.Shard       // Array of shards
	currIndex atomic.Uint64           // Highest write index seen
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int // Number of shards (0 = auto)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(), // Auto-determine based on CPU count
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
//
// Thread-safety: This function is not thread-safe and should only be called once
// during initialization.
func NewMapleDB(opts *DBOptions) db.KVDB {
	return newMapleDB(opts, xxhash.Sum64String)
}

// newMapleDB creates the database with a custom shard hash
func newMapleDB(opts *DBOptions, hash func(key string) uint64) *mapleImpl {

	// Generate default options if not provided
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}

	// Create shards
	shards := make([]*internal.Shard, opts.NumShards)
	for i := 0; i < opts.NumShards; i++ {
		shards[i] = internal.NewShard()
	}

	return &mapleImpl{
		numShards: opts.NumShards,
		hash:      hash,
		shards:    shards,
	}
}

// shardFor returns the shard responsible for key. The hash only selects
// the shard, entries inside a shard are keyed by the full key string.
func (maple *mapleImpl) shardFor(key string) *internal.Shard {
	return internal.GetShard(maple.hash(key), maple.shards)
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// compute is the shared implementation of all write operations.
// Writes to one key are applied in the order they reach the bucket lock.
// fn receives the current entry and returns the entry to store and whether
// the key should be removed instead. The stored index never decreases.
//
// Thread-safety: This function is thread-safe, the bucket of key is locked while fn runs.
func (maple *mapleImpl) compute(key string, writeIndex uint64, fn func(old internal.Entry, loaded bool) (entry internal.Entry, delete bool)) {

	// update the current index
	maple.SetWriteIdx(writeIndex)

	maple.shardFor(key).Data.Compute(key, func(oldEntry internal.Entry, loaded bool) (internal.Entry, bool) {
		entry, del := fn(oldEntry, loaded)
		if del {
			return oldEntry, true
		}
		entry.Index = max(writeIndex, oldEntry.Index)
		return entry, false
	})
}

// Set inserts or updates a string entry with the given key, value, and writeIndex.
// A set stored under the same key is replaced.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Set(key string, value []byte, writeIndex uint64) {
	// Copy value to prevent memory corruption
	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)

	maple.compute(key, writeIndex, func(_ internal.Entry, _ bool) (internal.Entry, bool) {
		return internal.Entry{Kind: internal.KindString, Value: valueCopy}, false
	})
}

// Delete removes the entry with the specified key. This change is immediate.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(key string, writeIndex uint64) bool {
	var deleted bool
	maple.compute(key, writeIndex, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		deleted = loaded
		return old, true
	})
	return deleted
}

// SAdd adds members to the set stored at key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SAdd(key string, members []string, writeIndex uint64) (int, error) {
	var (
		added int
		err   error
	)
	maple.compute(key, writeIndex, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if !loaded {
			if len(members) == 0 {
				return old, true // set delete to true because else an empty set will be created
			}
			set := internal.NewSet()
			added = set.Add(members...)
			return internal.Entry{Kind: internal.KindSet, Set: set}, false
		}
		if old.Kind != internal.KindSet {
			err = db.ErrWrongType
			return old, false
		}
		added = old.Set.Add(members...)
		return old, false
	})
	return added, err
}

// SRem removes members from the set stored at key. Empty sets are removed.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SRem(key string, members []string, writeIndex uint64) (int, error) {
	var (
		removed int
		err     error
	)
	maple.compute(key, writeIndex, func(old internal.Entry, loaded bool) (internal.Entry, bool) {
		if !loaded {
			return old, true
		}
		if old.Kind != internal.KindSet {
			err = db.ErrWrongType
			return old, false
		}
		removed = old.Set.Remove(members...)
		return old, old.Set.Len() == 0
	})
	return removed, err
}

// Flush removes every entry from all shards.
//
// Thread-safety: This method is thread-safe, concurrent writes may survive the flush.
func (maple *mapleImpl) Flush(writeIndex uint64) {
	maple.SetWriteIdx(writeIndex)
	for _, shard := range maple.shards {
		shard.Data.Clear()
	}
}

// --------------------------------------------------------------------------
// Core KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// load atomically looks up the entry for key and calls fn while the bucket is locked.
func (maple *mapleImpl) load(key string, fn func(e internal.Entry)) bool {
	var ok bool
	maple.shardFor(key).Data.Compute(key, func(e internal.Entry, loaded bool) (internal.Entry, bool) {
		// case the key doesn't exist
		if !loaded {
			return e, true // set delete to true because else the value will be created
		}
		ok = true
		fn(e)
		return e, false
	})
	return ok
}

// Get retrieves the value of a string entry.
// The returned value is a copy of the stored data and therefore safe to use and modify.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(key string) ([]byte, bool, error) {
	var (
		data []byte
		err  error
	)
	ok := maple.load(key, func(e internal.Entry) {
		if e.Kind != internal.KindString {
			err = db.ErrWrongType
			return
		}
		data = make([]byte, len(e.Value))
		copy(data, e.Value)
	})
	if err != nil {
		return nil, false, err
	}
	return data, ok, nil
}

// Has checks if a key exists in the database.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Has(key string) bool {
	return maple.load(key, func(internal.Entry) {})
}

// SIsMember reports whether member is part of the set stored at key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SIsMember(key string, member string) (bool, error) {
	var (
		found bool
		err   error
	)
	maple.load(key, func(e internal.Entry) {
		if e.Kind != internal.KindSet {
			err = db.ErrWrongType
			return
		}
		found = e.Set.Has(member)
	})
	return found, err
}

// SMembers returns a copy of all members of the set stored at key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SMembers(key string) ([]string, error) {
	var (
		members []string
		err     error
	)
	maple.load(key, func(e internal.Entry) {
		if e.Kind != internal.KindSet {
			err = db.ErrWrongType
			return
		}
		members = e.Set.Members()
	})
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []string{}
	}
	return members, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {

	// get current index only once to reduce contention
	currentWriteIndex := maple.currIndex.Load()

	// create a size histogram for the info
	histogram := util.NewSizeHistogram()
	samplesPerShard := 100
	wg := sync.WaitGroup{}
	wg.Add(len(maple.shards))

	// more stats
	mu := sync.Mutex{}
	keys := 0
	setEntries := 0
	samplesCount := 0
	shardSizes := make([]float64, len(maple.shards))

	// concurrently collect samples from all shards
	for shardIndex, shard := range maple.shards {
		go func(i int, s *internal.Shard) {
			defer wg.Done()
			count := 0
			sets := 0
			s.Data.Range(func(_ string, entry internal.Entry) bool {
				histogram.AddSample(entry.Size())
				if entry.Kind == internal.KindSet {
					sets++
				}

				// only sample a few entries per shard
				count++
				return count < samplesPerShard
			})

			mu.Lock()
			defer mu.Unlock()

			samplesCount += count
			setEntries += sets
			size := s.Data.Size()
			keys += size
			shardSizes[i] = float64(size)
		}(shardIndex, shard)
	}

	// wait for all shards to finish
	wg.Wait()

	// calculate size
	entryOverhead := 24 // index, kind and payload header
	medianSize := histogram.MedianEstimate() + entryOverhead
	avgSize := histogram.AverageSize() + entryOverhead

	// weighted estimate (60% median, 40% average) per entry
	sizeBytes := keys * ((medianSize*60 + avgSize*40) / 100)

	var setRatio float64
	if samplesCount > 0 {
		setRatio = float64(setEntries) / float64(samplesCount)
	}

	// Metadata for this specific database implementation
	meta := &struct {
		CurrentWriteIndex uint64                 `json:"current_write_index"`
		ShardCount        int                    `json:"shard_count"`
		ShardDistribution util.DistributionStats `json:"shard_distribution"`
		SetRatio          float64                `json:"set_ratio"`
		Info              string                 `json:"info"`
	}{
		CurrentWriteIndex: currentWriteIndex,
		ShardCount:        len(maple.shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
		SetRatio:          setRatio, // share of sampled entries holding a set
		Info:              "SizeBytes and SetRatio are estimates based on sampled entries.",
	}

	supportedFeatures := []db.Feature{
		db.FeatureSet, db.FeatureGet,
		db.FeatureDelete, db.FeatureHas,
		db.FeatureSets, db.FeatureFlush,
	}

	return db.DatabaseInfo{
		SizeBytes:         sizeBytes,
		Keys:              keys,
		DbType:            db.ImplMaple,
		SupportedFeatures: supportedFeatures,
		Metadata:          meta,
	}
}

// SupportsFeature checks if this implementation supports a specific KVDB feature
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supportedFeatures := db.FeatureSet |
		db.FeatureGet |
		db.FeatureDelete |
		db.FeatureHas |
		db.FeatureSets |
		db.FeatureFlush
	return supportedFeatures&feature == feature
}

// Close releases nothing, maple holds no background resources
func (maple *mapleImpl) Close() error {
	return nil
}

// --------------------------------------------------------------------------
// Index and Timestamp Management
// --------------------------------------------------------------------------

// SetWriteIdx safely updates the current index
// It only updates if the new index is greater than the current one
//
// Thread-safety: This method is thread-safe and can be called concurrently.
// It uses atomic operations to ensure that the index only increases.
func (maple *mapleImpl) SetWriteIdx(newIdx uint64) {
	for {
		currIdx := maple.currIndex.Load()
		if newIdx <= currIdx {
			return
		}
		if maple.currIndex.CompareAndSwap(currIdx, newIdx) {
			return
		}
	}
}

// WriteIdx returns the current index of the database
func (maple *mapleImpl) WriteIdx() uint64 {
	return maple.currIndex.Load()
}
