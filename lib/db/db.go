package db

import "errors"

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple Implementation = "maple"
)

// ErrWrongType is returned when a string command hits a set entry or vice versa.
var ErrWrongType = errors.New("operation against a key holding the wrong kind of value")

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureSet    Feature = 1 << iota // Support for Set operations
	FeatureGet                        // Support for Get operations
	FeatureDelete                     // Support for Delete operations
	FeatureHas                        // Support for Has operations
	FeatureSets                       // Support for SAdd, SRem, SIsMember and SMembers
	FeatureFlush                      // Support for Flush operations
)

func (f Feature) String() string {
	switch f {
	case FeatureSet:
		return "Set"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureHas:
		return "Has"
	case FeatureSets:
		return "Sets"
	case FeatureFlush:
		return "Flush"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	SizeBytes         int            `json:"size_bytes"`
	Keys              int            `json:"keys"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines an interface for in-memory key-value database implementations.
// A key holds either a string value (Set/Get) or a set of string members (SAdd/...).
// Any implementation of this interface must manage keys in a consistent way.
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Set inserts or updates a string entry with the given key, value, and writeIndex.
	// If the key already exists (string or set), the old value should be overwritten.
	// The writeIndex parameter is used as a logical timestamp for the entry.
	Set(key string, value []byte, writeIndex uint64)

	// Delete removes an entry (string or set) with the specified key.
	// The returned boolean reports whether an entry existed.
	Delete(key string, writeIndex uint64) (deleted bool)

	// SAdd adds members to the set stored at key, creating it if needed.
	// It returns the number of members that were not already present.
	SAdd(key string, members []string, writeIndex uint64) (added int, err error)

	// SRem removes members from the set stored at key.
	// A set that becomes empty is removed. It returns the number of removed members.
	SRem(key string, members []string, writeIndex uint64) (removed int, err error)

	// Flush removes every entry.
	Flush(writeIndex uint64)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the string value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	Get(key string) (value []byte, loaded bool, err error)

	// Has checks whether a key (string or set) exists in the database.
	Has(key string) (loaded bool)

	// SIsMember reports whether member is part of the set stored at key.
	SIsMember(key string, member string) (ok bool, err error)

	// SMembers returns all members of the set stored at key (unordered).
	// A missing key is an empty set.
	SMembers(key string) (members []string, err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Returns true if the feature is supported, false otherwise.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// --------------------------------------------------------------------------
	// Write Index Operations
	// --------------------------------------------------------------------------

	// SetWriteIdx sets the current index of the database only if the provided index is greater than the current index.
	SetWriteIdx(index uint64)

	// WriteIdx returns the current index of the database .
	WriteIdx() (index uint64)

	// Close closes the database.
	Close() (err error)
}
