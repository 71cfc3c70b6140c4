// Package util provides utility components for
// database implementations that satisfy the db.KVDB interface.
//
// The package contains:
//   - statistics: Utility tools for analyzing database characteristics and a SizeHistogram for tracking data size distribution
//
// The statistics are used by maple.GetInfo and by the store pools to report
// key and size distributions without performing expensive full scans.
package util
