// Package batch implements the partitioner and the batch executor used for
// bulk creates and bulk fetches.
//
// Partitioning splits the index range [0, n) of an ordered work list into
// exactly w contiguous ranges: base = n/w, remainder = n%w, and range i holds
// base+1 items if i < remainder, else base items. The ranges are disjoint and
// cover [0, n) without gaps.
//
// The Executor decides per call whether work is worth distributing. Below the
// threshold (DefaultThreshold = 50 items) the unit runs once over [0, n) on a
// single connection in the calling goroutine. From the threshold on every
// non-empty range runs in its own goroutine (an errgroup.Group) and owns a
// private connection acquired from the store.IPool, released on every exit
// path including panics. Empty ranges never acquire a connection.
//
// Failure policy: units are not cancelled when a sibling fails. Run and Map
// block until every unit has finished and then report the first failure as a
// single errs.OperationFailedError. Panics inside a unit are recovered, logged
// and reported like any other failure. Nothing is retried.
//
// Ordering: Map stores the result of every range in a slot owned by that range
// and concatenates the slots in range order, so the output order equals the
// input order no matter which unit finishes first.
//
// Metrics (github.com/VictoriaMetrics/metrics):
//   - objectis_batch_dispatch_total{op}: partitioned executions
//   - objectis_batch_sequential_total{op}: single-connection executions
//   - objectis_batch_duration_seconds{op}: wall time of partitioned executions
package batch
