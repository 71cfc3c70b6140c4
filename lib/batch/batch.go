package batch

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/ValentinKolb/objectis/lib/db/util"
	"github.com/ValentinKolb/objectis/lib/errs"
	"github.com/ValentinKolb/objectis/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"golang.org/x/sync/errgroup"
)

var Logger = logger.GetLogger("batch")

// DefaultThreshold is the item count from which work is split across workers
const DefaultThreshold = 50

// --------------------------------------------------------------------------
// Partitioning
// --------------------------------------------------------------------------

// Range is the half-open index range [Start, End) of one worker
type Range struct {
	Start int
	End   int
}

// Len returns the number of items in the range
func (r Range) Len() int {
	return r.End - r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// Partition splits [0, n) into exactly w contiguous ranges.
// Every range holds n/w items, the first n%w ranges hold one more.
// For n < w the trailing ranges are empty. w < 1 is treated as 1, n < 0 as 0.
func Partition(n, w int) []Range {
	if w < 1 {
		w = 1
	}
	if n < 0 {
		n = 0
	}

	base, remainder := n/w, n%w
	ranges := make([]Range, w)

	start := 0
	for i := range ranges {
		size := base
		if i < remainder {
			size++
		}
		ranges[i] = Range{Start: start, End: start + size}
		start += size
	}
	return ranges
}

// --------------------------------------------------------------------------
// Executor
// --------------------------------------------------------------------------

// Unit processes the items of one range using a connection it owns exclusively
type Unit func(ctx context.Context, conn store.IConn, r Range) error

// Executor runs work over n ordered items, either on one connection in the
// calling goroutine or, from Threshold items on, partitioned across Workers
// goroutines that each own a pooled connection.
//
// Thread-safety: An Executor is immutable and can be used concurrently.
type Executor struct {
	pool      store.IPool
	workers   int
	threshold int
	parallel  bool
}

// NewExecutor creates an executor acquiring connections from pool.
// workers <= 0 uses runtime.GOMAXPROCS(0), threshold <= 0 uses DefaultThreshold.
// With parallel=false every call takes the sequential path.
func NewExecutor(pool store.IPool, workers, threshold int, parallel bool) *Executor {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Executor{
		pool:      pool,
		workers:   workers,
		threshold: threshold,
		parallel:  parallel,
	}
}

func (e *Executor) Workers() int   { return e.workers }
func (e *Executor) Threshold() int { return e.threshold }

// Engage reports whether n items take the partitioned path
func (e *Executor) Engage(n int) bool {
	return e.parallel && n >= e.threshold
}

// Run processes n items with fn. Below the threshold fn is called once with
// the range [0, n) on a single connection. Otherwise the items are partitioned
// across the workers and Run blocks until every unit finished. Units are never
// cancelled when a sibling fails; the first failure is returned as an
// OperationFailedError once all units are done. op names the operation in
// logs and metrics.
func (e *Executor) Run(ctx context.Context, op string, n int, fn Unit) error {
	if n <= 0 {
		return nil
	}
	if !e.Engage(n) {
		return e.sequential(ctx, op, n, fn)
	}
	return e.dispatch(ctx, op, Partition(n, e.workers), fn)
}

// sequential runs fn over all items on one connection
func (e *Executor) sequential(ctx context.Context, op string, n int, fn Unit) error {
	metrics.GetOrCreateCounter(fmt.Sprintf(`objectis_batch_sequential_total{op=%q}`, op)).Inc()
	if err := e.unit(ctx, fn, Range{Start: 0, End: n}); err != nil {
		return errs.OperationFailed(err, "%s failed", op)
	}
	return nil
}

// Spread rates how evenly the items are spread over the ranges
func Spread(ranges []Range) util.DistributionStats {
	sizes := make([]float64, len(ranges))
	for i, r := range ranges {
		sizes[i] = float64(r.Len())
	}
	return util.NewDistributionStats(sizes)
}

// dispatch runs one unit per non-empty range and waits for all of them
func (e *Executor) dispatch(ctx context.Context, op string, ranges []Range, fn Unit) error {
	start := time.Now()
	metrics.GetOrCreateCounter(fmt.Sprintf(`objectis_batch_dispatch_total{op=%q}`, op)).Inc()
	defer metrics.GetOrCreateHistogram(fmt.Sprintf(`objectis_batch_duration_seconds{op=%q}`, op)).UpdateDuration(start)

	Logger.Debugf("%s: dispatching %d items to %d workers %v (spread quality %.2f)",
		op, ranges[len(ranges)-1].End, len(ranges), ranges, Spread(ranges).DistributionQuality)

	// errgroup without context: a failing unit does not cancel its siblings
	var g errgroup.Group
	for _, r := range ranges {
		if r.Len() == 0 {
			continue
		}
		r := r
		g.Go(func() error {
			return e.unit(ctx, fn, r)
		})
	}

	if err := g.Wait(); err != nil {
		return errs.OperationFailed(err, "%s failed", op)
	}
	return nil
}

// unit acquires a connection, runs fn and releases the connection on every
// exit path. Panics are recovered and returned as errors.
func (e *Executor) unit(ctx context.Context, fn Unit, r Range) (err error) {
	conn, err := e.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection for range %s: %w", r, err)
	}
	defer e.pool.Release(conn)

	defer func() {
		if p := recover(); p != nil {
			Logger.Warningf("recovered from panic in range %s: %v\n%s", r, p, debug.Stack())
			err = fmt.Errorf("panic in range %s: %v", r, p)
		}
	}()

	return fn(ctx, conn, r)
}

// --------------------------------------------------------------------------
// Generic Helpers
// --------------------------------------------------------------------------

// Map runs fn like Executor.Run and concatenates the per-range results in
// range order, so the output order matches the input order regardless of
// which unit finishes first. If any unit fails, no results are returned.
func Map[R any](ctx context.Context, e *Executor, op string, n int, fn func(ctx context.Context, conn store.IConn, r Range) ([]R, error)) ([]R, error) {
	if n <= 0 {
		return []R{}, nil
	}

	if !e.Engage(n) {
		var out []R
		err := e.sequential(ctx, op, n, func(ctx context.Context, conn store.IConn, r Range) error {
			var err error
			out, err = fn(ctx, conn, r)
			return err
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}

	ranges := Partition(n, e.workers)
	parts := make([][]R, len(ranges))

	// index the ranges so every unit writes only its own slot
	slots := make(map[Range]int, len(ranges))
	for i, r := range ranges {
		slots[r] = i
	}

	err := e.dispatch(ctx, op, ranges, func(ctx context.Context, conn store.IConn, r Range) error {
		res, err := fn(ctx, conn, r)
		if err != nil {
			return err
		}
		parts[slots[r]] = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]R, 0, n)
	for _, part := range parts {
		out = append(out, part...)
	}
	return out, nil
}
