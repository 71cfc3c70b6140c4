package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/ValentinKolb/objectis/lib/db"
	"github.com/ValentinKolb/objectis/lib/db/engines/maple"
	"github.com/ValentinKolb/objectis/lib/errs"
	"github.com/ValentinKolb/objectis/lib/store"
	"github.com/ValentinKolb/objectis/lib/store/lstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingPool records acquisitions and checks that connections are never shared
type countingPool struct {
	store.IPool
	mu       sync.Mutex
	active   map[store.IConn]bool
	acquired atomic.Int64
	shared   atomic.Bool
}

func newCountingPool() *countingPool {
	return &countingPool{
		IPool:  lstore.NewLocalPool(func() db.KVDB { return maple.NewMapleDB(nil) }, 64),
		active: make(map[store.IConn]bool),
	}
}

func (p *countingPool) Acquire(ctx context.Context) (store.IConn, error) {
	conn, err := p.IPool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	if p.active[conn] {
		p.shared.Store(true)
	}
	p.active[conn] = true
	p.mu.Unlock()
	p.acquired.Add(1)
	return conn, nil
}

func (p *countingPool) Release(conn store.IConn) {
	p.mu.Lock()
	delete(p.active, conn)
	p.mu.Unlock()
	p.IPool.Release(conn)
}

func (p *countingPool) inUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

func TestPartition(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7, 49, 50, 51, 100, 199, 200, 1001} {
		for _, w := range []int{1, 2, 3, 4, 7, 8, 16, 64} {
			t.Run(fmt.Sprintf("n=%d,w=%d", n, w), func(t *testing.T) {
				ranges := Partition(n, w)
				require.Len(t, ranges, w)

				base, rem := n/w, n%w
				next := 0
				for i, r := range ranges {
					assert.Equal(t, next, r.Start, "ranges must be contiguous")
					want := base
					if i < rem {
						want++
					}
					assert.Equal(t, want, r.Len(), "range %d", i)
					next = r.End
				}
				assert.Equal(t, n, next, "ranges must cover [0, n)")
			})
		}
	}
}

func TestPartitionExact(t *testing.T) {
	assert.Equal(t, []Range{{0, 4}, {4, 8}, {8, 11}, {11, 14}}, Partition(14, 4))
	assert.Equal(t, []Range{{0, 1}, {1, 2}, {2, 2}}, Partition(2, 3))
	assert.Equal(t, []Range{{0, 5}}, Partition(5, 0))
	assert.Equal(t, []Range{{0, 0}, {0, 0}}, Partition(-3, 2))
}

func TestSpread(t *testing.T) {
	assert.InDelta(t, 1.0, Spread(Partition(200, 4)).DistributionQuality, 1e-9)

	uneven := Spread(Partition(5, 4))
	assert.Less(t, uneven.DistributionQuality, 1.0)
	assert.Equal(t, 1.0, uneven.Min)
	assert.Equal(t, 2.0, uneven.Max)
}

func TestEngage(t *testing.T) {
	e := NewExecutor(nil, 4, 0, true)
	assert.Equal(t, DefaultThreshold, e.Threshold())
	assert.False(t, e.Engage(49))
	assert.True(t, e.Engage(50))

	assert.False(t, NewExecutor(nil, 4, 50, false).Engage(1000))
	assert.Positive(t, NewExecutor(nil, 0, 0, true).Workers())
}

func TestMapPreservesOrder(t *testing.T) {
	pool := newCountingPool()
	defer pool.Close()

	for _, n := range []int{10, 50, 200, 1003} {
		for _, parallel := range []bool{false, true} {
			t.Run(fmt.Sprintf("n=%d,parallel=%v", n, parallel), func(t *testing.T) {
				e := NewExecutor(pool, 7, 50, parallel)

				out, err := Map(context.Background(), e, "test", n, func(_ context.Context, _ store.IConn, r Range) ([]int, error) {
					res := make([]int, 0, r.Len())
					for i := r.Start; i < r.End; i++ {
						res = append(res, i)
					}
					return res, nil
				})
				require.NoError(t, err)
				require.Len(t, out, n)
				for i, v := range out {
					assert.Equal(t, i, v)
				}
				assert.Equal(t, 0, pool.inUse(), "all connections must be released")
			})
		}
	}
}

func TestRunAcquiresOneConnectionPerNonEmptyRange(t *testing.T) {
	pool := newCountingPool()
	defer pool.Close()

	e := NewExecutor(pool, 8, 5, true)

	var calls atomic.Int64
	err := e.Run(context.Background(), "test", 6, func(_ context.Context, conn store.IConn, r Range) error {
		calls.Add(1)
		assert.NotNil(t, conn)
		assert.Equal(t, 1, r.Len())
		return nil
	})
	require.NoError(t, err)

	// 6 items on 8 workers: two ranges are empty and must not acquire
	assert.Equal(t, int64(6), calls.Load())
	assert.Equal(t, int64(6), pool.acquired.Load())
	assert.False(t, pool.shared.Load(), "connections must not be shared between units")
	assert.Equal(t, 0, pool.inUse())
}

func TestRunSequentialUsesOneConnection(t *testing.T) {
	pool := newCountingPool()
	defer pool.Close()

	e := NewExecutor(pool, 8, 50, true)

	var ranges []Range
	err := e.Run(context.Background(), "test", 49, func(_ context.Context, _ store.IConn, r Range) error {
		ranges = append(ranges, r)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []Range{{0, 49}}, ranges)
	assert.Equal(t, int64(1), pool.acquired.Load())

	// nothing to do, nothing acquired
	require.NoError(t, e.Run(context.Background(), "test", 0, nil))
	assert.Equal(t, int64(1), pool.acquired.Load())
}

func TestRunAwaitsAllUnitsOnFailure(t *testing.T) {
	pool := newCountingPool()
	defer pool.Close()

	e := NewExecutor(pool, 4, 1, true)
	cause := errors.New("boom")

	var finished atomic.Int64
	err := e.Run(context.Background(), "test", 100, func(_ context.Context, _ store.IConn, r Range) error {
		defer finished.Add(1)
		if r.Start == 0 {
			return cause
		}
		return nil
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, errs.ErrOperationFailed)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, int64(4), finished.Load(), "siblings must run to completion")
	assert.Equal(t, 0, pool.inUse())
}

func TestMapDiscardsResultsOnFailure(t *testing.T) {
	pool := newCountingPool()
	defer pool.Close()

	e := NewExecutor(pool, 4, 1, true)
	out, err := Map(context.Background(), e, "test", 100, func(_ context.Context, _ store.IConn, r Range) ([]int, error) {
		if r.Start > 0 {
			return nil, errors.New("decode failed")
		}
		return []int{1}, nil
	})
	assert.ErrorIs(t, err, errs.ErrOperationFailed)
	assert.Nil(t, out)
}

func TestRunRecoversPanics(t *testing.T) {
	pool := newCountingPool()
	defer pool.Close()

	for _, n := range []int{10, 100} {
		e := NewExecutor(pool, 4, 50, true)
		err := e.Run(context.Background(), "test", n, func(_ context.Context, _ store.IConn, r Range) error {
			panic("worker exploded")
		})
		assert.ErrorIs(t, err, errs.ErrOperationFailed)
		assert.Contains(t, err.Error(), "worker exploded")
		assert.Equal(t, 0, pool.inUse(), "connections must be released after a panic")
	}
}

func TestRunFailsWhenPoolIsClosed(t *testing.T) {
	pool := newCountingPool()
	require.NoError(t, pool.Close())

	e := NewExecutor(pool, 4, 50, true)
	err := e.Run(context.Background(), "test", 100, func(context.Context, store.IConn, Range) error {
		return nil
	})
	assert.ErrorIs(t, err, errs.ErrOperationFailed)
	assert.ErrorIs(t, err, store.ErrPoolClosed)
}
