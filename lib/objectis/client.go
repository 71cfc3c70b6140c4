package objectis

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/objectis/lib/batch"
	"github.com/ValentinKolb/objectis/lib/codec"
	"github.com/ValentinKolb/objectis/lib/common"
	"github.com/ValentinKolb/objectis/lib/db/util"
	"github.com/ValentinKolb/objectis/lib/errs"
	"github.com/ValentinKolb/objectis/lib/schema"
	"github.com/ValentinKolb/objectis/lib/store"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("objectis")

// Re-exported error sentinels, use them with errors.Is
var (
	ErrSchema          = errs.ErrSchema
	ErrNotRegistered   = errs.ErrNotRegistered
	ErrInvalidField    = errs.ErrInvalidField
	ErrOperationFailed = errs.ErrOperationFailed
)

// --------------------------------------------------------------------------
// Client
// --------------------------------------------------------------------------

// Client is the context object of objectis. It owns the type registry, the
// connection pool, the codec and the batch executor. All operations are
// package level generic functions taking the client as argument.
//
// Thread-safety: A Client is safe for concurrent use.
type Client struct {
	conf     common.ClientConfig
	registry *schema.Registry
	pool     store.IPool
	codec    codec.Codec
	exec     *batch.Executor

	locks    *xsync.MapOf[string, *sync.Mutex] // One mutex per collection key
	payloads *util.SizeHistogram               // Sizes of encoded records written
	closed   atomic.Bool
}

// NewClient creates a client on top of pool. The configuration is validated,
// the backend fields of conf are ignored since the pool is already built.
func NewClient(pool store.IPool, conf common.ClientConfig) (*Client, error) {
	if pool == nil {
		return nil, fmt.Errorf("objectis needs a connection pool")
	}
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client configuration: %w", err)
	}

	c, err := codec.New(conf.Codec, conf.Compression)
	if err != nil {
		return nil, err
	}

	client := &Client{
		conf:     conf,
		registry: schema.NewRegistry(),
		pool:     pool,
		codec:    c,
		exec:     batch.NewExecutor(pool, conf.EffectiveWorkers(), conf.BatchThreshold, conf.Parallel),
		locks:    xsync.NewMapOf[string, *sync.Mutex](),
		payloads: util.NewSizeHistogram(),
	}

	Logger.Infof("client ready (codec %s, %d workers, threshold %d, parallel %v)",
		c.Name(), client.exec.Workers(), client.exec.Threshold(), conf.Parallel)
	return client, nil
}

// Close closes the connection pool. Calling Close twice is a no-op.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.pool.Close()
}

func (c *Client) Registry() *schema.Registry  { return c.registry }
func (c *Client) Pool() store.IPool           { return c.pool }
func (c *Client) Codec() codec.Codec          { return c.codec }
func (c *Client) Config() common.ClientConfig { return c.conf }
func (c *Client) Executor() *batch.Executor   { return c.exec }

// Stats is a snapshot of the client state
type Stats struct {
	Types    []string         `json:"types"`
	Codec    string           `json:"codec"`
	Pool     store.PoolStats  `json:"pool"`
	Payloads util.SizeSummary `json:"payloads"`
}

// Stats returns the registered types, pool usage and the size distribution
// of the records written by this client.
func (c *Client) Stats() Stats {
	return Stats{
		Types:    c.registry.Types(),
		Codec:    c.codec.Name(),
		Pool:     c.pool.Stats(),
		Payloads: c.payloads.Summary(),
	}
}

// Flush removes every key of the backend database, including data that was
// not written by objectis.
func Flush(ctx context.Context, c *Client) error {
	return c.observe("flush", c.withConn(ctx, "flush", func(ctx context.Context, conn store.IConn) error {
		return conn.FlushDB(ctx)
	}))
}

// --------------------------------------------------------------------------
// Internal Helpers
// --------------------------------------------------------------------------

// withTimeout applies the configured operation timeout
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.conf.TimeoutSecond > 0 {
		return context.WithTimeout(ctx, time.Duration(c.conf.TimeoutSecond)*time.Second)
	}
	return context.WithCancel(ctx)
}

// withConn runs fn on one pooled connection and wraps every failure as an
// OperationFailedError. The connection is released on all paths.
func (c *Client) withConn(ctx context.Context, op string, fn func(ctx context.Context, conn store.IConn) error) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return errs.OperationFailed(err, "%s: acquiring connection", op)
	}
	defer c.pool.Release(conn)

	if err := fn(ctx, conn); err != nil {
		return errs.OperationFailed(err, "%s failed", op)
	}
	return nil
}

// observe counts the operation and its failure, err is passed through
func (c *Client) observe(op string, err error) error {
	metrics.GetOrCreateCounter(fmt.Sprintf(`objectis_ops_total{op=%q}`, op)).Inc()
	if err != nil {
		metrics.GetOrCreateCounter(fmt.Sprintf(`objectis_op_errors_total{op=%q}`, op)).Inc()
		Logger.Debugf("%s: %v", op, err)
	}
	return err
}

// lock returns the mutex guarding the collection stored at key
func (c *Client) lock(key string) *sync.Mutex {
	mu, _ := c.locks.LoadOrCompute(key, func() *sync.Mutex {
		Logger.Debugf("created lock for collection %s", key)
		return &sync.Mutex{}
	})
	return mu
}
