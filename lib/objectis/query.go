package objectis

import (
	"context"
	"io"

	"github.com/ValentinKolb/objectis/lib/query"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
)

// Filter starts a query over every record of type T. The records are loaded
// eagerly with List; a failure is reported by Fetch.
func Filter[T any](ctx context.Context, c *Client) *query.Filterable[T] {
	d, err := Descriptor[T](c)
	if err != nil {
		return query.Failed[T](c.observe("filter", err))
	}
	items, err := List[T](ctx, c)
	if err != nil {
		return query.Failed[T](c.observe("filter", err))
	}
	c.observe("filter", nil)
	return query.New(d, items)
}

// FilterItems starts a query over items, which must be records of a type
// registered with c.
func FilterItems[T any](c *Client, items []*T) *query.Filterable[T] {
	d, err := Descriptor[T](c)
	if err != nil {
		return query.Failed[T](c.observe("filter", err))
	}
	c.observe("filter", nil)
	return query.New(d, items)
}

// NewID returns a new random identifier (UUIDv4)
func NewID() string {
	return uuid.NewString()
}

// WriteMetrics writes the operation, error and batch metrics of all clients
// in Prometheus text format.
func WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, false)
}
