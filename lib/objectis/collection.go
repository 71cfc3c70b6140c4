package objectis

import (
	"context"
	"sort"
	"sync"

	"github.com/ValentinKolb/objectis/lib/errs"
	"github.com/ValentinKolb/objectis/lib/keyspace"
	"github.com/ValentinKolb/objectis/lib/query"
	"github.com/ValentinKolb/objectis/lib/schema"
	"github.com/ValentinKolb/objectis/lib/store"
)

// --------------------------------------------------------------------------
// Collection
// --------------------------------------------------------------------------

// CollectionOf is a named set of record ids of type T, stored under
// "{type}/{name}". Membership is independent of the type index: adding an id
// does not store the record and deleting a member does not delete the record.
//
// Thread-safety: All collections of a client with the same key share one
// mutex, so Add, Delete and List on that key never interleave.
type CollectionOf[T any] struct {
	c    *Client
	desc *schema.Descriptor
	name string
	key  string
	mu   *sync.Mutex
}

// Collection returns the collection called name of type T.
func Collection[T any](c *Client, name string) (*CollectionOf[T], error) {
	d, err := Descriptor[T](c)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errs.InvalidField("the name of a collection of type '%s' must not be empty", d.TypeName)
	}

	key := keyspace.CollectionKey(d.TypeName, name)
	return &CollectionOf[T]{
		c:    c,
		desc: d,
		name: name,
		key:  key,
		mu:   c.lock(key),
	}, nil
}

// Name returns the collection name
func (col *CollectionOf[T]) Name() string { return col.name }

// Key returns the backend key of the membership set
func (col *CollectionOf[T]) Key() string { return col.key }

// Add adds the id of rec
func (col *CollectionOf[T]) Add(ctx context.Context, rec *T) error {
	return col.AddAll(ctx, []*T{rec})
}

// AddAll adds the ids of all records
func (col *CollectionOf[T]) AddAll(ctx context.Context, recs []*T) error {
	ids, err := col.ids(recs)
	if err != nil {
		return col.c.observe("collection_add", err)
	}
	if len(ids) == 0 {
		return nil
	}
	return col.c.observe("collection_add", col.mutate(ctx, "collection_add", func(ctx context.Context, conn store.IConn) error {
		_, err := conn.SAdd(ctx, col.key, ids...)
		return err
	}))
}

// Delete removes the id of rec. Removing a non-member is not an error.
func (col *CollectionOf[T]) Delete(ctx context.Context, rec *T) error {
	return col.DeleteAll(ctx, []*T{rec})
}

// DeleteByID removes id
func (col *CollectionOf[T]) DeleteByID(ctx context.Context, id string) error {
	return col.DeleteAllByID(ctx, id)
}

// DeleteAll removes the ids of all records
func (col *CollectionOf[T]) DeleteAll(ctx context.Context, recs []*T) error {
	ids, err := col.ids(recs)
	if err != nil {
		return col.c.observe("collection_delete", err)
	}
	return col.DeleteAllByID(ctx, ids...)
}

// DeleteAllByID removes all ids
func (col *CollectionOf[T]) DeleteAllByID(ctx context.Context, ids ...string) error {
	for _, id := range ids {
		if err := checkID(col.desc, id); err != nil {
			return col.c.observe("collection_delete", err)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	return col.c.observe("collection_delete", col.mutate(ctx, "collection_delete", func(ctx context.Context, conn store.IConn) error {
		_, err := conn.SRem(ctx, col.key, ids...)
		return err
	}))
}

// Contains reports whether the id of rec is a member
func (col *CollectionOf[T]) Contains(ctx context.Context, rec *T) (bool, error) {
	if err := checkRecord(col.desc, rec); err != nil {
		return false, col.c.observe("collection_contains", err)
	}
	return col.ContainsID(ctx, col.desc.ID(rec))
}

// ContainsID reports whether id is a member
func (col *CollectionOf[T]) ContainsID(ctx context.Context, id string) (bool, error) {
	if err := checkID(col.desc, id); err != nil {
		return false, col.c.observe("collection_contains", err)
	}
	var ok bool
	err := col.c.withConn(ctx, "collection_contains", func(ctx context.Context, conn store.IConn) (err error) {
		ok, err = conn.SIsMember(ctx, col.key, id)
		return err
	})
	return ok, col.c.observe("collection_contains", err)
}

// IDs returns the member ids, sorted
func (col *CollectionOf[T]) IDs(ctx context.Context) ([]string, error) {
	col.mu.Lock()
	defer col.mu.Unlock()

	ids, err := col.members(ctx)
	if err == nil {
		sort.Strings(ids)
	}
	return ids, col.c.observe("collection_ids", err)
}

// List returns the stored records of all members, ordered by id.
// Members without a stored record are skipped.
func (col *CollectionOf[T]) List(ctx context.Context) ([]*T, error) {
	col.mu.Lock()
	defer col.mu.Unlock()

	recs, err := col.list(ctx)
	return recs, col.c.observe("collection_list", err)
}

// Filter starts a query over the records returned by List
func (col *CollectionOf[T]) Filter(ctx context.Context) *query.Filterable[T] {
	col.mu.Lock()
	defer col.mu.Unlock()

	recs, err := col.list(ctx)
	if err != nil {
		return query.Failed[T](col.c.observe("collection_filter", err))
	}
	col.c.observe("collection_filter", nil)
	return query.New(col.desc, recs)
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func (col *CollectionOf[T]) ids(recs []*T) ([]string, error) {
	ids := make([]string, len(recs))
	for i, rec := range recs {
		if err := checkRecord(col.desc, rec); err != nil {
			return nil, err
		}
		ids[i] = col.desc.ID(rec)
		if err := checkID(col.desc, ids[i]); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

// mutate runs fn under the collection lock
func (col *CollectionOf[T]) mutate(ctx context.Context, op string, fn func(ctx context.Context, conn store.IConn) error) error {
	col.mu.Lock()
	defer col.mu.Unlock()
	return col.c.withConn(ctx, op, fn)
}

// members reads the membership set, the caller holds the lock
func (col *CollectionOf[T]) members(ctx context.Context) ([]string, error) {
	var ids []string
	err := col.c.withConn(ctx, "collection_members", func(ctx context.Context, conn store.IConn) (err error) {
		ids, err = conn.SMembers(ctx, col.key)
		return err
	})
	return ids, err
}

// list resolves the members and fetches their records, the caller holds the lock
func (col *CollectionOf[T]) list(ctx context.Context) ([]*T, error) {
	ids, err := col.members(ctx)
	if err != nil {
		return nil, err
	}
	return listMembers[T](ctx, col.c, col.desc, ids)
}
