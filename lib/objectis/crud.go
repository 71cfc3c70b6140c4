package objectis

import (
	"context"
	"fmt"
	"sort"

	"github.com/ValentinKolb/objectis/lib/batch"
	"github.com/ValentinKolb/objectis/lib/errs"
	"github.com/ValentinKolb/objectis/lib/keyspace"
	"github.com/ValentinKolb/objectis/lib/schema"
	"github.com/ValentinKolb/objectis/lib/store"
)

// --------------------------------------------------------------------------
// Registration
// --------------------------------------------------------------------------

// Register derives the descriptor of T via reflection and registers it.
// Registering a type twice is a no-op.
func Register[T any](c *Client, opts ...schema.Option) error {
	_, err := schema.Register[T](c.registry, opts...)
	return err
}

// RegisterDescriptor registers a descriptor built with schema.Declare.
func RegisterDescriptor(c *Client, d *schema.Descriptor) error {
	return c.registry.Register(d)
}

// IsRegistered reports whether T can be used with c.
func IsRegistered[T any](c *Client) bool {
	return c.registry.IsRegistered(schema.TypeOf[T]())
}

// Descriptor returns the descriptor of T or a NotRegisteredError.
func Descriptor[T any](c *Client) (*schema.Descriptor, error) {
	return schema.Lookup[T](c.registry)
}

// --------------------------------------------------------------------------
// Create and Update
// --------------------------------------------------------------------------

// Create stores rec under the id read from its identifier field and adds the
// id to the type index.
func Create[T any](ctx context.Context, c *Client, rec *T) error {
	d, id, err := identify(c, rec)
	if err != nil {
		return c.observe("create", err)
	}
	return c.observe("create", c.save(ctx, "create", d, id, rec))
}

// CreateWithID stores rec under id. The identifier field of rec is neither
// read nor modified.
func CreateWithID[T any](ctx context.Context, c *Client, rec *T, id string) error {
	d, err := Descriptor[T](c)
	if err == nil {
		err = checkRecord(d, rec)
	}
	if err == nil {
		err = checkID(d, id)
	}
	if err != nil {
		return c.observe("create_with_id", err)
	}
	return c.observe("create_with_id", c.save(ctx, "create_with_id", d, id, rec))
}

// Update overwrites the stored record with rec. Records that do not exist yet
// are created and indexed.
func Update[T any](ctx context.Context, c *Client, rec *T) error {
	d, id, err := identify(c, rec)
	if err != nil {
		return c.observe("update", err)
	}
	return c.observe("update", c.save(ctx, "update", d, id, rec))
}

// Set is an alias of Update.
func Set[T any](ctx context.Context, c *Client, rec *T) error {
	return Update(ctx, c, rec)
}

// CreateAll stores all records. From the batch threshold on, the records are
// partitioned across the workers of the batch executor, each writing its
// range on its own connection. All records are validated before anything is
// written.
func CreateAll[T any](ctx context.Context, c *Client, recs []*T) error {
	d, err := Descriptor[T](c)
	if err != nil {
		return c.observe("create_all", err)
	}

	ids := make([]string, len(recs))
	for i, rec := range recs {
		if err := checkRecord(d, rec); err != nil {
			return c.observe("create_all", err)
		}
		ids[i] = d.ID(rec)
		if err := checkID(d, ids[i]); err != nil {
			return c.observe("create_all", err)
		}
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	err = c.exec.Run(ctx, "create_all", len(recs), func(ctx context.Context, conn store.IConn, r batch.Range) error {
		for i := r.Start; i < r.End; i++ {
			if err := c.put(ctx, conn, d, ids[i], recs[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return c.observe("create_all", err)
}

// --------------------------------------------------------------------------
// Read
// --------------------------------------------------------------------------

// Get returns the record stored under id, or nil if there is none.
func Get[T any](ctx context.Context, c *Client, id string) (*T, error) {
	d, err := Descriptor[T](c)
	if err == nil {
		err = checkID(d, id)
	}
	if err != nil {
		return nil, c.observe("get", err)
	}

	var rec *T
	err = c.withConn(ctx, "get", func(ctx context.Context, conn store.IConn) error {
		key := keyspace.ObjectKey(d.TypeName, id)
		data, loaded, err := conn.Get(ctx, key)
		if err != nil || !loaded {
			return err
		}
		rec, err = decode[T](c, key, data)
		return err
	})
	if err != nil {
		return nil, c.observe("get", err)
	}
	return rec, c.observe("get", nil)
}

// GetMany returns the records stored under ids. The result is positional:
// entry i belongs to ids[i] and is nil if that record does not exist.
// The payloads are read with one multi-get; from the batch threshold on they
// are decoded in parallel.
func GetMany[T any](ctx context.Context, c *Client, ids ...string) ([]*T, error) {
	d, err := Descriptor[T](c)
	if err != nil {
		return nil, c.observe("get_many", err)
	}
	for _, id := range ids {
		if err := checkID(d, id); err != nil {
			return nil, c.observe("get_many", err)
		}
	}

	recs, err := getMany[T](ctx, c, d, ids)
	return recs, c.observe("get_many", err)
}

// List returns every record of type T, ordered by id.
// Ids in the type index without a stored record are skipped.
func List[T any](ctx context.Context, c *Client) ([]*T, error) {
	d, err := Descriptor[T](c)
	if err != nil {
		return nil, c.observe("list", err)
	}

	var ids []string
	err = c.withConn(ctx, "list", func(ctx context.Context, conn store.IConn) (err error) {
		ids, err = conn.SMembers(ctx, keyspace.TypeIndexKey(d.TypeName))
		return err
	})
	if err != nil {
		return nil, c.observe("list", err)
	}

	recs, err := listMembers[T](ctx, c, d, ids)
	return recs, c.observe("list", err)
}

// Exists reports whether a record is stored under id.
func Exists[T any](ctx context.Context, c *Client, id string) (bool, error) {
	d, err := Descriptor[T](c)
	if err == nil {
		err = checkID(d, id)
	}
	if err != nil {
		return false, c.observe("exists", err)
	}

	var ok bool
	err = c.withConn(ctx, "exists", func(ctx context.Context, conn store.IConn) (err error) {
		_, ok, err = conn.Get(ctx, keyspace.ObjectKey(d.TypeName, id))
		return err
	})
	return ok, c.observe("exists", err)
}

// --------------------------------------------------------------------------
// Delete
// --------------------------------------------------------------------------

// Delete removes rec and its id from the type index.
// Deleting a record that does not exist is not an error.
func Delete[T any](ctx context.Context, c *Client, rec *T) error {
	d, id, err := identify(c, rec)
	if err != nil {
		return c.observe("delete", err)
	}
	return c.observe("delete", c.remove(ctx, "delete", d, []string{id}))
}

// DeleteByID removes the record stored under id.
func DeleteByID[T any](ctx context.Context, c *Client, id string) error {
	d, err := Descriptor[T](c)
	if err == nil {
		err = checkID(d, id)
	}
	if err != nil {
		return c.observe("delete", err)
	}
	return c.observe("delete", c.remove(ctx, "delete", d, []string{id}))
}

// DeleteAll removes all records.
func DeleteAll[T any](ctx context.Context, c *Client, recs []*T) error {
	d, err := Descriptor[T](c)
	if err != nil {
		return c.observe("delete_all", err)
	}
	ids := make([]string, len(recs))
	for i, rec := range recs {
		if err := checkRecord(d, rec); err != nil {
			return c.observe("delete_all", err)
		}
		ids[i] = d.ID(rec)
		if err := checkID(d, ids[i]); err != nil {
			return c.observe("delete_all", err)
		}
	}
	return c.observe("delete_all", c.remove(ctx, "delete_all", d, ids))
}

// DeleteAllByID removes the records stored under ids.
func DeleteAllByID[T any](ctx context.Context, c *Client, ids ...string) error {
	d, err := Descriptor[T](c)
	if err != nil {
		return c.observe("delete_all", err)
	}
	for _, id := range ids {
		if err := checkID(d, id); err != nil {
			return c.observe("delete_all", err)
		}
	}
	return c.observe("delete_all", c.remove(ctx, "delete_all", d, ids))
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func checkRecord[T any](d *schema.Descriptor, rec *T) error {
	if rec == nil {
		return errs.InvalidField("a nil record of type '%s' cannot be used", d.TypeName)
	}
	return nil
}

func checkID(d *schema.Descriptor, id string) error {
	if id == "" {
		return errs.InvalidField("the '%s' field of type '%s' must not be empty", d.IDField, d.TypeName)
	}
	return nil
}

// identify looks up the descriptor of T and reads the id of rec
func identify[T any](c *Client, rec *T) (*schema.Descriptor, string, error) {
	d, err := Descriptor[T](c)
	if err != nil {
		return nil, "", err
	}
	if err := checkRecord(d, rec); err != nil {
		return nil, "", err
	}
	id := d.ID(rec)
	if err := checkID(d, id); err != nil {
		return nil, "", err
	}
	return d, id, nil
}

// save writes one record on its own connection
func (c *Client) save(ctx context.Context, op string, d *schema.Descriptor, id string, rec any) error {
	return c.withConn(ctx, op, func(ctx context.Context, conn store.IConn) error {
		return c.put(ctx, conn, d, id, rec)
	})
}

// put encodes rec, stores it under its object key and indexes its id
func (c *Client) put(ctx context.Context, conn store.IConn, d *schema.Descriptor, id string, rec any) error {
	key := keyspace.ObjectKey(d.TypeName, id)
	data, err := c.codec.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	c.payloads.AddSample(len(data))

	if err := conn.Set(ctx, key, data); err != nil {
		return err
	}
	_, err = conn.SAdd(ctx, keyspace.TypeIndexKey(d.TypeName), id)
	return err
}

// remove deletes the object keys of ids and removes ids from the type index
func (c *Client) remove(ctx context.Context, op string, d *schema.Descriptor, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return c.withConn(ctx, op, func(ctx context.Context, conn store.IConn) error {
		if _, err := conn.Del(ctx, keyspace.ObjectKeys(d.TypeName, ids)...); err != nil {
			return err
		}
		_, err := conn.SRem(ctx, keyspace.TypeIndexKey(d.TypeName), ids...)
		return err
	})
}

func decode[T any](c *Client, key string, data []byte) (*T, error) {
	rec := new(T)
	if err := c.codec.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return rec, nil
}

// getMany reads the payloads of ids with one MGET and decodes them through
// the batch executor, preserving the order of ids.
func getMany[T any](ctx context.Context, c *Client, d *schema.Descriptor, ids []string) ([]*T, error) {
	if len(ids) == 0 {
		return []*T{}, nil
	}

	keys := keyspace.ObjectKeys(d.TypeName, ids)

	var payloads [][]byte
	err := c.withConn(ctx, "get_many", func(ctx context.Context, conn store.IConn) (err error) {
		payloads, err = conn.MGet(ctx, keys...)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(payloads) != len(keys) {
		return nil, errs.OperationFailed(
			fmt.Errorf("backend returned %d values for %d keys", len(payloads), len(keys)), "get_many failed")
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	return batch.Map(ctx, c.exec, "get_many", len(payloads), func(_ context.Context, _ store.IConn, r batch.Range) ([]*T, error) {
		out := make([]*T, 0, r.Len())
		for i := r.Start; i < r.End; i++ {
			if payloads[i] == nil {
				out = append(out, nil)
				continue
			}
			rec, err := decode[T](c, keys[i], payloads[i])
			if err != nil {
				return nil, err
			}
			out = append(out, rec)
		}
		return out, nil
	})
}

// listMembers fetches the records of a set of member ids in id order and
// skips members without a stored record
func listMembers[T any](ctx context.Context, c *Client, d *schema.Descriptor, ids []string) ([]*T, error) {
	sort.Strings(ids)

	recs, err := getMany[T](ctx, c, d, ids)
	if err != nil {
		return nil, err
	}

	out := recs[:0]
	for _, rec := range recs {
		if rec != nil {
			out = append(out, rec)
		}
	}
	if dropped := len(recs) - len(out); dropped > 0 {
		Logger.Debugf("skipped %d stale members of %s", dropped, d.TypeName)
	}
	return out, nil
}
