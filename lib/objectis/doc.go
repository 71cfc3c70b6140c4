/*
Package objectis persists typed Go records in a key-value backend and queries
them in memory.

# Overview

A Client owns everything an application needs: the type registry, a
connection pool (in-process via lstore or Redis via rstore), the codec and
the batch executor. There is no global state; two clients are fully isolated.

	pool := lstore.NewLocalPool(func() db.KVDB { return maple.NewMapleDB(nil) }, 0)
	client, err := objectis.NewClient(pool, common.DefaultClientConfig())
	...
	err = objectis.Register[Person](client)
	err = objectis.Create(ctx, client, &Person{ID: objectis.NewID(), Name: "Ada", Age: 36})

	res, err := objectis.Filter[Person](ctx, client).
		WhereLessThanOrEqualTo("age", 40).
		OrderBy("name", query.Ascending).
		Limit(10).
		Fetch()

Operations are generic package level functions, since Go methods cannot take
type parameters. Every operation on an unregistered type fails with
ErrNotRegistered before the backend is contacted.

# Key Layout

	{type}/{id}          encoded record (SET/GET/MGET/DEL)
	{type}               type index, set of all ids (SADD/SREM/SMEMBERS)
	{type}/{collection}  named collection, set of ids (SADD/SREM/SISMEMBER/SMEMBERS)

The type name defaults to the Go type string (e.g. "main.Person") and can be
changed with schema.WithTypeName.

# Records

Records are pointers to registered struct types. The identifier is a string
field, tagged `objectis:",id"` or named "id". Empty identifiers are rejected
with ErrInvalidField. CreateWithID stores a record under an explicit id
without touching its identifier field.

# Bulk Operations

CreateAll and GetMany (and with it List, Filter and CollectionOf.List) go
through the batch executor: from ClientConfig.BatchThreshold items on the work
is partitioned across ClientConfig.Workers goroutines, each with its own
connection. GetMany reads all payloads with one MGET and only decodes in
parallel. Results keep the order of the input. If a worker fails, all other
workers still finish and the first failure is returned as ErrOperationFailed.

GetMany is positional and returns nil for missing ids. List returns the
records ordered by id and skips index entries whose record is gone.

# Errors

	ErrSchema           the type cannot be registered
	ErrNotRegistered    the type was never registered
	ErrInvalidField     unknown query field, incomparable value, empty id, nil record
	ErrOperationFailed  backend, codec or worker failure (wraps the cause)

A missing record is not an error: Get returns nil, Exists returns false and
deleting a missing record is a no-op.

# Metrics

Every operation increments objectis_ops_total{op} and, on failure,
objectis_op_errors_total{op}. WriteMetrics writes them together with the
batch executor metrics in Prometheus text format.
*/
package objectis
