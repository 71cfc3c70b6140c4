/*
Package query implements the fluent, in-memory query engine of objectis.

A query starts from the full set of records of one registered type (loaded by
the client) or from the members of a collection, and narrows that working set
step by step:

	res, err := objectis.Filter[Person](ctx, client).
		WhereGreaterThanOrEqualTo("age", 21).
		WhereArrayContainsAny("tags", "admin", "ops").
		OrderBy("name", query.Descending).
		Offset(10).
		Limit(5).
		Fetch()

Operations are applied in call order, so the same calls in a different order
can produce a different result (Limit then OrderBy is not OrderBy then Limit).
Predicates commute with each other.

# Field Resolution

Field names are resolved through the schema.Descriptor of the type. Both the
canonical name (struct tag or json name) and the Go field name are accepted.
Unknown names fail the query with an InvalidFieldError. Values passed to the
predicates are converted to value.Value; integers and floats compare
numerically, strings and booleans only with their own kind.

# Errors

The first failing operation is remembered and all later operations become
no-ops. Fetch returns that error. This keeps chains free of intermediate error
checks:

	q := query.New(desc, items).WhereEqualTo("nope", 1).Limit(3)
	_, err := q.Fetch() // errors.Is(err, errs.ErrInvalidField)

# Null Values

Nil pointers and unset embedded pointers read as null. WhereEqualTo(f, nil)
matches null fields, ordering predicates and array predicates never match
them. OrderBy places null values first in ascending order and last in
descending order.

# Windowing

Limit(n) truncates to the first n records and is a no-op unless n > 0 and at
least n records remain. Offset(k) drops the first k records and is a no-op
unless 0 <= k < size of the working set. Neither ever fails.

Thread-safety: A Filterable is a single-use builder and is not safe for
concurrent use. The records it returns are shared with the caller and must not
be mutated while a query over them is running.
*/
package query
