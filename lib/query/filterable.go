package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ValentinKolb/objectis/lib/errs"
	"github.com/ValentinKolb/objectis/lib/schema"
	"github.com/ValentinKolb/objectis/lib/value"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("query")

// Direction of OrderBy
type Direction int

const (
	Ascending Direction = iota
	Descending
)

func (d Direction) String() string {
	if d == Descending {
		return "DESC"
	}
	return "ASC"
}

// ParseDirection accepts asc/ascending and desc/descending (any case)
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return Ascending, fmt.Errorf("unknown direction '%s' (expected asc or desc)", s)
	}
}

// --------------------------------------------------------------------------
// Filterable
// --------------------------------------------------------------------------

// Filterable is an in-memory query over a working set of records of type T.
// Every operation is applied to the working set immediately and returns the
// same instance for chaining. The first failing operation is remembered:
// all later operations are skipped and Fetch returns that error.
//
// Thread-safety: A Filterable is not safe for concurrent use.
type Filterable[T any] struct {
	desc  *schema.Descriptor
	items []*T
	err   error
}

// New creates a query over items. The slice is copied, the records are not.
// Nil records are dropped.
func New[T any](desc *schema.Descriptor, items []*T) *Filterable[T] {
	working := make([]*T, 0, len(items))
	for _, item := range items {
		if item != nil {
			working = append(working, item)
		}
	}
	return &Filterable[T]{desc: desc, items: working}
}

// Failed creates a query that only reports err.
func Failed[T any](err error) *Filterable[T] {
	return &Filterable[T]{err: err}
}

// Err returns the first error of the chain, if any.
func (f *Filterable[T]) Err() error {
	return f.err
}

// Len returns the current size of the working set.
func (f *Filterable[T]) Len() int {
	return len(f.items)
}

// --------------------------------------------------------------------------
// Predicates
// --------------------------------------------------------------------------

// WhereEqualTo keeps the records whose field equals v.
// Numbers compare numerically, nil matches null fields.
func (f *Filterable[T]) WhereEqualTo(field string, v any) *Filterable[T] {
	return f.whereValue("WhereEqualTo", field, v, func(fv, qv value.Value) bool {
		return value.Equal(fv, qv)
	})
}

// WhereNotEqualTo keeps the records whose field does not equal v.
func (f *Filterable[T]) WhereNotEqualTo(field string, v any) *Filterable[T] {
	return f.whereValue("WhereNotEqualTo", field, v, func(fv, qv value.Value) bool {
		return !value.Equal(fv, qv)
	})
}

// WhereGreaterThan keeps the records whose field is greater than v.
func (f *Filterable[T]) WhereGreaterThan(field string, v any) *Filterable[T] {
	return f.whereOrdered("WhereGreaterThan", field, v, func(c int) bool { return c > 0 })
}

// WhereGreaterThanOrEqualTo keeps the records whose field is greater than or equal to v.
func (f *Filterable[T]) WhereGreaterThanOrEqualTo(field string, v any) *Filterable[T] {
	return f.whereOrdered("WhereGreaterThanOrEqualTo", field, v, func(c int) bool { return c >= 0 })
}

// WhereLessThan keeps the records whose field is less than v.
func (f *Filterable[T]) WhereLessThan(field string, v any) *Filterable[T] {
	return f.whereOrdered("WhereLessThan", field, v, func(c int) bool { return c < 0 })
}

// WhereLessThanOrEqualTo keeps the records whose field is less than or equal to v.
func (f *Filterable[T]) WhereLessThanOrEqualTo(field string, v any) *Filterable[T] {
	return f.whereOrdered("WhereLessThanOrEqualTo", field, v, func(c int) bool { return c <= 0 })
}

// WhereArrayContains keeps the records whose collection field contains v.
func (f *Filterable[T]) WhereArrayContains(field string, v any) *Filterable[T] {
	if f.err != nil {
		return f
	}
	fd, ok := f.arrayField("WhereArrayContains", field)
	if !ok {
		return f
	}
	qv, ok := f.convert("WhereArrayContains", fd, v)
	if !ok {
		return f
	}
	return f.keep("WhereArrayContains", fd, func(fv value.Value) bool {
		return value.Contains(fv, qv)
	})
}

// WhereArrayContainsAny keeps the records whose collection field contains at
// least one of values. A single slice argument is expanded.
func (f *Filterable[T]) WhereArrayContainsAny(field string, values ...any) *Filterable[T] {
	if f.err != nil {
		return f
	}
	fd, ok := f.arrayField("WhereArrayContainsAny", field)
	if !ok {
		return f
	}

	candidates := make([]value.Value, 0, len(values))
	for _, v := range values {
		qv, ok := f.convert("WhereArrayContainsAny", fd, v)
		if !ok {
			return f
		}
		candidates = append(candidates, qv)
	}
	if len(candidates) == 1 && candidates[0].Kind == value.KindArray {
		candidates = candidates[0].A
	}

	return f.keep("WhereArrayContainsAny", fd, func(fv value.Value) bool {
		return value.ContainsAny(fv, candidates)
	})
}

// --------------------------------------------------------------------------
// Ordering and Windowing
// --------------------------------------------------------------------------

// OrderBy sorts the working set by field. The sort is stable: records with
// equal values keep their relative order in both directions. Null values come
// first in ascending and last in descending order.
func (f *Filterable[T]) OrderBy(field string, direction Direction) *Filterable[T] {
	if f.err != nil {
		return f
	}
	fd, ok := f.field("OrderBy", field)
	if !ok {
		return f
	}
	switch fd.Kind {
	case value.KindInt, value.KindFloat, value.KindString, value.KindBool:
	default:
		return f.fail(errs.InvalidField("OrderBy: the field '%s' of type '%s' is a %s and has no natural ordering", field, f.desc.TypeName, fd.Kind))
	}

	// read every key once
	type entry struct {
		item *T
		key  value.Value
	}
	entries := make([]entry, len(f.items))
	for i, item := range f.items {
		entries[i] = entry{item: item, key: fd.Get(item)}
	}

	less := func(a, b value.Value) bool {
		switch {
		case a.IsNull() && b.IsNull():
			return false
		case a.IsNull():
			return true
		case b.IsNull():
			return false
		}
		c, _ := value.Compare(a, b)
		return c < 0
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if direction == Descending {
			return less(entries[j].key, entries[i].key)
		}
		return less(entries[i].key, entries[j].key)
	})

	for i := range entries {
		f.items[i] = entries[i].item
	}
	return f
}

// Limit truncates the working set to the first n records.
// It is a no-op unless n > 0 and the working set holds at least n records.
func (f *Filterable[T]) Limit(n int) *Filterable[T] {
	if f.err != nil {
		return f
	}
	if n > 0 && len(f.items) >= n {
		f.items = f.items[:n]
	}
	return f
}

// Offset drops the first k records.
// It is a no-op unless 0 <= k < size of the working set.
func (f *Filterable[T]) Offset(k int) *Filterable[T] {
	if f.err != nil {
		return f
	}
	if k >= 0 && k < len(f.items) {
		f.items = f.items[k:]
	}
	return f
}

// Fetch returns the working set and the identifier of its last record.
// Fetch does not change the working set and may be called repeatedly.
func (f *Filterable[T]) Fetch() (Result[T], error) {
	if f.err != nil {
		return Result[T]{}, f.err
	}
	items := make([]*T, len(f.items))
	copy(items, f.items)

	res := Result[T]{Items: items}
	if len(items) > 0 {
		res.LastID = f.desc.ID(items[len(items)-1])
	}
	return res, nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

func (f *Filterable[T]) fail(err error) *Filterable[T] {
	Logger.Debugf("query failed: %v", err)
	f.err = err
	return f
}

// field resolves name or fails the query
func (f *Filterable[T]) field(op, name string) (*schema.Field, bool) {
	fd, ok := f.desc.Field(name)
	if !ok {
		f.fail(errs.InvalidField("%s: the field '%s' does not exist in type '%s'", op, name, f.desc.TypeName))
		return nil, false
	}
	return fd, true
}

// arrayField resolves name and requires a collection-typed field
func (f *Filterable[T]) arrayField(op, name string) (*schema.Field, bool) {
	fd, ok := f.field(op, name)
	if !ok {
		return nil, false
	}
	if fd.Kind != value.KindArray {
		f.fail(errs.InvalidField("%s: the field '%s' of type '%s' is a %s, not a collection", op, name, f.desc.TypeName, fd.Kind))
		return nil, false
	}
	return fd, true
}

// convert turns a query argument into a value or fails the query
func (f *Filterable[T]) convert(op string, fd *schema.Field, v any) (value.Value, bool) {
	qv, err := value.Of(v)
	if err != nil {
		f.fail(errs.InvalidField("%s: the value %v (%T) cannot be compared to the field '%s': %v", op, v, v, fd.Name, err))
		return value.Value{}, false
	}
	return qv, true
}

// keep removes every record failing pred, preserving the order of survivors
func (f *Filterable[T]) keep(op string, fd *schema.Field, pred func(fv value.Value) bool) *Filterable[T] {
	before := len(f.items)
	kept := f.items[:0]
	for _, item := range f.items {
		if pred(fd.Get(item)) {
			kept = append(kept, item)
		}
	}
	// clear the tail so dropped records can be collected
	for i := len(kept); i < before; i++ {
		f.items[i] = nil
	}
	f.items = kept
	Logger.Debugf("%s(%s): %d -> %d records", op, fd.Name, before, len(kept))
	return f
}

func (f *Filterable[T]) whereValue(op, field string, v any, pred func(fv, qv value.Value) bool) *Filterable[T] {
	if f.err != nil {
		return f
	}
	fd, ok := f.field(op, field)
	if !ok {
		return f
	}
	qv, ok := f.convert(op, fd, v)
	if !ok {
		return f
	}
	return f.keep(op, fd, func(fv value.Value) bool {
		return pred(fv, qv)
	})
}

func (f *Filterable[T]) whereOrdered(op, field string, v any, accept func(c int) bool) *Filterable[T] {
	if f.err != nil {
		return f
	}
	fd, ok := f.field(op, field)
	if !ok {
		return f
	}
	qv, ok := f.convert(op, fd, v)
	if !ok {
		return f
	}

	// the field type decides, checked once and not per record
	if !value.Comparable(value.Value{Kind: fd.Kind}, qv) {
		return f.fail(errs.InvalidField("%s: the value %v (%s) is not comparable to the field '%s' (%s) of type '%s'", op, qv, qv.Kind, fd.Name, fd.Kind, f.desc.TypeName))
	}

	return f.keep(op, fd, func(fv value.Value) bool {
		c, ok := value.Compare(fv, qv)
		return ok && accept(c)
	})
}
