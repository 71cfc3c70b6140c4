package schema

import (
	"reflect"
	"sort"

	"github.com/ValentinKolb/objectis/lib/errs"
	"github.com/ValentinKolb/objectis/lib/value"
)

// --------------------------------------------------------------------------
// Field Accessor Table
// --------------------------------------------------------------------------

// Getter reads a field from a record. rec is always a pointer to the registered type.
type Getter func(rec any) value.Value

// Field describes one queryable field of a registered type.
type Field struct {
	Name   string     // Canonical name used in queries
	GoName string     // Name of the Go struct field (empty for declared accessors)
	Kind   value.Kind // Semantic type of the field
	Get    Getter     // Accessor returning the current value
}

// Descriptor is the immutable metadata of a registered type.
// It is built once at registration time and only read afterwards.
type Descriptor struct {
	TypeName string       // Namespace used in all backend keys
	Type     reflect.Type // The (non-pointer) Go type of the records
	IDField  string       // Canonical name of the identifier field

	fields map[string]*Field // Lookup by canonical and Go name
	order  []*Field          // Fields in declaration order
	id     Getter
}

// Field returns the accessor for name. Both the canonical and the Go name are accepted.
func (d *Descriptor) Field(name string) (*Field, bool) {
	f, ok := d.fields[name]
	return f, ok
}

// MustField is like Field but returns an InvalidFieldError for unknown names.
func (d *Descriptor) MustField(name string) (*Field, error) {
	f, ok := d.fields[name]
	if !ok {
		return nil, errs.InvalidField("the field '%s' does not exist in type '%s'", name, d.TypeName)
	}
	return f, nil
}

// Fields returns all fields in declaration order.
func (d *Descriptor) Fields() []*Field {
	out := make([]*Field, len(d.order))
	copy(out, d.order)
	return out
}

// FieldNames returns the canonical field names, sorted.
func (d *Descriptor) FieldNames() []string {
	names := make([]string, 0, len(d.order))
	for _, f := range d.order {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// ID returns the identifier of rec, which must be a pointer to the registered type.
func (d *Descriptor) ID(rec any) string {
	return d.id(rec).S
}

// newDescriptor assembles a descriptor and validates the identifier field.
func newDescriptor(typeName string, t reflect.Type, idField string, fields []*Field) (*Descriptor, error) {
	d := &Descriptor{
		TypeName: typeName,
		Type:     t,
		IDField:  idField,
		fields:   make(map[string]*Field, len(fields)*2),
		order:    fields,
	}

	if typeName == "" {
		return nil, errs.Schema("the type '%s' has an empty type name", t)
	}

	for _, f := range fields {
		if _, exists := d.fields[f.Name]; exists {
			return nil, errs.Schema("the field '%s' is declared twice in type '%s'", f.Name, typeName)
		}
		d.fields[f.Name] = f
	}

	// go names are aliases, canonical names win on conflicts
	for _, f := range fields {
		if f.GoName == "" {
			continue
		}
		if _, exists := d.fields[f.GoName]; !exists {
			d.fields[f.GoName] = f
		}
	}

	id, ok := d.fields[idField]
	if !ok {
		return nil, errs.Schema("a field named '%s' needs to exist in type '%s' or its embedded types but was not found", idField, typeName)
	}
	if id.Kind != value.KindString {
		return nil, errs.Schema("the '%s' field of type '%s' must be a string, but %s found", idField, typeName, id.Kind)
	}
	if id.Get == nil {
		return nil, errs.Schema("the '%s' field of type '%s' does not have an accessor", idField, typeName)
	}
	d.id = id.Get

	return d, nil
}

// --------------------------------------------------------------------------
// Options
// --------------------------------------------------------------------------

type options struct {
	typeName string
}

// Option customizes how a descriptor is derived.
type Option func(*options)

// WithTypeName overrides the type name used as key namespace.
// The default is the Go type string, e.g. "models.Person".
func WithTypeName(name string) Option {
	return func(o *options) {
		o.typeName = name
	}
}

// TypeOf returns the non-pointer reflect.Type of T.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// --------------------------------------------------------------------------
// Explicit declaration
// --------------------------------------------------------------------------

// TypedField is a field accessor declared by hand for records of type T.
type TypedField[T any] struct {
	Name string
	Kind value.Kind
	Get  func(*T) value.Value
}

// Accessor declares a field accessor for T.
func Accessor[T any](name string, kind value.Kind, get func(*T) value.Value) TypedField[T] {
	return TypedField[T]{Name: name, Kind: kind, Get: get}
}

// Declare builds a descriptor for T from explicitly declared accessors.
// idField must name one of the declared fields and that field must be a string.
func Declare[T any](typeName, idField string, fields ...TypedField[T]) (*Descriptor, error) {
	out := make([]*Field, 0, len(fields))
	for _, tf := range fields {
		if tf.Get == nil {
			return nil, errs.Schema("the field '%s' of type '%s' does not have an accessor", tf.Name, typeName)
		}
		get := tf.Get
		out = append(out, &Field{
			Name: tf.Name,
			Kind: tf.Kind,
			Get: func(rec any) value.Value {
				r, ok := rec.(*T)
				if !ok || r == nil {
					return value.Null()
				}
				return get(r)
			},
		})
	}
	return newDescriptor(typeName, TypeOf[T](), idField, out)
}
