package schema

import (
	"reflect"
	"strings"

	"github.com/ValentinKolb/objectis/lib/errs"
	"github.com/ValentinKolb/objectis/lib/value"
)

const (
	tagName     = "objectis" // struct tag: `objectis:"name,id"` or `objectis:"-"`
	tagOptionID = "id"
	defaultID   = "id"
)

// Describe derives the descriptor of T via reflection. T must be a struct type.
//
// Exported fields with a supported kind (numbers, strings, bools, pointers to
// those, and slices/arrays of those) become queryable. Fields of embedded
// structs are promoted, shallower fields win. The identifier is the field
// tagged `objectis:",id"`, else the field named "id" (any case), searched on
// the declared fields first and then on the embedded types.
func Describe[T any](opts ...Option) (*Descriptor, error) {
	return describe(TypeOf[T](), opts...)
}

func describe(t reflect.Type, opts ...Option) (*Descriptor, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if t.Kind() != reflect.Struct {
		return nil, errs.Schema("the type '%s' must be a struct, got %s", t, t.Kind())
	}

	typeName := o.typeName
	if typeName == "" {
		typeName = t.String()
	}

	// collect fields breadth-first over the embedding chain
	type level struct {
		t     reflect.Type
		index []int
	}

	type candidate struct {
		name     string
		goName   string
		exported bool
	}

	var (
		fields  []*Field
		seen    = make(map[string]bool)
		queue   = []level{{t: t}}
		idField string
		idFound bool
	)

	for len(queue) > 0 {
		var (
			next   []level
			tagged *candidate
			named  *candidate
		)

		for _, lvl := range queue {
			for i := 0; i < lvl.t.NumField(); i++ {
				sf := lvl.t.Field(i)
				index := append(append([]int(nil), lvl.index...), i)

				name, isID, skip := parseTag(sf)
				if skip {
					continue
				}

				// embedded structs are walked on the next level
				if sf.Anonymous {
					et := sf.Type
					if et.Kind() == reflect.Pointer {
						et = et.Elem()
					}
					if et.Kind() == reflect.Struct {
						next = append(next, level{t: et, index: index})
						continue
					}
				}

				// identifier candidates, exported ones take precedence
				c := &candidate{name: name, goName: sf.Name, exported: sf.IsExported()}
				if isID && (tagged == nil || (!tagged.exported && c.exported)) {
					tagged = c
				}
				if strings.EqualFold(sf.Name, defaultID) && (named == nil || (!named.exported && c.exported)) {
					named = c
				}

				if !sf.IsExported() {
					continue
				}

				kind := value.KindOf(sf.Type)
				if kind == value.KindInvalid || seen[name] {
					continue
				}
				seen[name] = true

				fields = append(fields, &Field{
					Name:   name,
					GoName: sf.Name,
					Kind:   kind,
					Get:    reflectGetter(t, index),
				})
			}
		}

		if !idFound {
			chosen := tagged
			if chosen == nil {
				chosen = named
			}
			if chosen != nil {
				if !chosen.exported {
					return nil, errs.Schema("the '%s' field of type '%s' is not exported and does not have a readable accessor", chosen.goName, typeName)
				}
				idField, idFound = chosen.name, true
			}
		}

		queue = next
	}

	if !idFound {
		return nil, errs.Schema("a field named 'id' of type string needs to exist in type '%s' or its embedded types but was not found", typeName)
	}

	// the id may have been skipped because of an unsupported kind
	if !seen[idField] {
		return nil, errs.Schema("the '%s' field of type '%s' must be of type string", idField, typeName)
	}

	return newDescriptor(typeName, t, idField, fields)
}

// parseTag returns the canonical name of a field, whether it is tagged as the
// identifier and whether it should be skipped entirely.
func parseTag(sf reflect.StructField) (name string, isID bool, skip bool) {
	name = sf.Name

	if tag, ok := sf.Tag.Lookup(tagName); ok {
		if tag == "-" {
			return "", false, true
		}
		parts := strings.Split(tag, ",")
		if parts[0] != "" {
			name = parts[0]
		}
		for _, opt := range parts[1:] {
			if opt == tagOptionID {
				isID = true
			}
		}
		return name, isID, false
	}

	if tag, ok := sf.Tag.Lookup("json"); ok {
		if jsonName := strings.Split(tag, ",")[0]; jsonName != "" && jsonName != "-" {
			name = jsonName
		}
	}
	return name, false, false
}

// reflectGetter creates an accessor reading the field at index from a *T.
// Nil embedded pointers yield Null.
func reflectGetter(t reflect.Type, index []int) Getter {
	return func(rec any) value.Value {
		rv := reflect.ValueOf(rec)
		if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Type() != t {
			return value.Null()
		}
		fv, err := rv.Elem().FieldByIndexErr(index)
		if err != nil {
			return value.Null()
		}
		v, err := value.FromReflect(fv)
		if err != nil {
			return value.Null()
		}
		return v
	}
}
