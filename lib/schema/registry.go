package schema

import (
	"reflect"
	"sort"
	"sync"

	"github.com/ValentinKolb/objectis/lib/errs"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("schema")

// Registry remembers the descriptors of all usable types.
// Registration is serialized, lookups are lock-free and may run concurrently.
type Registry struct {
	mu    sync.Mutex                              // Serializes Register
	types *xsync.MapOf[reflect.Type, *Descriptor] // Registered descriptors by Go type
	names *xsync.MapOf[string, reflect.Type]      // Type name -> Go type (namespaces must be unique)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		types: xsync.NewMapOf[reflect.Type, *Descriptor](),
		names: xsync.NewMapOf[string, reflect.Type](),
	}
}

// Register validates and stores d.
// Registering the same Go type again is a no-op, the first descriptor is kept.
// Two different Go types may not share a type name.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *Registry) Register(d *Descriptor) error {
	if d == nil || d.Type == nil {
		return errs.Schema("cannot register a nil descriptor")
	}
	if d.id == nil {
		return errs.Schema("the descriptor of type '%s' has no identifier accessor", d.TypeName)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.types.Load(d.Type); ok {
		Logger.Debugf("type %s already registered as '%s'", d.Type, existing.TypeName)
		return nil
	}

	if other, taken := r.names.Load(d.TypeName); taken && other != d.Type {
		return errs.Schema("the type name '%s' is already used by type '%s'", d.TypeName, other)
	}

	r.names.Store(d.TypeName, d.Type)
	r.types.Store(d.Type, d)

	Logger.Debugf("registered type '%s' (id field '%s', %d fields)", d.TypeName, d.IDField, len(d.order))
	return nil
}

// Lookup returns the descriptor registered for t.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *Registry) Lookup(t reflect.Type) (*Descriptor, bool) {
	return r.types.Load(t)
}

// IsRegistered reports whether t has been registered.
func (r *Registry) IsRegistered(t reflect.Type) bool {
	_, ok := r.types.Load(t)
	return ok
}

// Types returns the names of all registered types, sorted.
func (r *Registry) Types() []string {
	names := make([]string, 0, r.names.Size())
	r.names.Range(func(name string, _ reflect.Type) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// --------------------------------------------------------------------------
// Generic Helpers
// --------------------------------------------------------------------------

// Register derives the descriptor of T via reflection and registers it.
func Register[T any](r *Registry, opts ...Option) (*Descriptor, error) {
	if d, ok := r.Lookup(TypeOf[T]()); ok {
		return d, nil
	}
	d, err := Describe[T](opts...)
	if err != nil {
		return nil, err
	}
	if err := r.Register(d); err != nil {
		return nil, err
	}
	// another goroutine may have won the race, return what is stored
	stored, _ := r.Lookup(d.Type)
	return stored, nil
}

// Lookup returns the descriptor of T or a NotRegisteredError.
func Lookup[T any](r *Registry) (*Descriptor, error) {
	t := TypeOf[T]()
	d, ok := r.Lookup(t)
	if !ok {
		return nil, errs.NotRegistered(t.String())
	}
	return d, nil
}
