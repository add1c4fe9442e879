// Package serialization resolves the type identifiers stored in saved
// configurations back into fresh instances.
package serialization

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	// ErrTypeNotFound is returned when an identifier has no registered
	// factory.
	ErrTypeNotFound = errors.New("type not found")

	// ErrTypeRegistered is returned when an identifier is registered twice.
	ErrTypeRegistered = errors.New("type already registered")

	// ErrTypeMismatch is returned when a created instance does not provide the
	// requested capability.
	ErrTypeMismatch = errors.New("type does not provide the requested capability")
)

// A Factory creates a default instance of a type.
type Factory func() any

// A Resolver creates instances from type identifiers.
type Resolver interface {
	CreateInstance(typeName string) (any, error)
}

// TypeRegistry maps type identifiers to factories.
type TypeRegistry struct {
	lock sync.RWMutex

	names     []string
	factories map[string]Factory
}

// NewTypeRegistry creates an empty TypeRegistry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		factories: make(map[string]Factory),
	}
}

// Register associates a factory with a type identifier.
func (r *TypeRegistry) Register(typeName string, factory Factory) error {
	if factory == nil {
		panic("factory must not be nil")
	}

	r.lock.Lock()
	defer r.lock.Unlock()

	if _, ok := r.factories[typeName]; ok {
		return fmt.Errorf("%w: %s", ErrTypeRegistered, typeName)
	}

	r.factories[typeName] = factory
	r.names = append(r.names, typeName)

	return nil
}

// RegisterType registers the type of the example under its fully qualified
// name. The example can be a pointer or a struct; instances are always
// created as pointers to a zero value.
func (r *TypeRegistry) RegisterType(example any) error {
	t := reflect.TypeOf(example)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	return r.Register(typeNameOf(t), func() any {
		return reflect.New(t).Interface()
	})
}

// CreateInstance creates a default instance of the named type.
func (r *TypeRegistry) CreateInstance(typeName string) (any, error) {
	r.lock.RLock()
	factory, ok := r.factories[typeName]
	r.lock.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTypeNotFound, typeName)
	}

	return factory(), nil
}

// Names returns the registered identifiers in registration order.
func (r *TypeRegistry) Names() []string {
	r.lock.RLock()
	defer r.lock.RUnlock()

	names := make([]string, len(r.names))
	copy(names, r.names)

	return names
}

// Resolve creates an instance of the named type and checks that it provides
// the capability T.
func Resolve[T any](r Resolver, typeName string) (T, error) {
	var zero T

	instance, err := r.CreateInstance(typeName)
	if err != nil {
		return zero, err
	}

	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("%w: %s is not a %s",
			ErrTypeMismatch, typeName, reflect.TypeOf((*T)(nil)).Elem())
	}

	return typed, nil
}

// TypeName returns the fully qualified name of the dynamic type of v, looking
// through pointers.
func TypeName(v any) string {
	if v == nil {
		return ""
	}

	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	return typeNameOf(t)
}

func typeNameOf(t reflect.Type) string {
	if t.PkgPath() == "" {
		return t.Name()
	}

	return t.PkgPath() + "." + t.Name()
}

var registry = NewTypeRegistry()

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *TypeRegistry {
	return registry
}

// RegisterType registers a type with the process-wide registry.
func RegisterType(example any) error {
	return registry.RegisterType(example)
}

// CreateInstance creates an instance from the process-wide registry.
func CreateInstance(typeName string) (any, error) {
	return registry.CreateInstance(typeName)
}
