// Package message defines the schema contract for values exchanged between a
// courier client and server, and the process-wide registry that resolves a
// type name back to a concrete Go type.
//
// Every message is a pointer to a struct that reports its canonical name:
//
//	type Ping struct{}
//
//	func (*Ping) MessageName() string { return "demo.Ping" }
//
// The name travels on the wire in front of the encoded body, so it must be
// stable and unique across every process that talks over the same socket.
// Schemas are registered once at startup, before any request is dispatched:
//
//	func init() { message.MustRegister(func() message.Message { return new(Ping) }) }
package message

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Message is implemented by every value that can be sent over a courier
// connection.
type Message interface {
	// MessageName returns the canonical type name. It must not depend on
	// the receiver's field values and must not dereference the receiver.
	MessageName() string
}

// Factory returns a new, default-valued instance of one message type.
type Factory func() Message

type entry struct {
	factory Factory
	typ     reflect.Type
}

var (
	mu     sync.RWMutex
	byName = make(map[string]entry)
	byType = make(map[reflect.Type]string)
)

// Register adds a message type to the global registry. Registering the same
// Go type under the same name again is a no-op. Registering a different Go
// type under a name already in use, or a type whose name is empty, fails.
func Register(factory Factory) error {
	if factory == nil {
		return fmt.Errorf("message: nil factory")
	}
	sample := factory()
	if sample == nil {
		return fmt.Errorf("message: factory returned nil")
	}
	name := sample.MessageName()
	if name == "" {
		return fmt.Errorf("message: %T has an empty message name", sample)
	}
	typ := reflect.TypeOf(sample)

	mu.Lock()
	defer mu.Unlock()

	if existing, ok := byName[name]; ok {
		if existing.typ == typ {
			return nil
		}
		return fmt.Errorf("message: name %q already registered for %v, cannot register %v", name, existing.typ, typ)
	}
	if other, ok := byType[typ]; ok {
		return fmt.Errorf("message: %v already registered as %q, cannot register as %q", typ, other, name)
	}

	byName[name] = entry{factory: factory, typ: typ}
	byType[typ] = name
	return nil
}

// MustRegister is like Register but panics on error. It is meant for init
// functions of schema packages.
func MustRegister(factory Factory) {
	if err := Register(factory); err != nil {
		panic(err)
	}
}

// RegisterType registers T, which must be a pointer to a struct, using a
// factory that allocates a zero value. It returns T's canonical name.
func RegisterType[T Message]() (string, error) {
	typ := reflect.TypeFor[T]()
	if name, ok := lookupType(typ); ok {
		return name, nil
	}
	if typ.Kind() != reflect.Pointer || typ.Elem().Kind() != reflect.Struct {
		return "", fmt.Errorf("message: %v must be a pointer to a struct", typ)
	}

	elem := typ.Elem()
	factory := func() Message {
		return reflect.New(elem).Interface().(Message)
	}
	if err := Register(factory); err != nil {
		return "", err
	}
	return factory().MessageName(), nil
}

// NameOf returns the canonical name of the registered type T.
func NameOf[T Message]() (string, error) {
	typ := reflect.TypeFor[T]()
	if name, ok := lookupType(typ); ok {
		return name, nil
	}
	return "", fmt.Errorf("message: %v is not registered", typ)
}

// New allocates a default-valued instance of the type registered under name.
func New(name string) (Message, bool) {
	mu.RLock()
	e, ok := byName[name]
	mu.RUnlock()
	if !ok {
		return nil, false
	}
	return e.factory(), true
}

// Registered reports whether a type is registered under name.
func Registered(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := byName[name]
	return ok
}

// Names returns every registered name in sorted order.
func Names() []string {
	mu.RLock()
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	mu.RUnlock()
	sort.Strings(names)
	return names
}

func lookupType(typ reflect.Type) (string, bool) {
	mu.RLock()
	defer mu.RUnlock()
	name, ok := byType[typ]
	return name, ok
}
