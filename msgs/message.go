// Package msgs defines the wire data model shared by the goal client
// and its transports: timestamps, goal identifiers, goal status values,
// the schema-less dynamic payload message, and the type registry that
// acts as the message factory.
package msgs

import (
	"sync"

	"github.com/pkg/errors"
)

// Message is a value that can cross the pub/sub fabric. Concrete
// messages carry their own JSON codec so transports stay payload
// agnostic.
type Message interface {
	Type() MessageType
	Marshal() ([]byte, error)
	Unmarshal(data []byte) error
}

// MessageType describes one message shape and can materialize empty
// instances of it.
type MessageType interface {
	Name() string
	NewMessage() Message
}

// Registry maps type names to message types. It is the factory the
// action specification resolves its component types from; an
// unresolvable name surfaces as an error to the caller rather than a
// zero value.
type Registry struct {
	mutex sync.RWMutex
	types map[string]MessageType
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]MessageType)}
}

// Register adds a message type under its own name. Re-registering a
// name replaces the previous entry.
func (r *Registry) Register(mt MessageType) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.types[mt.Name()] = mt
}

// TypeByName looks a message type up by name.
func (r *Registry) TypeByName(name string) (MessageType, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	mt, ok := r.types[name]
	if !ok {
		return nil, errors.Errorf("message type %q is not registered", name)
	}
	return mt, nil
}
