package condition

import (
	"fmt"
	"sync"

	"github.com/c360/streamcep/errors"
	"github.com/c360/streamcep/event"
)

// Accessor extracts a comparable correlation key from an event payload.
// Accessors are registered by name and resolved once, at pattern-compile
// time. Conditions never reach into payloads reflectively at runtime.
type Accessor func(event.Payload) string

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Accessor)
)

// RegisterAccessor registers a named accessor. Re-registering a name
// replaces the previous accessor; callers own name uniqueness.
func RegisterAccessor(name string, fn Accessor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// LookupAccessor resolves a named accessor. Resolution happens at
// pattern-compile time; a missing accessor is a configuration error.
func LookupAccessor(name string) (Accessor, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	fn, ok := registry[name]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("accessor %q not registered", name),
			"condition", "LookupAccessor", "resolve accessor")
	}
	return fn, nil
}

// FieldAccessor returns an accessor reading a single string field from
// the payload. The common case: correlation keys stored as flat fields.
func FieldAccessor(field string) Accessor {
	return func(p event.Payload) string {
		return p.GetString(field)
	}
}
