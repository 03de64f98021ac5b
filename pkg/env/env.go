// Package env implements the environment the VM's call frames use for named
// variables: a parent-chained, mutable, case-sensitive mapping from name to
// value.
package env

import (
	"fmt"

	"github.com/machine-dialect/mdc/pkg/value"
)

// Environment is one scope frame. Set writes to the nearest ancestor frame
// that already binds the name (matching assignment-to-an-enclosing-variable
// semantics); Define always creates or overwrites a binding in this frame
// specifically. Frames are shared by reference, so a closure capturing an
// Environment observes later mutations made through any other reference to
// the same frame.
type Environment struct {
	parent *Environment
	store  map[string]value.Value
}

// New creates a top-level environment with no parent.
func New() *Environment {
	return &Environment{store: make(map[string]value.Value)}
}

// NewEnclosed creates a child scope of parent, e.g. for a utility call frame.
func NewEnclosed(parent *Environment) *Environment {
	return &Environment{parent: parent, store: make(map[string]value.Value)}
}

// Get looks up name, searching outward through parent frames.
func (e *Environment) Get(name string) (value.Value, bool) {
	for frame := e; frame != nil; frame = frame.parent {
		if v, ok := frame.store[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Define binds name to v in this frame, shadowing any outer binding of the
// same name.
func (e *Environment) Define(name string, v value.Value) {
	e.store[name] = v
}

// Set assigns v to name in the nearest frame (searching outward from this
// one) that already binds it, matching Set's "mutate the existing binding"
// semantics. If no frame binds name yet, it is defined locally — a first
// `Set x to ...` at any scope introduces the variable there.
func (e *Environment) Set(name string, v value.Value) {
	for frame := e; frame != nil; frame = frame.parent {
		if _, ok := frame.store[name]; ok {
			frame.store[name] = v
			return
		}
	}
	e.store[name] = v
}

// Names returns the names bound directly in this frame, for tooling such as
// cmd/mdrepl's /vars command; it does not walk parent frames.
func (e *Environment) Names() []string {
	names := make([]string, 0, len(e.store))
	for name := range e.store {
		names = append(names, name)
	}
	return names
}

// MustGet looks up name and panics with an *UnboundNameError if absent —
// used only by callers (tests, tooling) that have already guaranteed
// existence; the VM always uses Get and surfaces a RuntimeError instead of
// calling this.
func (e *Environment) MustGet(name string) value.Value {
	v, ok := e.Get(name)
	if !ok {
		panic(&UnboundNameError{Name: name})
	}
	return v
}

// UnboundNameError reports a lookup of a name no frame in the chain binds.
type UnboundNameError struct {
	Name string
}

func (e *UnboundNameError) Error() string {
	return fmt.Sprintf("unbound name: %s", e.Name)
}
