// Package txfn implements the transformation registry (C4): named pure
// functions (arena, field) -> (field, flags) applied left-to-right to a
// rule's targets before operator evaluation. The name-keyed registration
// shape is grounded on the teacher's system/core.Registry. Names are not
// resolved at rule-compile time: Apply and Pipeline look each name up in
// the registry on every call.
package txfn

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ironbee-go/engine/internal/arena"
	"github.com/ironbee-go/engine/internal/field"
	"github.com/ironbee-go/engine/internal/status"
)

// Flags reports characteristics of a transformation's output.
type Flags struct {
	// Modified is true when the output differs from the input; some
	// callers use it to skip redundant logging.
	Modified bool
}

// Func is a pure function from field to field. Implementations must not
// mutate in. Applying a transformation to a null field is a no-op that
// yields null; applying to a list recurses into elements (the registry's
// Apply helper does this generically so individual Funcs only need to
// handle the scalar case).
type Func func(a *arena.Arena, in *field.Field) (*field.Field, Flags, status.Status)

// Registry is a name-keyed, case-insensitive map of registered
// transformations, looked up by name each time one is applied.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

// NewRegistry constructs a registry pre-populated with the built-in
// transformations.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	registerBuiltins(r)
	return r
}

// Register adds fn under name (case-insensitive), overwriting any prior
// registration under that name — transformations are configuration-time
// only, there is no revision/Exists discipline here as there is for rules.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[strings.ToLower(name)] = fn
}

// Lookup returns the registered Func for name, or nil.
func (r *Registry) Lookup(name string) Func {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.funcs[strings.ToLower(name)]
}

// Apply resolves name and applies it to in, recursing into list elements
// and treating a null input as a no-op, per spec §4.3.
func (r *Registry) Apply(a *arena.Arena, name string, in *field.Field) (*field.Field, status.Status) {
	fn := r.Lookup(name)
	if fn == nil {
		return nil, status.NotFound(fmt.Sprintf("unknown transformation %q", name))
	}
	return applyRecursive(a, fn, in)
}

func applyRecursive(a *arena.Arena, fn Func, in *field.Field) (*field.Field, status.Status) {
	if field.IsNull(in) {
		return nil, status.Ok()
	}
	if in.Type == field.TypeList {
		out := make([]*field.Field, len(in.List))
		for i, elem := range in.List {
			transformed, st := applyRecursive(a, fn, elem)
			if !st.OK() {
				return nil, st
			}
			out[i] = transformed
		}
		return field.NewList(in.Name, out), status.Ok()
	}
	out, _, st := fn(a, in)
	if !st.OK() {
		return nil, st
	}
	if out == nil && in != nil {
		// A transformation returning null on non-null input is a
		// rule-level error per spec §4.5 edge cases.
		return nil, status.Invalid("transformation returned null on non-null input")
	}
	return out, status.Ok()
}

// Pipeline applies a sequence of transformation names in order, feeding
// each output into the next.
func (r *Registry) Pipeline(a *arena.Arena, names []string, in *field.Field) (*field.Field, status.Status) {
	cur := in
	for _, name := range names {
		next, st := r.Apply(a, name, cur)
		if !st.OK() {
			return nil, st
		}
		cur = next
	}
	return cur, status.Ok()
}
