// Package operator implements the operator registry (C4): named predicates
// (tx, instance data, input field) -> (result, capture) evaluated against a
// rule's transformed target. The name-keyed registration shape is grounded
// on the same teacher pattern as internal/txfn — system/engine/service_v2.go's
// "register by name once, dispatch by interface" method registry.
package operator

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ironbee-go/engine/internal/arena"
	"github.com/ironbee-go/engine/internal/field"
	"github.com/ironbee-go/engine/internal/status"
)

// Capability is a bitmask of what phases/contexts an operator supports, per
// spec §4.3.
type Capability uint8

const (
	// CapPhase allows use in non-stream phases.
	CapPhase Capability = 1 << iota
	// CapStream allows use in stream phases.
	CapStream
	// CapAllowNull allows invocation with no target field present.
	CapAllowNull
	// CapCaptureSupported means the operator may populate a capture list.
	CapCaptureSupported
)

func (c Capability) Has(want Capability) bool { return c&want == want }

// Instance is the resolved, parsed form of a rule's operator configuration:
// the create function has already run and instanceData is opaque to the
// registry.
type Instance struct {
	Def          *Definition
	InstanceData any
	Invert       bool
	Capture      bool
}

// CreateFunc parses an operator's configured parameter string into
// whatever instance data the operator's Eval needs (a compiled regex, a
// parsed number, the literal string, etc).
type CreateFunc func(a *arena.Arena, param string) (any, status.Status)

// EvalFunc evaluates the operator against in, given the instance data
// produced by CreateFunc. result == 0 is false; any other value is true.
// capture is non-nil only when the operator populated one; it is returned
// whether or not the instance requested capture, and the rule engine
// decides whether to write it to the data store.
type EvalFunc func(a *arena.Arena, instanceData any, in *field.Field) (result int, capture []*field.Field, st status.Status)

// Definition is one named operator: its capability flags plus create/eval
// functions, registered once and shared by every Instance referencing it.
type Definition struct {
	Name         string
	Capabilities Capability
	Create       CreateFunc
	Eval         EvalFunc
}

// Registry is a name-keyed, case-insensitive map of registered operator
// definitions.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry constructs a registry pre-populated with the built-in
// operators.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]*Definition)}
	registerBuiltins(r)
	return r
}

// Register adds def under its name (case-insensitive), overwriting any
// prior registration under that name.
func (r *Registry) Register(def *Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[strings.ToLower(def.Name)] = def
}

// Lookup returns the registered Definition for name, or nil.
func (r *Registry) Lookup(name string) *Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defs[strings.ToLower(name)]
}

// Create resolves name and builds a rule-bound Instance. The engine calls
// this once at rule registration time, not per-transaction, per spec
// §9 "Dynamic dispatch" (resolve names once, avoid per-call lookup).
func (r *Registry) Create(a *arena.Arena, name, param string, invert, capture bool) (*Instance, status.Status) {
	def := r.Lookup(name)
	if def == nil {
		return nil, status.NotFound(fmt.Sprintf("unknown operator %q", name))
	}
	if capture && !def.Capabilities.Has(CapCaptureSupported) {
		return nil, status.Incompat(fmt.Sprintf("operator %q does not support capture", name))
	}
	var data any
	var st status.Status
	if def.Create != nil {
		data, st = def.Create(a, param)
		if !st.OK() {
			return nil, st
		}
	}
	return &Instance{Def: def, InstanceData: data, Invert: invert, Capture: capture}, status.Ok()
}

// CheckPhaseCompatible verifies the operator's capabilities against the
// phase the rule using it runs in (spec testable property 4): a
// phase-only operator must never run in a stream phase and vice versa.
func (inst *Instance) CheckPhaseCompatible(isStream bool) status.Status {
	if isStream && !inst.Def.Capabilities.Has(CapStream) {
		return status.Incompat(fmt.Sprintf("operator %q is not valid in a stream phase", inst.Def.Name))
	}
	if !isStream && !inst.Def.Capabilities.Has(CapPhase) {
		return status.Incompat(fmt.Sprintf("operator %q is not valid in a non-stream phase", inst.Def.Name))
	}
	return status.Ok()
}

// Eval runs the operator against in, applying invert per spec §4.5. A nil
// in is only permitted when the definition advertises CapAllowNull;
// callers (the rule engine) are expected to have already checked
// ALLOW_NULL before calling Eval with a null field — Eval itself does not
// re-check, mirroring the engine's single-check-point design.
func (inst *Instance) Eval(a *arena.Arena, in *field.Field) (result int, capture []*field.Field, st status.Status) {
	result, capture, st = inst.Def.Eval(a, inst.InstanceData, in)
	if !st.OK() {
		return 0, nil, st
	}
	if inst.Invert {
		if result != 0 {
			result = 0
		} else {
			result = 1
		}
	}
	return result, capture, status.Ok()
}
