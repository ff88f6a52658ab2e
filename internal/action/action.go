// Package action implements the action registry (C5): named
// side-effecting callbacks fired when a rule's truthy/falsy branch is
// selected. Grounded on the same register-by-name pattern as
// internal/txfn and internal/operator (system/engine/service_v2.go), with
// the execute function's Declined return adapted from
// infrastructure/middleware/headergate.go's block-signal convention.
package action

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ironbee-go/engine/internal/arena"
	"github.com/ironbee-go/engine/internal/field"
	"github.com/ironbee-go/engine/internal/status"
)

// BlockKind is the severity of a block request raised by the block
// action, per spec §3 transaction block flags.
type BlockKind int

const (
	BlockNone BlockKind = iota
	BlockAdvisory
	BlockPhase
	BlockImmediate
)

func (k BlockKind) String() string {
	switch k {
	case BlockAdvisory:
		return "advisory"
	case BlockPhase:
		return "phase"
	case BlockImmediate:
		return "immediate"
	default:
		return "none"
	}
}

// TxContext is the restricted view of the in-flight rule evaluation that
// an action's Execute function may observe or mutate. The rule engine
// (C6) implements this over the real transaction; keeping it as a small
// interface here mirrors the host vtable pattern in internal/hostapi —
// actions never see the full Transaction type.
type TxContext interface {
	Store() *field.Store
	Arena() *arena.Arena
	RuleID() string
	SetBlock(kind BlockKind, statusCode int)
	SetCapturePrefix(prefix string)
	SetSeverity(n int)
	SetConfidence(n int)
	AddTag(tag string)
	SetMessage(msg string)
	EmitEvent(ruleID string, fields map[string]string)
}

// CreateFunc parses an action's configured parameter at rule-registration
// time.
type CreateFunc func(a *arena.Arena, param string) (any, status.Status)

// ExecuteFunc runs the action against the current evaluation. Ok or
// Declined are both expected outcomes — Declined is the exclusive signal
// that this action requests blocking (spec §4.4). Any other status is
// recorded but does not abort the rule's remaining actions.
type ExecuteFunc func(tx TxContext, instanceData any) status.Status

// Definition is one named action.
type Definition struct {
	Name    string
	Create  CreateFunc
	Execute ExecuteFunc
}

// Instance is a rule-bound, already-parsed action reference.
type Instance struct {
	Def          *Definition
	InstanceData any
}

// Registry is a name-keyed, case-insensitive map of registered actions.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]*Definition
}

// NewRegistry constructs a registry pre-populated with the built-in
// actions.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]*Definition)}
	registerBuiltins(r)
	return r
}

// Register adds def under its name (case-insensitive).
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

// Create resolves name and parses param into a rule-bound Instance, once
// at rule registration time.
func (r *Registry) Create(a *arena.Arena, name, param string) (*Instance, status.Status) {
	def := r.Lookup(name)
	if def == nil {
		return nil, status.NotFound(fmt.Sprintf("unknown action %q", name))
	}
	var data any
	var st status.Status
	if def.Create != nil {
		data, st = def.Create(a, param)
		if !st.OK() {
			return nil, st
		}
	}
	return &Instance{Def: def, InstanceData: data}, status.Ok()
}

// Run invokes the instance's Execute function.
func (inst *Instance) Run(tx TxContext) status.Status {
	if inst.Def.Execute == nil {
		return status.Ok()
	}
	return inst.Def.Execute(tx, inst.InstanceData)
}

// RunAll executes every instance in order, per spec §4.4: all actions run
// regardless of earlier failures; the aggregate status is Declined if any
// action declined, else the first non-Ok status encountered, else Ok.
func RunAll(tx TxContext, instances []*Instance) status.Status {
	var firstErr status.Status
	declined := false
	for _, inst := range instances {
		st := inst.Run(tx)
		if st.Declined() {
			declined = true
			continue
		}
		if !st.OK() && firstErr.Err == nil && firstErr.Code == "" {
			firstErr = st
		}
	}
	if declined {
		return status.Declined("an action requested blocking")
	}
	if firstErr.Code != "" {
		return firstErr
	}
	return status.Ok()
}
