// Package ruleengine implements the rule engine core (C6): phase entry,
// target iteration with list-recursion bounds, the transformation
// pipeline, operator evaluation and invert, capture write-out, action
// selection, chain recursion, and block enforcement. Grounded on the
// teacher's system/engine/service_v2.go dispatch loop (resolve once,
// iterate registered entries, aggregate per-call status), specialized
// from service-module dispatch to rule evaluation.
package ruleengine

import (
	"fmt"

	"github.com/ironbee-go/engine/internal/action"
	"github.com/ironbee-go/engine/internal/arena"
	"github.com/ironbee-go/engine/internal/enginelog"
	"github.com/ironbee-go/engine/internal/operator"
	"github.com/ironbee-go/engine/internal/rule"
	"github.com/ironbee-go/engine/internal/status"
	"github.com/ironbee-go/engine/internal/txfn"
)

// CompiledRule pairs a rule.Rule with its resolved operator and action
// instances, built once at registration time per spec §9 ("resolving
// names once at rule registration time, not per-call").
type CompiledRule struct {
	Rule         *rule.Rule
	Operator     *operator.Instance
	TrueActions  []*action.Instance
	FalseActions []*action.Instance
	Child        *CompiledRule
}

// Engine owns the rule/transformation/operator/action registries for one
// configuration context and the compiled rules derived from them, plus
// the list- and chain-recursion limits a transaction's evaluation
// obeys (spec §4.5, configurable per SPEC_FULL.md §C — defaults 5/10).
type Engine struct {
	Rules     *rule.Registry
	Txfns     *txfn.Registry
	Operators *operator.Registry
	Actions   *action.Registry

	configArena *arena.Arena
	log         *enginelog.Logger

	listLimit  int
	chainLimit int

	compiled map[string]*CompiledRule
}

// NewEngine constructs an Engine with the default built-in registries and
// the spec's default list/chain recursion limits (5/10).
func NewEngine(log *enginelog.Logger) *Engine {
	if log == nil {
		log = enginelog.Default()
	}
	return &Engine{
		Rules:       rule.NewRegistry(log),
		Txfns:       txfn.NewRegistry(),
		Operators:   operator.NewRegistry(),
		Actions:     action.NewRegistry(),
		configArena: arena.New("engine-config"),
		log:         log,
		listLimit:   5,
		chainLimit:  10,
		compiled:    make(map[string]*CompiledRule),
	}
}

// WithLimits overrides the default list/chain recursion limits. Must be
// called before any rule is registered.
func (e *Engine) WithLimits(listLimit, chainLimit int) *Engine {
	e.listLimit = listLimit
	e.chainLimit = chainLimit
	return e
}

// Close destroys the engine's configuration arena, running any cleanups
// registered by operator/action Create functions during compilation.
func (e *Engine) Close() {
	e.configArena.Destroy()
}

// RegisterRule registers r in the rule registry and compiles its
// operator/action references (and its chained children, recursively).
// On a compile failure the rule is left registered (matching the rule
// registry's own independent revision discipline) but will not be
// evaluated, since Phase entry consults the compiled map.
func (e *Engine) RegisterRule(r *rule.Rule) status.Status {
	if st := e.Rules.Register(r); !st.OK() {
		return st
	}
	cr, st := e.compileRule(r)
	if !st.OK() {
		delete(e.compiled, r.ID)
		return st
	}
	e.compiled[r.ID] = cr
	return status.Ok()
}

func (e *Engine) compileRule(r *rule.Rule) (*CompiledRule, status.Status) {
	capture := r.Operator.Capture || r.Flags.Has(rule.FlagCapture)
	opInst, st := e.Operators.Create(e.configArena, r.Operator.Operator, r.Operator.Param, r.Operator.Invert, capture)
	if !st.OK() {
		return nil, st
	}
	if st := opInst.CheckPhaseCompatible(r.Phase.IsStream()); !st.OK() {
		return nil, st
	}

	trueActs, st := e.compileActions(r.TrueActions)
	if !st.OK() {
		return nil, st
	}
	falseActs, st := e.compileActions(r.FalseActions)
	if !st.OK() {
		return nil, st
	}

	cr := &CompiledRule{Rule: r, Operator: opInst, TrueActions: trueActs, FalseActions: falseActs}

	if r.Child != nil {
		child, st := e.compileRule(r.Child)
		if !st.OK() {
			return nil, st
		}
		cr.Child = child
	}
	return cr, status.Ok()
}

func (e *Engine) compileActions(specs []rule.ActionInstance) ([]*action.Instance, status.Status) {
	out := make([]*action.Instance, 0, len(specs))
	for _, spec := range specs {
		inst, st := e.Actions.Create(e.configArena, spec.Action, spec.Param)
		if !st.OK() {
			return nil, status.Invalid(fmt.Sprintf("action %q: %v", spec.Action, st))
		}
		out = append(out, inst)
	}
	return out, status.Ok()
}

func (e *Engine) lookupCompiled(id string) *CompiledRule {
	return e.compiled[id]
}
