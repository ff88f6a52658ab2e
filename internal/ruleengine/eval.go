package ruleengine

import (
	"errors"
	"strings"
	"time"

	"github.com/ironbee-go/engine/internal/action"
	"github.com/ironbee-go/engine/internal/field"
	"github.com/ironbee-go/engine/internal/metrics"
	"github.com/ironbee-go/engine/internal/operator"
	"github.com/ironbee-go/engine/internal/rule"
	"github.com/ironbee-go/engine/internal/status"
)

var errChainLimit = errors.New("chain recursion limit exceeded")

// EvalPhase retrieves tx's context rule list for p and evaluates each
// runnable top-level rule in registration order (spec §4.5 phase entry).
// If BlockImmediate is set after any rule, processing aborts for the
// remainder of the phase (testable property 5). If BlockPhase was set by
// any rule, it is honored at phase end.
func (e *Engine) EvalPhase(tx *Transaction, p rule.Phase) status.Status {
	rules := e.Rules.Phase(p)
	if len(rules) == 0 {
		return status.Ok()
	}
	start := time.Now()
	defer func() {
		metrics.PhaseDurationSeconds.WithLabelValues(p.String()).Observe(time.Since(start).Seconds())
	}()
	contextEnabled := e.Rules.Enabled()
	for _, r := range rules {
		if !r.Runnable(contextEnabled) {
			continue
		}
		cr := e.lookupCompiled(r.ID)
		if cr == nil {
			continue
		}
		e.evalRule(tx, cr, 0)
		if tx.BlockKind == action.BlockImmediate {
			e.log.LogBlock(tx.ID, "immediate", tx.BlockStatusCode)
			return status.Declined("BlockImmediate set during " + p.String())
		}
	}
	if tx.BlockKind == action.BlockPhase {
		e.log.LogBlock(tx.ID, "phase", tx.BlockStatusCode)
		return status.Declined("BlockPhase set during " + p.String())
	}
	return status.Ok()
}

// evalRule runs one rule (possibly a chain link) against tx. depth counts
// chain recursion, bounded by e.chainLimit.
func (e *Engine) evalRule(tx *Transaction, cr *CompiledRule, depth int) status.Status {
	r := cr.Rule
	if depth > e.chainLimit {
		e.log.LogRuleError(r.ID, r.Phase.String(), "chain", errChainLimit)
		return status.Other("chain recursion limit exceeded", nil)
	}

	prefix := r.CapturePrefix
	if prefix == "" && depth > 0 {
		// A chain link with no prefix of its own keeps the prefix in
		// effect for its parent, including one set by a capture action.
		prefix = tx.curCapturePrefix
	}
	tx.resetRuleScratch(r.ID, prefix, r.Meta.Severity, r.Meta.Confidence, r.Meta.Tags, r.Meta.Message)

	var result int
	var capture []*field.Field

	if r.Flags.Has(rule.FlagExternal) {
		res, cap, st := cr.Operator.Eval(tx.arn, nil)
		if !st.OK() {
			e.log.LogRuleError(r.ID, r.Phase.String(), "operator", st)
			return st
		}
		result, capture = res, cap
	} else {
		res, cap, st := e.evalTargets(tx, cr)
		if !st.OK() {
			e.log.LogRuleError(r.ID, r.Phase.String(), "target", st)
			return st
		}
		result, capture = res, cap
	}

	truthy := result != 0
	outcome := "falsy"
	if truthy {
		outcome = "truthy"
	}
	metrics.RulesEvaluatedTotal.WithLabelValues(r.Phase.String(), outcome).Inc()

	if r.Flags.Has(rule.FlagCapture) && capture != nil {
		tx.ds.SetCapture(tx.curCapturePrefix, capture)
	}

	var toRun []*action.Instance
	if truthy {
		toRun = cr.TrueActions
	} else {
		toRun = cr.FalseActions
	}
	ruleStatus := action.RunAll(tx, toRun)

	if truthy && cr.Child != nil && tx.BlockKind != action.BlockImmediate {
		return e.evalRule(tx, cr.Child, depth+1)
	}
	return ruleStatus
}

// evalTargets walks r's targets, applies transformations, and evaluates
// the operator against each resulting leaf field, per spec §4.5: an
// absent or zero-length-list field is skipped unless the operator
// advertises ALLOW_NULL, in which case the operator is still invoked
// once with a null field. Multiple truthy results combine as "any
// truthy" — the last non-zero result and its capture win numerically,
// but once any target is truthy the rule is truthy.
func (e *Engine) evalTargets(tx *Transaction, cr *CompiledRule) (int, []*field.Field, status.Status) {
	r := cr.Rule
	var result int
	var capture []*field.Field

	for _, target := range r.Targets {
		f, st := resolveTarget(tx, target)
		if !st.OK() {
			return 0, nil, st
		}
		leaves, st := flattenField(f, 0, e.listLimit)
		if !st.OK() {
			return 0, nil, st
		}
		if len(leaves) == 0 {
			if !cr.Operator.Def.Capabilities.Has(operator.CapAllowNull) {
				continue
			}
			leaves = []*field.Field{nil}
		}
		for _, leaf := range leaves {
			transformed, st := e.Txfns.Pipeline(tx.arn, target.Transformations, leaf)
			if !st.OK() {
				return 0, nil, st
			}
			res, cap, st := cr.Operator.Eval(tx.arn, transformed)
			if !st.OK() {
				return 0, nil, st
			}
			// Source sets the result only when non-zero, so a later
			// falsy target cannot clear a prior truthy one — preserved
			// per spec §9 open question (flagged, not fixed).
			if res != 0 {
				result = res
				if cap != nil {
					capture = cap
				}
			}
		}
	}
	return result, capture, status.Ok()
}

// resolveTarget fetches target's field from tx's data store, honoring the
// "jsonpath:<field>:<path>" target-name extension from SPEC_FULL.md §B: a
// target named that way addresses the JSON value at <path> within the
// byte-string field <field>, via field.JSONPathGet, rather than a plain
// data-store key. A path that doesn't resolve (missing field, malformed
// JSON, no match) is treated the same as any other absent field — it is
// not a rule-level error, it just yields no leaves for this target.
func resolveTarget(tx *Transaction, target rule.Target) (*field.Field, status.Status) {
	base, path, ok := parseJSONPathTarget(target.Name)
	if !ok {
		return tx.ds.Get(target.Name), status.Ok()
	}
	f, st := field.JSONPathGet(tx.ds.Get(base), path, target.Name)
	if !st.OK() {
		return nil, status.Ok()
	}
	return f, status.Ok()
}

// parseJSONPathTarget splits a "jsonpath:<field>:<path>" target name into
// its base field name and path. The path itself may contain colons (e.g.
// a filter expression), so only the first two colons are significant.
func parseJSONPathTarget(name string) (base, path string, ok bool) {
	parts := strings.SplitN(name, ":", 3)
	if len(parts) != 3 || !strings.EqualFold(parts[0], "jsonpath") {
		return "", "", false
	}
	return parts[1], parts[2], true
}

// flattenField expands f into its leaf (non-list) fields, recursing into
// list elements up to limit levels deep. A null field or a zero-length
// list both yield an empty slice (spec §4.5 edge case: equivalent to an
// absent field).
func flattenField(f *field.Field, depth, limit int) ([]*field.Field, status.Status) {
	if field.IsNull(f) {
		return nil, status.Ok()
	}
	if f.Type != field.TypeList {
		return []*field.Field{f}, status.Ok()
	}
	if depth >= limit {
		return nil, status.Other("list recursion limit exceeded", nil)
	}
	var out []*field.Field
	for _, elem := range f.List {
		sub, st := flattenField(elem, depth+1, limit)
		if !st.OK() {
			return nil, st
		}
		out = append(out, sub...)
	}
	return out, status.Ok()
}
