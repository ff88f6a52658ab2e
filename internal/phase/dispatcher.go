package phase

import (
	"sync"

	"github.com/ironbee-go/engine/internal/enginelog"
	"github.com/ironbee-go/engine/internal/status"
)

// HookFunc is a callback registered against a state. arg is whatever the
// caller's per-transaction context is; the dispatcher itself is agnostic
// to its shape (the rule engine passes its own evaluation context here).
type HookFunc func(arg any) status.Status

type namedHook struct {
	name string
	fn   HookFunc
}

// Dispatcher owns the per-state ordered hook lists for one engine. Hooks
// registered against a state fire in registration order, never
// reordered, matching spec §4.6's ordering guarantee.
type Dispatcher struct {
	mu    sync.RWMutex
	hooks [stateCount][]namedHook
	log   *enginelog.Logger
}

// NewDispatcher constructs an empty dispatcher.
func NewDispatcher(log *enginelog.Logger) *Dispatcher {
	if log == nil {
		log = enginelog.Default()
	}
	return &Dispatcher{log: log}
}

// Register appends fn, named name, to state's hook list.
func (d *Dispatcher) Register(state State, name string, fn HookFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hooks[state] = append(d.hooks[state], namedHook{name: name, fn: fn})
}

// Unregister removes the first hook named name from state's list. Used by
// tests verifying the round-trip idempotence property in spec §8
// ("registering then unregistering a hook produces a hook table
// observably identical to never having registered it").
func (d *Dispatcher) Unregister(state State, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	list := d.hooks[state]
	for i, h := range list {
		if h.name == name {
			d.hooks[state] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// Count returns the number of hooks registered against state, for test
// assertions.
func (d *Dispatcher) Count(state State) int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.hooks[state])
}

// Dispatch runs every hook registered against state, in order, passing
// arg through unchanged. If blockImmediate is already set and state is
// Skippable, the state is skipped entirely without running any hook
// (spec §4.6 cancellation) and Declined is returned. A hook returning
// Declined on a blocking-capable state stops the remaining hooks for
// this state from running and Declined is the result; any other non-Ok
// status is logged and does not stop subsequent hooks (spec §7
// propagation policy for hook errors).
func (d *Dispatcher) Dispatch(state State, blockImmediate bool, arg any) status.Status {
	if blockImmediate && state.Skippable() {
		return status.Declined("state skipped: BlockImmediate already set")
	}

	d.mu.RLock()
	list := make([]namedHook, len(d.hooks[state]))
	copy(list, d.hooks[state])
	d.mu.RUnlock()

	for _, h := range list {
		st := h.fn(arg)
		switch {
		case st.Declined() && state.AllowsBlocking():
			// The sole channel for rule-engine-initiated enforcement;
			// stop running further hooks for this state.
			return status.Declined("hook " + h.name + " requested block at " + state.String())
		case st.Declined():
			// Declined outside a blocking-capable state is a misuse of
			// the signal, not a block request; log and keep going.
			d.log.LogRuleError(h.name, state.String(), "hook", st)
		case !st.OK():
			d.log.LogRuleError(h.name, state.String(), "hook", st)
		}
	}
	return status.Ok()
}
