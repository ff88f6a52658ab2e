package rule

import (
	"fmt"
	"sync"

	"github.com/ironbee-go/engine/internal/enginelog"
	"github.com/ironbee-go/engine/internal/status"
)

// Registry owns one context's rule set: a name-keyed id->rule map (for
// revision checks and chain wiring) plus a phase-indexed list of the
// top-level (non-in_chain) runnable rules, in registration order. The
// mutex-guarded-map-plus-ordered-slice shape is grounded on the teacher's
// system/core.Registry (service module registry).
type Registry struct {
	mu      sync.RWMutex
	byID    map[string]*Rule
	byPhase [phaseCount][]*Rule
	enabled bool
	log     *enginelog.Logger
}

// NewRegistry constructs an empty, enabled registry.
func NewRegistry(log *enginelog.Logger) *Registry {
	if log == nil {
		log = enginelog.Default()
	}
	return &Registry{byID: make(map[string]*Rule), enabled: true, log: log}
}

// SetEnabled toggles the context-level enabled flag consulted by
// Rule.Runnable.
func (reg *Registry) SetEnabled(enabled bool) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.enabled = enabled
}

// Enabled reports the context-level enabled flag.
func (reg *Registry) Enabled() bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.enabled
}

// Register adds r to the registry. A rule marked FlagInChain is never
// added to its phase's top-level list (spec testable property 2); it is
// only reachable via its parent's Child pointer, which the caller is
// expected to have already wired before calling Register on the child.
//
// Registering an id whose existing revision is >= r.Revision fails with
// status.Exists (spec §3 rule invariants, testable property 8). A
// strictly greater revision replaces the existing rule and logs the
// replacement.
func (reg *Registry) Register(r *Rule) status.Status {
	if r == nil {
		return status.Invalid("nil rule")
	}
	if r.Child != nil && r.Child.Phase != r.Phase {
		return status.Invalid("child rule phase must equal parent phase")
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()

	if existing, ok := reg.byID[r.ID]; ok {
		if r.Revision <= existing.Revision {
			return status.Exists(fmt.Sprintf("rule %q revision %d already registered at revision %d", r.ID, r.Revision, existing.Revision))
		}
		reg.replaceLocked(existing, r)
		reg.log.LogRuleReplacement(r.ID, existing.Revision, r.Revision, r.Phase.String())
		return status.Ok()
	}

	reg.byID[r.ID] = r
	if !r.Flags.Has(FlagInChain) {
		reg.byPhase[r.Phase] = append(reg.byPhase[r.Phase], r)
	}
	return status.Ok()
}

func (reg *Registry) replaceLocked(old, next *Rule) {
	reg.byID[next.ID] = next
	if old.Flags.Has(FlagInChain) || next.Flags.Has(FlagInChain) {
		// Chained rules are reached through their parent, never
		// replaced in a phase list directly.
		return
	}
	list := reg.byPhase[old.Phase]
	for i, r := range list {
		if r == old {
			list[i] = next
			return
		}
	}
	// Old wasn't a top-level rule (shouldn't happen given the check
	// above, kept defensive for registries built by hand in tests).
	reg.byPhase[next.Phase] = append(reg.byPhase[next.Phase], next)
}

// Lookup returns the rule registered under id, if any.
func (reg *Registry) Lookup(id string) *Rule {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.byID[id]
}

// Phase returns the top-level rule list for p, in registration order. The
// returned slice is a snapshot; callers must not mutate it.
func (reg *Registry) Phase(p Phase) []*Rule {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	out := make([]*Rule, len(reg.byPhase[p]))
	copy(out, reg.byPhase[p])
	return out
}

// Count returns the total number of distinct rule ids registered.
func (reg *Registry) Count() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.byID)
}
