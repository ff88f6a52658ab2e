// Package arena implements the scoped allocator and cleanup-stack used to
// bind every subsystem's allocations to the lifetime of its owning engine,
// connection, or transaction. The cleanup-stack discipline (register in
// order, run in reverse on Destroy) is grounded on the teacher's lifecycle
// hook runner, which runs PostStop hooks in reverse of registration order
// for the same reason: teardown must undo setup innermost-first.
package arena

import "sync"

// cleanup pairs a registered teardown function with a debug name.
type cleanup struct {
	name string
	fn   func()
}

// Arena is a bump-style, append-only allocation buffer plus a LIFO stack of
// cleanup closures. Arenas never free individual allocations; the only
// release point is Destroy. An Arena must be owned by exactly one parent
// lifetime (process, configuration, connection, or transaction) — the
// parent field only exists for diagnostics, it never changes ownership
// semantics since Go's GC, not this type, actually reclaims memory; what
// Arena buys us is deterministic, ordered cleanup-on-destroy semantics
// equivalent to the C original's bump allocator.
type Arena struct {
	mu        sync.Mutex
	name      string
	parent    *Arena
	buf       []byte
	cleanups  []cleanup
	destroyed bool
}

// New creates a root arena with no parent (typically the engine or
// process-lifetime arena).
func New(name string) *Arena {
	return &Arena{name: name}
}

// NewChild creates an arena whose lifetime is bounded by the parent: the
// child must be destroyed no later than the parent. Destroy on the parent
// does not destroy its children; pkg/engine destroys each transaction's
// child arena before its root arena. Cross-arena references are valid only from a
// shorter-lived arena into a longer-lived one, by construction.
func (a *Arena) NewChild(name string) *Arena {
	child := New(name)
	child.parent = a
	return child
}

// Name returns the arena's debug name, primarily for logging.
func (a *Arena) Name() string { return a.name }

// Alloc reserves n bytes from the arena's bump buffer and returns a slice
// into it. Alloc returns no error: the caller is given a slice of exactly
// n zeroed bytes, grown from the buffer with append (after Destroy, a
// fresh slice not owned by the arena). True memory exhaustion in Go
// surfaces as an OOM kill, which is outside what this type can intercept.
func (a *Arena) Alloc(n int) []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return make([]byte, n)
	}
	start := len(a.buf)
	a.buf = append(a.buf, make([]byte, n)...)
	return a.buf[start : start+n : start+n]
}

// Strdup copies s into arena-owned memory and returns it as a string.
func (a *Arena) Strdup(s string) string {
	b := a.Alloc(len(s))
	copy(b, s)
	return string(b)
}

// RegisterCleanup pushes fn onto the cleanup stack under name. Cleanups run
// in reverse registration order when Destroy is called. Registering after
// Destroy has already run is a no-op: the arena is gone and nothing would
// observe the side effect anyway.
func (a *Arena) RegisterCleanup(name string, fn func()) {
	if fn == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.destroyed {
		return
	}
	a.cleanups = append(a.cleanups, cleanup{name: name, fn: fn})
}

// Destroy runs all registered cleanups in LIFO order, then releases the
// backing buffer. Safe to call more than once; only the first call has any
// effect.
func (a *Arena) Destroy() {
	a.mu.Lock()
	if a.destroyed {
		a.mu.Unlock()
		return
	}
	a.destroyed = true
	cleanups := a.cleanups
	a.cleanups = nil
	a.buf = nil
	a.mu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i].fn()
	}
}

// Destroyed reports whether Destroy has already run.
func (a *Arena) Destroyed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.destroyed
}
