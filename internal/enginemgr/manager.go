// Package enginemgr implements the engine manager (C8): ownership of a
// pool of engine instances with hot reload via graceful acquire/release
// reference counting. Grounded on the teacher's system/framework
// lifecycle manager plus the retired/draining shape consulted from
// other_examples (txpool/exec-task reference-counted draining): a
// current pointer plus a retired set, destroyed only once every
// outstanding reference is released.
package enginemgr

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/ironbee-go/engine/internal/enginelog"
	"github.com/ironbee-go/engine/internal/ruleengine"
	"github.com/ironbee-go/engine/internal/status"
)

// ConfigLoader loads and registers rules into a freshly constructed
// engine from whatever external configuration format the host uses — the
// grammar itself is out of scope (spec §1); the manager only needs the
// resulting in-memory model.
type ConfigLoader func(e *ruleengine.Engine, configPath string) status.Status

// ConfigHook fires around every newly created engine's configuration
// load, per spec §4.7 ("how the host injects loggers and log writers").
type ConfigHook func(e *ruleengine.Engine) status.Status

// NotifyFunc is called after a successful engine_create, e.g. to publish
// a hot-reload notice to other manager instances (see notify.go).
type NotifyFunc func(event string)

type trackedEngine struct {
	engine   *ruleengine.Engine
	refcount int
}

// Manager owns the engine lifecycle: at most maxCount engines exist
// simultaneously (spec §4.7 discipline); engine_create beyond the limit
// fails with Declined.
type Manager struct {
	mu sync.Mutex

	tracked      map[*ruleengine.Engine]*trackedEngine
	current      *ruleengine.Engine
	retiredOrder []*ruleengine.Engine

	maxCount int
	loader   ConfigLoader
	preconfig, postconfig []ConfigHook

	log      *enginelog.Logger
	reaper   *cron.Cron
	notifier NotifyFunc
}

// NewManager constructs a Manager that allows at most maxCount
// simultaneously-tracked engines.
func NewManager(maxCount int, loader ConfigLoader, log *enginelog.Logger) *Manager {
	if log == nil {
		log = enginelog.Default()
	}
	return &Manager{
		tracked:  make(map[*ruleengine.Engine]*trackedEngine),
		maxCount: maxCount,
		loader:   loader,
		log:      log,
	}
}

// RegisterPreconfigHook adds a hook run before configuration load on
// every newly created engine.
func (m *Manager) RegisterPreconfigHook(h ConfigHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preconfig = append(m.preconfig, h)
}

// RegisterPostconfigHook adds a hook run after configuration load on
// every newly created engine.
func (m *Manager) RegisterPostconfigHook(h ConfigHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postconfig = append(m.postconfig, h)
}

// SetNotifier installs a callback invoked after a successful
// engine_create.
func (m *Manager) SetNotifier(fn NotifyFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifier = fn
}

// EngineCreate builds a new engine from configPath, runs the
// preconfig/postconfig hooks around the configuration load, and installs
// it as current, retiring whatever engine was current before (spec
// §4.7). Fails with Declined if maxCount tracked engines already exist.
func (m *Manager) EngineCreate(configPath string) status.Status {
	m.mu.Lock()
	if len(m.tracked) >= m.maxCount {
		m.mu.Unlock()
		return status.Declined(fmt.Sprintf("max engine count %d reached", m.maxCount))
	}
	preconfig := append([]ConfigHook(nil), m.preconfig...)
	postconfig := append([]ConfigHook(nil), m.postconfig...)
	m.mu.Unlock()

	eng := ruleengine.NewEngine(m.log)
	for _, h := range preconfig {
		if st := h(eng); !st.OK() {
			eng.Close()
			return st
		}
	}
	if m.loader != nil {
		if st := m.loader(eng, configPath); !st.OK() {
			eng.Close()
			return st
		}
	}
	for _, h := range postconfig {
		if st := h(eng); !st.OK() {
			eng.Close()
			return st
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.tracked) >= m.maxCount {
		eng.Close()
		return status.Declined(fmt.Sprintf("max engine count %d reached", m.maxCount))
	}
	if m.current != nil {
		m.retiredOrder = append(m.retiredOrder, m.current)
	}
	m.tracked[eng] = &trackedEngine{engine: eng}
	m.current = eng
	if m.notifier != nil {
		m.notifier("engine_created")
	}
	return status.Ok()
}

// EngineCurrent returns the current engine, or nil if none has been
// created yet.
func (m *Manager) EngineCurrent() *ruleengine.Engine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// EngineAcquire returns the current engine with its refcount
// incremented. New acquires always return the current engine, never a
// retired one (spec testable property 10).
func (m *Manager) EngineAcquire() (*ruleengine.Engine, status.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return nil, status.Declined("no current engine")
	}
	m.tracked[m.current].refcount++
	return m.current, status.Ok()
}

// EngineRelease decrements eng's refcount. A transaction that acquired an
// engine before it was retired keeps seeing that engine (spec testable
// property 10) until it releases it here.
func (m *Manager) EngineRelease(eng *ruleengine.Engine) status.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	te, ok := m.tracked[eng]
	if !ok {
		return status.NotFound("engine not tracked by this manager")
	}
	if te.refcount > 0 {
		te.refcount--
	}
	return status.Ok()
}

// EngineCleanup destroys every retired engine whose refcount has reached
// zero, returning the number destroyed.
func (m *Manager) EngineCleanup() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	destroyed := 0
	remaining := m.retiredOrder[:0:0]
	for _, eng := range m.retiredOrder {
		te := m.tracked[eng]
		if te.refcount == 0 {
			eng.Close()
			delete(m.tracked, eng)
			destroyed++
			continue
		}
		remaining = append(remaining, eng)
	}
	m.retiredOrder = remaining
	return destroyed
}

// Disable retires the current engine without installing a replacement
// (backs the control channel's engine_disable command).
func (m *Manager) Disable() status.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current == nil {
		return status.Declined("no current engine")
	}
	m.retiredOrder = append(m.retiredOrder, m.current)
	m.current = nil
	return status.Ok()
}

// Count returns the number of engines currently tracked (current plus
// retired, undestroyed).
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tracked)
}

// Destroy tears the manager down: every tracked engine is closed
// unconditionally (a final-shutdown operation, unlike EngineCleanup which
// respects outstanding references) and the reaper, if running, is
// stopped.
func (m *Manager) Destroy() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != nil {
		m.current.Close()
		delete(m.tracked, m.current)
		m.current = nil
	}
	for _, eng := range m.retiredOrder {
		eng.Close()
		delete(m.tracked, eng)
	}
	m.retiredOrder = nil
	if m.reaper != nil {
		m.reaper.Stop()
		m.reaper = nil
	}
}

// StartReaper schedules periodic EngineCleanup sweeps on cronSpec (a
// standard 5-field cron expression or a descriptor such as
// "@every 30s"), using robfig/cron/v3 — the
// retired-engine reaper the teacher's own periodic-sweep dependency
// backs.
func (m *Manager) StartReaper(cronSpec string) status.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reaper != nil {
		return status.Exists("reaper already running")
	}
	c := cron.New()
	if _, err := c.AddFunc(cronSpec, func() { m.EngineCleanup() }); err != nil {
		return status.BadValue(fmt.Sprintf("invalid cron spec %q: %v", cronSpec, err))
	}
	c.Start()
	m.reaper = c
	return status.Ok()
}
