// Package engine is the public façade tying the engine manager, phase
// dispatcher, rule engine, host contract, control channel, and audit log
// together into one embeddable type. Grounded on the teacher's top-level
// service wiring (one constructor assembling every subsystem, exposed
// lifecycle start/stop methods), adapted from HTTP-service composition to
// the inline-inspection engine's own subsystem set.
package engine

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/ironbee-go/engine/internal/arena"
	"github.com/ironbee-go/engine/internal/auditlog"
	"github.com/ironbee-go/engine/internal/config"
	"github.com/ironbee-go/engine/internal/control"
	"github.com/ironbee-go/engine/internal/enginelog"
	"github.com/ironbee-go/engine/internal/enginemgr"
	"github.com/ironbee-go/engine/internal/hostapi"
	"github.com/ironbee-go/engine/internal/phase"
	"github.com/ironbee-go/engine/internal/rule"
	"github.com/ironbee-go/engine/internal/ruleengine"
	"github.com/ironbee-go/engine/internal/status"
)

// txHandle binds one in-flight transaction to the engine instance it
// acquired (spec testable property 10: a transaction keeps the engine it
// started with even across a hot reload) and the per-transaction arena
// its fields and captures live in.
type txHandle struct {
	tx      *ruleengine.Transaction
	engine  *ruleengine.Engine
	root    *arena.Arena
	errSent bool
}

// Engine is the embeddable façade a host process constructs once at
// startup and drives via Dispatch for every connection/transaction
// lifecycle event.
type Engine struct {
	mgr        *enginemgr.Manager
	dispatcher *phase.Dispatcher
	host       hostapi.Host
	control    *control.Server
	audit      *auditlog.Log
	cfg        *config.Config
	log        *enginelog.Logger

	mu        sync.Mutex
	txs       map[string]*txHandle
	observers []ruleengine.EventFunc
}

// New constructs an Engine from cfg, wiring a Redis hot-reload notifier
// and a periodic retired-engine reaper when configured. loader is the
// caller-supplied function that turns a config path into registered
// rules (the config grammar is out of scope of this module, per spec
// §1).
func New(cfg *config.Config, host hostapi.Host, loader enginemgr.ConfigLoader, log *enginelog.Logger) *Engine {
	if log == nil {
		log = enginelog.Default()
	}
	if host == nil {
		host = hostapi.NullHost{}
	}

	mgr := enginemgr.NewManager(cfg.MaxEngines, loader, log)
	if cfg.RedisAddr != "" {
		notifier := enginemgr.NewRedisNotifier(cfg.RedisAddr, cfg.RedisNotifyChannel)
		mgr.SetNotifier(notifier.Notify)
	}
	if cfg.ReaperCronSpec != "" {
		mgr.StartReaper(cfg.ReaperCronSpec)
	}

	e := &Engine{
		mgr:        mgr,
		dispatcher: phase.NewDispatcher(log),
		host:       host,
		cfg:        cfg,
		log:        log,
		txs:        make(map[string]*txHandle),
	}
	e.registerLifecycleHooks()
	return e
}

// Manager exposes the underlying engine manager, e.g. for a control
// channel command or an operator tool that needs direct access.
func (e *Engine) Manager() *enginemgr.Manager { return e.mgr }

// Dispatcher exposes the phase dispatcher so a host can register
// additional hooks beyond the built-in rule-evaluation ones (e.g. a
// metrics hook observed at every state).
func (e *Engine) Dispatcher() *phase.Dispatcher { return e.dispatcher }

// SetAuditLog wires a durable sink for every EmitEvent call; without one,
// events are delivered only to the observers added with AddEventObserver
// and are not persisted anywhere. The audit-log insert runs synchronously
// inside the event action.
func (e *Engine) SetAuditLog(l *auditlog.Log) { e.audit = l }

// AddEventObserver registers fn to be called, in addition to the audit
// log, for every event an action.EmitEvent call produces. Used by the
// demo host to drive a live WebSocket tail of events without the engine
// core needing to know about WebSockets.
func (e *Engine) AddEventObserver(fn ruleengine.EventFunc) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

// stateToRulePhase maps the subset of phase.State values that have a
// corresponding rule.Phase. States with no rule phase (connection
// lifecycle, line/finished markers, logging) return ok=false; they still
// dispatch through the phase.Dispatcher for non-rule hooks (e.g. a
// metrics listener), just not through EvalPhase.
func stateToRulePhase(s phase.State) (rule.Phase, bool) {
	switch s {
	case phase.StateRequestHeader:
		return rule.PhaseRequestHeader, true
	case phase.StateRequestBody:
		return rule.PhaseRequestBody, true
	case phase.StateResponseHeader:
		return rule.PhaseResponseHeader, true
	case phase.StateResponseBody:
		return rule.PhaseResponseBody, true
	case phase.StatePostProcess:
		return rule.PhasePostProcess, true
	default:
		return 0, false
	}
}

func (e *Engine) registerLifecycleHooks() {
	e.dispatcher.Register(phase.StateTxStarted, "engine:tx-lifecycle", e.hookTxStarted)
	e.dispatcher.Register(phase.StateTxDestroyed, "engine:tx-lifecycle", e.hookTxDestroyed)

	for _, s := range phase.AllStates() {
		if rp, ok := stateToRulePhase(s); ok {
			e.dispatcher.Register(s, "engine:rule-eval:"+rp.String(), e.makeRuleHook(rp))
		}
	}
}

func (e *Engine) hookTxStarted(arg any) status.Status {
	txID, ok := arg.(string)
	if !ok {
		return status.Invalid("tx_started hook expects a transaction id")
	}

	eng, st := e.mgr.EngineAcquire()
	if !st.OK() {
		return st
	}

	root := arena.New("tx-" + txID)
	tx := ruleengine.NewTransaction(txID, root, e.makeEventSink(txID))

	e.mu.Lock()
	e.txs[txID] = &txHandle{tx: tx, engine: eng, root: root}
	e.mu.Unlock()
	return status.Ok()
}

func (e *Engine) hookTxDestroyed(arg any) status.Status {
	txID, ok := arg.(string)
	if !ok {
		return status.Invalid("tx_destroyed hook expects a transaction id")
	}

	e.mu.Lock()
	h, ok := e.txs[txID]
	delete(e.txs, txID)
	e.mu.Unlock()
	if !ok {
		return status.Ok()
	}

	h.tx.Arena().Destroy()
	h.root.Destroy()
	return e.mgr.EngineRelease(h.engine)
}

func (e *Engine) makeRuleHook(rp rule.Phase) phase.HookFunc {
	return func(arg any) status.Status {
		txID, ok := arg.(string)
		if !ok {
			return status.Invalid("rule-eval hook expects a transaction id")
		}
		e.mu.Lock()
		h, ok := e.txs[txID]
		e.mu.Unlock()
		if !ok {
			return status.Declined("no transaction tracked for id " + txID)
		}
		return h.engine.EvalPhase(h.tx, rp)
	}
}

func (e *Engine) makeEventSink(txID string) ruleengine.EventFunc {
	return func(ruleID string, fields map[string]string) {
		if e.audit != nil {
			e.audit.Record(context.Background(), auditlog.Event{
				TxID:   txID,
				RuleID: ruleID,
				Fields: fields,
			})
		}
		e.mu.Lock()
		observers := append([]ruleengine.EventFunc(nil), e.observers...)
		e.mu.Unlock()
		for _, obs := range observers {
			obs(ruleID, fields)
		}
	}
}

// Dispatch runs every hook registered at s for the transaction identified
// by txID, honoring blockImmediate per spec §4.6. A Declined result means
// a rule blocked the transaction at this state; Dispatch then drives the
// host's error-response contract (spec §7, §4.9) exactly once per
// transaction before returning, so every host built against this façade
// gets a synthesized error response for free instead of having to
// reimplement the block-to-error-response translation itself.
func (e *Engine) Dispatch(s phase.State, txID string, blockImmediate bool) status.Status {
	st := e.dispatcher.Dispatch(s, blockImmediate, txID)
	if st.Declined() {
		e.synthesizeErrorResponse(txID)
	}
	return st
}

// synthesizeErrorResponse invokes host.ErrorResponse/ErrorBody with the
// status code the firing block action set on the transaction (default
// 403, per spec §7 "blocked transactions receive a host-generated error
// response whose status code was chosen by the firing action (default
// 403)"). Guarded by txHandle.errSent so a transaction blocked at one
// state and then dispatched again (e.g. PostProcess/Logging, which still
// run per spec §4.6) never asks the host to synthesize a second error
// response for the same transaction.
func (e *Engine) synthesizeErrorResponse(txID string) {
	e.mu.Lock()
	h, ok := e.txs[txID]
	if !ok || h.errSent {
		e.mu.Unlock()
		return
	}
	h.errSent = true
	e.mu.Unlock()

	code := h.tx.BlockStatusCode
	if code == 0 {
		code = http.StatusForbidden
	}
	e.host.ErrorResponse(txID, code)
	e.host.ErrorBody(txID, []byte("request blocked"))
}

// NewTransactionID generates a fresh identifier for a connection or
// transaction. A host is free to supply its own ids to Dispatch instead;
// this is offered for hosts (like the demo host) that have no id scheme
// of their own.
func (e *Engine) NewTransactionID() string {
	return uuid.NewString()
}

// Transaction returns the live transaction for txID, or nil if none is
// tracked (e.g. before StateTxStarted or after StateTxDestroyed).
func (e *Engine) Transaction(txID string) *ruleengine.Transaction {
	e.mu.Lock()
	defer e.mu.Unlock()
	h, ok := e.txs[txID]
	if !ok {
		return nil
	}
	return h.tx
}

// StartControl binds the control channel at sockPath with the built-in
// commands wired to this Engine's manager.
func (e *Engine) StartControl(sockPath string) status.Status {
	e.control = control.NewServer(e.log)
	control.RegisterBuiltins(e.control, e.mgr)
	return e.control.Start(sockPath)
}

// Close stops the control channel (if started) and tears down the engine
// manager, destroying every tracked engine unconditionally.
func (e *Engine) Close() {
	if e.control != nil {
		e.control.Stop()
	}
	e.mgr.Destroy()
}
