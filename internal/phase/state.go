// Package phase implements the transaction state machine and hook
// dispatcher (C7): a fixed sequence of states, hooks registered per state
// and invoked in registration order, with BlockImmediate short-circuiting
// remaining states up to (but not including) PostProcess/Logging. Hook
// ordering and LIFO-adjacent bookkeeping are grounded on the teacher's
// system/framework/lifecycle/hooks.go (named hook slices invoked in
// registration order), generalized from a two-phase pre/post model to a
// fixed 14-state HTTP transaction lifecycle.
package phase

// State enumerates the fixed points in a connection/transaction
// lifecycle at which the host notifies the engine, per spec §4.6. This is
// a finer-grained sequence than rule.Phase: only a subset of states
// (RequestHeader, RequestBody, ResponseHeader, ResponseBody,
// PostProcess) correspond to a rule.Phase that the rule engine actually
// dispatches against; the stream rule phases have no State. The remainder are
// lifecycle bookkeeping points hooks may still register against.
type State int

const (
	StateConnOpened State = iota
	StateTxStarted
	StateRequestLine
	StateRequestHeader
	StateRequestBody
	StateRequestFinished
	StateResponseStarted
	StateResponseHeader
	StateResponseBody
	StateResponseFinished
	StatePostProcess
	StateLogging
	StateTxDestroyed
	StateConnClosed

	stateCount
)

// String renders the state name for logging.
func (s State) String() string {
	switch s {
	case StateConnOpened:
		return "CONN_OPENED"
	case StateTxStarted:
		return "TX_STARTED"
	case StateRequestLine:
		return "REQUEST_LINE"
	case StateRequestHeader:
		return "REQUEST_HEADER"
	case StateRequestBody:
		return "REQUEST_BODY"
	case StateRequestFinished:
		return "REQUEST_FINISHED"
	case StateResponseStarted:
		return "RESPONSE_STARTED"
	case StateResponseHeader:
		return "RESPONSE_HEADER"
	case StateResponseBody:
		return "RESPONSE_BODY"
	case StateResponseFinished:
		return "RESPONSE_FINISHED"
	case StatePostProcess:
		return "POST_PROCESS"
	case StateLogging:
		return "LOGGING"
	case StateTxDestroyed:
		return "TX_DESTROYED"
	case StateConnClosed:
		return "CONN_CLOSED"
	default:
		return "UNKNOWN"
	}
}

// AllStates returns every state in lifecycle order.
func AllStates() []State {
	states := make([]State, 0, stateCount)
	for s := State(0); s < stateCount; s++ {
		states = append(states, s)
	}
	return states
}

// AllowsBlocking reports whether a hook running at this state may set a
// block flag that the engine honors (spec §4.6: "any header or body
// state").
func (s State) AllowsBlocking() bool {
	switch s {
	case StateRequestHeader, StateRequestBody, StateResponseHeader, StateResponseBody:
		return true
	default:
		return false
	}
}

// Skippable reports whether BlockImmediate, once set, causes this state
// to be skipped entirely (spec §4.6 cancellation: short-circuit remaining
// hooks in the current and all later states up to but not including
// PostProcess and Logging). PostProcess, Logging, and the connection/
// transaction lifecycle bookkeeping states always run.
func (s State) Skippable() bool {
	switch s {
	case StateRequestLine, StateRequestHeader, StateRequestBody, StateRequestFinished,
		StateResponseStarted, StateResponseHeader, StateResponseBody, StateResponseFinished:
		return true
	default:
		return false
	}
}
