// Package hostapi defines the host-embedding contract (C10): the small,
// stable set of outbound calls the engine makes into its host process
// (header edit, error response synthesis, connection close). Grounded on
// the teacher's system/framework/bus.go BusClient interface — a narrow,
// capability-scoped interface the core calls out through rather than a
// god object — generalized from publish/push/compute to the host's
// header/error/close operations.
package hostapi

import (
	"fmt"

	"github.com/ironbee-go/engine/internal/status"
)

// Direction is which side of the transaction a header operation applies
// to.
type Direction int

const (
	Request Direction = iota
	Response
)

func (d Direction) String() string {
	if d == Response {
		return "response"
	}
	return "request"
}

// HeaderAction is the kind of header mutation requested, per spec §4.9.
type HeaderAction int

const (
	HeaderSet HeaderAction = iota
	HeaderUnset
	HeaderAdd
	HeaderAppend
	HeaderMerge
)

func (a HeaderAction) String() string {
	switch a {
	case HeaderSet:
		return "set"
	case HeaderUnset:
		return "unset"
	case HeaderAdd:
		return "add"
	case HeaderAppend:
		return "append"
	case HeaderMerge:
		return "merge"
	default:
		return "unknown"
	}
}

// Host is the vtable the embedding proxy/server implements. Every
// operation returns Ok, Declined (the callee chose not to act — e.g.
// "too late", per spec §4.9), or a specific error. Transactions and
// connections are addressed by id rather than by engine-internal types,
// keeping this contract's surface stable regardless of how the engine
// represents them internally.
type Host interface {
	// Header edits a request or response header. Returns Declined if
	// called after that direction's headers were already committed to
	// the wire.
	Header(txID string, dir Direction, act HeaderAction, name, value string) status.Status
	// ErrorResponse instructs the host to synthesize an HTTP error
	// response with the given status code.
	ErrorResponse(txID string, statusCode int) status.Status
	// ErrorHeader accumulates a header for the synthesized error
	// response.
	ErrorHeader(txID string, name, value string) status.Status
	// ErrorBody supplies the synthesized error response's body.
	ErrorBody(txID string, body []byte) status.Status
	// Close requests the host drop the connection (and, if txID is
	// non-empty, attributes the close to that transaction).
	Close(connID, txID string) status.Status
}

// NullHost is a Host that declines every call. It stands in for a
// missing vtable entry (spec §4.9: "a missing pointer is treated as
// 'not supported' and surfaced as Declined to callers") — engines
// constructed without an explicit Host use this rather than a nil
// interface, so callers never need a nil check.
type NullHost struct{}

func (NullHost) Header(txID string, dir Direction, act HeaderAction, name, value string) status.Status {
	return status.Declined(fmt.Sprintf("no host header support (%s %s %s=%s)", dir, act, name, value))
}

func (NullHost) ErrorResponse(txID string, statusCode int) status.Status {
	return status.Declined(fmt.Sprintf("no host error-response support (code %d)", statusCode))
}

func (NullHost) ErrorHeader(txID string, name, value string) status.Status {
	return status.Declined(fmt.Sprintf("no host error-header support (%s=%s)", name, value))
}

func (NullHost) ErrorBody(txID string, body []byte) status.Status {
	return status.Declined("no host error-body support")
}

func (NullHost) Close(connID, txID string) status.Status {
	return status.Declined("no host close support")
}
