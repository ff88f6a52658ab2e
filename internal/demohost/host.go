// Package demohost is a small illustrative gin-based HTTP host
// implementing the C10 host contract end to end, plus a gorilla/websocket
// live tail of audit events. It exists only to exercise
// internal/hostapi.Host and pkg/engine from an example/integration test;
// nothing in the engine core imports it. Grounded on the teacher's
// gin-based HTTP server setup (router, middleware chain, graceful
// shutdown), adapted from a full service API to a minimal
// inspect-then-pass-through proxy demo.
package demohost

import (
	"net/http"
	"sync"

	"github.com/ironbee-go/engine/internal/hostapi"
	"github.com/ironbee-go/engine/internal/status"
)

// pendingResponse tracks one transaction's accumulated header edits and
// synthesized-error state until Commit locks a direction down.
type pendingResponse struct {
	committed       map[hostapi.Direction]bool
	headers         map[hostapi.Direction]map[string]string
	errorStatusCode int
	errorHeaders    map[string]string
	errorBody       []byte
}

func newPendingResponse() *pendingResponse {
	return &pendingResponse{
		committed: make(map[hostapi.Direction]bool),
		headers: map[hostapi.Direction]map[string]string{
			hostapi.Request:  {},
			hostapi.Response: {},
		},
		errorHeaders: make(map[string]string),
	}
}

// Host is a hostapi.Host backed by an in-memory per-transaction header
// accumulator, good enough to drive a gin reverse-proxy-ish demo and to
// let tests assert on what the engine asked the host to do.
type Host struct {
	mu        sync.Mutex
	responses map[string]*pendingResponse
	hub       *TailHub
}

// NewHost constructs an empty Host with its own event tail hub.
func NewHost() *Host {
	return &Host{
		responses: make(map[string]*pendingResponse),
		hub:       newTailHub(),
	}
}

// Hub returns the host's WebSocket tail hub, for wiring into a gin route
// and into pkg/engine.Engine.AddEventObserver.
func (h *Host) Hub() *TailHub { return h.hub }

func (h *Host) responseFor(txID string) *pendingResponse {
	pr, ok := h.responses[txID]
	if !ok {
		pr = newPendingResponse()
		h.responses[txID] = pr
	}
	return pr
}

// Header implements hostapi.Host.
func (h *Host) Header(txID string, dir hostapi.Direction, act hostapi.HeaderAction, name, value string) status.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	pr := h.responseFor(txID)
	if pr.committed[dir] {
		return status.Declined("headers already committed for " + dir.String())
	}
	if act == hostapi.HeaderUnset {
		delete(pr.headers[dir], name)
		return status.Ok()
	}
	pr.headers[dir][name] = value
	return status.Ok()
}

// Commit marks dir's headers as sent to the wire for txID; any further
// Header call for that direction will be Declined. Called by the gin
// handler once it actually writes the response.
func (h *Host) Commit(txID string, dir hostapi.Direction) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responseFor(txID).committed[dir] = true
}

// HeadersFor returns a copy of the accumulated headers for txID/dir, for
// the gin handler to apply before writing the response.
func (h *Host) HeadersFor(txID string, dir hostapi.Direction) map[string]string {
	h.mu.Lock()
	defer h.mu.Unlock()
	pr := h.responseFor(txID)
	out := make(map[string]string, len(pr.headers[dir]))
	for k, v := range pr.headers[dir] {
		out[k] = v
	}
	return out
}

// ErrorResponse implements hostapi.Host.
func (h *Host) ErrorResponse(txID string, statusCode int) status.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responseFor(txID).errorStatusCode = statusCode
	return status.Ok()
}

// ErrorHeader implements hostapi.Host.
func (h *Host) ErrorHeader(txID string, name, value string) status.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responseFor(txID).errorHeaders[name] = value
	return status.Ok()
}

// ErrorBody implements hostapi.Host.
func (h *Host) ErrorBody(txID string, body []byte) status.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responseFor(txID).errorBody = append([]byte(nil), body...)
	return status.Ok()
}

// Close implements hostapi.Host, dropping the pending response state for
// txID (and, were this a real proxy, the underlying connection keyed by
// connID).
func (h *Host) Close(connID, txID string) status.Status {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.responses, txID)
	return status.Ok()
}

// SynthesizedError returns the accumulated error-response state for txID,
// for the gin handler to write out when the engine blocked the
// transaction.
func (h *Host) SynthesizedError(txID string) (statusCode int, headers map[string]string, body []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	pr := h.responseFor(txID)
	code := pr.errorStatusCode
	if code == 0 {
		code = http.StatusForbidden
	}
	hdrs := make(map[string]string, len(pr.errorHeaders))
	for k, v := range pr.errorHeaders {
		hdrs[k] = v
	}
	return code, hdrs, pr.errorBody
}
