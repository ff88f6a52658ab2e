package hostapi

import (
	"testing"

	"github.com/ironbee-go/engine/internal/status"
)

func TestNullHostDeclinesEveryCall(t *testing.T) {
	h := NullHost{}
	if st := h.Header("tx1", Request, HeaderSet, "X-Test", "1"); !st.Declined() {
		t.Fatalf("expected Declined, got %v", st)
	}
	if st := h.ErrorResponse("tx1", 403); !st.Declined() {
		t.Fatalf("expected Declined, got %v", st)
	}
	if st := h.ErrorHeader("tx1", "X-Test", "1"); !st.Declined() {
		t.Fatalf("expected Declined, got %v", st)
	}
	if st := h.ErrorBody("tx1", []byte("body")); !st.Declined() {
		t.Fatalf("expected Declined, got %v", st)
	}
	if st := h.Close("conn1", "tx1"); !st.Declined() {
		t.Fatalf("expected Declined, got %v", st)
	}
}

// recordingHost is a minimal fake Host demonstrating the "too late"
// contract: a header edit after that direction's headers were committed
// is declined, per spec §4.9.
type recordingHost struct {
	committed map[Direction]bool
	set       map[string]string
}

func newRecordingHost() *recordingHost {
	return &recordingHost{committed: make(map[Direction]bool), set: make(map[string]string)}
}

func (h *recordingHost) commit(dir Direction) { h.committed[dir] = true }

func (h *recordingHost) Header(txID string, dir Direction, act HeaderAction, name, value string) status.Status {
	if h.committed[dir] {
		return status.Declined("headers already committed")
	}
	h.set[name] = value
	return status.Ok()
}

func (h *recordingHost) ErrorResponse(txID string, statusCode int) status.Status { return status.Ok() }
func (h *recordingHost) ErrorHeader(txID string, name, value string) status.Status {
	return status.Ok()
}
func (h *recordingHost) ErrorBody(txID string, body []byte) status.Status { return status.Ok() }
func (h *recordingHost) Close(connID, txID string) status.Status         { return status.Ok() }

func TestHeaderEditAfterCommitIsDeclined(t *testing.T) {
	var h Host = newRecordingHost()
	if st := h.Header("tx1", Request, HeaderSet, "X-A", "1"); !st.OK() {
		t.Fatalf("expected first edit to succeed, got %v", st)
	}
	h.(*recordingHost).commit(Request)
	if st := h.Header("tx1", Request, HeaderSet, "X-B", "2"); !st.Declined() {
		t.Fatalf("expected edit after commit to be Declined, got %v", st)
	}
}
