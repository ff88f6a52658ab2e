package engine

import (
	"testing"

	"github.com/ironbee-go/engine/internal/config"
	"github.com/ironbee-go/engine/internal/field"
	"github.com/ironbee-go/engine/internal/hostapi"
	"github.com/ironbee-go/engine/internal/phase"
	"github.com/ironbee-go/engine/internal/rule"
	"github.com/ironbee-go/engine/internal/ruleengine"
	"github.com/ironbee-go/engine/internal/status"
)

// recordingHost is a hostapi.Host that records error-response calls, used
// to assert that pkg/engine.Engine itself drives the block-to-error-
// response translation rather than leaving every host to reimplement it.
type recordingHost struct {
	hostapi.NullHost
	errorResponses []int
	errorBodies    int
}

func (h *recordingHost) ErrorResponse(txID string, statusCode int) status.Status {
	h.errorResponses = append(h.errorResponses, statusCode)
	return status.Ok()
}

func (h *recordingHost) ErrorBody(txID string, body []byte) status.Status {
	h.errorBodies++
	return status.Ok()
}

func loaderWithOneRule(e *ruleengine.Engine, configPath string) status.Status {
	return e.RegisterRule(&rule.Rule{
		ID:    "r1",
		Phase: rule.PhaseRequestHeader,
		Flags: rule.FlagValid | rule.FlagEnabled,
		Operator: rule.OperatorInstance{
			Operator: "streq",
			Param:    "blockme",
		},
		Targets:     []rule.Target{{Name: "ARGS"}},
		TrueActions: []rule.ActionInstance{{Action: "block", Param: "immediate"}},
	})
}

func testConfig() *config.Config {
	return &config.Config{MaxEngines: 2}
}

func TestDispatchRunsRuleEvalAtRequestHeader(t *testing.T) {
	e := New(testConfig(), nil, loaderWithOneRule, nil)
	defer e.Close()

	if st := e.Manager().EngineCreate("test.conf"); !st.OK() {
		t.Fatalf("engine_create failed: %v", st)
	}

	if st := e.Dispatch(phase.StateTxStarted, "tx1", false); !st.OK() {
		t.Fatalf("tx_started dispatch failed: %v", st)
	}

	tx := e.Transaction("tx1")
	if tx == nil {
		t.Fatal("expected a tracked transaction after tx_started")
	}
	tx.Store().Set("ARGS", field.NewByteStr("ARGS", []byte("blockme")))

	st := e.Dispatch(phase.StateRequestHeader, "tx1", false)
	if !st.Declined() {
		t.Fatalf("expected request_header dispatch to decline (blocked), got %v", st)
	}
	if tx.BlockKind == 0 {
		t.Fatal("expected block kind to be set on the transaction")
	}

	if st := e.Dispatch(phase.StateTxDestroyed, "tx1", false); !st.OK() {
		t.Fatalf("tx_destroyed dispatch failed: %v", st)
	}
	if e.Transaction("tx1") != nil {
		t.Fatal("expected transaction to be untracked after tx_destroyed")
	}
}

// TestDispatchSynthesizesErrorResponseOnBlock covers spec §7/S4: a
// blocked transaction gets exactly one host-generated error response,
// driven by pkg/engine.Engine.Dispatch itself rather than by the host.
func TestDispatchSynthesizesErrorResponseOnBlock(t *testing.T) {
	host := &recordingHost{}
	e := New(testConfig(), host, loaderWithOneRule, nil)
	defer e.Close()

	if st := e.Manager().EngineCreate("test.conf"); !st.OK() {
		t.Fatalf("engine_create failed: %v", st)
	}
	if st := e.Dispatch(phase.StateTxStarted, "tx1", false); !st.OK() {
		t.Fatalf("tx_started dispatch failed: %v", st)
	}

	tx := e.Transaction("tx1")
	tx.Store().Set("ARGS", field.NewByteStr("ARGS", []byte("blockme")))

	if st := e.Dispatch(phase.StateRequestHeader, "tx1", false); !st.Declined() {
		t.Fatalf("expected request_header dispatch to decline, got %v", st)
	}
	if len(host.errorResponses) != 1 || host.errorResponses[0] != 403 {
		t.Fatalf("expected exactly one 403 error response, got %v", host.errorResponses)
	}
	if host.errorBodies != 1 {
		t.Fatalf("expected exactly one error body, got %d", host.errorBodies)
	}

	// PostProcess still runs per spec §4.6 but must not ask the host to
	// synthesize a second error response for the same transaction.
	e.Dispatch(phase.StatePostProcess, "tx1", false)
	if len(host.errorResponses) != 1 {
		t.Fatalf("expected no additional error response, got %v", host.errorResponses)
	}

	if st := e.Dispatch(phase.StateTxDestroyed, "tx1", false); !st.OK() {
		t.Fatalf("tx_destroyed dispatch failed: %v", st)
	}
}

func TestHotReloadKeepsInFlightTransactionOnItsOriginalEngine(t *testing.T) {
	e := New(testConfig(), nil, loaderWithOneRule, nil)
	defer e.Close()

	if st := e.Manager().EngineCreate("e1.conf"); !st.OK() {
		t.Fatalf("engine_create e1 failed: %v", st)
	}
	if st := e.Dispatch(phase.StateTxStarted, "tx1", false); !st.OK() {
		t.Fatalf("tx_started failed: %v", st)
	}
	e1 := e.Manager().EngineCurrent()

	if st := e.Manager().EngineCreate("e2.conf"); !st.OK() {
		t.Fatalf("engine_create e2 failed: %v", st)
	}
	if e.Manager().EngineCurrent() == e1 {
		t.Fatal("expected e2 to become current")
	}

	if st := e.Dispatch(phase.StateTxStarted, "tx2", false); !st.OK() {
		t.Fatalf("tx_started tx2 failed: %v", st)
	}

	if st := e.Dispatch(phase.StateTxDestroyed, "tx1", false); !st.OK() {
		t.Fatalf("tx_destroyed tx1 failed: %v", st)
	}
	if destroyed := e.Manager().EngineCleanup(); destroyed != 1 {
		t.Fatalf("expected e1 reaped once tx1 released it, got %d", destroyed)
	}

	if st := e.Dispatch(phase.StateTxDestroyed, "tx2", false); !st.OK() {
		t.Fatalf("tx_destroyed tx2 failed: %v", st)
	}
}
