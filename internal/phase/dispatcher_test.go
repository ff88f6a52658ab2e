package phase

import (
	"testing"

	"github.com/ironbee-go/engine/internal/status"
)

func TestHooksFireInRegistrationOrder(t *testing.T) {
	d := NewDispatcher(nil)
	var order []string
	d.Register(StateRequestHeader, "first", func(arg any) status.Status {
		order = append(order, "first")
		return status.Ok()
	})
	d.Register(StateRequestHeader, "second", func(arg any) status.Status {
		order = append(order, "second")
		return status.Ok()
	})
	st := d.Dispatch(StateRequestHeader, false, nil)
	if !st.OK() {
		t.Fatalf("unexpected status: %v", st)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("unexpected order: %v", order)
	}
}

func TestDeclinedAtBlockingStateStopsRemainingHooks(t *testing.T) {
	d := NewDispatcher(nil)
	ran := false
	d.Register(StateRequestHeader, "blocker", func(arg any) status.Status {
		return status.Declined("block")
	})
	d.Register(StateRequestHeader, "never", func(arg any) status.Status {
		ran = true
		return status.Ok()
	})
	st := d.Dispatch(StateRequestHeader, false, nil)
	if !st.Declined() {
		t.Fatalf("expected Declined, got %v", st)
	}
	if ran {
		t.Fatal("expected hook after a declining hook to not run")
	}
}

func TestErrorFromHookDoesNotStopRemainingHooks(t *testing.T) {
	d := NewDispatcher(nil)
	ran := false
	d.Register(StateRequestHeader, "erroring", func(arg any) status.Status {
		return status.Other("boom", nil)
	})
	d.Register(StateRequestHeader, "after", func(arg any) status.Status {
		ran = true
		return status.Ok()
	})
	st := d.Dispatch(StateRequestHeader, false, nil)
	if !st.OK() {
		t.Fatalf("expected hook error to not abort the state, got %v", st)
	}
	if !ran {
		t.Fatal("expected hook after an erroring hook to still run")
	}
}

func TestBlockImmediateSkipsSkippableState(t *testing.T) {
	d := NewDispatcher(nil)
	ran := false
	d.Register(StateResponseHeader, "h", func(arg any) status.Status {
		ran = true
		return status.Ok()
	})
	st := d.Dispatch(StateResponseHeader, true, nil)
	if !st.Declined() {
		t.Fatalf("expected skipped state to report Declined, got %v", st)
	}
	if ran {
		t.Fatal("expected no hook to run when state is skipped")
	}
}

func TestPostProcessAndLoggingAlwaysRunEvenWhenBlocked(t *testing.T) {
	d := NewDispatcher(nil)
	postRan, logRan := false, false
	d.Register(StatePostProcess, "p", func(arg any) status.Status {
		postRan = true
		return status.Ok()
	})
	d.Register(StateLogging, "l", func(arg any) status.Status {
		logRan = true
		return status.Ok()
	})
	d.Dispatch(StatePostProcess, true, nil)
	d.Dispatch(StateLogging, true, nil)
	if !postRan || !logRan {
		t.Fatal("expected PostProcess and Logging to run regardless of BlockImmediate")
	}
}

func TestUnregisterRestoresOriginalHookTable(t *testing.T) {
	d := NewDispatcher(nil)
	if d.Count(StateRequestHeader) != 0 {
		t.Fatal("expected empty hook table initially")
	}
	d.Register(StateRequestHeader, "temp", func(arg any) status.Status { return status.Ok() })
	d.Unregister(StateRequestHeader, "temp")
	if d.Count(StateRequestHeader) != 0 {
		t.Fatal("expected hook table identical to never having registered")
	}
}
