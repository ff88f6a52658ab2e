package enginemgr

import (
	"testing"

	"github.com/ironbee-go/engine/internal/ruleengine"
	"github.com/ironbee-go/engine/internal/status"
)

func noopLoader(e *ruleengine.Engine, configPath string) status.Status { return status.Ok() }

// TestHotReloadDrainScenarioS6 mirrors spec §8 S6: create E1, acquire it,
// create E2 (retiring E1 without destroying it), a fresh acquire returns
// E2, release E1's acquire, engine_cleanup destroys E1 while E2 remains
// current and untouched.
func TestHotReloadDrainScenarioS6(t *testing.T) {
	m := NewManager(4, noopLoader, nil)

	if st := m.EngineCreate("e1.conf"); !st.OK() {
		t.Fatalf("engine_create e1 failed: %v", st)
	}
	e1, st := m.EngineAcquire()
	if !st.OK() {
		t.Fatalf("acquire e1 failed: %v", st)
	}
	if e1 != m.EngineCurrent() {
		t.Fatal("expected acquired engine to be current")
	}

	if st := m.EngineCreate("e2.conf"); !st.OK() {
		t.Fatalf("engine_create e2 failed: %v", st)
	}
	if m.EngineCurrent() == e1 {
		t.Fatal("expected e2 to replace e1 as current")
	}

	e2, st := m.EngineAcquire()
	if !st.OK() {
		t.Fatalf("acquire e2 failed: %v", st)
	}
	if e2 == e1 {
		t.Fatal("expected a fresh acquire to return e2, not the retired e1")
	}

	if destroyed := m.EngineCleanup(); destroyed != 0 {
		t.Fatalf("expected 0 destroyed while e1 still held, got %d", destroyed)
	}
	if m.Count() != 2 {
		t.Fatalf("expected both engines still tracked, got %d", m.Count())
	}

	if st := m.EngineRelease(e1); !st.OK() {
		t.Fatalf("release e1 failed: %v", st)
	}
	if destroyed := m.EngineCleanup(); destroyed != 1 {
		t.Fatalf("expected e1 destroyed after release, got %d", destroyed)
	}
	if m.Count() != 1 {
		t.Fatalf("expected only e2 to remain tracked, got %d", m.Count())
	}
	if m.EngineCurrent() != e2 {
		t.Fatal("expected e2 to remain current after e1's cleanup")
	}

	if st := m.EngineRelease(e2); !st.OK() {
		t.Fatalf("release e2 failed: %v", st)
	}
}

func TestEngineCreateDeclinesAtMaxCount(t *testing.T) {
	m := NewManager(1, noopLoader, nil)
	if st := m.EngineCreate("e1.conf"); !st.OK() {
		t.Fatalf("first create failed: %v", st)
	}
	if _, st := m.EngineAcquire(); !st.OK() {
		t.Fatalf("acquire failed: %v", st)
	}
	if st := m.EngineCreate("e2.conf"); !st.Declined() {
		t.Fatalf("expected Declined at max count, got %v", st)
	}
}

func TestEngineAcquireDeclinesBeforeAnyCreate(t *testing.T) {
	m := NewManager(2, noopLoader, nil)
	if _, st := m.EngineAcquire(); !st.Declined() {
		t.Fatalf("expected Declined with no current engine, got %v", st)
	}
}

func TestEngineReleaseUntrackedEngineReturnsNotFound(t *testing.T) {
	m1 := NewManager(2, noopLoader, nil)
	m2 := NewManager(2, noopLoader, nil)
	if st := m1.EngineCreate("e1.conf"); !st.OK() {
		t.Fatalf("create failed: %v", st)
	}
	foreign, st := m1.EngineAcquire()
	if !st.OK() {
		t.Fatalf("acquire failed: %v", st)
	}
	if st := m2.EngineRelease(foreign); st.OK() || st.Declined() {
		t.Fatalf("expected a failure status releasing a foreign engine, got %v", st)
	}
}

func TestDisableRetiresCurrentWithoutReplacement(t *testing.T) {
	m := NewManager(2, noopLoader, nil)
	if st := m.EngineCreate("e1.conf"); !st.OK() {
		t.Fatalf("create failed: %v", st)
	}
	if st := m.Disable(); !st.OK() {
		t.Fatalf("disable failed: %v", st)
	}
	if m.EngineCurrent() != nil {
		t.Fatal("expected no current engine after disable")
	}
	if m.Count() != 1 {
		t.Fatalf("expected retired engine still tracked, got %d", m.Count())
	}
	if destroyed := m.EngineCleanup(); destroyed != 1 {
		t.Fatalf("expected disabled engine to be reaped, got %d", destroyed)
	}
}

func TestDestroyClosesEverythingRegardlessOfRefcount(t *testing.T) {
	m := NewManager(2, noopLoader, nil)
	m.EngineCreate("e1.conf")
	m.EngineAcquire()
	m.EngineCreate("e2.conf")
	m.Destroy()
	if m.Count() != 0 {
		t.Fatalf("expected Destroy to clear all tracked engines, got %d", m.Count())
	}
}
