package rule

import "testing"

func newTestRule(id string, rev int, phase Phase) *Rule {
	return &Rule{ID: id, Revision: rev, Phase: phase, Flags: FlagValid | FlagEnabled}
}

func TestRegisterLesserOrEqualRevisionFails(t *testing.T) {
	reg := NewRegistry(nil)
	if st := reg.Register(newTestRule("r1", 1, PhaseRequestHeader)); !st.OK() {
		t.Fatalf("expected initial registration to succeed, got %v", st)
	}
	st := reg.Register(newTestRule("r1", 1, PhaseRequestHeader))
	if st.OK() {
		t.Fatal("expected equal revision registration to fail with Exists")
	}
}

func TestRegisterStrictlyGreaterRevisionReplaces(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(newTestRule("r1", 1, PhaseRequestHeader))
	st := reg.Register(newTestRule("r1", 2, PhaseRequestHeader))
	if !st.OK() {
		t.Fatalf("expected replace to succeed, got %v", st)
	}
	if reg.Lookup("r1").Revision != 2 {
		t.Fatalf("expected installed revision 2, got %d", reg.Lookup("r1").Revision)
	}
	if len(reg.Phase(PhaseRequestHeader)) != 1 {
		t.Fatalf("expected exactly one entry in phase list after replace, got %d", len(reg.Phase(PhaseRequestHeader)))
	}
}

func TestReRegisterSameRevisionAfterReplaceFails(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(newTestRule("r1", 1, PhaseRequestHeader))
	reg.Register(newTestRule("r1", 2, PhaseRequestHeader))
	st := reg.Register(newTestRule("r1", 2, PhaseRequestHeader))
	if st.OK() {
		t.Fatal("expected re-registering the installed revision to fail with Exists")
	}
	if reg.Lookup("r1").Revision != 2 {
		t.Fatal("expected revision 2 to remain installed")
	}
}

func TestInChainRuleNeverAppearsInPhaseList(t *testing.T) {
	reg := NewRegistry(nil)
	child := newTestRule("r2", 1, PhaseRequestHeader)
	child.Flags |= FlagInChain
	reg.Register(child)
	if len(reg.Phase(PhaseRequestHeader)) != 0 {
		t.Fatal("in_chain rule must never be scheduled as a top-level rule")
	}
	if reg.Lookup("r2") == nil {
		t.Fatal("in_chain rule must still be reachable by id")
	}
}

func TestChildPhaseMustMatchParent(t *testing.T) {
	reg := NewRegistry(nil)
	parent := newTestRule("r1", 1, PhaseRequestHeader)
	parent.Child = newTestRule("r2", 1, PhaseResponseHeader)
	st := reg.Register(parent)
	if st.OK() {
		t.Fatal("expected mismatched child phase to be rejected")
	}
}
