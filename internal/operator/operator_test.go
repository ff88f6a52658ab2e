package operator

import (
	"testing"

	"github.com/ironbee-go/engine/internal/arena"
	"github.com/ironbee-go/engine/internal/field"
	"github.com/ironbee-go/engine/internal/status"
)

func TestStreqMatches(t *testing.T) {
	r := NewRegistry()
	a := arena.New("test")
	inst, st := r.Create(a, "streq", "hi", false, false)
	if !st.OK() {
		t.Fatalf("unexpected status: %v", st)
	}
	result, _, st := inst.Eval(a, field.NewByteStr("ARGS", []byte("hi")))
	if !st.OK() {
		t.Fatalf("unexpected status: %v", st)
	}
	if result == 0 {
		t.Fatal("expected truthy result")
	}
}

func TestStreqInvert(t *testing.T) {
	r := NewRegistry()
	a := arena.New("test")
	inst, _ := r.Create(a, "streq", "hi", true, false)
	result, _, _ := inst.Eval(a, field.NewByteStr("ARGS", []byte("hi")))
	if result != 0 {
		t.Fatal("expected inverted result to be falsy")
	}
}

func TestPCRECaptureMatchesSpecScenario(t *testing.T) {
	// spec §8 S3: pattern "(string 2)" against "string 2" should yield
	// CAPTURE:0 == CAPTURE:1 == "string 2", and no CAPTURE:2.
	r := NewRegistry()
	a := arena.New("test")
	inst, st := r.Create(a, "pcre", "(string 2)", false, true)
	if !st.OK() {
		t.Fatalf("unexpected status: %v", st)
	}
	result, capture, st := inst.Eval(a, field.NewByteStr("X", []byte("string 2")))
	if !st.OK() {
		t.Fatalf("unexpected status: %v", st)
	}
	if result == 0 {
		t.Fatal("expected truthy result")
	}
	if len(capture) != 2 {
		t.Fatalf("expected exactly 2 capture entries, got %d", len(capture))
	}
	if string(capture[0].Bytes) != "string 2" || string(capture[1].Bytes) != "string 2" {
		t.Fatalf("unexpected capture contents: %v", capture)
	}
}

// TestPCREBackreference exercises the reason this operator reaches for
// dlclark/regexp2 instead of stdlib regexp in the first place: a
// backreference, which RE2 (and therefore plain regexp.Compile) cannot
// express at all.
func TestPCREBackreference(t *testing.T) {
	r := NewRegistry()
	a := arena.New("test")
	inst, st := r.Create(a, "pcre", `(\w+) \1`, false, false)
	if !st.OK() {
		t.Fatalf("unexpected status compiling a backreference pattern: %v", st)
	}
	result, _, st := inst.Eval(a, field.NewByteStr("X", []byte("foo foo")))
	if !st.OK() {
		t.Fatalf("unexpected status: %v", st)
	}
	if result == 0 {
		t.Fatal("expected the backreference pattern to match a repeated word")
	}
	result, _, st = inst.Eval(a, field.NewByteStr("X", []byte("foo bar")))
	if !st.OK() {
		t.Fatalf("unexpected status: %v", st)
	}
	if result != 0 {
		t.Fatal("expected the backreference pattern not to match two distinct words")
	}
}

func TestCreateRejectsCaptureOnUnsupportedOperator(t *testing.T) {
	r := NewRegistry()
	a := arena.New("test")
	_, st := r.Create(a, "streq", "hi", false, true)
	if st.Code != status.CodeIncompat {
		t.Fatalf("expected Incompat, got %v", st)
	}
}

func TestCreateUnknownOperatorReturnsNotFound(t *testing.T) {
	r := NewRegistry()
	a := arena.New("test")
	_, st := r.Create(a, "nope", "", false, false)
	if st.Code != status.CodeNotFound {
		t.Fatalf("expected NotFound, got %v", st)
	}
}

func TestCheckPhaseCompatibleRejectsStreamOperatorInPhase(t *testing.T) {
	def := &Definition{Name: "streamonly", Capabilities: CapStream}
	inst := &Instance{Def: def}
	if st := inst.CheckPhaseCompatible(false); st.OK() {
		t.Fatal("expected incompatibility between stream-only operator and non-stream phase")
	}
	if st := inst.CheckPhaseCompatible(true); !st.OK() {
		t.Fatalf("expected stream phase to be compatible, got %v", st)
	}
}

func TestNumericCompareOperators(t *testing.T) {
	r := NewRegistry()
	a := arena.New("test")
	inst, st := r.Create(a, "gt", "5", false, false)
	if !st.OK() {
		t.Fatalf("unexpected status: %v", st)
	}
	result, _, _ := inst.Eval(a, field.NewNum("n", 10))
	if result == 0 {
		t.Fatal("expected 10 > 5 to be truthy")
	}
	result, _, _ = inst.Eval(a, field.NewNum("n", 1))
	if result != 0 {
		t.Fatal("expected 1 > 5 to be falsy")
	}
}

func TestStreqOnNullFieldIsFalsy(t *testing.T) {
	r := NewRegistry()
	a := arena.New("test")
	inst, _ := r.Create(a, "streq", "hi", false, false)
	result, _, st := inst.Eval(a, nil)
	if !st.OK() {
		t.Fatalf("unexpected status: %v", st)
	}
	if result != 0 {
		t.Fatal("expected null field to evaluate falsy")
	}
}
