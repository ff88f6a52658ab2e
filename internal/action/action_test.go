package action

import (
	"testing"

	"github.com/ironbee-go/engine/internal/arena"
	"github.com/ironbee-go/engine/internal/field"
	"github.com/ironbee-go/engine/internal/status"
)

type fakeTx struct {
	store         *field.Store
	arena         *arena.Arena
	ruleID        string
	blockKind     BlockKind
	blockCode     int
	capturePrefix string
	severity      int
	confidence    int
	tags          []string
	msg           string
	events        []string
}

func newFakeTx() *fakeTx {
	return &fakeTx{store: field.NewStore(), arena: arena.New("test"), ruleID: "r1"}
}

func (f *fakeTx) Store() *field.Store { return f.store }
func (f *fakeTx) Arena() *arena.Arena { return f.arena }
func (f *fakeTx) RuleID() string      { return f.ruleID }
func (f *fakeTx) SetBlock(kind BlockKind, statusCode int) {
	f.blockKind = kind
	f.blockCode = statusCode
}
func (f *fakeTx) SetCapturePrefix(prefix string) { f.capturePrefix = prefix }
func (f *fakeTx) SetSeverity(n int)              { f.severity = n }
func (f *fakeTx) SetConfidence(n int)            { f.confidence = n }
func (f *fakeTx) AddTag(tag string)              { f.tags = append(f.tags, tag) }
func (f *fakeTx) SetMessage(msg string)          { f.msg = msg }
func (f *fakeTx) EmitEvent(ruleID string, fields map[string]string) {
	f.events = append(f.events, ruleID)
}

func TestBlockActionDeclinesAndSetsKind(t *testing.T) {
	r := NewRegistry()
	a := arena.New("test")
	inst, st := r.Create(a, "block", "immediate")
	if !st.OK() {
		t.Fatalf("unexpected status: %v", st)
	}
	tx := newFakeTx()
	result := inst.Run(tx)
	if !result.Declined() {
		t.Fatal("expected block action to decline")
	}
	if tx.blockKind != BlockImmediate || tx.blockCode != 403 {
		t.Fatalf("unexpected block state: %+v", tx)
	}
}

func TestBlockActionParsesStatusCode(t *testing.T) {
	r := NewRegistry()
	a := arena.New("test")
	inst, _ := r.Create(a, "block", "phase:451")
	tx := newFakeTx()
	inst.Run(tx)
	if tx.blockKind != BlockPhase || tx.blockCode != 451 {
		t.Fatalf("unexpected block state: %+v", tx)
	}
}

func TestSetvarSetsExpandedValue(t *testing.T) {
	r := NewRegistry()
	a := arena.New("test")
	inst, st := r.Create(a, "setvar", "FLAG=1")
	if !st.OK() {
		t.Fatalf("unexpected status: %v", st)
	}
	tx := newFakeTx()
	if st := inst.Run(tx); !st.OK() {
		t.Fatalf("unexpected status: %v", st)
	}
	got := tx.Store().Get("FLAG")
	if got == nil || string(got.Bytes) != "1" {
		t.Fatalf("expected FLAG=1, got %v", got)
	}
}

func TestEventActionEmits(t *testing.T) {
	r := NewRegistry()
	a := arena.New("test")
	inst, _ := r.Create(a, "event", "")
	tx := newFakeTx()
	inst.Run(tx)
	if len(tx.events) != 1 || tx.events[0] != "r1" {
		t.Fatalf("expected one emitted event for r1, got %v", tx.events)
	}
}

func TestRunAllAggregatesDeclinedOverOtherStatuses(t *testing.T) {
	r := NewRegistry()
	a := arena.New("test")
	blockInst, _ := r.Create(a, "block", "advisory")
	tagInst, _ := r.Create(a, "tag", "xss")
	tx := newFakeTx()
	st := RunAll(tx, []*Instance{tagInst, blockInst})
	if !st.Declined() {
		t.Fatalf("expected aggregate Declined, got %v", st)
	}
	if len(tx.tags) != 1 || tx.tags[0] != "xss" {
		t.Fatal("expected tag action to still have run")
	}
}

func TestRunAllContinuesAfterNonOkNonDeclined(t *testing.T) {
	r := NewRegistry()
	r.Register(&Definition{
		Name: "fails",
		Execute: func(tx TxContext, data any) status.Status {
			return status.Other("boom", nil)
		},
	})
	a := arena.New("test")
	failInst, _ := r.Create(a, "fails", "")
	tagInst, _ := r.Create(a, "tag", "after")
	tx := newFakeTx()
	st := RunAll(tx, []*Instance{failInst, tagInst})
	if st.Code != status.CodeOther {
		t.Fatalf("expected first error status to surface, got %v", st)
	}
	if len(tx.tags) != 1 {
		t.Fatal("expected remaining actions to still run after a non-Ok status")
	}
}

func TestCreateUnknownActionReturnsNotFound(t *testing.T) {
	r := NewRegistry()
	a := arena.New("test")
	_, st := r.Create(a, "nope", "")
	if st.Code != status.CodeNotFound {
		t.Fatalf("expected NotFound, got %v", st)
	}
}
