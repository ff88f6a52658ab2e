package field

import "testing"

func TestJSONPathGetSimpleDottedPathUsesGjsonFastPath(t *testing.T) {
	body := NewByteStr("BODY", []byte(`{"user":{"id":42,"name":"ada"}}`))
	f, st := JSONPathGet(body, "$.user.id", "JP")
	if !st.OK() {
		t.Fatalf("expected OK, got %v", st)
	}
	if f.Type != TypeNum || f.Num != 42 {
		t.Fatalf("expected num field 42, got %+v", f)
	}
}

func TestJSONPathGetFallsBackToFullEvaluatorForFilters(t *testing.T) {
	body := NewByteStr("BODY", []byte(`{"items":[{"id":1},{"id":2}]}`))
	f, st := JSONPathGet(body, "$.items[?(@.id>1)].id", "JP")
	if !st.OK() {
		t.Fatalf("expected OK, got %v", st)
	}
	if f == nil {
		t.Fatal("expected a non-nil field")
	}
}

func TestJSONPathGetRejectsNonByteStringBase(t *testing.T) {
	_, st := JSONPathGet(NewNum("N", 1), "$.x", "JP")
	if st.OK() {
		t.Fatal("expected failure for non-byte-string base field")
	}
}
