package field

import "testing"

func TestStringOnNilFieldIsEmpty(t *testing.T) {
	var f *Field
	if f.String() != "" {
		t.Fatalf("expected empty string for nil field, got %q", f.String())
	}
}

func TestCloneDoesNotAliasBytes(t *testing.T) {
	orig := NewByteStr("X", []byte("hi"))
	clone := orig.Clone()
	clone.Bytes[0] = 'H'
	if orig.Bytes[0] == 'H' {
		t.Fatal("Clone must deep-copy bytes")
	}
}

func TestCloneDeepCopiesList(t *testing.T) {
	orig := NewList("ARGS", []*Field{NewByteStr("", []byte("a"))})
	clone := orig.Clone()
	clone.List[0].Bytes[0] = 'Z'
	if orig.List[0].Bytes[0] == 'Z' {
		t.Fatal("Clone must deep-copy list elements")
	}
}

func TestNumStringTrimsIntegers(t *testing.T) {
	f := NewNum("N", 3)
	if f.String() != "3" {
		t.Fatalf("expected '3', got %q", f.String())
	}
}
