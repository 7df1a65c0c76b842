package types

import "testing"

func TestStructuralEqualScalarNoCoercion(t *testing.T) {
	if StructuralEqual("1", float64(1)) {
		t.Fatalf("string %q and number 1 must not compare equal", "1")
	}
	if !StructuralEqual(float64(2), float64(2)) {
		t.Fatalf("equal numbers must compare equal")
	}
	if !StructuralEqual("hello", "hello") {
		t.Fatalf("equal strings must compare equal")
	}
}

func TestStructuralEqualListIgnoresOrder(t *testing.T) {
	a := []any{"a", "b", "c"}
	b := []any{"c", "a", "b"}
	if !StructuralEqual(a, b) {
		t.Fatalf("lists with same elements in different order must compare equal")
	}
	c := []any{"a", "b"}
	if StructuralEqual(a, c) {
		t.Fatalf("lists of different length must not compare equal")
	}
}

func TestStructuralEqualObjectCanonical(t *testing.T) {
	a := map[string]any{"x": float64(1), "y": "z"}
	b := map[string]any{"y": "z", "x": float64(1)}
	if !StructuralEqual(a, b) {
		t.Fatalf("objects with same keys/values in different order must compare equal")
	}
}

func TestUnionListMergePreservesFirstSeenOrder(t *testing.T) {
	base := []any{"a", "b"}
	local := []any{"a", "b", "c"}
	remote := []any{"a", "b", "d"}
	got := UnionListMerge(base, local, remote)
	want := []string{"a", "b", "c", "d"}
	if len(got) != len(want) {
		t.Fatalf("expected %d elements, got %d: %v", len(want), len(got), got)
	}
	for i, w := range want {
		if got[i] != w {
			t.Fatalf("index %d: expected %q, got %v", i, w, got[i])
		}
	}
}

func TestUnionListMergeIdempotent(t *testing.T) {
	base := []any{"a"}
	local := []any{"a", "b"}
	remote := []any{"a", "c"}
	once := UnionListMerge(base, local, remote)
	twice := UnionListMerge(base, once, remote)
	if len(once) != len(twice) {
		t.Fatalf("auto-merge must be idempotent: %v vs %v", once, twice)
	}
	for i := range once {
		if !StructuralEqual(once[i], twice[i]) {
			t.Fatalf("auto-merge must be idempotent at index %d: %v vs %v", i, once[i], twice[i])
		}
	}
}

func TestNodeCloneIndependentAttrs(t *testing.T) {
	n := &Node{ID: "x:1", Type: "issue", Attrs: map[string]any{"body": "hello"}}
	clone := n.Clone()
	clone.Attrs["body"] = "changed"
	if n.Attrs["body"] != "hello" {
		t.Fatalf("mutating clone must not affect original")
	}
}
