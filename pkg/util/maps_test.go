package util

import (
	"slices"
	"testing"
)

func TestSortedKeys(t *testing.T) {
	got := SortedKeys(map[string]int{"b": 2, "c": 3, "a": 1})
	want := []string{"a", "b", "c"}
	if !slices.Equal(got, want) {
		t.Errorf("SortedKeys() = %v, want %v", got, want)
	}

	if got := SortedKeys(map[string]int(nil)); len(got) != 0 {
		t.Errorf("SortedKeys(nil) = %v, want empty", got)
	}
}

func TestSetOf(t *testing.T) {
	set := SetOf([]string{"x", "y", "x"})
	if len(set) != 2 {
		t.Fatalf("len(SetOf()) = %d, want 2", len(set))
	}
	for _, k := range []string{"x", "y"} {
		if _, ok := set[k]; !ok {
			t.Errorf("SetOf() missing %q", k)
		}
	}
}
