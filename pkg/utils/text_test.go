package utils

import (
	"math"
	"testing"
)

func TestTruncate(t *testing.T) {
	if got := Truncate("hello", 10); got != "hello" {
		t.Errorf("got %q", got)
	}
	if got := Truncate("hello world", 5); got != "hello..." {
		t.Errorf("got %q", got)
	}
	if got := Truncate("hello", 0); got != "hello" {
		t.Errorf("maxLen 0 should be a no-op, got %q", got)
	}
}

func TestWords(t *testing.T) {
	got := Words("Hello, World! foo_bar 42")
	want := []string{"hello", "world", "foo_bar", "42"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("token %d: got %q, want %q", i, got[i], want[i])
		}
	}
}

func TestJaccard(t *testing.T) {
	a := WordSet("the quick brown fox")
	b := WordSet("the lazy brown dog")
	// intersection {the, brown} = 2, union = 6
	got := Jaccard(a, b)
	if math.Abs(got-2.0/6.0) > 1e-9 {
		t.Errorf("got %f, want %f", got, 2.0/6.0)
	}

	if got := Jaccard(a, a); got != 1.0 {
		t.Errorf("self similarity = %f, want 1.0", got)
	}
	if got := Jaccard(a, map[string]struct{}{}); got != 0 {
		t.Errorf("empty set similarity = %f, want 0", got)
	}
}
