package utils

import (
	"math"
	"testing"
)

func TestNormalizeL2(t *testing.T) {
	v := []float32{3, 4}
	NormalizeL2(v)
	if n := L2Norm(v); math.Abs(n-1.0) > 1e-6 {
		t.Errorf("norm after normalize = %f, want 1.0", n)
	}

	// Normalizing an already-normalized vector is a no-op.
	before := append([]float32(nil), v...)
	NormalizeL2(v)
	for i := range v {
		if math.Abs(float64(v[i]-before[i])) > 1e-6 {
			t.Errorf("normalize not idempotent at %d: %f vs %f", i, v[i], before[i])
		}
	}
}

func TestNormalizeL2ZeroVector(t *testing.T) {
	v := []float32{0, 0, 0}
	NormalizeL2(v)
	for i, x := range v {
		if x != 0 {
			t.Errorf("zero vector changed at %d: %f", i, x)
		}
	}
}

func TestNormalizeL2Copy(t *testing.T) {
	v := []float32{1, 2, 2}
	out := NormalizeL2Copy(v)
	if v[0] != 1 || v[1] != 2 || v[2] != 2 {
		t.Error("input mutated")
	}
	if n := L2Norm(out); math.Abs(n-1.0) > 1e-6 {
		t.Errorf("copy norm = %f, want 1.0", n)
	}
}

func TestInnerProduct(t *testing.T) {
	if got := InnerProduct([]float32{1, 0}, []float32{0, 1}); got != 0 {
		t.Errorf("orthogonal inner product = %f", got)
	}
	if got := InnerProduct([]float32{1, 0}, []float32{1, 0}); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("identical inner product = %f", got)
	}
	if got := InnerProduct([]float32{1}, []float32{1, 2}); got != 0 {
		t.Errorf("mismatched lengths = %f, want 0", got)
	}
}

func TestClamp01(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-0.5, 0}, {0, 0}, {0.3, 0.3}, {1, 1}, {1.7, 1},
	}
	for _, c := range cases {
		if got := Clamp01(c.in); got != c.want {
			t.Errorf("Clamp01(%f) = %f, want %f", c.in, got, c.want)
		}
	}
}
