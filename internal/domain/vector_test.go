package domain

import (
	"math"
	"testing"
)

func TestCosineSimilarity_Identical(t *testing.T) {
	v := []float32{0.2, 0.4, 0.8}
	if got := CosineSimilarity(v, v); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("expected 1.0 for identical vectors, got %f", got)
	}
}

func TestCosineSimilarity_Orthogonal(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	if got := CosineSimilarity(a, b); math.Abs(got) > 1e-9 {
		t.Errorf("expected 0 for orthogonal vectors, got %f", got)
	}
}

func TestCosineSimilarity_Opposite(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{-1, -2, -3}
	if got := CosineSimilarity(a, b); math.Abs(got+1.0) > 1e-9 {
		t.Errorf("expected -1.0 for opposite vectors, got %f", got)
	}
}

func TestCosineSimilarity_MismatchedLengths(t *testing.T) {
	// A claimed vector that copies the real one and pads junk must not pass
	// as similar on the shared prefix.
	a := []float32{0.3, 0.4, 0.5}
	b := []float32{0.3, 0.4, 0.5, 9, -9, 9, -9, 9, -9}

	if got := CosineSimilarity(a, b); got != 0 {
		t.Errorf("expected 0 for mismatched lengths, got %f", got)
	}
	if got := CosineSimilarity(b, a); got != 0 {
		t.Errorf("expected 0 for mismatched lengths (reversed), got %f", got)
	}
}

func TestCosineSimilarity_ZeroNorm(t *testing.T) {
	a := []float32{0, 0, 0}
	b := []float32{1, 2, 3}
	if got := CosineSimilarity(a, b); got != 0 {
		t.Errorf("expected 0 for zero-norm vector, got %f", got)
	}
}

func TestNearlyEqual(t *testing.T) {
	a := []float32{0.1, 0.2, 0.3}
	b := []float32{0.1, 0.2, 0.30005}

	if !NearlyEqual(a, b, 1e-3) {
		t.Error("expected match within tolerance 1e-3")
	}
	if NearlyEqual(a, b, 1e-6) {
		t.Error("expected mismatch at tolerance 1e-6")
	}
	if NearlyEqual(a, a[:2], 1e-3) {
		t.Error("different lengths must never match")
	}
}
