package domain

import "math"

// CosineSimilarity returns the cosine of the angle between a and b.
// Vectors of different lengths or zero norm yield 0; claimed embeddings are
// never compared against a prefix of a recomputed one.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NearlyEqual reports whether a and b match element-wise within tol.
// Vectors of different lengths never match.
func NearlyEqual(a, b []float32, tol float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(float64(a[i])-float64(b[i])) > tol {
			return false
		}
	}
	return true
}
