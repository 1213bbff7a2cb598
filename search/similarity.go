package search

import "math"

// Cosine returns dot(a, b) / (|a| * |b|), accumulated in float64.
// Empty, zero-norm, non-finite and dimension-mismatched inputs score 0.
func Cosine(a, b []float32) float64 {
	score, _ := cosine(a, b)
	return score
}

// cosine reports false alongside the 0 score for degenerate inputs.
func cosine(a, b []float32) (float64, bool) {
	if len(a) == 0 || len(a) != len(b) {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 || !finite(dot) || !finite(normA) || !finite(normB) {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
