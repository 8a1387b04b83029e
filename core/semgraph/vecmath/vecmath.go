// Package vecmath provides the similarity primitives for the semantic graph.
// All functions are pure and deterministic: same inputs, same outputs, no
// state. Degenerate inputs (nil, empty, mismatched lengths, zero magnitude)
// yield 0 rather than errors, so partial data never aborts a graph pass.
package vecmath

import (
	"math"

	"github.com/viterin/vek/vek32"
)

// Dot computes the dot product of two vectors.
// Returns 0 if the vectors have different lengths or are empty.
func Dot(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	return float64(vek32.Dot(a, b))
}

// Magnitude computes the L2 norm of a vector.
func Magnitude(v []float32) float64 {
	if len(v) == 0 {
		return 0
	}
	return math.Sqrt(float64(vek32.Dot(v, v)))
}

// Cosine computes cosine similarity between two vectors.
// Returns 0 for absent or mismatched vectors and for zero-magnitude vectors,
// where the quotient is undefined.
func Cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	return CosineWithMagnitudes(a, b, Magnitude(a), Magnitude(b))
}

// CosineWithMagnitudes computes cosine similarity using pre-computed
// magnitudes, avoiding the two norm passes when magnitudes are cached.
// Returns 0 if either magnitude is zero. The result is clamped to [-1, 1]:
// float32 rounding can push the quotient for identical or near-identical
// vectors just past unity.
func CosineWithMagnitudes(a, b []float32, magA, magB float64) float64 {
	if magA == 0 || magB == 0 {
		return 0
	}
	return clampUnit(Dot(a, b) / (magA * magB))
}

func clampUnit(sim float64) float64 {
	if sim > 1 {
		return 1
	}
	if sim < -1 {
		return -1
	}
	return sim
}

// NormalizeCopy returns a unit-length copy of v and its original magnitude.
// A zero-magnitude vector is copied unchanged with magnitude 0. The input is
// never modified; normalized vectors are shared across similarity passes and
// in-place mutation would corrupt them.
func NormalizeCopy(v []float32) ([]float32, float64) {
	mag := Magnitude(v)
	result := make([]float32, len(v))
	if mag == 0 {
		copy(result, v)
		return result, 0
	}
	invMag := float32(1.0 / mag)
	for i := range v {
		result[i] = v[i] * invMag
	}
	return result, mag
}
