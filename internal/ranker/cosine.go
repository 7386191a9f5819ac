package ranker

import "math"

// Epsilon keeps the cosine denominator positive when either vector is zero.
const Epsilon = 1e-12

// Cosine returns dot(a, b) / (|a|*|b| + Epsilon). Vectors are assumed to have
// the same length.
func Cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	return float32(dot / (math.Sqrt(na)*math.Sqrt(nb) + Epsilon))
}

// Norm returns the L2 norm of v.
func Norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}
