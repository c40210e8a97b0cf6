package face

import "math"

// Similarity scores two embeddings in [0,1]. Both vectors are L2-normalized,
// their cosine similarity is computed, and the raw value is rescaled from
// [-1,1] to [0,1] via (cos+1)/2. The rescale, rather than a clamp at zero,
// keeps anti-correlated pairs distinguishable from orthogonal ones and
// matches the thresholds this service is tuned with.
func Similarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	score := (cos + 1) / 2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
