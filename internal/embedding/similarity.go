package embedding

import (
	"errors"
	"fmt"
	"math"
)

// DefaultThreshold is the verification cutoff. The ArcFace vendor default for
// cosine verification is ~0.68; this deployment deliberately runs at 0.50 as
// a product decision. Override via VERIFY_THRESHOLD, never by editing this.
const DefaultThreshold = 0.50

var (
	// ErrZeroNormVector marks a degenerate embedding with zero magnitude.
	// It must surface as a failure, never as a similarity of 0.
	ErrZeroNormVector = errors.New("embedding has zero norm")

	// ErrDimensionMismatch marks a comparison between vectors of different
	// lengths, which would produce a meaningless score.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Cosine returns the cosine similarity of a and b in [-1, 1].
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("%w: 0 vs 0", ErrDimensionMismatch)
	}

	var dot, normA, normB float64
	for i := range a {
		av := float64(a[i])
		bv := float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}

	if normA == 0 || normB == 0 {
		return 0, ErrZeroNormVector
	}

	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Guard against float drift pushing the score out of range.
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}
	return score, nil
}

// Decide applies the verification threshold. The boundary is inclusive:
// a score exactly at the threshold verifies.
func Decide(score, threshold float64) bool {
	return score >= threshold
}
