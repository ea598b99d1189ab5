package fingerprint

import (
	"errors"
	"fmt"
	"math"
)

// zeroEnergy is the squared norm below which a fingerprint counts as silent.
const zeroEnergy = 1e-9

var (
	ErrShapeMismatch = errors.New("fingerprint shapes differ")
	ErrNonFinite     = errors.New("fingerprint contains non-finite values")
)

// Similarity returns the cosine similarity of two equally shaped fingerprints,
// treated as flat vectors and clamped to [0, 1]. Silent inputs score 0.
func Similarity(a, b Fingerprint) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d frames", ErrShapeMismatch, len(a), len(b))
	}

	var dot, na, nb float64
	for i := range a {
		fa, fb := a[i], b[i]
		if len(fa) != len(fb) {
			return 0, fmt.Errorf("%w: frame %d has %d vs %d coefficients", ErrShapeMismatch, i, len(fa), len(fb))
		}
		for j := range fa {
			dot += fa[j] * fb[j]
			na += fa[j] * fa[j]
			nb += fb[j] * fb[j]
		}
	}

	if math.IsNaN(dot) || math.IsInf(dot, 0) || math.IsNaN(na) || math.IsInf(na, 0) || math.IsNaN(nb) || math.IsInf(nb, 0) {
		return 0, ErrNonFinite
	}
	if na < zeroEnergy || nb < zeroEnergy {
		return 0, nil
	}

	score := dot / math.Sqrt(na*nb)
	switch {
	case score < 0:
		return 0, nil
	case score > 1:
		return 1, nil
	}
	return score, nil
}
