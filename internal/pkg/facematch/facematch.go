// Package facematch decides whether a face encoding belongs to one of a set of
// known encodings.
//
// Distances are Euclidean. Enrollment and verification must use the same
// metric and the same encoder, otherwise thresholds are meaningless.
package facematch

import (
	"math"

	"github.com/coder/hnsw"
)

// DefaultThreshold is the distance at or below which two encodings are
// treated as the same person.
const DefaultThreshold = 0.6

// Candidate is one known encoding and the label it belongs to.
type Candidate[K comparable] struct {
	Label    K
	Encoding []float32
}

// Result is the outcome of Evaluate. Found is false when there were no
// candidates, in which case Distance is +Inf.
type Result[K comparable] struct {
	Label    K
	Found    bool
	Distance float64
	Accepted bool
}

// Distance returns the Euclidean distance between a and b, or +Inf when the
// dimensions differ or either side is empty.
func Distance(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return math.Inf(1)
	}
	return float64(hnsw.EuclideanDistance(a, b))
}

// Evaluate finds the candidate closest to query. Ties keep the earliest
// candidate. Accepted is Distance <= threshold.
func Evaluate[K comparable](query []float32, known []Candidate[K], threshold float64) Result[K] {
	res := Result[K]{Distance: math.Inf(1)}

	for _, c := range known {
		d := Distance(query, c.Encoding)
		if !res.Found || d < res.Distance {
			res.Label = c.Label
			res.Found = true
			res.Distance = d
		}
	}

	res.Accepted = res.Found && res.Distance <= threshold
	return res
}
