package facematch

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{1, 2, 3}, []float32{1, 2, 3}, 0},
		{"3-4-5", []float32{0, 0}, []float32{3, 4}, 5},
		{"dimension mismatch", []float32{1, 2}, []float32{1, 2, 3}, math.Inf(1)},
		{"empty", nil, nil, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Distance(tt.a, tt.b), 1e-6)
		})
	}
}

func TestEvaluate(t *testing.T) {
	known := []Candidate[string]{
		{Label: "A", Encoding: []float32{0, 0, 0}},
		{Label: "B", Encoding: []float32{1, 1, 1}},
	}

	t.Run("accepts closest within threshold", func(t *testing.T) {
		res := Evaluate([]float32{0.1, 0, 0}, known, 0.6)

		assert.Equal(t, "A", res.Label)
		assert.True(t, res.Found)
		assert.InDelta(t, 0.1, res.Distance, 1e-6)
		assert.True(t, res.Accepted)
	})

	t.Run("rejects closest beyond threshold", func(t *testing.T) {
		res := Evaluate([]float32{5, 5, 5}, known, 0.6)

		assert.Equal(t, "B", res.Label)
		assert.InDelta(t, math.Sqrt(48), res.Distance, 1e-5)
		assert.False(t, res.Accepted)
	})

	t.Run("empty known", func(t *testing.T) {
		res := Evaluate[string]([]float32{1}, nil, 0.6)

		assert.False(t, res.Found)
		assert.Empty(t, res.Label)
		assert.True(t, math.IsInf(res.Distance, 1))
		assert.False(t, res.Accepted)
	})

	t.Run("tie keeps first", func(t *testing.T) {
		tied := []Candidate[string]{
			{Label: "first", Encoding: []float32{1, 0}},
			{Label: "second", Encoding: []float32{-1, 0}},
		}

		res := Evaluate([]float32{0, 0}, tied, 2)
		assert.Equal(t, "first", res.Label)
	})

	t.Run("boundary is inclusive", func(t *testing.T) {
		res := Evaluate([]float32{0, 0}, []Candidate[string]{{Label: "X", Encoding: []float32{0, 0.5}}}, 0.5)
		assert.True(t, res.Accepted)
	})

	t.Run("mismatched dimensions never match", func(t *testing.T) {
		res := Evaluate([]float32{0, 0}, []Candidate[string]{{Label: "X", Encoding: []float32{0, 0, 0}}}, 10)

		assert.True(t, res.Found)
		assert.False(t, res.Accepted)
	})
}

func TestEvaluate_Deterministic(t *testing.T) {
	known := []Candidate[int]{{Label: 1, Encoding: []float32{0.2, 0.4}}, {Label: 2, Encoding: []float32{0.3, 0.1}}}
	query := []float32{0.25, 0.3}

	first := Evaluate(query, known, DefaultThreshold)
	for range 10 {
		require.Equal(t, first, Evaluate(query, known, DefaultThreshold))
	}
}
