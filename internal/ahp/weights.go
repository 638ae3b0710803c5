package ahp

import (
	"fmt"
	"math"
)

// WeightTolerance is the allowed deviation of a weight vector's sum from 1.
const WeightTolerance = 1e-9

// PriorityWeights is a non-negative vector summing to 1, aligned positionally
// with Elements.
type PriorityWeights struct {
	Elements []string  `json:"elements"`
	Values   []float64 `json:"values"`
}

// Sum returns the total of all weights.
func (w PriorityWeights) Sum() float64 {
	var s float64
	for _, v := range w.Values {
		s += v
	}
	return s
}

// Validate checks alignment, that weights sum to 1 and none are negative.
func (w PriorityWeights) Validate() error {
	if len(w.Elements) != len(w.Values) {
		return fmt.Errorf("%w: %d elements, %d values", ErrWeightsMismatch, len(w.Elements), len(w.Values))
	}
	if len(w.Values) == 0 {
		return fmt.Errorf("%w: empty weight vector", ErrWeightsMismatch)
	}
	for i, v := range w.Values {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: weight of %q is %v", ErrWeightsMismatch, w.Elements[i], v)
		}
	}
	if math.Abs(w.Sum()-1.0) > 1e-6 {
		return fmt.Errorf("%w: weights sum to %.9f, must sum to 1", ErrWeightsMismatch, w.Sum())
	}
	return nil
}

// Of returns the weight of id. It reports false when id has no value.
func (w PriorityWeights) Of(id string) (float64, bool) {
	for i, e := range w.Elements {
		if e == id && i < len(w.Values) {
			return w.Values[i], true
		}
	}
	return 0, false
}

// AsMap returns the weights keyed by element id.
func (w PriorityWeights) AsMap() map[string]float64 {
	out := make(map[string]float64, len(w.Elements))
	for i, e := range w.Elements {
		if i >= len(w.Values) {
			break
		}
		out[e] = w.Values[i]
	}
	return out
}

// SolveWeights derives the priority vector of m with the normalized-column,
// row-average approximation of the principal eigenvector.
func SolveWeights(m *Matrix) (PriorityWeights, error) {
	n := m.Size()
	if n == 1 {
		return PriorityWeights{Elements: m.Elements(), Values: []float64{1.0}}, nil
	}

	colSums := make([]float64, n)
	for j := 0; j < n; j++ {
		for i := 0; i < n; i++ {
			colSums[j] += m.values[i][j]
		}
		if colSums[j] <= 0 || math.IsNaN(colSums[j]) || math.IsInf(colSums[j], 0) {
			return PriorityWeights{}, fmt.Errorf("%w: column %q sums to %v", ErrDegenerateMatrix, m.elements[j], colSums[j])
		}
	}

	values := make([]float64, n)
	var total float64
	for i := 0; i < n; i++ {
		var row float64
		for j := 0; j < n; j++ {
			row += m.values[i][j] / colSums[j]
		}
		values[i] = row / float64(n)
		total += values[i]
	}

	// Absorb rounding so the vector sums to 1 within WeightTolerance.
	for i := range values {
		values[i] /= total
	}
	return PriorityWeights{Elements: m.Elements(), Values: values}, nil
}
