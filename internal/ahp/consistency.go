package ahp

import (
	"fmt"
	"math"
	"sort"
)

// ConsistencyThreshold is the largest consistency ratio still considered
// acceptable.
const ConsistencyThreshold = 0.10

// RandomIndex is the random consistency index table, indexed by matrix size.
// Sizes beyond the table reuse the last entry.
var RandomIndex = [...]float64{0, 0, 0.58, 0.90, 1.12, 1.24, 1.32, 1.41, 1.45, 1.49}

// RandomIndexFor returns RI[n], clamping n to the table bounds.
func RandomIndexFor(n int) float64 {
	if n < 0 {
		return 0
	}
	if n >= len(RandomIndex) {
		n = len(RandomIndex) - 1
	}
	return RandomIndex[n]
}

// ConsistencyReport describes how coherent a set of judgments is.
// Acceptable is advisory; computation never stops on an inconsistent matrix.
type ConsistencyReport struct {
	LambdaMax  float64 `json:"lambda_max"`
	CI         float64 `json:"ci"`
	CR         float64 `json:"cr"`
	N          int     `json:"n"`
	Acceptable bool    `json:"acceptable"`
}

// AcceptableAt reports whether the ratio is within threshold.
func (r ConsistencyReport) AcceptableAt(threshold float64) bool {
	return r.N < 3 || r.CR <= threshold
}

// EvaluateConsistency computes lambdaMax, CI and CR for m given its weights.
func EvaluateConsistency(m *Matrix, w PriorityWeights) (ConsistencyReport, error) {
	n := m.Size()
	if err := checkAligned(m, w); err != nil {
		return ConsistencyReport{}, err
	}

	var lambda float64
	for i := 0; i < n; i++ {
		if w.Values[i] <= 0 {
			return ConsistencyReport{}, fmt.Errorf("%w: weight of %q is %v", ErrDegenerateMatrix, m.elements[i], w.Values[i])
		}
		var row float64
		for j := 0; j < n; j++ {
			row += m.values[i][j] * w.Values[j]
		}
		lambda += row / w.Values[i]
	}
	lambda /= float64(n)

	report := ConsistencyReport{LambdaMax: lambda, N: n, Acceptable: true}
	if n > 1 {
		report.CI = (lambda - float64(n)) / float64(n-1)
	}
	if n > 2 {
		report.CR = report.CI / RandomIndexFor(n)
		report.Acceptable = report.CR <= ConsistencyThreshold
	}
	return report, nil
}

// InconsistentPair is one judgment together with the value its weights imply.
type InconsistentPair struct {
	ElementA  string  `json:"elementAId"`
	ElementB  string  `json:"elementBId"`
	Value     float64 `json:"value"`
	Suggested float64 `json:"suggested"`
	Deviation float64 `json:"deviation"`
}

// InconsistentPairs ranks the upper-triangle judgments by how far they stray
// from the ratio of their weights, worst first, and returns at most k.
func InconsistentPairs(m *Matrix, w PriorityWeights, k int) ([]InconsistentPair, error) {
	if err := checkAligned(m, w); err != nil {
		return nil, err
	}
	n := m.Size()
	var pairs []InconsistentPair
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if w.Values[i] <= 0 || w.Values[j] <= 0 {
				return nil, fmt.Errorf("%w: zero weight", ErrDegenerateMatrix)
			}
			suggested := w.Values[i] / w.Values[j]
			pairs = append(pairs, InconsistentPair{
				ElementA:  m.elements[i],
				ElementB:  m.elements[j],
				Value:     m.values[i][j],
				Suggested: suggested,
				Deviation: math.Abs(math.Log(m.values[i][j] / suggested)),
			})
		}
	}
	sort.SliceStable(pairs, func(a, b int) bool {
		return pairs[a].Deviation > pairs[b].Deviation
	})
	if k >= 0 && k < len(pairs) {
		pairs = pairs[:k]
	}
	return pairs, nil
}

func checkAligned(m *Matrix, w PriorityWeights) error {
	n := m.Size()
	if len(w.Values) != n || len(w.Elements) != n {
		return fmt.Errorf("%w: matrix has %d elements, weights %d", ErrWeightsMismatch, n, len(w.Values))
	}
	for i, e := range w.Elements {
		if e != m.elements[i] {
			return fmt.Errorf("%w: position %d is %q in weights, %q in matrix", ErrWeightsMismatch, i, e, m.elements[i])
		}
	}
	return nil
}
