// Package ahp implements the Analytic Hierarchy Process computation engine:
// reciprocal comparison matrices, priority weights, consistency checks,
// hierarchical synthesis, group aggregation, sensitivity analysis and budget
// allocation. Every function is pure and safe for concurrent use.
package ahp

import (
	"fmt"
	"math"
)

const (
	// MinScaleValue and MaxScaleValue bound the Saaty scale.
	MinScaleValue = 1.0 / 9.0
	MaxScaleValue = 9.0

	scaleTolerance      = 1e-3
	reciprocalTolerance = 1e-9
)

// Comparison is one directional judgment: ElementA is Value times as
// important as ElementB under ParentContextID (nil for top-level criteria).
type Comparison struct {
	ElementA        string  `json:"elementAId" yaml:"a" mapstructure:"a"`
	ElementB        string  `json:"elementBId" yaml:"b" mapstructure:"b"`
	Value           float64 `json:"value" yaml:"value" mapstructure:"value"`
	ParentContextID *string `json:"parentContextId" yaml:"parent,omitempty" mapstructure:"parent"`
}

// ValidValue reports whether v is a finite value on the Saaty scale.
func ValidValue(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return false
	}
	return v >= MinScaleValue-scaleTolerance && v <= MaxScaleValue+scaleTolerance
}

// FilterByParent returns the comparisons recorded under parent. A nil parent
// selects the top-level comparisons.
func FilterByParent(comps []Comparison, parent *string) []Comparison {
	var out []Comparison
	for _, c := range comps {
		switch {
		case parent == nil && c.ParentContextID == nil:
			out = append(out, c)
		case parent != nil && c.ParentContextID != nil && *parent == *c.ParentContextID:
			out = append(out, c)
		}
	}
	return out
}

// Matrix is an immutable square reciprocal comparison matrix over an ordered
// element list.
type Matrix struct {
	elements []string
	index    map[string]int
	values   [][]float64
	answered int
}

// BuildMatrix assembles the comparison matrix for elements from sparse
// directional judgments. Pairs without a judgment default to 1. When a pair
// is judged more than once the later entry wins.
func BuildMatrix(elements []string, comps []Comparison) (*Matrix, error) {
	if len(elements) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidElementCount, len(elements))
	}
	m, err := newIdentity(elements)
	if err != nil {
		return nil, err
	}

	seen := make(map[[2]int]bool)
	for _, c := range comps {
		ia, ok := m.index[c.ElementA]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownElement, c.ElementA)
		}
		ib, ok := m.index[c.ElementB]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownElement, c.ElementB)
		}
		if ia == ib {
			return nil, fmt.Errorf("%w: %q", ErrSelfComparison, c.ElementA)
		}
		if !ValidValue(c.Value) {
			return nil, fmt.Errorf("%w: %q vs %q = %v", ErrInvalidComparisonValue, c.ElementA, c.ElementB, c.Value)
		}
		m.values[ia][ib] = c.Value
		m.values[ib][ia] = 1 / c.Value

		key := [2]int{min(ia, ib), max(ia, ib)}
		if !seen[key] {
			seen[key] = true
			m.answered++
		}
	}
	return m, nil
}

// NewMatrix wraps a dense caller-supplied matrix after checking it is
// positive, reciprocal and has a unit diagonal. Unlike BuildMatrix it accepts
// a single element.
func NewMatrix(elements []string, rows [][]float64) (*Matrix, error) {
	if len(elements) == 0 {
		return nil, fmt.Errorf("%w: got 0", ErrInvalidElementCount)
	}
	m, err := newIdentity(elements)
	if err != nil {
		return nil, err
	}
	n := len(elements)
	if len(rows) != n {
		return nil, fmt.Errorf("%w: %d rows for %d elements", ErrInvalidMatrix, len(rows), n)
	}
	for i := range rows {
		if len(rows[i]) != n {
			return nil, fmt.Errorf("%w: row %d has %d columns", ErrInvalidMatrix, i, len(rows[i]))
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := rows[i][j]
			if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
				return nil, fmt.Errorf("%w: entry [%d][%d] = %v", ErrInvalidMatrix, i, j, v)
			}
			if i == j && math.Abs(v-1) > reciprocalTolerance {
				return nil, fmt.Errorf("%w: diagonal [%d][%d] = %v", ErrInvalidMatrix, i, i, v)
			}
			if math.Abs(v*rows[j][i]-1) > reciprocalTolerance {
				return nil, fmt.Errorf("%w: [%d][%d] * [%d][%d] != 1", ErrInvalidMatrix, i, j, j, i)
			}
			m.values[i][j] = v
		}
	}
	// Every off-diagonal pair of a dense matrix counts as answered.
	m.answered = n * (n - 1) / 2
	return m, nil
}

func newIdentity(elements []string) (*Matrix, error) {
	n := len(elements)
	m := &Matrix{
		elements: append([]string(nil), elements...),
		index:    make(map[string]int, n),
		values:   make([][]float64, n),
	}
	for i, id := range elements {
		if _, dup := m.index[id]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateElement, id)
		}
		m.index[id] = i
		m.values[i] = make([]float64, n)
		for j := range m.values[i] {
			m.values[i][j] = 1
		}
	}
	return m, nil
}

// Size returns n.
func (m *Matrix) Size() int { return len(m.elements) }

// Elements returns a copy of the element order.
func (m *Matrix) Elements() []string { return append([]string(nil), m.elements...) }

// At returns M[i][j].
func (m *Matrix) At(i, j int) float64 { return m.values[i][j] }

// Value returns the judgment of a over b.
func (m *Matrix) Value(a, b string) (float64, bool) {
	ia, ok := m.index[a]
	if !ok {
		return 0, false
	}
	ib, ok := m.index[b]
	if !ok {
		return 0, false
	}
	return m.values[ia][ib], true
}

// Rows returns a deep copy of the matrix values.
func (m *Matrix) Rows() [][]float64 {
	out := make([][]float64, len(m.values))
	for i := range m.values {
		out[i] = append([]float64(nil), m.values[i]...)
	}
	return out
}

// Answered returns how many unordered pairs carry an explicit judgment.
func (m *Matrix) Answered() int { return m.answered }

// Required returns n*(n-1)/2.
func (m *Matrix) Required() int {
	n := len(m.elements)
	return n * (n - 1) / 2
}

// Complete reports whether every pair has been judged.
func (m *Matrix) Complete() bool { return m.answered >= m.Required() }
