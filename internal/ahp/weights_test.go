package ahp

import (
	"errors"
	"math"
	"testing"
)

func mustMatrix(t *testing.T, elements []string, rows [][]float64) *Matrix {
	t.Helper()
	m, err := NewMatrix(elements, rows)
	if err != nil {
		t.Fatalf("NewMatrix: %v", err)
	}
	return m
}

func TestSolveWeightsThreeCriteria(t *testing.T) {
	m := mustMatrix(t, []string{"c1", "c2", "c3"}, [][]float64{
		{1, 3, 5},
		{1.0 / 3, 1, 2},
		{1.0 / 5, 1.0 / 2, 1},
	})
	w, err := SolveWeights(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{0.6479468599033816, 0.22987117552334943, 0.12218196457326892}
	for i := range want {
		if !approx(w.Values[i], want[i], 1e-9) {
			t.Errorf("weight %d = %.12f, expected %.12f", i, w.Values[i], want[i])
		}
	}

	r, err := EvaluateConsistency(m, w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !approx(r.LambdaMax, 3.0036966678, 1e-8) {
		t.Errorf("lambdaMax = %.10f", r.LambdaMax)
	}
	if !approx(r.CR, 0.0020537044, 1e-8) {
		t.Errorf("CR = %.10f", r.CR)
	}
	if !r.Acceptable {
		t.Error("expected acceptable consistency")
	}
}

// The 0.633/0.261/0.106 profile comes from judging c2 three times as
// important as c3.
func TestSolveWeightsClassicProfile(t *testing.T) {
	m := mustMatrix(t, []string{"c1", "c2", "c3"}, [][]float64{
		{1, 3, 5},
		{1.0 / 3, 1, 3},
		{1.0 / 5, 1.0 / 3, 1},
	})
	w, err := SolveWeights(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float64{0.633, 0.261, 0.106}
	for i := range want {
		if !approx(w.Values[i], want[i], 1e-3) {
			t.Errorf("weight %d = %.4f, expected ~%.3f", i, w.Values[i], want[i])
		}
	}
	r, err := EvaluateConsistency(m, w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.CR < 0.01 || r.CR > 0.03 {
		t.Errorf("CR = %.4f, expected within [0.01, 0.03]", r.CR)
	}
	if !approx(r.CR, 0.0215081561, 1e-8) {
		t.Errorf("CR = %.10f", r.CR)
	}
	if !r.Acceptable {
		t.Error("expected acceptable consistency")
	}
}

func TestSolveWeightsEqualPair(t *testing.T) {
	m, err := BuildMatrix([]string{"alt1", "alt2"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	w, err := SolveWeights(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w.Values[0] != 0.5 || w.Values[1] != 0.5 {
		t.Errorf("expected [0.5 0.5], got %v", w.Values)
	}
	r, _ := EvaluateConsistency(m, w)
	if r.CR != 0 {
		t.Errorf("expected CR 0, got %f", r.CR)
	}
}

func TestSolveWeightsSingleElement(t *testing.T) {
	m := mustMatrix(t, []string{"only"}, [][]float64{{1}})
	w, err := SolveWeights(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.Values) != 1 || w.Values[0] != 1 {
		t.Errorf("expected [1], got %v", w.Values)
	}
}

func TestSolveWeightsSumToOne(t *testing.T) {
	values := []float64{1.0 / 9, 1.0 / 7, 1.0 / 3, 1, 2, 5, 9}
	elements := []string{"a", "b", "c", "d", "e"}
	for seed := 0; seed < 50; seed++ {
		var comps []Comparison
		k := seed
		for i := 0; i < len(elements); i++ {
			for j := i + 1; j < len(elements); j++ {
				comps = append(comps, Comparison{ElementA: elements[i], ElementB: elements[j], Value: values[k%len(values)]})
				k = k*7 + 3
			}
		}
		m, err := BuildMatrix(elements, comps)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		w, err := SolveWeights(m)
		if err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if !approx(w.Sum(), 1, WeightTolerance) {
			t.Errorf("seed %d: weights sum to %.15f", seed, w.Sum())
		}
		for i, v := range w.Values {
			if v < 0 {
				t.Errorf("seed %d: weight %d negative: %f", seed, i, v)
			}
		}
		if err := w.Validate(); err != nil {
			t.Errorf("seed %d: %v", seed, err)
		}
	}
}

func TestConsistentMatrixHasZeroCR(t *testing.T) {
	truth := []float64{0.5, 0.25, 0.15, 0.1}
	elements := []string{"a", "b", "c", "d"}
	rows := make([][]float64, len(truth))
	for i := range truth {
		rows[i] = make([]float64, len(truth))
		for j := range truth {
			rows[i][j] = truth[i] / truth[j]
		}
	}
	m := mustMatrix(t, elements, rows)
	w, err := SolveWeights(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range truth {
		if !approx(w.Values[i], truth[i], 1e-9) {
			t.Errorf("weight %d = %f, expected %f", i, w.Values[i], truth[i])
		}
	}
	r, _ := EvaluateConsistency(m, w)
	if !approx(r.CR, 0, 1e-9) {
		t.Errorf("expected CR 0, got %g", r.CR)
	}
	if !approx(r.LambdaMax, 4, 1e-9) {
		t.Errorf("expected lambdaMax 4, got %f", r.LambdaMax)
	}
}

func TestCRZeroForTwoElements(t *testing.T) {
	for _, v := range []float64{1.0 / 9, 0.5, 1, 4, 9} {
		m, _ := BuildMatrix([]string{"a", "b"}, []Comparison{{ElementA: "a", ElementB: "b", Value: v}})
		w, _ := SolveWeights(m)
		r, err := EvaluateConsistency(m, w)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if r.CR != 0 || !r.Acceptable {
			t.Errorf("value %f: expected CR 0 and acceptable, got %+v", v, r)
		}
	}
}

func TestInconsistentMatrixFlagged(t *testing.T) {
	// a > b > c but c > a.
	m, _ := BuildMatrix([]string{"a", "b", "c"}, []Comparison{
		{ElementA: "a", ElementB: "b", Value: 9},
		{ElementA: "b", ElementB: "c", Value: 9},
		{ElementA: "c", ElementB: "a", Value: 9},
	})
	w, err := SolveWeights(m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r, err := EvaluateConsistency(m, w)
	if err != nil {
		t.Fatalf("inconsistency must not fail computation: %v", err)
	}
	if r.Acceptable || r.CR <= ConsistencyThreshold {
		t.Errorf("expected unacceptable CR, got %f", r.CR)
	}

	pairs, err := InconsistentPairs(m, w, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	all, _ := InconsistentPairs(m, w, -1)
	if len(all) != 3 {
		t.Errorf("expected all 3 pairs, got %d", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].Deviation > all[i-1].Deviation {
			t.Errorf("pairs not sorted by deviation: %+v", all)
		}
	}
}

func TestRandomIndexClamp(t *testing.T) {
	if RandomIndexFor(3) != 0.90 {
		t.Errorf("RI[3] = %f", RandomIndexFor(3))
	}
	if RandomIndexFor(15) != 1.49 {
		t.Errorf("expected clamp to 1.49, got %f", RandomIndexFor(15))
	}
}

func TestEvaluateConsistencyMisaligned(t *testing.T) {
	m, _ := BuildMatrix([]string{"a", "b"}, nil)
	_, err := EvaluateConsistency(m, PriorityWeights{Elements: []string{"b", "a"}, Values: []float64{0.5, 0.5}})
	if !errors.Is(err, ErrWeightsMismatch) {
		t.Errorf("expected ErrWeightsMismatch, got %v", err)
	}
	_, err = EvaluateConsistency(m, PriorityWeights{Elements: []string{"a", "b"}, Values: []float64{1, 0}})
	if !errors.Is(err, ErrDegenerateMatrix) {
		t.Errorf("expected ErrDegenerateMatrix, got %v", err)
	}
}

func TestPriorityWeightsValidate(t *testing.T) {
	tests := []struct {
		name    string
		w       PriorityWeights
		wantErr bool
	}{
		{"valid", PriorityWeights{Elements: []string{"a", "b"}, Values: []float64{0.4, 0.6}}, false},
		{"short", PriorityWeights{Elements: []string{"a", "b"}, Values: []float64{1}}, true},
		{"negative", PriorityWeights{Elements: []string{"a", "b"}, Values: []float64{1.5, -0.5}}, true},
		{"bad sum", PriorityWeights{Elements: []string{"a", "b"}, Values: []float64{0.4, 0.4}}, true},
		{"NaN", PriorityWeights{Elements: []string{"a"}, Values: []float64{math.NaN()}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.w.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
