package ahp

import (
	"fmt"
	"math"
	"sort"
)

// DefaultEvaluatorWeight applies to evaluators without an explicit weight.
const DefaultEvaluatorWeight = 1.0

// RankedAlternative is the boundary representation of a final score.
type RankedAlternative struct {
	AlternativeID string  `json:"alternativeId"`
	Score         float64 `json:"score"`
	Rank          int     `json:"rank"`
}

// AggregateGroup combines per-evaluator alternative scores with the weighted
// arithmetic mean and ranks the result. Missing evaluator weights default to 1.
func AggregateGroup(perEvaluator map[string]map[string]float64, evaluatorWeights map[string]float64) ([]RankedAlternative, error) {
	if len(perEvaluator) == 0 {
		return nil, ErrNoEvaluatorData
	}

	evaluators := make([]string, 0, len(perEvaluator))
	for e := range perEvaluator {
		evaluators = append(evaluators, e)
	}
	sort.Strings(evaluators)

	var alternatives map[string]bool
	for _, e := range evaluators {
		scores := perEvaluator[e]
		if alternatives == nil {
			alternatives = make(map[string]bool, len(scores))
			for a := range scores {
				alternatives[a] = true
			}
			continue
		}
		if len(scores) != len(alternatives) {
			return nil, fmt.Errorf("%w: %q scored %d alternatives, expected %d", ErrInconsistentAlternatives, e, len(scores), len(alternatives))
		}
		for a := range scores {
			if !alternatives[a] {
				return nil, fmt.Errorf("%w: %q scored unknown alternative %q", ErrInconsistentAlternatives, e, a)
			}
		}
	}

	weights := make(map[string]float64, len(evaluators))
	var totalWeight float64
	for _, e := range evaluators {
		w, err := evaluatorWeight(evaluatorWeights, e)
		if err != nil {
			return nil, err
		}
		weights[e] = w
		totalWeight += w
	}

	aggregated := make(map[string]float64, len(alternatives))
	for a := range alternatives {
		var weightedSum float64
		for _, e := range evaluators {
			weightedSum += weights[e] * perEvaluator[e][a]
		}
		aggregated[a] = weightedSum / totalWeight
	}
	return Rank(aggregated), nil
}

// Rank orders scores descending, breaking ties by ascending alternative id,
// and assigns 1-based ranks.
func Rank(scores map[string]float64) []RankedAlternative {
	out := make([]RankedAlternative, 0, len(scores))
	for a, s := range scores {
		out = append(out, RankedAlternative{AlternativeID: a, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].AlternativeID < out[j].AlternativeID
	})
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

// AggregateJudgments merges evaluators' matrices into one group matrix with
// the element-wise weighted geometric mean, which keeps the result
// reciprocal. All matrices must share the same element order.
func AggregateJudgments(matrices map[string]*Matrix, evaluatorWeights map[string]float64) (*Matrix, error) {
	if len(matrices) == 0 {
		return nil, ErrNoEvaluatorData
	}
	evaluators := make([]string, 0, len(matrices))
	for e := range matrices {
		evaluators = append(evaluators, e)
	}
	sort.Strings(evaluators)

	ref := matrices[evaluators[0]]
	n := ref.Size()
	logSum := make([][]float64, n)
	for i := range logSum {
		logSum[i] = make([]float64, n)
	}

	var totalWeight float64
	for _, e := range evaluators {
		m := matrices[e]
		if m.Size() != n {
			return nil, fmt.Errorf("%w: %q has %d elements, expected %d", ErrInconsistentAlternatives, e, m.Size(), n)
		}
		for i, id := range m.elements {
			if ref.elements[i] != id {
				return nil, fmt.Errorf("%w: %q orders %q at position %d", ErrInconsistentAlternatives, e, id, i)
			}
		}
		w, err := evaluatorWeight(evaluatorWeights, e)
		if err != nil {
			return nil, err
		}
		totalWeight += w
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				logSum[i][j] += w * math.Log(m.values[i][j])
			}
		}
	}

	group, err := newIdentity(ref.elements)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := math.Exp(logSum[i][j] / totalWeight)
			group.values[i][j] = v
			group.values[j][i] = 1 / v
		}
	}
	for _, e := range evaluators {
		group.answered = max(group.answered, matrices[e].answered)
	}
	return group, nil
}

func evaluatorWeight(weights map[string]float64, evaluator string) (float64, error) {
	w, ok := weights[evaluator]
	if !ok {
		return DefaultEvaluatorWeight, nil
	}
	if w <= 0 || math.IsNaN(w) || math.IsInf(w, 0) {
		return 0, fmt.Errorf("%w: %q has weight %v", ErrInvalidEvaluatorWeight, evaluator, w)
	}
	return w, nil
}
