package ahp

import (
	"fmt"
	"math"
	"sort"
)

const saturatedTolerance = 1e-12

// SensitivityResult holds the re-weighted leaf vector and the scores it yields.
type SensitivityResult struct {
	Target      string              `json:"target"`
	Value       float64             `json:"value"`
	LeafWeights map[string]float64  `json:"leaf_weights"`
	Scores      map[string]float64  `json:"scores"`
	Ranking     []RankedAlternative `json:"ranking"`
}

// AnalyzeSensitivity sets the global weight of target to v, rescales the
// other leaves so their relative proportions are preserved, and recomputes
// every alternative's score.
func AnalyzeSensitivity(leafWeights map[string]float64, target string, v float64, leafAlt map[string]PriorityWeights) (*SensitivityResult, error) {
	weights, err := Redistribute(leafWeights, target, v)
	if err != nil {
		return nil, err
	}

	leaves := make([]string, 0, len(leafWeights))
	for l := range leafWeights {
		leaves = append(leaves, l)
	}
	sort.Strings(leaves)
	alternatives, err := alternativeSet(leaves, leafAlt)
	if err != nil {
		return nil, err
	}

	scores := scoreAlternatives(weights, leafAlt, alternatives)
	return &SensitivityResult{
		Target:      target,
		Value:       v,
		LeafWeights: weights,
		Scores:      scores,
		Ranking:     Rank(scores),
	}, nil
}

// Redistribute returns a copy of leafWeights with target set to v and every
// other weight scaled by (1-v)/(1-original).
func Redistribute(leafWeights map[string]float64, target string, v float64) (map[string]float64, error) {
	if math.IsNaN(v) || v < 0 || v > 1 {
		return nil, fmt.Errorf("%w: %v", ErrOutOfRange, v)
	}
	original, ok := leafWeights[target]
	if !ok {
		return nil, fmt.Errorf("%w: leaf %q", ErrUnknownElement, target)
	}

	out := make(map[string]float64, len(leafWeights))
	rest := 1 - original
	if rest <= saturatedTolerance {
		if v < 1 {
			return nil, fmt.Errorf("%w: %q holds weight %v", ErrUndefinedRedistribution, target, original)
		}
		for l, w := range leafWeights {
			out[l] = w
		}
		out[target] = v
		return out, nil
	}

	scale := (1 - v) / rest
	for l, w := range leafWeights {
		out[l] = w * scale
	}
	out[target] = v
	return out, nil
}

// SweepPoint is the ranking at one value of the swept weight.
type SweepPoint struct {
	Value  float64            `json:"value"`
	Scores map[string]float64 `json:"scores"`
	Leader string             `json:"leader"`
}

// Sweep is the result of SensitivitySweep. Reversals lists the grid values at
// which the top-ranked alternative differs from the previous grid point.
type Sweep struct {
	Target    string       `json:"target"`
	Points    []SweepPoint `json:"points"`
	Reversals []float64    `json:"reversals"`
}

// MaxSweepSteps bounds the grid of a single sweep.
const MaxSweepSteps = 10000

// SensitivitySweep evaluates AnalyzeSensitivity on steps+1 evenly spaced
// values over [0, 1].
func SensitivitySweep(leafWeights map[string]float64, target string, leafAlt map[string]PriorityWeights, steps int) (*Sweep, error) {
	if steps < 1 || steps > MaxSweepSteps {
		return nil, fmt.Errorf("%w: steps must lie in [1, %d], got %d", ErrOutOfRange, MaxSweepSteps, steps)
	}
	sweep := &Sweep{Target: target}
	for i := 0; i <= steps; i++ {
		v := float64(i) / float64(steps)
		res, err := AnalyzeSensitivity(leafWeights, target, v, leafAlt)
		if err != nil {
			return nil, err
		}
		leader := ""
		if len(res.Ranking) > 0 {
			leader = res.Ranking[0].AlternativeID
		}
		if n := len(sweep.Points); n > 0 && sweep.Points[n-1].Leader != leader {
			sweep.Reversals = append(sweep.Reversals, v)
		}
		sweep.Points = append(sweep.Points, SweepPoint{Value: v, Scores: res.Scores, Leader: leader})
	}
	return sweep, nil
}
