package ahp

import (
	"fmt"
	"sort"
)

// Synthesis is the outcome of composing local weights down a hierarchy for
// one evaluator.
type Synthesis struct {
	NodeWeights  map[string]float64 `json:"node_weights"`
	LeafWeights  map[string]float64 `json:"leaf_weights"`
	Scores       map[string]float64 `json:"scores"`
	Alternatives []string           `json:"alternatives"`
}

// Synthesize turns per-node local weights and per-leaf alternative weights
// into global leaf weights and per-alternative scores. local is keyed by the
// internal node whose children were compared; leafAlt by leaf criterion.
func Synthesize(h Hierarchy, local map[string]PriorityWeights, leafAlt map[string]PriorityWeights) (*Synthesis, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	global := map[string]float64{h.Root: 1.0}
	queue := []string{h.Root}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		node := h.Nodes[id]
		if node.IsLeaf() {
			continue
		}
		if len(node.Children) == 1 {
			global[node.Children[0]] = global[id]
			queue = append(queue, node.Children[0])
			continue
		}
		lw, ok := local[id]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMissingLocalWeights, id)
		}
		if len(lw.Elements) != len(lw.Values) {
			return nil, fmt.Errorf("%w: %q has %d elements and %d values", ErrWeightsMismatch, id, len(lw.Elements), len(lw.Values))
		}
		for _, c := range node.Children {
			v, ok := lw.Of(c)
			if !ok {
				return nil, fmt.Errorf("%w: %q has no weight for child %q", ErrMissingLocalWeights, id, c)
			}
			global[c] = global[id] * v
			queue = append(queue, c)
		}
	}

	leaves := h.Leaves()
	alternatives, err := alternativeSet(leaves, leafAlt)
	if err != nil {
		return nil, err
	}

	s := &Synthesis{
		NodeWeights:  global,
		LeafWeights:  make(map[string]float64, len(leaves)),
		Alternatives: alternatives,
	}
	for _, leaf := range leaves {
		s.LeafWeights[leaf] = global[leaf]
	}
	s.Scores = scoreAlternatives(s.LeafWeights, leafAlt, alternatives)
	return s, nil
}

// alternativeSet checks every leaf carries weights over the same alternatives
// and returns them sorted.
func alternativeSet(leaves []string, leafAlt map[string]PriorityWeights) ([]string, error) {
	var want map[string]bool
	var first string
	for _, leaf := range leaves {
		w, ok := leafAlt[leaf]
		if !ok || len(w.Elements) == 0 {
			return nil, fmt.Errorf("%w: %q", ErrIncompleteLeafCoverage, leaf)
		}
		if len(w.Elements) != len(w.Values) {
			return nil, fmt.Errorf("%w: %q has %d elements and %d values", ErrWeightsMismatch, leaf, len(w.Elements), len(w.Values))
		}
		if want == nil {
			first = leaf
			want = make(map[string]bool, len(w.Elements))
			for _, a := range w.Elements {
				want[a] = true
			}
			continue
		}
		if len(w.Elements) != len(want) {
			return nil, fmt.Errorf("%w: %q covers %d alternatives, %q covers %d", ErrIncompleteLeafCoverage, leaf, len(w.Elements), first, len(want))
		}
		for _, a := range w.Elements {
			if !want[a] {
				return nil, fmt.Errorf("%w: %q scores %q which %q does not", ErrIncompleteLeafCoverage, leaf, a, first)
			}
		}
	}
	out := make([]string, 0, len(want))
	for a := range want {
		out = append(out, a)
	}
	sort.Strings(out)
	return out, nil
}

// scoreAlternatives applies score(a) = sum over leaves of leafWeight * local(a | leaf).
// Leaves are visited in sorted order so the floating point sum is reproducible.
func scoreAlternatives(leafWeights map[string]float64, leafAlt map[string]PriorityWeights, alternatives []string) map[string]float64 {
	leaves := make([]string, 0, len(leafWeights))
	for l := range leafWeights {
		leaves = append(leaves, l)
	}
	sort.Strings(leaves)

	scores := make(map[string]float64, len(alternatives))
	for _, a := range alternatives {
		scores[a] = 0
	}
	for _, leaf := range leaves {
		lw := leafAlt[leaf].AsMap()
		for _, a := range alternatives {
			scores[a] += leafWeights[leaf] * lw[a]
		}
	}
	return scores
}
