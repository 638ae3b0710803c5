package analysis

import (
	"context"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MikeSquared-Agency/Priority/internal/ahp"
	"github.com/MikeSquared-Agency/Priority/internal/metrics"
	"github.com/MikeSquared-Agency/Priority/internal/store"
)

// worstPairs is how many inconsistent judgments are reported per context.
const worstPairs = 3

// Options tunes an evaluation run.
type Options struct {
	ConsistencyThreshold float64
	Parallelism          int
}

// ContextReport is the outcome of one comparison context.
type ContextReport struct {
	Node         string                 `json:"node"`
	Weights      ahp.PriorityWeights    `json:"weights"`
	Consistency  ahp.ConsistencyReport  `json:"consistency"`
	Answered     int                    `json:"answered"`
	Required     int                    `json:"required"`
	WorstPairs   []ahp.InconsistentPair `json:"worst_pairs,omitempty"`
	Alternatives bool                   `json:"alternatives"`
	Stale        int                    `json:"stale_comparisons,omitempty"`
}

// EvaluatorResult holds everything computed from one evaluator's judgments.
type EvaluatorResult struct {
	EvaluatorID string                  `json:"evaluator_id"`
	Weight      float64                 `json:"weight"`
	Contexts    []ContextReport         `json:"contexts"`
	Synthesis   *ahp.Synthesis          `json:"synthesis"`
	Ranking     []ahp.RankedAlternative `json:"ranking"`
	Consistent  bool                    `json:"consistent"`
	Complete    bool                    `json:"complete"`

	leafAlt map[string]ahp.PriorityWeights
}

// GroupResult is the aggregation of individual judgments: one geometric-mean
// matrix per context, synthesized like a single evaluator.
type GroupResult struct {
	Contexts  []ContextReport         `json:"contexts"`
	Synthesis *ahp.Synthesis          `json:"synthesis"`
	Ranking   []ahp.RankedAlternative `json:"ranking"`

	leafAlt map[string]ahp.PriorityWeights
}

// Results is the full computation for a project snapshot.
type Results struct {
	ProjectID    string                  `json:"project_id"`
	SnapshotHash string                  `json:"snapshot_hash"`
	Ranking      []ahp.RankedAlternative `json:"ranking"`
	Evaluators   []EvaluatorResult       `json:"evaluators"`
	Group        *GroupResult            `json:"group"`
	Inconsistent []string                `json:"inconsistent_evaluators"`
	ComputedAt   time.Time               `json:"computed_at"`
}

// Evaluate runs the engine over snap. Every evaluator with at least one
// comparison takes part; their scores are combined with AggregateGroup and
// their matrices with AggregateJudgments.
func Evaluate(ctx context.Context, snap *store.Snapshot, opts Options) (*Results, error) {
	if snap == nil || snap.Project == nil {
		return nil, fmt.Errorf("evaluate: empty snapshot")
	}
	model, err := BuildModel(snap)
	if err != nil {
		return nil, err
	}

	byEvaluator := make(map[string][]store.Comparison)
	for _, c := range snap.Comparisons {
		byEvaluator[c.EvaluatorID] = append(byEvaluator[c.EvaluatorID], c)
	}
	if len(byEvaluator) == 0 {
		return nil, ahp.ErrNoEvaluatorData
	}

	weights := make(map[string]float64, len(snap.Evaluators))
	for _, e := range snap.Evaluators {
		weights[e.ID] = e.Weight
	}
	participants := make([]string, 0, len(byEvaluator))
	for id := range byEvaluator {
		participants = append(participants, id)
	}
	sort.Strings(participants)

	parallelism := opts.Parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	threshold := opts.ConsistencyThreshold
	if threshold <= 0 {
		threshold = ahp.ConsistencyThreshold
	}

	results := make([]EvaluatorResult, len(participants))
	matrices := make([]map[string]*ahp.Matrix, len(participants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for i, id := range participants {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, ms, err := evaluateOne(model, EngineComparisons(byEvaluator[id]), threshold)
			if err != nil {
				return fmt.Errorf("evaluator %q: %w", id, err)
			}
			res.EvaluatorID = id
			res.Weight = weightOf(weights, id)
			results[i] = *res
			matrices[i] = ms
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	perEvaluator := make(map[string]map[string]float64, len(results))
	evaluatorWeights := make(map[string]float64, len(results))
	out := &Results{
		ProjectID:    model.Root,
		Evaluators:   results,
		Inconsistent: []string{},
	}
	for _, r := range results {
		perEvaluator[r.EvaluatorID] = r.Synthesis.Scores
		evaluatorWeights[r.EvaluatorID] = r.Weight
		if !r.Consistent {
			out.Inconsistent = append(out.Inconsistent, r.EvaluatorID)
		}
	}
	out.Ranking, err = ahp.AggregateGroup(perEvaluator, evaluatorWeights)
	if err != nil {
		return nil, err
	}

	out.Group, err = aggregateJudgments(model, participants, matrices, evaluatorWeights, threshold)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func evaluateOne(model *Model, comps []ahp.Comparison, threshold float64) (*EvaluatorResult, map[string]*ahp.Matrix, error) {
	res := &EvaluatorResult{Consistent: true, Complete: true}
	local := make(map[string]ahp.PriorityWeights)
	leafAlt := make(map[string]ahp.PriorityWeights)
	matrices := make(map[string]*ahp.Matrix, len(model.Contexts))

	for _, c := range model.Contexts {
		m, stale, err := c.matrixFor(comps)
		if err != nil {
			return nil, nil, err
		}
		matrices[c.Node] = m
		report, w, err := reportFor(c, m, threshold)
		if err != nil {
			return nil, nil, err
		}
		report.Stale = stale
		res.Contexts = append(res.Contexts, report)
		if !report.Consistency.Acceptable {
			res.Consistent = false
		}
		if report.Answered < report.Required {
			res.Complete = false
		}
		if c.Leaf {
			leafAlt[c.Node] = w
		} else {
			local[c.Node] = w
		}
	}

	syn, err := ahp.Synthesize(model.Hierarchy, local, leafAlt)
	if err != nil {
		return nil, nil, err
	}
	res.Synthesis = syn
	res.Ranking = ahp.Rank(syn.Scores)
	res.leafAlt = leafAlt
	return res, matrices, nil
}

func reportFor(c Context, m *ahp.Matrix, threshold float64) (ContextReport, ahp.PriorityWeights, error) {
	start := time.Now()
	w, err := ahp.SolveWeights(m)
	metrics.ObserveComputation("weights", start, err)
	if err != nil {
		return ContextReport{}, ahp.PriorityWeights{}, fmt.Errorf("context %q: %w", c.Node, err)
	}
	cr, err := ahp.EvaluateConsistency(m, w)
	if err != nil {
		return ContextReport{}, ahp.PriorityWeights{}, fmt.Errorf("context %q: %w", c.Node, err)
	}
	cr.Acceptable = cr.AcceptableAt(threshold)
	if cr.N >= 3 {
		metrics.ConsistencyRatio.Observe(cr.CR)
	}

	report := ContextReport{
		Node:         c.Node,
		Weights:      w,
		Consistency:  cr,
		Answered:     m.Answered(),
		Required:     m.Required(),
		Alternatives: c.Leaf,
	}
	if !cr.Acceptable {
		pairs, err := ahp.InconsistentPairs(m, w, worstPairs)
		if err == nil {
			report.WorstPairs = pairs
		}
	}
	return report, w, nil
}

func aggregateJudgments(model *Model, participants []string, perEvaluator []map[string]*ahp.Matrix, weights map[string]float64, threshold float64) (*GroupResult, error) {
	group := &GroupResult{}
	local := make(map[string]ahp.PriorityWeights)
	leafAlt := make(map[string]ahp.PriorityWeights)

	for _, c := range model.Contexts {
		byEvaluator := make(map[string]*ahp.Matrix, len(participants))
		for i, id := range participants {
			byEvaluator[id] = perEvaluator[i][c.Node]
		}
		m, err := ahp.AggregateJudgments(byEvaluator, weights)
		if err != nil {
			return nil, fmt.Errorf("aggregate %q: %w", c.Node, err)
		}
		report, w, err := reportFor(c, m, threshold)
		if err != nil {
			return nil, err
		}
		group.Contexts = append(group.Contexts, report)
		if c.Leaf {
			leafAlt[c.Node] = w
		} else {
			local[c.Node] = w
		}
	}

	syn, err := ahp.Synthesize(model.Hierarchy, local, leafAlt)
	if err != nil {
		return nil, err
	}
	group.Synthesis = syn
	group.Ranking = ahp.Rank(syn.Scores)
	group.leafAlt = leafAlt
	return group, nil
}

func weightOf(weights map[string]float64, id string) float64 {
	if w, ok := weights[id]; ok {
		return w
	}
	return ahp.DefaultEvaluatorWeight
}
