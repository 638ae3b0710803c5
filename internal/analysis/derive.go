package analysis

import (
	"fmt"
	"time"

	"github.com/MikeSquared-Agency/Priority/internal/ahp"
	"github.com/MikeSquared-Agency/Priority/internal/config"
	"github.com/MikeSquared-Agency/Priority/internal/metrics"
	"github.com/MikeSquared-Agency/Priority/internal/store"
)

// GroupBasis names the aggregated-judgment model in sensitivity reports.
const GroupBasis = "group"

type SensitivityRequest struct {
	EvaluatorID string   `json:"evaluator_id,omitempty"`
	Target      string   `json:"target"`
	Value       *float64 `json:"value,omitempty"`
	Steps       int      `json:"steps,omitempty"`
}

// SensitivityReport carries either a single perturbation (Point) or a grid
// sweep (Sweep), computed on the basis named by Basis.
type SensitivityReport struct {
	Basis string                 `json:"basis"`
	Point *ahp.SensitivityResult `json:"point,omitempty"`
	Sweep *ahp.Sweep             `json:"sweep,omitempty"`
}

// SweepSteps resolves the grid size of a sweep request: zero takes the
// configured default and anything above the configured maximum is rejected.
func SweepSteps(requested int, engine config.EngineConfig) (int, error) {
	if requested == 0 {
		return engine.SweepSteps, nil
	}
	if requested < 0 || requested > engine.MaxSweepSteps {
		return 0, fmt.Errorf("%w: steps must lie in [1, %d], got %d", ahp.ErrOutOfRange, engine.MaxSweepSteps, requested)
	}
	return requested, nil
}

// Sensitivity perturbs one leaf weight of the group model, or of a single
// evaluator when req names one. Without a value it sweeps [0, 1] in
// req.Steps steps, bounded by the engine settings.
func Sensitivity(res *Results, req SensitivityRequest, engine config.EngineConfig) (*SensitivityReport, error) {
	var syn *ahp.Synthesis
	var leafAlt map[string]ahp.PriorityWeights
	basis := GroupBasis
	if req.EvaluatorID == "" {
		syn, leafAlt = res.Group.Synthesis, res.Group.leafAlt
	} else {
		for i := range res.Evaluators {
			if res.Evaluators[i].EvaluatorID == req.EvaluatorID {
				syn, leafAlt = res.Evaluators[i].Synthesis, res.Evaluators[i].leafAlt
			}
		}
		if syn == nil {
			return nil, fmt.Errorf("%w: evaluator %q has no judgments", ahp.ErrUnknownElement, req.EvaluatorID)
		}
		basis = req.EvaluatorID
	}

	start := time.Now()
	report := &SensitivityReport{Basis: basis}
	var err error
	if req.Value != nil {
		report.Point, err = ahp.AnalyzeSensitivity(syn.LeafWeights, req.Target, *req.Value, leafAlt)
		metrics.ObserveComputation("sensitivity", start, err)
	} else {
		var steps int
		steps, err = SweepSteps(req.Steps, engine)
		if err != nil {
			return nil, err
		}
		report.Sweep, err = ahp.SensitivitySweep(syn.LeafWeights, req.Target, leafAlt, steps)
		metrics.ObserveComputation("sensitivity_sweep", start, err)
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

type BudgetRequest struct {
	Budget    float64            `json:"budget"`
	Mandatory []string           `json:"mandatory,omitempty"`
	Excluded  []string           `json:"excluded,omitempty"`
	Mode      ahp.BudgetMode     `json:"mode,omitempty"`
	Strategy  ahp.BudgetStrategy `json:"strategy,omitempty"`
}

// Budget allocates req.Budget over the group ranking, using each
// alternative's stored cost and aggregated score. Request fields left empty
// take their value from defaults.
func Budget(res *Results, snap *store.Snapshot, req BudgetRequest, defaults ahp.BudgetOptions) (*ahp.OptimizationResult, error) {
	costs := make(map[string]float64, len(snap.Alternatives))
	for _, a := range snap.Alternatives {
		if a.Cost != nil {
			costs[a.ID] = *a.Cost
		}
	}
	items, err := ahp.BudgetItemsFromRanking(res.Ranking, costs)
	if err != nil {
		return nil, err
	}

	opts := defaults
	if req.Mode != "" {
		opts.Mode = req.Mode
	}
	if req.Strategy != "" {
		opts.Strategy = req.Strategy
	}

	start := time.Now()
	out, err := ahp.OptimizeBudget(items, req.Budget, toSet(req.Mandatory), toSet(req.Excluded), opts)
	metrics.ObserveComputation("budget", start, err)
	return out, err
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
