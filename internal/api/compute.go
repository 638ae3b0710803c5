package api

import (
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/Priority/internal/ahp"
	"github.com/MikeSquared-Agency/Priority/internal/analysis"
	"github.com/MikeSquared-Agency/Priority/internal/config"
	"github.com/MikeSquared-Agency/Priority/internal/metrics"
)

// ComputeHandler exposes the engine statelessly: every request carries all
// of its inputs and nothing is persisted.
type ComputeHandler struct {
	engine config.EngineConfig
}

func NewComputeHandler(engine config.EngineConfig) *ComputeHandler {
	return &ComputeHandler{engine: engine}
}

// MatrixRequest describes a matrix either densely (Matrix) or by sparse
// judgments (Comparisons).
type MatrixRequest struct {
	Elements    []string         `json:"elements"`
	Comparisons []ahp.Comparison `json:"comparisons,omitempty"`
	Matrix      [][]float64      `json:"matrix,omitempty"`
}

func (req MatrixRequest) build() (*ahp.Matrix, error) {
	if req.Matrix != nil {
		return ahp.NewMatrix(req.Elements, req.Matrix)
	}
	return ahp.BuildMatrix(req.Elements, req.Comparisons)
}

type MatrixResponse struct {
	Elements []string    `json:"elements"`
	Matrix   [][]float64 `json:"matrix"`
	Answered int         `json:"answered"`
	Required int         `json:"required"`
	Complete bool        `json:"complete"`
}

func (h *ComputeHandler) Matrix(w http.ResponseWriter, r *http.Request) {
	var req MatrixRequest
	if !decode(w, r, &req) {
		return
	}
	start := time.Now()
	m, err := req.build()
	metrics.ObserveComputation("matrix", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MatrixResponse{
		Elements: m.Elements(),
		Matrix:   m.Rows(),
		Answered: m.Answered(),
		Required: m.Required(),
		Complete: m.Complete(),
	})
}

func (h *ComputeHandler) Weights(w http.ResponseWriter, r *http.Request) {
	var req MatrixRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := req.build()
	if err != nil {
		writeError(w, err)
		return
	}
	start := time.Now()
	weights, err := ahp.SolveWeights(m)
	metrics.ObserveComputation("weights", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, weights)
}

type ConsistencyResponse struct {
	Weights     ahp.PriorityWeights    `json:"weights"`
	Consistency ahp.ConsistencyReport  `json:"consistency"`
	WorstPairs  []ahp.InconsistentPair `json:"worst_pairs"`
}

func (h *ComputeHandler) Consistency(w http.ResponseWriter, r *http.Request) {
	var req MatrixRequest
	if !decode(w, r, &req) {
		return
	}
	m, err := req.build()
	if err != nil {
		writeError(w, err)
		return
	}
	start := time.Now()
	weights, err := ahp.SolveWeights(m)
	if err != nil {
		metrics.ObserveComputation("consistency", start, err)
		writeError(w, err)
		return
	}
	report, err := ahp.EvaluateConsistency(m, weights)
	metrics.ObserveComputation("consistency", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	report.Acceptable = report.AcceptableAt(h.engine.ConsistencyThreshold)
	pairs, err := ahp.InconsistentPairs(m, weights, 3)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ConsistencyResponse{Weights: weights, Consistency: report, WorstPairs: pairs})
}

type SynthesisRequest struct {
	Root             string                         `json:"root"`
	Nodes            []ahp.CriteriaNode             `json:"nodes"`
	Local            map[string]ahp.PriorityWeights `json:"local"`
	LeafAlternatives map[string]ahp.PriorityWeights `json:"leafAlternatives"`
}

func (h *ComputeHandler) Synthesis(w http.ResponseWriter, r *http.Request) {
	var req SynthesisRequest
	if !decode(w, r, &req) {
		return
	}
	start := time.Now()
	hier, err := ahp.NewHierarchy(req.Root, req.Nodes)
	if err != nil {
		metrics.ObserveComputation("synthesis", start, err)
		writeError(w, err)
		return
	}
	syn, err := ahp.Synthesize(hier, req.Local, req.LeafAlternatives)
	metrics.ObserveComputation("synthesis", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"synthesis": syn,
		"ranking":   ahp.Rank(syn.Scores),
	})
}

// GroupRequest aggregates either evaluator scores or, when Matrices is set,
// individual judgments.
type GroupRequest struct {
	Scores           map[string]map[string]float64 `json:"scores,omitempty"`
	Matrices         map[string]MatrixRequest      `json:"matrices,omitempty"`
	EvaluatorWeights map[string]float64            `json:"evaluatorWeights,omitempty"`
}

func (h *ComputeHandler) Group(w http.ResponseWriter, r *http.Request) {
	var req GroupRequest
	if !decode(w, r, &req) {
		return
	}
	start := time.Now()
	if len(req.Matrices) == 0 {
		ranking, err := ahp.AggregateGroup(req.Scores, req.EvaluatorWeights)
		metrics.ObserveComputation("group", start, err)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"ranking": ranking})
		return
	}

	matrices := make(map[string]*ahp.Matrix, len(req.Matrices))
	for id, mr := range req.Matrices {
		m, err := mr.build()
		if err != nil {
			writeError(w, err)
			return
		}
		matrices[id] = m
	}
	group, err := ahp.AggregateJudgments(matrices, req.EvaluatorWeights)
	var weights ahp.PriorityWeights
	if err == nil {
		weights, err = ahp.SolveWeights(group)
	}
	metrics.ObserveComputation("group_judgments", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"elements": group.Elements(),
		"matrix":   group.Rows(),
		"weights":  weights,
	})
}

type SensitivityRequest struct {
	LeafWeights      map[string]float64             `json:"leafWeights"`
	Target           string                         `json:"target"`
	Value            *float64                       `json:"value,omitempty"`
	Steps            int                            `json:"steps,omitempty"`
	LeafAlternatives map[string]ahp.PriorityWeights `json:"leafAlternatives"`
}

func (h *ComputeHandler) Sensitivity(w http.ResponseWriter, r *http.Request) {
	var req SensitivityRequest
	if !decode(w, r, &req) {
		return
	}
	start := time.Now()
	if req.Value != nil {
		res, err := ahp.AnalyzeSensitivity(req.LeafWeights, req.Target, *req.Value, req.LeafAlternatives)
		metrics.ObserveComputation("sensitivity", start, err)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
		return
	}
	steps, err := analysis.SweepSteps(req.Steps, h.engine)
	if err != nil {
		writeError(w, err)
		return
	}
	sweep, err := ahp.SensitivitySweep(req.LeafWeights, req.Target, req.LeafAlternatives, steps)
	metrics.ObserveComputation("sensitivity_sweep", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sweep)
}

type BudgetRequest struct {
	Items     []ahp.BudgetItem   `json:"items"`
	Budget    float64            `json:"budget"`
	Mandatory []string           `json:"mandatory,omitempty"`
	Excluded  []string           `json:"excluded,omitempty"`
	Mode      ahp.BudgetMode     `json:"mode,omitempty"`
	Strategy  ahp.BudgetStrategy `json:"strategy,omitempty"`
}

func (h *ComputeHandler) Budget(w http.ResponseWriter, r *http.Request) {
	var req BudgetRequest
	if !decode(w, r, &req) {
		return
	}
	opts := ahp.BudgetOptions{
		Mode:           ahp.BudgetMode(h.engine.BudgetMode),
		Strategy:       ahp.BudgetStrategy(h.engine.BudgetStrategy),
		ExactItemLimit: h.engine.ExactItemLimit,
	}
	if req.Mode != "" {
		opts.Mode = req.Mode
	}
	if req.Strategy != "" {
		opts.Strategy = req.Strategy
	}
	start := time.Now()
	res, err := ahp.OptimizeBudget(req.Items, req.Budget, set(req.Mandatory), set(req.Excluded), opts)
	metrics.ObserveComputation("budget", start, err)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func set(ids []string) map[string]bool {
	out := make(map[string]bool, len(ids))
	for _, id := range ids {
		out[id] = true
	}
	return out
}
