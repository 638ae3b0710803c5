package hermes

import "time"

type ComparisonUpsertedEvent struct {
	ProjectID   string    `json:"project_id"`
	EvaluatorID string    `json:"evaluator_id"`
	Count       int       `json:"count"`
	Timestamp   time.Time `json:"timestamp"`
}

type RankedScore struct {
	AlternativeID string  `json:"alternativeId"`
	Score         float64 `json:"score"`
	Rank          int     `json:"rank"`
}

type ResultsComputedEvent struct {
	ProjectID    string        `json:"project_id"`
	SnapshotHash string        `json:"snapshot_hash"`
	Evaluators   int           `json:"evaluators"`
	Ranking      []RankedScore `json:"ranking"`
	Inconsistent []string      `json:"inconsistent_evaluators,omitempty"`
	Timestamp    time.Time     `json:"timestamp"`
}

type BudgetOptimizedEvent struct {
	ProjectID    string    `json:"project_id"`
	Mode         string    `json:"mode"`
	Strategy     string    `json:"strategy"`
	Budget       float64   `json:"budget"`
	TotalCost    float64   `json:"total_cost"`
	TotalUtility float64   `json:"total_utility"`
	Selected     []string  `json:"selected"`
	Infeasible   []string  `json:"infeasible_mandatory,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}
