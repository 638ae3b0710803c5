package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by writes that reference a missing project.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a criterion or alternative id is reused.
	ErrConflict = errors.New("already exists")
)

type Project struct {
	ID          uuid.UUID `json:"project_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Criterion is one node of a project's criteria tree. ParentID is empty for
// top-level criteria, which hang off the project's implicit goal.
type Criterion struct {
	ProjectID uuid.UUID `json:"project_id"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ParentID  string    `json:"parent_id,omitempty"`
	Position  int       `json:"position"`
}

type Alternative struct {
	ProjectID uuid.UUID `json:"project_id"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Cost      *float64  `json:"cost,omitempty"`
	Position  int       `json:"position"`
}

// Evaluator carries the weight of one evaluator's judgments in group
// aggregation.
type Evaluator struct {
	ProjectID uuid.UUID `json:"project_id"`
	ID        string    `json:"id"`
	Weight    float64   `json:"weight"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Comparison is a persisted judgment. ParentID is empty for comparisons
// between top-level criteria.
type Comparison struct {
	ProjectID   uuid.UUID `json:"project_id"`
	EvaluatorID string    `json:"evaluator_id"`
	ParentID    string    `json:"parent_id,omitempty"`
	ElementA    string    `json:"element_a"`
	ElementB    string    `json:"element_b"`
	Value       float64   `json:"value"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Canonical returns c stored under its unordered pair: the lexically smaller
// element first, with the value inverted when the pair is flipped.
func (c Comparison) Canonical() Comparison {
	if c.ElementA > c.ElementB {
		c.ElementA, c.ElementB = c.ElementB, c.ElementA
		c.Value = 1 / c.Value
	}
	return c
}

// Snapshot is everything needed to compute a project's results, read in one
// transaction.
type Snapshot struct {
	Project      *Project      `json:"project"`
	Criteria     []Criterion   `json:"criteria"`
	Alternatives []Alternative `json:"alternatives"`
	Evaluators   []Evaluator   `json:"evaluators"`
	Comparisons  []Comparison  `json:"comparisons"`
}

func (s *Snapshot) HasEvaluator(id string) bool {
	for _, e := range s.Evaluators {
		if e.ID == id {
			return true
		}
	}
	return false
}

// Store persists projects and judgments. Getters return (nil, nil) when the
// row does not exist.
type Store interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id uuid.UUID) (*Project, error)

	AddCriterion(ctx context.Context, c *Criterion) error
	AddAlternative(ctx context.Context, a *Alternative) error
	UpsertEvaluator(ctx context.Context, e *Evaluator) error

	// UpsertComparison keeps one row per (project, evaluator, parent,
	// unordered pair); the latest write wins.
	UpsertComparison(ctx context.Context, c *Comparison) error
	// UpsertComparisons writes a batch in one transaction. When e is not nil
	// it is registered first unless it already exists, in which case its
	// weight is kept. Nothing is written when any row fails.
	UpsertComparisons(ctx context.Context, e *Evaluator, comps []Comparison) error
	ListComparisons(ctx context.Context, projectID uuid.UUID, evaluatorID string) ([]Comparison, error)

	Snapshot(ctx context.Context, projectID uuid.UUID) (*Snapshot, error)
	Close() error
}
