// Package study loads self-contained AHP studies from YAML or JSON files so
// they can be computed without a database.
package study

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Priority/internal/ahp"
	"github.com/MikeSquared-Agency/Priority/internal/analysis"
	"github.com/MikeSquared-Agency/Priority/internal/store"
	"github.com/MikeSquared-Agency/Priority/internal/validation"
)

type Study struct {
	Name         string        `mapstructure:"name"`
	Description  string        `mapstructure:"description"`
	Criteria     []Criterion   `mapstructure:"criteria"`
	Alternatives []Alternative `mapstructure:"alternatives"`
	Evaluators   []Evaluator   `mapstructure:"evaluators"`
	Budget       *Budget       `mapstructure:"budget"`
}

type Criterion struct {
	ID     string `mapstructure:"id"`
	Name   string `mapstructure:"name"`
	Parent string `mapstructure:"parent"`
}

type Alternative struct {
	ID   string   `mapstructure:"id"`
	Name string   `mapstructure:"name"`
	Cost *float64 `mapstructure:"cost"`
}

type Evaluator struct {
	ID          string           `mapstructure:"id"`
	Weight      float64          `mapstructure:"weight"`
	Comparisons []ahp.Comparison `mapstructure:"comparisons"`
}

// Budget holds the default budget run of a study.
type Budget struct {
	Amount    float64  `mapstructure:"amount"`
	Mandatory []string `mapstructure:"mandatory"`
	Excluded  []string `mapstructure:"excluded"`
}

// ValidationError lists every schema violation found in a study file.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid study:\n  " + strings.Join(e.Problems, "\n  ")
}

func Load(path string) (*Study, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read study: %w", err)
	}
	return Parse(data)
}

// Parse validates data against the study schema and decodes it.
func Parse(data []byte) (*Study, error) {
	doc, problems := validation.ParseStudy(data)
	if len(problems) > 0 {
		return nil, &ValidationError{Problems: problems}
	}
	var s Study
	if err := mapstructure.Decode(doc, &s); err != nil {
		return nil, fmt.Errorf("decode study: %w", err)
	}
	return &s, nil
}

// ProjectID derives a stable project id from the study name.
func (s *Study) ProjectID() uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(s.Name))
}

// Snapshot converts the study into the store representation the analysis
// package computes on. Every comparison is checked against its context.
func (s *Study) Snapshot() (*store.Snapshot, error) {
	id := s.ProjectID()
	now := time.Now().UTC()
	snap := &store.Snapshot{
		Project: &store.Project{ID: id, Name: s.Name, Description: s.Description, CreatedAt: now, UpdatedAt: now},
	}
	for i, c := range s.Criteria {
		snap.Criteria = append(snap.Criteria, store.Criterion{ProjectID: id, ID: c.ID, Name: c.Name, ParentID: c.Parent, Position: i})
	}
	for i, a := range s.Alternatives {
		snap.Alternatives = append(snap.Alternatives, store.Alternative{ProjectID: id, ID: a.ID, Name: a.Name, Cost: a.Cost, Position: i})
	}

	model, err := analysis.BuildModel(snap)
	if err != nil {
		return nil, err
	}
	for _, e := range s.Evaluators {
		weight := e.Weight
		if weight == 0 {
			weight = ahp.DefaultEvaluatorWeight
		}
		snap.Evaluators = append(snap.Evaluators, store.Evaluator{ProjectID: id, ID: e.ID, Weight: weight, UpdatedAt: now})
		for _, c := range e.Comparisons {
			if err := model.CheckComparison(c); err != nil {
				return nil, fmt.Errorf("evaluator %q: %w", e.ID, err)
			}
			row := store.Comparison{ProjectID: id, EvaluatorID: e.ID, ElementA: c.ElementA, ElementB: c.ElementB, Value: c.Value, UpdatedAt: now}
			if c.ParentContextID != nil {
				row.ParentID = *c.ParentContextID
			}
			snap.Comparisons = append(snap.Comparisons, row.Canonical())
		}
	}
	return snap, nil
}

// Run computes the study's results.
func (s *Study) Run(ctx context.Context, opts analysis.Options) (*analysis.Results, *store.Snapshot, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, nil, err
	}
	res, err := analysis.Evaluate(ctx, snap, opts)
	if err != nil {
		return nil, nil, err
	}
	res.SnapshotHash = analysis.SnapshotHash(snap, opts.ConsistencyThreshold)
	res.ComputedAt = time.Now().UTC()
	return res, snap, nil
}
