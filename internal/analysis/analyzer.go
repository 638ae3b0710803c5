package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Priority/internal/ahp"
	"github.com/MikeSquared-Agency/Priority/internal/config"
	"github.com/MikeSquared-Agency/Priority/internal/hermes"
	"github.com/MikeSquared-Agency/Priority/internal/metrics"
	"github.com/MikeSquared-Agency/Priority/internal/store"
)

// ErrProjectNotFound is returned when the project does not exist.
var ErrProjectNotFound = errors.New("project not found")

// ErrContextLocked is returned when a sub-criterion would turn a judged leaf
// criterion into a parent, orphaning its alternative comparisons.
var ErrContextLocked = fmt.Errorf("criterion already has alternative judgments: %w", store.ErrConflict)

// Analyzer serves project computations: it snapshots the store, memoizes
// results by snapshot hash and publishes events on hermes.
type Analyzer struct {
	store  store.Store
	hermes hermes.Client
	cfg    *config.Config
	logger *slog.Logger
	cache  *resultCache
	now    func() time.Time
}

func New(s store.Store, h hermes.Client, cfg *config.Config, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		store:  s,
		hermes: h,
		cfg:    cfg,
		logger: logger,
		cache:  newResultCache(cfg.Engine.CacheSize),
		now:    time.Now,
	}
}

// SetupSubscriptions drops memoized results whenever any instance reports
// new comparisons for a project.
func (a *Analyzer) SetupSubscriptions() error {
	if a.hermes == nil {
		return nil
	}
	return a.hermes.Subscribe(hermes.SubjectComparisonUpsertedAll, func(subject string, _ []byte) {
		id := hermes.ProjectFromSubject(subject)
		if id == "" {
			return
		}
		if a.cache.invalidate(id) {
			a.logger.Debug("invalidated cached results", "project_id", id)
		}
	})
}

func (a *Analyzer) Options() Options {
	return Options{
		ConsistencyThreshold: a.cfg.Engine.ConsistencyThreshold,
		Parallelism:          a.cfg.Engine.Parallelism,
	}
}

// BudgetDefaults returns the configured budget options.
func (a *Analyzer) BudgetDefaults() ahp.BudgetOptions {
	return ahp.BudgetOptions{
		Mode:           ahp.BudgetMode(a.cfg.Engine.BudgetMode),
		Strategy:       ahp.BudgetStrategy(a.cfg.Engine.BudgetStrategy),
		ExactItemLimit: a.cfg.Engine.ExactItemLimit,
	}
}

// SubmitComparisons validates and upserts one evaluator's judgments. All
// comparisons are checked before any is written. Unknown evaluators are
// registered with the default weight.
func (a *Analyzer) SubmitComparisons(ctx context.Context, projectID uuid.UUID, evaluatorID string, comps []ahp.Comparison) ([]store.Comparison, error) {
	if evaluatorID == "" {
		return nil, fmt.Errorf("%w: evaluator id is required", ahp.ErrUnknownElement)
	}
	snap, err := a.snapshot(ctx, projectID)
	if err != nil {
		return nil, err
	}
	model, err := BuildModel(snap)
	if err != nil {
		return nil, err
	}
	for _, c := range comps {
		if err := model.CheckComparison(c); err != nil {
			return nil, err
		}
	}

	var ev *store.Evaluator
	if !snap.HasEvaluator(evaluatorID) {
		ev = &store.Evaluator{ProjectID: projectID, ID: evaluatorID, Weight: ahp.DefaultEvaluatorWeight}
	}
	stored := make([]store.Comparison, 0, len(comps))
	for _, c := range comps {
		row := store.Comparison{
			ProjectID:   projectID,
			EvaluatorID: evaluatorID,
			ElementA:    c.ElementA,
			ElementB:    c.ElementB,
			Value:       c.Value,
		}
		if c.ParentContextID != nil {
			row.ParentID = *c.ParentContextID
		}
		stored = append(stored, row)
	}
	if err := a.store.UpsertComparisons(ctx, ev, stored); err != nil {
		return nil, fmt.Errorf("upsert comparisons: %w", err)
	}
	metrics.ComparisonsUpserted.Add(float64(len(stored)))

	a.Invalidate(projectID.String())
	a.publish("comparison_upserted", hermes.SubjectComparisonUpserted(projectID.String()), hermes.ComparisonUpsertedEvent{
		ProjectID:   projectID.String(),
		EvaluatorID: evaluatorID,
		Count:       len(stored),
		Timestamp:   a.now().UTC(),
	})
	a.logger.Info("comparisons upserted", "project_id", projectID, "evaluator_id", evaluatorID, "count", len(stored))
	return stored, nil
}

// AddCriterion adds c to the hierarchy. A leaf criterion whose alternatives
// have already been compared cannot gain children.
func (a *Analyzer) AddCriterion(ctx context.Context, c *store.Criterion) error {
	if c.ParentID != "" {
		snap, err := a.snapshot(ctx, c.ProjectID)
		if err != nil {
			return err
		}
		found, leaf := false, true
		for _, cr := range snap.Criteria {
			if cr.ID == c.ParentID {
				found = true
			}
			if cr.ParentID == c.ParentID {
				leaf = false
			}
		}
		if !found {
			return fmt.Errorf("%w: unknown parent criterion %q", ahp.ErrUnknownElement, c.ParentID)
		}
		if leaf {
			for _, cmp := range snap.Comparisons {
				if cmp.ParentID == c.ParentID {
					return fmt.Errorf("add %q under %q: %w", c.ID, c.ParentID, ErrContextLocked)
				}
			}
		}
	}
	if err := a.store.AddCriterion(ctx, c); err != nil {
		return err
	}
	a.Invalidate(c.ProjectID.String())
	a.logger.Info("criterion added", "project_id", c.ProjectID, "criterion_id", c.ID, "parent_id", c.ParentID)
	return nil
}

// Results returns the project's computation, from the memo cache when the
// snapshot is unchanged.
func (a *Analyzer) Results(ctx context.Context, projectID uuid.UUID) (*Results, error) {
	res, _, err := a.results(ctx, projectID)
	return res, err
}

func (a *Analyzer) Sensitivity(ctx context.Context, projectID uuid.UUID, req SensitivityRequest) (*SensitivityReport, error) {
	res, _, err := a.results(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return Sensitivity(res, req, a.cfg.Engine)
}

// Budget optimizes the project's budget over its current group ranking.
func (a *Analyzer) Budget(ctx context.Context, projectID uuid.UUID, req BudgetRequest) (*ahp.OptimizationResult, error) {
	res, snap, err := a.results(ctx, projectID)
	if err != nil {
		return nil, err
	}
	out, err := Budget(res, snap, req, a.BudgetDefaults())
	if err != nil {
		return nil, err
	}

	selected := make([]string, 0, len(out.Allocations))
	for _, al := range out.Allocations {
		selected = append(selected, al.AlternativeID)
	}
	a.publish("budget_optimized", hermes.SubjectBudgetOptimized(projectID.String()), hermes.BudgetOptimizedEvent{
		ProjectID:    projectID.String(),
		Mode:         string(out.Mode),
		Strategy:     string(out.Strategy),
		Budget:       req.Budget,
		TotalCost:    out.TotalCost,
		TotalUtility: out.TotalUtility,
		Selected:     selected,
		Infeasible:   out.InfeasibleMandatory,
		Timestamp:    a.now().UTC(),
	})
	return out, nil
}

// Invalidate drops memoized results for a project.
func (a *Analyzer) Invalidate(projectID string) {
	a.cache.invalidate(projectID)
}

func (a *Analyzer) CacheStats() CacheStats {
	return a.cache.stats()
}

// FlushCache empties the memo cache and returns how many entries it held.
func (a *Analyzer) FlushCache() int {
	n := a.cache.flush()
	a.logger.Info("results cache flushed", "entries", n)
	return n
}

func (a *Analyzer) results(ctx context.Context, projectID uuid.UUID) (*Results, *store.Snapshot, error) {
	snap, err := a.snapshot(ctx, projectID)
	if err != nil {
		return nil, nil, err
	}
	hash := SnapshotHash(snap, a.cfg.Engine.ConsistencyThreshold)
	key := projectID.String()
	if res, ok := a.cache.get(key, hash); ok {
		return res, snap, nil
	}

	start := time.Now()
	res, err := Evaluate(ctx, snap, a.Options())
	metrics.ObserveComputation("results", start, err)
	if err != nil {
		return nil, nil, err
	}
	res.SnapshotHash = hash
	res.ComputedAt = a.now().UTC()
	a.cache.put(key, hash, res)

	ranking := make([]hermes.RankedScore, 0, len(res.Ranking))
	for _, r := range res.Ranking {
		ranking = append(ranking, hermes.RankedScore{AlternativeID: r.AlternativeID, Score: r.Score, Rank: r.Rank})
	}
	a.publish("results_computed", hermes.SubjectResultsComputed(key), hermes.ResultsComputedEvent{
		ProjectID:    key,
		SnapshotHash: hash,
		Evaluators:   len(res.Evaluators),
		Ranking:      ranking,
		Inconsistent: res.Inconsistent,
		Timestamp:    res.ComputedAt,
	})
	a.logger.Info("results computed",
		"project_id", key,
		"evaluators", len(res.Evaluators),
		"inconsistent", len(res.Inconsistent),
		"duration", time.Since(start),
	)
	return res, snap, nil
}

func (a *Analyzer) snapshot(ctx context.Context, projectID uuid.UUID) (*store.Snapshot, error) {
	snap, err := a.store.Snapshot(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}
	if snap == nil {
		return nil, ErrProjectNotFound
	}
	return snap, nil
}

func (a *Analyzer) publish(kind, subject string, event interface{}) {
	if a.hermes == nil {
		return
	}
	if err := a.hermes.Publish(subject, event); err != nil {
		metrics.EventsPublished.WithLabelValues(kind, "error").Inc()
		a.logger.Warn("failed to publish event", "subject", subject, "error", err)
		return
	}
	metrics.EventsPublished.WithLabelValues(kind, "ok").Inc()
}
