package analysis

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Priority/internal/ahp"
	"github.com/MikeSquared-Agency/Priority/internal/config"
	"github.com/MikeSquared-Agency/Priority/internal/hermes"
	"github.com/MikeSquared-Agency/Priority/internal/store"
)

type mockHermes struct {
	mock.Mock
}

func (m *mockHermes) Publish(subject string, data interface{}) error {
	args := m.Called(subject, data)
	return args.Error(0)
}

func (m *mockHermes) Subscribe(subject string, handler func(string, []byte)) error {
	args := m.Called(subject, handler)
	return args.Error(0)
}

func (m *mockHermes) Close() {}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func f64(v float64) *float64 { return &v }
func ptr(s string) *string     { return &s }

func setupAnalyzer(t *testing.T, h hermes.Client) (*Analyzer, store.Store) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "priority.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return New(s, h, config.Default(), testLogger()), s
}

// seedProject creates the goal -> {cost, quality} -> {x, y} study.
func seedProject(t *testing.T, s store.Store) uuid.UUID {
	t.Helper()
	ctx := context.Background()
	p := &store.Project{Name: "Vendor selection"}
	require.NoError(t, s.CreateProject(ctx, p))
	for _, id := range []string{"cost", "quality"} {
		require.NoError(t, s.AddCriterion(ctx, &store.Criterion{ProjectID: p.ID, ID: id}))
	}
	require.NoError(t, s.AddAlternative(ctx, &store.Alternative{ProjectID: p.ID, ID: "x", Cost: f64(60)}))
	require.NoError(t, s.AddAlternative(ctx, &store.Alternative{ProjectID: p.ID, ID: "y", Cost: f64(50)}))
	return p.ID
}

// judgments returns a full set where cost:quality = top and x beats y 3:1 on
// cost and loses 1:3 on quality.
func judgments(top float64) []ahp.Comparison {
	return []ahp.Comparison{
		{ElementA: "cost", ElementB: "quality", Value: top},
		{ElementA: "x", ElementB: "y", Value: 3, ParentContextID: ptr("cost")},
		{ElementA: "x", ElementB: "y", Value: 1.0 / 3, ParentContextID: ptr("quality")},
	}
}

func TestSubmitAndResults(t *testing.T) {
	a, s := setupAnalyzer(t, nil)
	ctx := context.Background()
	id := seedProject(t, s)

	stored, err := a.SubmitComparisons(ctx, id, "alice", judgments(1.0/3))
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	res, err := a.Results(ctx, id)
	require.NoError(t, err)
	require.Len(t, res.Evaluators, 1)
	assert.Equal(t, "alice", res.Evaluators[0].EvaluatorID)
	assert.True(t, res.Evaluators[0].Complete)
	assert.True(t, res.Evaluators[0].Consistent)

	// cost 0.25, quality 0.75: x = 0.25*0.75 + 0.75*0.25, y = 1 - x.
	require.Len(t, res.Ranking, 2)
	assert.Equal(t, "y", res.Ranking[0].AlternativeID)
	assert.InDelta(t, 0.625, res.Ranking[0].Score, 1e-9)
	assert.InDelta(t, 0.375, res.Ranking[1].Score, 1e-9)
	assert.Empty(t, res.Inconsistent)
	assert.NotEmpty(t, res.SnapshotHash)

	// One evaluator: the aggregated judgments reproduce the individual result.
	assert.InDelta(t, 0.625, res.Group.Synthesis.Scores["y"], 1e-9)
}

func TestGroupResultsWeighted(t *testing.T) {
	a, s := setupAnalyzer(t, nil)
	ctx := context.Background()
	id := seedProject(t, s)

	_, err := a.SubmitComparisons(ctx, id, "alice", judgments(1.0/3))
	require.NoError(t, err)
	_, err = a.SubmitComparisons(ctx, id, "bob", judgments(3))
	require.NoError(t, err)
	require.NoError(t, s.UpsertEvaluator(ctx, &store.Evaluator{ProjectID: id, ID: "bob", Weight: 3}))

	res, err := a.Results(ctx, id)
	require.NoError(t, err)
	require.Len(t, res.Evaluators, 2)

	// alice: x 0.375, bob: x 0.625; weighted (1*0.375 + 3*0.625) / 4.
	assert.Equal(t, "x", res.Ranking[0].AlternativeID)
	assert.InDelta(t, 0.5625, res.Ranking[0].Score, 1e-9)
	assert.InDelta(t, 0.4375, res.Ranking[1].Score, 1e-9)
	assert.Equal(t, 3.0, res.Evaluators[1].Weight)
}

func TestResultsNoJudgments(t *testing.T) {
	a, s := setupAnalyzer(t, nil)
	id := seedProject(t, s)

	_, err := a.Results(context.Background(), id)
	assert.ErrorIs(t, err, ahp.ErrNoEvaluatorData)
}

func TestResultsMissingProject(t *testing.T) {
	a, _ := setupAnalyzer(t, nil)

	_, err := a.Results(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrProjectNotFound)
}

func TestSubmitRejectsBadComparisons(t *testing.T) {
	a, s := setupAnalyzer(t, nil)
	ctx := context.Background()
	id := seedProject(t, s)

	tests := []struct {
		name string
		comp ahp.Comparison
		want error
	}{
		{"unknown element", ahp.Comparison{ElementA: "cost", ElementB: "speed", Value: 2}, ahp.ErrUnknownElement},
		{"alternative at top level", ahp.Comparison{ElementA: "x", ElementB: "y", Value: 2}, ahp.ErrUnknownElement},
		{"unknown parent", ahp.Comparison{ElementA: "x", ElementB: "y", Value: 2, ParentContextID: ptr("speed")}, ahp.ErrUnknownElement},
		{"self", ahp.Comparison{ElementA: "cost", ElementB: "cost", Value: 1}, ahp.ErrSelfComparison},
		{"off scale", ahp.Comparison{ElementA: "cost", ElementB: "quality", Value: 12}, ahp.ErrInvalidComparisonValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.SubmitComparisons(ctx, id, "alice", []ahp.Comparison{tt.comp})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	comps, err := s.ListComparisons(ctx, id, "")
	require.NoError(t, err)
	assert.Empty(t, comps, "rejected batches must not write anything")
}

func TestSubmitRegistersEvaluator(t *testing.T) {
	a, s := setupAnalyzer(t, nil)
	ctx := context.Background()
	id := seedProject(t, s)

	_, err := a.SubmitComparisons(ctx, id, "carol", judgments(2))
	require.NoError(t, err)

	snap, err := s.Snapshot(ctx, id)
	require.NoError(t, err)
	require.Len(t, snap.Evaluators, 1)
	assert.Equal(t, "carol", snap.Evaluators[0].ID)
	assert.Equal(t, ahp.DefaultEvaluatorWeight, snap.Evaluators[0].Weight)
}

func TestResultsMemoized(t *testing.T) {
	a, s := setupAnalyzer(t, nil)
	ctx := context.Background()
	id := seedProject(t, s)
	_, err := a.SubmitComparisons(ctx, id, "alice", judgments(1.0/3))
	require.NoError(t, err)

	first, err := a.Results(ctx, id)
	require.NoError(t, err)
	second, err := a.Results(ctx, id)
	require.NoError(t, err)
	assert.Same(t, first, second)

	stats := a.CacheStats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)

	_, err = a.SubmitComparisons(ctx, id, "alice", judgments(5))
	require.NoError(t, err)
	third, err := a.Results(ctx, id)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	assert.NotEqual(t, first.SnapshotHash, third.SnapshotHash)

	assert.Equal(t, 1, a.FlushCache())
	assert.Equal(t, 0, a.CacheStats().Entries)
}

func TestCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := newResultCache(2)
	c.put("a", "h1", &Results{})
	c.put("b", "h2", &Results{})
	_, ok := c.get("a", "h1")
	require.True(t, ok)

	c.put("c", "h3", &Results{})
	_, ok = c.get("b", "h2")
	assert.False(t, ok, "b was least recently used")
	_, ok = c.get("a", "h1")
	assert.True(t, ok)
	_, ok = c.get("a", "stale")
	assert.False(t, ok)
}

func TestCacheDisabled(t *testing.T) {
	c := newResultCache(0)
	c.put("a", "h1", &Results{})
	_, ok := c.get("a", "h1")
	assert.False(t, ok)
}

func TestSensitivityGroupAndEvaluator(t *testing.T) {
	a, s := setupAnalyzer(t, nil)
	ctx := context.Background()
	id := seedProject(t, s)
	_, err := a.SubmitComparisons(ctx, id, "alice", judgments(1.0/3))
	require.NoError(t, err)

	// Raising cost to 0.75 mirrors the weights, so x wins.
	rep, err := a.Sensitivity(ctx, id, SensitivityRequest{Target: "cost", Value: f64(0.75)})
	require.NoError(t, err)
	assert.Equal(t, GroupBasis, rep.Basis)
	require.NotNil(t, rep.Point)
	assert.InDelta(t, 0.625, rep.Point.Scores["x"], 1e-9)
	assert.Equal(t, "x", rep.Point.Ranking[0].AlternativeID)

	rep, err = a.Sensitivity(ctx, id, SensitivityRequest{EvaluatorID: "alice", Target: "cost", Steps: 5})
	require.NoError(t, err)
	require.NotNil(t, rep.Sweep)
	assert.Len(t, rep.Sweep.Points, 6)
	assert.Equal(t, []float64{0.6}, rep.Sweep.Reversals)

	_, err = a.Sensitivity(ctx, id, SensitivityRequest{EvaluatorID: "nobody", Target: "cost", Value: f64(0.5)})
	assert.ErrorIs(t, err, ahp.ErrUnknownElement)
}

func TestSensitivitySweepStepsBounded(t *testing.T) {
	a, s := setupAnalyzer(t, nil)
	ctx := context.Background()
	id := seedProject(t, s)
	_, err := a.SubmitComparisons(ctx, id, "alice", judgments(1.0/3))
	require.NoError(t, err)

	rep, err := a.Sensitivity(ctx, id, SensitivityRequest{Target: "cost"})
	require.NoError(t, err)
	assert.Len(t, rep.Sweep.Points, config.Default().Engine.SweepSteps+1)

	_, err = a.Sensitivity(ctx, id, SensitivityRequest{Target: "cost", Steps: 2000000000})
	assert.ErrorIs(t, err, ahp.ErrOutOfRange)

	_, err = a.Sensitivity(ctx, id, SensitivityRequest{Target: "cost", Steps: -1})
	assert.ErrorIs(t, err, ahp.ErrOutOfRange)
}

func TestBudget(t *testing.T) {
	a, s := setupAnalyzer(t, nil)
	ctx := context.Background()
	id := seedProject(t, s)
	_, err := a.SubmitComparisons(ctx, id, "alice", judgments(1.0/3))
	require.NoError(t, err)

	out, err := a.Budget(ctx, id, BudgetRequest{Budget: 100})
	require.NoError(t, err)
	require.Len(t, out.Allocations, 1)
	assert.Equal(t, "y", out.Allocations[0].AlternativeID)
	assert.InDelta(t, 50, out.TotalCost, 1e-9)
	assert.Equal(t, ahp.ModeBinary, out.Mode)

	out, err = a.Budget(ctx, id, BudgetRequest{Budget: 100, Mandatory: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, "x", out.Allocations[0].AlternativeID)
	assert.True(t, out.Allocations[0].Mandatory)

	out, err = a.Budget(ctx, id, BudgetRequest{Budget: 80, Mode: ahp.ModeContinuous})
	require.NoError(t, err)
	assert.InDelta(t, 80, out.TotalCost, 1e-9)
}

func TestBudgetMissingCost(t *testing.T) {
	a, s := setupAnalyzer(t, nil)
	ctx := context.Background()
	id := seedProject(t, s)
	require.NoError(t, s.AddCriterion(ctx, &store.Criterion{ProjectID: id, ID: "support", ParentID: "quality"}))
	require.NoError(t, s.AddAlternative(ctx, &store.Alternative{ProjectID: id, ID: "z"}))
	_, err := a.SubmitComparisons(ctx, id, "alice", []ahp.Comparison{{ElementA: "cost", ElementB: "quality", Value: 2}})
	require.NoError(t, err)

	_, err = a.Budget(ctx, id, BudgetRequest{Budget: 100})
	assert.ErrorIs(t, err, ahp.ErrInvalidBudgetItem)
}

func TestEventsPublished(t *testing.T) {
	h := &mockHermes{}
	a, s := setupAnalyzer(t, h)
	ctx := context.Background()
	id := seedProject(t, s)
	pid := id.String()

	h.On("Publish", hermes.SubjectComparisonUpserted(pid), mock.MatchedBy(func(e hermes.ComparisonUpsertedEvent) bool {
		return e.EvaluatorID == "alice" && e.Count == 3
	})).Return(nil).Once()
	h.On("Publish", hermes.SubjectResultsComputed(pid), mock.AnythingOfType("hermes.ResultsComputedEvent")).Return(nil).Once()
	h.On("Publish", hermes.SubjectBudgetOptimized(pid), mock.MatchedBy(func(e hermes.BudgetOptimizedEvent) bool {
		return e.Budget == 100 && len(e.Selected) == 1 && e.Selected[0] == "y"
	})).Return(nil).Once()

	_, err := a.SubmitComparisons(ctx, id, "alice", judgments(1.0/3))
	require.NoError(t, err)
	_, err = a.Results(ctx, id)
	require.NoError(t, err)
	// Cached: no second results event.
	_, err = a.Budget(ctx, id, BudgetRequest{Budget: 100})
	require.NoError(t, err)

	h.AssertExpectations(t)
}

func TestSubscriptionInvalidates(t *testing.T) {
	h := &mockHermes{}
	var handler func(string, []byte)
	h.On("Subscribe", hermes.SubjectComparisonUpsertedAll, mock.Anything).
		Run(func(args mock.Arguments) { handler = args.Get(1).(func(string, []byte)) }).
		Return(nil)

	a, _ := setupAnalyzer(t, h)
	require.NoError(t, a.SetupSubscriptions())
	require.NotNil(t, handler)

	a.cache.put("p1", "h", &Results{})
	handler(hermes.SubjectComparisonUpserted("p1"), nil)
	_, ok := a.cache.get("p1", "h")
	assert.False(t, ok)
}

func TestSetupSubscriptionsWithoutHermes(t *testing.T) {
	a, _ := setupAnalyzer(t, nil)
	assert.NoError(t, a.SetupSubscriptions())
}

func TestAddCriterionRejectsJudgedLeaf(t *testing.T) {
	a, s := setupAnalyzer(t, nil)
	ctx := context.Background()
	id := seedProject(t, s)

	// Quality has no judgments yet, so it may still be split.
	require.NoError(t, a.AddCriterion(ctx, &store.Criterion{ProjectID: id, ID: "durability", ParentID: "quality"}))
	require.NoError(t, a.AddCriterion(ctx, &store.Criterion{ProjectID: id, ID: "finish", ParentID: "quality"}))

	_, err := a.SubmitComparisons(ctx, id, "alice", []ahp.Comparison{
		{ElementA: "cost", ElementB: "quality", Value: 1},
		{ElementA: "x", ElementB: "y", Value: 3, ParentContextID: ptr("cost")},
	})
	require.NoError(t, err)

	err = a.AddCriterion(ctx, &store.Criterion{ProjectID: id, ID: "capex", ParentID: "cost"})
	assert.ErrorIs(t, err, ErrContextLocked)
	assert.ErrorIs(t, err, store.ErrConflict)

	// A parent that already has children keeps accepting siblings.
	require.NoError(t, a.AddCriterion(ctx, &store.Criterion{ProjectID: id, ID: "looks", ParentID: "quality"}))

	err = a.AddCriterion(ctx, &store.Criterion{ProjectID: id, ID: "opex", ParentID: "missing"})
	assert.Equal(t, ahp.KindInvalidInput, ahp.KindOf(err))

	err = a.AddCriterion(ctx, &store.Criterion{ProjectID: uuid.New(), ID: "opex", ParentID: "cost"})
	assert.ErrorIs(t, err, ErrProjectNotFound)

	res, err := a.Results(ctx, id)
	require.NoError(t, err)
	assert.Len(t, res.Ranking, 2)
}

func TestResultsSkipStaleJudgmentsAfterLeafSplit(t *testing.T) {
	a, s := setupAnalyzer(t, nil)
	ctx := context.Background()
	id := seedProject(t, s)

	_, err := a.SubmitComparisons(ctx, id, "alice", judgments(1.0/3))
	require.NoError(t, err)

	// Written straight to the store, as an older deployment could have.
	for _, sub := range []string{"capex", "opex"} {
		require.NoError(t, s.AddCriterion(ctx, &store.Criterion{ProjectID: id, ID: sub, ParentID: "cost"}))
	}

	res, err := a.Results(ctx, id)
	require.NoError(t, err)
	require.Len(t, res.Evaluators, 1)
	assert.False(t, res.Evaluators[0].Complete)

	var costCtx *ContextReport
	for i := range res.Evaluators[0].Contexts {
		if res.Evaluators[0].Contexts[i].Node == "cost" {
			costCtx = &res.Evaluators[0].Contexts[i]
		}
	}
	require.NotNil(t, costCtx)
	assert.Equal(t, 1, costCtx.Stale)
	assert.False(t, costCtx.Alternatives)
	assert.Equal(t, 0, costCtx.Answered)
	assert.InDelta(t, 1.0, res.Group.Synthesis.Scores["x"]+res.Group.Synthesis.Scores["y"], 1e-9)
}
