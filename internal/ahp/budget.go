package ahp

import (
	"fmt"
	"math"
	"sort"
)

// BudgetMode selects all-or-nothing funding or fractional funding.
type BudgetMode string

const (
	ModeBinary     BudgetMode = "binary"
	ModeContinuous BudgetMode = "continuous"
)

// BudgetStrategy selects how binary instances are solved.
type BudgetStrategy string

const (
	// StrategyGreedy picks items by descending efficiency. It is an advisory
	// heuristic and is not guaranteed optimal for binary selection.
	StrategyGreedy BudgetStrategy = "greedy"
	// StrategyExact runs branch-and-bound on binary instances with at most
	// ExactItemLimit optional items and falls back to greedy above that.
	StrategyExact BudgetStrategy = "exact"
)

const (
	DefaultExactItemLimit = 200

	budgetEpsilon = 1e-9
	// maxSearchNodes caps branch-and-bound work; the best selection found so
	// far is kept when the cap is hit.
	maxSearchNodes = 1 << 22
)

// BudgetOptions configures OptimizeBudget.
type BudgetOptions struct {
	Mode           BudgetMode     `json:"mode"`
	Strategy       BudgetStrategy `json:"strategy"`
	ExactItemLimit int            `json:"exact_item_limit"`
}

// DefaultBudgetOptions returns greedy binary selection.
func DefaultBudgetOptions() BudgetOptions {
	return BudgetOptions{Mode: ModeBinary, Strategy: StrategyGreedy, ExactItemLimit: DefaultExactItemLimit}
}

// BudgetItem is one fundable alternative.
type BudgetItem struct {
	AlternativeID string  `json:"alternativeId" yaml:"alternative" mapstructure:"alternative"`
	Cost          float64 `json:"cost" yaml:"cost" mapstructure:"cost"`
	Utility       float64 `json:"utility" yaml:"utility" mapstructure:"utility"`
}

// Efficiency is utility per unit of cost.
func (b BudgetItem) Efficiency() float64 { return b.Utility / b.Cost }

// Allocation records how much of one item was funded.
type Allocation struct {
	AlternativeID       string  `json:"alternativeId"`
	Cost                float64 `json:"cost"`
	Utility             float64 `json:"utility"`
	Efficiency          float64 `json:"efficiency"`
	Fraction            float64 `json:"fraction"`
	AllocatedCost       float64 `json:"allocated_cost"`
	UtilityContribution float64 `json:"utility_contribution"`
	Mandatory           bool    `json:"mandatory"`
}

// OptimizationResult is the outcome of OptimizeBudget. Infeasible mandatory
// items are reported rather than failing the whole run.
type OptimizationResult struct {
	Mode                BudgetMode     `json:"mode"`
	Strategy            BudgetStrategy `json:"strategy"`
	Allocations         []Allocation   `json:"allocations"`
	TotalUtility        float64        `json:"total_utility"`
	TotalCost           float64        `json:"total_cost"`
	BudgetUtilization   float64        `json:"budget_utilization"`
	EfficiencyScore     float64        `json:"efficiency_score"`
	UnallocatedBudget   float64        `json:"unallocated_budget"`
	InfeasibleMandatory []string       `json:"infeasible_mandatory"`
	Frontier            []string       `json:"frontier"`
}

// OptimizeBudget allocates budget across items. Excluded items are never
// funded; mandatory items are funded first while the budget allows.
func OptimizeBudget(items []BudgetItem, budget float64, mandatory, excluded map[string]bool, opts BudgetOptions) (*OptimizationResult, error) {
	if math.IsNaN(budget) || math.IsInf(budget, 0) || budget < 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBudget, budget)
	}
	if opts.Mode == "" {
		opts.Mode = ModeBinary
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyGreedy
	}
	if opts.Mode != ModeBinary && opts.Mode != ModeContinuous {
		return nil, fmt.Errorf("%w: unknown mode %q", ErrInvalidBudget, opts.Mode)
	}
	if opts.Strategy != StrategyGreedy && opts.Strategy != StrategyExact {
		return nil, fmt.Errorf("%w: unknown strategy %q", ErrInvalidBudget, opts.Strategy)
	}
	if err := validateBudgetItems(items, mandatory, excluded); err != nil {
		return nil, err
	}

	result := &OptimizationResult{
		Mode:                opts.Mode,
		Strategy:            StrategyGreedy,
		InfeasibleMandatory: []string{},
	}
	remaining := budget

	for _, it := range items {
		if !mandatory[it.AlternativeID] {
			continue
		}
		if it.Cost <= remaining+budgetEpsilon {
			result.Allocations = append(result.Allocations, allocate(it, 1, true))
			remaining -= it.Cost
			continue
		}
		result.InfeasibleMandatory = append(result.InfeasibleMandatory, it.AlternativeID)
	}

	var eligible []BudgetItem
	for _, it := range items {
		if mandatory[it.AlternativeID] || excluded[it.AlternativeID] {
			continue
		}
		eligible = append(eligible, it)
	}
	sortByEfficiency(eligible)

	switch {
	case opts.Mode == ModeContinuous:
		for _, it := range eligible {
			if remaining <= budgetEpsilon {
				break
			}
			fraction := math.Min(1, remaining/it.Cost)
			result.Allocations = append(result.Allocations, allocate(it, fraction, false))
			remaining -= fraction * it.Cost
		}
	case opts.Strategy == StrategyExact && len(eligible) <= limitOrDefault(opts.ExactItemLimit):
		result.Strategy = StrategyExact
		for _, it := range branchAndBound(eligible, remaining) {
			result.Allocations = append(result.Allocations, allocate(it, 1, false))
			remaining -= it.Cost
		}
	default:
		for _, it := range eligible {
			if it.Cost <= remaining+budgetEpsilon {
				result.Allocations = append(result.Allocations, allocate(it, 1, false))
				remaining -= it.Cost
			}
		}
	}

	for _, a := range result.Allocations {
		result.TotalCost += a.AllocatedCost
		result.TotalUtility += a.UtilityContribution
	}
	result.UnallocatedBudget = math.Max(0, budget-result.TotalCost)
	if budget > 0 {
		result.BudgetUtilization = math.Min(1, result.TotalCost/budget)
	}
	if result.TotalCost > 0 {
		result.EfficiencyScore = result.TotalUtility / result.TotalCost
	}
	if result.Allocations == nil {
		result.Allocations = []Allocation{}
	}

	var candidates []BudgetItem
	for _, it := range items {
		if !excluded[it.AlternativeID] {
			candidates = append(candidates, it)
		}
	}
	for _, it := range Frontier(candidates) {
		result.Frontier = append(result.Frontier, it.AlternativeID)
	}
	return result, nil
}

// BudgetItemsFromRanking turns the group ranking into budget items, using
// each alternative's aggregated score as its utility.
func BudgetItemsFromRanking(ranked []RankedAlternative, costs map[string]float64) ([]BudgetItem, error) {
	items := make([]BudgetItem, 0, len(ranked))
	for _, r := range ranked {
		cost, ok := costs[r.AlternativeID]
		if !ok {
			return nil, fmt.Errorf("%w: no cost for %q", ErrInvalidBudgetItem, r.AlternativeID)
		}
		items = append(items, BudgetItem{AlternativeID: r.AlternativeID, Cost: cost, Utility: r.Score})
	}
	return items, nil
}

func validateBudgetItems(items []BudgetItem, mandatory, excluded map[string]bool) error {
	ids := make(map[string]bool, len(items))
	for _, it := range items {
		if it.AlternativeID == "" || ids[it.AlternativeID] {
			return fmt.Errorf("%w: id %q", ErrInvalidBudgetItem, it.AlternativeID)
		}
		ids[it.AlternativeID] = true
		if math.IsNaN(it.Cost) || math.IsInf(it.Cost, 0) || it.Cost <= 0 {
			return fmt.Errorf("%w: %q costs %v", ErrInvalidBudgetItem, it.AlternativeID, it.Cost)
		}
		if math.IsNaN(it.Utility) || math.IsInf(it.Utility, 0) || it.Utility < 0 {
			return fmt.Errorf("%w: %q has utility %v", ErrInvalidBudgetItem, it.AlternativeID, it.Utility)
		}
	}
	for id, on := range mandatory {
		if !on {
			continue
		}
		if !ids[id] {
			return fmt.Errorf("%w: mandatory %q", ErrUnknownElement, id)
		}
		if excluded[id] {
			return fmt.Errorf("%w: %q", ErrConflictingConstraints, id)
		}
	}
	for id, on := range excluded {
		if on && !ids[id] {
			return fmt.Errorf("%w: excluded %q", ErrUnknownElement, id)
		}
	}
	return nil
}

func allocate(it BudgetItem, fraction float64, mandatory bool) Allocation {
	return Allocation{
		AlternativeID:       it.AlternativeID,
		Cost:                it.Cost,
		Utility:             it.Utility,
		Efficiency:          it.Efficiency(),
		Fraction:            fraction,
		AllocatedCost:       it.Cost * fraction,
		UtilityContribution: it.Utility * fraction,
		Mandatory:           mandatory,
	}
}

func sortByEfficiency(items []BudgetItem) {
	sort.SliceStable(items, func(i, j int) bool {
		ei, ej := items[i].Efficiency(), items[j].Efficiency()
		if ei != ej {
			return ei > ej
		}
		return items[i].AlternativeID < items[j].AlternativeID
	})
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return DefaultExactItemLimit
	}
	return limit
}

// branchAndBound solves the 0/1 knapsack over items (already sorted by
// efficiency) with a depth-first search pruned by the fractional relaxation.
// The greedy selection seeds the incumbent, so the answer is never worse.
func branchAndBound(items []BudgetItem, capacity float64) []BudgetItem {
	n := len(items)
	best := make([]bool, n)
	var bestValue float64
	{
		left := capacity
		for i, it := range items {
			if it.Cost <= left+budgetEpsilon {
				best[i] = true
				bestValue += it.Utility
				left -= it.Cost
			}
		}
	}

	current := make([]bool, n)
	nodes := 0

	bound := func(i int, left, value float64) float64 {
		for ; i < n; i++ {
			if items[i].Cost <= left+budgetEpsilon {
				left -= items[i].Cost
				value += items[i].Utility
				continue
			}
			return value + items[i].Utility*(left/items[i].Cost)
		}
		return value
	}

	var search func(i int, left, value float64)
	search = func(i int, left, value float64) {
		nodes++
		if nodes > maxSearchNodes {
			return
		}
		if i == n {
			if value > bestValue+budgetEpsilon {
				bestValue = value
				copy(best, current)
			}
			return
		}
		if bound(i, left, value) <= bestValue+budgetEpsilon {
			return
		}
		if items[i].Cost <= left+budgetEpsilon {
			current[i] = true
			search(i+1, left-items[i].Cost, value+items[i].Utility)
			current[i] = false
		}
		search(i+1, left, value)
	}
	search(0, capacity, 0)

	var chosen []BudgetItem
	for i, take := range best {
		if take {
			chosen = append(chosen, items[i])
		}
	}
	return chosen
}
