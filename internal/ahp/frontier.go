package ahp

// Frontier returns the budget items that no other item dominates. An item
// dominates another when it offers at least as much utility for no more cost
// and is strictly better on one of the two.
// O(n^2) dominance check, fine for the alternative counts a study carries.
func Frontier(items []BudgetItem) []BudgetItem {
	if len(items) <= 1 {
		return items
	}

	var frontier []BudgetItem
	for i := range items {
		dominated := false
		for j := range items {
			if i == j {
				continue
			}
			if dominates(items[j], items[i]) {
				dominated = true
				break
			}
		}
		if !dominated {
			frontier = append(frontier, items[i])
		}
	}
	return frontier
}

func dominates(a, b BudgetItem) bool {
	if a.Utility < b.Utility || a.Cost > b.Cost {
		return false
	}
	return a.Utility > b.Utility || a.Cost < b.Cost
}
