package core

// NoCurrentBudget is the CurrentBudgetID of a user without budgets.
const NoCurrentBudget = "empty"

// SelectCurrentBudget picks the newest budget by (year, numeric month) and
// returns its id, or NoCurrentBudget for an empty slice. On equal periods the
// first budget wins.
func SelectCurrentBudget(budgets []Budget) string {
	if len(budgets) == 0 {
		return NoCurrentBudget
	}
	newest := 0
	for i := 1; i < len(budgets); i++ {
		if budgets[i].Period.Compare(budgets[newest].Period) > 0 {
			newest = i
		}
	}
	return budgets[newest].ID
}
