package core

// Recompute restores every derived total under b and returns b.
//
// Each category's total becomes the sum of its entries. Each bucket's planned
// and current become the sums of planned and total over the categories of
// that kind. Categories with an unknown kind count as expenses. The function
// does no I/O, never fails, and is idempotent; a budget without categories
// ends with all totals at zero.
func Recompute(b *Budget) *Budget {
	if b == nil {
		return nil
	}

	var income, savings, expenses Rollup
	for i := range b.Categories {
		c := &b.Categories[i]

		var total Money
		for _, e := range c.Entries {
			total = total.Add(e.Amount)
		}
		c.total = total

		var r *Rollup
		switch c.Kind {
		case KindIncome:
			r = &income
		case KindSavings:
			r = &savings
		default:
			r = &expenses
		}
		r.Planned = r.Planned.Add(c.Planned)
		r.Current = r.Current.Add(total)
	}

	b.income, b.savings, b.expenses = income, savings, expenses
	return b
}

// checkTotals reports a ValidationError when a category total or a bucket
// roll-up of b cannot be represented. Callers run it before Recompute so a
// change that would wrap a sum around is rejected instead of stored.
func checkTotals(b *Budget) error {
	planned := map[CategoryKind]Money{}
	current := map[CategoryKind]Money{}
	for _, c := range b.Categories {
		kind := c.Kind
		if !kind.Valid() {
			kind = KindExpenses
		}
		var total Money
		for _, e := range c.Entries {
			var ok bool
			if total, ok = total.addChecked(e.Amount); !ok {
				return Invalid("amount", "would push the "+c.Name+" total out of range")
			}
		}
		var ok bool
		if current[kind], ok = current[kind].addChecked(total); !ok {
			return Invalid("amount", "would push the "+kind.Label()+" total out of range")
		}
		if planned[kind], ok = planned[kind].addChecked(c.Planned); !ok {
			return Invalid("planned", "would push the "+kind.Label()+" plan out of range")
		}
	}
	return nil
}

// RecomputeAll recomputes every budget the user owns.
func RecomputeAll(u *User) {
	for i := range u.Budgets {
		Recompute(&u.Budgets[i])
	}
}
