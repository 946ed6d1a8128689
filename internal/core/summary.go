package core

import "sort"

// CategorySummary is a display row for one category.
type CategorySummary struct {
	ID        string
	Name      string
	Kind      CategoryKind
	Planned   Money
	Total     Money
	Remaining Money
	Entries   int
}

// BucketSummary groups the categories of one kind with their rollup.
type BucketSummary struct {
	Kind       CategoryKind
	Planned    Money
	Current    Money
	Remaining  Money
	Categories []CategorySummary
}

// BudgetSummary is a compact, read-only view of a budget.
type BudgetSummary struct {
	BudgetID string
	Period   Period
	Buckets  []BucketSummary
	// Net is income received minus savings and expenses posted.
	Net Money
}

// Bucket returns the summary for kind.
func (s BudgetSummary) Bucket(kind CategoryKind) BucketSummary {
	for _, b := range s.Buckets {
		if b.Kind == kind {
			return b
		}
	}
	return BucketSummary{Kind: kind}
}

// Summarize builds a BudgetSummary from an already recomputed budget.
func Summarize(b Budget) BudgetSummary {
	s := BudgetSummary{BudgetID: b.ID, Period: b.Period}
	for _, kind := range Kinds() {
		r := b.Rollup(kind)
		bucket := BucketSummary{
			Kind:      kind,
			Planned:   r.Planned,
			Current:   r.Current,
			Remaining: r.Remaining(),
		}
		for _, c := range b.CategoriesOf(kind) {
			bucket.Categories = append(bucket.Categories, CategorySummary{
				ID:        c.ID,
				Name:      c.Name,
				Kind:      c.Kind,
				Planned:   c.Planned,
				Total:     c.Total(),
				Remaining: c.Remaining(),
				Entries:   len(c.Entries),
			})
		}
		s.Buckets = append(s.Buckets, bucket)
	}
	s.Net = b.income.Current.Sub(b.savings.Current).Sub(b.expenses.Current)
	return s
}

// YearBudgets is one year's worth of budgets, oldest month first.
type YearBudgets struct {
	Year    int
	Budgets []Budget
}

// GroupBudgetsByYear buckets budgets by year, years ascending.
func GroupBudgetsByYear(budgets []Budget) []YearBudgets {
	byYear := map[int][]Budget{}
	for _, b := range budgets {
		byYear[b.Year] = append(byYear[b.Year], b)
	}
	out := make([]YearBudgets, 0, len(byYear))
	for year, list := range byYear {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].MonthNumber() < list[j].MonthNumber()
		})
		out = append(out, YearBudgets{Year: year, Budgets: list})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out
}

// DayEntries holds the entries posted on one day of the month.
type DayEntries struct {
	Day     int
	Entries []Entry
	Total   Money
}

// GroupEntriesByDay buckets entries by posted day, days ascending. Entries
// keep their original order within a day.
func GroupEntriesByDay(entries []Entry) []DayEntries {
	index := map[int]int{}
	var out []DayEntries
	for _, e := range entries {
		i, ok := index[e.PostedDay]
		if !ok {
			i = len(out)
			index[e.PostedDay] = i
			out = append(out, DayEntries{Day: e.PostedDay})
		}
		out[i].Entries = append(out[i].Entries, e)
		out[i].Total = out[i].Total.Add(e.Amount)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out
}
