package core

import "testing"

func TestSummarize(t *testing.T) {
	s := Summarize(*Recompute(sampleBudget()))

	if s.BudgetID != "b1" || s.Period.Name != "March, 2024" {
		t.Errorf("summary header = %q %q", s.BudgetID, s.Period.Name)
	}
	if len(s.Buckets) != 3 {
		t.Fatalf("len(Buckets) = %d, want 3", len(s.Buckets))
	}

	income := s.Bucket(KindIncome)
	if len(income.Categories) != 2 {
		t.Errorf("income categories = %d, want 2", len(income.Categories))
	}
	if income.Remaining.Cents != 180000 {
		t.Errorf("income remaining = %d, want 180000", income.Remaining.Cents)
	}

	groceries := s.Bucket(KindExpenses).Categories[1]
	if groceries.Name != "Groceries" || groceries.Total.Cents != 4432 || groceries.Entries != 2 {
		t.Errorf("groceries = %+v", groceries)
	}

	// 1700.00 - 400.00 - 1244.32
	if s.Net.Cents != 5568 {
		t.Errorf("Net = %d, want 5568", s.Net.Cents)
	}
}

func TestGroupBudgetsByYear(t *testing.T) {
	groups := GroupBudgetsByYear([]Budget{
		budgetAt("a", 2024, 11),
		budgetAt("b", 2023, 5),
		budgetAt("c", 2024, 2),
		budgetAt("d", 2023, 12),
	})
	if len(groups) != 2 {
		t.Fatalf("len(groups) = %d, want 2", len(groups))
	}
	if groups[0].Year != 2023 || groups[1].Year != 2024 {
		t.Errorf("years = %d, %d", groups[0].Year, groups[1].Year)
	}
	if groups[1].Budgets[0].ID != "c" || groups[1].Budgets[1].ID != "a" {
		t.Errorf("2024 order = %s, %s", groups[1].Budgets[0].ID, groups[1].Budgets[1].ID)
	}
	if groups[0].Budgets[0].ID != "b" {
		t.Errorf("2023 first = %s, want b", groups[0].Budgets[0].ID)
	}
}

func TestGroupEntriesByDay(t *testing.T) {
	days := GroupEntriesByDay([]Entry{
		{ID: "1", PostedDay: 15, Amount: money(100)},
		{ID: "2", PostedDay: 3, Amount: money(250)},
		{ID: "3", PostedDay: 15, Amount: money(50)},
	})
	if len(days) != 2 {
		t.Fatalf("len(days) = %d, want 2", len(days))
	}
	if days[0].Day != 3 || days[1].Day != 15 {
		t.Errorf("days = %d, %d", days[0].Day, days[1].Day)
	}
	if days[1].Total.Cents != 150 || days[1].Entries[0].ID != "1" || days[1].Entries[1].ID != "3" {
		t.Errorf("day 15 = %+v", days[1])
	}
}
