package core

import (
	"errors"
	"math"
	"testing"
	"time"
)

func money(cents int64) Money { return Money{Cents: cents} }

func sampleBudget() *Budget {
	b := &Budget{
		ID:     "b1",
		Period: NewPeriod(2024, 3),
		Categories: []Category{
			{ID: "c1", Name: "Salary", Kind: KindIncome, Planned: money(300000), Entries: []Entry{
				{ID: "e1", Name: "Paycheck", PostedDay: 1, Amount: money(150000)},
				{ID: "e2", Name: "Bonus", PostedDay: 15, Amount: money(20000)},
			}},
			{ID: "c2", Name: "Side gig", Kind: KindIncome, Planned: money(50000)},
			{ID: "c3", Name: "Emergency fund", Kind: KindSavings, Planned: money(40000), Entries: []Entry{
				{ID: "e3", Name: "Transfer", PostedDay: 2, Amount: money(40000)},
			}},
			{ID: "c4", Name: "Rent", Kind: KindExpenses, Planned: money(120000), Entries: []Entry{
				{ID: "e4", Name: "March rent", PostedDay: 1, Amount: money(120000)},
			}},
			{ID: "c5", Name: "Groceries", Kind: KindExpenses, Planned: money(40000), Entries: []Entry{
				{ID: "e5", Name: "Market", PostedDay: 3, Amount: money(5432)},
				{ID: "e6", Name: "Refund", PostedDay: 9, Amount: money(-1000)},
			}},
		},
	}
	return b
}

func TestRecompute_TotalsMatchEntries(t *testing.T) {
	b := Recompute(sampleBudget())

	for _, c := range b.Categories {
		var sum int64
		for _, e := range c.Entries {
			sum += e.Amount.Cents
		}
		if c.Total().Cents != sum {
			t.Errorf("%s total = %d, want %d", c.Name, c.Total().Cents, sum)
		}
	}

	for _, kind := range Kinds() {
		var planned, current int64
		for _, c := range b.CategoriesOf(kind) {
			planned += c.Planned.Cents
			for _, e := range c.Entries {
				current += e.Amount.Cents
			}
		}
		r := b.Rollup(kind)
		if r.Planned.Cents != planned || r.Current.Cents != current {
			t.Errorf("%s rollup = %+v, want planned %d current %d", kind, r, planned, current)
		}
	}

	if got := b.Income(); got.Planned.Cents != 350000 || got.Current.Cents != 170000 {
		t.Errorf("income = %+v", got)
	}
	if got := b.Savings(); got.Planned.Cents != 40000 || got.Current.Cents != 40000 {
		t.Errorf("savings = %+v", got)
	}
	if got := b.Expenses(); got.Planned.Cents != 160000 || got.Current.Cents != 124432 {
		t.Errorf("expenses = %+v", got)
	}
}

func TestRecompute_Idempotent(t *testing.T) {
	b := sampleBudget()
	Recompute(b)
	first := [3]Rollup{b.Income(), b.Savings(), b.Expenses()}
	var totals []Money
	for _, c := range b.Categories {
		totals = append(totals, c.Total())
	}

	Recompute(b)
	second := [3]Rollup{b.Income(), b.Savings(), b.Expenses()}
	if first != second {
		t.Errorf("second recompute changed rollups: %+v -> %+v", first, second)
	}
	for i, c := range b.Categories {
		if c.Total() != totals[i] {
			t.Errorf("%s total changed: %v -> %v", c.Name, totals[i], c.Total())
		}
	}
}

func TestRecompute_Empty(t *testing.T) {
	b := &Budget{ID: "b", Period: NewPeriod(2024, 1)}
	// stale values from a previous state must be cleared
	b.income = Rollup{Planned: money(10), Current: money(20)}
	b.expenses = Rollup{Planned: money(30)}

	Recompute(b)
	for _, kind := range Kinds() {
		if r := b.Rollup(kind); r != (Rollup{}) {
			t.Errorf("%s rollup = %+v, want zero", kind, r)
		}
	}
}

func TestRecompute_Nil(t *testing.T) {
	if Recompute(nil) != nil {
		t.Error("Recompute(nil) should return nil")
	}
}

func TestRecompute_UnknownKindCountsAsExpenses(t *testing.T) {
	b := &Budget{Categories: []Category{
		{ID: "c", Kind: "misc", Planned: money(500), Entries: []Entry{{Amount: money(200)}}},
	}}
	Recompute(b)
	if got := b.Expenses(); got.Planned.Cents != 500 || got.Current.Cents != 200 {
		t.Errorf("expenses = %+v", got)
	}
}

func TestEndToEndScenario(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	u := NewUser("Ada@Example.com", "Ada", "Lovelace", "hash", now)

	p, err := NormalizePeriod("2024-03")
	if err != nil {
		t.Fatal(err)
	}
	b, err := u.AddBudget(p, now)
	if err != nil {
		t.Fatalf("AddBudget: %v", err)
	}
	if u.CurrentBudgetID != b.ID {
		t.Errorf("first budget should become current")
	}

	salary, err := b.AddCategory(NewCategory{Name: "Salary", Kind: KindIncome, Planned: money(300000)})
	if err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	if _, err := b.AddEntry(salary.ID, NewEntry{Name: "Paycheck", PostedDay: 1, Amount: money(150000)}); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	if got := b.Income(); got.Planned.Cents != 300000 || got.Current.Cents != 150000 {
		t.Errorf("income = %+v, want planned 3000.00 current 1500.00", got)
	}

	rent, err := b.AddCategory(NewCategory{Name: "Rent", Kind: KindExpenses, Planned: money(120000)})
	if err != nil {
		t.Fatalf("AddCategory: %v", err)
	}
	if _, err := b.AddEntry(rent.ID, NewEntry{Name: "March", PostedDate: "2024-03-01", Amount: money(120000)}); err != nil {
		t.Fatalf("AddEntry: %v", err)
	}
	if got := b.Expenses(); got.Planned.Cents != 120000 || got.Current.Cents != 120000 {
		t.Errorf("expenses = %+v, want planned 1200.00 current 1200.00", got)
	}
	if got := b.Income(); got.Current.Cents != 150000 {
		t.Errorf("income current = %d after expense, want 150000", got.Current.Cents)
	}

	if err := b.RemoveCategory(rent.ID); err != nil {
		t.Fatal(err)
	}
	if got := b.Expenses(); got != (Rollup{}) {
		t.Errorf("expenses after removal = %+v, want zero", got)
	}
}

func TestAddEntry_RejectsTotalOverflow(t *testing.T) {
	b := Recompute(&Budget{ID: "b1", Period: NewPeriod(2024, 3)})
	c, err := b.AddCategory(NewCategory{Name: "Salary", Kind: KindIncome})
	if err != nil {
		t.Fatalf("AddCategory() error = %v", err)
	}
	categoryID := c.ID

	big := Money{Cents: math.MaxInt64 - 100}
	if _, err := b.AddEntry(categoryID, NewEntry{Name: "Windfall", PostedDay: 1, Amount: big}); err != nil {
		t.Fatalf("first AddEntry() error = %v", err)
	}

	_, err = b.AddEntry(categoryID, NewEntry{Name: "Another", PostedDay: 2, Amount: money(500)})
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Field != "amount" {
		t.Fatalf("second AddEntry() error = %v, want amount ValidationError", err)
	}

	cat, _ := b.Category(categoryID)
	if len(cat.Entries) != 1 {
		t.Errorf("entries = %d, want the rejected entry rolled back", len(cat.Entries))
	}
	if got := b.Income().Current; got != big {
		t.Errorf("income current = %d, want %d", got.Cents, big.Cents)
	}
}

func TestAddEntry_TotalsAcrossCategoriesOverflow(t *testing.T) {
	b := Recompute(&Budget{ID: "b1", Period: NewPeriod(2024, 3)})
	first, _ := b.AddCategory(NewCategory{Name: "Salary", Kind: KindIncome})
	firstID := first.ID
	second, _ := b.AddCategory(NewCategory{Name: "Gifts", Kind: KindIncome})
	secondID := second.ID

	half := Money{Cents: math.MaxInt64/2 + 1}
	if _, err := b.AddEntry(firstID, NewEntry{Name: "A", PostedDay: 1, Amount: half}); err != nil {
		t.Fatalf("AddEntry() error = %v", err)
	}
	if _, err := b.AddEntry(secondID, NewEntry{Name: "B", PostedDay: 1, Amount: half}); !errors.Is(err, ErrValidation) {
		t.Fatalf("AddEntry() error = %v, want ErrValidation", err)
	}
	if b.Income().Current.Cents < 0 {
		t.Errorf("income current = %d, want a non-negative total", b.Income().Current.Cents)
	}
}

func TestApplyPartialUpdate_RejectsTotalOverflow(t *testing.T) {
	b := Recompute(sampleBudget())
	cat, _ := b.Category("c1")
	e, _ := cat.Entry("e1")
	before := *e

	huge := Money{Cents: math.MaxInt64}
	err := ApplyPartialUpdate[Entry](b, e, EntryPatch{Amount: &huge})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ApplyPartialUpdate() error = %v, want ErrValidation", err)
	}
	if *e != before {
		t.Errorf("entry = %+v, want it unchanged %+v", *e, before)
	}
	if got := b.Income().Current.Cents; got != 170000 {
		t.Errorf("income current = %d, want 170000", got)
	}
}
