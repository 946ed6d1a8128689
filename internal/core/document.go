package core

import (
	"encoding/json"
	"time"
)

// The persisted document carries the derived totals so that readers of the
// raw store see the same figures as the app. Decoding ignores them and
// recomputes from the entries.

type categoryDoc struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Kind    CategoryKind `json:"kind"`
	Planned Money        `json:"planned"`
	Total   Money        `json:"total"`
	Entries []Entry      `json:"entries"`
}

type budgetDoc struct {
	ID              string     `json:"id"`
	Year            int        `json:"year"`
	Month           string     `json:"month"`
	MonthNumStr     string     `json:"monthNumStr"`
	Name            string     `json:"name"`
	IncomePlanned   Money      `json:"incomePlanned"`
	IncomeTotal     Money      `json:"incomeTotal"`
	SavingsPlanned  Money      `json:"savingsPlanned"`
	SavingsTotal    Money      `json:"savingsTotal"`
	ExpensesPlanned Money      `json:"expensesPlanned"`
	ExpensesTotal   Money      `json:"expensesTotal"`
	Categories      []Category `json:"categories"`
	CreatedAt       time.Time  `json:"createdAt"`
}

func (c Category) MarshalJSON() ([]byte, error) {
	entries := c.Entries
	if entries == nil {
		entries = []Entry{}
	}
	return json.Marshal(categoryDoc{
		ID:      c.ID,
		Name:    c.Name,
		Kind:    c.Kind,
		Planned: c.Planned,
		Total:   c.total,
		Entries: entries,
	})
}

func (c *Category) UnmarshalJSON(data []byte) error {
	var doc categoryDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	// Unknown kinds load as expenses, the bucket Recompute counts them in.
	kind, err := ParseCategoryKind(string(doc.Kind))
	if err != nil {
		kind = KindExpenses
	}
	*c = Category{
		ID:      doc.ID,
		Name:    doc.Name,
		Kind:    kind,
		Planned: doc.Planned,
		Entries: doc.Entries,
	}
	return nil
}

func (b Budget) MarshalJSON() ([]byte, error) {
	categories := b.Categories
	if categories == nil {
		categories = []Category{}
	}
	return json.Marshal(budgetDoc{
		ID:              b.ID,
		Year:            b.Year,
		Month:           b.Month,
		MonthNumStr:     b.MonthNumStr,
		Name:            b.Name,
		IncomePlanned:   b.income.Planned,
		IncomeTotal:     b.income.Current,
		SavingsPlanned:  b.savings.Planned,
		SavingsTotal:    b.savings.Current,
		ExpensesPlanned: b.expenses.Planned,
		ExpensesTotal:   b.expenses.Current,
		Categories:      categories,
		CreatedAt:       b.CreatedAt,
	})
}

func (b *Budget) UnmarshalJSON(data []byte) error {
	var doc budgetDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*b = Budget{
		ID: doc.ID,
		Period: Period{
			Year:        doc.Year,
			MonthNumStr: doc.MonthNumStr,
			Month:       doc.Month,
			Name:        doc.Name,
		},
		Categories: doc.Categories,
		CreatedAt:  doc.CreatedAt,
	}
	Recompute(b)
	return nil
}

// EncodeBudgets serializes a user's budgets for storage.
func EncodeBudgets(budgets []Budget) ([]byte, error) {
	if budgets == nil {
		budgets = []Budget{}
	}
	return json.Marshal(budgets)
}

// DecodeBudgets is the inverse of EncodeBudgets.
func DecodeBudgets(data []byte) ([]Budget, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var budgets []Budget
	if err := json.Unmarshal(data, &budgets); err != nil {
		return nil, err
	}
	return budgets, nil
}

// Clone returns a deep copy of u.
func (u *User) Clone() (*User, error) {
	data, err := json.Marshal(u)
	if err != nil {
		return nil, err
	}
	var out User
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
