package core

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// CategoryKind classifies a category into one of the three budget buckets.
type CategoryKind string

const (
	KindIncome   CategoryKind = "income"
	KindSavings  CategoryKind = "savings"
	KindExpenses CategoryKind = "expenses"
)

const (
	maxNameLength      = 100
	maxEntryNameLength = 200
)

// Kinds lists the buckets in display order.
func Kinds() []CategoryKind {
	return []CategoryKind{KindIncome, KindSavings, KindExpenses}
}

// ParseCategoryKind accepts the bucket names plus the singular "expense".
func ParseCategoryKind(s string) (CategoryKind, error) {
	switch CategoryKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindIncome:
		return KindIncome, nil
	case KindSavings:
		return KindSavings, nil
	case KindExpenses, "expense":
		return KindExpenses, nil
	}
	return "", Invalid("kind", "must be income, savings or expenses")
}

func (k CategoryKind) Valid() bool {
	return k == KindIncome || k == KindSavings || k == KindExpenses
}

// Label is the capitalized bucket name.
func (k CategoryKind) Label() string {
	switch k {
	case KindIncome:
		return "Income"
	case KindSavings:
		return "Savings"
	case KindExpenses:
		return "Expenses"
	}
	return string(k)
}

type (
	// Entry is a dated amount posted to a category.
	Entry struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		PostedDay  int    `json:"postedDay"`
		PostedDate string `json:"postedDate,omitempty"`
		Amount     Money  `json:"amount"`
	}

	// Category holds entries of one kind. Total is derived from the entries.
	Category struct {
		ID      string
		Name    string
		Kind    CategoryKind
		Planned Money
		Entries []Entry

		total Money
	}

	// Rollup is a planned-vs-actual pair for one bucket.
	Rollup struct {
		Planned Money
		Current Money
	}

	// Budget covers one month. The three rollups are written only by Recompute.
	Budget struct {
		ID string
		Period
		Categories []Category
		CreatedAt  time.Time

		income   Rollup
		savings  Rollup
		expenses Rollup
	}

	// User owns its budgets and points at the one shown on the dashboard.
	User struct {
		ID              string    `json:"id"`
		Email           string    `json:"email"`
		FirstName       string    `json:"firstName"`
		LastName        string    `json:"lastName"`
		PasswordHash    string    `json:"passwordHash"`
		CurrentBudgetID string    `json:"currentBudgetId"`
		Budgets         []Budget  `json:"budgets"`
		CreatedAt       time.Time `json:"createdAt"`

		// Version is maintained by the store; it grows by one on every save.
		Version int64 `json:"version"`
	}
)

// NewID returns a fresh opaque identifier.
func NewID() string {
	return uuid.NewString()
}

// Remaining is planned minus current.
func (r Rollup) Remaining() Money { return r.Planned.Sub(r.Current) }

// Total is the sum of the category's entries as of the last Recompute.
func (c Category) Total() Money { return c.total }

// Remaining is planned minus total.
func (c Category) Remaining() Money { return c.Planned.Sub(c.total) }

// Entry looks up an entry by id.
func (c *Category) Entry(id string) (*Entry, error) {
	for i := range c.Entries {
		if c.Entries[i].ID == id {
			return &c.Entries[i], nil
		}
	}
	return nil, notFound("entry", id)
}

func (b Budget) Income() Rollup   { return b.income }
func (b Budget) Savings() Rollup  { return b.savings }
func (b Budget) Expenses() Rollup { return b.expenses }

// Rollup returns the bucket for kind.
func (b Budget) Rollup(kind CategoryKind) Rollup {
	switch kind {
	case KindIncome:
		return b.income
	case KindSavings:
		return b.savings
	default:
		return b.expenses
	}
}

// Category looks up a category by id.
func (b *Budget) Category(id string) (*Category, error) {
	for i := range b.Categories {
		if b.Categories[i].ID == id {
			return &b.Categories[i], nil
		}
	}
	return nil, notFound("category", id)
}

// CategoriesOf returns the categories of one kind in budget order.
func (b Budget) CategoriesOf(kind CategoryKind) []Category {
	var out []Category
	for _, c := range b.Categories {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// NewCategory is the input for Budget.AddCategory.
type NewCategory struct {
	Name    string
	Kind    CategoryKind
	Planned Money
}

func (n NewCategory) Validate() error {
	if err := validateName("name", n.Name, maxNameLength); err != nil {
		return err
	}
	if !n.Kind.Valid() {
		return Invalid("kind", "must be income, savings or expenses")
	}
	if n.Planned.Cents < 0 {
		return Invalid("planned", "must not be negative")
	}
	return nil
}

// AddCategory appends a category and recomputes the budget.
func (b *Budget) AddCategory(n NewCategory) (*Category, error) {
	if err := n.Validate(); err != nil {
		return nil, err
	}
	b.Categories = append(b.Categories, Category{
		ID:      NewID(),
		Name:    strings.TrimSpace(n.Name),
		Kind:    n.Kind,
		Planned: n.Planned,
	})
	if err := checkTotals(b); err != nil {
		b.Categories = b.Categories[:len(b.Categories)-1]
		return nil, err
	}
	Recompute(b)
	return &b.Categories[len(b.Categories)-1], nil
}

// RemoveCategory deletes a category with its entries and recomputes the budget.
func (b *Budget) RemoveCategory(id string) error {
	for i := range b.Categories {
		if b.Categories[i].ID == id {
			b.Categories = append(b.Categories[:i], b.Categories[i+1:]...)
			Recompute(b)
			return nil
		}
	}
	return notFound("category", id)
}

// NewEntry is the input for Budget.AddEntry. PostedDate, when set, is a
// "YYYY-MM-DD" value and takes precedence over PostedDay.
type NewEntry struct {
	Name       string
	PostedDay  int
	PostedDate string
	Amount     Money
}

func (n NewEntry) build() (Entry, error) {
	if err := validateName("name", n.Name, maxEntryNameLength); err != nil {
		return Entry{}, err
	}
	e := Entry{
		ID:        NewID(),
		Name:      strings.TrimSpace(n.Name),
		PostedDay: n.PostedDay,
		Amount:    n.Amount,
	}
	if n.PostedDate != "" {
		posted, day, err := FormatPostedDate(n.PostedDate)
		if err != nil {
			return Entry{}, err
		}
		e.PostedDate, e.PostedDay = posted, day
	}
	if !validDay(e.PostedDay) {
		return Entry{}, Invalid("postedDay", "must be between 1 and 31")
	}
	return e, nil
}

// AddEntry posts an entry to a category and recomputes the budget.
func (b *Budget) AddEntry(categoryID string, n NewEntry) (*Entry, error) {
	c, err := b.Category(categoryID)
	if err != nil {
		return nil, err
	}
	e, err := n.build()
	if err != nil {
		return nil, err
	}
	c.Entries = append(c.Entries, e)
	if err := checkTotals(b); err != nil {
		c.Entries = c.Entries[:len(c.Entries)-1]
		return nil, err
	}
	Recompute(b)
	return &c.Entries[len(c.Entries)-1], nil
}

// RemoveEntry deletes an entry from a category and recomputes the budget.
func (b *Budget) RemoveEntry(categoryID, entryID string) error {
	c, err := b.Category(categoryID)
	if err != nil {
		return err
	}
	for i := range c.Entries {
		if c.Entries[i].ID == entryID {
			c.Entries = append(c.Entries[:i], c.Entries[i+1:]...)
			Recompute(b)
			return nil
		}
	}
	return notFound("entry", entryID)
}

// NewUser creates a user with no budgets.
func NewUser(email, firstName, lastName, passwordHash string, now time.Time) *User {
	return &User{
		ID:              NewID(),
		Email:           NormalizeEmail(email),
		FirstName:       strings.TrimSpace(firstName),
		LastName:        strings.TrimSpace(lastName),
		PasswordHash:    passwordHash,
		CurrentBudgetID: NoCurrentBudget,
		CreatedAt:       now.UTC(),
	}
}

// NormalizeEmail trims and lower-cases an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Budget looks up one of the user's budgets.
func (u *User) Budget(id string) (*Budget, error) {
	for i := range u.Budgets {
		if u.Budgets[i].ID == id {
			return &u.Budgets[i], nil
		}
	}
	return nil, notFound("budget", id)
}

// BudgetForPeriod returns the user's budget for p, if any.
func (u *User) BudgetForPeriod(p Period) (*Budget, bool) {
	for i := range u.Budgets {
		if u.Budgets[i].Period.Compare(p) == 0 {
			return &u.Budgets[i], true
		}
	}
	return nil, false
}

// CurrentBudget resolves CurrentBudgetID. It reports false for the "empty"
// sentinel and for ids that no longer resolve.
func (u *User) CurrentBudget() (*Budget, bool) {
	if u.CurrentBudgetID == NoCurrentBudget || u.CurrentBudgetID == "" {
		return nil, false
	}
	b, err := u.Budget(u.CurrentBudgetID)
	if err != nil {
		return nil, false
	}
	return b, true
}

// IsCurrent reports whether id is the dashboard budget.
func (u *User) IsCurrent(id string) bool {
	return id != "" && u.CurrentBudgetID == id
}

// AddBudget creates an empty budget for p. The first budget a user creates
// becomes the current one. Only one budget per period is allowed.
func (u *User) AddBudget(p Period, now time.Time) (*Budget, error) {
	if existing, ok := u.BudgetForPeriod(p); ok {
		return nil, Invalid("month", "a budget for "+existing.Name+" already exists")
	}
	b := Budget{
		ID:        NewID(),
		Period:    p,
		CreatedAt: now.UTC(),
	}
	Recompute(&b)
	u.Budgets = append(u.Budgets, b)
	if len(u.Budgets) == 1 {
		u.CurrentBudgetID = b.ID
	}
	return &u.Budgets[len(u.Budgets)-1], nil
}

// RemoveBudget deletes a budget. When it was the current one, the newest
// remaining budget takes its place, or the "empty" sentinel when none remain.
func (u *User) RemoveBudget(id string) error {
	idx := -1
	for i := range u.Budgets {
		if u.Budgets[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return notFound("budget", id)
	}
	u.Budgets = append(u.Budgets[:idx], u.Budgets[idx+1:]...)
	if _, ok := u.CurrentBudget(); !ok {
		u.CurrentBudgetID = SelectCurrentBudget(u.Budgets)
	}
	return nil
}

// SetCurrentBudget points the dashboard at one of the user's budgets.
func (u *User) SetCurrentBudget(id string) error {
	if _, err := u.Budget(id); err != nil {
		return err
	}
	u.CurrentBudgetID = id
	return nil
}

func validateName(field, name string, max int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return Invalid(field, "is required")
	}
	if len(name) > max {
		return Invalid(field, "is too long")
	}
	return nil
}
