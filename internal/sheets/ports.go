// Package sheets defines the export port for budget summaries and the row
// layout shared by its writers.
package sheets

import (
	"context"
	"time"

	"budgets/internal/core"
)

// SummaryWriter publishes one summary row per budget, keyed by budget id.
// Rows for budgets the user no longer owns are cleared.
type SummaryWriter interface {
	UpsertBudgetSummaries(ctx context.Context, user *core.User, summaries []core.BudgetSummary) error
}

// Header is the first row of the summaries sheet.
var Header = []string{
	"Budget ID", "User ID", "Email", "Period",
	"Income planned", "Income", "Savings planned", "Savings",
	"Expenses planned", "Expenses", "Net", "Synced at",
}

// Row is one exported budget summary.
type Row struct {
	BudgetID string
	UserID   string
	Email    string
	Period   string
	Income   core.BucketSummary
	Savings  core.BucketSummary
	Expenses core.BucketSummary
	Net      core.Money
	SyncedAt time.Time
}

// NewRow flattens a summary for user.
func NewRow(user *core.User, s core.BudgetSummary, at time.Time) Row {
	return Row{
		BudgetID: s.BudgetID,
		UserID:   user.ID,
		Email:    user.Email,
		Period:   s.Period.Token(),
		Income:   s.Bucket(core.KindIncome),
		Savings:  s.Bucket(core.KindSavings),
		Expenses: s.Bucket(core.KindExpenses),
		Net:      s.Net,
		SyncedAt: at.UTC(),
	}
}

// Values returns the row cells in Header order. Amounts are plain decimal
// strings so spreadsheets parse them as numbers.
func (r Row) Values() []any {
	return []any{
		r.BudgetID, r.UserID, r.Email, r.Period,
		r.Income.Planned.String(), r.Income.Current.String(),
		r.Savings.Planned.String(), r.Savings.Current.String(),
		r.Expenses.Planned.String(), r.Expenses.Current.String(),
		r.Net.String(),
		r.SyncedAt.Format(time.RFC3339),
	}
}

// HeaderValues returns Header as sheet cells.
func HeaderValues() []any {
	out := make([]any, len(Header))
	for i, h := range Header {
		out[i] = h
	}
	return out
}
