// Package memory is an in-process SummaryWriter for tests and for running
// the worker without Google credentials.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"budgets/internal/core"
	"budgets/internal/sheets"
)

type Writer struct {
	mu    sync.Mutex
	rows  map[string]sheets.Row
	calls int
	now   func() time.Time
}

var _ sheets.SummaryWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{rows: map[string]sheets.Row{}, now: time.Now}
}

// UpsertBudgetSummaries replaces the user's rows with one row per summary.
func (w *Writer) UpsertBudgetSummaries(_ context.Context, user *core.User, summaries []core.BudgetSummary) error {
	if user == nil {
		return errors.New("user is required")
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++

	for id, row := range w.rows {
		if row.UserID == user.ID {
			delete(w.rows, id)
		}
	}
	now := w.now()
	for _, s := range summaries {
		w.rows[s.BudgetID] = sheets.NewRow(user, s, now)
	}
	return nil
}

// Row returns the exported row for a budget.
func (w *Writer) Row(budgetID string) (sheets.Row, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.rows[budgetID]
	return r, ok
}

// Rows returns every row ordered by user, then period.
func (w *Writer) Rows() []sheets.Row {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]sheets.Row, 0, len(w.rows))
	for _, r := range w.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].Period < out[j].Period
	})
	return out
}

// Calls counts upserts, including ones that wrote nothing.
func (w *Writer) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}
