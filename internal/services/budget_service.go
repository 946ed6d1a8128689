package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"budgets/internal/core"
	"budgets/internal/log"
	"budgets/internal/storage"
)

// Publisher announces that a user's budgets changed.
type Publisher interface {
	PublishBudgetChanged(ctx context.Context, userID, budgetID string, version int64) error
}

// BudgetService loads a user aggregate, applies one change, recomputes every
// total, saves and publishes. Every write path goes through mutate.
type BudgetService struct {
	users     storage.UserStore
	publisher Publisher
	now       func() time.Time

	// locks serializes mutations per user. Users share a stripe by hash, so
	// the set stays fixed however many users write.
	locks [lockStripes]sync.Mutex
}

const lockStripes = 64

// NewBudgetService wires the service. publisher may be nil.
func NewBudgetService(users storage.UserStore, publisher Publisher) *BudgetService {
	return &BudgetService{
		users:     users,
		publisher: publisher,
		now:       time.Now,
	}
}

type mutation struct {
	op         string
	budgetID   string
	categoryID string
	entryID    string
}

func (s *BudgetService) lock(userID string) func() {
	mu := &s.locks[lockStripe(userID)]
	mu.Lock()
	return mu.Unlock
}

func lockStripe(userID string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return h.Sum32() % lockStripes
}

// User returns the live aggregate with every total recomputed.
func (s *BudgetService) User(ctx context.Context, userID string) (*core.User, error) {
	u, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &core.NotFoundError{Kind: "user", ID: userID}
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	core.RecomputeAll(u)
	return u, nil
}

func (s *BudgetService) mutate(ctx context.Context, userID string, m *mutation, fn func(u *core.User) error) (*core.User, error) {
	unlock := s.lock(userID)
	defer unlock()

	u, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := fn(u); err != nil {
		return nil, err
	}
	core.RecomputeAll(u)
	if err := s.users.SaveUser(ctx, u); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &core.NotFoundError{Kind: "user", ID: userID}
		}
		return nil, fmt.Errorf("save user: %w", err)
	}

	logger := log.FromContext(ctx).WithComponent(log.ComponentBudget)
	log.NewStructuredLogger(logger).LogMutation(ctx, m.op, userID, m.budgetID, m.categoryID, m.entryID)
	s.publish(ctx, logger, u, m.budgetID)
	return u, nil
}

// publish never fails the request; the worker's reconciliation picks up
// versions whose message was lost.
func (s *BudgetService) publish(ctx context.Context, logger *log.Logger, u *core.User, budgetID string) {
	if s.publisher == nil {
		logger.DebugContext(ctx, "No publisher configured, skipping budget change message")
		return
	}
	if err := s.publisher.PublishBudgetChanged(ctx, u.ID, budgetID, u.Version); err != nil {
		fields := log.NewFields().
			WithUser(u.ID).
			WithBudget(budgetID, "", "").
			WithErrorType(log.ErrorTypeInternal)
		fields[log.FieldVersion] = u.Version
		log.NewStructuredLogger(logger).LogError(ctx, "Failed to publish budget change", err, log.OpPublish, fields)
	}
}

// Dashboard is the current budget of a user, if any.
type Dashboard struct {
	User       *core.User
	HasCurrent bool
	Budget     core.Budget
	Summary    core.BudgetSummary
}

// Dashboard resolves the current budget. A stale current id behaves like
// having none.
func (s *BudgetService) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	d := &Dashboard{User: u}
	if b, ok := u.CurrentBudget(); ok {
		d.HasCurrent = true
		d.Budget = *b
		d.Summary = core.Summarize(*b)
	}
	return d, nil
}

// ListBudgets returns the user with budgets grouped by year.
func (s *BudgetService) ListBudgets(ctx context.Context, userID string) (*core.User, []core.YearBudgets, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	return u, core.GroupBudgetsByYear(u.Budgets), nil
}

// BudgetView is one budget with its summary.
type BudgetView struct {
	User      *core.User
	Budget    core.Budget
	Summary   core.BudgetSummary
	IsCurrent bool
}

func (s *BudgetService) Budget(ctx context.Context, userID, budgetID string) (*BudgetView, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	b, err := u.Budget(budgetID)
	if err != nil {
		return nil, err
	}
	return &BudgetView{
		User:      u,
		Budget:    *b,
		Summary:   core.Summarize(*b),
		IsCurrent: u.IsCurrent(b.ID),
	}, nil
}

// CategoryView is one category with its entries grouped by posted day.
type CategoryView struct {
	Budget   core.Budget
	Category core.Category
	Days     []core.DayEntries
}

func (s *BudgetService) Category(ctx context.Context, userID, budgetID, categoryID string) (*CategoryView, error) {
	u, err := s.User(ctx, userID)
	if err != nil {
		return nil, err
	}
	b, err := u.Budget(budgetID)
	if err != nil {
		return nil, err
	}
	c, err := b.Category(categoryID)
	if err != nil {
		return nil, err
	}
	return &CategoryView{Budget: *b, Category: *c, Days: core.GroupEntriesByDay(c.Entries)}, nil
}

// EntryView is an entry with its owners, for the edit form.
type EntryView struct {
	Budget   core.Budget
	Category core.Category
	Entry    core.Entry
}

func (s *BudgetService) Entry(ctx context.Context, userID, budgetID, categoryID, entryID string) (*EntryView, error) {
	v, err := s.Category(ctx, userID, budgetID, categoryID)
	if err != nil {
		return nil, err
	}
	e, err := v.Category.Entry(entryID)
	if err != nil {
		return nil, err
	}
	return &EntryView{Budget: v.Budget, Category: v.Category, Entry: *e}, nil
}

// CreateBudget adds a budget for the "YYYY-MM" token. only reports whether it
// is the user's sole budget, which also makes it the current one.
func (s *BudgetService) CreateBudget(ctx context.Context, userID, token string) (budget core.Budget, only bool, err error) {
	p, err := core.NormalizePeriod(token)
	if err != nil {
		return core.Budget{}, false, err
	}
	m := &mutation{op: log.OpCreate}
	_, err = s.mutate(ctx, userID, m, func(u *core.User) error {
		b, err := u.AddBudget(p, s.now())
		if err != nil {
			return err
		}
		m.budgetID = b.ID
		budget = *b
		only = len(u.Budgets) == 1
		return nil
	})
	if err != nil {
		return core.Budget{}, false, err
	}
	return budget, only, nil
}

// DeleteBudget removes a budget; a current budget is replaced by the newest
// remaining one.
func (s *BudgetService) DeleteBudget(ctx context.Context, userID, budgetID string) error {
	_, err := s.mutate(ctx, userID, &mutation{op: log.OpDelete, budgetID: budgetID}, func(u *core.User) error {
		return u.RemoveBudget(budgetID)
	})
	return err
}

func (s *BudgetService) SetCurrentBudget(ctx context.Context, userID, budgetID string) error {
	_, err := s.mutate(ctx, userID, &mutation{op: log.OpUpdate, budgetID: budgetID}, func(u *core.User) error {
		return u.SetCurrentBudget(budgetID)
	})
	return err
}

// UpdateBudget moves a budget to the period named by token. Another budget
// already covering that period is a validation error.
func (s *BudgetService) UpdateBudget(ctx context.Context, userID, budgetID, token string) (core.Budget, error) {
	p, err := core.NormalizePeriod(token)
	if err != nil {
		return core.Budget{}, err
	}
	var out core.Budget
	_, err = s.mutate(ctx, userID, &mutation{op: log.OpUpdate, budgetID: budgetID}, func(u *core.User) error {
		b, err := u.Budget(budgetID)
		if err != nil {
			return err
		}
		if other, ok := u.BudgetForPeriod(p); ok && other.ID != b.ID {
			return core.Invalid("month", "a budget for "+other.Name+" already exists")
		}
		if err := core.ApplyPartialUpdate[core.Budget](b, b, core.BudgetPatch{Period: &p}); err != nil {
			return err
		}
		out = *b
		return nil
	})
	return out, err
}

func (s *BudgetService) AddCategory(ctx context.Context, userID, budgetID string, in core.NewCategory) (core.Category, error) {
	var out core.Category
	m := &mutation{op: log.OpCreate, budgetID: budgetID}
	_, err := s.mutate(ctx, userID, m, func(u *core.User) error {
		b, err := u.Budget(budgetID)
		if err != nil {
			return err
		}
		c, err := b.AddCategory(in)
		if err != nil {
			return err
		}
		m.categoryID = c.ID
		out = *c
		return nil
	})
	return out, err
}

// UpdateCategory applies a partial update; fields absent from patch keep
// their values.
func (s *BudgetService) UpdateCategory(ctx context.Context, userID, budgetID, categoryID string, patch core.CategoryPatch) (core.Category, error) {
	var out core.Category
	_, err := s.mutate(ctx, userID, &mutation{op: log.OpUpdate, budgetID: budgetID, categoryID: categoryID}, func(u *core.User) error {
		b, err := u.Budget(budgetID)
		if err != nil {
			return err
		}
		c, err := b.Category(categoryID)
		if err != nil {
			return err
		}
		if err := core.ApplyPartialUpdate[core.Category](b, c, patch); err != nil {
			return err
		}
		out = *c
		return nil
	})
	return out, err
}

func (s *BudgetService) RemoveCategory(ctx context.Context, userID, budgetID, categoryID string) error {
	_, err := s.mutate(ctx, userID, &mutation{op: log.OpDelete, budgetID: budgetID, categoryID: categoryID}, func(u *core.User) error {
		b, err := u.Budget(budgetID)
		if err != nil {
			return err
		}
		return b.RemoveCategory(categoryID)
	})
	return err
}

func (s *BudgetService) AddEntry(ctx context.Context, userID, budgetID, categoryID string, in core.NewEntry) (core.Entry, error) {
	var out core.Entry
	m := &mutation{op: log.OpCreate, budgetID: budgetID, categoryID: categoryID}
	_, err := s.mutate(ctx, userID, m, func(u *core.User) error {
		b, err := u.Budget(budgetID)
		if err != nil {
			return err
		}
		e, err := b.AddEntry(categoryID, in)
		if err != nil {
			return err
		}
		m.entryID = e.ID
		out = *e
		return nil
	})
	return out, err
}

// UpdateEntry applies a partial update; the owning category's total and the
// budget rollups are recomputed before the save.
func (s *BudgetService) UpdateEntry(ctx context.Context, userID, budgetID, categoryID, entryID string, patch core.EntryPatch) (core.Entry, error) {
	var out core.Entry
	_, err := s.mutate(ctx, userID, &mutation{op: log.OpUpdate, budgetID: budgetID, categoryID: categoryID, entryID: entryID}, func(u *core.User) error {
		b, err := u.Budget(budgetID)
		if err != nil {
			return err
		}
		c, err := b.Category(categoryID)
		if err != nil {
			return err
		}
		e, err := c.Entry(entryID)
		if err != nil {
			return err
		}
		if err := core.ApplyPartialUpdate[core.Entry](b, e, patch); err != nil {
			return err
		}
		out = *e
		return nil
	})
	return out, err
}

func (s *BudgetService) RemoveEntry(ctx context.Context, userID, budgetID, categoryID, entryID string) error {
	_, err := s.mutate(ctx, userID, &mutation{op: log.OpDelete, budgetID: budgetID, categoryID: categoryID, entryID: entryID}, func(u *core.User) error {
		b, err := u.Budget(budgetID)
		if err != nil {
			return err
		}
		return b.RemoveEntry(categoryID, entryID)
	})
	return err
}

// Recompute re-runs the aggregation over every budget and saves the user.
func (s *BudgetService) Recompute(ctx context.Context, userID string) (*core.User, error) {
	return s.mutate(ctx, userID, &mutation{op: log.OpRecompute}, func(*core.User) error { return nil })
}
