// Package worker exports budget summaries to a SummaryWriter, driven by
// budget-changed messages and a periodic reconciliation of unsynced users.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"budgets/internal/amqp"
	"budgets/internal/core"
	"budgets/internal/sheets"
	"budgets/internal/storage"
)

// Store is what the worker reads users and sync markers from.
type Store interface {
	GetUser(ctx context.Context, id string) (*core.User, error)
	storage.SyncStore
}

// SyncWorker keeps the exported summaries in step with saved users.
type SyncWorker struct {
	store     Store
	writer    sheets.SummaryWriter
	batchSize int
}

func NewSyncWorker(store Store, writer sheets.SummaryWriter, batchSize int) *SyncWorker {
	if batchSize < 1 {
		batchSize = 10
	}
	return &SyncWorker{
		store:     store,
		writer:    writer,
		batchSize: batchSize,
	}
}

// HandleBudgetChanged exports the user named by msg. Messages for users that
// no longer exist are dropped.
func (w *SyncWorker) HandleBudgetChanged(ctx context.Context, msg *amqp.BudgetChangedMessage) error {
	slog.InfoContext(ctx, "Processing budget change",
		"user_id", msg.UserID,
		"budget_id", msg.BudgetID,
		"version", msg.Version)

	u, err := w.store.GetUser(ctx, msg.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			slog.WarnContext(ctx, "Dropping budget change for unknown user", "user_id", msg.UserID)
			return nil
		}
		return fmt.Errorf("get user: %w", err)
	}
	return w.syncUser(ctx, u)
}

// ReconcilePending exports up to one batch of users whose saved version is
// ahead of the exported one. It returns how many were exported; failures
// are joined into the error and left pending for the next run.
func (w *SyncWorker) ReconcilePending(ctx context.Context) (int, error) {
	pending, err := w.store.ListPendingSync(ctx, w.batchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending sync: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	slog.InfoContext(ctx, "Reconciling pending users", "count", len(pending))

	var errs []error
	synced := 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		u, err := w.store.GetUser(ctx, p.UserID)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to load pending user", "user_id", p.UserID, "error", err)
			errs = append(errs, fmt.Errorf("user %s: %w", p.UserID, err))
			continue
		}
		if err := w.syncUser(ctx, u); err != nil {
			slog.ErrorContext(ctx, "Failed to export pending user", "user_id", p.UserID, "error", err)
			errs = append(errs, fmt.Errorf("user %s: %w", p.UserID, err))
			continue
		}
		synced++
	}

	slog.InfoContext(ctx, "Reconciliation completed",
		"total", len(pending),
		"synced", synced,
		"errors", len(errs))

	return synced, errors.Join(errs...)
}

func (w *SyncWorker) syncUser(ctx context.Context, u *core.User) error {
	core.RecomputeAll(u)
	summaries := make([]core.BudgetSummary, 0, len(u.Budgets))
	for _, b := range u.Budgets {
		summaries = append(summaries, core.Summarize(b))
	}

	if err := w.writer.UpsertBudgetSummaries(ctx, u, summaries); err != nil {
		return fmt.Errorf("export summaries: %w", err)
	}

	// The export already happened; a failed marker only means the user is
	// exported again on the next reconciliation.
	if err := w.store.MarkSynced(ctx, u.ID, u.Version); err != nil {
		slog.ErrorContext(ctx, "Failed to mark user as synced",
			"user_id", u.ID,
			"version", u.Version,
			"error", err)
	}

	slog.InfoContext(ctx, "Budget summaries exported",
		"user_id", u.ID,
		"version", u.Version,
		"budgets", len(summaries))
	return nil
}
