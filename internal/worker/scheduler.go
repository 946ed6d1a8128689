package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"budgets/internal/amqp"
)

const pruneSchedule = "@hourly"

// SessionPruner removes sessions that expired before now.
type SessionPruner interface {
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// Consumer delivers budget-changed messages until ctx is cancelled.
type Consumer interface {
	ConsumeBudgetChanged(ctx context.Context, handler func(context.Context, *amqp.BudgetChangedMessage) error) error
}

// Scheduler runs reconciliation every interval and prunes sessions hourly.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewScheduler(ctx context.Context, w *SyncWorker, pruner SessionPruner, interval time.Duration, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if interval < time.Second {
		return nil, fmt.Errorf("invalid sync interval %v", interval)
	}

	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		if _, err := w.ReconcilePending(ctx); err != nil {
			logger.ErrorContext(ctx, "Periodic reconciliation failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("schedule reconciliation: %w", err)
	}

	if pruner != nil {
		if _, err := c.AddFunc(pruneSchedule, func() {
			n, err := pruner.DeleteExpiredSessions(ctx, time.Now())
			if err != nil {
				logger.ErrorContext(ctx, "Session pruning failed", "error", err)
				return
			}
			if n > 0 {
				logger.InfoContext(ctx, "Expired sessions pruned", "count", n)
			}
		}); err != nil {
			return nil, fmt.Errorf("schedule session pruning: %w", err)
		}
	}

	return &Scheduler{cron: c, logger: logger}, nil
}

// Entries reports how many jobs are scheduled.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

// Run starts the jobs and blocks until ctx is done, then waits for running
// jobs to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
	return nil
}

// Run consumes messages and runs the scheduler until ctx is cancelled or one
// of them fails. consumer may be nil when no broker is configured.
func Run(ctx context.Context, w *SyncWorker, consumer Consumer, sched *Scheduler) error {
	g, gctx := errgroup.WithContext(ctx)

	if consumer != nil {
		g.Go(func() error {
			err := consumer.ConsumeBudgetChanged(gctx, w.HandleBudgetChanged)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("consume budget changes: %w", err)
			}
			return nil
		})
	}
	if sched != nil {
		g.Go(func() error { return sched.Run(gctx) })
	}

	return g.Wait()
}

// cronLogger routes cron's logging through slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
