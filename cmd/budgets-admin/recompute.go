package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"budgets/internal/core"
	"budgets/internal/services"
)

func recomputeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recompute",
		Short: "Re-run the budget aggregation and save the results",
		Long: `Recompute every category total and bucket summary from the stored entries.
Without --user every account is processed.`,
		RunE: runRecompute,
	}
	cmd.Flags().String("user", "", "only recompute the account with this email")
	return cmd
}

func runRecompute(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	email, _ := cmd.Flags().GetString("user")

	repo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	var users []*core.User
	if email != "" {
		u, err := repo.GetUserByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("find user %s: %w", email, err)
		}
		users = []*core.User{u}
	} else {
		if users, err = repo.ListUsers(ctx); err != nil {
			return fmt.Errorf("list users: %w", err)
		}
	}

	svc := services.NewBudgetService(repo, nil)
	budgets := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return err
		}
		saved, err := svc.Recompute(ctx, u.ID)
		if err != nil {
			return fmt.Errorf("recompute %s: %w", u.Email, err)
		}
		budgets += len(saved.Budgets)
		slog.Debug("Recomputed user", "email", u.Email, "budgets", len(saved.Budgets))
	}

	fmt.Fprintf(cmd.OutOrStdout(), "recomputed %d budgets across %d users\n", budgets, len(users))
	return nil
}
