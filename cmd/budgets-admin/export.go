package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"budgets/internal/export"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write one budget to an .xlsx workbook",
		RunE:  runExport,
	}
	cmd.Flags().String("user", "", "email of the budget owner")
	cmd.Flags().String("budget", "", "budget id")
	cmd.Flags().String("out", "", "output file (default: budget-YYYY-MM.xlsx)")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("budget")
	return cmd
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	email, _ := cmd.Flags().GetString("user")
	budgetID, _ := cmd.Flags().GetString("budget")
	out, _ := cmd.Flags().GetString("out")

	repo, err := openRepository(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = repo.Close() }()

	u, err := repo.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("find user %s: %w", email, err)
	}
	b, err := u.Budget(budgetID)
	if err != nil {
		return err
	}
	if out == "" {
		out = export.FileName(*b)
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	if err := export.WriteBudgetWorkbook(f, u, *b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", out, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%s)\n", out, b.Name)
	return nil
}
