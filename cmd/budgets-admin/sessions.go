package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func pruneSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "prune-sessions",
		Short: "Delete expired sign-in sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			repo, err := openRepository(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = repo.Close() }()

			n, err := repo.DeleteExpiredSessions(ctx, time.Now())
			if err != nil {
				return fmt.Errorf("prune sessions: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired sessions\n", n)
			return nil
		},
	}
}
