package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"budgets/internal/storage"
)

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE:  runMigrate,
	}
	cmd.Flags().Bool("status", false, "show the schema version without applying changes")
	return cmd
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	status, _ := cmd.Flags().GetBool("status")
	dbPath := viper.GetString("db")

	if !status {
		slog.Info("Applying migrations", "database", dbPath)
		if err := storage.RunMigrations(dbPath); err != nil {
			return err
		}
	}

	version, dirty, err := storage.MigrationVersion(dbPath)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d (dirty: %t)\n", version, dirty)
	if dirty {
		return fmt.Errorf("database %s is in a dirty migration state", dbPath)
	}
	return nil
}
