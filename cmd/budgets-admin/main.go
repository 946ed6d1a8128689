package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"budgets/internal/cli"
	"budgets/internal/log"
	"budgets/internal/storage"
)

var rootCmd = &cobra.Command{
	Use:   "budgets-admin",
	Short: "Maintenance tasks for the budgets database",
	Long: `budgets-admin runs one-off maintenance against the SQLite database:
schema migrations, re-running the budget aggregation, workbook exports and
session cleanup.`,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().String("db", "./data/budgets.db", "path to the SQLite database")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")

	_ = viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(recomputeCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(pruneSessionsCmd())
}

func main() {
	ctx, stop := cli.SignalContext()
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig(_ *cobra.Command, _ []string) error {
	cli.LoadEnvFile()

	// BUDGETS_DB and BUDGETS_LOG_LEVEL override the flag defaults.
	viper.SetEnvPrefix("BUDGETS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	if _, err := cli.NewLogger(viper.GetString("log.level"), "text", log.ComponentAdmin); err != nil {
		return err
	}
	return nil
}

// openRepository opens the database named by --db. Opening applies any
// pending migrations.
func openRepository(_ context.Context) (*storage.SQLiteRepository, error) {
	path := viper.GetString("db")
	if path == "" {
		return nil, fmt.Errorf("--db is required")
	}
	repo, err := storage.NewSQLiteRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return repo, nil
}
