package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/irfndi/prism-dashboard-go/internal/database"
	"github.com/spf13/cobra"
)

func newMigrateCommand(global *globalOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the users table and one readings table per category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dryRun {
				for _, stmt := range database.MigrationStatements() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s;\n", stmt)
				}
				return nil
			}
			return migrate(commandContext(cmd), global)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the statements instead of running them")
	return cmd
}

func migrate(ctx context.Context, global *globalOptions) error {
	cfg, err := loadConfig(global)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)

	db, err := database.NewPostgresConnection(ctx, cfg.Database, logger.Logger)
	if err != nil {
		return err
	}
	defer db.Close()

	start := time.Now()
	if err := database.Migrate(ctx, database.NewTracedPool(db.Pool, logger)); err != nil {
		return err
	}
	logger.WithComponent("database").
		WithField("statements", len(database.MigrationStatements())).
		WithField("duration_ms", time.Since(start).Milliseconds()).
		Info("Migrations applied")
	return nil
}

func newWarmCacheCommand(global *globalOptions) *cobra.Command {
	var clearFirst bool
	cmd := &cobra.Command{
		Use:   "warm-cache",
		Short: "Recompute the cached plots and statistics of every category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := commandContext(cmd)
			cfg, err := loadConfig(global)
			if err != nil {
				return err
			}
			logger := newLogger(cfg, cmd.ErrOrStderr())

			comps, err := openComponents(ctx, cfg, logger, nil)
			if err != nil {
				return err
			}
			defer comps.Close()

			if clearFirst {
				if err := comps.dashboard.ClearCache(ctx); err != nil {
					return err
				}
			}
			warmed, err := comps.dashboard.WarmCache(ctx)
			if err != nil {
				return fmt.Errorf("failed to warm cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "warmed %d categories\n", warmed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&clearFirst, "clear", false, "drop the cached entries first")
	return cmd
}

// commandContext returns the command context, or a background context when
// the command was not started through ExecuteContext.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
