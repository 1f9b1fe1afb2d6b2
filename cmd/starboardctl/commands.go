package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/starboard/internal/clock"
	"github.com/dukerupert/starboard/internal/config"
	"github.com/dukerupert/starboard/internal/database"
	"github.com/dukerupert/starboard/internal/ledger"
	"github.com/dukerupert/starboard/internal/logging"
	"github.com/dukerupert/starboard/internal/recurrence"
	"github.com/dukerupert/starboard/internal/seed"
	"github.com/dukerupert/starboard/internal/store"
)

// env is what every command needs: configuration, an open database and the
// stores bound to it. Commands run without a change bus.
type env struct {
	cfg    *config.Config
	db     *sql.DB
	stores *store.Stores
	clock  clock.Clock
	logger *slog.Logger
}

func openEnv(cmd *cobra.Command) (*env, error) {
	envFile, _ := cmd.Flags().GetString("env-file")
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	if dbPath, _ := cmd.Flags().GetString("db"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return &env{
		cfg:    cfg,
		db:     db,
		stores: store.New(db, nil),
		clock:  clock.NewSystem(loc),
		logger: logging.New(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat),
	}, nil
}

func withEnv(fn func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.db.Close()
		return fn(cmd.Context(), e, cmd, args)
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "starboardctl",
		Short:        "Starboard maintenance commands",
		Long:         "Seed pool templates, run recurrence sweeps and inspect point balances against a Starboard database.",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("db", "", "Database path (overrides STARBOARD_DB_PATH)")
	root.PersistentFlags().String("env-file", ".env", "Optional .env file to load")

	root.AddCommand(
		newSeedCommand(),
		newSweepCommand(),
		newBalanceCommand(),
		newStatsCommand(),
		newMigrateCommand(),
	)
	return root
}

func newSeedCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file>",
		Short: "Replace the pool templates with the ones in a JSON, JSONC or YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
			templates, err := seed.ReadFile(args[0])
			if err != nil {
				return err
			}
			res, err := seed.Apply(ctx, e.stores, templates, e.clock.Now())
			if err != nil {
				return err
			}
			e.logger.Info("pool seeded", "file", args[0], "removed", res.Removed, "inserted", res.Inserted)
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Reset recurring tasks whose period has elapsed",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
			s := recurrence.NewScheduler(e.stores, nil, e.clock, e.logger, recurrence.Options{Mode: recurrence.ModePoll})
			res, err := s.Sweep(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}),
	}
}

func newBalanceCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <user-id>",
		Short: "Print a user's point balance",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
			b, err := ledger.New(e.stores, e.clock, e.cfg.MissedLimit).Balance(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), b)
		}),
	}
}

func newStatsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats <user-id>",
		Short: "Print a user's weekly statistics",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
			var day time.Time
			if week, _ := cmd.Flags().GetString("week"); week != "" {
				parsed, err := time.ParseInLocation(clock.DateLayout, week, e.clock.Now().Location())
				if err != nil {
					return fmt.Errorf("invalid --week %q: want YYYY-MM-DD", week)
				}
				day = parsed
			}
			stats, err := ledger.New(e.stores, e.clock, e.cfg.MissedLimit).Stats(ctx, args[0], day)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), stats)
		}),
	}
	cmd.Flags().String("week", "", "Any date in the week to report (YYYY-MM-DD), default the current week")
	return cmd
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations and print the schema version",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(ctx context.Context, e *env, cmd *cobra.Command, args []string) error {
			v, err := database.Version(e.db)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		}),
	}
}
