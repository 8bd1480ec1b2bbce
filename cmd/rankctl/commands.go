package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"text/tabwriter"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/koopa0/system-design/14-player-ranking/internal"
	"github.com/koopa0/system-design/14-player-ranking/internal/migrations"
	"github.com/koopa0/system-design/14-player-ranking/internal/sqlc"
	"github.com/koopa0/system-design/14-player-ranking/pkg/logger"
)

// rootOptions 全域參數
type rootOptions struct {
	configPath string
	format     string
	verbose    bool
}

var validFormats = []string{"text", "json"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "rankctl",
		Short: "Player ranking maintenance tool",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.format, validFormats)
			}
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "path to config file")
	cmd.PersistentFlags().StringVar(&opts.format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newPlacementCommand(opts))
	cmd.AddCommand(newTopCommand(opts))
	cmd.AddCommand(newTiersCommand(opts))

	return cmd
}

// env 一次命令所需的連線
type env struct {
	config *internal.Config
	logger *slog.Logger
	pool   *pgxpool.Pool
}

func (opts *rootOptions) load(cmd *cobra.Command) (*internal.Config, *slog.Logger, error) {
	config, err := internal.LoadConfig(opts.configPath)
	if err != nil {
		return nil, nil, err
	}

	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	return config, logger.New(cmd.ErrOrStderr(), level, "text", false), nil
}

func (opts *rootOptions) connect(cmd *cobra.Command) (*env, error) {
	config, log, err := opts.load(cmd)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(cmd.Context(), config.PostgresDSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &env{config: config, logger: log, pool: pool}, nil
}

// service 查詢用的服務；不載入玩家，權限與通知只留在行程內
func (e *env) service() (*internal.Service, error) {
	ranks, err := internal.LoadRankTable(e.config.Rank.TiersFile)
	if err != nil {
		return nil, err
	}

	return internal.NewService(internal.Dependencies{
		Queries:    sqlc.New(e.pool),
		Ranks:      ranks,
		Game:       internal.NewRoster(),
		Authorizer: internal.NewMemoryAuthorizer(),
		Outbox:     internal.NewOutbox(),
	}, e.config, e.logger), nil
}

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database schema",
	}

	run := func(action func(m *migrations.Migrator) error) func(cmd *cobra.Command, args []string) error {
		return func(cmd *cobra.Command, args []string) error {
			config, log, err := opts.load(cmd)
			if err != nil {
				return err
			}

			m, err := migrations.New(config.PostgresURL(), log)
			if err != nil {
				return err
			}
			defer m.Close()

			return action(m)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE:  run(func(m *migrations.Migrator) error { return m.Up() }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back one migration",
		Args:  cobra.NoArgs,
		RunE:  run(func(m *migrations.Migrator) error { return m.Down() }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Drop everything and re-apply all migrations",
		Args:  cobra.NoArgs,
		RunE:  run(func(m *migrations.Migrator) error { return m.Reset() }),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(func(m *migrations.Migrator) error {
				version, dirty, err := m.Version()
				if err != nil {
					return err
				}
				return write(cmd.OutOrStdout(), opts.format, map[string]any{
					"version": version,
					"dirty":   dirty,
				}, func(w io.Writer) {
					fmt.Fprintf(w, "version %d (dirty=%t)\n", version, dirty)
				})
			})(cmd, args)
		},
	})

	return cmd
}

func newPlacementCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "placement <identity>",
		Short: "Show a player's leaderboard placement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer e.pool.Close()

			service, err := e.service()
			if err != nil {
				return err
			}
			defer service.Shutdown()

			placement, err := service.PlacementOf(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return write(cmd.OutOrStdout(), opts.format, placement, func(w io.Writer) {
				fmt.Fprintf(w, "%s is ranked %d of %d\n", placement.Identity, placement.Rank, placement.Total)
			})
		},
	}
}

func newTopCommand(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "top",
		Short: "List the highest ranked players",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 || limit > internal.MaxLeaderboardLimit {
				return fmt.Errorf("limit must be between 1 and %d", internal.MaxLeaderboardLimit)
			}

			e, err := opts.connect(cmd)
			if err != nil {
				return err
			}
			defer e.pool.Close()

			service, err := e.service()
			if err != nil {
				return err
			}
			defer service.Shutdown()

			entries, err := service.Top(cmd.Context(), limit)
			if err != nil {
				return err
			}

			return write(cmd.OutOrStdout(), opts.format, entries, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "#\tIDENTITY\tNAME\tPOINTS\tTIER")
				for _, entry := range entries {
					fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\n", entry.Position, entry.Identity, entry.Name, entry.Points, entry.Tier)
				}
				_ = tw.Flush()
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", internal.DefaultLeaderboardLimit, "number of players")
	return cmd
}

// newTiersCommand 驗證並列出段位設定檔
func newTiersCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "tiers [file]",
		Short: "Validate and print the rank tier table",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			} else {
				config, _, err := opts.load(cmd)
				if err != nil {
					return err
				}
				path = config.Rank.TiersFile
			}

			ranks, err := internal.LoadRankTable(path)
			if err != nil {
				return err
			}

			tiers := ranks.Tiers()
			return write(cmd.OutOrStdout(), opts.format, tiers, func(w io.Writer) {
				tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "TIER\tPOINTS\tTAG\tCAPABILITIES")
				for _, t := range tiers {
					fmt.Fprintf(tw, "%s\t%d\t%s\t%v\n", t.Name, t.MinPoints, t.ScoreboardTag(), t.Capabilities)
				}
				_ = tw.Flush()
			})
		},
	}
}

// write 依輸出格式寫出結果
func write(w io.Writer, format string, v any, text func(w io.Writer)) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}
