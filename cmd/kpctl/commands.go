package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kplays-api/internal/cache"
	"kplays-api/internal/config"
	"kplays-api/internal/events"
	"kplays-api/internal/repository"
	"kplays-api/internal/service"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// env is what every subcommand works with; close releases it.
type env struct {
	maintenance *service.MaintenanceService
	close       func()
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		dbType string
		dbPath string
		notify bool
	)

	root := &cobra.Command{
		Use:          "kpctl",
		Short:        "Maintenance tasks for the kplays catalogue",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&dbType, "db-type", cfg.Database.Type, "store type: sqlite, postgres, mysql, mongodb")
	root.PersistentFlags().StringVar(&dbPath, "db-path", cfg.Database.Path, "sqlite database path")
	root.PersistentFlags().BoolVar(&notify, "notify", cfg.Cache.Type == "redis" || cfg.Events.Type == "redis",
		"invalidate the shared redis cache and notify running servers")

	open := func() (*env, error) {
		dbCfg := cfg.Database
		dbCfg.Type = dbType
		dbCfg.Path = dbPath

		store, err := repository.Open(dbCfg)
		if err != nil {
			return nil, err
		}

		var (
			c      cache.Cache
			broker events.Broker
			client *redis.Client
		)
		if notify {
			client = redis.NewClient(&redis.Options{
				Addr:     cfg.Cache.RedisAddress(),
				Password: cfg.Cache.RedisPassword,
				DB:       cfg.Cache.RedisDB,
			})
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			err := client.Ping(ctx).Err()
			cancel()
			if err != nil {
				slog.Warn("redis unavailable, running servers will not be notified", "error", err)
				_ = client.Close()
				client = nil
			} else {
				c = cache.NewRedisCache(client, cfg.Cache.KeyPrefix)
				broker = events.NewRedisBroker(client, cfg.Cache.KeyPrefix)
			}
		}

		return &env{
			maintenance: service.NewMaintenanceService(store, c, broker),
			close: func() {
				if client != nil {
					_ = client.Close()
				}
				_ = store.Close()
			},
		}, nil
	}

	root.AddCommand(
		renumberCmd(open, "fix-priorities", "Renumber priorities in the current order so they are unique",
			func(ctx context.Context, m *service.MaintenanceService) (service.MaintenanceResult, error) {
				return m.FixPriorities(ctx)
			}),
		renumberCmd(open, "arrange", "Renumber priorities so the newest game comes first",
			func(ctx context.Context, m *service.MaintenanceService) (service.MaintenanceResult, error) {
				return m.ArrangeByCreation(ctx)
			}),
		importCmd(open),
		hashPasswordCmd(),
	)
	return root
}

type renumberFunc func(ctx context.Context, m *service.MaintenanceService) (service.MaintenanceResult, error)

func renumberCmd(open func() (*env, error), use, short string, run renumberFunc) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := open()
			if err != nil {
				return err
			}
			defer e.close()

			res, err := run(cmd.Context(), e.maintenance)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if verbose {
				for _, c := range res.Changed {
					fmt.Fprintf(out, "%-40s %4d -> %d\n", c.Title, c.Old, c.New)
				}
			}
			st := res.Status()
			fmt.Fprintln(out, st.String())
			if !st.OK {
				return st.Err
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "list every changed priority")
	return cmd
}

func importCmd(open func() (*env, error)) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "import-legacy <file>",
		Short: "Import games exported from the old database (JSON or YAML array)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
			}

			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()

			e, err := open()
			if err != nil {
				return err
			}
			defer e.close()

			n, err := e.maintenance.ImportLegacy(cmd.Context(), f, format)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), service.Success("Imported %d games", n).String())
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "json or yaml (default: from the file extension)")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Read the admin password from stdin and print its ADMIN_PASSWORD_HASH value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("reading password: %w", err)
			}

			hash, err := service.HashPassword(strings.TrimRight(line, "\r\n"))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
