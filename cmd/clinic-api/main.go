package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/repository/memory"
	"github.com/jwalitptl/clinic-api/internal/repository/postgres"
	"github.com/jwalitptl/clinic-api/internal/server"
	"github.com/jwalitptl/clinic-api/internal/worker"
	"github.com/jwalitptl/clinic-api/pkg/logger"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
	"github.com/jwalitptl/clinic-api/pkg/messaging/redis"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
	"github.com/jwalitptl/clinic-api/pkg/retry"
)

var configPath string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "clinic-api",
		Short: "Clinic appointment booking API",
		// Usage is noise on runtime failures such as an unreachable database.
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config.yaml (default: search ., ./config, /app/config)")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(workerCmd())
	return rootCmd
}

func serveCmd() *cobra.Command {
	var migrate, expiry bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(migrate, expiry)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "Apply pending migrations before serving")
	cmd.Flags().BoolVar(&expiry, "expire-payments", true, "Run the payment reference expiry sweep in-process")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, db *sqlx.DB) error {
				count, err := postgres.NewMigrator(db).Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(func(ctx context.Context, db *sqlx.DB) error {
				statuses, err := postgres.NewMigrator(db).Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}

				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				for _, s := range statuses {
					status, appliedAt := "pending", ""
					if s.Applied {
						status = "applied"
						if s.AppliedAt != nil {
							appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
						}
					}
					fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
				}
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Rollback last migration (not supported)",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), "WARNING: migrate down is not supported by the built-in runner; restore from backup instead.")
			return nil
		},
	})

	return cmd
}

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the payment reference expiry worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, appLog, err := bootstrap()
			if err != nil {
				return err
			}
			ctx, stop := signalContext()
			defer stop()

			m := metrics.New("clinic")
			store, closeStore, err := openStore(ctx, cfg, m)
			if err != nil {
				return err
			}
			defer closeStore()

			appLog.Info("payment expiry worker started", "interval", cfg.Payment.ExpiryInterval.String())
			worker.NewPaymentExpiryWorker(store.Payments, cfg.Payment.ReferenceTTL, cfg.Payment.ExpiryInterval, m, appLog).Start(ctx)
			appLog.Info("payment expiry worker stopped")
			return nil
		},
	}
}

func runServer(migrate, expiry bool) error {
	cfg, appLog, err := bootstrap()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	m := metrics.New("clinic")
	deps := server.Deps{Metrics: m, Logger: appLog}

	if cfg.Database.Driver == "postgres" {
		db, err := postgres.NewDB(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()

		if migrate {
			n, err := postgres.NewMigrator(db).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			appLog.Info("migrations applied", "count", n)
		}
		deps.Store = postgres.NewStore(db, m, retryPolicy(cfg))
		deps.DBCheck = db.PingContext
	} else {
		appLog.Warn("using in-memory store; data is lost on restart")
		deps.Store = memory.NewStore()
	}

	if cfg.Redis.URL != "" {
		broker, err := redis.NewRedisBroker(ctx, redis.Config{
			URL:          cfg.Redis.URL,
			MaxRetries:   cfg.Redis.MaxRetries,
			RetryBackoff: cfg.Redis.RetryBackoff,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		}, m, appLog)
		if err != nil {
			return err
		}
		defer broker.Close()
		deps.Broker = messaging.Broker(broker)
	}

	srv, err := server.New(cfg, deps)
	if err != nil {
		return err
	}

	if expiry {
		go worker.NewPaymentExpiryWorker(deps.Store.Payments, cfg.Payment.ReferenceTTL, cfg.Payment.ExpiryInterval, m, appLog).Start(ctx)
	}

	return srv.Run(ctx)
}

func bootstrap() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return nil, nil, err
	}

	appLog := logger.NewLogger(&logger.Config{
		Level:      logger.ParseLevel(cfg.Log.Level),
		TimeFormat: time.RFC3339,
		Console:    cfg.Log.Console,
	})
	// Request middleware logs through the global logger.
	log.Logger = appLog.ZL
	return cfg, appLog, nil
}

func withDB(fn func(ctx context.Context, db *sqlx.DB) error) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	ctx := context.Background()
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()
	return fn(ctx, db)
}

func openStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (*repository.Store, func(), error) {
	if cfg.Database.Driver != "postgres" {
		return memory.NewStore(), func() {}, nil
	}
	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return postgres.NewStore(db, m, retryPolicy(cfg)), func() { db.Close() }, nil
}

func retryPolicy(cfg *config.Config) retry.Policy {
	p := retry.DefaultPolicy()
	if cfg.Database.RetryAttempts > 0 {
		p.MaxAttempts = cfg.Database.RetryAttempts
	}
	if cfg.Database.RetryInterval > 0 {
		p.InitialInterval = cfg.Database.RetryInterval
	}
	return p
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
