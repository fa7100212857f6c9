package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"farmbook/internal/auth"
	"farmbook/internal/cli"
	"farmbook/internal/config"
	flog "farmbook/internal/log"
	"farmbook/internal/services"
	"farmbook/internal/storage"
)

// app is what the data commands run against. It is opened per command so
// migrate can work on a database the repository cannot open yet.
type app struct {
	cfg      *config.Config
	repo     *storage.SQLiteRepository
	auth     *auth.Service
	ledger   *services.LedgerService
	insights *services.InsightsService
	seeder   *services.Seeder
}

func (a *app) Close() error {
	return a.repo.Close()
}

type rootOptions struct {
	dbPath string
	locale string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "farmctl",
		Short: "Administer a farmbook database",
		Long: `farmctl manages the farmbook SQLite database directly: it applies
migrations, creates users, loads the demo farm and prints stats and reports.

Configuration is read the same way as the server (farmbook.yaml and
FARMBOOK_* environment variables); --db and --locale override it.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cli.LoadEnvFile()
			cfg := config.Load()
			// Logs go to stderr so stdout carries only command output.
			slog.SetDefault(flog.New(flog.Config{
				Level:     cfg.SlogLevel(),
				Format:    cfg.LogFormat,
				Component: "farmctl",
				Output:    cmd.ErrOrStderr(),
			}).With(flog.FieldOperation, cmd.Name()))
		},
	}
	cmd.PersistentFlags().StringVar(&opts.dbPath, "db", "", "SQLite database path (default from config)")
	cmd.PersistentFlags().StringVar(&opts.locale, "locale", "", "locale for money formatting (default from config)")

	cmd.AddCommand(
		newMigrateCmd(opts),
		newUserCmd(opts),
		newSeedCmd(opts),
		newStatsCmd(opts),
		newReportCmd(opts),
	)
	return cmd
}

// loadConfig applies the persistent flags on top of the loaded config.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if o.dbPath != "" {
		cfg.SQLiteDBPath = o.dbPath
	}
	if o.locale != "" {
		cfg.Locale = o.locale
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *rootOptions) open() (*app, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	ledger := services.NewLedgerService(repo, nil)
	return &app{
		cfg:      cfg,
		repo:     repo,
		auth:     auth.NewService(repo, cfg.SessionTTL, time.Minute, 16),
		ledger:   ledger,
		insights: services.NewInsightsService(repo),
		seeder:   services.NewSeeder(ledger, repo),
	}, nil
}
