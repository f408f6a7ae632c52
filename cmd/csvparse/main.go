package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvparse/internal/config"
	"github.com/JonMunkholm/csvparse/internal/logging"
	_ "github.com/JonMunkholm/csvparse/internal/schema/defs" // Register all schemas
	"github.com/JonMunkholm/csvparse/internal/store"
)

var (
	cfg         *config.Config
	closeLogger func() error
)

var rootCmd = &cobra.Command{
	Use:   "csvparse",
	Short: "Convert delimited text files into rows or schema-checked records",
	Long: `csvparse reads a comma separated file line by line, splits each line into
fields and optionally checks every row against a registered schema.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	// Finalizers run after every command, including ones whose RunE failed.
	cobra.OnFinalize(shutdownLogger)
	rootCmd.PersistentFlags().String("env-file", "", "Load environment variables from this file instead of .env")
	rootCmd.AddCommand(convertCmd, schemasCmd, serveCmd)
}

// setup loads .env, the configuration and the logger before any command runs.
func setup(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	if envFile != "" {
		if err := godotenv.Overload(envFile); err != nil {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
	} else {
		// A missing .env is normal outside development.
		_ = godotenv.Load()
	}

	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}

	closeLogger, err = logging.Setup(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	if err != nil {
		return err
	}
	slog.Debug("configuration loaded", "config", cfg.String())
	return nil
}

// shutdownLogger closes the log file opened by setup, if any.
func shutdownLogger() {
	if closeLogger == nil {
		return
	}
	if err := closeLogger(); err != nil {
		fmt.Fprintf(os.Stderr, "close log file: %v\n", err)
	}
	closeLogger = nil
}

// openStore connects to the configured database and ensures the run tables
// exist. The caller closes the pool.
func openStore(ctx context.Context) (*pgxpool.Pool, *store.Store, error) {
	if !cfg.Database.Enabled() {
		return nil, nil, fmt.Errorf("persistence requires DATABASE_URL")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping database: %w", err)
	}

	st := store.New(pool)
	if err := st.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	slog.Info("connected to database", "max_conns", poolConfig.MaxConns)
	return pool, st, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
