// Package cli holds the cobra command tree of the gitlab-telegram-bot binary.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/gitlab-telegram-bot/internal/config"
	"github.com/tbourn/gitlab-telegram-bot/internal/repo"
	"github.com/tbourn/gitlab-telegram-bot/internal/sysutil"
)

var flagEnvFile string

// NewRootCmd creates the root command. version is reported by --version and
// stamped on traces.
func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gitlab-telegram-bot",
		Short: "Relay GitLab webhooks to Telegram chats",
		Long: `Receives GitLab webhook deliveries over HTTP and forwards a short
notification to every Telegram chat bound to the repository.

Repositories are registered on the web page; chats bind with /reg <token>.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// a missing .env is normal in containers
			if err := godotenv.Load(flagEnvFile); err != nil && cmd.Flags().Changed("env-file") {
				return fmt.Errorf("loading %s: %w", flagEnvFile, err)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagEnvFile, "env-file", ".env", "Dotenv file read before the environment")

	cmd.AddCommand(newServeCmd(version), newMigrateCmd())
	return cmd
}

// loadConfig reads the environment and points the global logger at w.
func loadConfig(w io.Writer) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	sysutil.SetupLogger(w, cfg.LogLevel, cfg.LogPretty)
	return cfg, nil
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the SQLite schema and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			from, err := migrate(cmd.Context(), cfg.DBPath)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d (was %d)\n", repo.SchemaVersion, from)
			return nil
		},
	}
}

// migrate opens path, migrates it and closes it again.
func migrate(ctx context.Context, path string) (int, error) {
	db, err := repo.OpenSQLite(path)
	if err != nil {
		return 0, fmt.Errorf("opening database: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	from, err := repo.Migrate(ctx, db)
	if err != nil {
		return from, fmt.Errorf("migrating: %w", err)
	}
	if from != repo.SchemaVersion {
		log.Info().Int("from", from).Int("to", repo.SchemaVersion).Str("path", path).Msg("schema migrated")
	}
	return from, nil
}
