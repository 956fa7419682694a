package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/AnshRaj112/echoes-backend/internal/config"
	"github.com/AnshRaj112/echoes-backend/internal/database"
	"github.com/AnshRaj112/echoes-backend/internal/services"
	"github.com/AnshRaj112/echoes-backend/pkg/logger"
)

var version = "dev"

var (
	dbURL   string
	timeout time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "echoesctl",
	Short: "Operational commands for the Echoes backend",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if err := godotenv.Load(); err != nil {
			logrus.Debug("No .env file found")
		}
	},
	SilenceUsage: true,
}

var initDBCmd = &cobra.Command{
	Use:   "initdb",
	Short: "Create the database schema if it does not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		// ConnectPostgres runs the idempotent schema on connect
		if err := connect(); err != nil {
			return err
		}
		defer database.DisconnectPostgres()
		fmt.Fprintln(cmd.OutOrStdout(), "schema ready")
		return nil
	},
}

var purgeResetCodesCmd = &cobra.Command{
	Use:   "purge-reset-codes",
	Short: "Delete used and expired password reset codes",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := connect(); err != nil {
			return err
		}
		defer database.DisconnectPostgres()

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()
		n, err := services.PurgeResetCodes(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d reset codes\n", n)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func connect() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(logger.Options{Level: cfg.LogLevel})

	uri := cfg.PostgresURI()
	if dbURL != "" {
		uri = dbURL
	}
	if err := database.ConnectPostgres(uri); err != nil {
		return fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "Database connection URL (defaults to DATABASE_URL / DB_* settings)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Timeout for database work")
	rootCmd.AddCommand(initDBCmd, purgeResetCodesCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
