package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/TeamViewMore/Poksin-Webcam/internal/app"
	"github.com/TeamViewMore/Poksin-Webcam/internal/config"
	"github.com/TeamViewMore/Poksin-Webcam/internal/logger"
)

var (
	cfg    *config.Config
	stores *app.Stores
	log    *logger.Logger

	dbPath string
	dbURL  string
)

var rootCmd = &cobra.Command{
	Use:          "evidencectl",
	Short:        "Administer the Poksin evidence store",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		if dbPath != "" {
			cfg.DatabasePath = dbPath
		}
		if dbURL != "" {
			cfg.DatabaseURL = dbURL
		}
		log = logger.NewLogger(cfg)

		var err error
		stores, err = app.OpenStores(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if stores != nil {
			stores.Close()
		}
		if log != nil {
			log.Close()
		}
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default: DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&dbURL, "database-url", "", "PostgreSQL connection string (default: DATABASE_URL)")
}
