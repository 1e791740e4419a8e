package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Arsyadam/bhawikarsu-store/pkg/config"
	"github.com/Arsyadam/bhawikarsu-store/pkg/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var Version = "dev"

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type rootOptions struct {
	dbURL    string
	logLevel string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "storectl",
		Short:         "Operator tool for the B96 store services",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.dbURL, "db", utils.ParseWithFallback("DB_URL", ""), "Postgres URL of the target service database")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level")

	rootCmd.AddCommand(migrateCmd(opts))
	rootCmd.AddCommand(adminCmd(opts))
	rootCmd.AddCommand(reconcileCmd(opts))

	return rootCmd
}

func (o *rootOptions) logger() (*zap.Logger, error) {
	return config.NewLogger(config.LoggerConfig{Level: o.logLevel, Env: "local"})
}

func (o *rootOptions) requireDB() error {
	if o.dbURL == "" {
		return fmt.Errorf("--db or DB_URL is required")
	}

	return nil
}
