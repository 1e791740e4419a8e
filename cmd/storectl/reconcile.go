package main

import (
	"encoding/json"

	"github.com/Arsyadam/bhawikarsu-store/pkg/config"
	"github.com/Arsyadam/bhawikarsu-store/pkg/db"
	"github.com/Arsyadam/bhawikarsu-store/services/order/reconcile"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func reconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one payment reconciliation sweep against the order database",
		Long: `Promotes lost charges to orders and re-checks stale pending orders with
Midtrans. Gateway settings come from the usual config file and environment;
--db overrides postgres.url. Produced events are relayed by the order service.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.MustLoad()
			if opts.dbURL != "" {
				cfg.Postgres.URL = opts.dbURL
			}

			opts.dbURL = cfg.Postgres.URL
			if err := opts.requireDB(); err != nil {
				return err
			}

			logger, err := opts.logger()
			if err != nil {
				return err
			}
			defer func() {
				_ = logger.Sync()
			}()

			pool, err := db.NewPostgresDB(cmd.Context(), cfg.Postgres.URL, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			report, err := reconcile.Run(cmd.Context(), pool, cfg, logger)
			if err != nil {
				return err
			}

			logger.Info("reconciliation finished",
				zap.Int("materialized", report.Materialized),
				zap.Int("failed_attempts", report.FailedAttempts),
				zap.Int("checked", report.Checked),
				zap.Int("transitioned", report.Transitioned),
			)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			return enc.Encode(report)
		},
	}
}
