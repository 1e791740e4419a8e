package main

import (
	"errors"
	"fmt"

	"github.com/Arsyadam/bhawikarsu-store/pkg/auth"
	"github.com/Arsyadam/bhawikarsu-store/pkg/db"
	"github.com/Arsyadam/bhawikarsu-store/services/auth/bootstrap"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
)

func adminCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Manage admin accounts",
	}

	cmd.AddCommand(adminCreateCmd(opts))

	return cmd
}

func adminCreateCmd(opts *rootOptions) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an admin account in the auth database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validator.New().Var(email, "required,email"); err != nil {
				return fmt.Errorf("invalid email %q", email)
			}
			if err := auth.ValidatePassword(password); err != nil {
				return err
			}
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

			pool, err := db.NewPostgresDB(cmd.Context(), opts.dbURL, logger)
			if err != nil {
				return err
			}
			defer pool.Close()

			id, err := bootstrap.CreateAdmin(cmd.Context(), pool, email, password, logger)
			if errors.Is(err, bootstrap.ErrAdminAlreadyExists) {
				return fmt.Errorf("admin %s already exists", email)
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (id %d)\n", email, id)

			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Admin email")
	cmd.Flags().StringVar(&password, "password", "", "Admin password (min 8 characters, letters and digits)")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")

	return cmd
}
