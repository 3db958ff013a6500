package main

import (
	"fmt"

	"github.com/spf13/cobra"

	pg "datahub-storefront/internal/infra/db/postgres"
	"datahub-storefront/internal/infra/logging"
)

func migrateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded Postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log, cfg.Runtime.Dev)

			ctx := cmd.Context()
			pool, err := pg.NewPgxPool(ctx, cfg.Database)
			if err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			defer pool.Close()

			if err := pg.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info().Msg("schema applied")
			return nil
		},
	}
}
