package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"datahub-storefront/internal/domain/model"
	"datahub-storefront/internal/infra/logging"
)

func afaStatusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "afa-status [phone]",
		Short: "Ask the registration backend whether an MTN number is AFA registered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.load()
			if err != nil {
				return err
			}
			logger := logging.New(cfg.Log, cfg.Runtime.Dev)

			phone := model.NormalizePhone(args[0])
			if !phone.IsValidMTN() {
				return fmt.Errorf("%q is not a valid MTN number", args[0])
			}
			registry, err := newRegistry(cfg, logger)
			if err != nil {
				return err
			}
			status, err := registry.CheckStatus(cmd.Context(), phone)
			if err != nil {
				return fmt.Errorf("check status: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", phone, status)
			return nil
		},
	}
}
