package commands

import (
	"github.com/spf13/cobra"

	"github.com/blackt666/immoxx--sub004/migrations"
	"github.com/blackt666/immoxx--sub004/seed"
	"github.com/blackt666/immoxx--sub004/utils"
)

func MigrateCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the gateway tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			gatewayDB, appDB, err := utils.ConnectDatabases(cfg)
			if err != nil {
				return err
			}
			if err := migrations.MigrateAll(gatewayDB, appDB); err != nil {
				return err
			}
			logger.Info("Migrations complete")
			return nil
		},
	}
}

func SeedCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the admin account from ADMIN_EMAIL and ADMIN_PASSWORD",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			gatewayDB, _, err := utils.ConnectDatabases(cfg)
			if err != nil {
				return err
			}
			if err := migrations.MigrateAdmins(gatewayDB); err != nil {
				return err
			}
			return seed.SeedAdmin(gatewayDB, logger, cfg.AdminEmail, cfg.AdminPassword)
		},
	}
}
