// Package commands holds the gateway's cobra subcommands.
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackt666/immoxx--sub004/utils"
)

// Options are the persistent flags shared by every subcommand.
type Options struct {
	EnvFile string
}

func NewRootCmd() *cobra.Command {
	opts := &Options{}
	root := &cobra.Command{
		Use:           "immoxx-gateway",
		Short:         "Edge gateway for the immoxx site: rate limiting, caching, monitoring and security events",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "dotenv file to load before reading the environment (default .env)")

	root.AddCommand(
		ServeCmd(opts),
		MigrateCmd(opts),
		SeedCmd(opts),
		MaintainCmd(opts),
	)
	return root
}

func (o *Options) load() (*utils.Config, *zap.Logger, error) {
	var files []string
	if o.EnvFile != "" {
		files = append(files, o.EnvFile)
	}
	cfg, err := utils.LoadConfig(files...)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
