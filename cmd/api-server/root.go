package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rentdesk/config"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "api-server",
		Short:         "Maintenance requests and jobs API",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.AddCommand(newServeCmd(), newMigrateCmd(), newRelayCmd())
	return cmd
}

// setup загружает конфигурацию и логгер, общие для всех команд
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logger, err := config.NewLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
