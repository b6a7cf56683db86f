package main

import (
	"github.com/spf13/cobra"

	"rentdesk/db"
	"rentdesk/db/migrations"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			dbConn, err := db.Connect(cmd.Context(), cfg.Database.ConnString, db.Options{MaxOpenConns: 1})
			if err != nil {
				return err
			}
			defer dbConn.Close()

			return migrations.Run(cmd.Context(), dbConn.DB, logger)
		},
	}
}
