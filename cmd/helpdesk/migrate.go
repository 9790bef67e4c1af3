package main

import (
	"github.com/spf13/cobra"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply SQL migrations to the configured Postgres database",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), bootstrapOptions{migrate: true, requirePostgres: true})
			if err != nil {
				return err
			}
			rt.Close()
			return nil
		},
	}
}
