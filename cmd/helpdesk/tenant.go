package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newTenantCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenant",
		Short: "Tenant administration",
	}
	cmd.AddCommand(newTenantSeedCommand())
	return cmd
}

func newTenantSeedCommand() *cobra.Command {
	var tenantID int64
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Install the default columns, statuses and actions for a tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tenantID <= 0 {
				return fmt.Errorf("--tenant is required")
			}
			rt, err := bootstrap(cmd.Context(), bootstrapOptions{requirePostgres: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			seeded, err := rt.graph.SeedDefaults(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			rt.logger.Info("tenant seed finished", zap.Int64("tenant_id", tenantID), zap.Bool("seeded", seeded))
			if !seeded {
				fmt.Fprintln(cmd.OutOrStdout(), "tenant already has a workflow; nothing to do")
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&tenantID, "tenant", 0, "tenant id")
	return cmd
}
