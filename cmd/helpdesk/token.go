package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-workflow/internal/auth"
	"github.com/spec-kit/helpdesk-workflow/internal/config"
	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// newTokenCommand mints bearer tokens signed with AUTH_JWT_SECRET, for local
// development and smoke tests.
func newTokenCommand() *cobra.Command {
	var actor domain.Actor
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a development bearer token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if actor.UserID <= 0 || actor.TenantID <= 0 {
				return fmt.Errorf("--user and --tenant are required")
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			token, expiresAt, err := auth.NewTokenManager(cfg.Auth).GenerateToken(actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n# expires %s\n", token, expiresAt.Format("2006-01-02T15:04:05Z07:00"))
			return nil
		},
	}
	cmd.Flags().Int64Var(&actor.UserID, "user", 0, "user id")
	cmd.Flags().Int64Var(&actor.TenantID, "tenant", 0, "tenant id")
	cmd.Flags().BoolVar(&actor.IsAdmin, "admin", false, "tenant admin")
	return cmd
}
