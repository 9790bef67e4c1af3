package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

func newDirectoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "directory",
		Short: "Maintain the local mirror of the user directory",
	}
	cmd.AddCommand(newDirectoryUpsertCommand())
	return cmd
}

func newDirectoryUpsertCommand() *cobra.Command {
	var (
		user       domain.DirectoryUser
		department int64
	)
	cmd := &cobra.Command{
		Use:   "upsert",
		Short: "Insert or update one directory user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user.ID <= 0 || user.TenantID <= 0 {
				return fmt.Errorf("--id and --tenant are required")
			}
			if department > 0 {
				user.DepartmentID = &department
			}
			rt, err := bootstrap(cmd.Context(), bootstrapOptions{requirePostgres: true})
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.directory.Upsert(cmd.Context(), user)
		},
	}
	cmd.Flags().Int64Var(&user.ID, "id", 0, "user id")
	cmd.Flags().Int64Var(&user.TenantID, "tenant", 0, "tenant id")
	cmd.Flags().Int64Var(&department, "department", 0, "department id")
	cmd.Flags().StringVar(&user.DisplayName, "name", "", "display name")
	return cmd
}
