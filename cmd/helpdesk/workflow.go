package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func newWorkflowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "workflow",
		Short: "Import or export a tenant workflow definition as YAML",
	}
	cmd.AddCommand(newWorkflowImportCommand(), newWorkflowExportCommand())
	return cmd
}

func newWorkflowImportCommand() *cobra.Command {
	var (
		tenantID int64
		file     string
	)
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Merge a YAML workflow definition into a tenant",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tenantID <= 0 {
				return fmt.Errorf("--tenant is required")
			}
			raw, err := readInput(cmd, file)
			if err != nil {
				return err
			}
			rt, err := bootstrap(cmd.Context(), bootstrapOptions{requirePostgres: true})
			if err != nil {
				return err
			}
			defer rt.Close()
			return rt.graph.ImportDefinition(cmd.Context(), tenantID, raw)
		},
	}
	cmd.Flags().Int64Var(&tenantID, "tenant", 0, "tenant id")
	cmd.Flags().StringVarP(&file, "file", "f", "-", "definition file, - for stdin")
	return cmd
}

func newWorkflowExportCommand() *cobra.Command {
	var tenantID int64
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Print a tenant workflow definition",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if tenantID <= 0 {
				return fmt.Errorf("--tenant is required")
			}
			rt, err := bootstrap(cmd.Context(), bootstrapOptions{requirePostgres: true})
			if err != nil {
				return err
			}
			defer rt.Close()
			raw, err := rt.graph.ExportDefinition(cmd.Context(), tenantID)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(raw)
			return err
		},
	}
	cmd.Flags().Int64Var(&tenantID, "tenant", 0, "tenant id")
	return cmd
}

func readInput(cmd *cobra.Command, file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	return os.ReadFile(file)
}
