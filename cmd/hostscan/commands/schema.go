package commands

import (
	"bytes"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hostscan/hostscan/pkg/schema"
)

// NewSchemaCommand defines 'schema', which prints the warehouse table schema.
func NewSchemaCommand() *cobra.Command {
	var (
		format string
		table  string
	)

	cmd := &cobra.Command{
		Use:     "schema",
		Short:   "Print the warehouse table schema",
		GroupID: "core",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := schema.Build().Render(format, table)
			if err != nil {
				return fail(outputFrom(cmd), "schema", fmt.Errorf("%w: %w", errUsage, err))
			}
			if !bytes.HasSuffix(data, []byte("\n")) {
				data = append(data, '\n')
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", schema.FormatJSON, "Output format (json, yaml, ddl)")
	cmd.Flags().StringVar(&table, "table", "hosts", "Table name used by the ddl format")
	return cmd
}
