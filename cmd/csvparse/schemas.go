package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvparse/internal/core"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "List registered schemas and their columns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return writeSchemas(cmd.OutOrStdout(), core.NewService(cfg, nil).ListSchemas())
	},
}

func writeSchemas(w io.Writer, infos []core.SchemaInfo) error {
	for _, info := range infos {
		if _, err := fmt.Fprintf(w, "%s\t%s\n", info.Name, info.Description); err != nil {
			return err
		}
		for _, col := range info.Columns {
			req := ""
			if col.Required {
				req = " required"
			}
			if _, err := fmt.Fprintf(w, "  %-12s %s%s\n", col.Name, col.Type, req); err != nil {
				return err
			}
		}
	}
	return nil
}
