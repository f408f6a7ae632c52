package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvparse/internal/core"
	"github.com/JonMunkholm/csvparse/internal/parser"
	"github.com/JonMunkholm/csvparse/internal/schema"
)

var convertCmd = &cobra.Command{
	Use:   "convert <path>",
	Short: "Convert one file and print its rows",
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

func init() {
	convertCmd.Flags().StringP("schema", "s", "", "Registered schema to check rows against (empty prints raw rows)")
	convertCmd.Flags().StringP("format", "f", "text", "Output format: text or json")
	convertCmd.Flags().Bool("persist", false, "Record the run in the database named by DATABASE_URL")
}

func runConvert(cmd *cobra.Command, args []string) error {
	schemaName, _ := cmd.Flags().GetString("schema")
	format, _ := cmd.Flags().GetString("format")
	persist, _ := cmd.Flags().GetBool("persist")

	if format != "text" && format != "json" {
		return fmt.Errorf("unknown format %q (want text or json)", format)
	}

	ctx := cmd.Context()

	var rec core.Recorder
	if persist {
		pool, st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()
		rec = st
	}

	service := core.NewService(cfg, rec)
	out, err := service.Convert(ctx, core.Request{Source: args[0], Schema: schemaName})
	if err != nil && !errors.Is(err, core.ErrPersist) {
		return userError(err)
	}

	w := cmd.OutOrStdout()
	if format == "json" {
		if werr := writeOutcomeJSON(w, out); werr != nil {
			return werr
		}
	} else {
		var columns []string
		if def, ok := schema.Get(schemaName); ok {
			columns = def.Columns()
		}
		if werr := writeOutcomeText(w, out, columns); werr != nil {
			return werr
		}
	}

	if err != nil {
		return userError(err)
	}
	return nil
}

// userError replaces err with its coded user-facing message.
func userError(err error) error {
	slog.Debug("conversion error", "error", err)
	return errors.New(core.FormatUserError(err))
}

func writeOutcomeJSON(w io.Writer, out *core.Outcome) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// writeOutcomeText prints one line per row followed by a summary line.
// Rejected rows print the schema error detail in place of the record.
func writeOutcomeText(w io.Writer, out *core.Outcome, columns []string) error {
	var b strings.Builder

	if out.Records == nil {
		for i, row := range out.Rows {
			fmt.Fprintf(&b, "%d\t%s\n", i, strings.Join(row, "\t"))
		}
	} else {
		for i, r := range out.Records {
			r.Match(
				func(rec schema.Record) {
					fmt.Fprintf(&b, "%d\t%s\n", i, formatRecord(rec, columns))
				},
				func(e *parser.SchemaError) {
					fmt.Fprintf(&b, "%d\tERROR %s\n", i, e.Detail())
				},
			)
		}
	}

	fmt.Fprintf(&b, "%s: %d rows, %d accepted, %d rejected, %d bytes in %s\n",
		out.Source, out.Summary.Rows, out.Summary.Accepted, out.Summary.Rejected,
		out.Summary.BytesRead, out.Summary.Duration)

	_, err := io.WriteString(w, b.String())
	return err
}

func formatRecord(rec schema.Record, columns []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		v := rec[c]
		if v == nil {
			parts[i] = c + "="
			continue
		}
		parts[i] = fmt.Sprintf("%s=%v", c, v)
	}
	return strings.Join(parts, "\t")
}
