package web

// views.go turns conversion outcomes into the view models the templates in
// internal/web/templates render.

import (
	"fmt"
	"strings"

	"github.com/JonMunkholm/csvparse/internal/core"
	"github.com/JonMunkholm/csvparse/internal/parser"
	"github.com/JonMunkholm/csvparse/internal/schema"
	"github.com/JonMunkholm/csvparse/internal/web/templates"
)

// maxReportRows caps how many rows the HTML report renders. The summary
// always covers the whole file.
const maxReportRows = 500

func schemaOptions(infos []core.SchemaInfo) []templates.SchemaOption {
	opts := make([]templates.SchemaOption, len(infos))
	for i, info := range infos {
		opts[i] = templates.SchemaOption{Name: info.Name, Description: info.Description}
	}
	return opts
}

// reportView builds the report for out. columns orders the record cells and
// is ignored for raw conversions.
func reportView(out *core.Outcome, columns []string, warning string) templates.Report {
	r := templates.Report{
		RunID:   out.RunID.String(),
		Source:  out.Source,
		Schema:  out.Schema,
		Warning: warning,
		Summary: fmt.Sprintf("%d rows, %d accepted, %d rejected, %d bytes in %s.",
			out.Summary.Rows, out.Summary.Accepted, out.Summary.Rejected,
			out.Summary.BytesRead, out.Summary.Duration),
	}
	if r.Schema == "" {
		r.Schema = "raw"
	}

	if out.Records == nil {
		r.Columns = []string{"Fields"}
		r.Total = len(out.Rows)
		for i, row := range out.Rows[:min(len(out.Rows), maxReportRows)] {
			r.Lines = append(r.Lines, templates.ReportLine{Index: i, Cells: row})
		}
		return r
	}

	r.Columns = columns
	r.Total = len(out.Records)
	for i, res := range out.Records[:min(len(out.Records), maxReportRows)] {
		line := templates.ReportLine{Index: i}
		res.Match(
			func(rec schema.Record) {
				line.Cells = make([]string, len(columns))
				for j, c := range columns {
					line.Cells[j] = cellText(rec[c])
				}
			},
			func(e *parser.SchemaError) {
				line.Error = e.Detail()
				line.Raw = strings.Join(e.Raw, ",")
			},
		)
		r.Lines = append(r.Lines, line)
	}
	return r
}

func cellText(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
