package templates

// SchemaOption is one choice in the upload form's schema list.
type SchemaOption struct {
	Name        string
	Description string
}

// Report is the view model for a finished conversion.
type Report struct {
	RunID   string
	Source  string
	Schema  string // "raw" for unchecked conversions
	Summary string // counts, size and duration in one line
	Warning string // set when the conversion succeeded but was not saved
	Columns []string
	Lines   []ReportLine
	Total   int // rows in the file; Lines may hold fewer
}

// ReportLine is one rendered row. Error is set for rejected rows, which
// show Raw instead of Cells.
type ReportLine struct {
	Index int
	Cells []string
	Error string
	Raw   string
}

// Truncated reports whether only the first rows are shown.
func (r Report) Truncated() bool {
	return r.Total > len(r.Lines)
}

// ErrorSpan is the colspan of a rejected row's detail cell.
func (r Report) ErrorSpan() int {
	return max(len(r.Columns), 1)
}
