package schema

import "github.com/JonMunkholm/csvparse/internal/parser"

// Record is an accepted row keyed by field name, with JSON-friendly values
// (string, float64, int64, bool, "YYYY-MM-DD" dates, nil for empty cells).
type Record map[string]any

// Transform returns a schema that checks rows with s and maps accepted
// values through fn. An fn error rejects the row with a custom issue.
//
//	type Student struct{ Name string; Age float64; IsStudent string }
//
//	students := schema.Transform(schema.NewTuple(nameSpec, ageSpec, studentSpec),
//	    func(v schema.Values) (Student, error) {
//	        return Student{Name: v.Text(0), Age: v.Float(1), IsStudent: v.Text(2)}, nil
//	    })
func Transform[A, B any](s parser.Schema[A], fn func(A) (B, error)) parser.Schema[B] {
	return parser.SchemaFunc[B](func(row parser.FieldRow) parser.Verdict[B] {
		v := s.Check(row)
		if !v.Accepted() {
			return parser.Reject[B](v.Issues()...)
		}
		out, err := fn(v.Value())
		if err != nil {
			return parser.Reject[B](parser.Issue{Kind: parser.IssueCustom, Message: err.Error()})
		}
		return parser.Accept(out)
	})
}
