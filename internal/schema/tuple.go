package schema

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/csvparse/internal/parser"
)

// Values holds the coerced cells of one accepted row, in column order.
// Each element is a pgtype.Text, Numeric, Int8, Date or Bool; empty
// optional cells are present with Valid=false.
type Values []any

// Tuple checks rows positionally against a fixed list of field specs.
// It implements parser.Schema[Values].
type Tuple struct {
	specs []FieldSpec
}

var _ parser.Schema[Values] = (*Tuple)(nil)

// NewTuple returns a Tuple for specs. Row i is checked against specs[i].
func NewTuple(specs ...FieldSpec) *Tuple {
	return &Tuple{specs: append([]FieldSpec(nil), specs...)}
}

// Specs returns the field specs in column order.
func (t *Tuple) Specs() []FieldSpec {
	return append([]FieldSpec(nil), t.specs...)
}

// Check validates row. A row with the wrong number of fields is rejected
// with a single wrong_arity issue; otherwise every cell is checked and all
// issues are reported together.
func (t *Tuple) Check(row parser.FieldRow) parser.Verdict[Values] {
	if len(row) != len(t.specs) {
		return parser.Reject[Values](parser.Issue{
			Kind:    parser.IssueWrongArity,
			Message: fmt.Sprintf("expected %d fields, got %d", len(t.specs), len(row)),
		})
	}

	vals := make(Values, len(t.specs))
	var issues []parser.Issue
	for i, spec := range t.specs {
		v, issue := coerceCell(row[i], spec)
		if issue != nil {
			issue.Path = []string{fieldPath(i, spec)}
			issues = append(issues, *issue)
			continue
		}
		vals[i] = v
	}

	if len(issues) > 0 {
		return parser.Reject[Values](issues...)
	}
	return parser.Accept(vals)
}

// Record maps accepted values to their field names. Fields without a name
// are keyed by their zero-based column index.
func (t *Tuple) Record(vals Values) Record {
	rec := make(Record, len(t.specs))
	for i, spec := range t.specs {
		if i >= len(vals) {
			break
		}
		rec[fieldPath(i, spec)] = plainValue(vals[i])
	}
	return rec
}

func fieldPath(i int, spec FieldSpec) string {
	if spec.Name != "" {
		return spec.Name
	}
	return strconv.Itoa(i)
}

// coerceCell cleans raw and converts it according to spec.
func coerceCell(raw string, spec FieldSpec) (any, *parser.Issue) {
	s := CleanCell(raw)

	if s == "" {
		if spec.Required && !spec.AllowEmpty {
			return nil, &parser.Issue{Kind: parser.IssueRequired, Message: "required field is empty"}
		}
		return nullOf(spec.Type), nil
	}

	if spec.Normalizer != nil {
		s = spec.Normalizer(s)
	}

	switch spec.Type {
	case FieldEnum:
		for _, ev := range spec.EnumValues {
			if strings.EqualFold(ev, s) {
				return pgtype.Text{String: ev, Valid: true}, nil
			}
		}
		return nil, &parser.Issue{
			Kind:    parser.IssueInvalidEnum,
			Message: fmt.Sprintf("value must be one of: %s", strings.Join(spec.EnumValues, ", ")),
		}

	case FieldNumeric:
		n := ToNumeric(s)
		if !n.Valid {
			return nil, invalidType(spec.Type, s)
		}
		f, err := n.Float64Value()
		if err != nil {
			return nil, invalidType(spec.Type, s)
		}
		if issue := checkRange(f.Float64, spec); issue != nil {
			return nil, issue
		}
		return n, nil

	case FieldInteger:
		i, err := ToInteger(s)
		if errors.Is(err, strconv.ErrRange) {
			return nil, &parser.Issue{Kind: parser.IssueOutOfRange, Message: fmt.Sprintf("%q does not fit in 64 bits", s)}
		}
		if err != nil {
			return nil, invalidType(spec.Type, s)
		}
		if issue := checkRange(float64(i.Int64), spec); issue != nil {
			return nil, issue
		}
		return i, nil

	case FieldDate:
		d := ToDate(s)
		if !d.Valid {
			return nil, &parser.Issue{
				Kind:    parser.IssueInvalidType,
				Message: fmt.Sprintf("invalid date format %q (use YYYY-MM-DD or similar)", s),
			}
		}
		return d, nil

	case FieldBool:
		b := ToBool(s)
		if !b.Valid {
			return nil, &parser.Issue{
				Kind:    parser.IssueInvalidType,
				Message: fmt.Sprintf("%q must be yes/no, true/false, or 1/0", s),
			}
		}
		return b, nil

	default:
		return ToText(s), nil
	}
}

func invalidType(ft FieldType, s string) *parser.Issue {
	return &parser.Issue{
		Kind:    parser.IssueInvalidType,
		Message: fmt.Sprintf("expected %s, received %q", ft, s),
	}
}

func checkRange(f float64, spec FieldSpec) *parser.Issue {
	if spec.Min != nil && f < *spec.Min {
		return &parser.Issue{Kind: parser.IssueOutOfRange, Message: fmt.Sprintf("must be >= %v", *spec.Min)}
	}
	if spec.Max != nil && f > *spec.Max {
		return &parser.Issue{Kind: parser.IssueOutOfRange, Message: fmt.Sprintf("must be <= %v", *spec.Max)}
	}
	return nil
}

func nullOf(ft FieldType) any {
	switch ft {
	case FieldNumeric:
		return pgtype.Numeric{}
	case FieldInteger:
		return pgtype.Int8{}
	case FieldDate:
		return pgtype.Date{}
	case FieldBool:
		return pgtype.Bool{}
	default:
		return pgtype.Text{}
	}
}

// Text returns column i as a string, or "" when it is NULL or not text.
func (v Values) Text(i int) string {
	if t, ok := v.at(i).(pgtype.Text); ok && t.Valid {
		return t.String
	}
	return ""
}

// Float returns column i as a float64 for numeric and integer columns.
func (v Values) Float(i int) float64 {
	switch n := v.at(i).(type) {
	case pgtype.Numeric:
		if f, err := n.Float64Value(); err == nil && f.Valid {
			return f.Float64
		}
	case pgtype.Int8:
		if n.Valid {
			return float64(n.Int64)
		}
	}
	return 0
}

// Int returns column i as an int64 for integer and whole numeric columns.
func (v Values) Int(i int) int64 {
	switch n := v.at(i).(type) {
	case pgtype.Int8:
		if n.Valid {
			return n.Int64
		}
	case pgtype.Numeric:
		if i8, err := n.Int64Value(); err == nil && i8.Valid {
			return i8.Int64
		}
	}
	return 0
}

// Date returns column i as a time.Time, or the zero time.
func (v Values) Date(i int) time.Time {
	if d, ok := v.at(i).(pgtype.Date); ok && d.Valid {
		return d.Time
	}
	return time.Time{}
}

// Bool returns column i as a bool, or false.
func (v Values) Bool(i int) bool {
	if b, ok := v.at(i).(pgtype.Bool); ok && b.Valid {
		return b.Bool
	}
	return false
}

// Valid reports whether column i holds a non-NULL value.
func (v Values) Valid(i int) bool {
	switch x := v.at(i).(type) {
	case pgtype.Text:
		return x.Valid
	case pgtype.Numeric:
		return x.Valid
	case pgtype.Int8:
		return x.Valid
	case pgtype.Date:
		return x.Valid
	case pgtype.Bool:
		return x.Valid
	default:
		return false
	}
}

func (v Values) at(i int) any {
	if i < 0 || i >= len(v) {
		return nil
	}
	return v[i]
}

// plainValue converts a pgtype value into a JSON-friendly Go value.
func plainValue(x any) any {
	switch t := x.(type) {
	case pgtype.Text:
		if t.Valid {
			return t.String
		}
	case pgtype.Numeric:
		if f, err := t.Float64Value(); err == nil && f.Valid {
			return f.Float64
		}
	case pgtype.Int8:
		if t.Valid {
			return t.Int64
		}
	case pgtype.Date:
		if t.Valid {
			return t.Time.Format(time.DateOnly)
		}
	case pgtype.Bool:
		if t.Valid {
			return t.Bool
		}
	}
	return nil
}
