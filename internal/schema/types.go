// Package schema is a validation engine for tokenized rows.
//
// A schema is an ordered list of [FieldSpec] values, one per column. Checking
// a row coerces every cell into a pgtype value and collects every problem
// found, so one rejected row reports all of its bad fields at once.
//
//	people := schema.NewTuple(
//	    schema.FieldSpec{Name: "name", Type: schema.FieldText, Required: true},
//	    schema.FieldSpec{Name: "age", Type: schema.FieldNumeric},
//	)
//	results, err := parser.ConvertValidated(ctx, path, people, parser.Options{})
//
// Named definitions can be registered with [Register] and looked up by the
// CLI and HTTP layers.
package schema

// FieldType is the expected data type of a column.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldNumeric
	FieldInteger
	FieldBool
)

// String returns the lowercase type name used in messages and listings.
func (t FieldType) String() string {
	switch t {
	case FieldText:
		return "text"
	case FieldEnum:
		return "enum"
	case FieldDate:
		return "date"
	case FieldNumeric:
		return "numeric"
	case FieldInteger:
		return "integer"
	case FieldBool:
		return "bool"
	default:
		return "value"
	}
}

// FieldSpec defines validation rules for a single column.
type FieldSpec struct {
	Name       string     // Column name, used in issue paths and records
	Type       FieldType  // Expected data type
	Required   bool       // Empty cells are rejected unless AllowEmpty
	AllowEmpty bool       // Accept empty cells even when Required
	EnumValues []string   // Valid values for FieldEnum (case-insensitive)
	Min        *float64   // Inclusive lower bound for numeric/integer
	Max        *float64   // Inclusive upper bound for numeric/integer
	Normalizer Normalizer // Optional transformation applied before coercion
}

// Bound is a convenience for FieldSpec.Min and FieldSpec.Max.
func Bound(v float64) *float64 {
	return &v
}
