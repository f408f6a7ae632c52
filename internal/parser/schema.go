package parser

import (
	"fmt"
	"strings"
)

// Schema validates one tokenized row and transforms it into a T.
//
// Check must not modify or retain row; the resolver copies the same fields
// into the SchemaError when the row is rejected.
type Schema[T any] interface {
	Check(row FieldRow) Verdict[T]
}

// SchemaFunc adapts a plain function to the Schema interface.
type SchemaFunc[T any] func(row FieldRow) Verdict[T]

// Check calls f(row).
func (f SchemaFunc[T]) Check(row FieldRow) Verdict[T] {
	return f(row)
}

// Verdict is the outcome of checking one row: an accepted value or a
// non-empty list of issues.
type Verdict[T any] struct {
	value    T
	issues   []Issue
	rejected bool
}

// Accept returns a verdict carrying v.
func Accept[T any](v T) Verdict[T] {
	return Verdict[T]{value: v}
}

// Reject returns a verdict carrying issues. A rejection without issues is
// recorded as a single IssueCustom so callers always have a reason.
func Reject[T any](issues ...Issue) Verdict[T] {
	if len(issues) == 0 {
		issues = []Issue{{Kind: IssueCustom, Message: "row rejected"}}
	}
	return Verdict[T]{issues: issues, rejected: true}
}

// Accepted reports whether the row passed.
func (v Verdict[T]) Accepted() bool {
	return !v.rejected
}

// Value returns the accepted value, or the zero T for a rejection.
func (v Verdict[T]) Value() T {
	return v.value
}

// Issues returns the rejection issues, or nil for an accepted row.
func (v Verdict[T]) Issues() []Issue {
	return v.issues
}

// IssueKind is a machine-readable issue category.
type IssueKind string

const (
	IssueInvalidType IssueKind = "invalid_type"
	IssueOutOfRange  IssueKind = "out_of_range"
	IssueWrongArity  IssueKind = "wrong_arity"
	IssueInvalidEnum IssueKind = "invalid_enum"
	IssueRequired    IssueKind = "required"
	IssueCustom      IssueKind = "custom"
)

// Issue is one field-level or row-level problem found by a Schema.
// Path is empty for row-level issues.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Path    []string  `json:"path"`
	Message string    `json:"message"`
}

func (i Issue) String() string {
	if len(i.Path) == 0 {
		return fmt.Sprintf("%s: %s", i.Kind, i.Message)
	}
	return fmt.Sprintf("%s: %s: %s", strings.Join(i.Path, "."), i.Kind, i.Message)
}
