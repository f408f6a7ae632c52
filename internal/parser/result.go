package parser

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// SchemaError records a row rejected by a Schema. It is created once per
// rejected row and never modified afterwards.
type SchemaError struct {
	RowIndex int      `json:"rowIndex"` // zero-based
	Raw      FieldRow `json:"raw"`
	Issues   []Issue  `json:"issues"`
}

func newSchemaError(rowIndex int, raw FieldRow, issues []Issue) *SchemaError {
	return &SchemaError{
		RowIndex: rowIndex,
		Raw:      slices.Clone(raw),
		Issues:   slices.Clone(issues),
	}
}

// Error reports the one-based row number.
func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema error at row %d", e.Line())
}

// Line returns the one-based row number for messages.
func (e *SchemaError) Line() int {
	return e.RowIndex + 1
}

// Detail joins all issues into one line for logs and plain-text output.
func (e *SchemaError) Detail() string {
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.String()
	}
	return fmt.Sprintf("%s: %s", e.Error(), strings.Join(parts, "; "))
}

// Result is the outcome for one row in validated mode: either a value or a
// *SchemaError, never both.
//
// Use Unpack or Match rather than inspecting the zero value; a Result built
// with Ok never reports an error whatever the shape of T.
type Result[T any] struct {
	value T
	err   *SchemaError
}

// Ok wraps an accepted value.
func Ok[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Fail wraps a rejected row. It panics on a nil error, which would otherwise
// turn into a zero-valued success.
func Fail[T any](err *SchemaError) Result[T] {
	if err == nil {
		panic("parser: Fail called with nil *SchemaError")
	}
	return Result[T]{err: err}
}

// IsErr reports whether the row was rejected.
func (r Result[T]) IsErr() bool {
	return r.err != nil
}

// Value returns the accepted value and true, or the zero T and false.
func (r Result[T]) Value() (T, bool) {
	if r.err != nil {
		var zero T
		return zero, false
	}
	return r.value, true
}

// Err returns the rejection, or nil for an accepted row.
func (r Result[T]) Err() *SchemaError {
	return r.err
}

// Unpack returns both halves; exactly one of them is meaningful.
func (r Result[T]) Unpack() (T, *SchemaError) {
	return r.value, r.err
}

// Match calls onValue or onErr depending on the outcome. Both must be non-nil.
func (r Result[T]) Match(onValue func(T), onErr func(*SchemaError)) {
	if r.err != nil {
		onErr(r.err)
		return
	}
	onValue(r.value)
}

type resultJSON[T any] struct {
	OK    bool         `json:"ok"`
	Value *T           `json:"value,omitempty"`
	Error *SchemaError `json:"error,omitempty"`
}

// MarshalJSON encodes the result as {"ok":true,"value":...} or
// {"ok":false,"error":{...}}.
func (r Result[T]) MarshalJSON() ([]byte, error) {
	if r.err != nil {
		return json.Marshal(resultJSON[T]{OK: false, Error: r.err})
	}
	v := r.value
	return json.Marshal(resultJSON[T]{OK: true, Value: &v})
}

// Summary counts the outcomes of one conversion.
type Summary struct {
	Rows     int `json:"rows"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// Summarize counts accepted and rejected rows.
func Summarize[T any](results []Result[T]) Summary {
	s := Summary{Rows: len(results)}
	for _, r := range results {
		if r.IsErr() {
			s.Rejected++
		} else {
			s.Accepted++
		}
	}
	return s
}

// Errors returns the rejections in row order.
func Errors[T any](results []Result[T]) []*SchemaError {
	var errs []*SchemaError
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
		}
	}
	return errs
}
