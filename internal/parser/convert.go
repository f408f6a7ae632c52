package parser

import (
	"context"
	"errors"
	"io"
)

// ErrNilSchema is returned by the validated entry points when schema is nil.
var ErrNilSchema = errors.New("parser: nil schema")

// ConvertRaw reads the file at path and returns one FieldRow per line.
//
// On an open or read failure no rows are returned.
func ConvertRaw(ctx context.Context, path string, opts Options) ([]FieldRow, error) {
	lines, err := OpenLines(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	defer lines.Close()

	return ResolveRaw(lines)
}

// ConvertRawReader is ConvertRaw over an already open reader.
func ConvertRawReader(ctx context.Context, r io.Reader, opts Options) ([]FieldRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ResolveRaw(NewLineSource(r, opts))
}

// ConvertValidated reads the file at path and checks every line against
// schema. The result holds one entry per line, in input order.
//
// Rejected rows become SchemaError results and do not stop the conversion.
// On an open or read failure no results are returned.
func ConvertValidated[T any](ctx context.Context, path string, schema Schema[T], opts Options) ([]Result[T], error) {
	if schema == nil {
		return nil, ErrNilSchema
	}

	lines, err := OpenLines(ctx, path, opts)
	if err != nil {
		return nil, err
	}
	defer lines.Close()

	return ResolveValidated(lines, schema)
}

// ConvertValidatedReader is ConvertValidated over an already open reader.
func ConvertValidatedReader[T any](ctx context.Context, r io.Reader, schema Schema[T], opts Options) ([]Result[T], error) {
	if schema == nil {
		return nil, ErrNilSchema
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return ResolveValidated(NewLineSource(r, opts), schema)
}

// ResolveRaw drains lines and tokenizes each one.
func ResolveRaw(lines *LineSource) ([]FieldRow, error) {
	rows := make([]FieldRow, 0)
	for lines.Next() {
		rows = append(rows, Tokenize(lines.Text()))
	}
	if err := lines.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// ResolveValidated drains lines, checking each tokenized row against schema.
func ResolveValidated[T any](lines *LineSource, schema Schema[T]) ([]Result[T], error) {
	if schema == nil {
		return nil, ErrNilSchema
	}

	results := make([]Result[T], 0)
	rowIndex := 0
	for lines.Next() {
		row := Tokenize(lines.Text())
		results = append(results, resolveRow(schema, rowIndex, row))
		rowIndex++
	}
	if err := lines.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func resolveRow[T any](schema Schema[T], rowIndex int, row FieldRow) Result[T] {
	verdict := schema.Check(row)
	if verdict.Accepted() {
		return Ok(verdict.Value())
	}
	return Fail[T](newSchemaError(rowIndex, row, verdict.Issues()))
}
