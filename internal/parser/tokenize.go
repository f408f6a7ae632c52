package parser

import (
	"strings"
	"unicode"
)

// Delimiter separates fields within a line. It is not configurable.
const Delimiter = ","

// FieldRow is one tokenized line: trimmed fields in left-to-right order.
type FieldRow []string

// Tokenize splits line on every comma and trims each field.
//
// Quotes carry no meaning, so a comma inside a quoted value still splits it.
// Empty fields are kept, and an empty line yields a single empty field.
func Tokenize(line string) FieldRow {
	fields := strings.Split(line, Delimiter)
	for i, f := range fields {
		fields[i] = TrimField(f)
	}
	return fields
}

// TrimField strips leading and trailing white space, including U+FEFF,
// from a field. Interior white space is kept.
func TrimField(s string) string {
	return strings.TrimFunc(s, isFieldSpace)
}

// isFieldSpace matches the ECMAScript white space and line terminator set:
// unicode.IsSpace plus U+FEFF, minus U+0085 (NEL), which is not trimmed.
func isFieldSpace(r rune) bool {
	if r == '\u0085' {
		return false
	}
	return unicode.IsSpace(r) || r == '\uFEFF'
}
