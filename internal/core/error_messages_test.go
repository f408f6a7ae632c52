package core

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/csvparse/internal/parser"
)

func TestMapError(t *testing.T) {
	_, missing := parser.ConvertRaw(context.Background(), "testdata/does-not-exist.csv", parser.Options{})
	require.Error(t, missing)

	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "nil error", err: nil, wantCode: ""},
		{name: "missing file", err: missing, wantCode: "FILE001"},
		{name: "open failure", err: fmt.Errorf("%w x.csv: %w", parser.ErrOpen, errors.New("permission denied")), wantCode: "FILE002"},
		{name: "read failure", err: fmt.Errorf("%w x.csv at line 3: %w", parser.ErrRead, errors.New("i/o error")), wantCode: "FILE002"},
		{name: "line too long", err: fmt.Errorf("%w x.csv at line 3: %w", parser.ErrRead, bufio.ErrTooLong), wantCode: "FILE003"},
		{name: "schema error", err: &parser.SchemaError{RowIndex: 2}, wantCode: "VAL001"},
		{name: "unknown schema", err: fmt.Errorf("%w: nope", ErrUnknownSchema), wantCode: "SCH001"},
		{name: "too many", err: ErrTooManyConversions, wantCode: "CNV001"},
		{name: "store failure", err: fmt.Errorf("%w: %w", ErrPersist, errors.New("boom")), wantCode: "STO001"},
		{name: "store timeout prefers timeout", err: fmt.Errorf("%w: %w", ErrPersist, context.DeadlineExceeded), wantCode: "UPL005"},
		{name: "canceled", err: fmt.Errorf("convert: %w", context.Canceled), wantCode: "UPL004"},
		{name: "upload too large", err: errors.New("http: request body too large"), wantCode: "FILE004"},
		{name: "no file", err: errors.New("no file provided"), wantCode: "FILE005"},
		{name: "connection refused", err: errors.New("dial tcp 127.0.0.1:5432: Connection Refused"), wantCode: "DB004"},
		{name: "unknown", err: errors.New("something strange"), wantCode: "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, MapError(tt.err).Code)
		})
	}
}

func TestFormatUserError(t *testing.T) {
	assert.Empty(t, FormatUserError(nil))
	assert.Equal(t,
		"Too many conversions in progress (Code: CNV001). Please wait a moment and try again",
		FormatUserError(ErrTooManyConversions))
}

func TestIsUserFacing(t *testing.T) {
	assert.False(t, IsUserFacing(nil))
	assert.False(t, IsUserFacing(errors.New("mystery")))
	assert.True(t, IsUserFacing(ErrTooManyConversions))
}

func TestUserError(t *testing.T) {
	assert.Nil(t, NewUserError(nil))

	tech := fmt.Errorf("%w: people2", ErrUnknownSchema)
	ue := NewUserError(tech)
	assert.Equal(t, "Unknown schema", ue.Error())
	assert.Equal(t, "SCH001", ue.User.Code)
	assert.ErrorIs(t, ue, ErrUnknownSchema)
}
