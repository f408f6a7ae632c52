package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(name string) string {
	return filepath.Join("..", "..", "internal", "parser", "testdata", name)
}

// run executes the root command with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_URL", "")
	t.Setenv("LOG_LEVEL", "error")

	// Flag values survive between Execute calls on the shared commands.
	convertCmd.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestConvert_RawText(t *testing.T) {
	out, err := run(t, "convert", fixture("people.csv"), "--schema", "", "--format", "text")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, "0\tname\tage", lines[0])
	assert.Equal(t, "2\tBob\tthirty", lines[2])
	assert.Contains(t, lines[5], "5 rows, 5 accepted, 0 rejected, 47 bytes")
}

func TestConvert_ValidatedText(t *testing.T) {
	out, err := run(t, "convert", fixture("schema_error.csv"), "--schema", "students", "--format", "text")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "0\tname=Alice\tage=20\tisStudent=Yes", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "1\tERROR schema error at row 2: "), lines[1])
	assert.Contains(t, lines[2], "2 rows, 1 accepted, 1 rejected")
}

func TestConvert_JSON(t *testing.T) {
	out, err := run(t, "convert", fixture("people.csv"), "--schema", "", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"rows": [`)
	assert.Contains(t, out, `"bytesRead": 47`)
}

func TestConvert_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "missing file",
			args:    []string{"convert", fixture("missing.csv"), "--schema", "", "--format", "text"},
			wantErr: "Code: FILE001",
		},
		{
			name:    "unknown schema",
			args:    []string{"convert", fixture("people.csv"), "--schema", "nope", "--format", "text"},
			wantErr: "Code: SCH001",
		},
		{
			name:    "bad format",
			args:    []string{"convert", fixture("people.csv"), "--schema", "", "--format", "xml"},
			wantErr: `unknown format "xml"`,
		},
		{
			name:    "persist without database",
			args:    []string{"convert", fixture("people.csv"), "--schema", "", "--format", "text", "--persist"},
			wantErr: "DATABASE_URL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSchemas(t *testing.T) {
	out, err := run(t, "schemas")
	require.NoError(t, err)
	assert.Contains(t, out, "people\tname, age")
	assert.Contains(t, out, "students\t")
	assert.Contains(t, out, "contacts\t")
}

func TestLogFileClosedAfterEveryCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
	}{
		{name: "success", args: []string{"schemas"}},
		{name: "failing command", args: []string{"convert", fixture("missing.csv"), "--schema", ""}, wantErr: true},
		{name: "failing flag check", args: []string{"convert", fixture("people.csv"), "--format", "xml"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logFile := filepath.Join(t.TempDir(), "csvparse.log")
			t.Setenv("LOG_FILE", logFile)

			_, err := run(t, tt.args...)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			_, statErr := os.Stat(logFile)
			require.NoError(t, statErr, "setup opened the log file")
			assert.Nil(t, closeLogger, "the log file is closed once the command returns")
		})
	}
}
