package core

// error_messages.go maps technical errors to coded, user-facing messages.
//
// # Error Codes Reference
//
// File errors:
//
//	FILE001 - File not found
//	FILE002 - File could not be read
//	FILE003 - A line exceeds the configured maximum length
//	FILE004 - Upload exceeds the size limit
//	FILE005 - No file was provided
//
// Validation and schema errors:
//
//	VAL001 - A row was rejected by the schema
//	SCH001 - The named schema is not registered
//
// Service errors:
//
//	CNV001 - Too many conversions in progress
//	STO001 - The conversion could not be saved
//	DB004  - Database connection refused
//	DB005  - Database connection reset
//	DB007  - Database deadlock
//	UPL004 - Request cancelled
//	UPL005 - Request timed out
//
//	ERR000 - Anything else; check the logs for the technical error
//
// Sentinel errors are matched with errors.Is first. Errors that reach us
// only as text (driver messages, multipart failures) fall back to
// case-insensitive substring patterns, first match wins.

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/JonMunkholm/csvparse/internal/parser"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

var (
	msgNotFound = UserMessage{
		Message: "File not found",
		Action:  "Check the path and try again",
		Code:    "FILE001",
	}
	msgReadFailed = UserMessage{
		Message: "The file could not be read",
		Action:  "Check the file permissions and that it is not being written to",
		Code:    "FILE002",
	}
	msgLineTooLong = UserMessage{
		Message: "A line in the file is too long",
		Action:  "Check the file uses newline line endings or raise PARSE_MAX_LINE_BYTES",
		Code:    "FILE003",
	}
	msgSchemaRejected = UserMessage{
		Message: "A row did not match the schema",
		Action:  "Review the listed issues and correct the row",
		Code:    "VAL001",
	}
	msgUnknownSchema = UserMessage{
		Message: "Unknown schema",
		Action:  "Run `csvparse schemas` to list the available schemas",
		Code:    "SCH001",
	}
	msgTooMany = UserMessage{
		Message: "Too many conversions in progress",
		Action:  "Please wait a moment and try again",
		Code:    "CNV001",
	}
	msgStore = UserMessage{
		Message: "The conversion finished but could not be saved",
		Action:  "Check the database connection and try again",
		Code:    "STO001",
	}
	msgCanceled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "UPL004",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "UPL005",
	}
)

// sentinelMessages are checked in order with errors.Is. More specific causes
// come before the wrappers that carry them.
var sentinelMessages = []struct {
	target error
	msg    UserMessage
}{
	{fs.ErrNotExist, msgNotFound},
	{bufio.ErrTooLong, msgLineTooLong},
	{context.Canceled, msgCanceled},
	{context.DeadlineExceeded, msgTimeout},
	{ErrTooManyConversions, msgTooMany},
	{ErrUnknownSchema, msgUnknownSchema},
	{ErrPersist, msgStore},
	{parser.ErrOpen, msgReadFailed},
	{parser.ErrRead, msgReadFailed},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns match error text case-insensitively with strings.Contains.
var errorPatterns = []errorPattern{
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE004",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to convert",
			Code:    "FILE005",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB007",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// A nil error maps to the zero UserMessage.
//
//	_, err := parser.ConvertRaw(ctx, "missing.csv", parser.Options{})
//	msg := MapError(err)
//	// msg.Code == "FILE001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	var serr *parser.SchemaError
	if errors.As(err, &serr) {
		return msgSchemaRejected
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than the
// ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
// Error returns the user message; Unwrap returns the technical error for logs.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
