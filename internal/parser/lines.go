package parser

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
)

// DefaultMaxLineBytes is the longest line accepted when Options.MaxLineBytes is zero.
const DefaultMaxLineBytes = 1 << 20

// Sentinel errors for fatal conversion failures. Both are wrapped together
// with the underlying I/O error, so errors.Is works for either.
var (
	ErrOpen = errors.New("cannot open input")
	ErrRead = errors.New("cannot read input")
)

// Options tunes how input bytes are turned into lines.
// The zero value reads the input untouched.
type Options struct {
	// SkipBOM drops a leading UTF-8 byte order mark.
	SkipBOM bool

	// SanitizeUTF8 replaces ill-formed UTF-8 with U+FFFD.
	SanitizeUTF8 bool

	// MaxLineBytes caps the length of one line (default: DefaultMaxLineBytes).
	MaxLineBytes int
}

func (o Options) maxLineBytes() int {
	if o.MaxLineBytes <= 0 {
		return DefaultMaxLineBytes
	}
	return o.MaxLineBytes
}

// LineSource yields the lines of an input one at a time.
//
// Usage mirrors bufio.Scanner:
//
//	lines, err := parser.OpenLines(ctx, path, parser.Options{})
//	if err != nil {
//	    return err
//	}
//	defer lines.Close()
//	for lines.Next() {
//	    fmt.Println(lines.Text())
//	}
//	return lines.Err()
//
// A LineSource is not restartable and not safe for concurrent use.
type LineSource struct {
	name    string
	scanner *bufio.Scanner
	counter *countingReader
	closer  io.Closer

	line  string
	lines int
	err   error
	done  bool
}

// OpenLines opens the file at path and returns a LineSource over it.
//
// The context is only consulted before the file is opened. Failures wrap
// ErrOpen and the error from os.Open. The caller must Close the source.
func OpenLines(ctx context.Context, path string, opts Options) (*LineSource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrOpen, path, err)
	}

	ls := NewLineSource(f, opts)
	ls.name = path
	ls.closer = f
	return ls, nil
}

// NewLineSource returns a LineSource reading from r. Close does not close r.
func NewLineSource(r io.Reader, opts Options) *LineSource {
	counted, counter := wrapInput(r, opts)

	limit := opts.maxLineBytes()
	// The buffer also holds the terminator, so leave room for "\r\n".
	bufSize := limit + 2
	initial := min(64*1024, bufSize)

	scanner := bufio.NewScanner(counted)
	scanner.Buffer(make([]byte, 0, initial), bufSize)
	scanner.Split(lineSplitter(limit))

	return &LineSource{
		name:    "input",
		scanner: scanner,
		counter: counter,
	}
}

// Next advances to the next line. It returns false at end of input or on
// the first read failure; check Err afterwards.
func (l *LineSource) Next() bool {
	if l.done {
		return false
	}
	if l.scanner.Scan() {
		l.line = l.scanner.Text()
		l.lines++
		return true
	}

	l.done = true
	l.line = ""
	if err := l.scanner.Err(); err != nil {
		l.err = fmt.Errorf("%w %s at line %d: %w", ErrRead, l.name, l.lines+1, err)
	}
	return false
}

// WithName sets the name used in read errors and returns l.
func (l *LineSource) WithName(name string) *LineSource {
	if name != "" {
		l.name = name
	}
	return l
}

// Text returns the current line without its terminator.
func (l *LineSource) Text() string {
	return l.line
}

// Err returns the first read failure, or nil if the input ended cleanly.
func (l *LineSource) Err() error {
	return l.err
}

// Lines returns how many lines have been produced so far.
func (l *LineSource) Lines() int {
	return l.lines
}

// BytesRead returns how many input bytes have been consumed so far.
func (l *LineSource) BytesRead() int64 {
	return l.counter.n
}

// Name identifies the input in error messages.
func (l *LineSource) Name() string {
	return l.name
}

// Close releases the underlying file, if the source opened one.
// It is safe to call more than once.
func (l *LineSource) Close() error {
	l.done = true
	if l.closer == nil {
		return nil
	}
	c := l.closer
	l.closer = nil
	return c.Close()
}

// lineSplitter returns a bufio.SplitFunc that ends lines at "\n", "\r\n" or
// a lone "\r", and fails with bufio.ErrTooLong once a line exceeds limit
// bytes. A trailing terminator does not produce an extra empty line.
func lineSplitter(limit int) bufio.SplitFunc {
	return func(data []byte, atEOF bool) (int, []byte, error) {
		advance, token, err := scanLines(data, atEOF)
		switch {
		case err != nil:
			return advance, token, err
		case len(token) > limit:
			return 0, nil, bufio.ErrTooLong
		case token == nil && len(data) > limit:
			// Waiting for more input: fail unless a terminator already
			// ends the line within limit bytes.
			if i := bytes.IndexAny(data, "\r\n"); i < 0 || i > limit {
				return 0, nil, bufio.ErrTooLong
			}
		}
		return advance, token, nil
	}
}

func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}

	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\n' {
			return i + 1, data[:i], nil
		}
		if i+1 < len(data) {
			if data[i+1] == '\n' {
				return i + 2, data[:i], nil
			}
			return i + 1, data[:i], nil
		}
		// "\r" is the last buffered byte; a "\n" may follow.
		if !atEOF {
			return 0, nil, nil
		}
		return i + 1, data[:i], nil
	}

	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
