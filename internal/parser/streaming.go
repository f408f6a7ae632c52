package parser

// streaming.go holds the reader chain placed in front of the line splitter.
//
//   - countingReader: tracks raw bytes consumed from the input
//   - skipBOM: drops a leading UTF-8 BOM (0xEF 0xBB 0xBF)
//   - runes.ReplaceIllFormed: replaces invalid UTF-8 with U+FFFD
//
// Only the counter is always installed; the other two are opt-in so that
// field content reaches the caller byte for byte by default.

import (
	"bufio"
	"bytes"
	"io"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// wrapInput builds the reader chain for opts. The order matters:
// bytes are counted as read from the source, the BOM is stripped before
// sanitizing so it is never mistaken for content.
func wrapInput(r io.Reader, opts Options) (io.Reader, *countingReader) {
	counter := &countingReader{r: r}

	var out io.Reader = counter
	if opts.SkipBOM {
		out = skipBOM(out)
	}
	if opts.SanitizeUTF8 {
		out = transform.NewReader(out, runes.ReplaceIllFormed())
	}
	return out, counter
}

// skipBOM returns a reader that omits a leading UTF-8 BOM from r.
// A read error hit while peeking is reported by the first Read.
func skipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// countingReader counts bytes read through it.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
