package sse

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// LineDecoder splits a byte stream into complete UTF-8 lines.
//
// Bytes after the last '\n' stay buffered until a later chunk completes the
// line. Because '\n' never occurs inside a multi-byte UTF-8 sequence, a
// codepoint split across chunks is always reassembled before decoding.
// Ill-formed bytes decode to U+FFFD. A byte order mark is stripped from the
// first line only.
type LineDecoder struct {
	buf     []byte
	started bool
	head    *encoding.Decoder
	body    *encoding.Decoder
}

// NewLineDecoder creates a decoder with an empty carry buffer.
func NewLineDecoder() *LineDecoder {
	return &LineDecoder{
		head: unicode.UTF8BOM.NewDecoder(),
		body: unicode.UTF8.NewDecoder(),
	}
}

// Feed appends chunk to the carry buffer and returns every line it completes.
// Returns a *FrameError with Kind=FrameErrorTooLarge if the incomplete tail
// grows beyond MaxLineSize; the returned lines are still valid.
func (d *LineDecoder) Feed(chunk []byte) ([]string, error) {
	d.buf = append(d.buf, chunk...)

	var lines []string
	start := 0
	for {
		i := bytes.IndexByte(d.buf[start:], '\n')
		if i < 0 {
			break
		}
		lines = append(lines, d.decode(d.buf[start:start+i]))
		start += i + 1
	}
	if start > 0 {
		n := copy(d.buf, d.buf[start:])
		d.buf = d.buf[:n]
	}

	if len(d.buf) > MaxLineSize {
		return lines, &FrameError{
			Kind: FrameErrorTooLarge,
			Msg:  fmt.Sprintf("line exceeds maximum size %d", MaxLineSize),
		}
	}
	return lines, nil
}

// Flush returns the buffered tail as a final line and empties the buffer.
// ok is false when nothing is buffered.
func (d *LineDecoder) Flush() (line string, ok bool) {
	if len(d.buf) == 0 {
		return "", false
	}
	line = d.decode(d.buf)
	d.buf = d.buf[:0]
	return line, true
}

// Discard drops the carry buffer without decoding it and returns the
// number of bytes dropped.
func (d *LineDecoder) Discard() int {
	n := len(d.buf)
	d.buf = d.buf[:0]
	return n
}

// Buffered returns the number of bytes held in the carry buffer.
func (d *LineDecoder) Buffered() int {
	return len(d.buf)
}

func (d *LineDecoder) decode(b []byte) string {
	dec := d.body
	if !d.started {
		dec = d.head
		d.started = true
	}
	out, err := dec.Bytes(b)
	if err != nil {
		return strings.ToValidUTF8(string(b), "\uFFFD")
	}
	return string(out)
}
