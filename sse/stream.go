package sse

import (
	"bytes"
	"context"
	"errors"
	"io"
)

// Stats counts what a Stream has seen. Read it after the stream ends.
type Stats struct {
	Chunks     int64
	Bytes      int64
	Frames     int64
	DataFrames int64
	Comments   int64
	Blanks     int64
	Fields     int64
	// Skipped counts data frames whose payload failed to decode.
	Skipped int64
	// Drained counts lines read after the sentinel.
	Drained int64
	// DrainedBytes counts bytes discarded undecoded after the sentinel.
	DrainedBytes int64
	Deltas       int64
	DoneSeen     bool
	// DrainErr is a read error that occurred after the sentinel.
	// It does not fail the stream.
	DrainErr error
}

// SkipFunc observes a data frame that was dropped because its payload
// did not decode.
type SkipFunc func(payload string, err error)

// StreamOption configures a Stream.
type StreamOption func(*Stream)

// WithReadSize sets the number of bytes requested per read.
func WithReadSize(n int) StreamOption {
	return func(s *Stream) {
		if n > 0 {
			s.buf = make([]byte, n)
		}
	}
}

// WithSkipFunc installs an observer for skipped frames.
func WithSkipFunc(fn SkipFunc) StreamOption {
	return func(s *Stream) {
		s.onSkip = fn
	}
}

// Stream yields answer deltas from an SSE body.
// It is single-use and not safe for concurrent use.
type Stream struct {
	reader  io.Reader
	lines   *LineDecoder
	buf     []byte
	pending []string
	onSkip  SkipFunc

	eof     bool
	readErr error
	partial bool // an undecoded line is open after the sentinel
	stats   Stats
}

// NewStream creates a Stream reading from r.
func NewStream(r io.Reader, opts ...StreamOption) *Stream {
	s := &Stream{
		reader: r,
		lines:  NewLineDecoder(),
		buf:    make([]byte, DefaultReadSize),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Next returns the next non-empty delta.
//
// Errors:
//   - io.EOF: the stream ended after the sentinel and was fully drained
//   - *FrameError with Kind=FrameErrorTruncated: end-of-stream without sentinel
//   - *FrameError with Kind=FrameErrorRead: the transport failed before the sentinel
//   - *FrameError with Kind=FrameErrorTooLarge: an unterminated line grew too large
//   - ctx.Err(): the context was canceled between reads
//
// Deltas decoded before a failure are always returned first.
func (s *Stream) Next(ctx context.Context) (string, error) {
	for {
		if len(s.pending) > 0 {
			delta := s.pending[0]
			s.pending = s.pending[1:]
			return delta, nil
		}
		if s.eof {
			return "", s.endErr()
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := s.fill(); err != nil {
			return "", err
		}
	}
}

// Stats returns a copy of the stream counters.
func (s *Stream) Stats() Stats {
	return s.stats
}

func (s *Stream) endErr() error {
	switch {
	case s.stats.DoneSeen:
		return io.EOF
	case s.readErr != nil:
		return &FrameError{Kind: FrameErrorRead, Msg: "stream read failed before [DONE]", Err: s.readErr}
	default:
		return &FrameError{Kind: FrameErrorTruncated, Msg: "stream ended before [DONE]"}
	}
}

func (s *Stream) fill() error {
	n, err := s.reader.Read(s.buf)
	if n > 0 {
		s.stats.Chunks++
		s.stats.Bytes += int64(n)
		if s.stats.DoneSeen {
			s.drain(s.buf[:n])
		} else if ferr := s.feed(s.buf[:n]); ferr != nil {
			return ferr
		}
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		if tail, ok := s.lines.Flush(); ok {
			s.handle(tail)
		} else if s.partial {
			s.stats.Frames++
			s.stats.Drained++
		}
	case s.stats.DoneSeen:
		s.stats.DrainErr = err
	default:
		s.readErr = err
	}
	s.eof = true
	return nil
}

// feed decodes chunk and handles every completed line. Once the sentinel
// is seen the decoder's carry buffer is dropped, so an oversized tail
// after [DONE] cannot fail the stream.
func (s *Stream) feed(chunk []byte) error {
	lines, err := s.lines.Feed(chunk)
	for _, line := range lines {
		s.handle(line)
	}
	if !s.stats.DoneSeen {
		return err
	}
	if n := s.lines.Discard(); n > 0 {
		s.stats.DrainedBytes += int64(n)
		s.partial = true
	}
	return nil
}

// drain counts lines after the sentinel without decoding them.
func (s *Stream) drain(chunk []byte) {
	s.stats.DrainedBytes += int64(len(chunk))
	lines := int64(bytes.Count(chunk, []byte{'\n'}))
	s.stats.Frames += lines
	s.stats.Drained += lines
	switch {
	case chunk[len(chunk)-1] != '\n':
		s.partial = true
	case lines > 0:
		s.partial = false
	}
}

func (s *Stream) handle(line string) {
	frame := ClassifyLine(line)
	s.stats.Frames++
	if s.stats.DoneSeen {
		s.stats.Drained++
		return
	}

	switch frame.Kind {
	case FrameBlank:
		s.stats.Blanks++
	case FrameComment:
		s.stats.Comments++
	case FrameField:
		s.stats.Fields++
	case FrameDone:
		s.stats.DoneSeen = true
	case FrameData:
		s.stats.DataFrames++
		delta, err := ParseDelta(frame.Payload)
		if err != nil {
			s.stats.Skipped++
			if s.onSkip != nil {
				s.onSkip(frame.Payload, err)
			}
			return
		}
		if delta != "" {
			s.stats.Deltas++
			s.pending = append(s.pending, delta)
		}
	}
}
