// Package sse decodes the server-sent-event streams emitted by
// chat-completion endpoints into answer text deltas.
//
// Decoding is split in three layers so each can be tested without a network:
//   - LineDecoder turns arbitrary byte chunks into complete text lines;
//   - ClassifyLine turns one line into a tagged Frame;
//   - Stream drives both over an io.Reader and yields delta text.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Protocol constants.
const (
	// DoneSentinel is the data payload that terminates a stream.
	DoneSentinel = "[DONE]"
	// DataPrefix marks a line carrying a payload.
	DataPrefix = "data:"
	// MaxLineSize is the largest incomplete line the decoder will buffer (4 MiB).
	MaxLineSize = 4 * 1024 * 1024
	// DefaultReadSize is the number of bytes requested per transport read.
	DefaultReadSize = 4096
)

// FrameKind discriminates protocol frames.
type FrameKind int

const (
	// FrameBlank is an empty or whitespace-only line (event separator).
	FrameBlank FrameKind = iota
	// FrameComment is a line starting with ':' (keep-alive).
	FrameComment
	// FrameData is a data line carrying a JSON payload.
	FrameData
	// FrameDone is a data line carrying the termination sentinel.
	FrameDone
	// FrameField is any other field line (event:, id:, retry:); ignored.
	FrameField
)

func (k FrameKind) String() string {
	switch k {
	case FrameBlank:
		return "blank"
	case FrameComment:
		return "comment"
	case FrameData:
		return "data"
	case FrameDone:
		return "done"
	case FrameField:
		return "field"
	default:
		return fmt.Sprintf("FrameKind(%d)", int(k))
	}
}

// Frame is one classified protocol line.
type Frame struct {
	Kind FrameKind
	// Payload holds the data for FrameData, the comment text for
	// FrameComment and the raw line for FrameField. Empty otherwise.
	Payload string
}

// ClassifyLine classifies a single complete line (without its '\n').
// A trailing '\r' is ignored so CRLF streams classify identically.
func ClassifyLine(line string) Frame {
	line = strings.TrimSuffix(line, "\r")

	if strings.TrimSpace(line) == "" {
		return Frame{Kind: FrameBlank}
	}
	if rest, ok := strings.CutPrefix(line, ":"); ok {
		return Frame{Kind: FrameComment, Payload: strings.TrimPrefix(rest, " ")}
	}
	if rest, ok := strings.CutPrefix(line, DataPrefix); ok {
		payload := strings.TrimPrefix(rest, " ")
		if strings.TrimSpace(payload) == DoneSentinel {
			return Frame{Kind: FrameDone}
		}
		return Frame{Kind: FrameData, Payload: payload}
	}
	return Frame{Kind: FrameField, Payload: line}
}

// FrameErrorKind classifies stream decoding errors.
type FrameErrorKind int

const (
	// FrameErrorDecode indicates a data payload that is not valid chunk JSON.
	// The frame is skipped; ingestion continues.
	FrameErrorDecode FrameErrorKind = iota
	// FrameErrorTooLarge indicates a line exceeding MaxLineSize.
	FrameErrorTooLarge
	// FrameErrorTruncated indicates end-of-stream before the sentinel.
	FrameErrorTruncated
	// FrameErrorRead indicates the transport read failed.
	FrameErrorRead
)

// FrameError represents a stream decoding error.
type FrameError struct {
	Kind FrameErrorKind
	Msg  string
	Err  error
}

func (e *FrameError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *FrameError) Unwrap() error {
	return e.Err
}

// IsFatal returns true if the error ends the ingestion.
// Only undecodable payloads are recoverable.
func (e *FrameError) IsFatal() bool {
	return e.Kind != FrameErrorDecode
}

// IsFatalFrameError returns true if the error is a fatal frame error.
func IsFatalFrameError(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.IsFatal()
	}
	return false
}

// IsTruncated returns true if the stream ended before the sentinel,
// either cleanly or through a read failure.
func IsTruncated(err error) bool {
	var frameErr *FrameError
	if errors.As(err, &frameErr) {
		return frameErr.Kind == FrameErrorTruncated || frameErr.Kind == FrameErrorRead
	}
	return false
}

// chunkPayload is the subset of a streamed chat completion chunk we consult.
type chunkPayload struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// ParseDelta extracts choices[0].delta.content from a data payload.
// A payload without choices or without content yields "".
func ParseDelta(payload string) (string, error) {
	var chunk chunkPayload
	if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
		return "", &FrameError{
			Kind: FrameErrorDecode,
			Msg:  "failed to decode chunk payload",
			Err:  err,
		}
	}
	if len(chunk.Choices) == 0 {
		return "", nil
	}
	return chunk.Choices[0].Delta.Content, nil
}
