package streaming

import (
	"errors"
	"fmt"
)

// ErrNoTextBlock is returned by FinalText when the finished message contains
// no text blocks.
var ErrNoTextBlock = errors.New("streaming: message has no text blocks")

// ProtocolError reports an event arriving in an order the Messages API
// never produces. It is fatal to the stream.
type ProtocolError struct {
	EventType string
	Reason    string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("streaming: protocol error on %q event: %s", e.EventType, e.Reason)
}

// ToolInputParseError reports a streamed tool input buffer that is not a
// prefix of valid JSON. The offending buffer is kept for diagnostics.
type ToolInputParseError struct {
	Index int
	Buf   []byte
	Err   error
}

func (e *ToolInputParseError) Error() string {
	return fmt.Sprintf("streaming: tool input for block %d is not valid JSON: %v (buffer: %q)", e.Index, e.Err, e.Buf)
}

func (e *ToolInputParseError) Unwrap() error { return e.Err }
