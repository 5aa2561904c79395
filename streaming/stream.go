package streaming

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	"github.com/fennelworks/claude-go/anthropic"
	"github.com/fennelworks/claude-go/internal/sse"
	"github.com/fennelworks/claude-go/partialjson"
)

// StreamOptions configure a MessageStream.
type StreamOptions struct {
	PartialMode  partialjson.Mode
	OutputFormat *anthropic.OutputFormat
	Logger       zerolog.Logger

	// StatusCode is reported in APIErrors raised from SSE error frames.
	StatusCode int
	RequestID  string
}

// MessageStream turns a streaming response body into an iterator of
// high-level events while reconstructing the final message. It owns the
// body: the stream is finished either by draining it or by Close. Not safe
// for concurrent use; see Events for channel-based consumption.
type MessageStream struct {
	body    io.ReadCloser
	decoder *sse.Decoder
	acc     *Accumulator
	opts    StreamOptions

	queue []Event
	err   error
	done  bool
}

// NewMessageStream wraps an open SSE response body.
func NewMessageStream(body io.ReadCloser, opts StreamOptions) *MessageStream {
	return &MessageStream{
		body:    body,
		decoder: sse.NewDecoder(body),
		acc: NewAccumulator(AccumulateOptions{
			PartialMode:  opts.PartialMode,
			OutputFormat: opts.OutputFormat,
		}),
		opts: opts,
	}
}

// Next returns the next high-level event. It returns io.EOF when the stream
// is exhausted or closed; any other error is fatal and repeats on
// subsequent calls.
func (s *MessageStream) Next() (Event, error) {
	if len(s.queue) > 0 {
		ev := s.queue[0]
		s.queue = s.queue[1:]
		return ev, nil
	}
	if s.err != nil {
		return Event{}, s.err
	}
	if s.done {
		return Event{}, io.EOF
	}

	for {
		frame, err := s.decoder.Next()
		if err == io.EOF {
			s.finish()
			return Event{}, io.EOF
		}
		if err != nil {
			return Event{}, s.fail(err)
		}

		switch frame.Name {
		case "ping":
			continue
		case "error":
			return Event{}, s.fail(&anthropic.APIError{
				StatusCode: s.opts.StatusCode,
				Type:       gjson.GetBytes(frame.Data, "error.type").String(),
				Message:    gjson.GetBytes(frame.Data, "error.message").String(),
				RequestID:  s.opts.RequestID,
			})
		case anthropic.EventMessageStart, anthropic.EventMessageDelta, anthropic.EventMessageStop,
			anthropic.EventContentBlockStart, anthropic.EventContentBlockDelta, anthropic.EventContentBlockStop:
			var raw anthropic.RawEvent
			if err := json.Unmarshal(frame.Data, &raw); err != nil {
				return Event{}, s.fail(fmt.Errorf("streaming: decode %s event: %w", frame.Name, err))
			}
			if raw.Type == "" {
				raw.Type = frame.Name
			}

			snapshot, err := s.acc.Accumulate(&raw)
			if err != nil {
				return Event{}, s.fail(err)
			}

			events := BuildEvents(&raw, snapshot)
			if len(events) == 0 {
				continue
			}
			s.queue = events[1:]
			return events[0], nil
		default:
			s.opts.Logger.Debug().Str("event", frame.Name).Msg("ignoring unknown sse event")
			continue
		}
	}
}

// Err returns the terminal error of the stream, nil if it ended cleanly or
// has not ended yet.
func (s *MessageStream) Err() error { return s.err }

// TextStream returns a view yielding only the text fragments of the stream.
// It shares the underlying iterator: advancing either advances both.
func (s *MessageStream) TextStream() *TextStream { return &TextStream{s: s} }

// Events feeds the remaining events to a channel, closed when the stream
// ends. Starting it takes over iteration; do not call Next concurrently.
// Cancelling ctx closes the stream without draining it.
func (s *MessageStream) Events(ctx context.Context) <-chan Event {
	ch := make(chan Event)
	go func() {
		defer close(ch)
		for {
			ev, err := s.Next()
			if err != nil {
				return
			}
			select {
			case ch <- ev:
			case <-ctx.Done():
				_ = s.Close()
				return
			}
		}
	}()
	return ch
}

// FinalMessage consumes the remainder of the stream and returns the
// accumulated message.
func (s *MessageStream) FinalMessage() (*anthropic.Message, error) {
	for {
		_, err := s.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	msg := s.acc.Message()
	if msg == nil {
		return nil, &ProtocolError{EventType: "message_stop", Reason: "stream ended before message_start"}
	}
	return msg, nil
}

// FinalText consumes the stream and returns all text blocks concatenated.
// Returns ErrNoTextBlock if the final message has none.
func (s *MessageStream) FinalText() (string, error) {
	msg, err := s.FinalMessage()
	if err != nil {
		return "", err
	}
	var b strings.Builder
	found := false
	for i := range msg.Content {
		if msg.Content[i].Type == anthropic.BlockTypeText {
			b.WriteString(msg.Content[i].Text)
			found = true
		}
	}
	if !found {
		return "", ErrNoTextBlock
	}
	return b.String(), nil
}

// Close releases the response body without draining buffered events.
// Safe to call more than once.
func (s *MessageStream) Close() error {
	if s.done {
		return nil
	}
	s.done = true
	s.queue = nil
	return s.body.Close()
}

func (s *MessageStream) finish() {
	if !s.done {
		s.done = true
		_ = s.body.Close()
	}
}

func (s *MessageStream) fail(err error) error {
	s.err = err
	s.finish()
	return err
}

// TextStream is the text-only view over a MessageStream.
type TextStream struct {
	s *MessageStream
}

// Next returns the next text fragment, io.EOF when the stream ends.
func (t *TextStream) Next() (string, error) {
	for {
		ev, err := t.s.Next()
		if err != nil {
			return "", err
		}
		if ev.Type == EventTypeText {
			return ev.Text, nil
		}
	}
}
