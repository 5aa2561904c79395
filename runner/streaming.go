package runner

import (
	"context"
	"fmt"
	"io"

	"github.com/fennelworks/claude-go/anthropic"
	"github.com/fennelworks/claude-go/streaming"
	"github.com/fennelworks/claude-go/tools"
)

// StreamingToolRunner is the tool-use loop over streaming requests: each
// iteration yields a live event stream, and the loop advances once the
// stream's final message has been assembled.
type StreamingToolRunner struct {
	*base
	caller  StreamingModelCaller
	current *streaming.MessageStream
}

// NewStreaming builds a streaming runner over the given caller and tool
// registry.
func NewStreaming(caller StreamingModelCaller, params anthropic.MessageNewParams, reg *tools.Registry, opts ...Option) *StreamingToolRunner {
	return &StreamingToolRunner{base: newBase(caller, params, reg, opts), caller: caller}
}

// Next advances the loop one iteration and returns the live stream for it.
// The previous iteration's stream is drained first if the caller has not
// consumed it. io.EOF signals a finished loop.
func (r *StreamingToolRunner) Next(ctx context.Context) (*streaming.MessageStream, error) {
	if r.done {
		return nil, io.EOF
	}
	if r.current != nil {
		if err := r.settle(ctx); err != nil {
			return nil, err
		}
		if r.done {
			return nil, io.EOF
		}
	}
	if r.shouldStop() {
		r.done = true
		return nil, io.EOF
	}

	mgr := r.caller.NewStreaming(r.params, r.opts.reqOpts...)
	stream, err := mgr.Start(ctx)
	if err != nil {
		r.done = true
		return nil, err
	}
	r.current = stream
	r.iteration++
	return stream, nil
}

// settle finishes the in-flight iteration: assemble the final message from
// the stream, then run the shared post-iteration bookkeeping.
func (r *StreamingToolRunner) settle(ctx context.Context) error {
	stream := r.current
	r.current = nil
	msg, err := stream.FinalMessage()
	stream.Close()
	if err != nil {
		r.done = true
		return err
	}
	r.lastMessage = msg
	r.advance(ctx)
	return nil
}

// UntilDone drains the loop, discarding stream events, and returns the
// final assistant message.
func (r *StreamingToolRunner) UntilDone(ctx context.Context) (*anthropic.Message, error) {
	for {
		_, err := r.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	if r.lastMessage == nil {
		return nil, fmt.Errorf("runner: loop produced no messages")
	}
	return r.lastMessage, nil
}
