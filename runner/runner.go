package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/buger/jsonparser"
	"github.com/rs/zerolog"

	"github.com/fennelworks/claude-go/anthropic"
	"github.com/fennelworks/claude-go/client"
	"github.com/fennelworks/claude-go/streaming"
	"github.com/fennelworks/claude-go/tools"
)

// ModelCaller is the request surface the runner consumes.
// *client.MessageService satisfies it.
type ModelCaller interface {
	New(ctx context.Context, params anthropic.MessageNewParams, opts ...client.RequestOption) (*anthropic.Message, error)
}

// StreamingModelCaller additionally opens streaming requests.
type StreamingModelCaller interface {
	ModelCaller
	NewStreaming(params anthropic.MessageNewParams, opts ...client.RequestOption) *streaming.MessageStreamManager
}

type options struct {
	maxIterations int
	compaction    *CompactionControl
	reqOpts       []client.RequestOption
	log           zerolog.Logger
}

// Option customises a runner.
type Option func(*options)

// WithMaxIterations caps how many requests the loop will issue; 0 means
// unlimited.
func WithMaxIterations(n int) Option {
	return func(o *options) { o.maxIterations = n }
}

// WithCompaction enables conversation compaction.
func WithCompaction(cc CompactionControl) Option {
	return func(o *options) { o.compaction = &cc }
}

// WithRequestOptions applies request options to every loop request.
func WithRequestOptions(opts ...client.RequestOption) Option {
	return func(o *options) { o.reqOpts = append(o.reqOpts, opts...) }
}

// WithLogger sets the runner logger; defaults to a no-op logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *options) { o.log = log }
}

// base holds the loop state shared by the plain and streaming runners.
type base struct {
	caller ModelCaller
	params anthropic.MessageNewParams
	reg    *tools.Registry
	opts   options

	lastMessage      *anthropic.Message
	cachedResponse   *anthropic.MessageParam
	messagesModified bool
	iteration        int
	done             bool

	// Token usage of the last compaction call, counted toward the next
	// threshold check.
	carryTokens int64
}

func newBase(caller ModelCaller, params anthropic.MessageNewParams, reg *tools.Registry, opts []Option) *base {
	o := options{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	// Own the message slice so appends never alias the caller's.
	params.Messages = append([]anthropic.MessageParam(nil), params.Messages...)
	if len(params.Tools) == 0 && reg != nil && reg.Len() > 0 {
		params.Tools = reg.Params()
	}
	return &base{caller: caller, params: params, reg: reg, opts: o}
}

// Params returns the request parameters for the next loop request.
func (b *base) Params() anthropic.MessageNewParams { return b.params }

// LastMessage returns the most recent assistant message, nil before the
// first request completes.
func (b *base) LastMessage() *anthropic.Message { return b.lastMessage }

// SetMessagesParams replaces the request parameters for the next API call.
// Any cached tool response is invalidated.
func (b *base) SetMessagesParams(params anthropic.MessageNewParams) {
	b.params = params
	b.cachedResponse = nil
}

// AppendMessages adds messages to the conversation history. It also marks
// the history as caller-managed for the current iteration: the loop will
// not auto-append the assistant message or the tool response, and any
// cached tool response is invalidated.
func (b *base) AppendMessages(messages ...anthropic.MessageParam) {
	b.messagesModified = true
	b.params.Messages = append(b.params.Messages, messages...)
	b.cachedResponse = nil
}

func (b *base) shouldStop() bool {
	return b.opts.maxIterations > 0 && b.iteration >= b.opts.maxIterations
}

// GenerateToolCallResponse executes the tool_use blocks of the last
// assistant message and returns the user turn carrying their results. The
// response is cached: repeated calls within an iteration return the same
// value. Nil when the last message requested no tools.
func (b *base) GenerateToolCallResponse(ctx context.Context) *anthropic.MessageParam {
	if b.cachedResponse != nil {
		b.opts.log.Debug().Msg("returning cached tool call response")
		return b.cachedResponse
	}
	b.cachedResponse = b.generateToolCallResponse(ctx)
	return b.cachedResponse
}

func (b *base) generateToolCallResponse(ctx context.Context) *anthropic.MessageParam {
	msg := b.lastMessage
	if msg == nil || msg.Role != anthropic.RoleAssistant || len(msg.Content) == 0 {
		return nil
	}
	var results []anthropic.ContentBlockParam
	for i := range msg.Content {
		block := &msg.Content[i]
		if block.Type != anthropic.BlockTypeToolUse {
			continue
		}
		results = append(results, b.execTool(ctx, block))
	}
	if len(results) == 0 {
		return nil
	}
	resp := anthropic.NewUserMessage(results...)
	return &resp
}

// execTool runs one tool_use block. Every failure mode, panics included, is
// recovered into an error tool_result so the loop keeps going.
func (b *base) execTool(ctx context.Context, block *anthropic.ContentBlock) (res anthropic.ContentBlockParam) {
	defer func() {
		if r := recover(); r != nil {
			b.opts.log.Error().Str("tool", block.Name).Interface("panic", r).Msg("tool call panicked")
			res = anthropic.NewToolResultBlock(block.ID,
				fmt.Sprintf("Error: tool '%s' panicked: %v", block.Name, r), true)
		}
	}()
	tool := b.reg.Get(block.Name)
	if tool == nil {
		return anthropic.NewToolResultBlock(block.ID,
			fmt.Sprintf("Error: Tool '%s' not found", block.Name), true)
	}

	input := block.Input
	if len(input) > 0 {
		if _, dt, _, err := jsonparser.Get(input); err != nil || dt != jsonparser.Object {
			return anthropic.NewToolResultBlock(block.ID,
				fmt.Sprintf("Error: input for tool '%s' is not a JSON object", block.Name), true)
		}
	} else {
		input = json.RawMessage(`{}`)
	}

	result, err := tool.Call(ctx, input)
	if err != nil {
		b.opts.log.Error().Err(err).Str("tool", block.Name).Msg("tool call failed")
		return anthropic.NewToolResultBlock(block.ID, err.Error(), true)
	}
	return anthropic.NewToolResultBlock(block.ID, result.Content(), false)
}

// advance runs the post-iteration bookkeeping: compaction check, tool
// response generation, conversation append. Sets done when the loop is
// finished.
func (b *base) advance(ctx context.Context) {
	if !b.checkAndCompact(ctx) {
		response := b.GenerateToolCallResponse(ctx)
		if response == nil {
			b.opts.log.Debug().Msg("tool call was not requested, exiting from tool runner loop")
			b.done = true
		} else if !b.messagesModified {
			b.params.Messages = append(b.params.Messages, b.lastMessage.ToParam(), *response)
		}
	}
	b.messagesModified = false
	b.cachedResponse = nil
}

// ToolRunner is the non-streaming tool-use loop. Construct with New.
type ToolRunner struct {
	*base
}

// New builds a runner over the given caller and tool registry. The request
// tools array is populated from the registry unless params already carries
// one.
func New(caller ModelCaller, params anthropic.MessageNewParams, reg *tools.Registry, opts ...Option) *ToolRunner {
	return &ToolRunner{base: newBase(caller, params, reg, opts)}
}

// Next advances the loop one iteration and returns the assistant message.
// io.EOF signals a finished loop; any other error aborts it.
func (r *ToolRunner) Next(ctx context.Context) (*anthropic.Message, error) {
	if r.done {
		return nil, io.EOF
	}
	if r.lastMessage != nil {
		r.advance(ctx)
		if r.done {
			return nil, io.EOF
		}
	}
	if r.shouldStop() {
		r.done = true
		return nil, io.EOF
	}

	msg, err := r.caller.New(ctx, r.params, r.opts.reqOpts...)
	if err != nil {
		r.done = true
		return nil, err
	}
	r.lastMessage = msg
	r.iteration++
	return msg, nil
}

// UntilDone drains the loop and returns the final assistant message.
func (r *ToolRunner) UntilDone(ctx context.Context) (*anthropic.Message, error) {
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
