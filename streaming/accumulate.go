package streaming

import (
	"encoding/json"

	"github.com/fennelworks/claude-go/anthropic"
	"github.com/fennelworks/claude-go/partialjson"
)

// AccumulateOptions configure snapshot reconstruction.
type AccumulateOptions struct {
	// PartialMode selects how unterminated strings in streamed tool input
	// are parsed. ModeTrailingStrings corresponds to the fine-grained tool
	// streaming beta header on the request.
	PartialMode partialjson.Mode

	// OutputFormat, when set, causes text blocks to be parsed as JSON on
	// content_block_stop; the result lands in the block's ParsedOutput.
	OutputFormat *anthropic.OutputFormat
}

// Accumulator folds raw stream events into a Message snapshot. The zero
// value is not usable; construct with NewAccumulator. One accumulator serves
// exactly one stream.
type Accumulator struct {
	opts     AccumulateOptions
	snapshot *anthropic.Message
	jsonBufs map[int][]byte
}

func NewAccumulator(opts AccumulateOptions) *Accumulator {
	return &Accumulator{opts: opts, jsonBufs: make(map[int][]byte)}
}

// Message returns the snapshot accumulated so far, nil before message_start.
func (a *Accumulator) Message() *anthropic.Message { return a.snapshot }

// Accumulate applies one raw event and returns the updated snapshot.
func (a *Accumulator) Accumulate(ev *anthropic.RawEvent) (*anthropic.Message, error) {
	if a.snapshot == nil {
		if ev.Type != anthropic.EventMessageStart {
			return nil, &ProtocolError{EventType: ev.Type, Reason: "received before message_start"}
		}
		if ev.Message == nil {
			return nil, &ProtocolError{EventType: ev.Type, Reason: "missing message payload"}
		}
		m := *ev.Message
		m.Content = append([]anthropic.ContentBlock(nil), ev.Message.Content...)
		a.snapshot = &m
		return a.snapshot, nil
	}

	switch ev.Type {
	case anthropic.EventContentBlockStart:
		// Indices are append-order; anything else is undefined server
		// behaviour and we fail loudly instead of growing a sparse list.
		if ev.Index != len(a.snapshot.Content) {
			return nil, &ProtocolError{
				EventType: ev.Type,
				Reason:    "non-contiguous content block index",
			}
		}
		if ev.ContentBlock == nil {
			return nil, &ProtocolError{EventType: ev.Type, Reason: "missing content_block payload"}
		}
		a.snapshot.Content = append(a.snapshot.Content, *ev.ContentBlock)

	case anthropic.EventContentBlockDelta:
		if ev.Index < 0 || ev.Index >= len(a.snapshot.Content) {
			return nil, &ProtocolError{EventType: ev.Type, Reason: "delta for unknown content block index"}
		}
		if ev.Delta == nil {
			break
		}
		if err := a.applyBlockDelta(ev.Index, ev.Delta); err != nil {
			return nil, err
		}

	case anthropic.EventContentBlockStop:
		if ev.Index < 0 || ev.Index >= len(a.snapshot.Content) {
			return nil, &ProtocolError{EventType: ev.Type, Reason: "stop for unknown content block index"}
		}
		block := &a.snapshot.Content[ev.Index]
		if block.Type == anthropic.BlockTypeText && a.opts.OutputFormat != nil {
			// Parse failures are recoverable: ParsedOutput stays nil and the
			// caller inspects the text directly.
			var parsed any
			if err := json.Unmarshal([]byte(block.Text), &parsed); err == nil {
				block.ParsedOutput = parsed
			}
		}

	case anthropic.EventMessageDelta:
		if ev.Delta != nil {
			if ev.Delta.StopReason != "" {
				a.snapshot.StopReason = ev.Delta.StopReason
			}
			if ev.Delta.StopSequence != "" {
				a.snapshot.StopSequence = ev.Delta.StopSequence
			}
			if len(ev.Delta.Container) > 0 {
				a.snapshot.Container = ev.Delta.Container
			}
		}
		if len(ev.ContextManagement) > 0 {
			a.snapshot.ContextManagement = ev.ContextManagement
		}
		if ev.Usage != nil {
			// Output tokens are cumulative for the message; the rest only
			// arrive when they change.
			a.snapshot.Usage.OutputTokens = ev.Usage.OutputTokens
			if ev.Usage.InputTokens != nil {
				a.snapshot.Usage.InputTokens = *ev.Usage.InputTokens
			}
			if ev.Usage.CacheCreationInputTokens != nil {
				a.snapshot.Usage.CacheCreationInputTokens = *ev.Usage.CacheCreationInputTokens
			}
			if ev.Usage.CacheReadInputTokens != nil {
				a.snapshot.Usage.CacheReadInputTokens = *ev.Usage.CacheReadInputTokens
			}
		}

	case anthropic.EventMessageStart, anthropic.EventMessageStop:
		// No snapshot change.

	default:
		// Unknown event types are ignored so new server events do not break
		// old clients.
	}

	return a.snapshot, nil
}

// applyBlockDelta dispatches a content_block_delta payload onto the block at
// index. A delta that does not match the block's type is a silent no-op.
func (a *Accumulator) applyBlockDelta(index int, d *anthropic.Delta) error {
	block := &a.snapshot.Content[index]

	switch d.Type {
	case anthropic.DeltaTypeText:
		if block.Type == anthropic.BlockTypeText {
			block.Text += d.Text
		}
	case anthropic.DeltaTypeInputJSON:
		if block.IsToolUse() {
			buf := append(a.jsonBufs[index], d.PartialJSON...)
			a.jsonBufs[index] = buf
			if len(buf) > 0 {
				parsed, err := partialjson.Decode(buf, a.opts.PartialMode)
				if err != nil {
					return &ToolInputParseError{Index: index, Buf: buf, Err: err}
				}
				raw, err := json.Marshal(parsed)
				if err != nil {
					return &ToolInputParseError{Index: index, Buf: buf, Err: err}
				}
				block.Input = raw
			}
		}
	case anthropic.DeltaTypeCitations:
		if block.Type == anthropic.BlockTypeText && len(d.Citation) > 0 {
			block.Citations = append(block.Citations, d.Citation)
		}
	case anthropic.DeltaTypeThinking:
		if block.Type == anthropic.BlockTypeThinking {
			block.Thinking += d.Thinking
		}
	case anthropic.DeltaTypeSignature:
		if block.Type == anthropic.BlockTypeThinking {
			block.Signature = d.Signature
		}
	case anthropic.DeltaTypeCompaction:
		if block.Type == anthropic.BlockTypeCompaction {
			block.Content = d.Content
		}
	}
	return nil
}

// InputBuffer returns the raw accumulated tool input buffer for the block at
// index, nil if none.
func (a *Accumulator) InputBuffer(index int) []byte { return a.jsonBufs[index] }
