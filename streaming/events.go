package streaming

import (
	"encoding/json"

	"github.com/fennelworks/claude-go/anthropic"
)

// Derived event type tags. Raw passthrough events keep their wire tags
// (message_start, content_block_delta, ...).
const (
	EventTypeText       = "text"
	EventTypeInputJSON  = "input_json"
	EventTypeCitation   = "citation"
	EventTypeThinking   = "thinking"
	EventTypeSignature  = "signature"
	EventTypeCompaction = "compaction"
)

// Event is one high-level stream event: either a raw event passed through
// (Raw is set) or a derived event synthesised from the raw event and the
// snapshot. Fields are populated per Type:
//
//	text                Text, TextSnapshot
//	input_json          PartialJSON, InputSnapshot
//	citation            Citation, Citations
//	thinking            Thinking, ThinkingSnapshot
//	signature           Signature
//	compaction          Content
//	content_block_stop  Index, ContentBlock (derived form; the raw form has Raw set instead)
//	message_stop        Message
type Event struct {
	Type string

	// Raw is the underlying wire event for passthrough events.
	Raw *anthropic.RawEvent

	Text         string
	TextSnapshot string

	PartialJSON   string
	InputSnapshot any

	Citation  json.RawMessage
	Citations []json.RawMessage

	Thinking         string
	ThinkingSnapshot string

	Signature string

	Content string

	Index        int
	ContentBlock *anthropic.ContentBlock

	Message *anthropic.Message
}

// BuildEvents derives the high-level events for one raw event given the
// snapshot that already includes it. It is a pure function and never fails;
// raw events that match no rule pass through unchanged.
func BuildEvents(raw *anthropic.RawEvent, snapshot *anthropic.Message) []Event {
	switch raw.Type {
	case anthropic.EventMessageStart, anthropic.EventMessageDelta, anthropic.EventContentBlockStart:
		return []Event{{Type: raw.Type, Raw: raw}}

	case anthropic.EventMessageStop:
		return []Event{{Type: anthropic.EventMessageStop, Message: snapshot}}

	case anthropic.EventContentBlockStop:
		events := []Event{{Type: raw.Type, Raw: raw}}
		if snapshot != nil && raw.Index >= 0 && raw.Index < len(snapshot.Content) {
			events = append(events, Event{
				Type:         anthropic.EventContentBlockStop,
				Index:        raw.Index,
				ContentBlock: &snapshot.Content[raw.Index],
			})
		}
		return events

	case anthropic.EventContentBlockDelta:
		events := []Event{{Type: raw.Type, Raw: raw}}
		if snapshot == nil || raw.Delta == nil || raw.Index < 0 || raw.Index >= len(snapshot.Content) {
			return events
		}
		block := &snapshot.Content[raw.Index]

		switch {
		case raw.Delta.Type == anthropic.DeltaTypeText && block.Type == anthropic.BlockTypeText:
			events = append(events, Event{
				Type:         EventTypeText,
				Text:         raw.Delta.Text,
				TextSnapshot: block.Text,
			})
		case raw.Delta.Type == anthropic.DeltaTypeInputJSON && block.IsToolUse():
			var input any
			if len(block.Input) > 0 {
				_ = json.Unmarshal(block.Input, &input)
			}
			events = append(events, Event{
				Type:          EventTypeInputJSON,
				PartialJSON:   raw.Delta.PartialJSON,
				InputSnapshot: input,
			})
		case raw.Delta.Type == anthropic.DeltaTypeCitations && block.Type == anthropic.BlockTypeText:
			events = append(events, Event{
				Type:      EventTypeCitation,
				Citation:  raw.Delta.Citation,
				Citations: block.Citations,
			})
		case raw.Delta.Type == anthropic.DeltaTypeThinking && block.Type == anthropic.BlockTypeThinking:
			events = append(events, Event{
				Type:             EventTypeThinking,
				Thinking:         raw.Delta.Thinking,
				ThinkingSnapshot: block.Thinking,
			})
		case raw.Delta.Type == anthropic.DeltaTypeSignature && block.Type == anthropic.BlockTypeThinking:
			events = append(events, Event{
				Type:      EventTypeSignature,
				Signature: raw.Delta.Signature,
			})
		case raw.Delta.Type == anthropic.DeltaTypeCompaction && block.Type == anthropic.BlockTypeCompaction:
			events = append(events, Event{
				Type:    EventTypeCompaction,
				Content: raw.Delta.Content,
			})
		}
		return events

	default:
		return []Event{{Type: raw.Type, Raw: raw}}
	}
}
