package anthropic

import "encoding/json"

// Raw stream event type tags.
const (
	EventMessageStart      = "message_start"
	EventMessageDelta      = "message_delta"
	EventMessageStop       = "message_stop"
	EventContentBlockStart = "content_block_start"
	EventContentBlockDelta = "content_block_delta"
	EventContentBlockStop  = "content_block_stop"
)

// Delta type tags carried inside content_block_delta events.
const (
	DeltaTypeText       = "text_delta"
	DeltaTypeInputJSON  = "input_json_delta"
	DeltaTypeCitations  = "citations_delta"
	DeltaTypeThinking   = "thinking_delta"
	DeltaTypeSignature  = "signature_delta"
	DeltaTypeCompaction = "compaction_delta"
)

// RawEvent is one server-sent event from a streaming Messages request,
// discriminated by Type. Fields are populated per event kind:
//
//	message_start        Message
//	content_block_start  Index, ContentBlock
//	content_block_delta  Index, Delta
//	content_block_stop   Index
//	message_delta        Delta (stop fields), Usage, ContextManagement
//	message_stop         nothing
type RawEvent struct {
	Type         string        `json:"type"`
	Message      *Message      `json:"message,omitempty"`
	Index        int           `json:"index,omitempty"`
	ContentBlock *ContentBlock `json:"content_block,omitempty"`
	Delta        *Delta        `json:"delta,omitempty"`

	Usage             *MessageDeltaUsage `json:"usage,omitempty"`
	ContextManagement json.RawMessage    `json:"context_management,omitempty"`
}

// Delta is the nested payload of content_block_delta and message_delta
// events. Block deltas carry a Type tag; message deltas carry only the
// stop/container fields.
type Delta struct {
	Type string `json:"type,omitempty"`

	// content_block_delta variants
	Text        string          `json:"text,omitempty"`         // text_delta
	PartialJSON string          `json:"partial_json,omitempty"` // input_json_delta
	Citation    json.RawMessage `json:"citation,omitempty"`     // citations_delta
	Thinking    string          `json:"thinking,omitempty"`     // thinking_delta
	Signature   string          `json:"signature,omitempty"`    // signature_delta
	Content     string          `json:"content,omitempty"`      // compaction_delta

	// message_delta
	StopReason   string          `json:"stop_reason,omitempty"`
	StopSequence string          `json:"stop_sequence,omitempty"`
	Container    json.RawMessage `json:"container,omitempty"`
}

// MessageDeltaUsage is the usage payload of a message_delta event.
// OutputTokens is cumulative for the whole message; the remaining counters
// are sent only when they change, hence pointers.
type MessageDeltaUsage struct {
	OutputTokens             int64  `json:"output_tokens"`
	InputTokens              *int64 `json:"input_tokens,omitempty"`
	CacheCreationInputTokens *int64 `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     *int64 `json:"cache_read_input_tokens,omitempty"`
}
