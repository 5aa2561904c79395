package anthropic

import "encoding/json"

// Role of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Content block type tags handled by the streaming assembler. Anything else
// is carried opaquely.
const (
	BlockTypeText             = "text"
	BlockTypeThinking         = "thinking"
	BlockTypeRedactedThinking = "redacted_thinking"
	BlockTypeToolUse          = "tool_use"
	BlockTypeServerToolUse    = "server_tool_use"
	BlockTypeMCPToolUse       = "mcp_tool_use"
	BlockTypeCompaction       = "compaction"
)

// Usage reports token accounting for a request/response pair.
type Usage struct {
	InputTokens              int64 `json:"input_tokens"`
	OutputTokens             int64 `json:"output_tokens"`
	CacheCreationInputTokens int64 `json:"cache_creation_input_tokens,omitempty"`
	CacheReadInputTokens     int64 `json:"cache_read_input_tokens,omitempty"`
}

// Message is an assistant message as returned by the API. While a stream is
// in flight the same struct doubles as the evolving snapshot; once
// message_stop has been observed it is final.
type Message struct {
	ID                string          `json:"id"`
	Type              string          `json:"type,omitempty"`
	Role              Role            `json:"role"`
	Model             string          `json:"model"`
	Content           []ContentBlock  `json:"content"`
	StopReason        string          `json:"stop_reason,omitempty"`
	StopSequence      string          `json:"stop_sequence,omitempty"`
	Usage             Usage           `json:"usage"`
	Container         json.RawMessage `json:"container,omitempty"`
	ContextManagement json.RawMessage `json:"context_management,omitempty"`
}

// FirstText returns the text of the first text block, or "".
func (m *Message) FirstText() string {
	for i := range m.Content {
		if m.Content[i].Type == BlockTypeText {
			return m.Content[i].Text
		}
	}
	return ""
}

// ToolUses returns the tool-use-shaped blocks of the message in order.
func (m *Message) ToolUses() []*ContentBlock {
	var out []*ContentBlock
	for i := range m.Content {
		if m.Content[i].IsToolUse() {
			out = append(out, &m.Content[i])
		}
	}
	return out
}

// ToParam converts the message into a request parameter so it can be
// appended back onto the conversation.
func (m *Message) ToParam() MessageParam {
	blocks := make([]ContentBlockParam, 0, len(m.Content))
	for i := range m.Content {
		b := &m.Content[i]
		switch b.Type {
		case BlockTypeText:
			blocks = append(blocks, NewTextBlock(b.Text))
		case BlockTypeThinking:
			blocks = append(blocks, ContentBlockParam{Type: BlockTypeThinking, Thinking: b.Thinking, Signature: b.Signature})
		case BlockTypeRedactedThinking:
			blocks = append(blocks, ContentBlockParam{Type: BlockTypeRedactedThinking, Data: b.Data})
		case BlockTypeToolUse, BlockTypeServerToolUse, BlockTypeMCPToolUse:
			blocks = append(blocks, ContentBlockParam{Type: b.Type, ID: b.ID, Name: b.Name, Input: b.Input})
		default:
			if len(b.raw) > 0 {
				blocks = append(blocks, ContentBlockParam{Raw: b.raw})
			}
		}
	}
	return MessageParam{Role: m.Role, Content: blocks}
}

// ContentBlock is one semantic unit inside an assistant message. The Type
// tag fixes which of the variant fields are meaningful.
type ContentBlock struct {
	Type string `json:"type"`

	// text
	Text      string            `json:"text,omitempty"`
	Citations []json.RawMessage `json:"citations,omitempty"`

	// thinking
	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`

	// redacted_thinking
	Data string `json:"data,omitempty"`

	// tool_use, server_tool_use, mcp_tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// compaction
	Content string `json:"content,omitempty"`

	// ParsedOutput holds the block text decoded against the request's output
	// format, when one was configured and the text parsed cleanly.
	ParsedOutput any `json:"-"`

	raw json.RawMessage
}

// IsToolUse reports whether the block accumulates tool input
// (tool_use, server_tool_use or mcp_tool_use).
func (b *ContentBlock) IsToolUse() bool {
	switch b.Type {
	case BlockTypeToolUse, BlockTypeServerToolUse, BlockTypeMCPToolUse:
		return true
	}
	return false
}

// Raw returns the verbatim wire JSON the block was decoded from, if any.
// Opaque block variants keep their payload here.
func (b *ContentBlock) Raw() json.RawMessage { return b.raw }

func (b *ContentBlock) UnmarshalJSON(data []byte) error {
	type plain ContentBlock
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*b = ContentBlock(p)
	b.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (b ContentBlock) MarshalJSON() ([]byte, error) {
	switch b.Type {
	case BlockTypeText, BlockTypeThinking, BlockTypeRedactedThinking,
		BlockTypeToolUse, BlockTypeServerToolUse, BlockTypeMCPToolUse,
		BlockTypeCompaction:
		type plain ContentBlock
		return json.Marshal(plain(b))
	}
	// Opaque variants round-trip untouched.
	if len(b.raw) > 0 {
		return append([]byte(nil), b.raw...), nil
	}
	type plain ContentBlock
	return json.Marshal(plain(b))
}
