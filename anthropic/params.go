package anthropic

import "encoding/json"

// MessageParam is one turn of request conversation history.
type MessageParam struct {
	Role    Role                `json:"role"`
	Content []ContentBlockParam `json:"content"`
}

// ContentBlockParam is the request-side counterpart of ContentBlock.
// Setting Raw sends the payload verbatim and ignores every other field.
type ContentBlockParam struct {
	Type string `json:"type,omitempty"`

	Text string `json:"text,omitempty"`

	Thinking  string `json:"thinking,omitempty"`
	Signature string `json:"signature,omitempty"`
	Data      string `json:"data,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   any    `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`

	Raw json.RawMessage `json:"-"`
}

func (p ContentBlockParam) MarshalJSON() ([]byte, error) {
	if len(p.Raw) > 0 {
		return append([]byte(nil), p.Raw...), nil
	}
	type plain ContentBlockParam
	return json.Marshal(plain(p))
}

// NewUserMessage builds a user turn from content blocks.
func NewUserMessage(blocks ...ContentBlockParam) MessageParam {
	return MessageParam{Role: RoleUser, Content: blocks}
}

// NewAssistantMessage builds an assistant turn from content blocks.
func NewAssistantMessage(blocks ...ContentBlockParam) MessageParam {
	return MessageParam{Role: RoleAssistant, Content: blocks}
}

// NewTextBlock builds a text content block.
func NewTextBlock(text string) ContentBlockParam {
	return ContentBlockParam{Type: BlockTypeText, Text: text}
}

// NewToolUseBlock builds an assistant tool_use block.
func NewToolUseBlock(id, name string, input json.RawMessage) ContentBlockParam {
	return ContentBlockParam{Type: BlockTypeToolUse, ID: id, Name: name, Input: input}
}

// NewToolResultBlock builds a user tool_result block answering the tool_use
// with the given id. Content may be a string or a []ContentBlockParam.
func NewToolResultBlock(toolUseID string, content any, isError bool) ContentBlockParam {
	return ContentBlockParam{Type: "tool_result", ToolUseID: toolUseID, Content: content, IsError: isError}
}

// ToolInputSchema is the JSON-schema shape of a function tool's input.
type ToolInputSchema struct {
	Type       string   `json:"type"`
	Properties any      `json:"properties,omitempty"`
	Required   []string `json:"required,omitempty"`
}

// ToolParam is the wire descriptor of a client-executed function tool.
type ToolParam struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema ToolInputSchema `json:"input_schema"`
}

// ToolUnionParam is either a function tool descriptor or, for built-in
// tools, a raw descriptor the server recognises by its fixed "type".
type ToolUnionParam struct {
	OfTool *ToolParam
	Raw    json.RawMessage
}

func (t ToolUnionParam) MarshalJSON() ([]byte, error) {
	if t.OfTool != nil {
		return json.Marshal(t.OfTool)
	}
	if len(t.Raw) > 0 {
		return append([]byte(nil), t.Raw...), nil
	}
	return []byte("null"), nil
}

// OutputFormat requests structured output: text blocks are expected to
// contain JSON conforming to Schema.
type OutputFormat struct {
	Type   string `json:"type"` // "json_schema"
	Schema any    `json:"schema,omitempty"`
}

// MessageNewParams is the request body for the Messages endpoint. Fields the
// core never interprets can be supplied through request options as extra
// body members.
type MessageNewParams struct {
	Model        string           `json:"model"`
	Messages     []MessageParam   `json:"messages"`
	MaxTokens    int64            `json:"max_tokens"`
	System       any              `json:"system,omitempty"` // string or []ContentBlockParam
	Tools        []ToolUnionParam `json:"tools,omitempty"`
	ToolChoice   json.RawMessage  `json:"tool_choice,omitempty"`
	OutputFormat *OutputFormat    `json:"output_format,omitempty"`
	Stream       bool             `json:"stream,omitempty"`
}
