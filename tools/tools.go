package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/fennelworks/claude-go/anthropic"
)

// Tool is anything the runner can advertise to the model and execute when
// the model requests it.
type Tool interface {
	// Name is the wire name the model calls the tool by.
	Name() string
	// ToParam returns the request descriptor sent in the tools array.
	ToParam() anthropic.ToolUnionParam
	// Call executes the tool against raw JSON input from a tool_use block.
	Call(ctx context.Context, input json.RawMessage) (ToolResult, error)
}

// ToolResult is what a tool handler returns: plain text, or ordered content
// blocks for rich results. When Blocks is non-empty it wins.
type ToolResult struct {
	Text   string
	Blocks []anthropic.ContentBlockParam
}

// TextResult wraps a string result.
func TextResult(text string) ToolResult { return ToolResult{Text: text} }

// Content returns the value to place in the tool_result block.
func (r ToolResult) Content() any {
	if len(r.Blocks) > 0 {
		return r.Blocks
	}
	return r.Text
}

// GenerateSchema derives the JSON input schema for a tool from a Go struct,
// honouring json and jsonschema_description tags.
func GenerateSchema[T any]() anthropic.ToolInputSchema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	schema := reflector.Reflect(v)
	return anthropic.ToolInputSchema{
		Type:       "object",
		Properties: schema.Properties,
		Required:   schema.Required,
	}
}

// FuncTool is a function tool with a schema derived from its input struct.
// Construct with NewTool.
type FuncTool struct {
	name        string
	description string
	schema      anthropic.ToolInputSchema
	fn          func(ctx context.Context, input json.RawMessage) (ToolResult, error)
}

// NewTool wraps a typed handler as a Tool. The input schema is generated
// from T. Panics on an empty name: tool identity is fixed at construction
// and an unnamed tool is a programming error.
func NewTool[T any](name, description string, fn func(ctx context.Context, in T) (ToolResult, error)) *FuncTool {
	if name == "" {
		panic("tools: tool name must not be empty")
	}
	return &FuncTool{
		name:        name,
		description: description,
		schema:      GenerateSchema[T](),
		fn: func(ctx context.Context, input json.RawMessage) (ToolResult, error) {
			var in T
			if len(input) > 0 {
				if err := json.Unmarshal(input, &in); err != nil {
					return ToolResult{}, fmt.Errorf("decode %s input: %w", name, err)
				}
			}
			return fn(ctx, in)
		},
	}
}

func (t *FuncTool) Name() string { return t.name }

func (t *FuncTool) ToParam() anthropic.ToolUnionParam {
	return anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
		Name:        t.name,
		Description: t.description,
		InputSchema: t.schema,
	}}
}

func (t *FuncTool) Call(ctx context.Context, input json.RawMessage) (ToolResult, error) {
	return t.fn(ctx, input)
}
