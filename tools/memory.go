package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/buger/jsonparser"

	"github.com/fennelworks/claude-go/anthropic"
)

// MemoryBackend is the storage interface behind the memory builtin tool.
// Paths follow the tool's convention of living under /memories. Each method
// returns the human-readable result string shown to the model.
type MemoryBackend interface {
	View(ctx context.Context, path string, viewRange []int) (string, error)
	Create(ctx context.Context, path, fileText string) (string, error)
	StrReplace(ctx context.Context, path, oldStr, newStr string) (string, error)
	Insert(ctx context.Context, path string, insertLine int, insertText string) (string, error)
	Delete(ctx context.Context, path string) (string, error)
	Rename(ctx context.Context, oldPath, newPath string) (string, error)
}

// MemoryTool is the memory_20250818 builtin: the server supplies the tool
// schema from the fixed type, the client executes the commands.
type MemoryTool struct {
	backend MemoryBackend
}

// NewMemoryTool wraps a backend as the memory builtin tool.
func NewMemoryTool(backend MemoryBackend) *MemoryTool {
	return &MemoryTool{backend: backend}
}

func (t *MemoryTool) Name() string { return "memory" }

func (t *MemoryTool) ToParam() anthropic.ToolUnionParam {
	return anthropic.ToolUnionParam{Raw: json.RawMessage(`{"type":"memory_20250818","name":"memory"}`)}
}

// memoryCommand is the union of all command payload fields.
type memoryCommand struct {
	Command    string `json:"command"`
	Path       string `json:"path"`
	ViewRange  []int  `json:"view_range"`
	FileText   string `json:"file_text"`
	OldStr     string `json:"old_str"`
	NewStr     string `json:"new_str"`
	InsertLine int    `json:"insert_line"`
	InsertText string `json:"insert_text"`
	OldPath    string `json:"old_path"`
	NewPath    string `json:"new_path"`
}

func (t *MemoryTool) Call(ctx context.Context, input json.RawMessage) (ToolResult, error) {
	// Cheap tag check before decoding the whole payload.
	command, err := jsonparser.GetString(input, "command")
	if err != nil {
		return ToolResult{}, fmt.Errorf("memory: missing command: %w", err)
	}
	var cmd memoryCommand
	if err := json.Unmarshal(input, &cmd); err != nil {
		return ToolResult{}, fmt.Errorf("memory: decode %s command: %w", command, err)
	}

	var out string
	switch command {
	case "view":
		out, err = t.backend.View(ctx, cmd.Path, cmd.ViewRange)
	case "create":
		out, err = t.backend.Create(ctx, cmd.Path, cmd.FileText)
	case "str_replace":
		out, err = t.backend.StrReplace(ctx, cmd.Path, cmd.OldStr, cmd.NewStr)
	case "insert":
		out, err = t.backend.Insert(ctx, cmd.Path, cmd.InsertLine, cmd.InsertText)
	case "delete":
		out, err = t.backend.Delete(ctx, cmd.Path)
	case "rename":
		out, err = t.backend.Rename(ctx, cmd.OldPath, cmd.NewPath)
	default:
		return ToolResult{}, fmt.Errorf("memory: unknown command %q", command)
	}
	if err != nil {
		return ToolResult{}, err
	}
	return TextResult(out), nil
}
