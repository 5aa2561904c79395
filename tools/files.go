package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/fennelworks/claude-go/internal/fsio"
)

// File tools expose sandboxed workspace access to the model. All paths are
// relative to the sandbox root; unsafe paths are rejected by fsio.

type ReadFileInput struct {
	Path   string `json:"path" jsonschema_description:"Relative file path."`
	Offset int    `json:"offset,omitempty" jsonschema_description:"Line offset (0-based) to start reading from."`
	Limit  int    `json:"limit,omitempty" jsonschema_description:"Maximum lines to return from offset (default 200)."`
}

type ListFilesInput struct {
	Path     string `json:"path,omitempty" jsonschema_description:"Optional relative path to list files from (defaults to current directory)."`
	Page     int    `json:"page,omitempty" jsonschema_description:"1-based page number (default 1)."`
	PageSize int    `json:"page_size,omitempty" jsonschema_description:"Page size (default 200)."`
}

type EditFileInput struct {
	Path   string `json:"path" jsonschema_description:"Target relative file path"`
	OldStr string `json:"old_str" jsonschema_description:"Exact text to replace; must be present once when editing an existing file."`
	NewStr string `json:"new_str" jsonschema_description:"New text to write or replace old_str with"`
}

const defaultReadFileLimit = 200
const defaultListFilesPageSize = 200
const truncationSentinel = "-- truncated; use offset/limit to fetch more --\n"
const maxLineRunes = 2000     // per-line clamp
const overallRuneCap = 12_000 // overall cap after join

// clampRunes clamps a string to at most n runes.
func clampRunes(s string, n int) (string, bool) {
	if n <= 0 {
		return "", len([]rune(s)) > 0
	}
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return string(r[:n]), true
}

// NewReadFileTool reads files with deterministic pagination caps so tool
// results stay predictably small. When not all lines fit, the output ends
// with a trailing sentinel signalling pagination.
func NewReadFileTool(sb *fsio.Sandbox) Tool {
	return NewTool("read_file",
		"Read the contents of a file addressed by a relative file path within the workspace. Directory paths and unsafe paths are rejected.",
		func(ctx context.Context, in ReadFileInput) (ToolResult, error) {
			content, err := sb.ReadFile(in.Path)
			if err != nil {
				return ToolResult{}, err
			}

			limit := in.Limit
			if limit <= 0 {
				limit = defaultReadFileLimit
			}
			offset := in.Offset
			if offset < 0 {
				offset = 0
			}

			lines := strings.Split(content, "\n")
			if offset > len(lines) {
				offset = len(lines)
			}
			end := offset + limit
			if end > len(lines) {
				end = len(lines)
			}

			truncated := end < len(lines)
			for i := offset; i < end; i++ {
				if clamped, did := clampRunes(lines[i], maxLineRunes); did {
					lines[i] = clamped
					truncated = true
				}
			}

			out := strings.Join(lines[offset:end], "\n")
			if _, did := clampRunes(out, overallRuneCap); did {
				r := []rune(out)
				out = string(r[:overallRuneCap])
				truncated = true
			}

			if truncated {
				if !strings.HasSuffix(out, "\n") {
					out += "\n"
				}
				if !strings.HasSuffix(out, truncationSentinel) {
					out += truncationSentinel
				}
			}
			return TextResult(out), nil
		})
}

// NewListFilesTool lists non-recursive directory entries with deterministic
// sorting and simple paging. Returns a JSON-encoded []string.
func NewListFilesTool(sb *fsio.Sandbox) Tool {
	return NewTool("list_files",
		"List names of files in a directory within the workspace (non-recursive).",
		func(ctx context.Context, in ListFilesInput) (ToolResult, error) {
			page := in.Page
			if page <= 0 {
				page = 1
			}
			pageSize := in.PageSize
			if pageSize <= 0 {
				pageSize = defaultListFilesPageSize
			}

			names, err := sb.List(in.Path)
			if err != nil {
				return ToolResult{}, err
			}
			// Standardise order so paging is deterministic across filesystems.
			sort.Strings(names)

			start := (page - 1) * pageSize
			if start >= len(names) {
				return TextResult("[]"), nil
			}
			end := start + pageSize
			if end > len(names) {
				end = len(names)
			}

			b, err := json.Marshal(names[start:end])
			if err != nil {
				return ToolResult{}, err
			}
			return TextResult(string(b)), nil
		})
}

// NewEditFileTool creates or modifies text files. With an empty old_str and
// a missing file it creates the file; otherwise it replaces all occurrences
// of old_str with new_str.
func NewEditFileTool(sb *fsio.Sandbox) Tool {
	return NewTool("edit_file",
		`Create or modify a text file addressed by a relative path within the workspace.

When old_str is empty and the file doesn't exist, a new file is created.

When editing an existing file, all occurrences of old_str are replaced with new_str; old_str and new_str must be different.
`,
		func(ctx context.Context, in EditFileInput) (ToolResult, error) {
			if in.Path == "" || in.OldStr == in.NewStr {
				return ToolResult{}, fmt.Errorf("invalid edit parameters")
			}

			oldContent, readErr := sb.ReadFile(in.Path)
			if readErr != nil {
				if in.OldStr == "" {
					if err := sb.WriteFile(in.Path, in.NewStr); err != nil {
						return ToolResult{}, err
					}
					return TextResult(fmt.Sprintf("Successfully created file %s", in.Path)), nil
				}
				return ToolResult{}, readErr
			}

			// An existing file needs a non-empty old_str to avoid ambiguity.
			if in.OldStr == "" {
				return ToolResult{}, fmt.Errorf("old_str must be provided when editing an existing file")
			}

			newContent := strings.ReplaceAll(oldContent, in.OldStr, in.NewStr)
			if newContent == oldContent {
				return ToolResult{}, fmt.Errorf("old_str not found in file")
			}

			if err := sb.WriteFile(in.Path, newContent); err != nil {
				return ToolResult{}, err
			}
			return TextResult("OK"), nil
		})
}
