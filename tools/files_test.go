package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fennelworks/claude-go/internal/fsio"
)

func testSandbox(t *testing.T) *fsio.Sandbox {
	t.Helper()
	sb, err := fsio.NewSandbox(t.TempDir())
	require.NoError(t, err)
	return sb
}

func callTool(t *testing.T, tool Tool, input string) (ToolResult, error) {
	t.Helper()
	return tool.Call(context.Background(), json.RawMessage(input))
}

func TestReadFileTool(t *testing.T) {
	sb := testSandbox(t)
	require.NoError(t, sb.WriteFile("a.txt", "line1\nline2\nline3"))
	tool := NewReadFileTool(sb)

	res, err := callTool(t, tool, `{"path":"a.txt"}`)
	require.NoError(t, err)
	assert.Equal(t, "line1\nline2\nline3", res.Text)

	res, err = callTool(t, tool, `{"path":"a.txt","offset":1,"limit":1}`)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.Text, "line2\n"))
	assert.True(t, strings.HasSuffix(res.Text, truncationSentinel))

	_, err = callTool(t, tool, `{"path":"../outside.txt"}`)
	assert.Error(t, err)

	_, err = callTool(t, tool, `{"path":"missing.txt"}`)
	assert.Error(t, err)
}

func TestReadFileTool_LongLinesClamped(t *testing.T) {
	sb := testSandbox(t)
	long := strings.Repeat("x", maxLineRunes+100)
	require.NoError(t, sb.WriteFile("long.txt", long))
	tool := NewReadFileTool(sb)

	res, err := callTool(t, tool, `{"path":"long.txt"}`)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(res.Text, truncationSentinel))
	assert.LessOrEqual(t, len([]rune(res.Text)), maxLineRunes+len(truncationSentinel)+1)
}

func TestListFilesTool(t *testing.T) {
	sb := testSandbox(t)
	require.NoError(t, sb.WriteFile("b.txt", ""))
	require.NoError(t, sb.WriteFile("a.txt", ""))
	require.NoError(t, sb.WriteFile("sub/c.txt", ""))
	tool := NewListFilesTool(sb)

	res, err := callTool(t, tool, `{}`)
	require.NoError(t, err)
	var names []string
	require.NoError(t, json.Unmarshal([]byte(res.Text), &names))
	assert.Equal(t, []string{"a.txt", "b.txt", "sub/"}, names)

	// Paging: page beyond the entries yields an empty array.
	res, err = callTool(t, tool, `{"page":5,"page_size":2}`)
	require.NoError(t, err)
	assert.Equal(t, "[]", res.Text)

	res, err = callTool(t, tool, `{"page":2,"page_size":2}`)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(res.Text), &names))
	assert.Equal(t, []string{"sub/"}, names)
}

func TestEditFileTool(t *testing.T) {
	sb := testSandbox(t)
	tool := NewEditFileTool(sb)

	// Create when missing and old_str empty.
	res, err := callTool(t, tool, `{"path":"new.txt","old_str":"","new_str":"content"}`)
	require.NoError(t, err)
	assert.Contains(t, res.Text, "created")
	got, err := sb.ReadFile("new.txt")
	require.NoError(t, err)
	assert.Equal(t, "content", got)

	// Replace existing text.
	res, err = callTool(t, tool, `{"path":"new.txt","old_str":"content","new_str":"changed"}`)
	require.NoError(t, err)
	assert.Equal(t, "OK", res.Text)
	got, _ = sb.ReadFile("new.txt")
	assert.Equal(t, "changed", got)

	// old_str not present.
	_, err = callTool(t, tool, `{"path":"new.txt","old_str":"nope","new_str":"x"}`)
	assert.Error(t, err)

	// Editing an existing file without old_str is ambiguous.
	_, err = callTool(t, tool, `{"path":"new.txt","old_str":"","new_str":"x"}`)
	assert.Error(t, err)

	// Identical old/new rejected up front.
	_, err = callTool(t, tool, `{"path":"new.txt","old_str":"same","new_str":"same"}`)
	assert.Error(t, err)
}
