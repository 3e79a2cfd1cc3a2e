package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quasar/internal/ports"
)

func call(name string, args map[string]any) ports.ToolCall {
	return ports.ToolCall{ID: "call-1", Name: name, Arguments: args}
}

func TestCreateReadRoundTrip(t *testing.T) {
	workspace := t.TempDir()
	create := NewCreateFileTool(NewWorkspace(workspace))
	read := NewReadFileTool(NewWorkspace(workspace))

	content := "print('hi')\n"
	result, err := create.Execute(context.Background(), call("create_file", map[string]any{
		"path": "hello.py", "content": content,
	}))
	require.NoError(t, err)
	require.True(t, result.Success(), "create failed: %v", result.Error)

	got, err := read.Execute(context.Background(), call("read_file", map[string]any{"path": "hello.py"}))
	require.NoError(t, err)
	require.True(t, got.Success())
	assert.Equal(t, content, got.Content)
}

func TestCreateFileRefusesOverwrite(t *testing.T) {
	workspace := t.TempDir()
	create := NewCreateFileTool(NewWorkspace(workspace))

	first, _ := create.Execute(context.Background(), call("create_file", map[string]any{
		"path": "a.txt", "content": "one",
	}))
	require.True(t, first.Success())

	second, _ := create.Execute(context.Background(), call("create_file", map[string]any{
		"path": "a.txt", "content": "two",
	}))
	require.False(t, second.Success())
	assert.Contains(t, second.Error.Error(), "already exists")

	forced, _ := create.Execute(context.Background(), call("create_file", map[string]any{
		"path": "a.txt", "content": "two", "overwrite": true,
	}))
	require.True(t, forced.Success())
	data, _ := os.ReadFile(filepath.Join(workspace, "a.txt"))
	assert.Equal(t, "two", string(data))
}

func TestReadFileLargeFileRefusal(t *testing.T) {
	workspace := t.TempDir()
	var b strings.Builder
	for i := 0; i < 2500; i++ {
		fmt.Fprintf(&b, "line %d\n", i)
	}
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "big.py"), []byte(b.String()), 0o644))

	read := NewReadFileTool(NewWorkspace(workspace))
	result, err := read.Execute(context.Background(), call("read_file", map[string]any{"path": "big.py"}))
	require.NoError(t, err)
	require.True(t, result.Success())
	assert.Equal(t, true, result.Metadata["is_large_file"])
	assert.Equal(t, 2500, result.Metadata["lines"])
	assert.Contains(t, result.Content, "read_file_chunk")
	assert.NotContains(t, result.Content, "line 42")
}

func TestReadFileChunkBoundaries(t *testing.T) {
	workspace := t.TempDir()
	var lines []string
	for i := 1; i <= 1000; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	full := strings.Join(lines, "\n") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "f.txt"), []byte(full), 0o644))

	chunk := NewReadFileChunkTool(NewWorkspace(workspace))

	first, _ := chunk.Execute(context.Background(), call("read_file_chunk", map[string]any{
		"path": "f.txt", "start_line": float64(1), "end_line": float64(500),
	}))
	require.True(t, first.Success())
	assert.Equal(t, false, first.Metadata["has_more_before"])
	assert.Equal(t, true, first.Metadata["has_more_after"])

	second, _ := chunk.Execute(context.Background(), call("read_file_chunk", map[string]any{
		"path": "f.txt", "start_line": float64(501), "end_line": float64(1000),
	}))
	require.True(t, second.Success())
	assert.Equal(t, true, second.Metadata["has_more_before"])
	assert.Equal(t, false, second.Metadata["has_more_after"])

	// The two windows reassemble the full file.
	firstBody := strings.SplitN(first.Content, "\n", 2)[1]
	secondBody := strings.SplitN(second.Content, "\n", 2)[1]
	assert.Equal(t, strings.TrimSuffix(full, "\n"), firstBody+"\n"+secondBody)

	// Out-of-range end clamps instead of failing.
	clamped, _ := chunk.Execute(context.Background(), call("read_file_chunk", map[string]any{
		"path": "f.txt", "start_line": float64(990), "end_line": float64(5000),
	}))
	require.True(t, clamped.Success())
	assert.Equal(t, 1000, clamped.Metadata["end_line"])
}

func TestPatchFileOccurrences(t *testing.T) {
	workspace := t.TempDir()
	path := filepath.Join(workspace, "p.txt")
	original := "aaa bbb aaa ccc aaa"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	patch := NewPatchFileTool(NewWorkspace(workspace))

	t.Run("second occurrence only", func(t *testing.T) {
		result, _ := patch.Execute(context.Background(), call("patch_file", map[string]any{
			"path": "p.txt", "find": "aaa", "replace": "XXX", "occurrence": float64(2),
		}))
		require.True(t, result.Success(), "%v", result.Error)
		data, _ := os.ReadFile(path)
		assert.Equal(t, "aaa bbb XXX ccc aaa", string(data))
	})

	t.Run("occurrence zero replaces all", func(t *testing.T) {
		result, _ := patch.Execute(context.Background(), call("patch_file", map[string]any{
			"path": "p.txt", "find": "aaa", "replace": "YYY", "occurrence": float64(0),
		}))
		require.True(t, result.Success())
		assert.Equal(t, 2, result.Metadata["replaced"])
	})

	t.Run("missing text errors", func(t *testing.T) {
		result, _ := patch.Execute(context.Background(), call("patch_file", map[string]any{
			"path": "p.txt", "find": "zzz", "replace": "q",
		}))
		require.False(t, result.Success())
		assert.Contains(t, result.Error.Error(), "not found")
	})

	t.Run("occurrence beyond count errors", func(t *testing.T) {
		result, _ := patch.Execute(context.Background(), call("patch_file", map[string]any{
			"path": "p.txt", "find": "YYY", "replace": "q", "occurrence": float64(9),
		}))
		require.False(t, result.Success())
		assert.Contains(t, result.Error.Error(), "occurrence")
	})
}

func TestPatchFileRoundTrip(t *testing.T) {
	workspace := t.TempDir()
	path := filepath.Join(workspace, "r.txt")
	original := "alpha beta gamma"
	require.NoError(t, os.WriteFile(path, []byte(original), 0o644))

	patch := NewPatchFileTool(NewWorkspace(workspace))
	forward, _ := patch.Execute(context.Background(), call("patch_file", map[string]any{
		"path": "r.txt", "find": "beta", "replace": "delta", "occurrence": float64(1),
	}))
	require.True(t, forward.Success())
	back, _ := patch.Execute(context.Background(), call("patch_file", map[string]any{
		"path": "r.txt", "find": "delta", "replace": "beta", "occurrence": float64(1),
	}))
	require.True(t, back.Success())

	data, _ := os.ReadFile(path)
	assert.Equal(t, original, string(data))
}

func TestMoveFileRoundTrip(t *testing.T) {
	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "src.txt"), []byte("content"), 0o644))

	move := NewMoveFileTool(NewWorkspace(workspace))
	first, _ := move.Execute(context.Background(), call("move_file", map[string]any{
		"source": "src.txt", "destination": "dst.txt",
	}))
	require.True(t, first.Success(), "%v", first.Error)
	assert.NoFileExists(t, filepath.Join(workspace, "src.txt"))

	second, _ := move.Execute(context.Background(), call("move_file", map[string]any{
		"source": "dst.txt", "destination": "src.txt",
	}))
	require.True(t, second.Success())

	data, err := os.ReadFile(filepath.Join(workspace, "src.txt"))
	require.NoError(t, err)
	assert.Equal(t, "content", string(data))
}

func TestDeleteFileDirectoryNeedsRecursive(t *testing.T) {
	workspace := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workspace, "dir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "dir", "f.txt"), []byte("x"), 0o644))

	del := NewDeleteFileTool(NewWorkspace(workspace))
	refused, _ := del.Execute(context.Background(), call("delete_file", map[string]any{"path": "dir"}))
	require.False(t, refused.Success())
	assert.Contains(t, refused.Error.Error(), "recursive")

	removed, _ := del.Execute(context.Background(), call("delete_file", map[string]any{
		"path": "dir", "recursive": true,
	}))
	require.True(t, removed.Success())
	assert.NoDirExists(t, filepath.Join(workspace, "dir"))
}

func TestListFilesCaps(t *testing.T) {
	workspace := t.TempDir()
	for i := 0; i < 120; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(workspace, fmt.Sprintf("f%03d.txt", i)), []byte("x"), 0o644))
	}
	for i := 0; i < 60; i++ {
		require.NoError(t, os.MkdirAll(filepath.Join(workspace, fmt.Sprintf("d%03d", i)), 0o755))
	}

	list := NewListFilesTool(NewWorkspace(workspace))
	result, _ := list.Execute(context.Background(), call("list_files", map[string]any{}))
	require.True(t, result.Success())
	assert.Equal(t, 100, result.Metadata["files"])
	assert.Equal(t, 50, result.Metadata["dirs"])
	assert.Equal(t, true, result.Metadata["truncated"])
}

func TestListFilesSkipsNoiseDirs(t *testing.T) {
	workspace := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workspace, ".git"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(workspace, "node_modules"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(workspace, "src"), 0o755))

	list := NewListFilesTool(NewWorkspace(workspace))
	result, _ := list.Execute(context.Background(), call("list_files", map[string]any{}))
	require.True(t, result.Success())
	assert.Contains(t, result.Content, "src/")
	assert.NotContains(t, result.Content, ".git")
	assert.NotContains(t, result.Content, "node_modules")
}

func TestSearchFilesGlobAndContent(t *testing.T) {
	workspace := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "a.py"), []byte("import os"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "b.py"), []byte("import sys"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(workspace, "c.txt"), []byte("import os"), 0o644))

	search := NewSearchFilesTool(NewWorkspace(workspace))
	result, _ := search.Execute(context.Background(), call("search_files", map[string]any{
		"pattern": "*.py", "content": "import os",
	}))
	require.True(t, result.Success())
	assert.Equal(t, 1, result.Metadata["matches"])
	assert.Contains(t, result.Content, "a.py")
}

func TestDangerousCommandBlocked(t *testing.T) {
	workspace := t.TempDir()
	run := NewRunTerminalCommandTool(NewWorkspace(workspace), NewTerminalSession())

	for _, cmd := range []string{"rm -rf /", "sudo shutdown now", ":(){:|:&};:"} {
		result, _ := run.Execute(context.Background(), call("run_terminal_command", map[string]any{"command": cmd}))
		require.False(t, result.Success(), "expected %q to be blocked", cmd)
		assert.Contains(t, result.Error.Error(), "dangerous")
	}
}

func TestRunTerminalCommandCapturesOutput(t *testing.T) {
	workspace := t.TempDir()
	session := NewTerminalSession()
	run := NewRunTerminalCommandTool(NewWorkspace(workspace), session)

	result, _ := run.Execute(context.Background(), call("run_terminal_command", map[string]any{
		"command": "echo hello-quasar",
	}))
	require.True(t, result.Success(), "%v", result.Error)
	assert.Contains(t, result.Content, "hello-quasar")

	tail := session.Tail(10)
	assert.Contains(t, strings.Join(tail, "\n"), "hello-quasar")
}

func TestWorkspaceRebindRedirectsTools(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	ws := NewWorkspace(first)
	create := NewCreateFileTool(ws)

	result, _ := create.Execute(context.Background(), call("create_file", map[string]any{
		"path": "a.txt", "content": "one",
	}))
	require.True(t, result.Success(), "%v", result.Error)
	assert.FileExists(t, filepath.Join(first, "a.txt"))

	ws.Set(second)
	result, _ = create.Execute(context.Background(), call("create_file", map[string]any{
		"path": "b.txt", "content": "two",
	}))
	require.True(t, result.Success(), "%v", result.Error)
	assert.FileExists(t, filepath.Join(second, "b.txt"))
	assert.NoFileExists(t, filepath.Join(first, "b.txt"))
}

func TestSuggestCommandDoesNotExecute(t *testing.T) {
	workspace := t.TempDir()
	suggest := NewSuggestCommandTool()

	marker := filepath.Join(workspace, "marker.txt")
	result, _ := suggest.Execute(context.Background(), call("suggest_command", map[string]any{
		"command": "touch " + marker,
	}))
	require.True(t, result.Success())
	assert.Contains(t, result.Content, "not executed")
	assert.NoFileExists(t, marker)
}
