package builtin

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"quasar/internal/config"
	"quasar/internal/ports"
)

// ReadFileTool returns a file's content, refusing full reads of files
// over the large-file line limit so the model chunks instead.
type ReadFileTool struct {
	ws *Workspace
}

// NewReadFileTool creates the read_file tool rooted at the workspace.
func NewReadFileTool(ws *Workspace) *ReadFileTool {
	return &ReadFileTool{ws: ws}
}

func (t *ReadFileTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "read_file",
		Description: "Read the content of a file in the workspace. Files over 2000 lines return metadata only; use read_file_chunk for those.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path": {Type: "string", Description: "File path relative to the workspace root"},
			},
			Required: []string{"path"},
		},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	path, err := resolveWorkspacePath(t.ws.Root(), call.StringArg("path"))
	if err != nil {
		return failure(call, err, start), nil
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return failure(call, fmt.Errorf("file not found: %s", call.StringArg("path")), start), nil
		}
		return failure(call, err, start), nil
	}
	if info.IsDir() {
		return failure(call, fmt.Errorf("%s is a directory, use list_files", call.StringArg("path")), start), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return failure(call, err, start), nil
	}
	content := string(data)
	lines := strings.Count(content, "\n")
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		lines++
	}

	if lines > config.LargeFileLineLimit {
		hint := fmt.Sprintf(
			"File too large to read at once (%d lines, %d bytes). Use read_file_chunk with start_line and end_line to read portions.",
			lines, info.Size())
		return &ports.ToolResult{
			CallID:   call.ID,
			ToolName: call.Name,
			Content:  hint,
			Duration: time.Since(start),
			Metadata: map[string]any{
				"is_large_file": true,
				"lines":         lines,
				"size":          info.Size(),
				"hint":          "read_file_chunk",
			},
		}, nil
	}

	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  content,
		Duration: time.Since(start),
		Metadata: map[string]any{"lines": lines, "size": info.Size()},
	}, nil
}

// ReadFileChunkTool reads an explicit 1-indexed inclusive line range.
type ReadFileChunkTool struct {
	ws *Workspace
}

// NewReadFileChunkTool creates the read_file_chunk tool.
func NewReadFileChunkTool(ws *Workspace) *ReadFileChunkTool {
	return &ReadFileChunkTool{ws: ws}
}

func (t *ReadFileChunkTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "read_file_chunk",
		Description: "Read a line range of a file. Lines are 1-indexed and the range is inclusive. Use this for files read_file refuses as too large.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path":       {Type: "string", Description: "File path relative to the workspace root"},
				"start_line": {Type: "integer", Description: "First line to read, 1-indexed"},
				"end_line":   {Type: "integer", Description: "Last line to read, inclusive"},
			},
			Required: []string{"path", "start_line", "end_line"},
		},
	}
}

func (t *ReadFileChunkTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	path, err := resolveWorkspacePath(t.ws.Root(), call.StringArg("path"))
	if err != nil {
		return failure(call, err, start), nil
	}
	startLine, ok := call.IntArg("start_line")
	if !ok {
		return failure(call, fmt.Errorf("missing 'start_line'"), start), nil
	}
	endLine, ok := call.IntArg("end_line")
	if !ok {
		return failure(call, fmt.Errorf("missing 'end_line'"), start), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return failure(call, fmt.Errorf("file not found: %s", call.StringArg("path")), start), nil
		}
		return failure(call, err, start), nil
	}

	lines := strings.Split(string(data), "\n")
	// Drop the phantom element a trailing newline produces.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	total := len(lines)

	if startLine < 1 {
		startLine = 1
	}
	if endLine > total {
		endLine = total
	}
	if startLine > endLine {
		return failure(call, fmt.Errorf("invalid range %d-%d for %d-line file", startLine, endLine, total), start), nil
	}

	chunk := strings.Join(lines[startLine-1:endLine], "\n")
	header := fmt.Sprintf("Lines %d-%d of %d from %s:\n", startLine, endLine, total, call.StringArg("path"))
	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  header + chunk,
		Duration: time.Since(start),
		Metadata: map[string]any{
			"start_line":      startLine,
			"end_line":        endLine,
			"total_lines":     total,
			"has_more_before": startLine > 1,
			"has_more_after":  endLine < total,
		},
	}, nil
}

// failure builds the uniform failed ToolResult. Argument and I/O
// failures are results, not Go errors, so the loop keeps going.
func failure(call ports.ToolCall, err error, start time.Time) *ports.ToolResult {
	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Error:    err,
		Duration: time.Since(start),
	}
}
