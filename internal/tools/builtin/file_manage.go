package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"quasar/internal/ports"
)

// DeleteFileTool removes a file or, when asked, a directory tree.
type DeleteFileTool struct {
	ws *Workspace
}

// NewDeleteFileTool creates the delete_file tool.
func NewDeleteFileTool(ws *Workspace) *DeleteFileTool {
	return &DeleteFileTool{ws: ws}
}

func (t *DeleteFileTool) MutatesFiles() bool { return true }

func (t *DeleteFileTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "delete_file",
		Description: "Delete a file. Directories are only removed when recursive is true.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path":      {Type: "string", Description: "Path relative to the workspace root"},
				"recursive": {Type: "boolean", Description: "Remove directories and their contents"},
			},
			Required: []string{"path"},
		},
	}
}

func (t *DeleteFileTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
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
		if !call.BoolArg("recursive", false) {
			return failure(call, fmt.Errorf("%s is a directory; pass recursive=true to delete it", call.StringArg("path")), start), nil
		}
		if err := os.RemoveAll(path); err != nil {
			return failure(call, err, start), nil
		}
	} else if err := os.Remove(path); err != nil {
		return failure(call, err, start), nil
	}

	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  fmt.Sprintf("Deleted %s", call.StringArg("path")),
		Duration: time.Since(start),
		Metadata: map[string]any{"path": call.StringArg("path"), "deleted": true},
	}, nil
}

// MoveFileTool renames a file or directory inside the workspace.
type MoveFileTool struct {
	ws *Workspace
}

// NewMoveFileTool creates the move_file tool.
func NewMoveFileTool(ws *Workspace) *MoveFileTool {
	return &MoveFileTool{ws: ws}
}

func (t *MoveFileTool) MutatesFiles() bool { return true }

func (t *MoveFileTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "move_file",
		Description: "Move or rename a file or directory within the workspace.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"source":      {Type: "string", Description: "Existing path relative to the workspace root"},
				"destination": {Type: "string", Description: "New path relative to the workspace root"},
			},
			Required: []string{"source", "destination"},
		},
	}
}

func (t *MoveFileTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	src, err := resolveWorkspacePath(t.ws.Root(), call.StringArg("source"))
	if err != nil {
		return failure(call, err, start), nil
	}
	dst, err := resolveWorkspacePath(t.ws.Root(), call.StringArg("destination"))
	if err != nil {
		return failure(call, err, start), nil
	}

	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return failure(call, fmt.Errorf("file not found: %s", call.StringArg("source")), start), nil
		}
		return failure(call, err, start), nil
	}
	if _, err := os.Stat(dst); err == nil {
		return failure(call, fmt.Errorf("destination already exists: %s", call.StringArg("destination")), start), nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return failure(call, err, start), nil
	}
	if err := os.Rename(src, dst); err != nil {
		return failure(call, err, start), nil
	}

	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  fmt.Sprintf("Moved %s to %s", call.StringArg("source"), call.StringArg("destination")),
		Duration: time.Since(start),
		Metadata: map[string]any{"source": call.StringArg("source"), "destination": call.StringArg("destination")},
	}, nil
}
