package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"quasar/internal/ports"
)

// CreateFileTool writes a new file, refusing to overwrite unless asked.
type CreateFileTool struct {
	ws *Workspace
}

// NewCreateFileTool creates the create_file tool.
func NewCreateFileTool(ws *Workspace) *CreateFileTool {
	return &CreateFileTool{ws: ws}
}

func (t *CreateFileTool) MutatesFiles() bool { return true }

func (t *CreateFileTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "create_file",
		Description: "Create a new file with the given content. Parent directories are created as needed. Refuses to overwrite an existing file unless overwrite is true.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path":      {Type: "string", Description: "File path relative to the workspace root"},
				"content":   {Type: "string", Description: "Full file content"},
				"overwrite": {Type: "boolean", Description: "Replace the file if it already exists"},
			},
			Required: []string{"path", "content"},
		},
	}
}

func (t *CreateFileTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	path, err := resolveWorkspacePath(t.ws.Root(), call.StringArg("path"))
	if err != nil {
		return failure(call, err, start), nil
	}
	content, hasContent := call.Arguments["content"].(string)
	if !hasContent {
		return failure(call, fmt.Errorf("missing 'content'"), start), nil
	}

	if _, statErr := os.Stat(path); statErr == nil && !call.BoolArg("overwrite", false) {
		return failure(call, fmt.Errorf(
			"file already exists: %s. Use modify_file to change it, or pass overwrite=true to replace it",
			call.StringArg("path")), start), nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return failure(call, err, start), nil
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return failure(call, err, start), nil
	}

	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  fmt.Sprintf("Created %s (%d bytes)", call.StringArg("path"), len(content)),
		Duration: time.Since(start),
		Metadata: map[string]any{"path": call.StringArg("path"), "created": true},
	}, nil
}

// ModifyFileTool replaces an existing file's content wholesale.
type ModifyFileTool struct {
	ws *Workspace
}

// NewModifyFileTool creates the modify_file tool.
func NewModifyFileTool(ws *Workspace) *ModifyFileTool {
	return &ModifyFileTool{ws: ws}
}

func (t *ModifyFileTool) MutatesFiles() bool { return true }

func (t *ModifyFileTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "modify_file",
		Description: "Replace the full content of an existing file. Prefer patch_file for targeted edits. Set backup=true to keep a .bak copy.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path":    {Type: "string", Description: "File path relative to the workspace root"},
				"content": {Type: "string", Description: "New full file content"},
				"backup":  {Type: "boolean", Description: "Write the previous content to <path>.bak first"},
			},
			Required: []string{"path", "content"},
		},
	}
}

func (t *ModifyFileTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	path, err := resolveWorkspacePath(t.ws.Root(), call.StringArg("path"))
	if err != nil {
		return failure(call, err, start), nil
	}
	content, hasContent := call.Arguments["content"].(string)
	if !hasContent {
		return failure(call, fmt.Errorf("missing 'content'"), start), nil
	}

	previous, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return failure(call, fmt.Errorf("file not found: %s. Use create_file for new files", call.StringArg("path")), start), nil
		}
		return failure(call, err, start), nil
	}

	if call.BoolArg("backup", false) {
		if err := os.WriteFile(path+".bak", previous, 0o644); err != nil {
			return failure(call, fmt.Errorf("backup failed: %w", err), start), nil
		}
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return failure(call, err, start), nil
	}

	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  fmt.Sprintf("Modified %s (%d -> %d bytes)", call.StringArg("path"), len(previous), len(content)),
		Duration: time.Since(start),
		Metadata: map[string]any{"path": call.StringArg("path"), "modified": true},
	}, nil
}
