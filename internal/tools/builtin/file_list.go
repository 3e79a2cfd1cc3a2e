package builtin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"quasar/internal/config"
	"quasar/internal/ports"
)

var skippedDirs = map[string]bool{
	".git":         true,
	"__pycache__":  true,
	"node_modules": true,
	".venv":        true,
	"venv":         true,
	".idea":        true,
	".vscode":      true,
}

// ListFilesTool lists one directory level, capped at 100 files and 50
// directories.
type ListFilesTool struct {
	ws *Workspace
}

// NewListFilesTool creates the list_files tool.
func NewListFilesTool(ws *Workspace) *ListFilesTool {
	return &ListFilesTool{ws: ws}
}

func (t *ListFilesTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "list_files",
		Description: "List files and directories at a path in the workspace. Output is capped at 100 files and 50 directories.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path": {Type: "string", Description: "Directory relative to the workspace root, defaults to the root"},
			},
		},
	}
}

func (t *ListFilesTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	arg := call.StringArg("path")
	if arg == "" {
		arg = "."
	}
	path, err := resolveWorkspacePath(t.ws.Root(), arg)
	if err != nil {
		return failure(call, err, start), nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return failure(call, fmt.Errorf("directory not found: %s", arg), start), nil
		}
		return failure(call, err, start), nil
	}

	var files, dirs []string
	truncated := false
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			if skippedDirs[name] {
				continue
			}
			if len(dirs) >= config.ListDirsCap {
				truncated = true
				continue
			}
			dirs = append(dirs, name+"/")
		} else {
			if len(files) >= config.ListFilesCap {
				truncated = true
				continue
			}
			files = append(files, name)
		}
	}
	sort.Strings(files)
	sort.Strings(dirs)

	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d directories, %d files\n", arg, len(dirs), len(files))
	for _, d := range dirs {
		b.WriteString("  " + d + "\n")
	}
	for _, f := range files {
		b.WriteString("  " + f + "\n")
	}
	if truncated {
		b.WriteString("  ... truncated. Narrow the path or use search_files to find specific files.\n")
	}

	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  b.String(),
		Duration: time.Since(start),
		Metadata: map[string]any{
			"files":     len(files),
			"dirs":      len(dirs),
			"truncated": truncated,
		},
	}, nil
}

// ListTreeTool walks up to three levels and returns a compact tree,
// capped at 500 entries.
type ListTreeTool struct {
	ws *Workspace
}

// NewListTreeTool creates the list_tree tool.
func NewListTreeTool(ws *Workspace) *ListTreeTool {
	return &ListTreeTool{ws: ws}
}

func (t *ListTreeTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "list_tree",
		Description: "Show the workspace file tree up to 3 levels deep, capped at 500 entries. Faster than repeated list_files calls.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path": {Type: "string", Description: "Root of the tree, defaults to the workspace root"},
			},
		},
	}
}

func (t *ListTreeTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	arg := call.StringArg("path")
	if arg == "" {
		arg = "."
	}
	root, err := resolveWorkspacePath(t.ws.Root(), arg)
	if err != nil {
		return failure(call, err, start), nil
	}

	var b strings.Builder
	count := 0
	truncated := t.walk(root, 0, &b, &count)

	if truncated {
		b.WriteString("... truncated at 500 entries\n")
	}
	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  b.String(),
		Duration: time.Since(start),
		Metadata: map[string]any{"entries": count, "truncated": truncated},
	}, nil
}

func (t *ListTreeTool) walk(dir string, depth int, b *strings.Builder, count *int) bool {
	if depth >= config.TreeMaxDepth {
		return false
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	indent := strings.Repeat("  ", depth)
	for _, entry := range entries {
		if *count >= config.TreeEntryCap {
			return true
		}
		name := entry.Name()
		if entry.IsDir() {
			if skippedDirs[name] {
				continue
			}
			fmt.Fprintf(b, "%s%s/\n", indent, name)
			*count++
			if t.walk(filepath.Join(dir, name), depth+1, b, count) {
				return true
			}
		} else {
			fmt.Fprintf(b, "%s%s\n", indent, name)
			*count++
		}
	}
	return false
}
