package builtin

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"quasar/internal/config"
	"quasar/internal/ports"
)

// SearchFilesTool finds files by name glob and optional content
// substring.
type SearchFilesTool struct {
	ws *Workspace
}

// NewSearchFilesTool creates the search_files tool.
func NewSearchFilesTool(ws *Workspace) *SearchFilesTool {
	return &SearchFilesTool{ws: ws}
}

func (t *SearchFilesTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "search_files",
		Description: "Find files by name pattern (glob, e.g. *.py) and optionally filter by a content substring.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"pattern": {Type: "string", Description: "Filename glob pattern"},
				"content": {Type: "string", Description: "Optional substring the file content must contain"},
				"path":    {Type: "string", Description: "Directory to search under, defaults to the workspace root"},
			},
			Required: []string{"pattern"},
		},
	}
}

func (t *SearchFilesTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	pattern := call.StringArg("pattern")
	if pattern == "" {
		return failure(call, fmt.Errorf("missing 'pattern'"), start), nil
	}
	arg := call.StringArg("path")
	if arg == "" {
		arg = "."
	}
	root, err := resolveWorkspacePath(t.ws.Root(), arg)
	if err != nil {
		return failure(call, err, start), nil
	}
	substring := call.StringArg("content")

	var matches []string
	truncated := false
	walkErr := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skippedDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if len(matches) >= config.ListFilesCap {
			truncated = true
			return filepath.SkipAll
		}
		ok, _ := filepath.Match(pattern, d.Name())
		if !ok {
			return nil
		}
		if substring != "" {
			data, readErr := os.ReadFile(path)
			if readErr != nil || !strings.Contains(string(data), substring) {
				return nil
			}
		}
		rel, _ := filepath.Rel(root, path)
		matches = append(matches, rel)
		return nil
	})
	if walkErr != nil {
		return failure(call, walkErr, start), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d match(es) for %s:\n", len(matches), pattern)
	for _, m := range matches {
		b.WriteString("  " + m + "\n")
	}
	if truncated {
		b.WriteString("  ... truncated\n")
	}
	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  b.String(),
		Duration: time.Since(start),
		Metadata: map[string]any{"matches": len(matches), "truncated": truncated},
	}, nil
}

// GrepSearchTool shells out to the system grep for content search,
// capped at 100 matching lines.
type GrepSearchTool struct {
	ws *Workspace
}

// NewGrepSearchTool creates the grep_search tool.
func NewGrepSearchTool(ws *Workspace) *GrepSearchTool {
	return &GrepSearchTool{ws: ws}
}

func (t *GrepSearchTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "grep_search",
		Description: "Search file contents with grep. Returns matching lines with file and line number, capped at 100 matches.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"query": {Type: "string", Description: "Pattern to search for (basic regex)"},
				"path":  {Type: "string", Description: "Directory to search under, defaults to the workspace root"},
			},
			Required: []string{"query"},
		},
	}
}

func (t *GrepSearchTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	query := call.StringArg("query")
	if query == "" {
		return failure(call, fmt.Errorf("missing 'query'"), start), nil
	}
	arg := call.StringArg("path")
	if arg == "" {
		arg = "."
	}
	root, err := resolveWorkspacePath(t.ws.Root(), arg)
	if err != nil {
		return failure(call, err, start), nil
	}

	cmd := exec.CommandContext(ctx, "grep", "-rn",
		"--exclude-dir=.git", "--exclude-dir=node_modules",
		"--exclude-dir=__pycache__", "--exclude-dir=.venv", "--exclude-dir=venv",
		"-m", fmt.Sprintf("%d", config.GrepMatchCap),
		query, ".")
	cmd.Dir = root
	out, runErr := cmd.Output()
	// Exit status 1 means no matches; anything else is a real failure.
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return &ports.ToolResult{
				CallID:   call.ID,
				ToolName: call.Name,
				Content:  fmt.Sprintf("No matches for %q", query),
				Duration: time.Since(start),
				Metadata: map[string]any{"matches": 0},
			}, nil
		}
		return failure(call, fmt.Errorf("grep failed: %w", runErr), start), nil
	}

	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	truncated := false
	if len(lines) > config.GrepMatchCap {
		lines = lines[:config.GrepMatchCap]
		truncated = true
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d matching line(s) for %q:\n", len(lines), query)
	b.WriteString(strings.Join(lines, "\n"))
	if truncated {
		b.WriteString("\n... truncated at 100 matches")
	}
	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  b.String(),
		Duration: time.Since(start),
		Metadata: map[string]any{"matches": len(lines), "truncated": truncated},
	}, nil
}
