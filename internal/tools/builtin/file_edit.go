package builtin

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sergi/go-diff/diffmatchpatch"

	"quasar/internal/ports"
)

// PatchFileTool performs find-and-replace with n-th-occurrence
// semantics: occurrence=1 replaces the first match, occurrence=0
// replaces all.
type PatchFileTool struct {
	ws *Workspace
}

// NewPatchFileTool creates the patch_file tool.
func NewPatchFileTool(ws *Workspace) *PatchFileTool {
	return &PatchFileTool{ws: ws}
}

func (t *PatchFileTool) MutatesFiles() bool { return true }

func (t *PatchFileTool) Definition() ports.ToolDefinition {
	return ports.ToolDefinition{
		Name:        "patch_file",
		Description: "Replace text in a file. occurrence selects which match to replace (1 = first); occurrence=0 replaces all matches. Preferred over modify_file for existing files.",
		Parameters: ports.ParameterSchema{
			Type: "object",
			Properties: map[string]ports.Property{
				"path":       {Type: "string", Description: "File path relative to the workspace root"},
				"find":       {Type: "string", Description: "Exact text to find"},
				"replace":    {Type: "string", Description: "Replacement text"},
				"occurrence": {Type: "integer", Description: "Which occurrence to replace, 1-based; 0 replaces all"},
			},
			Required: []string{"path", "find", "replace"},
		},
	}
}

func (t *PatchFileTool) Execute(ctx context.Context, call ports.ToolCall) (*ports.ToolResult, error) {
	start := time.Now()
	path, err := resolveWorkspacePath(t.ws.Root(), call.StringArg("path"))
	if err != nil {
		return failure(call, err, start), nil
	}
	find := call.StringArg("find")
	if find == "" {
		return failure(call, fmt.Errorf("missing 'find'"), start), nil
	}
	replace, hasReplace := call.Arguments["replace"].(string)
	if !hasReplace {
		return failure(call, fmt.Errorf("missing 'replace'"), start), nil
	}
	occurrence, ok := call.IntArg("occurrence")
	if !ok {
		occurrence = 1
	}
	if occurrence < 0 {
		return failure(call, fmt.Errorf("occurrence must be >= 0"), start), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return failure(call, fmt.Errorf("file not found: %s", call.StringArg("path")), start), nil
		}
		return failure(call, err, start), nil
	}
	content := string(data)

	count := strings.Count(content, find)
	if count == 0 {
		return failure(call, fmt.Errorf("text not found in %s", call.StringArg("path")), start), nil
	}
	if occurrence > count {
		return failure(call, fmt.Errorf("only %d occurrence(s) found, requested occurrence %d", count, occurrence), start), nil
	}

	var patched string
	var replaced int
	if occurrence == 0 {
		patched = strings.ReplaceAll(content, find, replace)
		replaced = count
	} else {
		patched = replaceNth(content, find, replace, occurrence)
		replaced = 1
	}

	if err := os.WriteFile(path, []byte(patched), 0o644); err != nil {
		return failure(call, err, start), nil
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(content, patched, false)
	preview := dmp.DiffPrettyText(diffs)
	if len(preview) > 1000 {
		preview = preview[:1000]
	}

	return &ports.ToolResult{
		CallID:   call.ID,
		ToolName: call.Name,
		Content:  fmt.Sprintf("Patched %s: replaced %d occurrence(s)", call.StringArg("path"), replaced),
		Duration: time.Since(start),
		Metadata: map[string]any{
			"path":     call.StringArg("path"),
			"replaced": replaced,
			"diff":     preview,
		},
	}, nil
}

func replaceNth(s, find, replace string, n int) string {
	idx := 0
	for i := 1; ; i++ {
		pos := strings.Index(s[idx:], find)
		if pos < 0 {
			return s
		}
		if i == n {
			at := idx + pos
			return s[:at] + replace + s[at+len(find):]
		}
		idx += pos + len(find)
	}
}
