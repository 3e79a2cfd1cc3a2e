// Package toolregistry owns the catalogue of named tools and the
// per-task tool selection.
package toolregistry

import (
	"fmt"
	"sort"
	"sync"

	"quasar/internal/logging"
	"quasar/internal/ports"
	"quasar/internal/tools/builtin"
)

// Registry maps tool names to executors. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]ports.ToolExecutor
	ws    *builtin.Workspace
}

var _ ports.ToolRegistry = (*Registry)(nil)

// New creates an empty registry.
func New() *Registry {
	return &Registry{tools: make(map[string]ports.ToolExecutor)}
}

// NewWithBuiltins creates a registry populated with the full workspace
// tool catalogue. The builtins share one mutable workspace root, so
// SetWorkspace repoints all of them at once.
func NewWithBuiltins(workspace string, logger logging.Logger) *Registry {
	r := New()
	r.ws = builtin.NewWorkspace(workspace)
	r.registerBuiltins(logging.OrNop(logger))
	return r
}

// SetWorkspace repoints the sandbox root every builtin tool resolves
// paths against.
func (r *Registry) SetWorkspace(path string) {
	if r.ws != nil {
		r.ws.Set(path)
	}
}

// WorkspaceRoot returns the current sandbox root, empty for registries
// built without builtins.
func (r *Registry) WorkspaceRoot() string {
	if r.ws == nil {
		return ""
	}
	return r.ws.Root()
}

func (r *Registry) registerBuiltins(logger logging.Logger) {
	session := builtin.NewTerminalSession()

	all := []ports.ToolExecutor{
		builtin.NewReadFileTool(r.ws),
		builtin.NewReadFileChunkTool(r.ws),
		builtin.NewCreateFileTool(r.ws),
		builtin.NewModifyFileTool(r.ws),
		builtin.NewPatchFileTool(r.ws),
		builtin.NewDeleteFileTool(r.ws),
		builtin.NewMoveFileTool(r.ws),
		builtin.NewListFilesTool(r.ws),
		builtin.NewListTreeTool(r.ws),
		builtin.NewSearchFilesTool(r.ws),
		builtin.NewGrepSearchTool(r.ws),
		builtin.NewRunTerminalCommandTool(r.ws, session),
		builtin.NewRunScriptFileTool(r.ws, session),
		builtin.NewRunPackageCommandTool(r.ws, session),
		builtin.NewSuggestCommandTool(),
		builtin.NewGetTerminalOutputTool(session),
		builtin.NewClearTerminalBufferTool(session),
		builtin.NewCheckCommandAvailableTool(),
		builtin.NewWebSearchTool(),
		builtin.NewReadURLTool(),
		builtin.NewBrowseInteractiveTool(),
	}
	for _, tool := range all {
		if err := r.Register(tool); err != nil {
			logger.Warn("Tool registration failed: %v", err)
		}
	}
	logger.Info("Registered %d builtin tools", len(all))
}

// Register adds a tool, rejecting duplicate names.
func (r *Registry) Register(tool ports.ToolExecutor) error {
	name := tool.Definition().Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already registered: %s", name)
	}
	r.tools[name] = tool
	return nil
}

// Get resolves a tool by name.
func (r *Registry) Get(name string) (ports.ToolExecutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return tool, nil
}

// List returns every tool definition, sorted by name.
func (r *Registry) List() []ports.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ports.ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		out = append(out, tool.Definition())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Names returns every registered tool name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
