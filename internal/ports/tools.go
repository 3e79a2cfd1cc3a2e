package ports

import (
	"context"
	"time"
)

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// StringArg extracts a string argument, returning "" when absent or of
// the wrong type.
func (c ToolCall) StringArg(key string) string {
	if v, ok := c.Arguments[key].(string); ok {
		return v
	}
	return ""
}

// IntArg extracts an integer argument. JSON numbers decode as float64,
// so both forms are accepted.
func (c ToolCall) IntArg(key string) (int, bool) {
	switch v := c.Arguments[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	}
	return 0, false
}

// BoolArg extracts a boolean argument with a default.
func (c ToolCall) BoolArg(key string, def bool) bool {
	if v, ok := c.Arguments[key].(bool); ok {
		return v
	}
	return def
}

// ToolResult is the outcome of a single tool execution.
type ToolResult struct {
	CallID   string         `json:"call_id"`
	ToolName string         `json:"tool_name"`
	Content  string         `json:"content"`
	Error    error          `json:"-"`
	Duration time.Duration  `json:"duration"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Success reports whether the tool completed without error.
func (r *ToolResult) Success() bool {
	return r != nil && r.Error == nil
}

// Property describes one parameter in a tool schema.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Enum        []string `json:"enum,omitempty"`
}

// ParameterSchema is a JSON-schema-shaped description of tool arguments.
type ParameterSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// ToolDefinition is the model-facing description of a tool.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  ParameterSchema `json:"parameters"`
}

// ToolExecutor is implemented by every runnable tool.
type ToolExecutor interface {
	Execute(ctx context.Context, call ToolCall) (*ToolResult, error)
	Definition() ToolDefinition
}

// FileMutator is implemented by tools whose successful execution changes
// the workspace file tree. The orchestrator uses it to decide when to
// emit a file-tree refresh event.
type FileMutator interface {
	MutatesFiles() bool
}

// ToolRegistry resolves tool names to executors.
type ToolRegistry interface {
	Register(tool ToolExecutor) error
	Get(name string) (ToolExecutor, error)
	List() []ToolDefinition
	Names() []string
}
