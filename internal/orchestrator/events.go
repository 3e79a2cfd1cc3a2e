package orchestrator

import "encoding/json"

// Event is one streamed record of agent progress. Each variant carries
// its own payload; Payload returns the JSON-ready map including the
// "type" discriminator.
type Event interface {
	Type() string
	Payload() map[string]any
}

// Serialize renders an event as the JSON object sent over SSE.
func Serialize(e Event) ([]byte, error) {
	return json.Marshal(e.Payload())
}

// ClassificationEvent reports the classified task.
type ClassificationEvent struct {
	TaskType   string  `json:"task_type"`
	Confidence float64 `json:"confidence"`
	Complexity string  `json:"complexity"`
	Reasoning  string  `json:"reasoning"`
}

func (e ClassificationEvent) Type() string { return "classification" }
func (e ClassificationEvent) Payload() map[string]any {
	return map[string]any{
		"type":       e.Type(),
		"task_type":  e.TaskType,
		"confidence": e.Confidence,
		"complexity": e.Complexity,
		"reasoning":  e.Reasoning,
	}
}

// IterationEvent marks the start of one loop iteration.
type IterationEvent struct {
	Iteration int `json:"iteration"`
	Max       int `json:"max"`
}

func (e IterationEvent) Type() string { return "iteration" }
func (e IterationEvent) Payload() map[string]any {
	return map[string]any{"type": e.Type(), "iteration": e.Iteration, "max": e.Max}
}

// IterationWarningEvent signals the iteration budget is nearly spent.
type IterationWarningEvent struct {
	Remaining int `json:"remaining"`
}

func (e IterationWarningEvent) Type() string { return "iteration_warning" }
func (e IterationWarningEvent) Payload() map[string]any {
	return map[string]any{"type": e.Type(), "remaining": e.Remaining}
}

// MessageEvent carries a human-readable progress line.
type MessageEvent struct {
	Content string `json:"content"`
}

func (e MessageEvent) Type() string { return "message" }
func (e MessageEvent) Payload() map[string]any {
	return map[string]any{"type": e.Type(), "content": e.Content}
}

// ToolStartEvent precedes a tool execution.
type ToolStartEvent struct {
	CallID    string         `json:"call_id"`
	ToolName  string         `json:"tool_name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

func (e ToolStartEvent) Type() string { return "tool_start" }
func (e ToolStartEvent) Payload() map[string]any {
	return map[string]any{
		"type":      e.Type(),
		"call_id":   e.CallID,
		"tool_name": e.ToolName,
		"arguments": e.Arguments,
	}
}

// ToolCompleteEvent follows its matching ToolStartEvent.
type ToolCompleteEvent struct {
	CallID     string `json:"call_id"`
	ToolName   string `json:"tool_name"`
	Success    bool   `json:"success"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

func (e ToolCompleteEvent) Type() string { return "tool_complete" }
func (e ToolCompleteEvent) Payload() map[string]any {
	out := map[string]any{
		"type":        e.Type(),
		"call_id":     e.CallID,
		"tool_name":   e.ToolName,
		"success":     e.Success,
		"duration_ms": e.DurationMS,
	}
	if e.Error != "" {
		out["error"] = e.Error
	}
	return out
}

// FileTreeUpdatedEvent tells the client the workspace tree changed.
type FileTreeUpdatedEvent struct {
	Path string `json:"path,omitempty"`
}

func (e FileTreeUpdatedEvent) Type() string { return "file_tree_updated" }
func (e FileTreeUpdatedEvent) Payload() map[string]any {
	out := map[string]any{"type": e.Type()}
	if e.Path != "" {
		out["path"] = e.Path
	}
	return out
}

// TokenEvent carries one chunk of streamed response text.
type TokenEvent struct {
	Content string `json:"content"`
}

func (e TokenEvent) Type() string { return "token" }
func (e TokenEvent) Payload() map[string]any {
	return map[string]any{"type": e.Type(), "content": e.Content}
}

// DoneEvent terminates a successful stream.
type DoneEvent struct {
	Provider             string   `json:"provider"`
	Model                string   `json:"model"`
	Iterations           int      `json:"iterations"`
	ToolCallsCount       int      `json:"tool_calls_count"`
	ToolsUsed            []string `json:"tools_used"`
	LoopDetected         bool     `json:"loop_detected,omitempty"`
	MaxIterationsReached bool     `json:"max_iterations_reached,omitempty"`
}

func (e DoneEvent) Type() string { return "done" }
func (e DoneEvent) Payload() map[string]any {
	out := map[string]any{
		"type":             e.Type(),
		"provider":         e.Provider,
		"model":            e.Model,
		"iterations":       e.Iterations,
		"tool_calls_count": e.ToolCallsCount,
		"tools_used":       e.ToolsUsed,
	}
	if e.LoopDetected {
		out["loop_detected"] = true
	}
	if e.MaxIterationsReached {
		out["max_iterations_reached"] = true
	}
	return out
}

// ErrorEvent terminates a failed stream.
type ErrorEvent struct {
	Message string `json:"message"`
}

func (e ErrorEvent) Type() string { return "error" }
func (e ErrorEvent) Payload() map[string]any {
	return map[string]any{"type": e.Type(), "message": e.Message}
}
