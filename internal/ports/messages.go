package ports

import "time"

// Message roles used across the completion API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single turn in a model conversation.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Timestamp  time.Time  `json:"timestamp,omitempty"`
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, Timestamp: time.Now()}
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content, Timestamp: time.Now()}
}

// ToolResultMessage builds the tool-role message carrying a tool result
// back to the model.
func ToolResultMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID, Timestamp: time.Now()}
}

// CompletionRequest is the provider-agnostic chat completion request.
type CompletionRequest struct {
	Messages    []Message
	Tools       []ToolDefinition
	Temperature float64
	MaxTokens   int
}

// CompletionResponse is a full (non-streaming) model response.
type CompletionResponse struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	TokensUsed   int
}

// HasToolCalls reports whether the model requested tool execution.
func (r *CompletionResponse) HasToolCalls() bool {
	return r != nil && len(r.ToolCalls) > 0
}

// StreamChunk is one increment of a streaming response. Exactly one of
// Delta or Err is meaningful; Done marks the end of the stream.
type StreamChunk struct {
	Delta string
	Done  bool
	Err   error
}
