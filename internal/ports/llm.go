package ports

import "context"

// ChatModel is the chat-completion capability produced by the provider
// registry. BindTools returns a handle whose Invoke may emit tool-call
// requests; models that cannot bind tools return themselves unchanged.
type ChatModel interface {
	Invoke(ctx context.Context, messages []Message) (*CompletionResponse, error)
	Stream(ctx context.Context, messages []Message) (<-chan StreamChunk, error)
	BindTools(tools []ToolDefinition) ChatModel
	Provider() string
	Model() string
}
