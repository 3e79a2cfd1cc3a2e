package llm

import (
	"context"
	"encoding/json"
	"io"

	"github.com/kaptinlin/jsonrepair"
	openai "github.com/sashabaranov/go-openai"

	"quasar/internal/logging"
	"quasar/internal/ports"
	"quasar/internal/qerrors"
)

// ChatModel is an OpenAI-compatible chat handle, optionally bound to a
// tool catalogue. Handles are immutable; BindTools returns a copy.
type ChatModel struct {
	client      *openai.Client
	provider    string
	modelName   string
	temperature float64
	maxTokens   int
	tools       []ports.ToolDefinition
	logger      logging.Logger
}

var _ ports.ChatModel = (*ChatModel)(nil)

// Provider returns the provider name this handle talks to.
func (m *ChatModel) Provider() string { return m.provider }

// Model returns the concrete model name.
func (m *ChatModel) Model() string { return m.modelName }

// BindTools returns a copy of the handle that advertises the tool
// catalogue on every invocation.
func (m *ChatModel) BindTools(tools []ports.ToolDefinition) ports.ChatModel {
	bound := *m
	bound.tools = tools
	return &bound
}

// Invoke performs a single non-streaming completion.
func (m *ChatModel) Invoke(ctx context.Context, messages []ports.Message) (*ports.CompletionResponse, error) {
	resp, err := m.client.CreateChatCompletion(ctx, m.buildRequest(messages, false))
	if err != nil {
		return nil, classifyProviderError(err)
	}
	if len(resp.Choices) == 0 {
		return &ports.CompletionResponse{}, nil
	}
	choice := resp.Choices[0]
	out := &ports.CompletionResponse{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
		TokensUsed:   resp.Usage.TotalTokens,
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, ports.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: parseArguments(tc.Function.Arguments),
		})
	}
	return out, nil
}

// Stream performs a streaming completion, delivering content deltas on
// the returned channel. The channel is closed after the Done or error
// chunk.
func (m *ChatModel) Stream(ctx context.Context, messages []ports.Message) (<-chan ports.StreamChunk, error) {
	stream, err := m.client.CreateChatCompletionStream(ctx, m.buildRequest(messages, true))
	if err != nil {
		return nil, classifyProviderError(err)
	}

	out := make(chan ports.StreamChunk)
	go func() {
		defer close(out)
		defer stream.Close()
		for {
			resp, err := stream.Recv()
			if err != nil {
				if err == io.EOF {
					out <- ports.StreamChunk{Done: true}
					return
				}
				out <- ports.StreamChunk{Err: classifyProviderError(err), Done: true}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			if delta := resp.Choices[0].Delta.Content; delta != "" {
				select {
				case out <- ports.StreamChunk{Delta: delta}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (m *ChatModel) buildRequest(messages []ports.Message, stream bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       m.modelName,
		Messages:    toOpenAIMessages(messages),
		Temperature: float32(m.temperature),
		MaxTokens:   m.maxTokens,
		Stream:      stream,
	}
	if len(m.tools) > 0 {
		req.Tools = toOpenAITools(m.tools)
	}
	return req
}

func toOpenAIMessages(messages []ports.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		oai := openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
		if msg.Role == ports.RoleTool {
			oai.ToolCallID = msg.ToolCallID
		}
		for _, tc := range msg.ToolCalls {
			args, _ := json.Marshal(tc.Arguments)
			oai.ToolCalls = append(oai.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: string(args),
				},
			})
		}
		out = append(out, oai)
	}
	return out
}

func toOpenAITools(tools []ports.ToolDefinition) []openai.Tool {
	out := make([]openai.Tool, len(tools))
	for i, t := range tools {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		}
	}
	return out
}

// parseArguments decodes tool-call arguments, repairing slightly
// malformed JSON before giving up. Models occasionally emit trailing
// commas or unquoted keys in argument payloads.
func parseArguments(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err == nil {
		return args
	}
	if repaired, err := jsonrepair.JSONRepair(raw); err == nil {
		if err := json.Unmarshal([]byte(repaired), &args); err == nil {
			return args
		}
	}
	return map[string]any{"_raw": raw}
}

func classifyProviderError(err error) error {
	if err == nil {
		return nil
	}
	if qerrors.IsRateLimit(err) {
		return qerrors.Transient("model invocation", err)
	}
	switch qerrors.HTTPStatusCode(err) {
	case 500, 502, 503, 504:
		return qerrors.Transient("model invocation", err)
	case 401, 403, 400, 404:
		return qerrors.Permanent("model invocation", err)
	}
	return qerrors.Transient("model invocation", err)
}
