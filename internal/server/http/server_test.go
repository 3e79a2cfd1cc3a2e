package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quasar/internal/credentials"
	"quasar/internal/memory"
	"quasar/internal/orchestrator"
	"quasar/internal/ports"
	"quasar/internal/router"
	"quasar/internal/toolregistry"
)

// echoFactory returns models that answer with a fixed line. Classifier
// requests (non-negative temperature) fail so the keyword classifier
// decides the task type.
type echoFactory struct {
	reply string
}

func (f *echoFactory) GetModel(_ context.Context, provider, modelKey string, temperature float64) (ports.ChatModel, error) {
	if temperature >= 0 {
		return nil, errors.New("classifier backend unreachable")
	}
	return &echoModel{provider: provider, model: modelKey, reply: f.reply}, nil
}

type echoModel struct {
	provider string
	model    string
	reply    string
}

func (m *echoModel) Invoke(context.Context, []ports.Message) (*ports.CompletionResponse, error) {
	return &ports.CompletionResponse{Content: m.reply}, nil
}

func (m *echoModel) Stream(context.Context, []ports.Message) (<-chan ports.StreamChunk, error) {
	ch := make(chan ports.StreamChunk, 2)
	ch <- ports.StreamChunk{Delta: m.reply}
	ch <- ports.StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

func (m *echoModel) BindTools([]ports.ToolDefinition) ports.ChatModel { return m }
func (m *echoModel) Provider() string                                 { return m.provider }
func (m *echoModel) Model() string                                    { return m.model }

func newTestServer(t *testing.T, reply string) *Server {
	t.Helper()
	creds := credentials.NewStore(nil)
	rt := router.New(&echoFactory{reply: reply}, creds, nil)
	mem := memory.NewManager(memory.KeywordSummarizer{}, nil)
	workspace := t.TempDir()
	mem.SetWorkspace(workspace, "unknown")
	registry := toolregistry.NewWithBuiltins(workspace, nil)
	orch := orchestrator.New(rt, mem, registry, nil)
	return NewServer(orch, creds, mem, nil)
}

func doJSON(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, "hi")
	rec := doJSON(t, s, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Status    string                                `json:"status"`
		Providers map[string]credentials.ProviderStatus `json:"providers"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.Providers["ollama"].Available, "local provider is always available")
	assert.False(t, body.Providers["cerebras"].Available, "no credentials loaded")
}

func TestModelsList(t *testing.T) {
	s := newTestServer(t, "hi")
	rec := doJSON(t, s, http.MethodGet, "/models/list", "")

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Models []struct {
			Provider    string `json:"provider"`
			ModelKey    string `json:"model_key"`
			DisplayName string `json:"display_name"`
		} `json:"models"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.NotEmpty(t, body.Models)

	var sawCerebras, sawCloudflare bool
	for _, m := range body.Models {
		if m.Provider == "cerebras" && m.ModelKey == "zai-glm-4.7" {
			sawCerebras = true
			assert.Equal(t, "Cerebras / zai-glm-4.7", m.DisplayName)
		}
		if m.Provider == "cloudflare" {
			sawCloudflare = true
		}
	}
	assert.True(t, sawCerebras)
	assert.False(t, sawCloudflare, "disabled providers are not listed")
}

func TestClassifyEndpoint(t *testing.T) {
	s := newTestServer(t, "hi")
	rec := doJSON(t, s, http.MethodPost, "/classify", `{"query": "Fix the NameError on line 10"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		TaskType   string  `json:"task_type"`
		Confidence float64 `json:"confidence"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "bug_fixing", body.TaskType)
	assert.Greater(t, body.Confidence, 0.0)
}

func TestChatEndpoint(t *testing.T) {
	s := newTestServer(t, "Hello from the agent.")
	rec := doJSON(t, s, http.MethodPost, "/chat", `{"query": "hello"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body orchestrator.AgentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "Hello from the agent.", body.Response)
	assert.Equal(t, "ollama", body.Provider)
}

func TestChatRejectsMalformedJSON(t *testing.T) {
	s := newTestServer(t, "hi")
	rec := doJSON(t, s, http.MethodPost, "/chat", `{"query":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatStreamFramingAndOrdering(t *testing.T) {
	s := newTestServer(t, "streamed reply")
	rec := doJSON(t, s, http.MethodPost, "/chat/stream", `{"query": "hello"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	var types []string
	var tokens strings.Builder
	for _, block := range strings.Split(strings.TrimSpace(rec.Body.String()), "\n\n") {
		require.True(t, strings.HasPrefix(block, "data: "), "unexpected frame: %q", block)
		var payload map[string]any
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(block, "data: ")), &payload))
		typ, _ := payload["type"].(string)
		types = append(types, typ)
		if typ == "token" {
			tokens.WriteString(payload["content"].(string))
		}
	}

	require.NotEmpty(t, types)
	assert.Equal(t, "classification", types[0])
	assert.Equal(t, "done", types[len(types)-1])
	assert.Equal(t, "streamed reply", tokens.String())
}

func TestChatStreamErrorEvent(t *testing.T) {
	s := newTestServer(t, "hi")
	rec := doJSON(t, s, http.MethodPost, "/chat/stream", `{"query": "   "}`)

	require.Equal(t, http.StatusOK, rec.Code)
	body := strings.TrimSpace(rec.Body.String())
	require.True(t, strings.HasPrefix(body, "data: "))
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(body, "data: ")), &payload))
	assert.Equal(t, "error", payload["type"])
	assert.Equal(t, "empty query", payload["message"])
}

func TestTestModelEndpointBadProvider(t *testing.T) {
	s := newTestServer(t, "hi")
	rec := doJSON(t, s, http.MethodPost, "/test-model", `{"provider": "cerebras", "model_key": "zai-glm-4.7"}`)

	require.Equal(t, http.StatusBadGateway, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
}

func TestTestModelEndpointOllama(t *testing.T) {
	s := newTestServer(t, "ok")
	rec := doJSON(t, s, http.MethodPost, "/test-model", `{"provider": "ollama", "model_key": "glm-4.7:cloud"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "ok", body["response"])
}
