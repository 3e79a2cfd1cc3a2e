package router

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quasar/internal/config"
	"quasar/internal/credentials"
	"quasar/internal/ports"
)

// stubModel returns canned Invoke outcomes in order.
type stubModel struct {
	provider string
	model    string
	mu       *sync.Mutex
	outcomes *[]error
}

func (m *stubModel) Invoke(context.Context, []ports.Message) (*ports.CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(*m.outcomes) == 0 {
		return &ports.CompletionResponse{Content: "ok from " + m.provider}, nil
	}
	err := (*m.outcomes)[0]
	*m.outcomes = (*m.outcomes)[1:]
	if err != nil {
		return nil, err
	}
	return &ports.CompletionResponse{Content: "ok from " + m.provider}, nil
}

func (m *stubModel) Stream(context.Context, []ports.Message) (<-chan ports.StreamChunk, error) {
	ch := make(chan ports.StreamChunk)
	close(ch)
	return ch, nil
}

func (m *stubModel) BindTools([]ports.ToolDefinition) ports.ChatModel { return m }
func (m *stubModel) Provider() string                                 { return m.provider }
func (m *stubModel) Model() string                                    { return m.model }

// stubFactory shares one outcome queue per provider across handles.
type stubFactory struct {
	mu       sync.Mutex
	outcomes map[string]*[]error
}

func newStubFactory() *stubFactory {
	return &stubFactory{outcomes: make(map[string]*[]error)}
}

func (f *stubFactory) enqueue(provider string, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.outcomes[provider]
	if !ok {
		q = &[]error{}
		f.outcomes[provider] = q
	}
	*q = append(*q, errs...)
}

func (f *stubFactory) GetModel(_ context.Context, provider, modelKey string, _ float64) (ports.ChatModel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.outcomes[provider]
	if !ok {
		q = &[]error{}
		f.outcomes[provider] = q
	}
	return &stubModel{provider: provider, model: modelKey, mu: &f.mu, outcomes: q}, nil
}

func TestGetModelForTaskSkipsUnavailableProviders(t *testing.T) {
	// No cerebras credentials: the chat chain starts at ollama instead.
	r := New(newStubFactory(), credentials.NewStore(nil), nil)

	model, level, err := r.GetModelForTask(context.Background(), config.TaskChat, 0)
	require.NoError(t, err)
	assert.Equal(t, "ollama", model.Provider())
	assert.Equal(t, 1, level, "level reflects the chain position actually used")
}

func TestGetModelForTaskPrimaryWhenAvailable(t *testing.T) {
	creds := credentials.NewStore(nil)
	creds.Add(config.ProviderCerebras, "k")
	r := New(newStubFactory(), creds, nil)

	model, level, err := r.GetModelForTask(context.Background(), config.TaskChat, 0)
	require.NoError(t, err)
	assert.Equal(t, "cerebras", model.Provider())
	assert.Equal(t, "zai-glm-4.7", model.Model())
	assert.Equal(t, 0, level)
}

func TestGetModelForTaskStartLevel(t *testing.T) {
	creds := credentials.NewStore(nil)
	creds.Add(config.ProviderCerebras, "k")
	creds.Add(config.ProviderGroq, "k")
	r := New(newStubFactory(), creds, nil)

	model, level, err := r.GetModelForTask(context.Background(), config.TaskChat, 2)
	require.NoError(t, err)
	assert.Equal(t, "groq", model.Provider())
	assert.Equal(t, 2, level)
}

func TestGetPinnedModelRequiresCredentials(t *testing.T) {
	r := New(newStubFactory(), credentials.NewStore(nil), nil)

	_, err := r.GetPinnedModel(context.Background(), config.ProviderCerebras, "zai-glm-4.7")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no credentials")

	_, err = r.GetPinnedModel(context.Background(), config.ProviderCloudflare, "any")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not enabled")

	model, err := r.GetPinnedModel(context.Background(), config.ProviderOllama, "glm-4.7:cloud")
	require.NoError(t, err)
	assert.Equal(t, "ollama", model.Provider())
}

func TestGetClassifierModelFallsThroughChain(t *testing.T) {
	creds := credentials.NewStore(nil)
	creds.Add(config.ProviderGroq, "k")
	r := New(newStubFactory(), creds, nil)

	model, err := r.GetClassifierModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "groq", model.Provider())
	assert.Equal(t, "openai/gpt-oss-120b", model.Model())
}

func TestInvokeWithFallbackRotatesOnRateLimit(t *testing.T) {
	creds := credentials.NewStore(nil)
	creds.Add(config.ProviderCerebras, "k1")
	creds.Add(config.ProviderCerebras, "k2")
	factory := newStubFactory()
	factory.enqueue(config.ProviderCerebras, errors.New("429 rate limit"), nil)
	r := New(factory, creds, nil)

	resp, provider, _, err := r.InvokeWithFallback(context.Background(), config.TaskChat, nil)
	require.NoError(t, err)
	assert.Equal(t, "cerebras", provider, "rotation retries the same chain level")
	assert.Equal(t, "ok from cerebras", resp.Content)
	assert.Equal(t, 1, creds.Status()[config.ProviderCerebras].ActiveKeys)
}

func TestInvokeWithFallbackAdvancesOnOtherErrors(t *testing.T) {
	creds := credentials.NewStore(nil)
	creds.Add(config.ProviderCerebras, "k")
	factory := newStubFactory()
	factory.enqueue(config.ProviderCerebras, errors.New("500 internal server error"))
	r := New(factory, creds, nil)

	resp, provider, _, err := r.InvokeWithFallback(context.Background(), config.TaskChat, nil)
	require.NoError(t, err)
	assert.Equal(t, "ollama", provider)
	assert.Equal(t, "ok from ollama", resp.Content)
	assert.Equal(t, 1, creds.Status()[config.ProviderCerebras].ActiveKeys,
		"non-rate-limit failures keep the credential active")
}

func TestInvokeWithFallbackExhaustsChain(t *testing.T) {
	creds := credentials.NewStore(nil)
	creds.Add(config.ProviderCerebras, "k")
	creds.Add(config.ProviderGroq, "k")
	factory := newStubFactory()
	boom := errors.New("connection refused")
	factory.enqueue(config.ProviderCerebras, boom)
	factory.enqueue(config.ProviderOllama, boom)
	factory.enqueue(config.ProviderGroq, boom)
	r := New(factory, creds, nil)

	_, _, _, err := r.InvokeWithFallback(context.Background(), config.TaskChat, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all models failed")
}

func TestChainForCoversEveryTaskType(t *testing.T) {
	for _, task := range config.AllTaskTypes {
		chain := config.ChainFor(task)
		require.NotEmpty(t, chain, "task %s has no chain", task)
		for _, ref := range chain {
			p := config.ProviderFor(ref.Provider)
			require.NotNil(t, p, "chain for %s names unknown provider %s", task, ref.Provider)
			if ref.Provider != config.ProviderCloudflare {
				_, ok := p.Models[ref.ModelKey]
				assert.True(t, ok, "chain for %s names unknown model %s/%s", task, ref.Provider, ref.ModelKey)
			}
		}
	}
}
