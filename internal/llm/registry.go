// Package llm produces chat-capability handles for the configured
// providers. All four providers speak the OpenAI chat-completions
// dialect; the registry hides the differences in base URL and
// authentication.
package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"quasar/internal/config"
	"quasar/internal/credentials"
	"quasar/internal/logging"
	"quasar/internal/ports"
	"quasar/internal/qerrors"
)

// Registry constructs ChatModels on demand. It holds no per-model
// state; handles are cheap and per-request.
type Registry struct {
	creds  *credentials.Store
	logger logging.Logger
}

// NewRegistry creates a provider registry backed by the credential
// store.
func NewRegistry(creds *credentials.Store, logger logging.Logger) *Registry {
	return &Registry{creds: creds, logger: logging.OrNop(logger)}
}

// GetModel returns a chat handle for (provider, modelKey) or an error
// when the provider is disabled, the model is unknown, or no credential
// is active. The context carries any request-scoped credential
// override.
func (r *Registry) GetModel(ctx context.Context, provider, modelKey string, temperature float64) (ports.ChatModel, error) {
	pcfg := config.ProviderFor(provider)
	if pcfg == nil || !pcfg.Enabled {
		return nil, qerrors.Permanent("llm", fmt.Errorf("provider not enabled: %s", provider))
	}
	mcfg, ok := pcfg.Models[modelKey]
	if !ok {
		return nil, qerrors.Permanent("llm", fmt.Errorf("unknown model %q for provider %s", modelKey, provider))
	}

	key, ok := credentials.Resolve(ctx, r.creds, provider)
	if !ok {
		return nil, qerrors.Transient("llm", fmt.Errorf("no active credential for %s", provider))
	}

	client, err := r.buildClient(provider, key)
	if err != nil {
		return nil, err
	}

	if temperature < 0 {
		temperature = mcfg.Temperature
	}
	return &ChatModel{
		client:      client,
		provider:    provider,
		modelName:   mcfg.Name,
		temperature: temperature,
		maxTokens:   mcfg.MaxTokens,
		logger:      r.logger,
	}, nil
}

func (r *Registry) buildClient(provider, key string) (*openai.Client, error) {
	switch provider {
	case config.ProviderOllama:
		cfg := openai.DefaultConfig("ollama")
		cfg.BaseURL = strings.TrimRight(config.OllamaBaseURL(), "/") + "/v1"
		return openai.NewClientWithConfig(cfg), nil
	case config.ProviderCloudflare:
		// Credential format is "account_id:api_token"; the account id
		// is part of the endpoint URL.
		account, token, found := strings.Cut(key, ":")
		if !found {
			return nil, qerrors.Permanent("llm", fmt.Errorf("malformed cloudflare credential"))
		}
		cfg := openai.DefaultConfig(token)
		cfg.BaseURL = fmt.Sprintf("https://api.cloudflare.com/client/v4/accounts/%s/ai/v1", account)
		return openai.NewClientWithConfig(cfg), nil
	default:
		pcfg := config.ProviderFor(provider)
		cfg := openai.DefaultConfig(key)
		cfg.BaseURL = pcfg.BaseURL
		return openai.NewClientWithConfig(cfg), nil
	}
}
