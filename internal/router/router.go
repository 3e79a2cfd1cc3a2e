// Package router maps task types to fallback chains and resolves
// concrete chat handles, rotating credentials and advancing the chain
// on failure.
package router

import (
	"context"
	"fmt"

	"quasar/internal/config"
	"quasar/internal/credentials"
	"quasar/internal/logging"
	"quasar/internal/ports"
	"quasar/internal/qerrors"
)

// ModelFactory produces chat handles. Satisfied by llm.Registry;
// replaced by a fake in tests.
type ModelFactory interface {
	GetModel(ctx context.Context, provider, modelKey string, temperature float64) (ports.ChatModel, error)
}

// Router resolves (task, fallback level) to concrete models.
type Router struct {
	factory ModelFactory
	creds   *credentials.Store
	logger  logging.Logger
}

// New creates a router.
func New(factory ModelFactory, creds *credentials.Store, logger logging.Logger) *Router {
	return &Router{factory: factory, creds: creds, logger: logging.OrNop(logger)}
}

// ChainFor returns the fallback chain for a task type.
func (r *Router) ChainFor(task config.TaskType) []config.ModelRef {
	return config.ChainFor(task)
}

// GetModelForTask returns a chat handle for the task, starting at the
// given fallback level and skipping unavailable providers. The returned
// level is the chain position actually used.
func (r *Router) GetModelForTask(ctx context.Context, task config.TaskType, level int) (ports.ChatModel, int, error) {
	chain := config.ChainFor(task)
	for i := level; i < len(chain); i++ {
		ref := chain[i]
		if !config.ProviderEnabled(ref.Provider) {
			continue
		}
		if !credentials.ResolveAvailable(ctx, r.creds, ref.Provider) {
			r.logger.Debug("Skipping %s at level %d: no credentials", ref.Provider, i)
			continue
		}
		model, err := r.factory.GetModel(ctx, ref.Provider, ref.ModelKey, -1)
		if err != nil {
			r.logger.Warn("Model construction failed for %s/%s: %v", ref.Provider, ref.ModelKey, err)
			continue
		}
		return model, i, nil
	}
	return nil, len(chain), qerrors.Permanent("router", fmt.Errorf("no available model for task %s", task))
}

// GetClassifierModel returns a low-temperature handle from the
// classifier chain, or an error when no classifier provider is
// reachable.
func (r *Router) GetClassifierModel(ctx context.Context) (ports.ChatModel, error) {
	for _, ref := range config.ClassifierChain {
		if !config.ProviderEnabled(ref.Provider) {
			continue
		}
		if !credentials.ResolveAvailable(ctx, r.creds, ref.Provider) {
			continue
		}
		model, err := r.factory.GetModel(ctx, ref.Provider, ref.ModelKey, 0.3)
		if err != nil {
			continue
		}
		return model, nil
	}
	return nil, qerrors.Transient("router", fmt.Errorf("no classifier model available"))
}

// GetPinnedModel returns a handle for an explicit "provider/model_key"
// selection. Only credential rotation applies to pinned models; the
// caller must not fall back across providers.
func (r *Router) GetPinnedModel(ctx context.Context, provider, modelKey string) (ports.ChatModel, error) {
	if !config.ProviderEnabled(provider) {
		return nil, qerrors.Permanent("router", fmt.Errorf("provider not enabled: %s", provider))
	}
	if !credentials.ResolveAvailable(ctx, r.creds, provider) {
		return nil, qerrors.Permanent("router", fmt.Errorf("no credentials for pinned provider %s", provider))
	}
	return r.factory.GetModel(ctx, provider, modelKey, -1)
}

// RotateCredential rotates the provider's credential after a rate-limit
// signal. Returns false when the provider has no active credential
// left.
func (r *Router) RotateCredential(ctx context.Context, provider string) bool {
	return credentials.ResolveRotate(ctx, r.creds, provider)
}

// InvokeWithFallback runs a non-tool completion, walking the task's
// chain on failure. Rate-limited providers get one credential rotation
// before the chain advances. Returns the response plus the provider and
// model that actually served it.
func (r *Router) InvokeWithFallback(ctx context.Context, task config.TaskType, messages []ports.Message) (*ports.CompletionResponse, string, string, error) {
	chain := config.ChainFor(task)
	var lastErr error
	for level := 0; level < len(chain); {
		model, used, err := r.GetModelForTask(ctx, task, level)
		if err != nil {
			if lastErr != nil {
				return nil, "", "", lastErr
			}
			return nil, "", "", err
		}
		resp, err := model.Invoke(ctx, messages)
		if err == nil {
			return resp, model.Provider(), model.Model(), nil
		}
		lastErr = err
		if qerrors.IsRateLimit(err) && r.RotateCredential(ctx, model.Provider()) {
			// Retry the same level with the next credential.
			level = used
			continue
		}
		r.logger.Warn("Fallback advancing past %s/%s: %v", model.Provider(), model.Model(), err)
		level = used + 1
	}
	return nil, "", "", qerrors.Transient("router", fmt.Errorf("all models failed for task %s: %w", task, lastErr))
}
