package ai

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Router selects a provider by task type. A failed completion is returned to the caller
// unchanged; the router never retries on another provider.
type Router struct {
	providers map[string]Provider
	order     []string // registration order; the first entry is the default
	routes    map[TaskType]route
	mu        sync.RWMutex
}

type route struct {
	provider string
	model    string
}

// NewRouter creates a new AI router.
func NewRouter() *Router {
	return &Router{
		providers: make(map[string]Provider),
		routes:    make(map[TaskType]route),
	}
}

// Register adds a provider to the router.
func (r *Router) Register(name string, provider Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = provider
}

// Route sends every request of the given task to the named provider. An empty model keeps
// whatever the request (or the provider default) specifies.
func (r *Router) Route(task TaskType, providerName, model string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[providerName]; !ok {
		return fmt.Errorf("route %s: provider %q not registered", task, providerName)
	}
	r.routes[task] = route{provider: providerName, model: model}
	return nil
}

// Complete sends the request to the provider mapped to its task, or the default provider.
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	r.mu.RLock()
	name, model := r.resolve(req.Task)
	provider := r.providers[name]
	r.mu.RUnlock()

	if provider == nil {
		return CompletionResponse{}, fmt.Errorf("no AI provider registered for task %s", req.Task)
	}
	if req.Model == "" {
		req.Model = model
	}

	resp, err := provider.Complete(ctx, req)
	if err != nil {
		slog.Warn("AI provider failed",
			"provider", name,
			"task", req.Task.String(),
			"error", err,
		)
		return CompletionResponse{}, fmt.Errorf("%s: %w", name, err)
	}

	slog.Debug("AI request completed",
		"provider", name,
		"task", req.Task.String(),
		"model", resp.Model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
	)
	return resp, nil
}

func (r *Router) resolve(task TaskType) (string, string) {
	if rt, ok := r.routes[task]; ok {
		return rt.provider, rt.model
	}
	if len(r.order) == 0 {
		return "", ""
	}
	return r.order[0], ""
}

// DefaultProvider returns the provider that serves tasks without a route, or "".
func (r *Router) DefaultProvider() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.order) == 0 {
		return ""
	}
	return r.order[0]
}

// HasProvider returns true if at least one provider is registered.
func (r *Router) HasProvider() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers) > 0
}

// HealthCheck checks every registered provider and reports the first failure.
func (r *Router) HealthCheck(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		if err := r.providers[name].HealthCheck(ctx); err != nil {
			return fmt.Errorf("provider %s: %w", name, err)
		}
	}
	return nil
}
