package provider

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry is a thread-safe set of providers. It indexes which providers
// serve each model type, in registration order, and tracks a default
// provider per model.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider    // name -> provider
	modelIdx  map[ModelType][]string // model -> provider names
	defaults  map[ModelType]string   // model -> default provider name
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		modelIdx:  make(map[ModelType][]string),
		defaults:  make(map[ModelType]string),
	}
}

// Register adds an initialized provider. The first provider registered for
// a model becomes its default. Registering the same name twice replaces the
// provider but keeps its position.
func (r *Registry) Register(p Provider) error {
	name := p.Info().Name
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.providers[name] = p
	for _, model := range p.SupportedModels() {
		if !containsName(r.modelIdx[model], name) {
			r.modelIdx[model] = append(r.modelIdx[model], name)
		}
		if _, ok := r.defaults[model]; !ok {
			r.defaults[model] = name
		}
	}
	return nil
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}
	return p, nil
}

// List returns info about all registered providers, sorted by name.
func (r *Registry) List() []ProviderInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(r.providers))
	for _, p := range r.providers {
		infos = append(infos, p.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// ProvidersFor returns the providers serving model, in registration order.
func (r *Registry) ProvidersFor(model ModelType) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.modelIdx[model]...)
}

// DefaultProvider returns the default provider name for model.
func (r *Registry) DefaultProvider(model ModelType) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.defaults[model]
	return name, ok
}

// SetDefault makes providerName the default for model.
func (r *Registry) SetDefault(model ModelType, providerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[providerName]
	if !ok {
		return &ErrProviderNotFound{Name: providerName}
	}
	if p.Fetcher(model) == nil {
		return &ErrModelNotSupported{Provider: providerName, Model: model}
	}
	r.defaults[model] = providerName
	return nil
}

// Fetch retrieves model data from params[ParamProvider], or from the
// model's default provider when no provider is named.
func (r *Registry) Fetch(ctx context.Context, model ModelType, params QueryParams) (*FetchResult, error) {
	name := params[ParamProvider]

	r.mu.RLock()
	if name == "" {
		name = r.defaults[model]
	}
	p, ok := r.providers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, &ErrProviderNotFound{Name: name}
	}
	fetcher := p.Fetcher(model)
	if fetcher == nil {
		return nil, &ErrModelNotSupported{Provider: name, Model: model}
	}
	if err := ValidateParams(params, fetcher.RequiredParams()); err != nil {
		return nil, err
	}

	result, err := fetcher.Fetch(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("provider %q fetch %s: %w", name, model, err)
	}
	result.Provider = name
	result.Model = model
	if result.FetchedAt.IsZero() {
		result.FetchedAt = time.Now()
	}
	return result, nil
}

// FetchWithFallback tries the named (or default) provider, then every other
// provider serving model in registration order. Missing parameters and
// cancellation are not retried.
func (r *Registry) FetchWithFallback(ctx context.Context, model ModelType, params QueryParams) (*FetchResult, error) {
	result, err := r.Fetch(ctx, model, params)
	if err == nil {
		return result, nil
	}
	var missing *ErrMissingParam
	if errors.As(err, &missing) || ctx.Err() != nil {
		return nil, err
	}

	tried := params[ParamProvider]
	if tried == "" {
		tried, _ = r.DefaultProvider(model)
	}
	errs := []error{err}
	for _, name := range r.ProvidersFor(model) {
		if name == tried {
			continue
		}
		next := make(QueryParams, len(params)+1)
		for k, v := range params {
			next[k] = v
		}
		next[ParamProvider] = name

		result, err = r.Fetch(ctx, model, next)
		if err == nil {
			return result, nil
		}
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("all providers failed for model %s: %w", model, errors.Join(errs...))
}

// FetchAs fetches model data and asserts it to T.
func FetchAs[T any](ctx context.Context, r *Registry, model ModelType, params QueryParams) (T, *FetchResult, error) {
	var zero T
	res, err := r.FetchWithFallback(ctx, model, params)
	if err != nil {
		return zero, nil, err
	}
	data, ok := res.Data.(T)
	if !ok {
		return zero, res, &ErrUnexpectedData{Model: model, Got: res.Data}
	}
	return data, res, nil
}
