// Package rpc builds the upstream API clients from configuration.
//
// Every client is an HTTPProvider (rate limited, with a per-call timeout)
// wrapped in routing.Retrying, so 429s and transient failures are retried
// the same way for every upstream. The Registry keeps the providers around
// for health reporting and shutdown.
//
// # Package Structure
//
//   - provider/ - HTTPProvider, monitoring, typed upstream errors
//   - routing/  - error classification and bounded retry
package rpc

import (
	"sort"
	"sync"

	"github.com/vietddude/coinwatch/internal/core/config"
	"github.com/vietddude/coinwatch/internal/infra/rpc/provider"
	"github.com/vietddude/coinwatch/internal/infra/rpc/routing"
)

// Registry creates and tracks upstream providers.
type Registry struct {
	retry routing.RetryConfig

	mu        sync.RWMutex
	providers map[string]provider.Provider
}

// NewRegistry creates a registry whose clients share one retry policy.
func NewRegistry(rc config.RetryConfig) *Registry {
	return &Registry{
		retry:     RetryConfigFrom(rc),
		providers: make(map[string]provider.Provider),
	}
}

// RetryConfigFrom converts the YAML retry section.
func RetryConfigFrom(rc config.RetryConfig) routing.RetryConfig {
	cfg := routing.DefaultRetryConfig
	if rc.MaxAttempts > 0 {
		cfg.MaxAttempts = rc.MaxAttempts
	}
	if rc.MaxRateLimitRetries > 0 {
		cfg.MaxRateLimitRetries = rc.MaxRateLimitRetries
	}
	if rc.InitialDelay > 0 {
		cfg.InitialDelay = rc.InitialDelay
	}
	if rc.MaxDelay > 0 {
		cfg.MaxDelay = rc.MaxDelay
	}
	return cfg
}

// New builds a retrying client for endpoint and registers it under name.
func (r *Registry) New(
	name, endpoint string,
	pc config.ProviderConfig,
	rc config.RetryConfig,
	headers map[string]string,
) *routing.Retrying {
	p := provider.NewHTTPProvider(provider.HTTPConfig{
		Name:              name,
		Endpoint:          endpoint,
		Headers:           headers,
		Timeout:           pc.Timeout,
		RateLimit:         pc.RateLimit,
		Burst:             pc.Burst,
		DefaultRetryAfter: rc.DefaultRetryAfter,
	})

	r.mu.Lock()
	r.providers[name] = p
	r.mu.Unlock()

	return routing.NewRetrying(p, r.retry)
}

// Names returns registered provider names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Health returns the health of every provider.
func (r *Registry) Health() map[string]provider.HealthStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]provider.HealthStatus, len(r.providers))
	for n, p := range r.providers {
		out[n] = p.GetHealth()
	}
	return out
}

// Close releases idle connections of every provider.
func (r *Registry) Close() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.providers {
		_ = p.Close()
	}
}
