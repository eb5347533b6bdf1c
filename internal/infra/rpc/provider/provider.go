// Package provider implements the HTTP transport shared by upstream API clients.
//
// This package contains:
//   - Provider interface: core abstraction for an upstream endpoint
//   - HTTPProvider: JSON-RPC and REST over HTTP with rate limiting
//   - ProviderMonitor: latency and throttle tracking
//   - typed errors for rate limits, HTTP statuses and JSON-RPC errors
package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"time"
)

// Operation represents a call to execute against a provider.
type Operation struct {
	// Name is the JSON-RPC method, or a label for REST calls.
	Name string

	// Params for JSON-RPC calls. Should be []any.
	Params any

	// IsREST indicates a REST call instead of JSON-RPC.
	IsREST bool

	// RESTMethod specifies the HTTP method for REST calls. Defaults to GET.
	RESTMethod string

	// Path is appended to the provider endpoint for REST calls.
	Path string

	// Query is encoded onto the REST URL.
	Query url.Values

	// Body is JSON-encoded for REST calls when non-nil.
	Body any

	// Headers are added to this request only.
	Headers map[string]string
}

// Executor runs operations. HTTPProvider and the retrying wrapper both satisfy it.
type Executor interface {
	Execute(ctx context.Context, op Operation) (json.RawMessage, error)
}

// Provider defines the interface for an upstream endpoint.
type Provider interface {
	Executor

	// GetName returns provider identifier (e.g., "alchemy", "dexscreener")
	GetName() string

	// GetHealth returns current health metrics
	GetHealth() HealthStatus

	// Close cleans up resources
	Close() error
}

// HealthStatus represents the health state of a provider.
type HealthStatus struct {
	Available     bool          `json:"available"`
	Latency       time.Duration `json:"latency"`
	ErrorRate     float64       `json:"error_rate"`
	LastSuccessAt time.Time     `json:"last_success_at"`
	LastFailureAt time.Time     `json:"last_failure_at"`
	MonitorStats  *MonitorStats `json:"monitor_stats,omitempty"`
}

// IsEmpty reports whether a result carries no data: absent, null, {} or [].
func IsEmpty(raw json.RawMessage) bool {
	b := bytes.TrimSpace(raw)
	switch string(b) {
	case "", "null", "{}", "[]":
		return true
	}
	return false
}
