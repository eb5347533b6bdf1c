package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/vietddude/coinwatch/internal/alerting/metrics"
)

const defaultRetryAfter = 10 * time.Second

// HTTPConfig configures an HTTPProvider.
type HTTPConfig struct {
	Name     string
	Endpoint string
	Headers  map[string]string
	Timeout  time.Duration

	// RateLimit is requests per second; 0 disables limiting.
	RateLimit float64
	Burst     int

	// DefaultRetryAfter is used when a 429 carries no usable Retry-After.
	DefaultRetryAfter time.Duration
}

// HTTPProvider implements Provider for JSON-RPC and REST over HTTP.
type HTTPProvider struct {
	name       string
	endpoint   string
	headers    map[string]string
	timeout    time.Duration
	retryAfter time.Duration
	limiter    *rate.Limiter
	httpClient *http.Client

	mu           sync.RWMutex
	health       HealthStatus
	totalLatency time.Duration
	successCount int
	failureCount int
	requestCount int

	Monitor *ProviderMonitor
}

// NewHTTPProvider creates a new HTTP provider.
func NewHTTPProvider(cfg HTTPConfig) *HTTPProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.DefaultRetryAfter == 0 {
		cfg.DefaultRetryAfter = defaultRetryAfter
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &HTTPProvider{
		name:       cfg.Name,
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		headers:    cfg.Headers,
		timeout:    cfg.Timeout,
		retryAfter: cfg.DefaultRetryAfter,
		limiter:    limiter,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		health: HealthStatus{
			Available:     true,
			LastSuccessAt: time.Now(),
		},
		Monitor: NewProviderMonitor(),
	}
}

// Execute runs a JSON-RPC or REST operation.
func (p *HTTPProvider) Execute(ctx context.Context, op Operation) (json.RawMessage, error) {
	if op.IsREST {
		return p.rest(ctx, op)
	}
	params, _ := op.Params.([]any)
	return p.Call(ctx, op.Name, params)
}

// Call makes a single JSON-RPC 2.0 call and returns the raw result.
func (p *HTTPProvider) Call(ctx context.Context, method string, params []any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	reqBody := map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
		"id":      1,
	}

	body, err := p.do(ctx, http.MethodPost, p.endpoint, reqBody, nil)
	if err != nil {
		return nil, err
	}

	var rpcResp struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		p.recordFailure()
		return nil, fmt.Errorf("parse response: %w", err)
	}

	if rpcResp.Error != nil {
		if p.Monitor.DetectThrottlePattern(rpcResp.Error.Message) {
			p.Monitor.RecordThrottle(http.StatusTooManyRequests, p.retryAfter)
			return nil, &RateLimitError{Provider: p.name, RetryAfter: p.retryAfter}
		}
		return nil, rpcResp.Error
	}

	return rpcResp.Result, nil
}

func (p *HTTPProvider) rest(ctx context.Context, op Operation) (json.RawMessage, error) {
	method := op.RESTMethod
	if method == "" {
		method = http.MethodGet
	}
	u := p.endpoint + "/" + strings.TrimLeft(op.Path, "/")
	if len(op.Query) > 0 {
		u += "?" + op.Query.Encode()
	}
	return p.do(ctx, method, u, op.Body, op.Headers)
}

func (p *HTTPProvider) do(
	ctx context.Context,
	method, url string,
	payload any,
	headers map[string]string,
) ([]byte, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.recordFailure()
		metrics.UpstreamRequests.WithLabelValues(p.name, "error").Inc()
		return nil, fmt.Errorf("%s request: %w", p.name, err)
	}
	defer resp.Body.Close()

	latency := time.Since(start)
	metrics.UpstreamRequests.WithLabelValues(p.name, strconv.Itoa(resp.StatusCode)).Inc()
	metrics.UpstreamLatency.WithLabelValues(p.name).Observe(latency.Seconds())

	// Rate limit detection
	if resp.StatusCode == http.StatusTooManyRequests {
		wait := ParseRetryAfter(resp.Header.Get("Retry-After"), p.retryAfter)
		p.Monitor.RecordThrottle(resp.StatusCode, wait)
		p.recordFailure()
		return nil, &RateLimitError{Provider: p.name, RetryAfter: wait}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.recordFailure()
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.recordFailure()
		if resp.StatusCode == http.StatusForbidden {
			p.Monitor.RecordThrottle(resp.StatusCode, 0)
		}
		return nil, &StatusError{Provider: p.name, Code: resp.StatusCode, Body: truncate(string(body), 256)}
	}

	p.Monitor.RecordRequest(latency)
	p.recordSuccess(latency)
	return body, nil
}

// GetName returns the provider's name.
func (p *HTTPProvider) GetName() string {
	return p.name
}

// GetHealth returns the provider's health status.
func (p *HTTPProvider) GetHealth() HealthStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	h := p.health
	stats := p.Monitor.GetStats()
	h.MonitorStats = &stats
	return h
}

// Close cleans up resources.
func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

func (p *HTTPProvider) recordSuccess(latency time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.successCount++
	p.requestCount++
	p.totalLatency += latency
	p.health.LastSuccessAt = time.Now()
	p.health.Available = true

	p.health.ErrorRate = float64(p.failureCount) / float64(p.requestCount)
	p.health.Latency = p.totalLatency / time.Duration(p.successCount)
}

func (p *HTTPProvider) recordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.failureCount++
	p.requestCount++
	p.health.LastFailureAt = time.Now()
	p.health.ErrorRate = float64(p.failureCount) / float64(p.requestCount)

	if p.health.ErrorRate > 0.5 {
		p.health.Available = false
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
