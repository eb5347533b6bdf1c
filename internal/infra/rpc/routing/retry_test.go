package routing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/vietddude/coinwatch/internal/infra/rpc/provider"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err    error
		expect ErrorAction
	}{
		{&provider.RateLimitError{RetryAfter: time.Second}, ActionWait},
		{fmt.Errorf("wrapped: %w", &provider.RateLimitError{}), ActionWait},
		{&provider.StatusError{Code: 500}, ActionRetry},
		{&provider.StatusError{Code: 503}, ActionRetry},
		{&provider.StatusError{Code: 404}, ActionFatal},
		{&provider.StatusError{Code: 403}, ActionFatal},
		{&provider.RPCError{Code: -32602, Message: "Invalid params"}, ActionFatal},
		{errors.New("Invalid JSON-RPC request -32600"), ActionFatal},
		{errors.New("Method not found -32601"), ActionFatal},
		{context.Canceled, ActionFatal},
		{context.DeadlineExceeded, ActionRetry},
		{errors.New("connection reset by peer"), ActionRetry},
	}

	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.expect {
			t.Errorf("ClassifyError(%q) = %v, want %v", tt.err, got, tt.expect)
		}
	}
}

type recordingSleeper struct {
	slept []time.Duration
}

func (r *recordingSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.slept = append(r.slept, d)
	return nil
}

func TestCallWithRetry_RetryAfter(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "5")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	p := provider.NewHTTPProvider(provider.HTTPConfig{Name: "mock", Endpoint: server.URL})
	rec := &recordingSleeper{}
	cfg := DefaultRetryConfig
	cfg.Sleep = rec.sleep

	result, err := CallWithRetry(context.Background(), p, provider.Operation{IsREST: true, Path: "x"}, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != `{"ok":true}` {
		t.Errorf("expected retried result, got %s", result)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected exactly one retry (2 calls), got %d", got)
	}
	if len(rec.slept) != 1 || rec.slept[0] != 5*time.Second {
		t.Errorf("expected a single 5s wait, got %v", rec.slept)
	}
}

func TestCallWithRetry_RateLimitBounded(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := provider.NewHTTPProvider(provider.HTTPConfig{Name: "mock", Endpoint: server.URL})
	rec := &recordingSleeper{}
	cfg := DefaultRetryConfig
	cfg.Sleep = rec.sleep

	_, err := CallWithRetry(context.Background(), p, provider.Operation{IsREST: true, Path: "x"}, cfg)
	var rl *provider.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Errorf("expected 2 calls, got %d", got)
	}
}

func TestCallWithRetry_TransientBackoff(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	p := provider.NewHTTPProvider(provider.HTTPConfig{Name: "mock", Endpoint: server.URL})
	rec := &recordingSleeper{}
	cfg := DefaultRetryConfig
	cfg.Sleep = rec.sleep

	if _, err := CallWithRetry(context.Background(), p, provider.Operation{IsREST: true, Path: "x"}, cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.slept) != 2 {
		t.Errorf("expected 2 backoff waits, got %v", rec.slept)
	}
}

func TestCallWithRetry_FatalStops(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "nope", http.StatusBadRequest)
	}))
	defer server.Close()

	p := provider.NewHTTPProvider(provider.HTTPConfig{Name: "mock", Endpoint: server.URL})
	cfg := DefaultRetryConfig
	cfg.Sleep = (&recordingSleeper{}).sleep

	if _, err := CallWithRetry(context.Background(), p, provider.Operation{IsREST: true, Path: "x"}, cfg); err == nil {
		t.Fatal("expected error")
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("expected no retry on 400, got %d calls", got)
	}
}
