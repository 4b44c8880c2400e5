package http

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	expected := &ClientConfig{
		Timeout:      10 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 1 * time.Second,
		UserAgent:    DefaultUserAgent,
		Headers:      make(map[string]string),
	}

	if !reflect.DeepEqual(config, expected) {
		t.Errorf("DefaultConfig() = %+v, expected %+v", config, expected)
	}
}

func TestNewClient(t *testing.T) {
	client := NewClient(nil)
	if !reflect.DeepEqual(client.config, DefaultConfig()) {
		t.Errorf("NewClient(nil) should use default config")
	}

	custom := &ClientConfig{Timeout: 5 * time.Second, UserAgent: "custom-agent/1.0"}
	client = NewClient(custom)
	if client.client.Timeout != 5*time.Second {
		t.Errorf("NewClient() timeout = %v, expected 5s", client.client.Timeout)
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	tests := []struct {
		statusCode int
		want       bool
	}{
		{http.StatusOK, false},
		{http.StatusAccepted, false},
		{http.StatusBadRequest, false},
		{http.StatusForbidden, false},
		{http.StatusUnprocessableEntity, false},
		{http.StatusTooManyRequests, true},
		{http.StatusInternalServerError, true},
		{http.StatusBadGateway, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusGatewayTimeout, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.statusCode), func(t *testing.T) {
			if got := IsRetryableStatusCode(tt.statusCode); got != tt.want {
				t.Errorf("IsRetryableStatusCode(%d) = %v, want %v", tt.statusCode, got, tt.want)
			}
		})
	}
}

func TestPostRetriesWithSameBody(t *testing.T) {
	var (
		attempts atomic.Int32
		mu       sync.Mutex
		bodies   []string
	)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(body))
		mu.Unlock()
		if r.Header.Get("User-Agent") != "test-agent" {
			t.Errorf("User-Agent = %q", r.Header.Get("User-Agent"))
		}
		if attempts.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewClient(&ClientConfig{
		Timeout:      time.Second,
		MaxRetries:   3,
		RetryBackoff: time.Millisecond,
		UserAgent:    "test-agent",
	})

	resp, err := client.PostJSON(context.Background(), server.URL, map[string]string{"host": "example.com"})
	if err != nil {
		t.Fatalf("PostJSON() error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("status = %d, want 202", resp.StatusCode)
	}
	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
	mu.Lock()
	defer mu.Unlock()
	for i, body := range bodies {
		if body != `{"host":"example.com"}` {
			t.Errorf("attempt %d body = %q", i, body)
		}
	}
}

func TestGetGivesUpAfterMaxRetries(t *testing.T) {
	var attempts atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(&ClientConfig{Timeout: time.Second, MaxRetries: 2, RetryBackoff: time.Millisecond})

	resp, err := client.GetWithContext(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("GetWithContext() error = %v", err)
	}
	defer resp.Body.Close()

	// The last attempt hands the retryable response back to the caller
	if resp.StatusCode != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", resp.StatusCode)
	}
	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
}

func TestRetryStopsOnCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewClient(&ClientConfig{Timeout: time.Second, MaxRetries: 5, RetryBackoff: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := client.GetWithContext(ctx, server.URL); err == nil {
		t.Error("expected error once the context is done")
	}
}
