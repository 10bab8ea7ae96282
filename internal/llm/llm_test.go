package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MikeSquared-Agency/insight/internal/query"
)

func TestGemini_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-pro:generateContent" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("expected key test-key, got %q", r.Header.Get("x-goog-api-key"))
		}
		if r.URL.RawQuery != "" {
			t.Errorf("expected no query string, got %q", r.URL.RawQuery)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected Content-Type application/json, got %q", r.Header.Get("Content-Type"))
		}

		var req geminiRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Parts[0].Text != "hello" {
			t.Errorf("unexpected contents: %+v", req.Contents)
		}
		if req.GenerationConfig.MaxOutputTokens != 8192 || req.GenerationConfig.TopK != 40 {
			t.Errorf("unexpected generation config: %+v", req.GenerationConfig)
		}

		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"world"}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	c := NewGemini("test-key", "", time.Second)
	c.SetBaseURL(server.URL)

	result, err := c.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "world" {
		t.Errorf("expected 'world', got %q", result)
	}
	if c.Name() != query.ProviderGemini {
		t.Errorf("unexpected name %q", c.Name())
	}
}

func TestGemini_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"quota exhausted","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	c := NewGemini("k", "", time.Second)
	c.SetBaseURL(server.URL)

	_, err := c.Generate(context.Background(), "hi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != 429 || apiErr.Message != "quota exhausted" || apiErr.Type != "RESOURCE_EXHAUSTED" {
		t.Errorf("unexpected api error: %+v", apiErr)
	}
	if !apiErr.Retryable() {
		t.Error("429 should be retryable")
	}
}

func TestGemini_EmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer server.Close()

	c := NewGemini("k", "", time.Second)
	c.SetBaseURL(server.URL)

	if _, err := c.Generate(context.Background(), "hi"); err == nil {
		t.Fatal("expected error for empty candidates")
	}
}

func TestDeepSeek_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("expected bearer auth, got %q", r.Header.Get("Authorization"))
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Model != "deepseek-chat" {
			t.Errorf("expected model deepseek-chat, got %q", req.Model)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" || req.Messages[0].Content != "hello" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.MaxTokens != 4096 {
			t.Errorf("expected max_tokens 4096, got %d", req.MaxTokens)
		}

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"world"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	c := NewDeepSeek("test-key", "", time.Second)
	c.SetBaseURL(server.URL)

	result, err := c.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "world" {
		t.Errorf("expected 'world', got %q", result)
	}
}

func TestDeepSeek_APIErrorNonJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("unauthorized"))
	}))
	defer server.Close()

	c := NewDeepSeek("bad", "", time.Second)
	c.SetBaseURL(server.URL)

	_, err := c.Generate(context.Background(), "hi")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.Retryable() {
		t.Error("401 should not be retryable")
	}
	if !strings.Contains(apiErr.Error(), "unauthorized") {
		t.Errorf("message should carry body: %q", apiErr.Error())
	}
}

func TestDeepSeek_MalformedBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("{not json"))
	}))
	defer server.Close()

	c := NewDeepSeek("k", "", time.Second)
	c.SetBaseURL(server.URL)

	if _, err := c.Generate(context.Background(), "hi"); err == nil {
		t.Fatal("expected error for malformed body")
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(NewDeepSeek("k", "", 0), nil, NewGemini("k", "", 0))

	names := r.Names()
	if len(names) != 2 || names[0] != query.ProviderDeepSeek || names[1] != query.ProviderGemini {
		t.Errorf("unexpected names %v", names)
	}
	if _, err := r.Get(query.ProviderGemini); err != nil {
		t.Errorf("Get gemini: %v", err)
	}

	empty := NewRegistry()
	if _, err := empty.Get(query.ProviderGemini); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("expected ErrNotConfigured, got %v", err)
	}
}

func TestGemini_TransportErrorOmitsKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := server.URL
	server.Close()

	c := NewGemini("SUPERSECRETKEY123", "", time.Second)
	c.SetBaseURL(url)

	_, err := c.Generate(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error from closed server")
	}
	if strings.Contains(err.Error(), "SUPERSECRETKEY123") {
		t.Errorf("api key leaked into error: %v", err)
	}
}
