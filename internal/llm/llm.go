// Package llm holds the HTTP clients for the hosted language models that answer questions.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/MikeSquared-Agency/insight/internal/query"
)

// ErrNotConfigured is returned for a provider that has no API key.
var ErrNotConfigured = errors.New("provider not configured")

// Provider generates a completion for a single prompt.
type Provider interface {
	Name() query.Provider
	Generate(ctx context.Context, prompt string) (string, error)
}

// APIError is a non-2xx reply from a model API.
type APIError struct {
	Provider   query.Provider
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("%s api error %d: %s: %s", e.Provider, e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("%s api error %d: %s", e.Provider, e.StatusCode, e.Message)
}

// Retryable reports whether another provider might succeed where this one failed.
func (e *APIError) Retryable() bool {
	return query.RetryableStatus(e.StatusCode)
}

// Both APIs nest the message under "error"; Gemini names the kind "status", DeepSeek "type".
type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

func postJSON(ctx context.Context, client *http.Client, provider query.Provider, url string, headers map[string]string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{Provider: provider, StatusCode: resp.StatusCode, Message: string(respBody)}
		var errResp errorResponse
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Error.Message != "" {
			apiErr.Message = errResp.Error.Message
			apiErr.Type = errResp.Error.Type
			if apiErr.Type == "" {
				apiErr.Type = errResp.Error.Status
			}
		}
		return apiErr
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// Registry maps provider names to configured clients.
type Registry struct {
	providers map[query.Provider]Provider
}

// NewRegistry registers every non-nil provider.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[query.Provider]Provider)}
	for _, p := range providers {
		if p != nil {
			r.providers[p.Name()] = p
		}
	}
	return r
}

// Get returns the client for name.
func (r *Registry) Get(name query.Provider) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrNotConfigured)
	}
	return p, nil
}

// Names lists the configured providers in sorted order.
func (r *Registry) Names() []query.Provider {
	names := make([]query.Provider, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
