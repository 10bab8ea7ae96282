package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/MikeSquared-Agency/insight/internal/query"
)

const (
	deepSeekURL          = "https://api.deepseek.com/v1/chat/completions"
	DefaultDeepSeekModel = "deepseek-chat"
)

// DeepSeekClient calls the OpenAI-compatible DeepSeek chat endpoint.
type DeepSeekClient struct {
	apiKey string
	model  string
	apiURL string
	client *http.Client
}

func NewDeepSeek(apiKey, model string, timeout time.Duration) *DeepSeekClient {
	if model == "" {
		model = DefaultDeepSeekModel
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &DeepSeekClient{
		apiKey: apiKey,
		model:  model,
		apiURL: deepSeekURL,
		client: &http.Client{Timeout: timeout},
	}
}

// SetBaseURL replaces the full endpoint URL, for tests.
func (c *DeepSeekClient) SetBaseURL(u string) {
	c.apiURL = u
}

func (c *DeepSeekClient) Name() query.Provider {
	return query.ProviderDeepSeek
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	TopP        float64       `json:"top_p"`
	Stream      bool          `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Generate sends prompt as a single user message.
func (c *DeepSeekClient) Generate(ctx context.Context, prompt string) (string, error) {
	req := chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.1,
		MaxTokens:   4096,
		TopP:        0.95,
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	var resp chatResponse
	if err := postJSON(ctx, c.client, query.ProviderDeepSeek, c.apiURL, headers, req, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("empty response content")
	}
	return resp.Choices[0].Message.Content, nil
}
