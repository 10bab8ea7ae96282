// Package apiclient talks to the insightd HTTP API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MikeSquared-Agency/insight/internal/dataset"
	"github.com/MikeSquared-Agency/insight/internal/query"
)

const defaultTimeout = 60 * time.Second

// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New returns a client for the API rooted at baseURL, e.g. http://localhost:8000/api.
// A non-positive timeout uses 60s.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// Ask sends one attempt against provider. Every error is a *query.Failure.
func (c *Client) Ask(ctx context.Context, sub query.Submission, provider query.Provider) (query.Answer, error) {
	body, err := json.Marshal(query.NewRequest(sub, provider))
	if err != nil {
		return query.Answer{}, &query.Failure{Provider: provider, Reason: "encode request", Err: err}
	}

	var resp query.Response
	if err := c.do(ctx, http.MethodPost, "/queries", "application/json", bytes.NewReader(body), &resp); err != nil {
		return query.Answer{}, toFailure(provider, err)
	}
	if resp.Response == "" && resp.QueryID == "" {
		return query.Answer{}, &query.Failure{Provider: provider, Reason: "empty response from server", Retryable: true}
	}
	return resp.Answer(), nil
}

// History returns the server-side history for sessionID, newest first.
func (c *Client) History(ctx context.Context, sessionID string) ([]query.Record, error) {
	var items []query.HistoryItem
	if err := c.do(ctx, http.MethodGet, "/queries/history/"+url.PathEscape(sessionID), "", nil, &items); err != nil {
		return nil, err
	}
	records := make([]query.Record, len(items))
	for i, it := range items {
		records[i] = it.Record()
	}
	return records, nil
}

func (c *Client) ClearHistory(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodDelete, "/queries/history/"+url.PathEscape(sessionID), "", nil, nil)
}

// UploadDataset checks type and size locally, then uploads the file at path.
// maxBytes <= 0 skips the local size check.
func (c *Client) UploadDataset(ctx context.Context, path, name string, maxBytes int64) (*dataset.Summary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if err := dataset.ValidateUpload(path, info.Size(), maxBytes); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if name != "" {
		if err := mw.WriteField("dataset_name", name); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	var summary dataset.Summary
	if err := c.do(ctx, http.MethodPost, "/datasets/upload", mw.FormDataContentType(), &buf, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) GetDataset(ctx context.Context, id string) (*dataset.Summary, error) {
	var summary dataset.Summary
	if err := c.do(ctx, http.MethodGet, "/datasets/"+url.PathEscape(id), "", nil, &summary); err != nil {
		return nil, err
	}
	return &summary, nil
}

func (c *Client) DeleteDataset(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/datasets/"+url.PathEscape(id), "", nil, nil)
}

// Health returns the server's status string.
func (c *Client) Health(ctx context.Context) (string, error) {
	var body struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", "", nil, &body); err != nil {
		return "", err
	}
	return body.Status, nil
}

// Info describes the server's capabilities.
type Info struct {
	Name               string   `json:"name"`
	Version            string   `json:"version"`
	LLMProviders       []string `json:"llm_providers"`
	SupportedFileTypes []string `json:"supported_file_types"`
	MaxFileSizeMB      int64    `json:"max_file_size_mb"`
}

func (c *Client) Info(ctx context.Context) (*Info, error) {
	var info Info
	if err := c.do(ctx, http.MethodGet, "/info", "", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// StatusError is a non-2xx reply from the API.
type StatusError struct {
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("server returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("server returned status %d: %s", e.StatusCode, e.Detail)
}

// NotFound reports whether err is a 404 from the API.
func NotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// decodeError marks a 2xx reply whose body could not be read.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "malformed response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &decodeError{err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{StatusCode: resp.StatusCode}
		var eb query.ErrorBody
		if json.Unmarshal(data, &eb) == nil {
			se.Detail = eb.Detail
		}
		return se
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

// toFailure classifies a call error for the fallback policy.
func toFailure(provider query.Provider, err error) *query.Failure {
	var se *StatusError
	if errors.As(err, &se) {
		reason := se.Detail
		if reason == "" {
			reason = http.StatusText(se.StatusCode)
		}
		return &query.Failure{
			Provider:   provider,
			Reason:     reason,
			StatusCode: se.StatusCode,
			Retryable:  query.RetryableStatus(se.StatusCode),
			Err:        err,
		}
	}
	// Transport errors, timeouts and unreadable bodies.
	return &query.Failure{Provider: provider, Reason: err.Error(), Retryable: true, Err: err}
}
