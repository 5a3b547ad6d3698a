package modelmgr

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

// DefaultOllamaHost is the standard local ollama endpoint.
const DefaultOllamaHost = "http://localhost:11434"

// OllamaClient implements Manager against ollama's native HTTP API
// (/api/tags, /api/pull, /api/delete).
type OllamaClient struct {
	baseURL    string
	httpClient *http.Client
}

// OllamaOption configures an OllamaClient.
type OllamaOption func(*OllamaClient)

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) OllamaOption {
	return func(o *OllamaClient) {
		o.httpClient = c
	}
}

// NewOllamaClient creates a client for the given base URL
// (DefaultOllamaHost when empty). Pull requests carry no client-side
// timeout; large model downloads are bounded by the caller's context.
func NewOllamaClient(baseURL string, opts ...OllamaOption) *OllamaClient {
	if baseURL == "" {
		baseURL = DefaultOllamaHost
	}

	c := &OllamaClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured endpoint.
func (c *OllamaClient) BaseURL() string {
	return c.baseURL
}

// Ping checks that the ollama server answers at its root endpoint.
func (c *OllamaClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return errors.Wrap(err, "failed to build ping request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "model manager unreachable at %s", c.baseURL)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("model manager at %s returned status %d", c.baseURL, resp.StatusCode)
	}
	return nil
}

// List returns installed model names from /api/tags.
func (c *OllamaClient) List(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build list request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list models")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("list models returned status %d", resp.StatusCode)
	}

	var payload struct {
		Models []struct {
			Name string `json:"name"`
		} `json:"models"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, errors.Wrap(err, "failed to decode model list")
	}

	names := make([]string, 0, len(payload.Models))
	for _, m := range payload.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

// Pull downloads a model via /api/pull with streaming disabled, blocking
// until the server reports completion.
func (c *OllamaClient) Pull(ctx context.Context, model string) error {
	status, err := c.post(ctx, "/api/pull", http.MethodPost, model)
	if err != nil {
		return errors.Wrapf(err, "failed to pull %s", model)
	}
	if status != "success" {
		return errors.Errorf("pull %s finished with status %q", model, status)
	}
	return nil
}

// Remove deletes a model via /api/delete.
func (c *OllamaClient) Remove(ctx context.Context, model string) error {
	if _, err := c.post(ctx, "/api/delete", http.MethodDelete, model); err != nil {
		return errors.Wrapf(err, "failed to remove %s", model)
	}
	return nil
}

func (c *OllamaClient) post(ctx context.Context, path, method, model string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model":  model,
		"stream": false,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to encode request")
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "failed to build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	// /api/delete returns an empty body on success.
	if len(bytes.TrimSpace(raw)) == 0 {
		return "success", nil
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", errors.Wrap(err, "failed to decode response")
	}
	if payload.Status == "" {
		payload.Status = "success"
	}
	return payload.Status, nil
}
