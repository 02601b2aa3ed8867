// Client for the JSON API served by a running ytmp3 instance.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/desertthunder/ytmp3/internal/models"
	"github.com/desertthunder/ytmp3/internal/shared"
)

// QueueClient enqueues and inspects tasks on a remote ytmp3 server.
type QueueClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewQueueClient creates a client for the server at baseURL.
func NewQueueClient(baseURL string, client *http.Client) *QueueClient {
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	if client == nil {
		client = http.DefaultClient
	}

	return &QueueClient{
		baseURL:    baseURL,
		httpClient: client,
	}
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Enqueue submits a resource id or watch URL and returns the assigned task.
func (c *QueueClient) Enqueue(ctx context.Context, resourceID, fileName string) (*models.EnqueueResponse, error) {
	data, err := json.Marshal(models.EnqueueRequest{ResourceID: resourceID, FileName: fileName})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	resp, err := c.Post(ctx, "/api/downloads", data)
	if err != nil {
		return nil, err
	}

	var out models.EnqueueResponse
	if err := resp.decode(http.StatusAccepted, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Cancel removes a waiting task from the remote queue.
func (c *QueueClient) Cancel(ctx context.Context, taskID string) error {
	resp, err := c.Delete(ctx, "/api/downloads/"+url.PathEscape(taskID))
	if err != nil {
		return err
	}
	return resp.decode(http.StatusNoContent, nil)
}

// Depth reports the remote queue's running and waiting counts.
func (c *QueueClient) Depth(ctx context.Context) (*models.QueueDepth, error) {
	resp, err := c.Get(ctx, "/api/queue")
	if err != nil {
		return nil, err
	}

	var out models.QueueDepth
	if err := resp.decode(http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get performs a GET request to the specified path and returns the raw response.
func (c *QueueClient) Get(ctx context.Context, path string) (*APIResponse, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON data and returns the raw response.
func (c *QueueClient) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return c.do(ctx, http.MethodPost, path, data)
}

// Delete performs a DELETE request to the specified path and returns the raw response.
func (c *QueueClient) Delete(ctx context.Context, path string) (*APIResponse, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

func (c *QueueClient) do(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}, nil
}

// decode checks the status and unmarshals the body into v when v is non-nil.
//
// Other statuses surface the server's error message wrapped with [shared.ErrUnexpectedStatus].
func (r *APIResponse) decode(want int, v any) error {
	if r.StatusCode != want {
		var apiErr models.ErrorResponse
		if err := json.Unmarshal(r.Body, &apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%w %d: %s", shared.ErrUnexpectedStatus, r.StatusCode, apiErr.Error)
		}
		return fmt.Errorf("%w %d", shared.ErrUnexpectedStatus, r.StatusCode)
	}
	if v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
