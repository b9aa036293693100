// Package client is the HTTP adapter the UI uses to reach the task API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/s1natex/task-management-system/internal/tasks"
)

const taskPath = "/api/task"

// APIError is a non-2xx answer from the task API.
type APIError struct {
	Status  int
	Message string
	Details []tasks.FieldError
}

func (e *APIError) Error() string {
	return fmt.Sprintf("task api: %d %s", e.Status, e.Message)
}

type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns every task. An empty collection (204) yields an empty slice.
func (c *Client) List(ctx context.Context) ([]tasks.Task, error) {
	resp, err := c.do(ctx, http.MethodGet, taskPath, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := []tasks.Task{}
	if resp.StatusCode == http.StatusNoContent {
		return out, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode task list: %w", err)
	}
	return out, nil
}

func (c *Client) Get(ctx context.Context, id int64) (tasks.Task, error) {
	resp, err := c.do(ctx, http.MethodGet, itemPath(id), nil)
	if err != nil {
		return tasks.Task{}, err
	}
	defer resp.Body.Close()

	var t tasks.Task
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return tasks.Task{}, fmt.Errorf("decode task %d: %w", id, err)
	}
	return t, nil
}

// Create posts a new task and returns it with its Location header.
func (c *Client) Create(ctx context.Context, in tasks.Input) (tasks.Task, string, error) {
	resp, err := c.do(ctx, http.MethodPost, taskPath, in)
	if err != nil {
		return tasks.Task{}, "", err
	}
	defer resp.Body.Close()

	var t tasks.Task
	if err := json.NewDecoder(resp.Body).Decode(&t); err != nil {
		return tasks.Task{}, "", fmt.Errorf("decode created task: %w", err)
	}
	return t, resp.Header.Get("Location"), nil
}

// Update sends the whole task and returns the server's acknowledgment.
func (c *Client) Update(ctx context.Context, t tasks.Task) (string, error) {
	return c.ack(ctx, http.MethodPut, itemPath(t.ID), t)
}

func (c *Client) Delete(ctx context.Context, id int64) (string, error) {
	return c.ack(ctx, http.MethodDelete, itemPath(id), nil)
}

func (c *Client) ack(ctx context.Context, method, path string, body any) (string, error) {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read ack: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

// do sends the request and turns non-2xx responses into *APIError. The
// caller closes the body of a successful response.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()
	return nil, decodeAPIError(resp)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var payload struct {
		Error   string             `json:"error"`
		Details []tasks.FieldError `json:"details"`
	}
	if json.Unmarshal(b, &payload) == nil && payload.Error != "" {
		apiErr.Message = payload.Error
		apiErr.Details = payload.Details
	} else {
		apiErr.Message = strings.TrimSpace(string(b))
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func itemPath(id int64) string {
	return taskPath + "/" + strconv.FormatInt(id, 10)
}
