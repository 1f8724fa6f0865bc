// Package client is a Go client for the field API and its push channel
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fieldsync/internal/models"
	"fieldsync/internal/push"
)

// Client talks to one field API mount, e.g. http://localhost:8080/api
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// ClientOption represents a client configuration option
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithToken sets the bearer token sent with every request
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a new field API client
func NewClient(baseURL string, options ...ClientOption) *Client {
	client := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// Error represents a non-success field API response
type Error struct {
	URL     string `json:"-"`
	Status  int    `json:"-"`
	Message string `json:"error"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: HTTP %d", e.URL, e.Status)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.URL, e.Status, e.Message)
}

// FieldURL returns the read address of a field
func (c *Client) FieldURL(loc models.Locator, field string) string {
	return c.baseURL + "/" + escapePath(loc.Collection, loc.RecordType, loc.RecordID, field)
}

// SubscribeURL returns the push channel address of a field
func (c *Client) SubscribeURL(loc models.Locator, field string) string {
	return c.baseURL + "/sse/" + escapePath(loc.Collection, loc.RecordType, loc.RecordID, field) + "/"
}

// ReadField fetches the current value of a field.
// Numbers are returned as json.Number.
func (c *Client) ReadField(ctx context.Context, loc models.Locator, field string) (interface{}, error) {
	return c.makeRequest(ctx, http.MethodGet, c.FieldURL(loc, field), field, nil)
}

// WriteField stores value in a field and returns the value the server kept
func (c *Client) WriteField(ctx context.Context, loc models.Locator, field string, value interface{}) (interface{}, error) {
	body := map[string]interface{}{field: value}
	return c.makeRequest(ctx, http.MethodPost, c.FieldURL(loc, field)+"/", field, body)
}

// WatchField streams pushed values of a field to fn until ctx ends, the
// stream closes or fn returns an error
func (c *Client) WatchField(ctx context.Context, loc models.Locator, field string, fn func(push.Message) error) error {
	target := c.SubscribeURL(loc, field)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	c.authorize(req)

	// The stream outlives any request timeout
	stream := &http.Client{Transport: c.httpClient.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &Error{URL: target, Status: resp.StatusCode}
	}

	reader := push.NewEventReader(resp.Body)
	for {
		ev, err := reader.Next()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read event stream: %w", err)
		}
		if err := fn(push.Message{ID: ev.ID, Value: ev.Data}); err != nil {
			return err
		}
	}
}

func (c *Client) makeRequest(ctx context.Context, method, target, field string, body interface{}) (interface{}, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", target, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &Error{URL: target, Status: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		return nil, apiErr
	}

	decoder := json.NewDecoder(bytes.NewReader(respBody))
	decoder.UseNumber()
	var result map[string]interface{}
	if err := decoder.Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	value, ok := result[field]
	if !ok {
		return nil, fmt.Errorf("response from %s has no %q key", target, field)
	}
	return value, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func escapePath(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return strings.Join(escaped, "/")
}
