// Package client talks to the DynConn v2 HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dynconn/connectors/base"
)

// APIError is a registry error reported by the server (HTTP 400)
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.StatusCode, e.Message)
}

// Client is a DynConn API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client for the server at baseURL. token may be empty when the
// server runs without authentication.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v2/dyn",
		token:   token,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

// Keys lists the live keys
func (c *Client) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	err := c.do(ctx, http.MethodGet, "/conn/keys", nil, nil, &keys)
	return keys, err
}

// Info maps every live key to its URI
func (c *Client) Info(ctx context.Context) (map[string]string, error) {
	var info map[string]string
	err := c.do(ctx, http.MethodGet, "/conn", nil, nil, &info)
	return info, err
}

// List returns stored descriptors
func (c *Client) List(ctx context.Context) ([]base.ConnInfo, error) {
	var list []base.ConnInfo
	err := c.do(ctx, http.MethodGet, "/conn/list", nil, nil, &list)
	return list, err
}

// Get returns the descriptor of one live entry
func (c *Client) Get(ctx context.Context, key string) (*base.ConnInfo, error) {
	var info base.ConnInfo
	if err := c.do(ctx, http.MethodGet, "/conn/"+url.PathEscape(key), nil, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// Check probes info without registering it
func (c *Client) Check(ctx context.Context, info base.ConnInfo) (bool, error) {
	var ok bool
	err := c.do(ctx, http.MethodPost, "/check_connection", nil, info, &ok)
	return ok, err
}

// Create registers info under a generated key, or under key when non-empty
func (c *Client) Create(ctx context.Context, key string, info base.ConnInfo) (string, error) {
	var msg string
	if key == "" {
		err := c.do(ctx, http.MethodPost, "/conn", nil, info, &msg)
		return msg, err
	}
	err := c.do(ctx, http.MethodPost, "/conn/keyed", url.Values{"key": {key}}, info, &msg)
	return msg, err
}

// Update replaces the entry under key
func (c *Client) Update(ctx context.Context, key string, info base.ConnInfo) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodPut, "/conn", url.Values{"key": {key}}, info, &msg)
	return msg, err
}

// Delete removes the entry under key
func (c *Client) Delete(ctx context.Context, key string) (string, error) {
	var msg string
	err := c.do(ctx, http.MethodDelete, "/conn", url.Values{"key": {key}}, nil, &msg)
	return msg, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parsing response: %w", err)
		}
		return nil
	case resp.StatusCode == http.StatusBadRequest:
		var msg string
		if err := json.Unmarshal(data, &msg); err != nil {
			msg = strings.TrimSpace(string(data))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	default:
		var envelope struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		msg := strings.TrimSpace(string(data))
		if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
			msg = envelope.Error.Message
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}
}
