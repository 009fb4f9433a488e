// Package client is a typed HTTP client for the user directory API, plus an
// optimistic local cache for interactive front ends.
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
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	defaultTimeout     = 15 * time.Second
	defaultConcurrency = 8
)

// User mirrors the API's user record.
type User struct {
	ID                    string     `json:"id"`
	Name                  string     `json:"name"`
	ZipCode               string     `json:"zipCode"`
	Latitude              *float64   `json:"latitude,omitempty"`
	Longitude             *float64   `json:"longitude,omitempty"`
	TimezoneOffsetSeconds *int       `json:"timezoneOffsetSeconds,omitempty"`
	TimezoneOffsetLabel   string     `json:"timezoneOffsetLabel,omitempty"`
	City                  string     `json:"city,omitempty"`
	State                 *string    `json:"state"`
	Country               string     `json:"country,omitempty"`
	WeatherDescription    string     `json:"weatherDescription,omitempty"`
	LocationUpdatedAt     *time.Time `json:"locationUpdatedAt,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

type CreateRequest struct {
	Name    string `json:"name"`
	ZipCode string `json:"zipCode"`
}

// UpdateRequest is a partial update; nil fields are omitted from the body.
type UpdateRequest struct {
	Name    *string `json:"name,omitempty"`
	ZipCode *string `json:"zipCode,omitempty"`
}

// FieldError is one entry of a validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError is the decoded error envelope of a non-2xx response.
type APIError struct {
	Status   int
	Category string       `json:"error"`
	Message  string       `json:"message"`
	Details  []FieldError `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.Status, e.Category, e.Message)
}

type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithToken sends a bearer token on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithConcurrency bounds the parallel requests issued by BulkDelete.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

type Client struct {
	baseURL     string
	http        *http.Client
	token       string
	concurrency int
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: defaultTimeout},
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type listEnvelope struct {
	Count int    `json:"count"`
	Data  []User `json:"data"`
}

type userEnvelope struct {
	Message string `json:"message"`
	Data    User   `json:"data"`
}

func (c *Client) List(ctx context.Context) ([]User, error) {
	var env listEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) ListByZipCode(ctx context.Context, zipCode string) ([]User, error) {
	var env listEnvelope
	if err := c.do(ctx, http.MethodGet, "/api/users/zip/"+url.PathEscape(zipCode), nil, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

func (c *Client) Get(ctx context.Context, id string) (*User, error) {
	return c.user(ctx, http.MethodGet, "/api/users/"+url.PathEscape(id), nil)
}

func (c *Client) Create(ctx context.Context, req CreateRequest) (*User, error) {
	return c.user(ctx, http.MethodPost, "/api/users", req)
}

func (c *Client) Update(ctx context.Context, id string, req UpdateRequest) (*User, error) {
	return c.user(ctx, http.MethodPut, "/api/users/"+url.PathEscape(id), req)
}

// Delete removes a user and returns the deleted record.
func (c *Client) Delete(ctx context.Context, id string) (*User, error) {
	return c.user(ctx, http.MethodDelete, "/api/users/"+url.PathEscape(id), nil)
}

func (c *Client) RefreshLocation(ctx context.Context, id string) (*User, error) {
	return c.user(ctx, http.MethodPost, "/api/users/"+url.PathEscape(id)+"/refresh-location", nil)
}

// BulkResult aggregates a BulkDelete run. Failed holds the error per id.
type BulkResult struct {
	Succeeded int
	Failed    map[string]error
}

// BulkDelete issues independent parallel deletes. Failures do not stop or
// undo the others.
func (c *Client) BulkDelete(ctx context.Context, ids []string) BulkResult {
	var (
		mu  sync.Mutex
		res = BulkResult{Failed: map[string]error{}}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			_, err := c.Delete(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Failed[id] = err
			} else {
				res.Succeeded++
			}
			return nil
		})
	}
	_ = g.Wait()
	return res
}

func (c *Client) user(ctx context.Context, method, path string, body any) (*User, error) {
	var env userEnvelope
	if err := c.do(ctx, method, path, body, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Category == "" {
			apiErr.Category = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
