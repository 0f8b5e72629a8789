package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/avatarctic/client-runtime/go/internal/core/ports"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Client issues JSON requests against the API's response envelope. It is the
// usual source of producer functions; controllers never see HTTP themselves.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  ports.TokenProvider
	logger  *logrus.Logger
}

// ClientConfig groups the transport parameters.
type ClientConfig struct {
	BaseURL string
	// Timeout bounds each request at the transport level; the runtime itself
	// imposes no timeout.
	Timeout time.Duration
}

// NewClient creates a REST client. tokens may be nil for unauthenticated APIs.
func NewClient(cfg *ClientConfig, tokens ports.TokenProvider, logger *logrus.Logger) *Client {
	base := ""
	timeout := 30 * time.Second
	if cfg != nil {
		base = strings.TrimRight(cfg.BaseURL, "/")
		if cfg.Timeout > 0 {
			timeout = cfg.Timeout
		}
	}
	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		logger:  logger,
	}
}

// Do issues one request and returns the raw response body. Non-2xx statuses
// are returned as errors carrying the envelope message when one is present.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.decorate(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, statusError(resp.StatusCode, raw)
	}
	return raw, nil
}

// decorate attaches the bearer credential and a request ID.
func (c *Client) decorate(req *http.Request) {
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.tokens == nil {
		return
	}
	token, err := c.tokens.Token()
	if err != nil {
		if c.logger != nil {
			c.logger.WithError(err).Debug("no stored credential to attach")
		}
		return
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

// statusError extracts the envelope message from an error body when possible.
func statusError(status int, raw []byte) error {
	var envelope ports.Response[json.RawMessage]
	if json.Unmarshal(raw, &envelope) == nil && envelope.Message != "" {
		return fmt.Errorf("HTTP %d: %s", status, envelope.Message)
	}
	return fmt.Errorf("HTTP %d", status)
}

// GetJSON fetches path and decodes the envelope.
func GetJSON[T any](ctx context.Context, c *Client, path string, query url.Values) (*ports.Response[T], error) {
	raw, err := c.Do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, err
	}
	return decode[T](raw)
}

// PostJSON sends body to path and decodes the envelope.
func PostJSON[T any](ctx context.Context, c *Client, path string, body any) (*ports.Response[T], error) {
	raw, err := c.Do(ctx, http.MethodPost, path, nil, body)
	if err != nil {
		return nil, err
	}
	return decode[T](raw)
}

// PutJSON sends body to path with PUT and decodes the envelope.
func PutJSON[T any](ctx context.Context, c *Client, path string, body any) (*ports.Response[T], error) {
	raw, err := c.Do(ctx, http.MethodPut, path, nil, body)
	if err != nil {
		return nil, err
	}
	return decode[T](raw)
}

// DeleteJSON deletes path and decodes the envelope.
func DeleteJSON[T any](ctx context.Context, c *Client, path string) (*ports.Response[T], error) {
	raw, err := c.Do(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return decode[T](raw)
}

// Pager builds a page producer for a list endpoint.
func Pager[T any](c *Client, path string) ports.PageProducer[T] {
	return func(ctx context.Context, page, pageSize int) (*ports.Response[[]T], error) {
		query := url.Values{}
		query.Set("page", strconv.Itoa(page))
		query.Set("pageSize", strconv.Itoa(pageSize))
		return GetJSON[[]T](ctx, c, path, query)
	}
}

// Searcher builds a search producer for a query endpoint. Filters become
// query parameters alongside q.
func Searcher[T any](c *Client, path string) func(ctx context.Context, query string, filters map[string]any) (*ports.Response[[]T], error) {
	return func(ctx context.Context, query string, filters map[string]any) (*ports.Response[[]T], error) {
		params := url.Values{}
		params.Set("q", query)
		for k, v := range filters {
			params.Set(k, fmt.Sprint(v))
		}
		return GetJSON[[]T](ctx, c, path, params)
	}
}

func decode[T any](raw []byte) (*ports.Response[T], error) {
	var envelope ports.Response[T]
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &envelope, nil
}
