// Package proxyclient calls a running stockdash server. It satisfies
// dashboard.Source so terminal dashboards can share one server cache.
package proxyclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"stockdash/internal/provider"
	"stockdash/internal/proxy"
	"stockdash/internal/usage"
)

// HTTPClient is satisfied by *http.Client and *httpx.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is a non-2xx server response.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("%s (%d)", e.Message, e.Status)
}

// UserMessage returns the server's message unchanged.
func (e *APIError) UserMessage() string { return e.Message }

type Client struct {
	base *url.URL
	http HTTPClient
}

// New returns a client for the server at baseURL, e.g. http://localhost:8080.
func New(baseURL string, hc HTTPClient) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("proxy url %q needs scheme and host", baseURL)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Client{base: u, http: hc}, nil
}

func (c *Client) Quote(ctx context.Context, symbol string) (provider.Quote, error) {
	var q provider.Quote
	err := c.get(ctx, "/api/stock", url.Values{"symbol": {symbol}}, &q)
	return q, err
}

func (c *Client) History(ctx context.Context, symbol string) (provider.HistoricalSeries, error) {
	var h provider.HistoricalSeries
	err := c.get(ctx, "/api/stock/history", url.Values{"symbol": {symbol}}, &h)
	return h, err
}

func (c *Client) Search(ctx context.Context, query string) ([]provider.SearchMatch, error) {
	var r proxy.SearchResults
	if err := c.get(ctx, "/api/stock/search", url.Values{"query": {query}}, &r); err != nil {
		return nil, err
	}
	return r.Results, nil
}

// CheckKey calls the credential diagnostic endpoint.
func (c *Client) CheckKey(ctx context.Context) (proxy.CheckResult, error) {
	var r proxy.CheckResult
	err := c.get(ctx, "/api/test-api-key", nil, &r)
	return r, err
}

func (c *Client) Usage(ctx context.Context) (usage.Summary, error) {
	var s usage.Summary
	err := c.get(ctx, "/api/usage", nil, &s)
	return s, err
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.base.JoinPath(path)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), http.NoBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeError(res.StatusCode, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func decodeError(status int, body []byte) *APIError {
	var e struct {
		Error   string `json:"error"`
		Code    string `json:"code"`
		Details string `json:"details"`
	}
	apiErr := &APIError{Status: status}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		apiErr.Code, apiErr.Message, apiErr.Details = e.Code, e.Error, e.Details
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(status)
	}
	return apiErr
}
