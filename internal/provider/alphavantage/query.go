package alphavantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"unicode/utf8"

	"stockdash/internal/provider"
)

// ErrMissingAPIKey is returned when a request is attempted without credentials.
var ErrMissingAPIKey = errors.New("alphavantage: API key not configured")

const maxBody = 4 << 20

// envelope holds the failure fields Alpha Vantage reports inside 200 responses.
type envelope struct {
	ErrorMessage string `json:"Error Message"`
	Information  string `json:"Information"`
	Note         string `json:"Note"`
}

// get performs one query call and decodes the body into out.
func (c *Client) get(ctx context.Context, function string, params url.Values, out any) error {
	if c.apiKey == "" {
		return ErrMissingAPIKey
	}

	query := maps.Clone(c.query)
	query.Set("function", function)
	for key, values := range params {
		for _, value := range values {
			query.Add(key, value)
		}
	}
	query.Set("apikey", c.apiKey)

	u := fmt.Sprintf("%s?%s", c.baseURL, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header = c.header.Clone()

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBody))
	if err != nil {
		return fmt.Errorf("reading %s response: %w", function, err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return provider.StatusError(providerName, res.StatusCode, truncate(string(body), 512))
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("decoding %s response: %w", function, err)
	}
	switch {
	case env.ErrorMessage != "":
		return provider.NewError(providerName, env.ErrorMessage)
	case env.Information != "":
		return provider.NewError(providerName, env.Information)
	case env.Note != "":
		return provider.NewError(providerName, env.Note)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding %s payload: %w", function, err)
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
