package proxyclient

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL+"/", srv.Client())
	require.NoError(t, err)
	return c
}

func TestQuote(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/stock", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol":"AAPL","price":"189.98","change":"2.48","changePercent":"1.3227","previousClose":"187.5","lastUpdated":"2024-03-15T14:30:00Z"}`))
	})

	q, err := c.Quote(t.Context(), "AAPL")

	require.NoError(t, err)
	require.Equal(t, "AAPL", q.Symbol)
	require.Equal(t, "189.98", q.Price.String())
	require.Equal(t, "187.5", q.PreviousClose.String())
}

func TestHistoryAndSearch(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/stock/history":
			_, _ = w.Write([]byte(`{"symbol":"IBM","data":[{"date":"2024-03-15","open":"1","high":"2","low":"0.5","close":"1.5","volume":100}]}`))
		case "/api/stock/search":
			assert.Equal(t, "micro soft", r.URL.Query().Get("query"))
			_, _ = w.Write([]byte(`{"results":[{"symbol":"MSFT","name":"Microsoft Corporation","type":"Equity","region":"United States","currency":"USD"}]}`))
		default:
			http.NotFound(w, r)
		}
	})

	h, err := c.History(t.Context(), "IBM")
	require.NoError(t, err)
	require.Len(t, h.Data, 1)
	require.Equal(t, "2024-03-15", h.Data[0].Date.String())

	m, err := c.Search(t.Context(), "micro soft")
	require.NoError(t, err)
	require.Len(t, m, 1)
	require.Equal(t, "MSFT", m[0].Symbol)
}

func TestAPIError(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":"API rate limit exceeded. Please try again later.","code":"RATE_LIMITED"}`))
	})

	_, err := c.Quote(t.Context(), "AAPL")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusTooManyRequests, apiErr.Status)
	require.Equal(t, "RATE_LIMITED", apiErr.Code)
	require.Equal(t, "API rate limit exceeded. Please try again later.", apiErr.UserMessage())
}

func TestAPIError_PlainBody(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := c.Usage(t.Context())

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, "bad gateway", apiErr.Message)
	require.Empty(t, apiErr.Code)
}

func TestCheckKey(t *testing.T) {
	c := newClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"message":"API key is valid and working","sample":{"symbol":"IBM","price":"171.1000"}}`))
	})

	res, err := c.CheckKey(t.Context())

	require.NoError(t, err)
	require.True(t, res.Success)
	require.Equal(t, "171.1000", res.Sample.Price)
}

func TestNew_RejectsRelativeURL(t *testing.T) {
	_, err := New("localhost:8080", nil)
	require.Error(t, err)
}
