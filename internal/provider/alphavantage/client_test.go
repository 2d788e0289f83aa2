package alphavantage_test

import (
	"io"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"stockdash/internal/provider"
	"stockdash/internal/provider/alphavantage"
)

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestNewClient(t *testing.T) {
	t.Parallel()

	// Assert: a key yields a configured client.
	client, err := alphavantage.NewClient("test")
	require.NoError(t, err)
	require.NotNil(t, client)
	require.True(t, client.Configured())
	require.Equal(t, "Alpha Vantage", client.Name())

	// Assert: an empty key is allowed but unconfigured.
	client, err = alphavantage.NewClient("")
	require.NoError(t, err)
	require.False(t, client.Configured())
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	t.Parallel()

	client, err := alphavantage.NewClient("test", alphavantage.WithBaseURL("\x7f"))
	require.Error(t, err)
	require.Nil(t, client)
}

func TestWithBaseURL(t *testing.T) {
	t.Parallel()

	// Arrange: create a mock http client
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	baseURL := "http://localhost:8080/query"

	// Assert: the request goes to the overridden base url with the key attached.
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Truef(t, strings.HasPrefix(req.URL.String(), baseURL), "expected url to start with base url, received: %s", req.URL.String())
			require.Equal(t, "GLOBAL_QUOTE", req.URL.Query().Get("function"))
			require.Equal(t, "IBM", req.URL.Query().Get("symbol"))
			require.Equal(t, "secret", req.URL.Query().Get("apikey"))
			return jsonResponse(http.StatusOK, `{"Global Quote":{}}`), nil
		}).
		Times(1)

	client, err := alphavantage.NewClient("secret", alphavantage.WithHTTPClient(httpClient), alphavantage.WithBaseURL(baseURL))
	require.NoError(t, err)

	// Act
	_, err = client.GlobalQuote(t.Context(), "IBM")
	require.NoError(t, err)
}

func TestWithHeader(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "bar", req.Header.Get("foo"))
			return jsonResponse(http.StatusOK, `{"bestMatches":[]}`), nil
		}).
		Times(1)

	client, err := alphavantage.NewClient("test",
		alphavantage.WithHTTPClient(httpClient),
		alphavantage.WithHeader(http.Header{"foo": {"bar"}}),
	)
	require.NoError(t, err)

	_, err = client.SearchSymbols(t.Context(), "apple")
	require.NoError(t, err)
}

func TestWithQuery(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			require.Equal(t, "delayed", req.URL.Query().Get("entitlement"))
			require.Equal(t, "SYMBOL_SEARCH", req.URL.Query().Get("function"))
			require.Len(t, req.URL.Query()["keywords"], 1)
			return jsonResponse(http.StatusOK, `{"bestMatches":[]}`), nil
		}).
		Times(2)

	client, err := alphavantage.NewClient("test",
		alphavantage.WithHTTPClient(httpClient),
		alphavantage.WithQuery(url.Values{"entitlement": {"delayed"}}),
	)
	require.NoError(t, err)

	// Assert: per-call parameters never leak into the shared defaults.
	_, err = client.SearchSymbols(t.Context(), "apple")
	require.NoError(t, err)
	_, err = client.SearchSymbols(t.Context(), "apple")
	require.NoError(t, err)
}

func TestMissingKey_NoRequest(t *testing.T) {
	t.Parallel()

	// Arrange: the mock has no expectations, any call fails the test.
	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)

	client, err := alphavantage.NewClient("", alphavantage.WithHTTPClient(httpClient))
	require.NoError(t, err)

	_, err = client.GlobalQuote(t.Context(), "IBM")
	require.ErrorIs(t, err, alphavantage.ErrMissingAPIKey)
}

func TestErrorPayloads(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status int
		body   string
		want   provider.Kind
	}{
		{"error message", http.StatusOK, `{"Error Message":"Invalid API call. Please retry or visit the documentation for GLOBAL_QUOTE."}`, provider.KindNotFound},
		{"invalid key", http.StatusOK, `{"Error Message":"the parameter apikey is invalid or missing."}`, provider.KindInvalidCredential},
		{"information", http.StatusOK, `{"Information":"Our standard API rate limit is 25 requests per day."}`, provider.KindRateLimited},
		{"note", http.StatusOK, `{"Note":"Thank you for using Alpha Vantage! Our standard API call frequency is 5 calls per minute."}`, provider.KindRateLimited},
		{"http 429", http.StatusTooManyRequests, `slow down`, provider.KindRateLimited},
		{"http 502", http.StatusBadGateway, ``, provider.KindUpstream},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			httpClient := NewMockHTTPClient(ctrl)
			httpClient.EXPECT().Do(gomock.Any()).Return(jsonResponse(tc.status, tc.body), nil).Times(1)

			client, err := alphavantage.NewClient("test", alphavantage.WithHTTPClient(httpClient))
			require.NoError(t, err)

			_, err = client.GlobalQuote(t.Context(), "IBM")
			require.Error(t, err)

			var pe *provider.Error
			require.ErrorAs(t, err, &pe)
			require.Equal(t, tc.want, pe.Kind)
		})
	}
}

func TestMalformedJSON(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().Do(gomock.Any()).Return(jsonResponse(http.StatusOK, `<html>`), nil).Times(1)

	client, err := alphavantage.NewClient("test", alphavantage.WithHTTPClient(httpClient))
	require.NoError(t, err)

	_, err = client.DailySeries(t.Context(), "IBM", provider.OutputCompact)
	require.Error(t, err)
	require.Equal(t, provider.KindUpstream, provider.KindOf(err))
}
