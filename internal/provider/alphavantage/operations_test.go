package alphavantage_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"stockdash/internal/provider"
	"stockdash/internal/provider/alphavantage"
)

const globalQuoteBody = `{
  "Global Quote": {
    "01. symbol": "IBM",
    "02. open": "168.1000",
    "03. high": "170.0000",
    "04. low": "167.5000",
    "05. price": "169.3200",
    "06. volume": "3456789",
    "07. latest trading day": "2024-03-15",
    "08. previous close": "167.8000",
    "09. change": "1.5200",
    "10. change percent": "0.9058%"
  }
}`

const dailyBody = `{
  "Meta Data": {"1. Information": "Daily Prices", "2. Symbol": "IBM"},
  "Time Series (Daily)": {
    "2024-03-15": {"1. open": "168.10", "2. high": "170.00", "3. low": "167.50", "4. close": "169.32", "5. volume": "3456789"},
    "2024-03-14": {"1. open": "166.00", "2. high": "168.20", "3. low": "165.90", "4. close": "167.80", "5. volume": "2345678"}
  }
}`

const searchBody = `{
  "bestMatches": [
    {"1. symbol": "TSCO.LON", "2. name": "Tesco PLC", "3. type": "Equity", "4. region": "United Kingdom",
     "5. marketOpen": "08:00", "6. marketClose": "16:30", "7. timezone": "UTC+01", "8. currency": "GBX", "9. matchScore": "0.7273"}
  ]
}`

func newClient(t *testing.T, body string, check func(*http.Request)) *alphavantage.Client {
	t.Helper()

	ctrl := gomock.NewController(t)
	httpClient := NewMockHTTPClient(ctrl)
	httpClient.EXPECT().
		Do(gomock.Any()).
		DoAndReturn(func(req *http.Request) (*http.Response, error) {
			if check != nil {
				check(req)
			}
			return jsonResponse(http.StatusOK, body), nil
		}).
		Times(1)

	client, err := alphavantage.NewClient("test", alphavantage.WithHTTPClient(httpClient))
	require.NoError(t, err)
	return client
}

func TestGlobalQuote(t *testing.T) {
	t.Parallel()

	client := newClient(t, globalQuoteBody, nil)

	quote, err := client.GlobalQuote(t.Context(), "IBM")
	require.NoError(t, err)
	require.False(t, quote.Empty())
	require.Equal(t, "IBM", quote.Symbol)
	require.Equal(t, "169.3200", quote.Price)
	require.Equal(t, "167.8000", quote.PreviousClose)
	require.Equal(t, "1.5200", quote.Change)
	require.Equal(t, "0.9058%", quote.ChangePercent)
	require.Equal(t, "2024-03-15", quote.LatestTradingDay)
}

func TestGlobalQuote_EmptyObject(t *testing.T) {
	t.Parallel()

	client := newClient(t, `{"Global Quote":{}}`, nil)

	quote, err := client.GlobalQuote(t.Context(), "ZZZZ")
	require.NoError(t, err)
	require.True(t, quote.Empty())
}

func TestDailySeries(t *testing.T) {
	t.Parallel()

	client := newClient(t, dailyBody, func(req *http.Request) {
		require.Equal(t, "TIME_SERIES_DAILY", req.URL.Query().Get("function"))
		require.Equal(t, "compact", req.URL.Query().Get("outputsize"))
	})

	series, err := client.DailySeries(t.Context(), "IBM", "")
	require.NoError(t, err)
	require.Len(t, series, 2)
	require.Equal(t, "169.32", series["2024-03-15"].Close)
	require.Equal(t, "2345678", series["2024-03-14"].Volume)
}

func TestDailySeries_Full(t *testing.T) {
	t.Parallel()

	client := newClient(t, dailyBody, func(req *http.Request) {
		require.Equal(t, "full", req.URL.Query().Get("outputsize"))
	})

	_, err := client.DailySeries(t.Context(), "IBM", provider.OutputFull)
	require.NoError(t, err)
}

func TestDailySeries_Missing(t *testing.T) {
	t.Parallel()

	client := newClient(t, `{"Meta Data":{}}`, nil)

	series, err := client.DailySeries(t.Context(), "IBM", provider.OutputCompact)
	require.NoError(t, err)
	require.Nil(t, series)
}

func TestSearchSymbols(t *testing.T) {
	t.Parallel()

	client := newClient(t, searchBody, func(req *http.Request) {
		require.Equal(t, "SYMBOL_SEARCH", req.URL.Query().Get("function"))
		require.Equal(t, "tesco", req.URL.Query().Get("keywords"))
	})

	matches, err := client.SearchSymbols(t.Context(), "tesco")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, provider.RawMatch{
		Symbol:      "TSCO.LON",
		Name:        "Tesco PLC",
		Type:        "Equity",
		Region:      "United Kingdom",
		MarketOpen:  "08:00",
		MarketClose: "16:30",
		Timezone:    "UTC+01",
		Currency:    "GBX",
		MatchScore:  "0.7273",
	}, matches[0])
}

func TestSearchSymbols_NoMatches(t *testing.T) {
	t.Parallel()

	client := newClient(t, `{"bestMatches":[]}`, nil)

	matches, err := client.SearchSymbols(t.Context(), "qqqqzz")
	require.NoError(t, err)
	require.NotNil(t, matches)
	require.Empty(t, matches)
}
