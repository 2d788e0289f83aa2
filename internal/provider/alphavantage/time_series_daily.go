package alphavantage

import (
	"context"
	"net/url"

	"stockdash/internal/provider"
)

type timeSeriesDailyResponse struct {
	MetaData   map[string]string   `json:"Meta Data"`
	TimeSeries map[string]dailyBar `json:"Time Series (Daily)"`
}

type dailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}

// DailySeries fetches TIME_SERIES_DAILY. A nil series means the payload had no
// "Time Series (Daily)" object.
func (c *Client) DailySeries(ctx context.Context, symbol string, size provider.OutputSize) (provider.RawSeries, error) {
	if size == "" {
		size = provider.OutputCompact
	}
	var resp timeSeriesDailyResponse
	params := url.Values{"symbol": {symbol}, "outputsize": {string(size)}}
	if err := c.get(ctx, "TIME_SERIES_DAILY", params, &resp); err != nil {
		return nil, err
	}
	if resp.TimeSeries == nil {
		return nil, nil
	}
	series := make(provider.RawSeries, len(resp.TimeSeries))
	for date, bar := range resp.TimeSeries {
		series[date] = provider.RawBar(bar)
	}
	return series, nil
}
