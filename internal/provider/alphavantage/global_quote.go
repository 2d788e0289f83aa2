package alphavantage

import (
	"context"
	"net/url"

	"stockdash/internal/provider"
)

type globalQuoteResponse struct {
	GlobalQuote globalQuote `json:"Global Quote"`
}

// globalQuote mirrors provider.RawQuote field for field so it converts directly.
type globalQuote struct {
	Symbol           string `json:"01. symbol"`
	Open             string `json:"02. open"`
	High             string `json:"03. high"`
	Low              string `json:"04. low"`
	Price            string `json:"05. price"`
	Volume           string `json:"06. volume"`
	LatestTradingDay string `json:"07. latest trading day"`
	PreviousClose    string `json:"08. previous close"`
	Change           string `json:"09. change"`
	ChangePercent    string `json:"10. change percent"`
}

// GlobalQuote fetches the GLOBAL_QUOTE payload for symbol. An empty
// provider.RawQuote means Alpha Vantage answered with an empty object.
func (c *Client) GlobalQuote(ctx context.Context, symbol string) (provider.RawQuote, error) {
	var resp globalQuoteResponse
	if err := c.get(ctx, "GLOBAL_QUOTE", url.Values{"symbol": {symbol}}, &resp); err != nil {
		return provider.RawQuote{}, err
	}
	return provider.RawQuote(resp.GlobalQuote), nil
}
