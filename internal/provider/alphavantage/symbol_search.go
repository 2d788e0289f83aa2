package alphavantage

import (
	"context"
	"net/url"

	"stockdash/internal/provider"
)

type symbolSearchResponse struct {
	BestMatches []match `json:"bestMatches"`
}

type match struct {
	Symbol      string `json:"1. symbol"`
	Name        string `json:"2. name"`
	Type        string `json:"3. type"`
	Region      string `json:"4. region"`
	MarketOpen  string `json:"5. marketOpen"`
	MarketClose string `json:"6. marketClose"`
	Timezone    string `json:"7. timezone"`
	Currency    string `json:"8. currency"`
	MatchScore  string `json:"9. matchScore"`
}

// SearchSymbols runs SYMBOL_SEARCH. No matches is an empty slice, not an error.
func (c *Client) SearchSymbols(ctx context.Context, keywords string) ([]provider.RawMatch, error) {
	var resp symbolSearchResponse
	if err := c.get(ctx, "SYMBOL_SEARCH", url.Values{"keywords": {keywords}}, &resp); err != nil {
		return nil, err
	}
	out := make([]provider.RawMatch, 0, len(resp.BestMatches))
	for _, m := range resp.BestMatches {
		out = append(out, provider.RawMatch(m))
	}
	return out, nil
}
