package proxy

import (
	"context"
	"encoding/json"
	"fmt"

	"stockdash/internal/provider"
)

// Local exposes a Service through typed results, for in-process consumers
// such as websocket dashboard sessions.
type Local struct {
	S *Service
}

func (l Local) Quote(ctx context.Context, symbol string) (provider.Quote, error) {
	var q provider.Quote
	if err := decode(l.S.Quote(ctx, symbol))(&q); err != nil {
		return provider.Quote{}, err
	}
	return q, nil
}

func (l Local) History(ctx context.Context, symbol string) (provider.HistoricalSeries, error) {
	var h provider.HistoricalSeries
	if err := decode(l.S.History(ctx, symbol))(&h); err != nil {
		return provider.HistoricalSeries{}, err
	}
	return h, nil
}

func (l Local) Search(ctx context.Context, query string) ([]provider.SearchMatch, error) {
	var r SearchResults
	if err := decode(l.S.Search(ctx, query))(&r); err != nil {
		return nil, err
	}
	return r.Results, nil
}

func decode(b []byte, err error) func(any) error {
	return func(v any) error {
		if err != nil {
			return err
		}
		if err := json.Unmarshal(b, v); err != nil {
			return fmt.Errorf("decode payload: %w", err)
		}
		return nil
	}
}
