package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"stockdash/internal/provider"
)

var quoteCmd = &cobra.Command{
	Use:   "quote SYMBOL...",
	Short: "Fetch the latest quote for one or more symbols",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(ctx context.Context, b backend) error {
			quotes, err := fetchQuotes(ctx, b, args)
			if len(quotes) > 0 {
				if perr := printJSON(cmd.OutOrStdout(), quotes); perr != nil {
					return perr
				}
			}
			return err
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history SYMBOL",
	Short: "Fetch the recent daily history of a symbol",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(ctx context.Context, b backend) error {
			h, err := b.History(ctx, args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), h)
		})
	},
}

var searchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Search symbols by keyword",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withBackend(cmd, func(ctx context.Context, b backend) error {
			results, err := b.Search(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"results": results})
		})
	},
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the provider accepts the configured API key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withBackend(cmd, func(ctx context.Context, b backend) error {
			res, err := b.CheckKey(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show today's provider call count",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withBackend(cmd, func(ctx context.Context, b backend) error {
			sum, err := b.Usage(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), sum)
		})
	},
}

// fetchQuotes fetches symbols concurrently, keeping argument order. Failed
// symbols are reported together after the successes.
func fetchQuotes(ctx context.Context, b backend, symbols []string) ([]provider.Quote, error) {
	results := make([]*provider.Quote, len(symbols))
	var (
		mu   sync.Mutex
		errs []error
	)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(5)
	for i, sym := range symbols {
		g.Go(func() error {
			q, err := b.Quote(ctx, sym)
			if err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", sym, err))
				mu.Unlock()
				return nil
			}
			results[i] = &q
			return nil
		})
	}
	_ = g.Wait()

	out := make([]provider.Quote, 0, len(symbols))
	for _, q := range results {
		if q != nil {
			out = append(out, *q)
		}
	}
	return out, errors.Join(errs...)
}
