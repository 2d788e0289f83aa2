package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stockdash/internal/app"
	"stockdash/internal/config"
	"stockdash/internal/httpx"
	"stockdash/internal/logger"
	"stockdash/internal/provider"
	"stockdash/internal/proxy"
	"stockdash/internal/proxyclient"
	"stockdash/internal/usage"
)

var (
	cfgFile  string
	proxyURL string
	timeout  time.Duration
	verbose  bool
)

// backend is what the subcommands call: the in-process service or a server.
type backend interface {
	Quote(ctx context.Context, symbol string) (provider.Quote, error)
	History(ctx context.Context, symbol string) (provider.HistoricalSeries, error)
	Search(ctx context.Context, query string) ([]provider.SearchMatch, error)
	CheckKey(ctx context.Context) (proxy.CheckResult, error)
	Usage(ctx context.Context) (usage.Summary, error)
}

type inProcess struct {
	proxy.Local
	svc *app.Service
}

func (p inProcess) CheckKey(ctx context.Context) (proxy.CheckResult, error) {
	ctx, cancel := proxy.CheckContext(ctx)
	defer cancel()
	return p.svc.CheckCredentials(ctx)
}

func (p inProcess) Usage(ctx context.Context) (usage.Summary, error) {
	return p.svc.Usage(ctx)
}

var rootCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Query stock quotes, history and symbol search",
	Long: `Query stock quotes, history and symbol search.

Without --proxy the provider is called in-process using config.yaml and the
environment (PROVIDER_API_KEY, ...). With --proxy the commands call a running
stockdash server and share its cache.

Examples:
  fetch quote AAPL MSFT
  fetch history IBM
  fetch search "micro"
  fetch check --proxy http://localhost:8080
  fetch usage`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./config.yaml)")
	rootCmd.PersistentFlags().StringVar(&proxyURL, "proxy", "", "base URL of a running server")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 20*time.Second, "overall command timeout")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")

	rootCmd.AddCommand(quoteCmd, historyCmd, searchCmd, checkCmd, usageCmd)
}

// withBackend builds the backend, runs fn and releases resources.
func withBackend(cmd *cobra.Command, fn func(ctx context.Context, b backend) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	if proxyURL != "" {
		c, err := proxyclient.New(proxyURL, httpx.New(timeout))
		if err != nil {
			return err
		}
		return fn(ctx, c)
	}

	cfg, err := app.LoadConfig(ctx, cfgFile)
	if err != nil {
		return err
	}
	log := zap.NewNop()
	if verbose {
		log, err = logger.New(config.LogConfig{Level: "debug", Format: "console"})
		if err != nil {
			return err
		}
	}
	svc, err := app.NewService(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(ctx, inProcess{Local: proxy.Local{S: svc.Service}, svc: svc})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
