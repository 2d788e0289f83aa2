// Command dashboard is the terminal stock dashboard. It reads through a
// running stockdash server by default, or calls the provider in-process
// with -local.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"stockdash/internal/app"
	"stockdash/internal/dashboard"
	"stockdash/internal/httpx"
	"stockdash/internal/logger"
	"stockdash/internal/proxy"
	"stockdash/internal/proxyclient"
)

func main() {
	var (
		configPath string
		proxyURL   string
		local      bool
	)
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config.yaml (optional)")
	flag.StringVar(&proxyURL, "proxy", "", "server base URL (default dashboard.proxy_url)")
	flag.BoolVar(&local, "local", false, "call the provider in-process instead of a server")
	flag.Parse()

	if err := run(configPath, proxyURL, local); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, proxyURL string, local bool) error {
	ctx := context.Background()
	cfg, err := app.LoadConfig(ctx, configPath)
	if err != nil {
		return err
	}
	// stdout belongs to the terminal UI
	log, err := logger.New(cfg.Log, logger.WithoutConsole())
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	var src dashboard.Source
	if local {
		svc, err := app.NewService(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer svc.Close()
		src = proxy.Local{S: svc.Service}
	} else {
		if proxyURL == "" {
			proxyURL = cfg.Dashboard.ProxyURL
		}
		c, err := proxyclient.New(proxyURL, httpx.New(cfg.Dashboard.FetchTimeout))
		if err != nil {
			return err
		}
		src = c
		log.Info("using server", zap.String("url", proxyURL))
	}

	sc, err := app.SessionConfig(cfg.Dashboard)
	if err != nil {
		return err
	}
	sess := dashboard.NewSession(src, sc, dashboard.WithLogger(log.Named("session")))
	defer sess.Close()

	p := tea.NewProgram(newModel(sess), tea.WithAltScreen())

	// Session callbacks can run inside Update, where p.Send would block, so
	// changes are forwarded from a separate goroutine.
	changed := make(chan struct{}, 1)
	done := make(chan struct{})
	unsubscribe := sess.Subscribe(func(dashboard.Snapshot) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()
	go func() {
		for {
			select {
			case <-changed:
				p.Send(changedMsg{})
			case <-done:
				return
			}
		}
	}()

	_, err = p.Run()
	close(done)
	return err
}
