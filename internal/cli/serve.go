package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/autohttps/internal/adapters/chrome"
	"github.com/example/autohttps/internal/wire"
)

// ServeCmd returns the serve command, which upgrades navigations in a live browser.
func ServeCmd() *cobra.Command {
	var noAudit bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Upgrade navigations in a running Chrome",
		Long: `Attach to Chrome over the DevTools protocol and upgrade plaintext
top-level navigations to HTTPS as they happen.

The browser is taken from chrome.debugger_url in config.json, or launched when
chrome.launch is set. Decisions are recorded in the audit log unless --no-audit
is given. When metrics_addr is set, Prometheus metrics are served at /metrics.

Examples:
  autohttps serve
  autohttps serve --debugger-url ws://127.0.0.1:9222/devtools/browser/<id>
  autohttps serve --metrics-addr 127.0.0.1:9464`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := wire.Config()
			if v, _ := cmd.Flags().GetString("debugger-url"); v != "" {
				cfg.Chrome.DebuggerURL = v
			}
			if v, _ := cmd.Flags().GetBool("headless"); v {
				cfg.Chrome.Headless = true
			}
			if v, _ := cmd.Flags().GetString("metrics-addr"); v != "" {
				cfg.MetricsAddr = v
			}

			ctx, stop := NewSignalContext()
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			logger := wire.Logger()

			browser, cleanup, err := chrome.Connect(ctx, chrome.Config{
				DebuggerURL: cfg.Chrome.DebuggerURL,
				Launch:      cfg.Chrome.Launch,
				Headless:    cfg.Chrome.Headless,
				Bin:         cfg.Chrome.Bin,
			})
			if err != nil {
				return err
			}
			defer cleanup()

			hub := wire.NewHub()
			host := chrome.NewHost(browser, hub, logger.Named("chrome"))
			engine, err := wire.NewEngine(ctx, wire.EngineOptions{
				Tabs:   host,
				Events: hub,
				Audit:  !noAudit,
			})
			if err != nil {
				return err
			}
			defer engine.Close()

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				// The browser going away ends the session.
				defer cancel()
				return host.Run(gctx, engine)
			})

			if cfg.MetricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", wire.Metrics().Handler())
				srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

				g.Go(func() error {
					logger.Info("serving metrics", zap.String("addr", cfg.MetricsAddr))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return fmt.Errorf("metrics server: %w", err)
					}
					return nil
				})
				g.Go(func() error {
					<-gctx.Done()
					shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
					defer done()
					return srv.Shutdown(shutdownCtx)
				})
			}

			fmt.Println("✓ Upgrading navigations (Ctrl-C to stop)")
			return g.Wait()
		},
	}

	cmd.Flags().String("debugger-url", "", "DevTools endpoint of a running browser")
	cmd.Flags().Bool("headless", false, "Launch the browser headless")
	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address")
	cmd.Flags().BoolVar(&noAudit, "no-audit", false, "Do not record decisions")

	return cmd
}
