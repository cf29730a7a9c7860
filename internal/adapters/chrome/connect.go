// Package chrome drives the engine from a live Chrome instance over the
// DevTools protocol. Plaintext top-level navigations are paused with the
// Fetch domain, decided, and either continued or answered with a 307 to the
// upgraded URL.
package chrome

import (
	"context"
	"fmt"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// Config selects the browser to drive.
type Config struct {
	DebuggerURL string // Existing browser; takes precedence over Launch
	Launch      bool   // Start a browser when DebuggerURL is empty
	Headless    bool
	Bin         string // Browser binary; empty lets the launcher find or download one
}

// Connect attaches to or launches a browser. The returned cleanup closes the
// connection and kills a launched browser.
func Connect(ctx context.Context, cfg Config) (*rod.Browser, func(), error) {
	controlURL := cfg.DebuggerURL
	var l *launcher.Launcher

	if controlURL == "" {
		if !cfg.Launch {
			return nil, nil, fmt.Errorf("no debugger_url configured and launching is disabled")
		}
		l = launcher.New().Headless(cfg.Headless)
		if cfg.Bin != "" {
			l = l.Bin(cfg.Bin)
		}
		url, err := l.Launch()
		if err != nil {
			return nil, nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx).NoDefaultDevice()
	if err := browser.Connect(); err != nil {
		if l != nil {
			l.Kill()
		}
		return nil, nil, fmt.Errorf("connect to chrome: %w", err)
	}

	cleanup := func() {
		_ = browser.Close()
		if l != nil {
			l.Kill()
			l.Cleanup()
		}
	}
	return browser, cleanup, nil
}
