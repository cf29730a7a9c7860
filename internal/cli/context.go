// Package cli provides CLI commands for the autohttps application.
package cli

import (
	gocontext "context"
	"os"
	"os/signal"
	"syscall"
)

// NewContext returns the base context for a short-lived command.
func NewContext() gocontext.Context {
	return gocontext.Background()
}

// NewSignalContext returns a context cancelled by SIGINT or SIGTERM, for
// commands that run until interrupted.
func NewSignalContext() (gocontext.Context, gocontext.CancelFunc) {
	return signal.NotifyContext(gocontext.Background(), os.Interrupt, syscall.SIGTERM)
}
