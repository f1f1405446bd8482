// Command critq renders and runs typed SQL statement documents.
//
// Usage:
//
//	critq capabilities [--dialect D] [--version V]
//	critq render FILE [--all] [--describe]
//	critq exec FILE [--param name=value]... [--database-url URL]
//	critq watch FILE [--all]
//	critq init [--dialect D] [--version V]
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"

	"github.com/shipq/critq/cli"
)

func main() {
	if err := run(); err != nil {
		cli.Stdout().Error(err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCmd(afero.NewOsFs(), os.Stdout, os.Stderr)
	return root.ExecuteContext(ctx)
}
