// Package main provides the entry point for the replayer CLI.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Sumatoshi-tech/replayer/cmd/replayer/commands"
	"github.com/Sumatoshi-tech/replayer/pkg/version"
)

func main() {
	version.InitBinaryVersion()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	code := commands.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)

	stop()
	os.Exit(code)
}
