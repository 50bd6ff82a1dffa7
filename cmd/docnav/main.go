package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgallion1/docnav/internal/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(version).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
