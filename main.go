package main

import (
	"context"
	"os"

	"routekit/internal/cli"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	ctx, cancel := cli.ContextWithSignals(context.Background())
	defer cancel()

	if err := cli.New(version).Execute(ctx, os.Args[1:]); err != nil {
		cancel()
		cli.ExitOnError(err)
	}
}
