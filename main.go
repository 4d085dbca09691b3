package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/charles-forsyth/skywalker/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	err := cli.RootCommand.ExecuteContext(ctx)

	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "\nOperation cancelled by user.")
		os.Exit(130)
	}
	if err != nil {
		os.Exit(1)
	}
}
