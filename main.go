// minechat - a resilient command-line client for the minechat server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"minechat/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "minechat: %v\n", err)
		os.Exit(1)
	}
}
