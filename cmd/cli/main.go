// Command timevault is the client CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/timevault/internal/client/cli"
	"github.com/dmitrijs2005/timevault/internal/client/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	if err := cli.NewApp(cfg).Run(ctx, os.Args[1:]); err != nil {
		stop()
		os.Exit(1)
	}
}
