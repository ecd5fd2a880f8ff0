package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"hostsweep/api"
	"hostsweep/cli"
	"hostsweep/config"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return cli.ExitInvalidInput
	}

	if len(args) > 0 && args[0] == "serve" {
		if err := api.Run(ctx, cfg); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	cmd := &cli.Command{In: os.Stdin, Out: os.Stdout, Err: os.Stderr, Config: cfg}
	return cmd.Run(ctx, args)
}
