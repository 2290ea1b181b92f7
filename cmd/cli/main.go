package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/docdelivery/internal/client/cli"
	"github.com/dmitrijs2005/docdelivery/internal/client/client"
	"github.com/dmitrijs2005/docdelivery/internal/client/config"
)

func main() {
	cfg, args, err := config.LoadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	dc, err := client.NewGRPCClient(cfg.ServerEndpointAddr, cfg.AccessToken)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = cli.NewApp(cfg, dc, os.Stdout).Run(ctx, args)
	stop()
	_ = dc.Close()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		if errors.Is(err, cli.ErrUsage) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
