package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/ruya/internal/cli"
	"github.com/dmitrijs2005/ruya/internal/config"
	"github.com/dmitrijs2005/ruya/internal/core"
	"github.com/dmitrijs2005/ruya/internal/logging"
	"github.com/dmitrijs2005/ruya/internal/rpc"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg := config.LoadConfig()

	if cfg.RemoteAddr != "" {
		c, err := rpc.Dial(cfg.RemoteAddr)
		if err != nil {
			log.Fatalf("%v", err)
		}
		defer c.Close()

		cli.NewApp(c, os.Stdout).Run(ctx, os.Stdin)
		return
	}

	logger := logging.New(os.Stderr, "text", cfg.LogLevel)
	c, err := core.New(ctx, cfg, logger, nil)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer func() {
		if err := c.Close(); err != nil {
			log.Printf("close: %v", err)
		}
	}()

	c.Start(ctx)
	cli.NewApp(c, os.Stdout).WithMediaResolver(c.MediaPath).Run(ctx, os.Stdin)
}
