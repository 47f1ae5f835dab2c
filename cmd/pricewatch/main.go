package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NasaVasa/pricewatch/internal/app"
	"github.com/NasaVasa/pricewatch/internal/config"
)

const usage = `usage: pricewatch [catalog]

With no arguments the bot and the alert monitor run until interrupted.
"catalog" validates the asset catalog and prints the venue tickers.`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pricewatch: config:", err)
		os.Exit(1)
	}

	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "catalog":
			if err := app.CheckCatalog(cfg, os.Stdout); err != nil {
				fmt.Fprintln(os.Stderr, "pricewatch: catalog:", err)
				os.Exit(1)
			}
			return
		default:
			fmt.Fprintln(os.Stderr, usage)
			os.Exit(2)
		}
	}

	service, err := app.New(ctx, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "pricewatch: startup:", err)
		os.Exit(1)
	}
	defer service.Shutdown()

	if err := service.Run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "pricewatch:", err)
		os.Exit(1)
	}
}
