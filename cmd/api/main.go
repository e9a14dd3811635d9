package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"courier/internal/app/bootstrap"
)

type runner interface {
	Run(ctx context.Context) error
	Close() error
}

// API process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring (ports + adapters + use cases), migrate and provision topics.
// 3) Serve HTTP until SIGINT/SIGTERM.
//
// With -standalone the process also runs the dispatch relay and result
// consumer on in-memory storage, for local development.
func main() {
	standalone := flag.Bool("standalone", false, "run intake and workers in memory without external infrastructure")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Println("courier api starting")
	var (
		app runner
		err error
	)
	if *standalone {
		app, err = bootstrap.BuildStandalone()
	} else {
		app, err = bootstrap.BuildAPI(ctx)
	}
	if err != nil {
		log.Fatalf("bootstrap api failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("api shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(ctx); err != nil {
		log.Printf("courier api stopped with error: %v", err)
	}
}
