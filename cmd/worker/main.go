// Command worker claims document jobs from the configured queue backend and
// keeps the template cache in sync with tenant systems.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"digidoc/internal/app"
	"digidoc/internal/config"
	"digidoc/internal/logging"
	"digidoc/internal/queue"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.New(cfg.Log)

	if cfg.Queue.Adapter == queue.AdapterMemory {
		return fmt.Errorf("queue adapter %q is in-process only; run the server instead", cfg.Queue.Adapter)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, config.NewStore(cfg, nil), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	scheduler, err := a.StartTemplateSync()
	if err != nil {
		return err
	}
	if scheduler != nil {
		defer func() { <-scheduler.Stop().Done() }()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Worker().Start(gctx)
		return nil
	})
	g.Go(func() error {
		a.WatchReload(gctx)
		return nil
	})
	return g.Wait()
}
