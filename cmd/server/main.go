package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log/level"
	"github.com/jessevdk/go-flags"
	"golang.org/x/sync/errgroup"

	"github.com/maxpoletaev/shardcoord/api/handler"
)

func main() {
	p := flags.NewParser(&opts, flags.Default)

	if _, err := p.Parse(); err != nil {
		if err.(*flags.Error).Type != flags.ErrHelp {
			fmt.Println("cli error:", err)
		}

		os.Exit(2)
	}

	appctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	g, ctx := errgroup.WithContext(appctx)

	// Initialize all components.
	logger, closeLogger := setupLogger()
	reg, m := setupMetrics()
	cluster, closeCluster := setupCluster(logger)
	applier := setupApplier(cluster, logger)
	closeGRPCServer := setupGRPCServer(g, applier, logger)
	closeDiscovery := setupDiscovery(cluster, logger)

	// Components must be shut down in a particular order.
	shutdownOrder := []shutdownFunc{
		closeDiscovery,
		closeGRPCServer,
		closeCluster,
		closeLogger,
	}

	var (
		state handler.StateSource = applier.Store()
		queue handler.TaskQueue
	)

	if opts.Node.Leader {
		level.Info(logger).Log("msg", "publishing cluster state from this node", "quorum", opts.Publish.Quorum)

		q, store, closeQueue := setupQueue(ctx, g, cluster, m, logger)
		shutdownOrder = append([]shutdownFunc{closeQueue}, shutdownOrder...)
		state, queue = store, q
	}

	if opts.API.Enabled {
		setupAPIServer(ctx, g, cluster, state, queue, reg, logger)
	}

	// Block until we receive a signal to shut down, or a component fails.
	<-ctx.Done()
	level.Info(logger).Log("msg", "shutting down")

	// Shutdown all components.
	for _, f := range shutdownOrder {
		if err := f(context.Background()); err != nil {
			level.Error(logger).Log("msg", "failed to shutdown component", "err", err)
		}
	}

	// Wait for all components to finish background tasks.
	if err := g.Wait(); err != nil {
		level.Error(logger).Log("msg", "server stopped with error", "err", err)
		os.Exit(1)
	}
}
