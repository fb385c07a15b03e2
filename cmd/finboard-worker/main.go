package main

import (
	"context"
	"errors"
	"os"

	"golang.org/x/sync/errgroup"

	"finboard/internal/amqp"
	"finboard/internal/backend"
	"finboard/internal/cache"
	"finboard/internal/cli"
	"finboard/internal/config"
	"finboard/internal/log"
	"finboard/internal/metrics"
	"finboard/internal/services"
	"finboard/internal/worker"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
	}
	logger := cli.SetupLogger(log.ComponentWorker)

	if err := run(logger); err != nil {
		logger.Error("finboard-worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
}

func run(logger *log.Logger) error {
	cfg, err := cli.LoadConfig((*config.Config).ValidateWorker)
	if err != nil {
		return err
	}

	ctx, stop := cli.SignalContext(logger)
	defer stop()

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	factory := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger)
	res, err := factory.Open(bcfg)
	if err != nil {
		return err
	}
	defer res.Store.Close()

	exporter, err := factory.Exporter(ctx, bcfg)
	if err != nil {
		return err
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return err
	}
	defer client.Close()

	dashOpts := []services.DashboardOption{services.WithStartingBalance(cfg.StartingBalanceDecimal())}
	if exporter != nil {
		dashOpts = append(dashOpts, services.WithExporter(exporter))
	}
	dash := services.NewDashboardService(res.Store, cache.NewLRUCache[metrics.Metrics](16, cfg.CacheTTL), dashOpts...)

	coalescer := worker.NewCoalescer(dash.Refresh, cfg.RecomputeDebounce, cfg.RecomputeConcurrency)
	recompute := worker.NewRecomputeWorker(coalescer, res.Store)

	logger.Info("Starting finboard-worker",
		"queue", cfg.AMQPQueue,
		"debounce", cfg.RecomputeDebounce.String(),
		"concurrency", cfg.RecomputeConcurrency)

	if err := recompute.ScheduleAll(ctx); err != nil {
		logger.Error("Startup catch-up failed", log.FieldError, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return client.ConsumeLedgerChanged(gctx, recompute.HandleLedgerChanged) })
	g.Go(func() error { return coalescer.Run(gctx) })
	g.Go(func() error { return recompute.RunCatchUp(gctx, cfg.CatchUpInterval) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("Draining pending recomputes", "pending", coalescer.Pending())
		coalescer.Flush(context.Background())
		logger.Info("finboard-worker stopped")
		return nil
	}
	return err
}
