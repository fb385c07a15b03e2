package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"finboard/internal/amqp"
	"finboard/internal/backend"
	"finboard/internal/cache"
	"finboard/internal/cli"
	"finboard/internal/config"
	apphttp "finboard/internal/http"
	"finboard/internal/ledger"
	"finboard/internal/log"
	"finboard/internal/metrics"
	"finboard/internal/middleware/ratelimit"
	"finboard/internal/services"
	"finboard/internal/worker"
)

func main() {
	if err := cli.LoadEnvFile(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
	}
	logger := cli.SetupLogger(log.ComponentApp)

	if err := run(logger); err != nil {
		logger.Error("finboard stopped with error", log.FieldError, err)
		os.Exit(1)
	}
}

func run(logger *log.Logger) error {
	cfg, err := cli.LoadConfig((*config.Config).Validate)
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

	dashCache := cache.NewLRUCache[metrics.Metrics](cfg.CacheSize, cfg.CacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(dashCache)

	dashOpts := []services.DashboardOption{services.WithStartingBalance(cfg.StartingBalanceDecimal())}
	if exporter != nil {
		dashOpts = append(dashOpts, services.WithExporter(exporter))
	}
	dash := services.NewDashboardService(res.Store, dashCache, dashOpts...)

	g, gctx := errgroup.WithContext(ctx)

	// Writes always invalidate the local cache. Recompute and persistence
	// go through the broker when one is configured, otherwise through an
	// in-process coalescer.
	notifiers := []ledger.Notifier{dash}
	var coalescer *worker.Coalescer
	if cfg.AMQPEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			return err
		}
		defer client.Close()
		notifiers = append(notifiers, client)
		logger.Info("Publishing ledger changes to AMQP", "exchange", cfg.AMQPExchange)
	} else {
		coalescer = worker.NewCoalescer(dash.Refresh, cfg.RecomputeDebounce, cfg.RecomputeConcurrency)
		notifiers = append(notifiers, coalescer)
		g.Go(func() error { return ignoreCancel(coalescer.Run(gctx)) })
		logger.Info("Recomputing dashboards in process", "debounce", cfg.RecomputeDebounce.String())
	}
	ledgerSvc := services.NewLedgerService(res.Store, notifiers...)

	limiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute)
	opts := []apphttp.Option{
		apphttp.WithRateLimit(limiter),
		apphttp.WithLogger(logger),
	}
	if res.Ping != nil {
		opts = append(opts, apphttp.WithReadiness(res.Ping))
	}
	srv, err := apphttp.NewServer(":"+cfg.Port, ledgerSvc, dash, opts...)
	if err != nil {
		return err
	}

	g.Go(func() error {
		cacheManager.Run(gctx, time.Minute)
		return nil
	})
	g.Go(func() error {
		limiter.Run(gctx, 5*time.Minute)
		return nil
	})
	g.Go(func() error {
		reportStats(gctx, logger, 5*time.Minute, func() []any {
			reqs, cs := srv.Stats(), dashCache.Stats()
			args := []any{
				"requests", reqs.Requests,
				"server_errors", reqs.ServerErrors,
				"cache_hits", cs.Hits,
				"cache_misses", cs.Misses,
				"cache_evictions", cs.Evictions,
				"tracked_clients", limiter.ActiveClients(),
			}
			if coalescer != nil {
				args = append(args, "pending_recomputes", coalescer.Pending())
			}
			return args
		})
		return nil
	})
	g.Go(func() error {
		logger.Info("Starting finboard", "addr", srv.Addr, "backend", cfg.DataBackend)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// reportStats logs the counters returned by collect every interval and
// once more when ctx ends.
func reportStats(ctx context.Context, logger *log.Logger, interval time.Duration, collect func() []any) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("Final stats", collect()...)
			return
		case <-ticker.C:
			logger.Info("Stats", collect()...)
		}
	}
}

func ignoreCancel(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
