package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/arb-scanner/internal/aggregate"
	"github.com/rickgao/arb-scanner/internal/catalog"
	"github.com/rickgao/arb-scanner/internal/config"
	"github.com/rickgao/arb-scanner/internal/detect"
	"github.com/rickgao/arb-scanner/internal/feed"
	"github.com/rickgao/arb-scanner/internal/health"
	"github.com/rickgao/arb-scanner/internal/market"
	"github.com/rickgao/arb-scanner/internal/metrics"
	"github.com/rickgao/arb-scanner/internal/storage"
	"github.com/rickgao/arb-scanner/internal/subscribe"
	"github.com/rickgao/arb-scanner/internal/version"
	"github.com/rickgao/arb-scanner/internal/window"
)

func main() {
	configPath := flag.String("config", "configs/scanner.local.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting scanner",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	logger.Info("connecting to storage", "host", cfg.Storage.Host, "database", cfg.Storage.Name)
	pool, err := storage.Connect(ctx, storage.ConnConfig{
		Host:     cfg.Storage.Host,
		Port:     cfg.Storage.Port,
		Name:     cfg.Storage.Name,
		User:     cfg.Storage.User,
		Password: cfg.Storage.Password,
		SSLMode:  cfg.Storage.SSLMode,
		MinConns: cfg.Storage.MinConns,
		MaxConns: cfg.Storage.MaxConns,
	})
	if err != nil {
		logger.Error("failed to connect to storage", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := storage.EnsureSchema(ctx, pool); err != nil {
		logger.Error("failed to ensure schema", "error", err)
		os.Exit(1)
	}

	store := market.New()

	catalogClient := catalog.NewClient(cfg.Catalog.URL, catalog.WithLogger(logger))
	catalogCfg := catalog.Config{
		GammaAPIURL:        cfg.Catalog.URL,
		MinVolume24h:       cfg.Catalog.MinVolume24h,
		MinLiquidity:       cfg.Catalog.MinLiquidity,
		MinExpiryMinutes:   cfg.Catalog.MinExpiryMinutes,
		MaxExpiryHours:     cfg.Catalog.MaxExpiryHours,
		MaxMarkets:         cfg.Catalog.MaxMarkets,
		PageSize:           cfg.Catalog.PageSize,
		PinnedSlugPrefixes: cfg.Catalog.PinnedSlugPrefixes,
	}
	fetcher := catalog.NewFetcher(catalogClient, catalogCfg, logger).WithInterval(cfg.Catalog.PollInterval)

	connector := feed.NewConnector(cfg.Feed.URL, store, logger)

	detector := detect.NewDetector(store, logger)

	var broadcaster window.Broadcaster = window.NoopBroadcaster{}
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		broadcaster = window.NewRedisBroadcaster(rdb, "", logger)
	}
	consumer := window.NewConsumer(broadcaster, logger)

	writerCfg := storage.Config{BatchSize: cfg.Writer.BatchSize, FlushInterval: cfg.Writer.FlushInterval}
	writer := storage.NewWriter(writerCfg, consumer.Output, pool, logger)

	controller := subscribe.NewController(store, connector, pool, logger)
	controller.SetWindowRemover(detector)

	pinnedWatcher := subscribe.NewPinnedMarketWatcher(
		cfg.Catalog.PinnedSlugPrefixes,
		subscribe.GammaPinnedFetcher{Client: catalogClient, Prefixes: cfg.Catalog.PinnedSlugPrefixes},
		store, connector, pool, logger,
	)
	pinnedWatcher.SetWindowRemover(detector)

	healthState := health.New()
	metricsReg := metrics.New()
	aggregator := aggregate.NewAggregator(pool, logger)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler: buildMux(metricsReg, healthState, store, detector),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		httpErr := httpServer.ListenAndServe()
		if httpErr != nil && httpErr != http.ErrServerClosed {
			return fmt.Errorf("http server: %w", httpErr)
		}
		return nil
	})

	g.Go(func() error {
		fetcher.Start(gctx)
		return nil
	})

	g.Go(func() error {
		connector.Start(gctx)
		return nil
	})

	controllerUpdates := make(chan catalog.DesiredSet, 1)
	g.Go(func() error {
		recordCatalogStats(gctx, fetcher.Updates, controllerUpdates, metricsReg)
		return nil
	})

	g.Go(func() error {
		controller.Run(gctx, controllerUpdates)
		return nil
	})

	g.Go(func() error {
		pinnedWatcher.Run(gctx)
		return nil
	})

	g.Go(func() error {
		detector.Run(gctx, connector.Prices, connector.Trades)
		return nil
	})

	g.Go(func() error {
		consumer.Run(gctx, detector.Events)
		return nil
	})

	g.Go(func() error {
		if err := writer.Start(gctx); err != nil {
			return fmt.Errorf("writer start: %w", err)
		}
		<-gctx.Done()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer stopCancel()
		return writer.Stop(stopCtx)
	})

	g.Go(func() error {
		aggregator.Run(gctx)
		return nil
	})

	g.Go(func() error {
		reportHealthAndMetrics(gctx, healthState, metricsReg, writer, consumer, connector)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	logger.Info("scanner running", "http_port", cfg.HTTPPort)

	if err := g.Wait(); err != nil && gctx.Err() == nil {
		logger.Error("scanner exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("scanner stopped")
}

// recordCatalogStats taps each catalog fetch cycle's admission-gate
// counts into the Prometheus registry before forwarding the desired
// set on to the subscription controller unchanged.
func recordCatalogStats(ctx context.Context, in <-chan catalog.DesiredSet, out chan<- catalog.DesiredSet, mr *metrics.Registry) {
	for {
		select {
		case <-ctx.Done():
			return
		case set, ok := <-in:
			if !ok {
				return
			}
			mr.RecordCatalogFetch(
				set.Stats.Qualified,
				set.Stats.RejectedNoTokens,
				set.Stats.RejectedNoOutcomes,
				set.Stats.RejectedLowVolume,
				set.Stats.RejectedLowLiquidity,
				set.Stats.RejectedExpiry,
			)
			select {
			case out <- set:
			case <-ctx.Done():
				return
			}
		}
	}
}

// reportHealthAndMetrics mirrors component state into the shared
// health.State and Prometheus registry every few seconds, the same
// poll-and-mirror approach the teacher's health handler used inline
// (here it runs continuously instead of per-request since two sinks,
// not one HTTP handler, need the data).
func reportHealthAndMetrics(ctx context.Context, hs *health.State, mr *metrics.Registry, w *storage.Writer, c *window.Consumer, conn *feed.Connector) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pending := c.PendingCount()
			hs.SetWriteQueuePending(pending)
			mr.RecordWriterStats(pending, w.Stats())

			connected := conn.Connected()
			hs.SetWSConnected(connected)
			mr.SetWSConnected(connected)
		}
	}
}

// buildMux wires the minimal HTTP surface spec.md §1 excludes from
// scope (the full read-only query/dashboard surface) but SPEC_FULL.md
// §6 still requires C6/C7 to expose: a health snapshot and a
// Prometheus scrape endpoint.
func buildMux(mr *metrics.Registry, hs *health.State, store *market.Store, det *detect.Detector) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", mr.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		snap := hs.Build(store, det)
		w.Header().Set("Content-Type", "application/json")
		if snap.Status != "healthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		fmt.Fprintf(w, `{"status":%q,"ws_connected":%t,"total_markets":%d,"hydrated_markets":%d,"write_queue_pending":%d,"latency_p50_us":%d,"latency_p95_us":%d,"latency_p99_us":%d}`,
			snap.Status, snap.WSConnected, snap.TotalMarkets, snap.HydratedMarkets,
			snap.WriteQueuePending, snap.LatencyP50Us, snap.LatencyP95Us, snap.LatencyP99Us)
	})
	return mux
}
