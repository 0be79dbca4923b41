package aggregate

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultInterval is the scan cadence spec.md §4.9 names ("Every 60 s").
const DefaultInterval = 60 * time.Second

// Window24h is the lookback the Aggregator scans on every cycle.
const Window24h = 24 * time.Hour

// Aggregator runs the scheduled per-market scoring scan described in
// spec.md §4.9, grounded on
// original_source/src/scorer/market_scorer.rs's MarketScorer.
type Aggregator struct {
	pool     *pgxpool.Pool
	interval time.Duration
	logger   *slog.Logger

	stop chan struct{}
	done chan struct{}
}

// NewAggregator builds an Aggregator scoring against pool.
func NewAggregator(pool *pgxpool.Pool, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{
		pool:     pool,
		interval: DefaultInterval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Run scores every market once per interval until ctx is cancelled or
// Stop is called. It does not score immediately on startup — the
// first cycle has nothing new to say that the prior scanner run's
// market_stats rows didn't already capture.
func (a *Aggregator) Run(ctx context.Context) {
	defer close(a.done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-a.stop:
			return
		case <-ticker.C:
			if err := a.scoreAllMarkets(ctx); err != nil {
				a.logger.Error("aggregator scan failed", "error", err)
			}
		}
	}
}

// Stop signals Run to exit and blocks until it has.
func (a *Aggregator) Stop() {
	close(a.stop)
	<-a.done
}

func (a *Aggregator) scoreAllMarkets(ctx context.Context) error {
	since := time.Now().Add(-Window24h).UnixNano()

	stats, err := queryWindow24hStats(ctx, a.pool, since)
	if err != nil {
		return err
	}

	for _, s := range stats {
		score := Compute(s)
		if err := upsertMarketStats(ctx, a.pool, s, score); err != nil {
			a.logger.Error("upsert market_stats failed", "market_id", s.MarketID, "error", err)
			continue
		}
	}

	a.logger.Info("aggregator scan complete", "markets_scored", len(stats))
	return nil
}
