package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/rickgao/arb-scanner/internal/model"
)

// DefaultInterval is how often the Fetcher re-polls the Gamma API for
// the candidate market set.
const DefaultInterval = 60 * time.Second

// DesiredSet is the reconciled candidate set produced by one fetch
// cycle: the checked/admitted markets plus any pinned-family matches,
// for the Subscription Controller to diff against the Market Store.
type DesiredSet struct {
	Markets []model.Market
	Pinned  []PinnedCandidate
	Stats   FetchStats
}

// Fetcher periodically fetches and admission-filters the candidate
// market set, publishing the reconciled desired set on Updates. On a
// transport error it logs and keeps publishing the previous desired
// set rather than emitting an empty one, so a single failed poll never
// forces an unsubscribe-everything cycle downstream.
type Fetcher struct {
	client   *Client
	cfg      Config
	interval time.Duration
	logger   *slog.Logger

	Updates chan DesiredSet

	stop chan struct{}
	done chan struct{}
}

// NewFetcher builds a Fetcher against the given client and config.
func NewFetcher(client *Client, cfg Config, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		client:   client,
		cfg:      cfg,
		interval: DefaultInterval,
		logger:   logger,
		Updates:  make(chan DesiredSet, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// WithInterval overrides the default poll interval. Call before Start.
func (f *Fetcher) WithInterval(d time.Duration) *Fetcher {
	f.interval = d
	return f
}

// Start runs the poll loop until the context is cancelled or Stop is
// called. It performs one fetch immediately before the first tick.
func (f *Fetcher) Start(ctx context.Context) {
	defer close(f.done)

	last := DesiredSet{}
	f.poll(ctx, &last)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-f.stop:
			return
		case <-ticker.C:
			f.poll(ctx, &last)
		}
	}
}

// Stop requests the poll loop to exit and blocks until it does.
func (f *Fetcher) Stop() {
	close(f.stop)
	<-f.done
}

func (f *Fetcher) poll(ctx context.Context, last *DesiredSet) {
	markets, stats, err := FetchMarkets(ctx, f.client, f.cfg)
	if err != nil {
		f.logger.Warn("catalog fetch failed, retaining previous desired set", "error", err)
		f.publish(*last)
		return
	}

	pinned, err := FetchPinnedMarkets(ctx, f.client, f.cfg.PinnedSlugPrefixes)
	if err != nil {
		f.logger.Warn("pinned catalog fetch failed, keeping previous pinned set", "error", err)
		pinned = last.Pinned
	}

	next := DesiredSet{Markets: markets, Pinned: pinned, Stats: stats}
	f.logger.Info("catalog fetch complete",
		"qualified", stats.Qualified,
		"api_total", stats.APITotal,
		"rejected_no_tokens", stats.RejectedNoTokens,
		"rejected_no_outcomes", stats.RejectedNoOutcomes,
		"rejected_low_volume", stats.RejectedLowVolume,
		"rejected_low_liquidity", stats.RejectedLowLiquidity,
		"rejected_expiry", stats.RejectedExpiry,
		"pinned", len(pinned),
	)
	*last = next
	f.publish(next)
}

func (f *Fetcher) publish(set DesiredSet) {
	select {
	case f.Updates <- set:
	default:
		select {
		case <-f.Updates:
		default:
		}
		f.Updates <- set
	}
}
