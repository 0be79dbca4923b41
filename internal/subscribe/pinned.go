package subscribe

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/arb-scanner/internal/catalog"
	"github.com/rickgao/arb-scanner/internal/model"
	"github.com/rickgao/arb-scanner/internal/storage"
)

// Pinned-market lifecycle constants, ported unchanged from the
// original watcher.
const (
	ExpiryGrace     = 60 * time.Second
	PreSub          = 30 * time.Second
	WatcherTick     = 10 * time.Second
	GammaRefetch    = 30 * time.Second
)

// knownPinned is a fetched pinned-family market with its resolved end
// time.
type knownPinned struct {
	market model.Market
	prefix string
	endAt  time.Time
}

// PinnedFetcher is the subset of catalog this watcher needs to
// re-discover pinned-family candidates.
type PinnedFetcher interface {
	FetchPinned(ctx context.Context) ([]catalog.PinnedCandidate, error)
}

// GammaPinnedFetcher adapts catalog.FetchPinnedMarkets to PinnedFetcher
// for production wiring.
type GammaPinnedFetcher struct {
	Client   *catalog.Client
	Prefixes []string
}

func (f GammaPinnedFetcher) FetchPinned(ctx context.Context) ([]catalog.PinnedCandidate, error) {
	return catalog.FetchPinnedMarkets(ctx, f.Client, f.Prefixes)
}

// PinnedMarketWatcher manages pinned-slug market subscriptions:
//   - only the current market per prefix (smallest end time still in
//     the future) is ever subscribed;
//   - the next market is pre-subscribed once the current one's end
//     time is within PreSub plus the prefix's parsed window duration
//     (ParsePrefixDurationSecs), so the lead time is longer than PreSub
//     alone;
//   - a market is unsubscribed and removed ExpiryGrace seconds after
//     its end time;
//   - the candidate set is re-fetched from the catalog every
//     GammaRefetch seconds to pick up newly-created markets.
type PinnedMarketWatcher struct {
	prefixes  []string
	fetcher   PinnedFetcher
	store     Store
	connector Connector
	db        *pgxpool.Pool
	logger    *slog.Logger

	known      map[string][]knownPinned
	subscribed map[string]struct{}
	lastFetch  time.Time
	remover    WindowRemover
}

// SetWindowRemover wires the Spread Detector so an expiring pinned
// market's in-progress window gets a synthetic Close rather than
// vanishing when the market drops out of the watched set.
func (w *PinnedMarketWatcher) SetWindowRemover(remover WindowRemover) {
	w.remover = remover
}

// NewPinnedMarketWatcher builds a watcher for the given slug prefixes.
// An empty prefix list makes Run a no-op, matching the original
// source's early return.
func NewPinnedMarketWatcher(prefixes []string, fetcher PinnedFetcher, store Store, connector Connector, db *pgxpool.Pool, logger *slog.Logger) *PinnedMarketWatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &PinnedMarketWatcher{
		prefixes:   prefixes,
		fetcher:    fetcher,
		store:      store,
		connector:  connector,
		db:         db,
		logger:     logger,
		known:      make(map[string][]knownPinned),
		subscribed: make(map[string]struct{}),
	}
}

// Run ticks every WatcherTick until ctx is cancelled.
func (w *PinnedMarketWatcher) Run(ctx context.Context) {
	if len(w.prefixes) == 0 {
		return
	}

	ticker := time.NewTicker(WatcherTick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx, time.Now())
		}
	}
}

func (w *PinnedMarketWatcher) tick(ctx context.Context, now time.Time) {
	if now.Sub(w.lastFetch) >= GammaRefetch {
		if err := w.fetchKnown(ctx); err != nil {
			w.logger.Error("pinned catalog re-fetch failed", "error", err)
		} else {
			w.lastFetch = now
		}
	}
	w.manageSubscriptions(ctx, now)
}

func (w *PinnedMarketWatcher) fetchKnown(ctx context.Context) error {
	candidates, err := w.fetcher.FetchPinned(ctx)
	if err != nil {
		return err
	}

	known := make(map[string][]knownPinned, len(candidates))
	for _, c := range candidates {
		known[c.Prefix] = append(known[c.Prefix], knownPinned{
			market: c.Market,
			prefix: c.Prefix,
			endAt:  time.Unix(int64(c.EndTS), 0),
		})
	}
	for prefix := range known {
		sort.Slice(known[prefix], func(i, j int) bool {
			return known[prefix][i].endAt.Before(known[prefix][j].endAt)
		})
	}
	w.known = known
	return nil
}

// manageSubscriptions applies the pre-subscribe/expire rule per prefix
// and drives Store/Connector transitions for the delta against what is
// currently subscribed.
func (w *PinnedMarketWatcher) manageSubscriptions(ctx context.Context, now time.Time) {
	desired := make(map[string]model.Market)

	for prefix, markets := range w.known {
		duration := time.Duration(catalog.ParsePrefixDurationSecs(prefix)) * time.Second

		var active []knownPinned
		for _, m := range markets {
			if m.endAt.Add(ExpiryGrace).After(now) {
				active = append(active, m)
			}
		}
		if len(active) == 0 {
			continue
		}

		current := active[0]
		desired[current.market.ID] = current.market

		secsUntilEnd := current.endAt.Sub(now)
		if secsUntilEnd <= PreSub+duration && len(active) > 1 {
			next := active[1]
			desired[next.market.ID] = next.market
		}
	}

	var toSubscribe []model.Market
	for id, m := range desired {
		if _, ok := w.subscribed[id]; !ok {
			toSubscribe = append(toSubscribe, m)
		}
	}

	var toUnsubscribe []string
	for id := range w.subscribed {
		if _, ok := desired[id]; !ok {
			toUnsubscribe = append(toUnsubscribe, id)
		}
	}

	if len(toSubscribe) > 0 {
		createdAt := now.UnixNano()
		tokenIDs := make([]string, 0, len(toSubscribe)*2)
		for _, m := range toSubscribe {
			if w.db != nil {
				if err := storage.UpsertMarket(ctx, w.db, m, true, createdAt); err != nil {
					w.logger.Warn("pinned market upsert failed", "market_id", m.ID, "error", err)
				}
			}
			w.store.AddMarket(m)
			w.store.PinMarket(m.ID)
			w.subscribed[m.ID] = struct{}{}
			tokenIDs = append(tokenIDs, m.YesTokenID, m.NoTokenID)
			w.logger.Info("pinned market subscribed", "market_id", m.ID, "question", m.Question)
		}
		if err := w.connector.Subscribe(tokenIDs); err != nil {
			w.logger.Warn("pinned subscribe failed", "error", err)
		}
	}

	for _, id := range toUnsubscribe {
		yes, no, ok := w.store.TokenIDsForMarket(id)
		if ok {
			if err := w.connector.Unsubscribe([]string{yes, no}); err != nil {
				w.logger.Warn("pinned unsubscribe failed", "market_id", id, "error", err)
			}
		}
		if w.remover != nil {
			w.remover.RequestRemoval(id)
		}
		w.store.RemoveMarket(id)
		delete(w.subscribed, id)
		w.logger.Info("pinned market expired and unsubscribed", "market_id", id)
	}
}
