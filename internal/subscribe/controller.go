// Package subscribe implements the Subscription Controller (C8): it
// reconciles the catalog's desired market set against the Market
// Store and the Feed Connector's live subscription, and separately
// manages the pinned-slug family's precise handoff timing.
package subscribe

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/arb-scanner/internal/catalog"
	"github.com/rickgao/arb-scanner/internal/model"
	"github.com/rickgao/arb-scanner/internal/storage"
)

// Store is the subset of market.Store the Controller needs.
type Store interface {
	AllMarketIDs() []string
	IsPinned(id string) bool
	AddMarket(m model.Market)
	RemoveMarket(id string)
	PinMarket(id string)
	TokenIDsForMarket(id string) (yes, no string, ok bool)
}

// Connector is the subset of feed.Connector the Controller drives.
type Connector interface {
	Subscribe(ids []string) error
	Unsubscribe(ids []string) error
}

// WindowRemover lets the Controller ask the Spread Detector to
// synthesize a Close for any window still open on a market being
// dropped from the watched set (spec §4.4, "Removal during Open").
type WindowRemover interface {
	RequestRemoval(marketID string)
}

// Controller reconciles catalog.Fetcher's published DesiredSet against
// the Market Store and the live WebSocket subscription. Pinned markets
// are never touched here — PinnedMarketWatcher owns their lifecycle.
type Controller struct {
	store     Store
	connector Connector
	db        *pgxpool.Pool
	logger    *slog.Logger
	remover   WindowRemover
}

// NewController builds a Controller. db may be nil, in which case the
// markets table is never written (used in tests without a live pool).
func NewController(store Store, connector Connector, db *pgxpool.Pool, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{store: store, connector: connector, db: db, logger: logger}
}

// SetWindowRemover wires the Spread Detector so that Reconcile can
// synthesize a Close for any market removed while its window is open.
// Optional: a nil remover (the default) simply skips that step.
func (c *Controller) SetWindowRemover(remover WindowRemover) {
	c.remover = remover
}

// Run drains catalog.Fetcher.Updates and reconciles on every desired
// set it receives, until ctx is cancelled.
func (c *Controller) Run(ctx context.Context, updates <-chan catalog.DesiredSet) {
	for {
		select {
		case <-ctx.Done():
			return
		case set, ok := <-updates:
			if !ok {
				return
			}
			c.Reconcile(ctx, set.Markets)
		}
	}
}

// Reconcile diffs the fresh market set against the Store's current
// tracked markets (pinned markets exempted) and drives the Subscribe/
// Unsubscribe transitions in the order the feed requires: Unsubscribe
// before removing from the Store, and inserting into the Store before
// Subscribe.
func (c *Controller) Reconcile(ctx context.Context, fresh []model.Market) {
	currentIDs := c.store.AllMarketIDs()
	current := make(map[string]struct{}, len(currentIDs))
	for _, id := range currentIDs {
		current[id] = struct{}{}
	}

	freshByID := make(map[string]model.Market, len(fresh))
	for _, m := range fresh {
		freshByID[m.ID] = m
	}

	var toRemove []string
	for id := range current {
		if _, stillFresh := freshByID[id]; stillFresh {
			continue
		}
		if c.store.IsPinned(id) {
			continue
		}
		toRemove = append(toRemove, id)
	}

	var toAdd []model.Market
	for id, m := range freshByID {
		if _, known := current[id]; !known {
			toAdd = append(toAdd, m)
		}
	}

	for _, id := range toRemove {
		yes, no, ok := c.store.TokenIDsForMarket(id)
		if ok {
			if err := c.connector.Unsubscribe([]string{yes, no}); err != nil {
				c.logger.Warn("unsubscribe failed", "market_id", id, "error", err)
			}
		}
		if c.remover != nil {
			c.remover.RequestRemoval(id)
		}
		c.store.RemoveMarket(id)
	}

	if len(toAdd) > 0 {
		createdAt := time.Now().UnixNano()
		tokenIDs := make([]string, 0, len(toAdd)*2)
		for _, m := range toAdd {
			if c.db != nil {
				if err := storage.UpsertMarket(ctx, c.db, m, false, createdAt); err != nil {
					c.logger.Warn("market upsert failed", "market_id", m.ID, "error", err)
				}
			}
			c.store.AddMarket(m)
			tokenIDs = append(tokenIDs, m.YesTokenID, m.NoTokenID)
		}
		if err := c.connector.Subscribe(tokenIDs); err != nil {
			c.logger.Warn("subscribe failed", "count", len(toAdd), "error", err)
		}
	}

	c.logger.Info("market reconciliation complete",
		"added", len(toAdd), "removed", len(toRemove), "total", len(c.store.AllMarketIDs()),
	)
}
