package subscribe

import (
	"context"
	"testing"

	"github.com/rickgao/arb-scanner/internal/model"
)

type fakeStore struct {
	markets map[string]model.Market
	pinned  map[string]struct{}
}

func newFakeStore() *fakeStore {
	return &fakeStore{markets: map[string]model.Market{}, pinned: map[string]struct{}{}}
}

func (s *fakeStore) AllMarketIDs() []string {
	ids := make([]string, 0, len(s.markets))
	for id := range s.markets {
		ids = append(ids, id)
	}
	return ids
}

func (s *fakeStore) IsPinned(id string) bool {
	_, ok := s.pinned[id]
	return ok
}

func (s *fakeStore) AddMarket(m model.Market) { s.markets[m.ID] = m }

func (s *fakeStore) RemoveMarket(id string) {
	delete(s.markets, id)
	delete(s.pinned, id)
}

func (s *fakeStore) PinMarket(id string) { s.pinned[id] = struct{}{} }

var _ Store = (*fakeStore)(nil)

func (s *fakeStore) TokenIDsForMarket(id string) (string, string, bool) {
	m, ok := s.markets[id]
	if !ok {
		return "", "", false
	}
	return m.YesTokenID, m.NoTokenID, true
}

type fakeConnector struct {
	subscribed   []string
	unsubscribed []string
}

func (c *fakeConnector) Subscribe(ids []string) error {
	c.subscribed = append(c.subscribed, ids...)
	return nil
}

func (c *fakeConnector) Unsubscribe(ids []string) error {
	c.unsubscribed = append(c.unsubscribed, ids...)
	return nil
}

func TestReconcileAddsNewMarkets(t *testing.T) {
	store := newFakeStore()
	conn := &fakeConnector{}
	ctrl := NewController(store, conn, nil, nil)

	fresh := []model.Market{{ID: "m1", YesTokenID: "y1", NoTokenID: "n1"}}
	ctrl.Reconcile(context.Background(), fresh)

	if _, ok := store.markets["m1"]; !ok {
		t.Fatal("expected m1 to be added to the store")
	}
	if len(conn.subscribed) != 2 {
		t.Fatalf("got %d subscribed ids, want 2", len(conn.subscribed))
	}
}

func TestReconcileRemovesDroppedMarkets(t *testing.T) {
	store := newFakeStore()
	store.AddMarket(model.Market{ID: "stale", YesTokenID: "y1", NoTokenID: "n1"})
	conn := &fakeConnector{}
	ctrl := NewController(store, conn, nil, nil)

	ctrl.Reconcile(context.Background(), nil)

	if _, ok := store.markets["stale"]; ok {
		t.Fatal("expected stale market to be removed")
	}
	if len(conn.unsubscribed) != 2 {
		t.Fatalf("got %d unsubscribed ids, want 2", len(conn.unsubscribed))
	}
}

func TestReconcileNeverRemovesPinnedMarkets(t *testing.T) {
	store := newFakeStore()
	store.AddMarket(model.Market{ID: "pinned1", YesTokenID: "y1", NoTokenID: "n1"})
	store.PinMarket("pinned1")
	conn := &fakeConnector{}
	ctrl := NewController(store, conn, nil, nil)

	ctrl.Reconcile(context.Background(), nil)

	if _, ok := store.markets["pinned1"]; !ok {
		t.Fatal("pinned market must survive reconciliation even when absent from the fresh set")
	}
	if len(conn.unsubscribed) != 0 {
		t.Fatalf("expected no unsubscribe for a pinned market, got %v", conn.unsubscribed)
	}
}

func TestReconcileLeavesUnchangedMarketsAlone(t *testing.T) {
	store := newFakeStore()
	store.AddMarket(model.Market{ID: "m1", YesTokenID: "y1", NoTokenID: "n1"})
	conn := &fakeConnector{}
	ctrl := NewController(store, conn, nil, nil)

	ctrl.Reconcile(context.Background(), []model.Market{{ID: "m1", YesTokenID: "y1", NoTokenID: "n1"}})

	if len(conn.subscribed) != 0 || len(conn.unsubscribed) != 0 {
		t.Fatalf("expected no subscribe/unsubscribe traffic for an unchanged market, got sub=%v unsub=%v", conn.subscribed, conn.unsubscribed)
	}
}
