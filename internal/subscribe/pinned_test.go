package subscribe

import (
	"context"
	"testing"
	"time"

	"github.com/rickgao/arb-scanner/internal/catalog"
	"github.com/rickgao/arb-scanner/internal/model"
)

type fakePinnedFetcher struct {
	candidates []catalog.PinnedCandidate
}

func (f fakePinnedFetcher) FetchPinned(context.Context) ([]catalog.PinnedCandidate, error) {
	return f.candidates, nil
}

func candidate(id, prefix string, endTS uint64) catalog.PinnedCandidate {
	return catalog.PinnedCandidate{
		Market: model.Market{ID: id, YesTokenID: id + "-y", NoTokenID: id + "-n"},
		Prefix: prefix,
		EndTS:  endTS,
	}
}

func TestPinnedWatcherSubscribesOnlyTheCurrentMarket(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fetcher := fakePinnedFetcher{candidates: []catalog.PinnedCandidate{
		candidate("hourly-1", "hourly-", uint64(now.Add(2*time.Hour).Unix())),
		candidate("hourly-2", "hourly-", uint64(now.Add(3*time.Hour).Unix())),
	}}
	store := newFakeStore()
	conn := &fakeConnector{}
	w := NewPinnedMarketWatcher([]string{"hourly-"}, fetcher, store, conn, nil, nil)

	w.tick(context.Background(), now)

	if _, ok := store.markets["hourly-1"]; !ok {
		t.Fatal("expected the current (soonest-expiring) market to be subscribed")
	}
	if _, ok := store.markets["hourly-2"]; ok {
		t.Fatal("next market should not be subscribed before the pre-sub window")
	}
	if !store.IsPinned("hourly-1") {
		t.Error("subscribed pinned market should be marked pinned in the store")
	}
}

func TestPinnedWatcherPreSubscribesNextNearExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	// duration for prefix "hourly-" resolves via ParsePrefixDurationSecs;
	// an unrecognised prefix falls back to 300s, so the pre-sub window is
	// PreSub+300s and an end 20s away is well inside it.
	fetcher := fakePinnedFetcher{candidates: []catalog.PinnedCandidate{
		candidate("hourly-1", "hourly-", uint64(now.Add(20*time.Second).Unix())),
		candidate("hourly-2", "hourly-", uint64(now.Add(2*time.Hour).Unix())),
	}}
	store := newFakeStore()
	conn := &fakeConnector{}
	w := NewPinnedMarketWatcher([]string{"hourly-"}, fetcher, store, conn, nil, nil)

	w.tick(context.Background(), now)

	if _, ok := store.markets["hourly-1"]; !ok {
		t.Fatal("expected current market subscribed")
	}
	if _, ok := store.markets["hourly-2"]; !ok {
		t.Fatal("expected next market pre-subscribed once current is within the pre-sub window of expiry")
	}
}

func TestPinnedWatcherExpiresAfterGracePeriod(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store := newFakeStore()
	store.AddMarket(model.Market{ID: "hourly-1", YesTokenID: "y", NoTokenID: "n"})
	conn := &fakeConnector{}
	w := NewPinnedMarketWatcher([]string{"hourly-"}, fakePinnedFetcher{}, store, conn, nil, nil)
	w.subscribed["hourly-1"] = struct{}{}
	w.known["hourly-"] = []knownPinned{{
		market: model.Market{ID: "hourly-1", YesTokenID: "y", NoTokenID: "n"},
		prefix: "hourly-",
		endAt:  now.Add(-ExpiryGrace - time.Second),
	}}

	w.manageSubscriptions(context.Background(), now)

	if _, ok := store.markets["hourly-1"]; ok {
		t.Fatal("expected the expired pinned market to be removed")
	}
	if len(conn.unsubscribed) != 2 {
		t.Fatalf("got %d unsubscribed ids, want 2", len(conn.unsubscribed))
	}
}

func TestPinnedWatcherRunIsNoopWithoutPrefixes(t *testing.T) {
	w := NewPinnedMarketWatcher(nil, fakePinnedFetcher{}, newFakeStore(), &fakeConnector{}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Run(ctx) // must return immediately, not panic or block
}
