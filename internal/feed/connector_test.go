package feed

import (
	"testing"
	"time"

	"github.com/rickgao/arb-scanner/internal/market"
	"github.com/rickgao/arb-scanner/internal/model"
)

func newTestConnector(t *testing.T) (*Connector, *market.Store, model.Market) {
	t.Helper()
	store := market.New()
	m := model.Market{ID: "m1", YesTokenID: "yes1", NoTokenID: "no1"}
	store.AddMarket(m)
	c := NewConnector("wss://example.invalid", store, nil)
	return c, store, m
}

func TestApplySnapshotEmitsPriceMessage(t *testing.T) {
	c, _, m := newTestConnector(t)

	f := ParsedFrame{
		Kind:    FrameBookSnapshot,
		AssetID: m.YesTokenID,
		Asks:    []BookLevel{{Price: "0.55", Size: "100"}},
		Bids:    []BookLevel{{Price: "0.54", Size: "200"}},
	}
	c.applySnapshot(f, time.Now())

	select {
	case msg := <-c.Prices:
		if msg.TokenID != m.YesTokenID || msg.BestAsk != 0.55 || msg.BestBid != 0.54 {
			t.Errorf("got %+v", msg)
		}
	default:
		t.Fatal("expected a price message")
	}
}

func TestApplyPriceChangePrefersServerSuppliedBest(t *testing.T) {
	c, _, m := newTestConnector(t)
	c.applySnapshot(ParsedFrame{
		Kind: FrameBookSnapshot, AssetID: m.YesTokenID,
		Asks: []BookLevel{{Price: "0.55", Size: "100"}},
	}, time.Now())
	<-c.Prices

	bestAsk := 0.60
	f := ParsedFrame{
		Kind:    FrameBookPriceChange,
		AssetID: m.YesTokenID,
		Change:  BookChange{Price: "0.55", Side: "SELL", Size: "10"},
		BestAsk: &bestAsk,
	}
	c.applyPriceChange(f, time.Now())

	select {
	case msg := <-c.Prices:
		if msg.BestAsk != 0.60 {
			t.Errorf("got best ask %v, want server-supplied 0.60", msg.BestAsk)
		}
	default:
		t.Fatal("expected a price message")
	}
}

func TestApplyTradeEmitsTradeMessageAndFollowupPrice(t *testing.T) {
	c, _, m := newTestConnector(t)
	c.applySnapshot(ParsedFrame{
		Kind: FrameBookSnapshot, AssetID: m.YesTokenID,
		Asks: []BookLevel{{Price: "0.5", Size: "10"}},
		Bids: []BookLevel{{Price: "0.49", Size: "10"}},
	}, time.Now())
	<-c.Prices

	c.applyTrade(ParsedFrame{Kind: FrameLastTradePrice, AssetID: m.YesTokenID, TradePrice: 0.5}, time.Now())

	select {
	case tr := <-c.Trades:
		if tr.TokenID != m.YesTokenID || tr.Price != 0.5 {
			t.Errorf("got %+v", tr)
		}
	default:
		t.Fatal("expected a trade message")
	}

	select {
	case msg := <-c.Prices:
		if msg.BestAsk != 0.5 || msg.BestBid != 0.49 {
			t.Errorf("expected a followup price message at the current best, got %+v", msg)
		}
	default:
		t.Fatal("expected a followup price message after the trade")
	}
}

// S6 (reconnect backoff half): nextBackoff doubles from the base wait
// up to the cap and stays there, and a successful reconnect is what
// resets the caller's wait variable back to ReconnectBaseWait (see
// Start's "wait = ReconnectBaseWait" after a successful connect).
func TestNextBackoffDoublesUntilCap(t *testing.T) {
	wait := ReconnectBaseWait
	for i := 0; i < 3; i++ {
		wait = nextBackoff(wait)
	}
	if want := ReconnectBaseWait * 8; wait != want {
		t.Errorf("after 3 doublings, wait = %v, want %v", wait, want)
	}

	for i := 0; i < 20; i++ {
		wait = nextBackoff(wait)
	}
	if wait != ReconnectMaxWait {
		t.Errorf("wait = %v, want capped at %v", wait, ReconnectMaxWait)
	}
}

func TestSubscribeTracksAssetIDsForResubscribe(t *testing.T) {
	c, _, m := newTestConnector(t)
	if err := c.Subscribe([]string{m.YesTokenID, m.NoTokenID}); err != nil {
		t.Fatal(err)
	}
	c.mu.Lock()
	n := len(c.assetIDs)
	c.mu.Unlock()
	if n != 2 {
		t.Fatalf("got %d tracked asset ids, want 2", n)
	}

	if err := c.Unsubscribe([]string{m.YesTokenID}); err != nil {
		t.Fatal(err)
	}
	c.mu.Lock()
	_, stillTracked := c.assetIDs[m.YesTokenID]
	c.mu.Unlock()
	if stillTracked {
		t.Fatal("expected yes token removed from tracked set after unsubscribe")
	}
}
