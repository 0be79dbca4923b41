package feed

import (
	"log/slog"
	"testing"
)

func TestParsesBookSnapshotSingleObject(t *testing.T) {
	raw := `{"event_type":"book","asset_id":"tok1","asks":[{"price":"0.55","size":"100"}],"bids":[{"price":"0.54","size":"200"}]}`
	frames := ParseWSFrame(slog.Default(), []byte(raw))
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	f := frames[0]
	if f.Kind != FrameBookSnapshot || f.AssetID != "tok1" {
		t.Fatalf("got %+v", f)
	}
	if len(f.Asks) != 1 || f.Asks[0].Price != "0.55" {
		t.Errorf("asks = %+v", f.Asks)
	}
	if len(f.Bids) != 1 || f.Bids[0].Price != "0.54" {
		t.Errorf("bids = %+v", f.Bids)
	}
}

func TestParsesNewPriceChangeFormat(t *testing.T) {
	raw := `{"event_type":"price_change","market":"0xabc","timestamp":"1757908892351","price_changes":[{"asset_id":"tok1","price":"0.55","size":"200","side":"SELL","best_bid":"0.52","best_ask":"0.55"}]}`
	frames := ParseWSFrame(slog.Default(), []byte(raw))
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	f := frames[0]
	if f.Kind != FrameBookPriceChange || f.AssetID != "tok1" {
		t.Fatalf("got %+v", f)
	}
	if f.Change.Side != "SELL" || f.Change.Price != "0.55" || f.Change.Size != "200" {
		t.Errorf("change = %+v", f.Change)
	}
	if f.BestBid == nil || *f.BestBid != 0.52 {
		t.Errorf("best_bid = %v", f.BestBid)
	}
	if f.BestAsk == nil || *f.BestAsk != 0.55 {
		t.Errorf("best_ask = %v", f.BestAsk)
	}
}

func TestPriceChangeMultipleEntries(t *testing.T) {
	raw := `{"event_type":"price_change","market":"0xabc","price_changes":[{"asset_id":"tok1","price":"0.55","size":"0","side":"SELL","best_bid":"0.52","best_ask":"0.56"},{"asset_id":"tok2","price":"0.45","size":"50","side":"BUY","best_bid":"0.45","best_ask":"0.47"}]}`
	frames := ParseWSFrame(slog.Default(), []byte(raw))
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0].AssetID != "tok1" || frames[0].Change.Side != "SELL" || frames[0].Change.Size != "0" {
		t.Errorf("frame0 = %+v", frames[0])
	}
	if frames[1].AssetID != "tok2" || frames[1].Change.Side != "BUY" {
		t.Errorf("frame1 = %+v", frames[1])
	}
}

func TestEmptyPriceChangesSkipped(t *testing.T) {
	raw := `{"event_type":"price_change","market":"0xabc","price_changes":[]}`
	frames := ParseWSFrame(slog.Default(), []byte(raw))
	if len(frames) != 0 {
		t.Fatalf("got %d frames, want 0", len(frames))
	}
}

func TestParsesLastTradePrice(t *testing.T) {
	raw := `{"event_type":"last_trade_price","asset_id":"tok1","price":"0.57"}`
	frames := ParseWSFrame(slog.Default(), []byte(raw))
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	f := frames[0]
	if f.Kind != FrameLastTradePrice || f.AssetID != "tok1" || f.TradePrice != 0.57 {
		t.Errorf("got %+v", f)
	}
}

func TestUnknownEventTypeReturnsEmpty(t *testing.T) {
	raw := `{"event_type":"some_other_event","asset_id":"tok1"}`
	if frames := ParseWSFrame(slog.Default(), []byte(raw)); len(frames) != 0 {
		t.Fatalf("got %d frames, want 0", len(frames))
	}
}

func TestGarbageReturnsEmpty(t *testing.T) {
	raw := `{"totally":"unrelated"}`
	if frames := ParseWSFrame(slog.Default(), []byte(raw)); len(frames) != 0 {
		t.Fatalf("got %d frames, want 0", len(frames))
	}
}

func TestArrayOfFrames(t *testing.T) {
	raw := `[{"event_type":"book","asset_id":"tok1","asks":[],"bids":[]},{"event_type":"last_trade_price","asset_id":"tok2","price":"0.3"}]`
	frames := ParseWSFrame(slog.Default(), []byte(raw))
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
}

func TestChunkAssetIDsSplitsAt500(t *testing.T) {
	ids := make([]string, 1200)
	for i := range ids {
		ids[i] = "id"
	}
	chunks := chunkAssetIDs(ids)
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}
	if len(chunks[0]) != 500 || len(chunks[1]) != 500 || len(chunks[2]) != 200 {
		t.Errorf("chunk sizes = %d,%d,%d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}

func TestMarshalSubscribeShape(t *testing.T) {
	data, err := marshalSubscribe([]string{"a", "b"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"assets_ids":["a","b"],"type":"market"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}

func TestMarshalUnsubscribeShape(t *testing.T) {
	data, err := marshalUnsubscribe([]string{"a"})
	if err != nil {
		t.Fatal(err)
	}
	want := `{"assets_ids":["a"],"operation":"unsubscribe"}`
	if string(data) != want {
		t.Errorf("got %s, want %s", data, want)
	}
}
