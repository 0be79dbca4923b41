package storage

import (
	"context"
	"testing"
	"time"

	"github.com/rickgao/arb-scanner/internal/detect"
	"github.com/rickgao/arb-scanner/internal/model"
)

type fakeInput struct {
	events []detect.WindowEvent
}

func (f *fakeInput) TryReceive() (detect.WindowEvent, bool) {
	if len(f.events) == 0 {
		return detect.WindowEvent{}, false
	}
	ev := f.events[0]
	f.events = f.events[1:]
	return ev, true
}

func TestTransformOpen(t *testing.T) {
	openedAt := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	o := &model.WindowOpenEvent{
		MarketID: "m1", YesAsk: 0.45, NoAsk: 0.50, Spread: 0.05,
		SpreadCategory: model.SpreadMedium, OpenedAt: openedAt,
	}

	row := transformOpen(o)

	if row.MarketID != "m1" {
		t.Errorf("MarketID = %s, want m1", row.MarketID)
	}
	if row.CombinedCost != 0.95 {
		t.Errorf("CombinedCost = %v, want 0.95", row.CombinedCost)
	}
	if row.OpenedAtNs != openedAt.UnixNano() {
		t.Errorf("OpenedAtNs mismatch")
	}
}

func TestTransformCloseWithReason(t *testing.T) {
	reason := model.ClosePriceDrift
	w := &model.WindowCloseEvent{
		MarketID:              "m1",
		OpeningYesAsk:         0.45,
		OpeningNoAsk:          0.50,
		OpeningSpread:         0.05,
		OpeningSpreadCategory: model.SpreadMedium,
		ClosingYesAsk:         0.50,
		ClosingNoAsk:          0.55,
		ClosingSpread:         -0.05,
		ClosingSpreadCategory: model.SpreadNoise,
		OpenDurationClass:     model.MultiTick,
		CloseReason:           &reason, OpportunityClass: 3,
		Observables:      model.WindowObservables{TickCount: 4, TradeEventFired: true, VolumeChangeTicks: 2, PriceShifted: true},
		DetectionLatency: 150 * time.Microsecond,
	}

	row := transformClose(w)

	if row.CloseReason == nil || *row.CloseReason != string(model.ClosePriceDrift) {
		t.Fatalf("CloseReason = %v, want price_drift", row.CloseReason)
	}
	if row.ClosingCombinedCost != 1.05 {
		t.Errorf("ClosingCombinedCost = %v, want 1.05", row.ClosingCombinedCost)
	}
	if row.OpeningCombinedCost != 0.95 {
		t.Errorf("OpeningCombinedCost = %v, want 0.95", row.OpeningCombinedCost)
	}
	if row.TickCount != 4 || !row.VolumeChanged || row.VolumeChangeTicks != 2 || !row.PriceShifted {
		t.Errorf("observables not carried through: %+v", row)
	}
	if row.DetectionLatencyUs != 150 {
		t.Errorf("DetectionLatencyUs = %d, want 150", row.DetectionLatencyUs)
	}
}

func TestTransformCloseWithoutReason(t *testing.T) {
	w := &model.WindowCloseEvent{MarketID: "m1"}
	row := transformClose(w)
	if row.CloseReason != nil {
		t.Errorf("CloseReason = %v, want nil for a reason-less close", row.CloseReason)
	}
}

func TestWriterHandleEventAddsToBatch(t *testing.T) {
	cfg := Config{BatchSize: 100, FlushInterval: time.Hour}
	w := NewWriter(cfg, &fakeInput{}, nil, nil)

	w.handleEvent(detect.WindowEvent{Open: &model.WindowOpenEvent{MarketID: "m1"}})
	w.handleEvent(detect.WindowEvent{Close: &model.WindowCloseEvent{MarketID: "m1"}})

	w.batchMu.Lock()
	opens, closes := len(w.openBatch), len(w.closeBatch)
	w.batchMu.Unlock()

	if opens != 1 || closes != 1 {
		t.Errorf("got opens=%d closes=%d, want 1 and 1", opens, closes)
	}
}

func TestWriterLifecycle(t *testing.T) {
	cfg := Config{BatchSize: 10, FlushInterval: 100 * time.Millisecond}
	w := NewWriter(cfg, &fakeInput{}, nil, nil)

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := w.Stop(stopCtx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
}

func TestWriterStatsStartsAtZero(t *testing.T) {
	w := NewWriter(DefaultConfig(), &fakeInput{}, nil, nil)
	stats := w.Stats()
	if stats.OpenInserts != 0 || stats.CloseUpdates != 0 || stats.Errors != 0 {
		t.Errorf("expected zeroed metrics, got %+v", stats)
	}
}
