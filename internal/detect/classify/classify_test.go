package classify

import (
	"testing"

	"github.com/rickgao/arb-scanner/internal/model"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name       string
		obs        model.WindowObservables
		wantOpen   model.OpenDurationClass
		wantReason *model.CloseReason
	}{
		{
			name:       "single_tick_is_noise",
			obs:        model.WindowObservables{TickCount: 1},
			wantOpen:   model.SingleTick,
			wantReason: nil,
		},
		{
			name: "multi_tick_gradual_spike",
			obs: model.WindowObservables{
				TickCount: 3, TradeEventFired: true, VolumeChangeTicks: 2,
			},
			wantOpen:   model.MultiTick,
			wantReason: reason(model.CloseVolumeSpikeGradual),
		},
		{
			name: "multi_tick_instant_spike",
			obs: model.WindowObservables{
				TickCount: 3, TradeEventFired: true, VolumeChangeTicks: 1,
			},
			wantOpen:   model.MultiTick,
			wantReason: reason(model.CloseVolumeSpikeInstant),
		},
		{
			name: "multi_tick_price_drift",
			obs: model.WindowObservables{
				TickCount: 3, TradeEventFired: false, PriceShifted: true,
			},
			wantOpen:   model.MultiTick,
			wantReason: reason(model.ClosePriceDrift),
		},
		{
			name: "multi_tick_order_vanished",
			obs: model.WindowObservables{
				TickCount: 3, TradeEventFired: false, PriceShifted: false,
			},
			wantOpen:   model.MultiTick,
			wantReason: reason(model.CloseOrderVanished),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gotOpen, gotReason := Classify(tc.obs)
			if gotOpen != tc.wantOpen {
				t.Errorf("open class = %v, want %v", gotOpen, tc.wantOpen)
			}
			if (gotReason == nil) != (tc.wantReason == nil) {
				t.Fatalf("reason = %v, want %v", gotReason, tc.wantReason)
			}
			if gotReason != nil && *gotReason != *tc.wantReason {
				t.Errorf("reason = %v, want %v", *gotReason, *tc.wantReason)
			}
		})
	}
}

func TestOpportunityClass(t *testing.T) {
	cases := []struct {
		name   string
		open   model.OpenDurationClass
		reason *model.CloseReason
		want   int
	}{
		{"noise", model.SingleTick, nil, 0},
		{"best", model.MultiTick, reason(model.CloseVolumeSpikeGradual), 1},
		{"good", model.MultiTick, reason(model.ClosePriceDrift), 2},
		{"fast_required", model.MultiTick, reason(model.CloseVolumeSpikeInstant), 3},
		{"low_value", model.MultiTick, reason(model.CloseOrderVanished), 4},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := OpportunityClass(tc.open, tc.reason); got != tc.want {
				t.Errorf("OpportunityClass() = %d, want %d", got, tc.want)
			}
		})
	}
}

// TestClassifyIsPure checks invariant 4: identical observables always
// yield identical results.
func TestClassifyIsPure(t *testing.T) {
	obs := model.WindowObservables{TickCount: 4, TradeEventFired: true, VolumeChangeTicks: 3}
	open1, reason1 := Classify(obs)
	open2, reason2 := Classify(obs)
	if open1 != open2 || *reason1 != *reason2 {
		t.Fatal("Classify is not pure")
	}
}

func reason(r model.CloseReason) *model.CloseReason {
	return &r
}
