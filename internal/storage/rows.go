package storage

import (
	"github.com/rickgao/arb-scanner/internal/model"
)

type windowOpenRow struct {
	MarketID       string
	OpenedAtNs     int64
	YesAsk         float64
	NoAsk          float64
	CombinedCost   float64
	Spread         float64
	SpreadCategory string
}

type windowCloseRow struct {
	MarketID   string
	OpenedAtNs int64
	ClosedAtNs int64
	DurationMs float64

	// Opening* is only used for the INSERT fallback when the matching
	// Open row was never written (overflow, or reordering) — the
	// UPDATE path never touches these columns, since a prior Open
	// insert already set them.
	OpeningYesAsk         float64
	OpeningNoAsk          float64
	OpeningCombinedCost   float64
	OpeningSpread         float64
	OpeningSpreadCategory string

	ClosingYesAsk         float64
	ClosingNoAsk          float64
	ClosingCombinedCost   float64
	ClosingSpread         float64
	ClosingSpreadCategory string

	OpenDurationClass  string
	CloseReason        *string
	TickCount          int
	VolumeChanged      bool
	VolumeChangeTicks  int
	PriceShifted       bool
	OpportunityClass   int
	DetectionLatencyUs int64
}

func transformOpen(o *model.WindowOpenEvent) windowOpenRow {
	return windowOpenRow{
		MarketID:       o.MarketID,
		OpenedAtNs:     o.OpenedAt.UnixNano(),
		YesAsk:         o.YesAsk,
		NoAsk:          o.NoAsk,
		CombinedCost:   o.YesAsk + o.NoAsk,
		Spread:         o.Spread,
		SpreadCategory: string(o.SpreadCategory),
	}
}

func transformClose(w *model.WindowCloseEvent) windowCloseRow {
	var closeReason *string
	if w.CloseReason != nil {
		s := string(*w.CloseReason)
		closeReason = &s
	}
	return windowCloseRow{
		MarketID:   w.MarketID,
		OpenedAtNs: w.OpenedAt.UnixNano(),
		ClosedAtNs: w.ClosedAt.UnixNano(),
		DurationMs: w.DurationMs,

		OpeningYesAsk:         w.OpeningYesAsk,
		OpeningNoAsk:          w.OpeningNoAsk,
		OpeningCombinedCost:   w.OpeningYesAsk + w.OpeningNoAsk,
		OpeningSpread:         w.OpeningSpread,
		OpeningSpreadCategory: string(w.OpeningSpreadCategory),

		ClosingYesAsk:         w.ClosingYesAsk,
		ClosingNoAsk:          w.ClosingNoAsk,
		ClosingCombinedCost:   w.ClosingYesAsk + w.ClosingNoAsk,
		ClosingSpread:         w.ClosingSpread,
		ClosingSpreadCategory: string(w.ClosingSpreadCategory),

		OpenDurationClass:  string(w.OpenDurationClass),
		CloseReason:        closeReason,
		TickCount:          w.Observables.TickCount,
		VolumeChanged:      w.Observables.TradeEventFired,
		VolumeChangeTicks:  w.Observables.VolumeChangeTicks,
		PriceShifted:       w.Observables.PriceShifted,
		OpportunityClass:   w.OpportunityClass,
		DetectionLatencyUs: w.DetectionLatency.Microseconds(),
	}
}
