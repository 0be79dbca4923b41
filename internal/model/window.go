package model

import "time"

// WindowOpenEvent is emitted once a window's pending tick count reaches
// MinArbTicks. The opening prices are those recorded on the tick that
// first created the window, not the tick that confirmed it.
type WindowOpenEvent struct {
	MarketID       string
	YesAsk         float64
	NoAsk          float64
	Spread         float64
	SpreadCategory SpreadCategory
	OpenedAt       time.Time
	DetectedAt     time.Time
}

// WindowCloseEvent is emitted when a market transitions out of an Open
// window, either because the spread vanished or because the market was
// removed from the watched set mid-window (a synthetic close). It
// carries both the opening prices (as first recorded on the window)
// and the closing prices (as observed on the tick that ended it), so
// the persisted row never loses one in favor of the other.
type WindowCloseEvent struct {
	MarketID string

	OpeningYesAsk         float64
	OpeningNoAsk          float64
	OpeningSpread         float64
	OpeningSpreadCategory SpreadCategory

	ClosingYesAsk         float64
	ClosingNoAsk          float64
	ClosingSpread         float64
	ClosingSpreadCategory SpreadCategory

	OpenedAt          time.Time
	ClosedAt          time.Time
	DurationMs        float64
	OpenDurationClass OpenDurationClass
	CloseReason       *CloseReason
	OpportunityClass  int
	Observables       WindowObservables
	DetectionLatency  time.Duration
}
