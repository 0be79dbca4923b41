package detect

import "time"

// activeWindow tracks state for a currently open arbitrage window on
// one market, from the tick that first saw spread>0 through the tick
// that closes it.
type activeWindow struct {
	// openingYesAsk/openingNoAsk/openingSpread are fixed at the tick
	// that first created the window and never change afterward.
	openingYesAsk, openingNoAsk float64
	openingSpread               float64
	openedAt                    time.Time
	tickCount                   int

	// closingYesAsk/closingNoAsk track the most recently observed tick
	// so the eventual Close (whether the spread vanished or the market
	// was removed mid-window) reports the prices as of that tick, not
	// the opening ones.
	closingYesAsk, closingNoAsk float64

	// prevYesAsk/prevNoAsk let each tick detect gradual price drift
	// relative to the previous tick in this window.
	prevYesAsk, prevNoAsk float64

	tradeEventFired   bool
	volumeChangeTicks int
	priceShiftTicks   int

	// pending is true until tickCount reaches classify.MinArbTicks. A
	// window that goes non-arb (or is removed) while still pending is a
	// single-tick glitch: it must be discarded silently, with no Open
	// and no Close, rather than persisted.
	pending bool
}
