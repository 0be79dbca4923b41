package model

import "time"

// PriceMessage is emitted by the Feed Connector after applying a book
// snapshot or a price change to a single token's order book. ReceivedAt
// is stamped at the earliest point the frame entered the process and
// travels with the message for the lifetime of that tick.
//
// The trade/volume signal travels separately on TradeMessage rather
// than as flags on this struct: the Connector has no wire-level way to
// tell a genuine trade-driven volume change apart from an ordinary
// book-depth update, so folding that signal into every Price Message
// would make the Detector see "volume changed" on effectively every
// tick. TradeMessage carries only the ticks that are actually
// trade-driven.
type PriceMessage struct {
	TokenID    string
	BestAsk    float64
	BestBid    float64
	ReceivedAt time.Time
}

// TradeMessage is emitted by the Feed Connector on a last_trade_price
// frame. It only carries enough information for the Detector to flag
// volume activity on the owning market.
type TradeMessage struct {
	TokenID    string
	Price      float64
	ReceivedAt time.Time
}
