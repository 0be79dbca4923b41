package market

import "math"

// priceScale quantises a dollar price to a fixed-point integer key with
// four decimal places of precision, matching the upstream feed's tick
// size.
const priceScale = 10000.0

func priceKey(price float64) int32 {
	return int32(math.Round(price * priceScale))
}

func keyToPrice(key int32) float64 {
	return float64(key) / priceScale
}

// OrderBook holds one token's two-sided book, keyed by the quantised
// price. Every entry has size > 0; best_ask is the minimum ask key,
// best_bid is the maximum bid key. Never trust a best price carried on
// the wire — it is always recomputed here.
type OrderBook struct {
	asks map[int32]float64
	bids map[int32]float64
}

func newOrderBook() *OrderBook {
	return &OrderBook{
		asks: make(map[int32]float64),
		bids: make(map[int32]float64),
	}
}

// ApplySnapshot replaces the book wholesale with the given levels,
// keeping only strictly positive sizes.
func (b *OrderBook) ApplySnapshot(asks, bids []PriceLevel) {
	b.asks = make(map[int32]float64, len(asks))
	b.bids = make(map[int32]float64, len(bids))
	for _, lvl := range asks {
		if lvl.Size > 0 {
			b.asks[priceKey(lvl.Price)] = lvl.Size
		}
	}
	for _, lvl := range bids {
		if lvl.Size > 0 {
			b.bids[priceKey(lvl.Price)] = lvl.Size
		}
	}
}

// ApplyChange upserts or deletes a single level. size == 0 deletes the
// level at that price; a positive size inserts or overwrites it.
func (b *OrderBook) ApplyChange(price float64, isAsk bool, size float64) {
	side := b.bids
	if isAsk {
		side = b.asks
	}
	key := priceKey(price)
	if size == 0 {
		delete(side, key)
	} else {
		side[key] = size
	}
}

// BestAsk returns the minimum ask key's price, or (0, false) if the
// book has no asks.
func (b *OrderBook) BestAsk() (float64, bool) {
	var best int32
	found := false
	for k := range b.asks {
		if !found || k < best {
			best = k
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return keyToPrice(best), true
}

// BestBid returns the maximum bid key's price, or (0, false) if the
// book has no bids.
func (b *OrderBook) BestBid() (float64, bool) {
	var best int32
	found := false
	for k := range b.bids {
		if !found || k > best {
			best = k
			found = true
		}
	}
	if !found {
		return 0, false
	}
	return keyToPrice(best), true
}

// PriceLevel is a single (price, size) pair on one side of a book.
type PriceLevel struct {
	Price float64
	Size  float64
}
