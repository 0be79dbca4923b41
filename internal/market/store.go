// Package market implements the Market Store (C2): a concurrent
// directory of markets, the token->market reverse map, and per-token
// order books with cached best bid/ask.
//
// Reads and writes must be safe under concurrent access from the Feed
// Connector (the sole writer) and any reader (query surface, the
// Detector's lookups); each token's book state is
// serialised independently. The map of markets/tokens is guarded by a
// single RWMutex for structural changes only (add/remove market, which
// are infrequent, driven by the Subscription Controller); book
// mutation and best-price reads take the much finer per-token lock, so
// no global lock sits on the per-message hot path.
package market

import (
	"sync"

	"github.com/rickgao/arb-scanner/internal/model"
)

type tokenRef struct {
	marketID string
	isYes    bool
}

type tokenRecord struct {
	mu      sync.RWMutex
	book    *OrderBook
	bestAsk float64
	bestBid float64
	hasBest bool
}

// Store is the concurrent market directory. Zero value is not usable;
// construct with New.
type Store struct {
	mu            sync.RWMutex
	markets       map[string]model.Market
	tokenToMarket map[string]tokenRef
	tokens        map[string]*tokenRecord
	pinned        map[string]struct{}
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		markets:       make(map[string]model.Market),
		tokenToMarket: make(map[string]tokenRef),
		tokens:        make(map[string]*tokenRecord),
		pinned:        make(map[string]struct{}),
	}
}

// AddMarket registers a market and both of its outcome tokens. Safe to
// call again for an already-known market id (idempotent upsert).
func (s *Store) AddMarket(m model.Market) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.markets[m.ID] = m
	s.tokenToMarket[m.YesTokenID] = tokenRef{marketID: m.ID, isYes: true}
	s.tokenToMarket[m.NoTokenID] = tokenRef{marketID: m.ID, isYes: false}
	if _, ok := s.tokens[m.YesTokenID]; !ok {
		s.tokens[m.YesTokenID] = &tokenRecord{book: newOrderBook()}
	}
	if _, ok := s.tokens[m.NoTokenID]; !ok {
		s.tokens[m.NoTokenID] = &tokenRecord{book: newOrderBook()}
	}
}

// AddMarkets registers a batch of markets.
func (s *Store) AddMarkets(ms []model.Market) {
	for _, m := range ms {
		s.AddMarket(m)
	}
}

// RemoveMarket deletes a market, its token reverse-map entries, its
// order books, and clears its pinned status. No-op if unknown.
func (s *Store) RemoveMarket(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.markets[id]
	if !ok {
		return
	}
	delete(s.tokenToMarket, m.YesTokenID)
	delete(s.tokenToMarket, m.NoTokenID)
	delete(s.tokens, m.YesTokenID)
	delete(s.tokens, m.NoTokenID)
	delete(s.markets, id)
	delete(s.pinned, id)
}

// MarketsContains reports whether a market id is currently tracked.
func (s *Store) MarketsContains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.markets[id]
	return ok
}

// GetMarket returns the market by id.
func (s *Store) GetMarket(id string) (model.Market, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markets[id]
	return m, ok
}

// PinMarket marks a market as exempt from the normal remove-if-absent
// policy; it is managed instead by the pinned-market watcher.
func (s *Store) PinMarket(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pinned[id] = struct{}{}
}

// IsPinned reports whether a market id is pinned.
func (s *Store) IsPinned(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.pinned[id]
	return ok
}

// GetMarketForToken resolves a token id to its owning market and the
// pair of outcome token ids, without touching any price state. This is
// the only lookup the Detector is allowed to make against the Store on
// its hot path: identifiers only, never a market handle, so a
// concurrent RemoveMarket can never leave the Detector holding a
// dangling reference.
func (s *Store) GetMarketForToken(tokenID string) (marketID, yesTokenID, noTokenID string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, found := s.tokenToMarket[tokenID]
	if !found {
		return "", "", "", false
	}
	m, found := s.markets[ref.marketID]
	if !found {
		return "", "", "", false
	}
	return m.ID, m.YesTokenID, m.NoTokenID, true
}

// TokenIDsForMarket returns a market's outcome token ids.
func (s *Store) TokenIDsForMarket(marketID string) (yes, no string, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, found := s.markets[marketID]
	if !found {
		return "", "", false
	}
	return m.YesTokenID, m.NoTokenID, true
}

func (s *Store) tokenRecord(tokenID string) (*tokenRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.tokens[tokenID]
	return rec, ok
}

// ApplyBookSnapshot replaces a token's book wholesale. It returns the
// recomputed best ask/bid and ok=true if the token is known AND the
// resulting book hydrated at least one side (best_ask>0 OR best_bid>0).
// A snapshot that clears a token down to nothing does not poison the
// cache: the previous cached best survives, and ok is false so callers
// know not to route a price message onward for it.
func (s *Store) ApplyBookSnapshot(tokenID string, asks, bids []PriceLevel) (bestAsk, bestBid float64, ok bool) {
	rec, found := s.tokenRecord(tokenID)
	if !found {
		return 0, 0, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.book.ApplySnapshot(asks, bids)
	ask, hasAsk := rec.book.BestAsk()
	bid, hasBid := rec.book.BestBid()
	if !hasAsk {
		ask = 0
	}
	if !hasBid {
		bid = 0
	}
	if ask <= 0 && bid <= 0 {
		return 0, 0, false
	}
	rec.bestAsk = ask
	rec.bestBid = bid
	rec.hasBest = true
	return ask, bid, true
}

// ApplyBookChanges applies a single incremental level change and
// returns the recomputed best ask/bid. Unlike ApplyBookSnapshot, ok
// reflects only whether the token is known — the book is always
// updated and the cache always refreshed, even if the change empties
// both sides, matching the upstream behaviour of never discarding an
// incremental update.
func (s *Store) ApplyBookChanges(tokenID string, price float64, isAsk bool, size float64) (bestAsk, bestBid float64, ok bool) {
	rec, found := s.tokenRecord(tokenID)
	if !found {
		return 0, 0, false
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()

	rec.book.ApplyChange(price, isAsk, size)
	ask, hasAsk := rec.book.BestAsk()
	bid, hasBid := rec.book.BestBid()
	if !hasAsk {
		ask = 0
	}
	if !hasBid {
		bid = 0
	}
	rec.bestAsk = ask
	rec.bestBid = bid
	rec.hasBest = true
	return ask, bid, true
}

// BestPrices returns the cached best ask/bid for a token.
func (s *Store) BestPrices(tokenID string) (ask, bid float64, ok bool) {
	rec, found := s.tokenRecord(tokenID)
	if !found {
		return 0, 0, false
	}
	rec.mu.RLock()
	defer rec.mu.RUnlock()
	if !rec.hasBest {
		return 0, 0, false
	}
	return rec.bestAsk, rec.bestBid, true
}

// GetSpreadInputs returns the four prices needed to evaluate a market's
// spread, iff both outcome tokens are known and both best-ask values
// are hydrated and strictly positive. Otherwise it returns the
// "not ready" signal (ok=false).
func (s *Store) GetSpreadInputs(tokenID string) (marketID string, yesAsk, noAsk, yesBid, noBid float64, ok bool) {
	mID, yesTok, noTok, found := s.GetMarketForToken(tokenID)
	if !found {
		return "", 0, 0, 0, 0, false
	}
	ya, yb, yok := s.BestPrices(yesTok)
	na, nb, nok := s.BestPrices(noTok)
	if !yok || !nok || ya <= 0 || na <= 0 {
		return "", 0, 0, 0, 0, false
	}
	return mID, ya, na, yb, nb, true
}

// MarketCount returns the number of tracked markets.
func (s *Store) MarketCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.markets)
}

// HydratedMarketCount returns the number of markets for which both
// outcome tokens have observed at least one best price.
func (s *Store) HydratedMarketCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, m := range s.markets {
		yesRec, yesOK := s.tokens[m.YesTokenID]
		noRec, noOK := s.tokens[m.NoTokenID]
		if !yesOK || !noOK {
			continue
		}
		yesRec.mu.RLock()
		yh := yesRec.hasBest
		yesRec.mu.RUnlock()
		noRec.mu.RLock()
		nh := noRec.hasBest
		noRec.mu.RUnlock()
		if yh && nh {
			count++
		}
	}
	return count
}

// AllAssetIDs returns every tracked token id; the Detector's startup
// hydration audit walks it to sample hydrated markets.
func (s *Store) AllAssetIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.tokens))
	for id := range s.tokens {
		ids = append(ids, id)
	}
	return ids
}

// AllMarketIDs returns every tracked market id.
func (s *Store) AllMarketIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.markets))
	for id := range s.markets {
		ids = append(ids, id)
	}
	return ids
}

// PinnedIDs returns every currently pinned market id.
func (s *Store) PinnedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.pinned))
	for id := range s.pinned {
		ids = append(ids, id)
	}
	return ids
}
