// Package detect implements the Spread Detector (C4): the hot-path
// state machine that turns a stream of per-token best-price ticks into
// arbitrage window Open/Close events.
package detect

import (
	"context"
	"log/slog"
	"sync"
	"time"

	hdrhistogram "github.com/HdrHistogram/hdrhistogram-go"
	"github.com/rickgao/arb-scanner/internal/detect/classify"
	"github.com/rickgao/arb-scanner/internal/model"
)

// Store is the subset of internal/market.Store the Detector touches.
// The per-tick decision path never reads a market's price through
// Store — only structural lookups — so that no shared lock sits on the
// hot path; GetSpreadInputs is used only by the one-shot startup
// hydration audit.
type Store interface {
	GetMarketForToken(tokenID string) (marketID, yesTokenID, noTokenID string, ok bool)
	MarketCount() int
	HydratedMarketCount() int
	AllAssetIDs() []string
	GetSpreadInputs(tokenID string) (marketID string, yesAsk, noAsk, yesBid, noBid float64, ok bool)
}

// Detector consumes price and trade ticks in strict arrival order and
// emits WindowEvents. A panic recovered mid-tick is treated as an
// invariant violation: the offending market's window state is
// dropped (reset to idle) rather than crashing the whole pipeline.
type Detector struct {
	store  Store
	logger *slog.Logger

	Events   chan WindowEvent
	removals chan string

	activeWindows map[string]*activeWindow
	localPrices   map[string][2]float64 // tokenID -> (bestAsk, bestBid)

	priceMsgsProcessed uint64
	startupLogged      bool
	startedAt          time.Time

	windowsOpened uint64
	windowsClosed uint64
	tightestSpread float64
	lastDiagAt     time.Time

	// latencyMu guards latency: the Run goroutine records into it on
	// every tick, but the health/query surface reads it from another
	// goroutine, and hdrhistogram.Histogram is not safe for concurrent
	// record+read without external synchronization.
	latencyMu sync.Mutex
	latency   *hdrhistogram.Histogram
}

// NewDetector builds a Detector reading from store for structural
// lookups and emitting events on the returned Events channel.
func NewDetector(store Store, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now()
	return &Detector{
		store:          store,
		logger:         logger,
		Events:         make(chan WindowEvent, 4096),
		removals:       make(chan string, 256),
		activeWindows:  make(map[string]*activeWindow),
		localPrices:    make(map[string][2]float64),
		startedAt:      now,
		lastDiagAt:     now,
		tightestSpread: negInf,
		latency:        hdrhistogram.New(1, 10_000_000, 3),
	}
}

const negInf = -1e308

// Run drains prices and trades until both channels close or ctx is
// cancelled.
func (d *Detector) Run(ctx context.Context, prices <-chan model.PriceMessage, trades <-chan model.TradeMessage) {
	defer close(d.Events)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-prices:
			if !ok {
				prices = nil
				if trades == nil {
					return
				}
				continue
			}
			d.safeHandlePriceChange(msg)
			d.maybeLogReadiness()
		case trade, ok := <-trades:
			if !ok {
				trades = nil
				if prices == nil {
					return
				}
				continue
			}
			d.handleTrade(trade)
		case marketID := <-d.removals:
			d.RemoveMarket(marketID, time.Now())
		}
	}
}

// RequestRemoval asks the Detector to synthesize a Close (if a window
// is open) for marketID the next time it processes its event loop.
// Safe to call from any goroutine: the Detector's window state is
// single-owner and must only ever be mutated from within Run.
func (d *Detector) RequestRemoval(marketID string) {
	select {
	case d.removals <- marketID:
	default:
		d.logger.Warn("removal queue full, dropping removal request", "market_id", marketID)
	}
}

// safeHandlePriceChange recovers a panic from a single tick's
// processing, logs it, and drops that market's window state rather
// than letting a single bad tick take down the whole detector.
func (d *Detector) safeHandlePriceChange(msg model.PriceMessage) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("detector panic recovered, resetting window state", "token_id", msg.TokenID, "panic", r)
			func() {
				// The lookup that panicked may panic again here; the
				// window then cannot be resolved and is left as is.
				defer func() { _ = recover() }()
				if marketID, _, _, ok := d.store.GetMarketForToken(msg.TokenID); ok {
					delete(d.activeWindows, marketID)
				}
			}()
		}
	}()
	d.HandlePriceChange(msg)
}

// HandlePriceChange implements the per-tick decision procedure:
// update the local cache, resolve both legs, compute the spread, and
// drive the (is_arb, in_window) state machine.
func (d *Detector) HandlePriceChange(msg model.PriceMessage) {
	d.priceMsgsProcessed++

	d.localPrices[msg.TokenID] = [2]float64{msg.BestAsk, msg.BestBid}

	marketID, yesTokenID, noTokenID, ok := d.store.GetMarketForToken(msg.TokenID)
	if !ok {
		return
	}

	yesPrices, ok := d.localPrices[yesTokenID]
	if !ok {
		return
	}
	noPrices, ok := d.localPrices[noTokenID]
	if !ok {
		return
	}
	yesAsk, noAsk := yesPrices[0], noPrices[0]
	if yesAsk <= 0 || noAsk <= 0 {
		return
	}

	combined := yesAsk + noAsk
	spread := 1.0 - combined
	isArb := spread > 0.0
	window, inWindow := d.activeWindows[marketID]

	if spread > d.tightestSpread {
		d.tightestSpread = spread
	}
	d.maybeLogDiagnostics()

	// Detection latency is the monotonic elapsed time from the moment
	// C3 stamped received_at to this decision point. A clock anomaly
	// (a backwards monotonic reading) is clamped to zero rather than
	// recorded as negative.
	elapsed := time.Since(msg.ReceivedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	d.latencyMu.Lock()
	d.latency.RecordValue(elapsed.Microseconds())
	d.latencyMu.Unlock()

	switch {
	case isArb && !inWindow:
		d.openPending(marketID, yesAsk, noAsk, spread, msg.ReceivedAt)
	case isArb && inWindow:
		d.tick(marketID, window, yesAsk, noAsk, msg)
	case !isArb && inWindow:
		if window.pending {
			// Never reached Open (tick_count < MIN_ARB_TICKS): a
			// single-tick glitch that must be discarded silently, not
			// closed and persisted.
			delete(d.activeWindows, marketID)
			return
		}
		window.closingYesAsk, window.closingNoAsk = yesAsk, noAsk
		d.close(marketID, window, msg.ReceivedAt, elapsed)
	default:
		// !isArb && !inWindow: nothing to do.
	}
}

func (d *Detector) openPending(marketID string, yesAsk, noAsk, spread float64, receivedAt time.Time) {
	d.activeWindows[marketID] = &activeWindow{
		openingYesAsk: yesAsk,
		openingNoAsk:  noAsk,
		openingSpread: spread,
		closingYesAsk: yesAsk,
		closingNoAsk:  noAsk,
		openedAt:      receivedAt,
		tickCount:     1,
		prevYesAsk:    yesAsk,
		prevNoAsk:     noAsk,
		pending:       true,
	}
}

func (d *Detector) tick(marketID string, w *activeWindow, yesAsk, noAsk float64, msg model.PriceMessage) {
	w.tickCount++
	w.closingYesAsk, w.closingNoAsk = yesAsk, noAsk

	if absDiff(yesAsk, w.prevYesAsk) > 1e-6 || absDiff(noAsk, w.prevNoAsk) > 1e-6 {
		w.priceShiftTicks++
	}
	w.prevYesAsk = yesAsk
	w.prevNoAsk = noAsk

	if w.pending && w.tickCount >= classify.MinArbTicks {
		w.pending = false
		d.windowsOpened++
		event := model.WindowOpenEvent{
			MarketID:       marketID,
			YesAsk:         w.openingYesAsk,
			NoAsk:          w.openingNoAsk,
			Spread:         w.openingSpread,
			SpreadCategory: model.CategoryForSpread(w.openingSpread),
			OpenedAt:       w.openedAt,
			DetectedAt:     msg.ReceivedAt,
		}
		d.publish(WindowEvent{Open: &event})
	}
}

func (d *Detector) close(marketID string, w *activeWindow, closedAt time.Time, detectionLatency time.Duration) {
	d.windowsClosed++
	delete(d.activeWindows, marketID)
	d.emitClose(marketID, w, closedAt, detectionLatency)
}

func (d *Detector) emitClose(marketID string, w *activeWindow, closedAt time.Time, detectionLatency time.Duration) {
	durationMs := float64(closedAt.Sub(w.openedAt).Microseconds()) / 1000.0

	obs := model.WindowObservables{
		TickCount:         w.tickCount,
		TradeEventFired:   w.tradeEventFired,
		VolumeChangeTicks: w.volumeChangeTicks,
		PriceShifted:      w.priceShiftTicks > 1,
	}

	openClass, closeReason := classify.Classify(obs)
	oppClass := classify.OpportunityClass(openClass, closeReason)

	closingSpread := 1.0 - (w.closingYesAsk + w.closingNoAsk)

	event := model.WindowCloseEvent{
		MarketID: marketID,

		OpeningYesAsk:         w.openingYesAsk,
		OpeningNoAsk:          w.openingNoAsk,
		OpeningSpread:         w.openingSpread,
		OpeningSpreadCategory: model.CategoryForSpread(w.openingSpread),

		ClosingYesAsk:         w.closingYesAsk,
		ClosingNoAsk:          w.closingNoAsk,
		ClosingSpread:         closingSpread,
		ClosingSpreadCategory: model.CategoryForSpread(closingSpread),

		OpenedAt:          w.openedAt,
		ClosedAt:          closedAt,
		DurationMs:        durationMs,
		OpenDurationClass: openClass,
		CloseReason:       closeReason,
		OpportunityClass:  oppClass,
		Observables:       obs,
		DetectionLatency:  detectionLatency,
	}
	d.publish(WindowEvent{Close: &event})
}

func (d *Detector) handleTrade(trade model.TradeMessage) {
	marketID, _, _, ok := d.store.GetMarketForToken(trade.TokenID)
	if !ok {
		return
	}
	w, ok := d.activeWindows[marketID]
	if !ok {
		return
	}
	if !w.tradeEventFired {
		w.tradeEventFired = true
		w.volumeChangeTicks = 1
	} else {
		w.volumeChangeTicks++
	}
}

func (d *Detector) publish(ev WindowEvent) {
	select {
	case d.Events <- ev:
	default:
		d.logger.Warn("window event channel full, dropping event")
	}
}

func absDiff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

// RemoveMarket synthesizes a Close event for any window that has
// reached Open on a market the Subscription Controller has removed
// from the Store, so an expiring market never leaves a window dangling
// forever. Per spec, removal only synthesizes a Close for an Open
// window; a window still Pending at removal is a single-tick glitch
// and is discarded silently, same as the non-arb transition. Only safe
// to call from the Run goroutine itself (tests) or via RequestRemoval
// (production callers on another goroutine).
func (d *Detector) RemoveMarket(marketID string, at time.Time) {
	w, ok := d.activeWindows[marketID]
	if !ok {
		return
	}
	delete(d.activeWindows, marketID)
	if w.pending {
		return
	}
	d.windowsClosed++
	d.emitClose(marketID, w, at, 0)
}
