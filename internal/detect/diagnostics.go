package detect

import (
	"time"
)

// maybeLogReadiness logs a one-time snapshot 10 seconds after startup
// showing how many markets have both sides populated in the Store.
func (d *Detector) maybeLogReadiness() {
	if d.startupLogged {
		return
	}
	if time.Since(d.startedAt) < 10*time.Second {
		return
	}
	d.startupLogged = true

	total := d.store.MarketCount()
	hydrated := d.store.HydratedMarketCount()
	d.logger.Info("10s readiness snapshot",
		"total_markets", total,
		"hydrated_markets", hydrated,
		"price_msgs_processed", d.priceMsgsProcessed,
	)
	d.logHydrationAudit()
}

// logHydrationAudit dumps full price info for up to 5 hydrated markets,
// a one-shot startup sanity check that the ask/bid/mid/spread math
// lines up with what the feed is actually sending.
func (d *Detector) logHydrationAudit() {
	count := 0
	seen := make(map[string]struct{})
	for _, assetID := range d.store.AllAssetIDs() {
		if count >= 5 {
			break
		}
		marketID, yesAsk, noAsk, yesBid, noBid, ok := d.store.GetSpreadInputs(assetID)
		if !ok {
			continue
		}
		if _, dup := seen[marketID]; dup {
			continue
		}
		seen[marketID] = struct{}{}
		count++

		d.logger.Info("hydration audit sample",
			"market_id", marketID,
			"yes_ask", yesAsk, "yes_bid", yesBid,
			"no_ask", noAsk, "no_bid", noBid,
			"combined_ask", yesAsk+noAsk,
			"spread", 1.0-(yesAsk+noAsk),
		)
	}
	if count == 0 {
		d.logger.Warn("hydration audit: no markets have both sides populated yet")
	}
}

// maybeLogDiagnostics logs a 30-second rollup of tick volume, window
// open/close counts, and latency percentiles, then resets the
// tightest-spread-this-window tracker.
func (d *Detector) maybeLogDiagnostics() {
	if time.Since(d.lastDiagAt) < 30*time.Second {
		return
	}
	tightest := d.tightestSpread
	d.tightestSpread = negInf
	d.lastDiagAt = time.Now()

	p50, p95, p99 := d.LatencySnapshot()
	d.logger.Info("30s detector diagnostics",
		"price_msgs", d.priceMsgsProcessed,
		"windows_opened", d.windowsOpened,
		"windows_closed", d.windowsClosed,
		"active_windows", len(d.activeWindows),
		"tightest_spread", tightest,
		"latency_p50_us", p50,
		"latency_p95_us", p95,
		"latency_p99_us", p99,
	)
}

// LatencySnapshot returns the p50/p95/p99 detection latency in
// microseconds, safe to call from any goroutine (the health endpoint
// and metrics scraper read this while Run keeps recording into it).
func (d *Detector) LatencySnapshot() (p50, p95, p99 int64) {
	d.latencyMu.Lock()
	defer d.latencyMu.Unlock()
	return d.latency.ValueAtQuantile(50), d.latency.ValueAtQuantile(95), d.latency.ValueAtQuantile(99)
}
