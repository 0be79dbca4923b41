// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - WebSocket connection state
//   - Window Consumer buffer depth
//   - Persistence Writer batch/flush counts
//   - Detection latency histogram (registered; nothing records into
//     it — the Detector's latency lives in its own HDR histogram)
//   - Catalog fetch admission outcomes
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/arb-scanner/internal/storage"
)

// Registry bundles every Prometheus collector the scanner exposes. A
// dedicated prometheus.Registry (rather than the global default) keeps
// repeated construction in tests from panicking on double-registration.
type Registry struct {
	reg *prometheus.Registry

	WSConnected prometheus.Gauge

	WriterQueueDepth  prometheus.Gauge
	WriterOpenInserts  prometheus.Counter
	WriterCloseUpdates prometheus.Counter
	WriterCloseInserts prometheus.Counter
	WriterErrors       prometheus.Counter
	WriterFlushes      prometheus.Counter

	DetectionLatencyUs prometheus.Histogram

	CatalogQualified *prometheus.CounterVec

	// prevMu guards the last-seen writer totals: RecordWriterStats is
	// handed cumulative counters but prometheus.Counter only supports
	// Add, so each call adds the delta since the previous call.
	prevMu   sync.Mutex
	prevStat storage.Metrics
}

// New builds and registers every collector against a fresh registry.
func New() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		reg: reg,
		WSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_ws_connected",
			Help: "1 if the feed connector's WebSocket is currently connected, else 0.",
		}),
		WriterQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_writer_queue_depth",
			Help: "Number of window events buffered ahead of the persistence writer.",
		}),
		WriterOpenInserts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_writer_open_inserts_total",
			Help: "Total window-open rows inserted.",
		}),
		WriterCloseUpdates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_writer_close_updates_total",
			Help: "Total window-close rows written by updating an open row.",
		}),
		WriterCloseInserts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_writer_close_inserts_total",
			Help: "Total window-close rows written by a fallback complete-row insert.",
		}),
		WriterErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_writer_errors_total",
			Help: "Total batch write failures.",
		}),
		WriterFlushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scanner_writer_flushes_total",
			Help: "Total flush cycles run by the persistence writer.",
		}),
		DetectionLatencyUs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scanner_detection_latency_microseconds",
			Help:    "Wall-clock microseconds from a tick's received_at to the detector's decision.",
			Buckets: prometheus.ExponentialBuckets(10, 2, 16),
		}),
		CatalogQualified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_catalog_outcomes_total",
			Help: "Catalog admission outcomes by reason (qualified, no_tokens, no_outcomes, low_volume, low_liquidity, expiry).",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		r.WSConnected,
		r.WriterQueueDepth,
		r.WriterOpenInserts,
		r.WriterCloseUpdates,
		r.WriterCloseInserts,
		r.WriterErrors,
		r.WriterFlushes,
		r.DetectionLatencyUs,
		r.CatalogQualified,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return r
}

// Handler returns the Prometheus scrape handler for this registry.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// SetWSConnected mirrors the feed connection state into the gauge.
func (r *Registry) SetWSConnected(connected bool) {
	if connected {
		r.WSConnected.Set(1)
	} else {
		r.WSConnected.Set(0)
	}
}

// RecordWriterStats mirrors the writer's cumulative counters into the
// registry. The writer hands back running totals (storage.Metrics),
// and prometheus.Counter only supports Add, so each call adds the
// delta since the previous call.
func (r *Registry) RecordWriterStats(queueDepth int, stats storage.Metrics) {
	r.WriterQueueDepth.Set(float64(queueDepth))

	r.prevMu.Lock()
	defer r.prevMu.Unlock()

	r.WriterOpenInserts.Add(float64(delta(stats.OpenInserts, r.prevStat.OpenInserts)))
	r.WriterCloseUpdates.Add(float64(delta(stats.CloseUpdates, r.prevStat.CloseUpdates)))
	r.WriterCloseInserts.Add(float64(delta(stats.CloseInserts, r.prevStat.CloseInserts)))
	r.WriterErrors.Add(float64(delta(stats.Errors, r.prevStat.Errors)))
	r.WriterFlushes.Add(float64(delta(stats.Flushes, r.prevStat.Flushes)))

	r.prevStat = stats
}

// delta returns cur-prev, clamped to zero if the counter somehow went
// backwards (a writer restart resetting its in-memory Metrics).
func delta(cur, prev int64) int64 {
	if cur < prev {
		return 0
	}
	return cur - prev
}

// CatalogOutcome records one catalog admission decision.
func (r *Registry) CatalogOutcome(outcome string) {
	r.CatalogQualified.WithLabelValues(outcome).Inc()
}

// RecordCatalogFetch adds one fetch cycle's admission-gate rejection
// counts to the catalog outcome counters. Each cycle's counts are
// fresh (the catalog client re-evaluates every candidate from the
// Gamma API on every poll), so these are added rather than
// delta-tracked like the writer counters.
func (r *Registry) RecordCatalogFetch(qualified, noTokens, noOutcomes, lowVolume, lowLiquidity, expiry int) {
	r.CatalogQualified.WithLabelValues("qualified").Add(float64(qualified))
	r.CatalogQualified.WithLabelValues("no_tokens").Add(float64(noTokens))
	r.CatalogQualified.WithLabelValues("no_outcomes").Add(float64(noOutcomes))
	r.CatalogQualified.WithLabelValues("low_volume").Add(float64(lowVolume))
	r.CatalogQualified.WithLabelValues("low_liquidity").Add(float64(lowLiquidity))
	r.CatalogQualified.WithLabelValues("expiry").Add(float64(expiry))
}
