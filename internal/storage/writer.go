package storage

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rickgao/arb-scanner/internal/detect"
)

// Config controls the Writer's batching behavior.
type Config struct {
	BatchSize     int
	FlushInterval time.Duration
}

// DefaultConfig mirrors the teacher's orderbook writer defaults.
func DefaultConfig() Config {
	return Config{BatchSize: 1000, FlushInterval: time.Second}
}

// Input is the subset of window.Consumer's output the Writer drains.
type Input interface {
	TryReceive() (detect.WindowEvent, bool)
}

// Writer consumes WindowEvents and persists them to Postgres. Opens are
// appended; Closes try to complete the matching open row first and fall
// back to a full insert when no open row exists (for example when the
// Open's insert batch failed).
type Writer struct {
	cfg    Config
	logger *slog.Logger

	input Input
	db    *pgxpool.Pool

	openBatch  []windowOpenRow
	closeBatch []windowCloseRow
	batchMu    sync.Mutex

	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	metrics Metrics
}

// Metrics tracks write outcomes, exposed via Stats for the health/metrics surface.
type Metrics struct {
	OpenInserts   int64
	CloseUpdates  int64
	CloseInserts  int64
	Errors        int64
	Flushes       int64
}

// NewWriter builds a Writer reading from input and writing through db.
// db may be nil in tests that never accumulate a non-empty batch.
func NewWriter(cfg Config, input Input, db *pgxpool.Pool, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{
		cfg:        cfg,
		input:      input,
		db:         db,
		logger:     logger,
		openBatch:  make([]windowOpenRow, 0, cfg.BatchSize),
		closeBatch: make([]windowCloseRow, 0, cfg.BatchSize),
	}
}

// Start launches the consume and flush goroutines.
func (w *Writer) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)
	w.flushTicker = time.NewTicker(w.cfg.FlushInterval)

	w.wg.Add(2)
	go w.consumeLoop()
	go w.flushLoop()

	w.logger.Info("persistence writer started",
		"batch_size", w.cfg.BatchSize, "flush_interval", w.cfg.FlushInterval)
	return nil
}

// Stop drains the goroutines and performs one final flush.
func (w *Writer) Stop(ctx context.Context) error {
	w.logger.Info("stopping persistence writer")

	if w.cancel != nil {
		w.cancel()
	}
	if w.flushTicker != nil {
		w.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("persistence writer stop timed out")
	}

	w.flush()
	return nil
}

// Stats returns a snapshot of write metrics.
func (w *Writer) Stats() Metrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.metrics
}

func (w *Writer) consumeLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		default:
			ev, ok := w.input.TryReceive()
			if !ok {
				select {
				case <-w.ctx.Done():
					return
				case <-time.After(10 * time.Millisecond):
					continue
				}
			}
			w.handleEvent(ev)
		}
	}
}

func (w *Writer) flushLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-w.flushTicker.C:
			w.flush()
		}
	}
}

func (w *Writer) handleEvent(ev detect.WindowEvent) {
	switch {
	case ev.Open != nil:
		row := transformOpen(ev.Open)
		w.batchMu.Lock()
		w.openBatch = append(w.openBatch, row)
		shouldFlush := len(w.openBatch) >= w.cfg.BatchSize
		w.batchMu.Unlock()
		if shouldFlush {
			w.flush()
		}
	case ev.Close != nil:
		row := transformClose(ev.Close)
		w.batchMu.Lock()
		w.closeBatch = append(w.closeBatch, row)
		shouldFlush := len(w.closeBatch) >= w.cfg.BatchSize
		w.batchMu.Unlock()
		if shouldFlush {
			w.flush()
		}
	}
}

func (w *Writer) flush() {
	w.batchMu.Lock()
	openBatch := w.openBatch
	closeBatch := w.closeBatch
	w.openBatch = make([]windowOpenRow, 0, w.cfg.BatchSize)
	w.closeBatch = make([]windowCloseRow, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	if len(openBatch) == 0 && len(closeBatch) == 0 {
		return
	}

	start := time.Now()

	if len(openBatch) > 0 {
		if err := w.batchInsertOpens(openBatch); err != nil {
			w.logger.Error("window open batch insert failed", "error", err, "count", len(openBatch))
			w.bumpErrors()
		} else {
			w.bumpOpenInserts(int64(len(openBatch)))
		}
	}

	if len(closeBatch) > 0 {
		updated, inserted, err := w.batchWriteCloses(closeBatch)
		if err != nil {
			w.logger.Error("window close batch write failed", "error", err, "count", len(closeBatch))
			w.bumpErrors()
		} else {
			w.bumpCloseCounts(updated, inserted)
		}
	}

	w.batchMu.Lock()
	w.metrics.Flushes++
	w.batchMu.Unlock()

	w.logger.Debug("flushed windows",
		"opens", len(openBatch), "closes", len(closeBatch), "duration", time.Since(start))
}

func (w *Writer) batchInsertOpens(rows []windowOpenRow) error {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(`
			INSERT INTO windows (
				market_id, opened_at, closed_at, duration_ms,
				yes_ask, no_ask, combined_cost, spread_size, spread_category
			) VALUES ($1, $2, NULL, NULL, $3, $4, $5, $6, $7)
		`, r.MarketID, r.OpenedAtNs, r.YesAsk, r.NoAsk, r.CombinedCost, r.Spread, r.SpreadCategory)
	}

	results := w.db.SendBatch(w.ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// batchWriteCloses tries an UPDATE against the still-open row for each
// close first. Rows the UPDATE didn't touch (a Close whose Open row was
// never written) fall back to a full INSERT in a second batch.
func (w *Writer) batchWriteCloses(rows []windowCloseRow) (updated, inserted int, err error) {
	updateBatch := &pgx.Batch{}
	for _, r := range rows {
		updateBatch.Queue(`
			UPDATE windows
			SET closed_at = $1, duration_ms = $2, open_duration_class = $3, close_reason = $4,
				tick_count = $5, volume_changed = $6, volume_change_ticks = $7, price_shifted = $8,
				opportunity_class = $9, detection_latency_us = $10,
				closing_yes_ask = $11, closing_no_ask = $12, closing_combined_cost = $13,
				closing_spread_size = $14, closing_spread_category = $15
			WHERE market_id = $16 AND opened_at = $17 AND closed_at IS NULL
		`, r.ClosedAtNs, r.DurationMs, r.OpenDurationClass, r.CloseReason,
			r.TickCount, r.VolumeChanged, r.VolumeChangeTicks, r.PriceShifted,
			r.OpportunityClass, r.DetectionLatencyUs,
			r.ClosingYesAsk, r.ClosingNoAsk, r.ClosingCombinedCost, r.ClosingSpread, r.ClosingSpreadCategory,
			r.MarketID, r.OpenedAtNs)
	}

	results := w.db.SendBatch(w.ctx, updateBatch)
	var needsInsert []windowCloseRow
	for _, r := range rows {
		ct, execErr := results.Exec()
		if execErr != nil {
			results.Close()
			return 0, 0, execErr
		}
		if ct.RowsAffected() == 0 {
			needsInsert = append(needsInsert, r)
		} else {
			updated++
		}
	}
	if err := results.Close(); err != nil {
		return 0, 0, err
	}

	if len(needsInsert) == 0 {
		return updated, 0, nil
	}

	insertBatch := &pgx.Batch{}
	for _, r := range needsInsert {
		insertBatch.Queue(`
			INSERT INTO windows (
				market_id, opened_at, closed_at, duration_ms,
				yes_ask, no_ask, combined_cost, spread_size, spread_category,
				closing_yes_ask, closing_no_ask, closing_combined_cost,
				closing_spread_size, closing_spread_category,
				open_duration_class, close_reason,
				tick_count, volume_changed, volume_change_ticks, price_shifted,
				opportunity_class, detection_latency_us
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		`, r.MarketID, r.OpenedAtNs, r.ClosedAtNs, r.DurationMs,
			r.OpeningYesAsk, r.OpeningNoAsk, r.OpeningCombinedCost, r.OpeningSpread, r.OpeningSpreadCategory,
			r.ClosingYesAsk, r.ClosingNoAsk, r.ClosingCombinedCost, r.ClosingSpread, r.ClosingSpreadCategory,
			r.OpenDurationClass, r.CloseReason,
			r.TickCount, r.VolumeChanged, r.VolumeChangeTicks, r.PriceShifted,
			r.OpportunityClass, r.DetectionLatencyUs)
	}

	insertResults := w.db.SendBatch(w.ctx, insertBatch)
	defer insertResults.Close()
	for range needsInsert {
		if _, err := insertResults.Exec(); err != nil {
			return updated, inserted, err
		}
	}

	return updated, len(needsInsert), nil
}

func (w *Writer) bumpErrors() {
	w.batchMu.Lock()
	w.metrics.Errors++
	w.batchMu.Unlock()
}

func (w *Writer) bumpOpenInserts(n int64) {
	w.batchMu.Lock()
	w.metrics.OpenInserts += n
	w.batchMu.Unlock()
}

func (w *Writer) bumpCloseCounts(updated, inserted int) {
	w.batchMu.Lock()
	w.metrics.CloseUpdates += int64(updated)
	w.metrics.CloseInserts += int64(inserted)
	w.batchMu.Unlock()
}
