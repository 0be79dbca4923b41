// Package window implements the Window Consumer (C6): it drains the
// Detector's output, hands every event to the durable Persistence
// Writer queue, and best-effort broadcasts closed windows over Redis
// pub/sub for any live subscriber.
package window

import (
	"context"
	"log/slog"

	"github.com/rickgao/arb-scanner/internal/detect"
	"github.com/rickgao/arb-scanner/internal/model"
)

// Consumer bridges the Detector's event stream to the Persistence
// Writer's queue. Output is a GrowableBuffer so a slow Writer never
// backpressures the Detector's hot path — the queue grows instead.
type Consumer struct {
	broadcaster Broadcaster
	logger      *slog.Logger

	Output *GrowableBuffer[detect.WindowEvent]
}

// NewConsumer builds a Consumer publishing closed windows through b
// (pass window.NoopBroadcaster{} to disable live push).
func NewConsumer(b Broadcaster, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	if b == nil {
		b = NoopBroadcaster{}
	}
	return &Consumer{
		broadcaster: b,
		logger:      logger,
		Output:      NewGrowableBuffer[detect.WindowEvent](1024),
	}
}

// Run drains events until the channel closes or ctx is cancelled.
func (c *Consumer) Run(ctx context.Context, events <-chan detect.WindowEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				c.Output.Close()
				return
			}
			c.handle(ctx, ev)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, ev detect.WindowEvent) {
	if !c.Output.Send(ev) {
		c.logger.Warn("writer queue closed, dropping window event")
		return
	}
	if ev.Close != nil {
		c.broadcaster.Broadcast(ctx, closePayload(ev.Close))
	}
}

func closePayload(e *model.WindowCloseEvent) CloseEventPayload {
	return CloseEventPayload{
		MarketID:          e.MarketID,
		Spread:            e.ClosingSpread,
		SpreadCategory:    string(e.ClosingSpreadCategory),
		DurationMs:        e.DurationMs,
		OpenDurationClass: string(e.OpenDurationClass),
		OpportunityClass:  e.OpportunityClass,
	}
}

// PendingCount reports the current writer-queue depth, for the health
// endpoint's write_queue_pending gauge.
func (c *Consumer) PendingCount() int {
	return c.Output.Len()
}
