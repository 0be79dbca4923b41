package window

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

// Broadcaster is a best-effort live-push sink for closed windows. A
// broadcast failure or a slow subscriber must never slow the Writer or
// the Detector, so Broadcast never blocks and never returns an error
// the caller is expected to act on.
type Broadcaster interface {
	Broadcast(ctx context.Context, event CloseEventPayload)
}

// CloseEventPayload is the JSON shape pushed to the live channel —
// a trimmed view of model.WindowCloseEvent for external consumers.
type CloseEventPayload struct {
	MarketID          string  `json:"market_id"`
	Spread            float64 `json:"spread"`
	SpreadCategory    string  `json:"spread_category"`
	DurationMs        float64 `json:"duration_ms"`
	OpenDurationClass string  `json:"open_duration_class"`
	OpportunityClass  int     `json:"opportunity_class"`
}

// RedisBroadcaster publishes closed windows on a Redis pub/sub channel
// for any live dashboard or downstream subscriber. It is entirely
// best-effort: publish errors are logged and dropped.
type RedisBroadcaster struct {
	rdb     *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisBroadcaster builds a Broadcaster over an existing redis.Client.
func NewRedisBroadcaster(rdb *redis.Client, channel string, logger *slog.Logger) *RedisBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	if channel == "" {
		channel = "arb-scanner:windows"
	}
	return &RedisBroadcaster{rdb: rdb, channel: channel, logger: logger}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, event CloseEventPayload) {
	data, err := json.Marshal(event)
	if err != nil {
		b.logger.Warn("broadcast marshal failed", "error", err)
		return
	}
	go func() {
		if err := b.rdb.Publish(ctx, b.channel, data).Err(); err != nil {
			b.logger.Debug("broadcast publish failed, dropping", "error", err)
		}
	}()
}

// NoopBroadcaster discards every event. NewConsumer substitutes it for
// a nil Broadcaster, and cmd/scanner uses it when Redis.Addr is empty
// (config's applyDefaults fills an empty address with localhost:6379,
// so a loaded config always selects the Redis broadcaster).
type NoopBroadcaster struct{}

func (NoopBroadcaster) Broadcast(context.Context, CloseEventPayload) {}
