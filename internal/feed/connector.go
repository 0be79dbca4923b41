package feed

import (
	"context"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/rickgao/arb-scanner/internal/market"
	"github.com/rickgao/arb-scanner/internal/model"
)

// ReconnectBaseWait and ReconnectMaxWait govern the exponential
// backoff used when the feed connection drops: wait doubles from
// ReconnectBaseWait up to a ReconnectMaxWait ceiling.
const (
	ReconnectBaseWait = 100 * time.Millisecond
	ReconnectMaxWait  = 30 * time.Second
)

// Connector is the Feed Connector (C3): a single durable WebSocket
// connection to the Polymarket CLOB market channel. It applies every
// book/price_change frame to the shared Market Store and republishes
// it as a model.PriceMessage on Prices, in the exact order received,
// so the Detector's private cache never disagrees with the Store about
// tick ordering.
type Connector struct {
	url    string
	store  *market.Store
	logger *slog.Logger

	Prices chan model.PriceMessage
	Trades chan model.TradeMessage

	mu       sync.Mutex
	client   *wsClient
	assetIDs map[string]struct{}

	stop chan struct{}
	done chan struct{}
}

// NewConnector builds a Connector against the given Polymarket market
// channel URL, applying book state into store.
func NewConnector(url string, store *market.Store, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		url:      url,
		store:    store,
		logger:   logger,
		Prices:   make(chan model.PriceMessage, 8192),
		Trades:   make(chan model.TradeMessage, 2048),
		assetIDs: make(map[string]struct{}),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start connects and runs the read/reconnect loop until Stop is called
// or ctx is cancelled.
func (c *Connector) Start(ctx context.Context) {
	defer close(c.done)

	wait := ReconnectBaseWait
	for {
		client := newWSClient(c.url, c.logger)
		if err := client.connect(ctx); err != nil {
			c.logger.Warn("feed connect failed, retrying", "wait", wait, "error", err)
			if !c.sleep(ctx, wait) {
				return
			}
			wait = nextBackoff(wait)
			continue
		}

		c.mu.Lock()
		c.client = client
		c.mu.Unlock()

		wait = ReconnectBaseWait
		c.resubscribeAll(client)

		if c.runReadLoop(ctx, client) {
			return
		}
	}
}

func nextBackoff(wait time.Duration) time.Duration {
	wait *= 2
	if wait > ReconnectMaxWait {
		wait = ReconnectMaxWait
	}
	return wait
}

func (c *Connector) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.stop:
		return false
	case <-time.After(d):
		return true
	}
}

// runReadLoop pumps frames from one connection until it errors, ctx is
// cancelled, or Stop is called. Returns true if the caller should stop
// entirely (not reconnect).
func (c *Connector) runReadLoop(ctx context.Context, client *wsClient) bool {
	for {
		select {
		case <-ctx.Done():
			client.close()
			return true
		case <-c.stop:
			client.close()
			return true
		case err := <-client.errors:
			c.logger.Warn("feed connection dropped, reconnecting", "error", err)
			client.close()
			return false
		case msg, ok := <-client.messages:
			if !ok {
				return false
			}
			c.handleFrame(msg)
		}
	}
}

// Stop requests the connector to stop and blocks until it does.
func (c *Connector) Stop() {
	close(c.stop)
	<-c.done
}

// Connected reports whether the connector currently holds a live
// WebSocket connection, for the health snapshot.
func (c *Connector) Connected() bool {
	c.mu.Lock()
	client := c.client
	c.mu.Unlock()
	return client != nil && client.isConnected()
}

// Subscribe sends chunked subscribe frames for the given asset ids and
// adds them to the resubscribe set maintained across reconnects.
func (c *Connector) Subscribe(ids []string) error {
	c.mu.Lock()
	for _, id := range ids {
		c.assetIDs[id] = struct{}{}
	}
	client := c.client
	c.mu.Unlock()

	if client == nil || !client.isConnected() {
		return nil
	}
	for _, chunk := range chunkAssetIDs(ids) {
		data, err := marshalSubscribe(chunk)
		if err != nil {
			return err
		}
		if err := client.send(data); err != nil {
			return err
		}
	}
	return nil
}

// Unsubscribe sends chunked unsubscribe frames and removes the ids
// from the resubscribe set.
func (c *Connector) Unsubscribe(ids []string) error {
	c.mu.Lock()
	for _, id := range ids {
		delete(c.assetIDs, id)
	}
	client := c.client
	c.mu.Unlock()

	if client == nil || !client.isConnected() {
		return nil
	}
	for _, chunk := range chunkAssetIDs(ids) {
		data, err := marshalUnsubscribe(chunk)
		if err != nil {
			return err
		}
		if err := client.send(data); err != nil {
			return err
		}
	}
	return nil
}

func (c *Connector) resubscribeAll(client *wsClient) {
	c.mu.Lock()
	ids := make([]string, 0, len(c.assetIDs))
	for id := range c.assetIDs {
		ids = append(ids, id)
	}
	c.mu.Unlock()

	if len(ids) == 0 {
		return
	}
	for _, chunk := range chunkAssetIDs(ids) {
		data, err := marshalSubscribe(chunk)
		if err != nil {
			continue
		}
		if err := client.send(data); err != nil {
			c.logger.Warn("resubscribe failed", "error", err)
			return
		}
	}
}

func (c *Connector) handleFrame(msg TimestampedMessage) {
	frames := ParseWSFrame(c.logger, msg.Data)
	for _, f := range frames {
		switch f.Kind {
		case FrameBookSnapshot:
			c.applySnapshot(f, msg.ReceivedAt)
		case FrameBookPriceChange:
			c.applyPriceChange(f, msg.ReceivedAt)
		case FrameLastTradePrice:
			c.applyTrade(f, msg.ReceivedAt)
		}
	}
}

func (c *Connector) applySnapshot(f ParsedFrame, receivedAt time.Time) {
	asks := toPriceLevels(f.Asks)
	bids := toPriceLevels(f.Bids)
	bestAsk, bestBid, ok := c.store.ApplyBookSnapshot(f.AssetID, asks, bids)
	if !ok {
		return
	}
	c.emitPrice(f.AssetID, bestAsk, bestBid, receivedAt)
}

func (c *Connector) applyPriceChange(f ParsedFrame, receivedAt time.Time) {
	price, err := parsePriceLevelPrice(f.Change.Price)
	if err != nil {
		return
	}
	size, err := parsePriceLevelPrice(f.Change.Size)
	if err != nil {
		return
	}
	isAsk := f.Change.Side == "SELL"

	bestAsk, bestBid, ok := c.store.ApplyBookChanges(f.AssetID, price, isAsk, size)
	if !ok {
		return
	}
	if f.BestAsk != nil {
		bestAsk = *f.BestAsk
	}
	if f.BestBid != nil {
		bestBid = *f.BestBid
	}
	c.emitPrice(f.AssetID, bestAsk, bestBid, receivedAt)
}

func (c *Connector) applyTrade(f ParsedFrame, receivedAt time.Time) {
	select {
	case c.Trades <- model.TradeMessage{TokenID: f.AssetID, Price: f.TradePrice, ReceivedAt: receivedAt}:
	default:
		c.logger.Warn("trade channel full, dropping trade message", "asset_id", f.AssetID)
	}
	c.emitTradeFollowup(f.AssetID, receivedAt)
}

func (c *Connector) emitPrice(assetID string, bestAsk, bestBid float64, receivedAt time.Time) {
	msg := model.PriceMessage{
		TokenID:    assetID,
		BestAsk:    bestAsk,
		BestBid:    bestBid,
		ReceivedAt: receivedAt,
	}
	select {
	case c.Prices <- msg:
	default:
		c.logger.Warn("price channel full, dropping price message", "asset_id", assetID)
	}
}

// emitTradeFollowup re-publishes the current best prices after a trade
// so the Detector re-evaluates the spread even when the trade itself
// didn't move the book (the trade/volume signal reaches the Detector
// on the Trades channel, not as a flag on this Price message).
func (c *Connector) emitTradeFollowup(assetID string, receivedAt time.Time) {
	ask, bid, ok := c.store.BestPrices(assetID)
	if !ok {
		return
	}
	c.emitPrice(assetID, ask, bid, receivedAt)
}

func toPriceLevels(levels []BookLevel) []market.PriceLevel {
	out := make([]market.PriceLevel, 0, len(levels))
	for _, l := range levels {
		price, err := parsePriceLevelPrice(l.Price)
		if err != nil {
			continue
		}
		size, err := parsePriceLevelPrice(l.Size)
		if err != nil {
			continue
		}
		out = append(out, market.PriceLevel{Price: price, Size: size})
	}
	return out
}

func parsePriceLevelPrice(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
