package feed

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"sync/atomic"
)

// BookLevel is a single price level in a book snapshot, as received
// over the wire (price/size arrive as decimal strings).
type BookLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// BookChange is a single order-level change: "SELL" is the ask side,
// "BUY" is the bid side.
type BookChange struct {
	Price string `json:"price"`
	Side  string `json:"side"`
	Size  string `json:"size"`
}

type priceChangeEntry struct {
	AssetID  string  `json:"asset_id"`
	Price    string  `json:"price"`
	Size     string  `json:"size"`
	Side     string  `json:"side"`
	BestBid  *string `json:"best_bid"`
	BestAsk  *string `json:"best_ask"`
}

type rawBookMsg struct {
	EventType    *string            `json:"event_type"`
	AssetID      *string            `json:"asset_id"`
	Asks         []BookLevel        `json:"asks"`
	Bids         []BookLevel        `json:"bids"`
	PriceChanges []priceChangeEntry `json:"price_changes"`
	Price        *string            `json:"price"`
}

// FrameKind identifies which variant a ParsedFrame carries.
type FrameKind int

const (
	FrameBookSnapshot FrameKind = iota
	FrameBookPriceChange
	FrameLastTradePrice
)

// ParsedFrame is one decoded event out of a WS text frame. A single
// frame (in the price_change format) can expand into many ParsedFrames,
// one per affected asset.
type ParsedFrame struct {
	Kind    FrameKind
	AssetID string

	// FrameBookSnapshot
	Asks []BookLevel
	Bids []BookLevel

	// FrameBookPriceChange
	Change  BookChange
	BestBid *float64
	BestAsk *float64

	// FrameLastTradePrice
	TradePrice float64
}

var parseFailures atomic.Uint64

// ParseWSFrame decodes a raw WebSocket text frame — a single JSON
// object or a JSON array of objects — into zero or more ParsedFrames.
// Frames that fail to decode at all are logged at a decaying rate (the
// first 10, then every 1000th) with a 500-byte sample, so a malformed
// upstream payload never floods the log.
func ParseWSFrame(logger *slog.Logger, raw []byte) []ParsedFrame {
	var msgs []rawBookMsg

	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(raw, &msgs); err != nil {
			msgs = nil
		}
	} else {
		var one rawBookMsg
		if err := json.Unmarshal(raw, &one); err == nil {
			msgs = []rawBookMsg{one}
		}
	}

	if len(msgs) == 0 {
		logParseFailure(logger, raw)
		return nil
	}

	var frames []ParsedFrame
	for _, m := range msgs {
		frames = append(frames, expandRawMsg(m)...)
	}
	return frames
}

func logParseFailure(logger *slog.Logger, raw []byte) {
	count := parseFailures.Add(1)
	if count <= 10 || count%1000 == 0 {
		n := len(raw)
		if n > 500 {
			n = 500
		}
		logger.Warn("unrecognized ws frame", "count", count, "sample", string(raw[:n]))
	}
}

func expandRawMsg(m rawBookMsg) []ParsedFrame {
	if m.EventType == nil {
		return nil
	}
	switch *m.EventType {
	case "book":
		if m.AssetID == nil {
			return nil
		}
		return []ParsedFrame{{
			Kind:    FrameBookSnapshot,
			AssetID: *m.AssetID,
			Asks:    m.Asks,
			Bids:    m.Bids,
		}}
	case "price_change":
		if len(m.PriceChanges) == 0 {
			return nil
		}
		frames := make([]ParsedFrame, 0, len(m.PriceChanges))
		for _, entry := range m.PriceChanges {
			frames = append(frames, ParsedFrame{
				Kind:    FrameBookPriceChange,
				AssetID: entry.AssetID,
				Change: BookChange{
					Price: entry.Price,
					Side:  entry.Side,
					Size:  entry.Size,
				},
				BestBid: parseOptionalFloat(entry.BestBid),
				BestAsk: parseOptionalFloat(entry.BestAsk),
			})
		}
		return frames
	case "last_trade_price":
		if m.AssetID == nil || m.Price == nil {
			return nil
		}
		price, err := strconv.ParseFloat(*m.Price, 64)
		if err != nil {
			return nil
		}
		return []ParsedFrame{{
			Kind:       FrameLastTradePrice,
			AssetID:    *m.AssetID,
			TradePrice: price,
		}}
	default:
		return nil
	}
}

func parseOptionalFloat(s *string) *float64 {
	if s == nil {
		return nil
	}
	f, err := strconv.ParseFloat(*s, 64)
	if err != nil {
		return nil
	}
	return &f
}
